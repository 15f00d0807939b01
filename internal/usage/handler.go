package usage

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"resume-builder/internal/shared/server/middleware"
	"resume-builder/internal/shared/server/respond"
)

// Handler serves the caller's download allowance.
type Handler struct {
	Svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/usage", h.getUsage)
}

type usageView struct {
	Plan               string     `json:"plan"`
	DownloadsRemaining int        `json:"downloadsRemaining"`
	ExpiresAt          *time.Time `json:"expiresAt,omitempty"`
	Active             bool       `json:"active"`
	Expired            bool       `json:"expired"`
	UpdatedAt          time.Time  `json:"updatedAt"`
}

func viewOf(e Entitlement, now time.Time) usageView {
	v := usageView{
		Plan:               e.Plan,
		DownloadsRemaining: e.DownloadsRemaining,
		ExpiresAt:          e.ExpiresAt,
		Active:             e.Active(now),
		Expired:            e.Expired(now),
		UpdatedAt:          e.UpdatedAt,
	}
	// A lapsed plan has nothing left to spend, whatever the counter says.
	if v.Expired {
		v.DownloadsRemaining = 0
	}
	return v
}

func (h *Handler) getUsage(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	if userID == "" {
		respond.Error(c, http.StatusUnauthorized, "unauthorized", "authentication required", nil)
		return
	}

	e, err := h.Svc.Get(c.Request.Context(), userID)
	switch {
	case err == nil:
		respond.OK(c, viewOf(e, h.Svc.clock()))
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		respond.Error(c, http.StatusRequestTimeout, "timeout", "request canceled", nil)
	default:
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to fetch usage", nil)
	}
}
