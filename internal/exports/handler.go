package exports

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"resume-builder/internal/resumes"
	"resume-builder/internal/shared/server/middleware"
	"resume-builder/internal/shared/server/respond"
	"resume-builder/internal/usage"
)

// Handler wires HTTP handlers to the service.
type Handler struct {
	Svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches export routes to an authenticated group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/resumes/:id/pdf", h.download)
	rg.GET("/resumes/:id/pdf/last", h.downloadLast)
}

func (h *Handler) download(c *gin.Context) {
	id := c.Param("id")
	c.Set(middleware.ResumeIDKey, id)

	export, err := h.Svc.Export(c.Request.Context(), middleware.UserIDFromContext(c), id)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.Header("Content-Disposition", attachment(export.FileName))
	c.Header("X-Downloads-Remaining", strconv.Itoa(export.DownloadsRemaining))
	c.Data(http.StatusOK, ContentTypePDF, export.Data)
}

func (h *Handler) downloadLast(c *gin.Context) {
	id := c.Param("id")
	c.Set(middleware.ResumeIDKey, id)

	reader, fileName, err := h.Svc.OpenLast(c.Request.Context(), middleware.UserIDFromContext(c), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	defer reader.Close()

	c.Header("Content-Type", ContentTypePDF)
	c.Header("Content-Disposition", attachment(fileName))
	c.Status(http.StatusOK)
	_, _ = io.Copy(c.Writer, reader)
}

func (h *Handler) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, resumes.ErrNotFound):
		respond.Error(c, http.StatusNotFound, "not_found", "Resume not found", nil)
	case errors.Is(err, usage.ErrPlanExpired):
		respond.Error(c, http.StatusPaymentRequired, "limit_reached", "Your plan has expired. Please purchase a plan to download.", nil)
	case errors.Is(err, usage.ErrLimitReached):
		respond.Error(c, http.StatusPaymentRequired, "limit_reached", "No downloads remaining. Please purchase a plan.", nil)
	case errors.Is(err, ErrNoStoredExport):
		respond.Error(c, http.StatusNotFound, "not_found", "No stored export for this resume", nil)
	default:
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to export resume", nil)
	}
}

func attachment(fileName string) string {
	return fmt.Sprintf("attachment; filename=%q", fileName)
}
