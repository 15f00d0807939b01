package payments

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"resume-builder/internal/shared/server/middleware"
	"resume-builder/internal/shared/server/respond"
	"resume-builder/internal/shared/telemetry"
)

const maxWebhookBody = 64 << 10

// statusPollRule lets the success page poll one intent once per second.
var statusPollRule = middleware.RateLimitRule{Rate: 1, Burst: 1}

// EventVerifier authenticates a raw provider notification.
type EventVerifier interface {
	Verify(payload []byte, signature string) (Event, error)
}

// Handler wires HTTP handlers to the ledger.
type Handler struct {
	Ledger   *Ledger
	Verifier EventVerifier
	poll     *middleware.RateLimiter
}

func NewHandler(ledger *Ledger, verifier EventVerifier) *Handler {
	return &Handler{Ledger: ledger, Verifier: verifier, poll: middleware.NewRateLimiter(nil)}
}

// RegisterPublicRoutes attaches the plan list.
func (h *Handler) RegisterPublicRoutes(rg *gin.RouterGroup) {
	rg.GET("/payment/plans", h.plans)
}

// RegisterWebhook attaches the provider callback. It reads the raw body, so it
// must not sit behind middleware that consumes it.
func (h *Handler) RegisterWebhook(rg *gin.RouterGroup) {
	rg.POST("/payment/webhook", h.webhook)
}

// RegisterRoutes attaches routes that require an authenticated owner.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/payment/create-checkout", h.createCheckout)
	rg.GET("/payment/status/:id", h.status)
}

func (h *Handler) plans(c *gin.Context) {
	respond.OK(c, gin.H{"plans": h.Ledger.Plans()})
}

type checkoutRequest struct {
	Plan string `json:"plan"`
}

func (h *Handler) createCheckout(c *gin.Context) {
	var req checkoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}
	ref, err := h.Ledger.CreateIntent(c.Request.Context(), middleware.UserIDFromContext(c), req.Plan, Meta{
		ClientIP:  c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
		Email:     middleware.UserEmailFromContext(c),
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidPlan):
			respond.Error(c, http.StatusBadRequest, "invalid_plan", "Invalid plan", map[string]any{"plans": h.Ledger.catalog.Keys()})
		case errors.Is(err, ErrValidation):
			respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
		case errors.Is(err, ErrCheckoutUnavailable):
			respond.Error(c, http.StatusServiceUnavailable, "payments_unavailable", "Payments are not configured", nil)
		default:
			respond.Error(c, http.StatusBadGateway, "checkout_failed", "Failed to create checkout session", nil)
		}
		return
	}
	c.Set(middleware.PaymentIDKey, ref.IntentID)
	respond.OK(c, ref)
}

func (h *Handler) status(c *gin.Context) {
	id := c.Param("id")
	c.Set(middleware.PaymentIDKey, id)
	ownerID := middleware.UserIDFromContext(c)
	if ok, wait := h.poll.Allow(ownerID+"|"+id, statusPollRule); !ok {
		c.Header("Retry-After", strconv.Itoa(int(max(wait.Round(time.Second), time.Second)/time.Second)))
		respond.Error(c, http.StatusTooManyRequests, "rate_limited", "Status polled too frequently", nil)
		return
	}
	intent, err := h.Ledger.GetStatus(c.Request.Context(), id, ownerID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			respond.Error(c, http.StatusNotFound, "not_found", "Payment not found", nil)
			return
		}
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to fetch payment", nil)
		return
	}
	respond.OK(c, intent)
}

func (h *Handler) webhook(c *gin.Context) {
	if h.Verifier == nil {
		respond.Error(c, http.StatusServiceUnavailable, "payments_unavailable", "Payments are not configured", nil)
		return
	}
	payload, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBody))
	if err != nil {
		respond.Error(c, http.StatusRequestEntityTooLarge, "invalid_request", "webhook body too large", nil)
		return
	}
	event, err := h.Verifier.Verify(payload, c.GetHeader("Stripe-Signature"))
	if err != nil {
		if errors.Is(err, ErrAuthenticity) {
			respond.Error(c, http.StatusBadRequest, "invalid_signature", "Webhook signature verification failed", nil)
			return
		}
		respond.Error(c, http.StatusBadRequest, "invalid_request", "malformed webhook payload", nil)
		return
	}

	if err := h.Ledger.Reconcile(c.Request.Context(), event); err != nil {
		if errors.Is(err, ErrConflict) {
			c.Set(middleware.StatusTransitionKey, "conflict")
			respond.OK(c, gin.H{"received": true})
			return
		}
		telemetry.Error("payments.webhook.reconcile_failed", map[string]any{
			"event_id":   event.ID,
			"event_type": event.Type,
			"error":      err.Error(),
		})
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to process webhook", nil)
		return
	}
	respond.OK(c, gin.H{"received": true})
}
