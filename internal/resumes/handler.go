package resumes

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"resume-builder/internal/shared/server/middleware"
	"resume-builder/internal/shared/server/respond"
	"resume-builder/resume/ats"
	"resume-builder/resume/model"
)

// Handler wires HTTP handlers to the service.
type Handler struct {
	Svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches resume and scoring routes to an authenticated group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/resumes", h.create)
	rg.GET("/resumes", h.list)
	rg.GET("/resumes/:id", h.get)
	rg.PUT("/resumes/:id", h.update)
	rg.DELETE("/resumes/:id", h.delete)
	rg.POST("/resumes/:id/score", h.score)
	rg.POST("/resumes/:id/score/async", h.scoreAsync)
	rg.POST("/ats/score", h.atsScore)
	rg.POST("/ats/optimize", h.atsOptimize)
}

type createRequest struct {
	Title string        `json:"title"`
	Data  model.Content `json:"data"`
}

type updateRequest struct {
	Title *string        `json:"title"`
	Data  *model.Content `json:"data"`
}

type contentRequest struct {
	Data *model.Content `json:"data"`
}

func (h *Handler) create(c *gin.Context) {
	var req createRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}
	resume, err := h.Svc.Create(c.Request.Context(), middleware.UserIDFromContext(c), CreateInput{Title: req.Title, Content: req.Data})
	if err != nil {
		h.fail(c, err, "failed to create resume")
		return
	}
	c.Set(middleware.ResumeIDKey, resume.ID)
	respond.Created(c, resume)
}

func (h *Handler) list(c *gin.Context) {
	limit := DefaultListLimit
	offset := 0
	if v := c.Query("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			limit = parsed
		}
	}
	if v := c.Query("offset"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			offset = parsed
		}
	}

	items, err := h.Svc.List(c.Request.Context(), middleware.UserIDFromContext(c), limit, offset)
	if err != nil {
		h.fail(c, err, "failed to list resumes")
		return
	}
	respond.OK(c, items)
}

func (h *Handler) get(c *gin.Context) {
	id := c.Param("id")
	c.Set(middleware.ResumeIDKey, id)
	resume, err := h.Svc.Get(c.Request.Context(), middleware.UserIDFromContext(c), id)
	if err != nil {
		h.fail(c, err, "failed to fetch resume")
		return
	}
	respond.OK(c, resume)
}

func (h *Handler) update(c *gin.Context) {
	id := c.Param("id")
	c.Set(middleware.ResumeIDKey, id)
	var req updateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}
	resume, err := h.Svc.Update(c.Request.Context(), middleware.UserIDFromContext(c), id, UpdateInput{Title: req.Title, Content: req.Data})
	if err != nil {
		h.fail(c, err, "failed to update resume")
		return
	}
	respond.OK(c, resume)
}

func (h *Handler) delete(c *gin.Context) {
	id := c.Param("id")
	c.Set(middleware.ResumeIDKey, id)
	if err := h.Svc.Delete(c.Request.Context(), middleware.UserIDFromContext(c), id); err != nil {
		h.fail(c, err, "failed to delete resume")
		return
	}
	respond.OK(c, gin.H{"message": "Resume deleted successfully"})
}

func (h *Handler) score(c *gin.Context) {
	id := c.Param("id")
	c.Set(middleware.ResumeIDKey, id)
	result, resume, err := h.Svc.Score(c.Request.Context(), middleware.UserIDFromContext(c), id)
	if err != nil {
		h.fail(c, err, "failed to score resume")
		return
	}
	respond.OK(c, gin.H{
		"atsScore":        result.ATSScore,
		"issues":          result.Issues,
		"recommendations": result.Recommendations,
		"details":         result.Details,
		"scores":          resume.Scores,
	})
}

func (h *Handler) scoreAsync(c *gin.Context) {
	id := c.Param("id")
	c.Set(middleware.ResumeIDKey, id)
	msg, err := h.Svc.ScoreAsync(c.Request.Context(), middleware.UserIDFromContext(c), id, middleware.RequestIDFromContext(c))
	if err != nil {
		h.fail(c, err, "failed to queue score")
		return
	}
	respond.JSON(c, http.StatusAccepted, gin.H{
		"status":     "queued",
		"resumeId":   msg.ResumeID,
		"requestId":  msg.RequestID,
		"enqueuedAt": msg.EnqueuedAt,
	})
}

func (h *Handler) atsScore(c *gin.Context) {
	content, ok := bindContent(c)
	if !ok {
		return
	}
	result, err := ats.ComputeScore(content)
	if err != nil {
		h.fail(c, err, "failed to score resume")
		return
	}
	respond.OK(c, result)
}

func (h *Handler) atsOptimize(c *gin.Context) {
	content, ok := bindContent(c)
	if !ok {
		return
	}
	suggestions, err := ats.Optimize(content)
	if err != nil {
		h.fail(c, err, "failed to optimize resume")
		return
	}
	respond.OK(c, gin.H{"suggestions": suggestions})
}

func bindContent(c *gin.Context) (model.Content, bool) {
	var req contentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return model.Content{}, false
	}
	if req.Data == nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "data is required", nil)
		return model.Content{}, false
	}
	if err := req.Data.Validate(); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
		return model.Content{}, false
	}
	return *req.Data, true
}

func (h *Handler) fail(c *gin.Context, err error, fallback string) {
	var missing *ats.ValidationError
	switch {
	case errors.As(err, &missing):
		respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), map[string]any{"missing": missing.Missing})
	case errors.Is(err, ErrNotFound):
		respond.Error(c, http.StatusNotFound, "not_found", "Resume not found", nil)
	case errors.Is(err, ErrInvalidInput):
		respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
	case errors.Is(err, ErrQueueDisabled):
		respond.Error(c, http.StatusServiceUnavailable, "queue_unavailable", "score queue not configured", nil)
	default:
		respond.Error(c, http.StatusInternalServerError, "internal_error", fallback, nil)
	}
}
