// Package respond writes the API's JSON bodies. Every failure uses the same
// envelope: {"error":{"code":...,"message":...,"details":...,"requestId":...}}.
package respond

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"resume-builder/internal/shared/telemetry"
)

// Problem is the body of an error response.
type Problem struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Details   any    `json:"details,omitempty"`
	RequestID string `json:"requestId,omitempty"`
}

type envelope struct {
	Error Problem `json:"error"`
}

// JSON writes payload with the given status.
func JSON(c *gin.Context, status int, payload any) {
	c.JSON(status, payload)
}

// OK writes a 200 response.
func OK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}

// Created writes a 201 response.
func Created(c *gin.Context, payload any) {
	c.JSON(http.StatusCreated, payload)
}

// Error aborts the request with the error envelope. Client errors are logged
// at warn, server errors at error.
func Error(c *gin.Context, status int, code, message string, details any) {
	problem := Problem{
		Code:      code,
		Message:   message,
		Details:   details,
		RequestID: c.GetString("requestId"),
	}
	logProblem(c, status, problem)
	c.AbortWithStatusJSON(status, envelope{Error: problem})
}

func logProblem(c *gin.Context, status int, p Problem) {
	fields := map[string]any{
		"status":     status,
		"code":       p.Code,
		"message":    p.Message,
		"method":     c.Request.Method,
		"path":       c.Request.URL.Path,
		"request_id": p.RequestID,
	}
	if userID := c.GetString("userId"); userID != "" {
		fields["user_id"] = userID
	}
	if status >= http.StatusInternalServerError {
		telemetry.Error("http.error", fields)
		return
	}
	telemetry.Warn("http.error", fields)
}
