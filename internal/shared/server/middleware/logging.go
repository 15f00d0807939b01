package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"resume-builder/internal/shared/telemetry"
)

// Context keys handlers set so the request log can correlate entities.
const (
	ResumeIDKey         = "resumeId"
	PaymentIDKey        = "paymentId"
	StatusTransitionKey = "statusTransition"
)

// Probes and scrapes would drown the access log.
var quietRoutes = map[string]bool{
	"/metrics":    true,
	"/api/health": true,
}

// Logging writes one access log line per request once the handler chain has
// finished. 5xx responses log at error and 4xx at warn.
func Logging() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions || quietRoutes[c.Request.URL.Path] {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		fields := map[string]any{
			"request_id":  RequestIDFromContext(c),
			"method":      c.Request.Method,
			"path":        c.Request.URL.Path,
			"route":       c.FullPath(),
			"status":      status,
			"duration_ms": float64(time.Since(start).Microseconds()) / 1000,
			"bytes":       c.Writer.Size(),
			"client_ip":   c.ClientIP(),
		}
		for field, key := range map[string]string{
			"user_id":           userIDKey,
			"resume_id":         ResumeIDKey,
			"payment_id":        PaymentIDKey,
			"status_transition": StatusTransitionKey,
		} {
			if v := c.GetString(key); v != "" {
				fields[field] = v
			}
		}

		switch {
		case status >= http.StatusInternalServerError:
			telemetry.Error("http.request", fields)
		case status >= http.StatusBadRequest:
			telemetry.Warn("http.request", fields)
		default:
			telemetry.Info("http.request", fields)
		}
	}
}
