package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

func requestIDRouter(seen *string) *gin.Engine {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/", func(c *gin.Context) {
		*seen = RequestIDFromContext(c)
		c.Status(http.StatusNoContent)
	})
	return r
}

func TestRequestIDKeepsValidClientID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var seen string
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-Id", "client-abc.123")
	w := httptest.NewRecorder()
	requestIDRouter(&seen).ServeHTTP(w, req)

	if seen != "client-abc.123" || w.Header().Get("X-Request-Id") != "client-abc.123" {
		t.Fatalf("expected client id to propagate, got %q / %q", seen, w.Header().Get("X-Request-Id"))
	}
}

func TestRequestIDReplacesInvalidClientID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	for _, bad := range []string{"", "has space", strings.Repeat("a", 129), "tab\tid"} {
		var seen string
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if bad != "" {
			req.Header.Set("X-Request-Id", bad)
		}
		w := httptest.NewRecorder()
		requestIDRouter(&seen).ServeHTTP(w, req)

		if _, err := uuid.Parse(seen); err != nil {
			t.Fatalf("header %q: expected generated uuid, got %q", bad, seen)
		}
	}
}

func TestRecoveryReturnsEnvelope(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID(), Recovery())
	r.GET("/boom", func(c *gin.Context) { panic("boom") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"internal_error"`) {
		t.Fatalf("unexpected body %s", w.Body.String())
	}
}
