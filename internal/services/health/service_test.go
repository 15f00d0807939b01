package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

type stubChecker struct {
	name string
	err  error
}

func (s stubChecker) Name() string                { return s.name }
func (s stubChecker) Check(context.Context) error { return s.err }

func TestStatusWithoutCheckers(t *testing.T) {
	report := NewService().Status(context.Background())
	if !report.OK() {
		t.Fatalf("expected OK, got %s", report.Status)
	}
	if report.Timestamp.IsZero() {
		t.Fatalf("expected timestamp")
	}
}

func TestStatusDegradedWhenCheckFails(t *testing.T) {
	svc := NewService(
		stubChecker{name: "database"},
		stubChecker{name: "mongo", err: errors.New("no reachable servers")},
	)
	report := svc.Status(context.Background())
	if report.OK() {
		t.Fatalf("expected degraded")
	}
	if report.Checks["database"] != "ok" {
		t.Fatalf("unexpected database check %q", report.Checks["database"])
	}
	if report.Checks["mongo"] != "error: no reachable servers" {
		t.Fatalf("unexpected mongo check %q", report.Checks["mongo"])
	}
}

func TestHandlerStatusCodes(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.GET("/ok", Handler(NewService(stubChecker{name: "database"})))
	r.GET("/bad", Handler(NewService(stubChecker{name: "database", err: errors.New("down")})))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ok", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/bad", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}
	var report Report
	if err := json.Unmarshal(w.Body.Bytes(), &report); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if report.Checks["database"] != "error: down" {
		t.Fatalf("unexpected checks %+v", report.Checks)
	}
}
