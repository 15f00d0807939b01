package users

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"resume-builder/internal/shared/auth"
	"resume-builder/internal/shared/server/middleware"
	"resume-builder/internal/usage"
)

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	issuer, err := auth.NewIssuer(auth.IssuerConfig{Env: "test", AccessSecret: "a", RefreshSecret: "r"})
	if err != nil {
		t.Fatalf("issuer: %v", err)
	}
	svc := NewService(NewMemoryRepo(), usage.NewService(nil))
	h := NewHandler(svc, issuer, false)

	router := gin.New()
	api := router.Group("/api")
	h.RegisterPublicRoutes(api)
	protected := api.Group("")
	protected.Use(middleware.Auth(issuer))
	h.RegisterRoutes(protected)
	return router
}

func postJSON(router *gin.Engine, path string, body any, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	payload, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	for _, ck := range cookies {
		req.AddCookie(ck)
	}
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	return resp
}

func TestRegisterLoginRefreshMe(t *testing.T) {
	router := newTestRouter(t)

	resp := postJSON(router, "/api/auth/register", map[string]string{
		"email": "ada@example.com", "password": "longenough", "firstName": "Ada",
	})
	if resp.Code != http.StatusCreated {
		t.Fatalf("register expected 201, got %d: %s", resp.Code, resp.Body.String())
	}
	if strings.Contains(resp.Body.String(), "password") {
		t.Fatalf("response leaks password hash: %s", resp.Body.String())
	}

	resp = postJSON(router, "/api/auth/login", map[string]string{"email": "ada@example.com", "password": "longenough"})
	if resp.Code != http.StatusOK {
		t.Fatalf("login expected 200, got %d", resp.Code)
	}
	var login struct {
		AccessToken string `json:"accessToken"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &login); err != nil || login.AccessToken == "" {
		t.Fatalf("expected access token: %v", err)
	}
	var refreshCookie *http.Cookie
	for _, ck := range resp.Result().Cookies() {
		if ck.Name == RefreshCookieName {
			refreshCookie = ck
		}
	}
	if refreshCookie == nil || !refreshCookie.HttpOnly {
		t.Fatalf("expected httpOnly refresh cookie")
	}

	resp = postJSON(router, "/api/auth/refresh", map[string]string{}, refreshCookie)
	if resp.Code != http.StatusOK || !strings.Contains(resp.Body.String(), "accessToken") {
		t.Fatalf("refresh expected 200 with token, got %d: %s", resp.Code, resp.Body.String())
	}

	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+login.AccessToken)
	me := httptest.NewRecorder()
	router.ServeHTTP(me, req)
	if me.Code != http.StatusOK {
		t.Fatalf("me expected 200, got %d", me.Code)
	}
	var body struct {
		User         User              `json:"user"`
		Subscription usage.Entitlement `json:"subscription"`
	}
	if err := json.Unmarshal(me.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode me: %v", err)
	}
	if body.User.Email != "ada@example.com" || body.Subscription.Plan != usage.PlanFree {
		t.Fatalf("unexpected me body %s", me.Body.String())
	}
}

func TestLoginWrongPassword(t *testing.T) {
	router := newTestRouter(t)
	postJSON(router, "/api/auth/register", map[string]string{"email": "ada@example.com", "password": "longenough"})

	resp := postJSON(router, "/api/auth/login", map[string]string{"email": "ada@example.com", "password": "nope-nope"})
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.Code)
	}
}

func TestRegisterDuplicate(t *testing.T) {
	router := newTestRouter(t)
	postJSON(router, "/api/auth/register", map[string]string{"email": "ada@example.com", "password": "longenough"})

	resp := postJSON(router, "/api/auth/register", map[string]string{"email": "ada@example.com", "password": "longenough"})
	if resp.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", resp.Code)
	}
}

func TestRefreshWithoutTokenRejected(t *testing.T) {
	router := newTestRouter(t)
	resp := postJSON(router, "/api/auth/refresh", map[string]string{})
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.Code)
	}
}

func TestLogoutClearsCookie(t *testing.T) {
	router := newTestRouter(t)
	resp := postJSON(router, "/api/auth/logout", nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	found := false
	for _, ck := range resp.Result().Cookies() {
		if ck.Name == RefreshCookieName && ck.MaxAge < 0 {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected refresh cookie to be cleared")
	}
}
