package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"resume-builder/internal/shared/auth"
)

func testIssuer(t *testing.T) *auth.Issuer {
	t.Helper()
	issuer, err := auth.NewIssuer(auth.IssuerConfig{
		Env:           "test",
		AccessSecret:  "access-secret",
		RefreshSecret: "refresh-secret",
		AccessTTL:     time.Minute,
	})
	if err != nil {
		t.Fatalf("issuer: %v", err)
	}
	return issuer
}

func TestAuthAllowsOptionsWithoutIdentity(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(Auth(testIssuer(t)))
	router.OPTIONS("/api/resumes/:id", func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodOptions, "/api/resumes/abc", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.Code)
	}
}

func TestAuthRejectsMissingAndInvalidTokens(t *testing.T) {
	gin.SetMode(gin.TestMode)
	issuer := testIssuer(t)
	refresh, _, err := issuer.IssueRefresh(auth.Identity{UserID: "user-1"})
	if err != nil {
		t.Fatalf("issue refresh: %v", err)
	}

	router := gin.New()
	router.Use(Auth(issuer))
	router.GET("/api/resumes", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	cases := map[string]string{
		"missing":       "",
		"not bearer":    "Basic abc",
		"garbage":       "Bearer not-a-jwt",
		"refresh token": "Bearer " + refresh,
	}
	for name, header := range cases {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/resumes", nil)
			if header != "" {
				req.Header.Set("Authorization", header)
			}
			resp := httptest.NewRecorder()
			router.ServeHTTP(resp, req)
			if resp.Code != http.StatusUnauthorized {
				t.Fatalf("expected 401, got %d", resp.Code)
			}
		})
	}
}

func TestAuthSetsIdentity(t *testing.T) {
	gin.SetMode(gin.TestMode)
	issuer := testIssuer(t)
	token, _, err := issuer.IssueAccess(auth.Identity{UserID: "user-1", Email: "ada@example.com"})
	if err != nil {
		t.Fatalf("issue access: %v", err)
	}

	router := gin.New()
	router.Use(Auth(issuer))
	router.GET("/api/auth/me", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"id": UserIDFromContext(c), "email": UserEmailFromContext(c)})
	})

	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if body := resp.Body.String(); body != `{"email":"ada@example.com","id":"user-1"}` {
		t.Fatalf("unexpected body %s", body)
	}
}
