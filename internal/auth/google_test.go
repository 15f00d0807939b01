package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/oauth2"

	sharedauth "resume-builder/internal/shared/auth"
	"resume-builder/internal/users"
)

type fakeLinker struct {
	got users.GoogleProfile
}

func (f *fakeLinker) UpsertFromGoogle(_ context.Context, profile users.GoogleProfile) (users.User, error) {
	f.got = profile
	return users.User{ID: "user-1", Email: profile.Email, FirstName: profile.GivenName, LastName: profile.FamilyName}, nil
}

func newIssuer(t *testing.T) *sharedauth.Issuer {
	t.Helper()
	issuer, err := sharedauth.NewIssuer(sharedauth.IssuerConfig{Env: "test"})
	if err != nil {
		t.Fatalf("issuer: %v", err)
	}
	return issuer
}

func TestStateStoreConsumesOnce(t *testing.T) {
	store := newStateStore()
	store.put("abc", "verifier-1", time.Now().Add(time.Minute))

	verifier, ok := store.consume("abc")
	if !ok || verifier != "verifier-1" {
		t.Fatalf("expected first consume to return the verifier, got %q %v", verifier, ok)
	}
	if _, ok := store.consume("abc"); ok {
		t.Fatalf("expected second consume to fail")
	}
}

func TestStateStorePrunesExpiredOnPut(t *testing.T) {
	store := newStateStore()
	store.put("old", "v", time.Now().Add(-time.Second))
	store.put("new", "v", time.Now().Add(time.Minute))
	if store.size() != 1 {
		t.Fatalf("expected expired state to be pruned, have %d", store.size())
	}
}

func TestStateStoreRejectsExpired(t *testing.T) {
	store := newStateStore()
	store.put("old", "v", time.Now().Add(-time.Second))
	if _, ok := store.consume("old"); ok {
		t.Fatalf("expected expired state to be rejected")
	}
}

func TestAppendToken(t *testing.T) {
	got, err := appendToken("http://localhost:5173/auth/callback?next=%2Fdashboard", "tok")
	if err != nil {
		t.Fatalf("appendToken: %v", err)
	}
	u, _ := url.Parse(got)
	if u.Query().Get("token") != "tok" || u.Query().Get("next") != "/dashboard" {
		t.Fatalf("unexpected redirect %q", got)
	}
	if _, err := appendToken("", "tok"); err == nil {
		t.Fatalf("expected error for empty redirect")
	}
}

func TestStartNotConfigured(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := NewGoogleService("", "", "", "http://ui", &fakeLinker{}, newIssuer(t), false)
	r := gin.New()
	svc.RegisterRoutes(r.Group("/api"))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/auth/google/start", nil))
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
}

func TestStartRedirectsWithPKCE(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := NewGoogleService("id", "secret", "http://api/cb", "http://ui", &fakeLinker{}, newIssuer(t), false)
	r := gin.New()
	svc.RegisterRoutes(r.Group("/api"))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/auth/google/start", nil))
	if w.Code != http.StatusFound {
		t.Fatalf("expected 302, got %d", w.Code)
	}
	loc, err := url.Parse(w.Header().Get("Location"))
	if err != nil {
		t.Fatalf("parse location: %v", err)
	}
	q := loc.Query()
	if q.Get("code_challenge_method") != "S256" || q.Get("code_challenge") == "" || q.Get("state") == "" {
		t.Fatalf("missing pkce params in %s", loc)
	}
	if svc.stateStore.size() != 1 {
		t.Fatalf("expected pending state")
	}
}

func TestCallbackRejectsUnknownState(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := NewGoogleService("id", "secret", "http://api/cb", "http://ui", &fakeLinker{}, newIssuer(t), false)
	r := gin.New()
	svc.RegisterRoutes(r.Group("/api"))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/auth/google/callback?state=nope&code=c", nil))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestCallbackLinksAccountAndRedirects(t *testing.T) {
	gin.SetMode(gin.TestMode)

	provider := http.NewServeMux()
	provider.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil || r.PostForm.Get("code_verifier") != "pkce-verifier" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"access_token": "google-token", "token_type": "Bearer", "expires_in": 3600})
	})
	provider.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer google-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":             "g-123",
			"email":          "ada@example.com",
			"verified_email": true,
			"given_name":     "Ada",
			"family_name":    "Lovelace",
		})
	})
	srv := httptest.NewServer(provider)
	defer srv.Close()

	linker := &fakeLinker{}
	issuer := newIssuer(t)
	svc := NewGoogleService("id", "secret", "http://api/cb", "http://ui/auth/callback", linker, issuer, false)
	svc.oauthConfig.Endpoint = oauth2.Endpoint{AuthURL: srv.URL + "/auth", TokenURL: srv.URL + "/token", AuthStyle: oauth2.AuthStyleInParams}
	svc.userInfoURL = srv.URL + "/userinfo"
	svc.stateStore.put("state-1", "pkce-verifier", time.Now().Add(time.Minute))

	r := gin.New()
	svc.RegisterRoutes(r.Group("/api"))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/auth/google/callback?state=state-1&code=abc", nil))

	if w.Code != http.StatusFound {
		t.Fatalf("expected 302, got %d: %s", w.Code, w.Body.String())
	}
	if linker.got.Sub != "g-123" || linker.got.GivenName != "Ada" {
		t.Fatalf("unexpected profile %+v", linker.got)
	}
	loc, err := url.Parse(w.Header().Get("Location"))
	if err != nil {
		t.Fatalf("parse location: %v", err)
	}
	claims, err := issuer.VerifyAccess(loc.Query().Get("token"))
	if err != nil {
		t.Fatalf("verify token: %v", err)
	}
	if claims.Subject != "user-1" {
		t.Fatalf("unexpected subject %q", claims.Subject)
	}
	found := false
	for _, ck := range w.Result().Cookies() {
		if ck.Name == users.RefreshCookieName && ck.HttpOnly {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected refresh cookie")
	}
}
