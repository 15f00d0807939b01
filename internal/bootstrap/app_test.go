package bootstrap

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resume-builder/internal/shared/config"
	"resume-builder/internal/usage"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	return config.Config{
		Env:               "test",
		StoreBackend:      config.StoreMemory,
		ObjectStoreType:   "local",
		LocalStoreDir:     t.TempDir(),
		QueueBackend:      config.QueueNone,
		FrontendURL:       "http://localhost:5173",
		CORSAllowOrigin:   []string{"http://localhost:5173"},
		RateLimitRequests: 100,
		RateLimitWindow:   15 * time.Minute,
	}
}

func call(t *testing.T, app *App, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		require.NoError(t, err)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	app.Router.ServeHTTP(w, req)
	return w
}

func TestBuildMemoryAppServesAccountResumeAndExportFlow(t *testing.T) {
	app, err := Build(testConfig(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close(context.Background()) })

	w := call(t, app, http.MethodGet, "/api/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = call(t, app, http.MethodGet, "/api/resumes", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = call(t, app, http.MethodPost, "/api/auth/register", "", map[string]any{
		"email":     "ada@example.com",
		"password":  "correct horse",
		"firstName": "Ada",
		"lastName":  "Lovelace",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var session struct {
		AccessToken string `json:"accessToken"`
		User        struct {
			ID string `json:"id"`
		} `json:"user"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &session))
	require.NotEmpty(t, session.AccessToken)

	w = call(t, app, http.MethodPost, "/api/resumes", session.AccessToken, map[string]any{
		"title": "Engine Notes",
		"data": map[string]any{
			"personal":   map[string]any{"firstName": "Ada", "lastName": "Lovelace", "email": "ada@example.com"},
			"experience": []map[string]any{{"title": "Analyst", "company": "Babbage", "description": "Wrote the first algorithm."}},
			"skills":     []string{"math"},
		},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	w = call(t, app, http.MethodPost, "/api/resumes/"+created.ID+"/score", session.AccessToken, nil)
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// Free accounts have no downloads.
	w = call(t, app, http.MethodGet, "/api/resumes/"+created.ID+"/pdf", session.AccessToken, nil)
	assert.Equal(t, http.StatusPaymentRequired, w.Code)

	_, err = app.UsageService.Grant(context.Background(), session.User.ID, usage.Grant{Plan: "single", Downloads: 1})
	require.NoError(t, err)

	w = call(t, app, http.MethodGet, "/api/resumes/"+created.ID+"/pdf", session.AccessToken, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("%PDF")))
	assert.Equal(t, "0", w.Header().Get("X-Downloads-Remaining"))
}

func TestBuildWithoutStripeDisablesCheckoutAndWebhook(t *testing.T) {
	app, err := Build(testConfig(t))
	require.NoError(t, err)

	w := call(t, app, http.MethodGet, "/api/payment/plans", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = call(t, app, http.MethodPost, "/api/payment/webhook", "", map[string]any{"id": "evt_1"})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestBuildRequiresSQSQueueURL(t *testing.T) {
	cfg := testConfig(t)
	cfg.QueueBackend = config.QueueSQS
	_, err := Build(cfg)
	assert.Error(t, err)
}

func TestMetricsEndpoint(t *testing.T) {
	app, err := Build(testConfig(t))
	require.NoError(t, err)

	w := call(t, app, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "payments_completed_total")
}

func TestAssembleClosesOpenedConnectionsWhenStoreFails(t *testing.T) {
	cfg := testConfig(t)
	cfg.ObjectStoreType = "s3"
	cfg.S3Bucket = ""

	closed := 0
	app := &App{Config: cfg}
	app.closers = append(app.closers, func(context.Context) error {
		closed++
		return nil
	})

	err := app.assemble(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "S3_BUCKET")
	assert.Equal(t, 1, closed)
}
