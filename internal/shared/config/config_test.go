package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("ENV", "")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("MONGODB_URI", "")
	t.Setenv("STORE_BACKEND", "")
	t.Setenv("QUEUE_BACKEND", "")
	t.Setenv("FRONTEND_URL", "")
	t.Setenv("CORS_ALLOW_ORIGINS", "")
	t.Setenv("RATE_LIMIT_REQUESTS", "")
	t.Setenv("RATE_LIMIT_WINDOW", "")
	t.Setenv("ACCESS_TOKEN_TTL", "")

	cfg := Load()
	if cfg.Env != "dev" {
		t.Fatalf("expected dev env, got %q", cfg.Env)
	}
	if cfg.StoreBackend != StoreMemory {
		t.Fatalf("expected memory backend, got %q", cfg.StoreBackend)
	}
	if cfg.QueueBackend != QueueNone {
		t.Fatalf("expected no queue, got %q", cfg.QueueBackend)
	}
	if cfg.RateLimitRequests != 100 || cfg.RateLimitWindow != 15*time.Minute {
		t.Fatalf("unexpected rate limit %d/%s", cfg.RateLimitRequests, cfg.RateLimitWindow)
	}
	if cfg.AccessTokenTTL != 15*time.Minute {
		t.Fatalf("unexpected access ttl %s", cfg.AccessTokenTTL)
	}
	if len(cfg.CORSAllowOrigin) != 1 || cfg.CORSAllowOrigin[0] != "http://localhost:5173" {
		t.Fatalf("unexpected cors origins %v", cfg.CORSAllowOrigin)
	}
}

func TestNormalizeStoreBackendInfersFromURLs(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		dbURL    string
		mongoURI string
		want     string
	}{
		{name: "explicit mongo", raw: "mongodb", dbURL: "postgres://x", want: StoreMongo},
		{name: "postgres url", dbURL: "postgres://x", want: StorePostgres},
		{name: "mongo url", mongoURI: "mongodb://x", want: StoreMongo},
		{name: "nothing", want: StoreMemory},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := normalizeStoreBackend(tt.raw, tt.dbURL, tt.mongoURI); got != tt.want {
				t.Fatalf("got %q want %q", got, tt.want)
			}
		})
	}
}

func TestGetDurationFallsBackOnInvalid(t *testing.T) {
	t.Setenv("RATE_LIMIT_WINDOW", "soon")
	if got := getDuration("RATE_LIMIT_WINDOW", time.Minute); got != time.Minute {
		t.Fatalf("expected fallback, got %s", got)
	}
}
