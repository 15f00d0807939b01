package server

import (
	"github.com/gin-gonic/gin"

	googleauth "resume-builder/internal/auth"
	"resume-builder/internal/exports"
	"resume-builder/internal/payments"
	"resume-builder/internal/resumes"
	"resume-builder/internal/services/health"
	"resume-builder/internal/shared/config"
	"resume-builder/internal/shared/metrics"
	"resume-builder/internal/shared/server/middleware"
	"resume-builder/internal/usage"
	"resume-builder/internal/users"
)

// RouterDeps wires handlers into the router.
type RouterDeps struct {
	Config          config.Config
	Verifier        middleware.TokenVerifier
	Health          *health.Service
	UserHandler     *users.Handler
	GoogleAuth      *googleauth.GoogleService
	ResumeHandler   *resumes.Handler
	ExportHandler   *exports.Handler
	UsageHandler    *usage.Handler
	PaymentsHandler *payments.Handler
	RateLimiter     *middleware.RateLimiter
}

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	cfg := deps.Config
	if cfg.Env != "test" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(cfg.CORSAllowOrigin),
	)

	r.GET("/metrics", metrics.Handler())

	api := r.Group("/api")
	healthSvc := deps.Health
	if healthSvc == nil {
		healthSvc = health.NewService()
	}
	api.GET("/health", health.Handler(healthSvc))

	// The webhook authenticates by signature and must see the raw body.
	if deps.PaymentsHandler != nil {
		deps.PaymentsHandler.RegisterWebhook(api)
	}

	limit := middleware.RateLimit(middleware.RateLimitConfig{
		Rules: map[string]middleware.RateLimitRule{
			"DEFAULT": middleware.WindowRule(cfg.RateLimitRequests, cfg.RateLimitWindow),
		},
		Limiter: deps.RateLimiter,
	})

	public := api.Group("", limit)
	if deps.UserHandler != nil {
		deps.UserHandler.RegisterPublicRoutes(public)
	}
	if deps.GoogleAuth != nil {
		deps.GoogleAuth.RegisterRoutes(public)
	}
	if deps.PaymentsHandler != nil {
		deps.PaymentsHandler.RegisterPublicRoutes(public)
	}

	protected := api.Group("", middleware.Auth(deps.Verifier), limit)
	if deps.UserHandler != nil {
		deps.UserHandler.RegisterRoutes(protected)
	}
	if deps.ResumeHandler != nil {
		deps.ResumeHandler.RegisterRoutes(protected)
	}
	if deps.ExportHandler != nil {
		deps.ExportHandler.RegisterRoutes(protected)
	}
	if deps.UsageHandler != nil {
		deps.UsageHandler.RegisterRoutes(protected)
	}
	if deps.PaymentsHandler != nil {
		deps.PaymentsHandler.RegisterRoutes(protected)
	}

	return r
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":8080"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}
