package httpx

import (
	"log/slog"
	"net/http"

	"github.com/o4o-platform/ai-gateway/internal/ports"
	"github.com/o4o-platform/ai-gateway/internal/service"
)

// RouterServices holds all the services needed by the HTTP router.
type RouterServices struct {
	Jobs  *service.JobService
	DLQ   *service.DLQService
	Usage *service.UsageService
	Auth  *service.AuthService

	// Limiter enforces per-owner submission limits. Optional: nil disables
	// rate limiting (tests, single-user dev setups).
	Limiter ports.RateLimiter

	// BodyLimit caps request body size in bytes; 0 uses the default.
	BodyLimit int64

	// CompressionLevel is the gzip level for responses; 0 or less disables
	// compression.
	CompressionLevel int

	Logger *slog.Logger
}

// NewRouter creates and configures the API router with its middleware chain.
func NewRouter(services RouterServices) http.Handler {
	mux := http.NewServeMux()

	logger := services.Logger
	if logger == nil {
		logger = slog.Default()
	}

	jobHandlers := &JobHandlers{Svc: services.Jobs}
	streamHandlers := &StreamHandlers{Svc: services.Jobs}
	modelHandlers := &ModelHandlers{Svc: services.Jobs}

	authed := authWrap(services.Auth)
	limited := limitWrap(services.Limiter, logger)
	admin := RequireAdmin()

	mux.Handle("POST /api/ai/jobs", authed(limited(http.HandlerFunc(jobHandlers.Enqueue))))
	mux.Handle("GET /api/ai/jobs/metrics", authed(http.HandlerFunc(jobHandlers.Metrics)))
	mux.Handle("GET /api/ai/jobs/history", authed(http.HandlerFunc(jobHandlers.History)))
	mux.Handle("GET /api/ai/jobs/{id}", authed(http.HandlerFunc(jobHandlers.Get)))
	mux.Handle("DELETE /api/ai/jobs/{id}", authed(http.HandlerFunc(jobHandlers.Cancel)))
	mux.Handle("POST /api/ai/jobs/{id}/retry", authed(limited(http.HandlerFunc(jobHandlers.Retry))))
	mux.Handle("GET /api/ai/jobs/{id}/stream", authed(http.HandlerFunc(streamHandlers.Stream)))
	mux.Handle("GET /api/ai/models", authed(http.HandlerFunc(modelHandlers.List)))

	if services.DLQ != nil {
		dlqHandlers := &DLQHandlers{Svc: services.DLQ}
		mux.Handle("GET /api/ai/dlq", authed(admin(http.HandlerFunc(dlqHandlers.List))))
		mux.Handle("GET /api/ai/dlq/stats", authed(admin(http.HandlerFunc(dlqHandlers.Stats))))
		mux.Handle("POST /api/ai/dlq/{id}/retry", authed(admin(http.HandlerFunc(dlqHandlers.Retry))))
	}

	if services.Usage != nil {
		usageHandlers := &UsageHandlers{Svc: services.Usage}
		mux.Handle("GET /api/ai/usage/report", authed(admin(http.HandlerFunc(usageHandlers.Report))))
		mux.Handle("GET /api/ai/usage/current-month", authed(admin(http.HandlerFunc(usageHandlers.CurrentMonth))))
		mux.Handle("GET /api/ai/usage/last-n-days", authed(admin(http.HandlerFunc(usageHandlers.LastNDays))))
	}

	mux.Handle("GET /healthz", http.HandlerFunc(healthHandler))
	mux.Handle("HEAD /healthz", http.HandlerFunc(healthHandler))

	var handler http.Handler = MaxBody(services.BodyLimit)(mux)
	if services.CompressionLevel > 0 {
		handler = Compression(CompressionConfig{Level: services.CompressionLevel, Logger: logger})(handler)
	}
	handler = Logging(logger)(handler)
	handler = Recover(logger)(handler)
	return handler
}

// authWrap returns a no-op wrapper when auth is nil, otherwise RequireAuth.
func authWrap(auth *service.AuthService) func(http.Handler) http.Handler {
	if auth == nil {
		return func(h http.Handler) http.Handler { return h }
	}
	return RequireAuth(auth)
}

// limitWrap returns a no-op wrapper when the limiter is nil, otherwise RateLimit.
func limitWrap(limiter ports.RateLimiter, logger *slog.Logger) func(http.Handler) http.Handler {
	if limiter == nil {
		return func(h http.Handler) http.Handler { return h }
	}
	return RateLimit(limiter, logger)
}
