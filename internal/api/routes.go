package api

import (
	"cropstudy/internal/health"
	"cropstudy/internal/observability"
	"log/slog"
	"net/http"
)

// RouterConfig holds dependencies for the router.
type RouterConfig struct {
	Run            RunView
	Metrics        *observability.Metrics
	MetricsHandler http.Handler
	HealthChecker  *health.Checker
	APIKey         string
	Logger         *slog.Logger // nil: slog default tagged with the component
}

// NewRouter creates a new HTTP router with all routes configured.
func NewRouter(cfg RouterConfig) http.Handler {
	handler := NewHandler(cfg.Run, cfg.HealthChecker)

	mux := http.NewServeMux()

	// Probes and metrics - no auth required
	mux.HandleFunc("GET /livez", handler.Livez)
	mux.HandleFunc("GET /readyz", handler.Readyz)
	if cfg.MetricsHandler != nil {
		mux.Handle("GET /metrics", cfg.MetricsHandler)
	}

	requireToken := RequireToken(cfg.APIKey)
	mux.Handle("GET /v1/run", requireToken(http.HandlerFunc(handler.GetRun)))
	mux.Handle("GET /v1/run/jobs", requireToken(http.HandlerFunc(handler.ListJobs)))
	mux.Handle("GET /v1/run/jobs/{jobId}", requireToken(http.HandlerFunc(handler.GetJob)))

	logger := cfg.Logger
	if logger == nil {
		logger = slog.With("component", "status-api")
	}

	// Recovery sits inside logging so a panic is logged with its 500.
	var h http.Handler = mux
	h = Recovery(logger)(h)
	h = RequestLogging(logger, cfg.Run, cfg.Metrics)(h)
	return h
}
