package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/turtacn/TripMatch/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/TripMatch/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/TripMatch/internal/interfaces/http/handlers"
	"github.com/turtacn/TripMatch/internal/interfaces/http/middleware"
)

// RouterConfig aggregates the handlers and middleware of the route tree.
// Nil entries are skipped.
type RouterConfig struct {
	ClusteringHandler *handlers.ClusteringHandler
	HealthHandler     *handlers.HealthHandler

	CORSMiddleware      *middleware.CORSMiddleware
	LoggingMiddleware   *middleware.LoggingMiddleware
	RateLimitMiddleware *middleware.RateLimitMiddleware

	MetricsCollector prometheus.MetricsCollector
	// MetricsPath defaults to /metrics.
	MetricsPath string
	Logger      logging.Logger
}

// NewRouter constructs the HTTP route tree.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	if cfg.CORSMiddleware != nil {
		r.Use(cfg.CORSMiddleware.Handler)
	}
	if cfg.LoggingMiddleware != nil {
		r.Use(cfg.LoggingMiddleware.Handler)
	}

	if cfg.HealthHandler != nil {
		r.Get("/healthz", cfg.HealthHandler.Liveness)
		r.Get("/readyz", cfg.HealthHandler.Readiness)
	}
	if cfg.MetricsCollector != nil {
		path := cfg.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		r.Handle(path, cfg.MetricsCollector.Handler())
	}

	r.Route("/api/v1", func(api chi.Router) {
		if cfg.RateLimitMiddleware != nil {
			api.Use(cfg.RateLimitMiddleware.Handler)
		}
		registerClusteringRoutes(api, cfg.ClusteringHandler)
	})

	// The legacy front end posts to /predict at the root.
	if cfg.ClusteringHandler != nil {
		r.With(rateLimit(cfg.RateLimitMiddleware)).Post("/predict", cfg.ClusteringHandler.Predict)
	}
	return r
}

func registerClusteringRoutes(r chi.Router, h *handlers.ClusteringHandler) {
	if h == nil {
		return
	}
	r.Post("/train", h.Train)
	r.Post("/predict", h.Predict)
	r.Get("/model", h.GetModel)
	r.Get("/groups/{label}", h.GetGroup)
	r.Get("/members/{recordID}/matches", h.GetMatches)
}

func rateLimit(m *middleware.RateLimitMiddleware) func(http.Handler) http.Handler {
	if m == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	return m.Handler
}

//Personal.AI order the ending
