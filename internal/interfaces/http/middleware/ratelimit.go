package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/httprate"

	"github.com/turtacn/TripMatch/internal/infrastructure/monitoring/logging"
)

// RateLimitConfig bounds requests per client.
type RateLimitConfig struct {
	// Requests per Window. Zero disables limiting.
	Requests int
	Window   time.Duration
	// KeyFunc defaults to the client IP. chimw.RealIP runs first, so
	// RemoteAddr already reflects X-Forwarded-For.
	KeyFunc httprate.KeyFunc
}

// RateLimitMiddleware wraps go-chi/httprate for RouterConfig.
type RateLimitMiddleware struct {
	handler func(http.Handler) http.Handler
}

// NewRateLimitMiddleware builds the limiter. Rejections answer 429 with the
// API's error body.
func NewRateLimitMiddleware(cfg RateLimitConfig, logger logging.Logger) *RateLimitMiddleware {
	if cfg.Requests <= 0 {
		return &RateLimitMiddleware{handler: func(next http.Handler) http.Handler { return next }}
	}
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = httprate.KeyByIP
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	logger = logger.Named("ratelimit")

	return &RateLimitMiddleware{handler: httprate.Limit(cfg.Requests, cfg.Window,
		httprate.WithKeyFuncs(cfg.KeyFunc),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			logger.Warn("rate limit exceeded",
				logging.String("remote_addr", r.RemoteAddr),
				logging.String("path", r.URL.Path))
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":"rate limit exceeded","code":"RATE_LIMITED"}`))
		}),
	)}
}

// Handler applies the limit.
func (m *RateLimitMiddleware) Handler(next http.Handler) http.Handler {
	return m.handler(next)
}

//Personal.AI order the ending
