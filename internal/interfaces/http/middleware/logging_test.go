package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/turtacn/TripMatch/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/TripMatch/internal/infrastructure/monitoring/prometheus"
)

func newObservedRouter(t *testing.T, cfg LoggingConfig) (http.Handler, *observer.ObservedLogs, prometheus.MetricsCollector) {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	collector, err := prometheus.NewMetricsCollector(prometheus.CollectorConfig{Namespace: "test"}, logging.NewNopLogger())
	require.NoError(t, err)

	r := chi.NewRouter()
	r.Use(NewLoggingMiddleware(logging.NewLoggerFromCore(core), prometheus.NewAppMetrics(collector), cfg).Handler)
	r.Get("/groups/{label}", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	r.Get("/broken", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusInternalServerError) })
	r.Get("/missing", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNotFound) })
	r.Get("/slow", func(w http.ResponseWriter, _ *http.Request) { time.Sleep(20 * time.Millisecond) })
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	return r, logs, collector
}

func get(h http.Handler, path string) {
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
}

func TestLoggingMiddleware_LevelsByStatus(t *testing.T) {
	h, logs, _ := newObservedRouter(t, LoggingConfig{})

	get(h, "/groups/3")
	get(h, "/missing")
	get(h, "/broken")

	entries := logs.All()
	require.Len(t, entries, 3)
	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
	assert.Equal(t, int64(200), entries[0].ContextMap()["status"])
	assert.Equal(t, "/groups/3", entries[0].ContextMap()["path"])
	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
	assert.Equal(t, zapcore.ErrorLevel, entries[2].Level)
}

func TestLoggingMiddleware_SlowRequest(t *testing.T) {
	h, logs, _ := newObservedRouter(t, LoggingConfig{SlowThreshold: 5 * time.Millisecond})
	get(h, "/slow")
	assert.Equal(t, 1, logs.FilterMessage("slow request").Len())
}

func TestLoggingMiddleware_SkipPaths(t *testing.T) {
	h, logs, _ := newObservedRouter(t, DefaultLoggingConfig())
	get(h, "/healthz")
	assert.Zero(t, logs.Len())
}

func TestLoggingMiddleware_RecordsRoutePattern(t *testing.T) {
	h, _, collector := newObservedRouter(t, LoggingConfig{})
	get(h, "/groups/3")
	get(h, "/groups/4")

	w := httptest.NewRecorder()
	collector.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := w.Body.String()
	assert.Contains(t, body, `path="/groups/{label}"`)
	assert.NotContains(t, body, `path="/groups/3"`)
}

//Personal.AI order the ending
