package prometheus

import (
	"strconv"
	"time"
)

// AppMetrics holds every metric the service records.
type AppMetrics struct {
	// HTTP
	HTTPRequestsTotal   CounterVec
	HTTPRequestDuration HistogramVec
	HTTPActiveRequests  GaugeVec

	// Training
	TrainingRunsTotal      CounterVec
	TrainingDuration       HistogramVec
	TrainingGroups         GaugeVec
	TrainingRecords        GaugeVec
	BalanceIterations      HistogramVec
	EmptyGroupTargetsTotal CounterVec

	// Assignment
	AssignmentsTotal   CounterVec
	AssignmentDuration HistogramVec

	// Infrastructure
	CacheHitsTotal         CounterVec
	CacheMissesTotal       CounterVec
	DBQueryDuration        HistogramVec
	MessageProcessDuration HistogramVec
	ErrorsTotal            CounterVec
}

// Default buckets.
var (
	DefaultHTTPDurationBuckets     = []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10}
	DefaultTrainingDurationBuckets = []float64{.1, .5, 1, 5, 10, 30, 60, 120, 300, 600}
	DefaultAssignDurationBuckets   = []float64{.00001, .00005, .0001, .0005, .001, .005, .01}
	DefaultDBDurationBuckets       = []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 5}
	DefaultIterationBuckets        = []float64{1, 2, 3, 5, 8, 13, 21, 34, 50}
)

// NewAppMetrics registers all metrics on collector.
func NewAppMetrics(collector MetricsCollector) *AppMetrics {
	m := &AppMetrics{}

	m.HTTPRequestsTotal = collector.RegisterCounter("http_requests_total", "Total HTTP requests", "method", "path", "status_code")
	m.HTTPRequestDuration = collector.RegisterHistogram("http_request_duration_seconds", "HTTP request duration", DefaultHTTPDurationBuckets, "method", "path")
	m.HTTPActiveRequests = collector.RegisterGauge("http_active_requests", "Active HTTP requests", "method")

	m.TrainingRunsTotal = collector.RegisterCounter("training_runs_total", "Training runs by outcome", "status")
	m.TrainingDuration = collector.RegisterHistogram("training_duration_seconds", "Training run duration", DefaultTrainingDurationBuckets, "source")
	m.TrainingGroups = collector.RegisterGauge("training_groups", "Group count of the published model")
	m.TrainingRecords = collector.RegisterGauge("training_records", "Record count of the published model")
	m.BalanceIterations = collector.RegisterHistogram("balance_iterations", "Balance iterations per training run", DefaultIterationBuckets)
	m.EmptyGroupTargetsTotal = collector.RegisterCounter("empty_group_targets_total", "Groups skipped for lack of a merge or split target", "pass")

	m.AssignmentsTotal = collector.RegisterCounter("assignments_total", "Assignments by match tier", "tier")
	m.AssignmentDuration = collector.RegisterHistogram("assignment_duration_seconds", "Assignment scan duration", DefaultAssignDurationBuckets)

	m.CacheHitsTotal = collector.RegisterCounter("cache_hits_total", "Cache hits", "cache")
	m.CacheMissesTotal = collector.RegisterCounter("cache_misses_total", "Cache misses", "cache")
	m.DBQueryDuration = collector.RegisterHistogram("db_query_duration_seconds", "Database query duration", DefaultDBDurationBuckets, "operation")
	m.MessageProcessDuration = collector.RegisterHistogram("mq_process_duration_seconds", "Message processing duration", DefaultHTTPDurationBuckets, "topic")
	m.ErrorsTotal = collector.RegisterCounter("errors_total", "Total errors", "component", "error_code")

	return m
}

// ─────────────────────────────────────────────────────────────────────────────
// Helpers. All accept a nil *AppMetrics so callers can run without metrics.
// ─────────────────────────────────────────────────────────────────────────────

// RecordHTTPRequest records one served request.
func RecordHTTPRequest(m *AppMetrics, method, path string, statusCode int, duration time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(statusCode)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordTrainingRun records the outcome of a training run.
func RecordTrainingRun(m *AppMetrics, source string, success bool, duration time.Duration, groups, records, iterations int) {
	if m == nil {
		return
	}
	status := "success"
	if !success {
		status = "failure"
	}
	m.TrainingRunsTotal.WithLabelValues(status).Inc()
	m.TrainingDuration.WithLabelValues(source).Observe(duration.Seconds())
	if success {
		m.TrainingGroups.WithLabelValues().Set(float64(groups))
		m.TrainingRecords.WithLabelValues().Set(float64(records))
		m.BalanceIterations.WithLabelValues().Observe(float64(iterations))
	}
}

// RecordEmptyGroupTargets adds n skipped groups for the given pass ("merge" or "split").
func RecordEmptyGroupTargets(m *AppMetrics, pass string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.EmptyGroupTargetsTotal.WithLabelValues(pass).Add(float64(n))
}

// RecordAssignment records one assignment by tier ("exact", "weighted", "none").
func RecordAssignment(m *AppMetrics, tier string, duration time.Duration) {
	if m == nil {
		return
	}
	m.AssignmentsTotal.WithLabelValues(tier).Inc()
	m.AssignmentDuration.WithLabelValues().Observe(duration.Seconds())
}

// RecordCacheAccess records a cache hit or miss.
func RecordCacheAccess(m *AppMetrics, cache string, hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.CacheHitsTotal.WithLabelValues(cache).Inc()
	} else {
		m.CacheMissesTotal.WithLabelValues(cache).Inc()
	}
}

// RecordDBQuery records a database call.
func RecordDBQuery(m *AppMetrics, operation string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	m.DBQueryDuration.WithLabelValues(operation).Observe(duration.Seconds())
	if err != nil {
		m.ErrorsTotal.WithLabelValues("postgres", "query_error").Inc()
	}
}

// RecordError counts an error by component and code.
func RecordError(m *AppMetrics, component, code string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(component, code).Inc()
}

//Personal.AI order the ending
