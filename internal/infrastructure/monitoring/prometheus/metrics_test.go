package prometheus

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAppMetrics_AllMetricsRegistered(t *testing.T) {
	c := newTestCollector(t)
	m := NewAppMetrics(c)
	require.NotNil(t, m)

	RecordHTTPRequest(m, "POST", "/api/v1/predict", 200, 5*time.Millisecond)
	RecordTrainingRun(m, "file", true, 3*time.Second, 17, 900, 4)
	RecordEmptyGroupTargets(m, "merge", 2)
	RecordAssignment(m, "exact", 20*time.Microsecond)
	RecordAssignment(m, "weighted", 30*time.Microsecond)
	RecordCacheAccess(m, "assignment", true)
	RecordCacheAccess(m, "assignment", false)
	RecordDBQuery(m, "save_assignments", time.Millisecond, errors.New("boom"))
	RecordError(m, "http", "CLU_001")

	out := scrapeMetrics(t, c)
	assert.Contains(t, out, `test_unit_http_requests_total{method="POST",path="/api/v1/predict",status_code="200"} 1`)
	assert.Contains(t, out, `test_unit_training_runs_total{status="success"} 1`)
	assert.Contains(t, out, "test_unit_training_groups 17")
	assert.Contains(t, out, "test_unit_training_records 900")
	assert.Contains(t, out, `test_unit_empty_group_targets_total{pass="merge"} 2`)
	assert.Contains(t, out, `test_unit_assignments_total{tier="exact"} 1`)
	assert.Contains(t, out, `test_unit_assignments_total{tier="weighted"} 1`)
	assert.Contains(t, out, `test_unit_cache_hits_total{cache="assignment"} 1`)
	assert.Contains(t, out, `test_unit_cache_misses_total{cache="assignment"} 1`)
	assert.Contains(t, out, `test_unit_errors_total{component="postgres",error_code="query_error"} 1`)
	assert.Contains(t, out, `test_unit_errors_total{component="http",error_code="CLU_001"} 1`)
}

func TestRecordTrainingRun_FailureLeavesGaugesUntouched(t *testing.T) {
	c := newTestCollector(t)
	m := NewAppMetrics(c)

	RecordTrainingRun(m, "kafka", false, time.Second, 0, 0, 0)

	out := scrapeMetrics(t, c)
	assert.Contains(t, out, `test_unit_training_runs_total{status="failure"} 1`)
	assert.NotContains(t, out, "test_unit_training_groups 0")
}

func TestHelpers_NilMetricsAreNoops(t *testing.T) {
	assert.NotPanics(t, func() {
		RecordHTTPRequest(nil, "GET", "/", 200, time.Millisecond)
		RecordTrainingRun(nil, "file", true, time.Second, 1, 1, 1)
		RecordEmptyGroupTargets(nil, "split", 1)
		RecordAssignment(nil, "none", time.Millisecond)
		RecordCacheAccess(nil, "assignment", true)
		RecordDBQuery(nil, "op", time.Millisecond, nil)
		RecordError(nil, "c", "x")
	})
}

//Personal.AI order the ending
