package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	app "github.com/turtacn/TripMatch/internal/application/clustering"
	"github.com/turtacn/TripMatch/internal/domain/cluster"
	"github.com/turtacn/TripMatch/internal/infrastructure/ingest"
	"github.com/turtacn/TripMatch/internal/intelligence/matcher"
	"github.com/turtacn/TripMatch/pkg/errors"
)

// ─────────────────────────────────────────────────────────────────────────────
// Mocks
// ─────────────────────────────────────────────────────────────────────────────

type mockTrainingService struct{ mock.Mock }

func (m *mockTrainingService) TrainFromFile(ctx context.Context, path string, opts app.TrainOptions) (*app.TrainingSummary, error) {
	args := m.Called(ctx, path, opts)
	if s, _ := args.Get(0).(*app.TrainingSummary); s != nil {
		return s, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockTrainingService) TrainFromRecords(ctx context.Context, records []ingest.Record, opts app.TrainOptions) (*app.TrainingSummary, error) {
	args := m.Called(ctx, records, opts)
	if s, _ := args.Get(0).(*app.TrainingSummary); s != nil {
		return s, args.Error(1)
	}
	return nil, args.Error(1)
}

type mockAssignmentService struct{ mock.Mock }

func (m *mockAssignmentService) Assign(ctx context.Context, req app.AssignRequest) (*app.AssignResult, error) {
	args := m.Called(ctx, req)
	if r, _ := args.Get(0).(*app.AssignResult); r != nil {
		return r, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockAssignmentService) Matches(ctx context.Context, recordID string, limit, offset int) (*app.MatchesResult, error) {
	args := m.Called(ctx, recordID, limit, offset)
	if r, _ := args.Get(0).(*app.MatchesResult); r != nil {
		return r, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockAssignmentService) Group(ctx context.Context, label cluster.Label) (*app.GroupDetail, error) {
	args := m.Called(ctx, label)
	if g, _ := args.Get(0).(*app.GroupDetail); g != nil {
		return g, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockAssignmentService) ActiveModel(ctx context.Context) (*app.ModelSummary, error) {
	args := m.Called(ctx)
	if s, _ := args.Get(0).(*app.ModelSummary); s != nil {
		return s, args.Error(1)
	}
	return nil, args.Error(1)
}

// ─────────────────────────────────────────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────────────────────────────────────────

func newTestRouter(h *ClusteringHandler) http.Handler {
	r := chi.NewRouter()
	r.Post("/train", h.Train)
	r.Post("/predict", h.Predict)
	r.Get("/model", h.GetModel)
	r.Get("/groups/{label}", h.GetGroup)
	r.Get("/members/{recordID}/matches", h.GetMatches)
	return r
}

func do(t *testing.T, h http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

// ─────────────────────────────────────────────────────────────────────────────
// Predict
// ─────────────────────────────────────────────────────────────────────────────

func TestPredict_Success(t *testing.T) {
	as := new(mockAssignmentService)
	as.On("Assign", mock.Anything, app.AssignRequest{
		RecordID: "u42", Destination: "Paris", Spontaneous: "Yes", DepartureTiming: "Weekend",
	}).Return(&app.AssignResult{Found: true, Label: "3", Tier: matcher.TierExact, Version: "v1"}, nil)

	h := NewClusteringHandler(nil, as, ClusteringHandlerConfig{}, nil)
	w := do(t, newTestRouter(h), http.MethodPost, "/predict", map[string]interface{}{
		"_id":             "u42",
		"wantstotravelto": "Paris",
		"isspontanious":   "Yes",
		"wantstoleaveon":  "Weekend",
		"name":            "Ada",
	})

	require.Equal(t, http.StatusOK, w.Code)
	var resp PredictResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "3", resp.AssignedCluster)
	assert.Equal(t, "exact", resp.Tier)
	assert.Equal(t, "v1", resp.Version)
	assert.Equal(t, "Ada", resp.UserData["name"])
	as.AssertExpectations(t)
}

func TestPredict_NoMatch(t *testing.T) {
	as := new(mockAssignmentService)
	as.On("Assign", mock.Anything, mock.Anything).Return(&app.AssignResult{Found: false, Tier: matcher.TierNone}, nil)

	h := NewClusteringHandler(nil, as, ClusteringHandlerConfig{}, nil)
	w := do(t, newTestRouter(h), http.MethodPost, "/predict", map[string]string{
		"wantstotravelto": "lima", "isspontanious": "no", "wantstoleaveon": "year",
	})

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "NO_MATCH", decodeError(t, w).Code)
}

func TestPredict_ServiceErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"schema violation", errors.New(errors.ErrCodeSchemaViolation, "missing field"), http.StatusBadRequest},
		{"no model", errors.New(errors.ErrCodeModelNotTrained, "no model"), http.StatusConflict},
		{"internal", errors.New(errors.ErrCodeInternal, "boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			as := new(mockAssignmentService)
			as.On("Assign", mock.Anything, mock.Anything).Return(nil, tt.err)

			h := NewClusteringHandler(nil, as, ClusteringHandlerConfig{}, nil)
			w := do(t, newTestRouter(h), http.MethodPost, "/predict", map[string]string{"isspontanious": "yes"})

			assert.Equal(t, tt.status, w.Code)
			resp := decodeError(t, w)
			assert.Equal(t, string(errors.GetCode(tt.err)), resp.Code)
			if tt.status >= http.StatusInternalServerError {
				assert.NotContains(t, resp.Error, "boom")
			}
		})
	}
}

func TestPredict_NonStringField(t *testing.T) {
	as := new(mockAssignmentService)
	h := NewClusteringHandler(nil, as, ClusteringHandlerConfig{}, nil)

	w := do(t, newTestRouter(h), http.MethodPost, "/predict", map[string]interface{}{
		"wantstotravelto": 7, "isspontanious": "yes", "wantstoleaveon": "weekend",
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, string(errors.ErrCodeSchemaViolation), decodeError(t, w).Code)
	as.AssertNotCalled(t, "Assign", mock.Anything, mock.Anything)
}

func TestPredict_BadBody(t *testing.T) {
	h := NewClusteringHandler(nil, new(mockAssignmentService), ClusteringHandlerConfig{MaxBodyBytes: 16}, nil)
	r := newTestRouter(h)

	assert.Equal(t, http.StatusBadRequest, do(t, r, http.MethodPost, "/predict", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(t, r, http.MethodPost, "/predict", "{not json").Code)
	assert.Equal(t, http.StatusBadRequest, do(t, r, http.MethodPost, "/predict",
		`{"wantstotravelto":"a very long destination name"}`).Code)
}

// ─────────────────────────────────────────────────────────────────────────────
// Train
// ─────────────────────────────────────────────────────────────────────────────

func TestTrain_InlineRecords(t *testing.T) {
	ts := new(mockTrainingService)
	seed := int64(11)
	ts.On("TrainFromRecords", mock.Anything, mock.MatchedBy(func(recs []ingest.Record) bool {
		return len(recs) == 2 && recs[0].ID == "a" && recs[1].ID == "1" &&
			recs[0].Vector.Destination() == "paris"
	}), app.TrainOptions{Seed: &seed, Source: "api"}).
		Return(&app.TrainingSummary{Version: "v2", GroupCount: 1, RecordCount: 2}, nil)

	h := NewClusteringHandler(ts, new(mockAssignmentService), ClusteringHandlerConfig{}, nil)
	w := do(t, newTestRouter(h), http.MethodPost, "/train", TrainRequest{
		Seed: &seed,
		Records: []map[string]string{
			{"_id": "a", "wantstotravelto": "Paris", "isspontanious": "yes", "wantstoleaveon": "weekend"},
			{"wantstotravelto": "Rome", "isspontanious": "no", "wantstoleaveon": "month"},
		},
	})

	require.Equal(t, http.StatusOK, w.Code)
	var sum app.TrainingSummary
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &sum))
	assert.Equal(t, "v2", sum.Version)
	ts.AssertExpectations(t)
}

func TestTrain_InvalidInlineRecord(t *testing.T) {
	ts := new(mockTrainingService)
	h := NewClusteringHandler(ts, new(mockAssignmentService), ClusteringHandlerConfig{}, nil)

	w := do(t, newTestRouter(h), http.MethodPost, "/train", TrainRequest{
		Records: []map[string]string{{"wantstotravelto": "Paris"}},
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, string(errors.ErrCodeSchemaViolation), decodeError(t, w).Code)
	assert.Contains(t, decodeError(t, w).Detail, "index=0")
}

func TestTrain_DefaultDataFile(t *testing.T) {
	ts := new(mockTrainingService)
	ts.On("TrainFromFile", mock.Anything, "/data/travel.csv", app.TrainOptions{Source: "api"}).
		Return(&app.TrainingSummary{Version: "v3"}, nil)

	h := NewClusteringHandler(ts, new(mockAssignmentService), ClusteringHandlerConfig{DataFile: "/data/travel.csv"}, nil)
	w := do(t, newTestRouter(h), http.MethodPost, "/train", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	ts.AssertExpectations(t)
}

func TestTrain_NamedFileConfinedToDataDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "batch.csv"), []byte("x"), 0o600))

	ts := new(mockTrainingService)
	ts.On("TrainFromFile", mock.Anything, filepath.Join(dir, "batch.csv"), mock.Anything).
		Return(&app.TrainingSummary{Version: "v4"}, nil)
	h := NewClusteringHandler(ts, new(mockAssignmentService), ClusteringHandlerConfig{DataDir: dir}, nil)
	r := newTestRouter(h)

	assert.Equal(t, http.StatusOK, do(t, r, http.MethodPost, "/train", TrainRequest{File: "batch.csv"}).Code)
	// Traversal is clamped to the data directory.
	ts.On("TrainFromFile", mock.Anything, filepath.Join(dir, "etc/passwd"), mock.Anything).
		Return(nil, errors.New(errors.ErrCodeNotFound, "input file not found"))
	assert.Equal(t, http.StatusNotFound, do(t, r, http.MethodPost, "/train", TrainRequest{File: "../../etc/passwd"}).Code)
	ts.AssertExpectations(t)
}

func TestTrain_NamedFileDisabled(t *testing.T) {
	h := NewClusteringHandler(new(mockTrainingService), new(mockAssignmentService), ClusteringHandlerConfig{}, nil)
	w := do(t, newTestRouter(h), http.MethodPost, "/train", TrainRequest{File: "batch.csv"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestTrain_Errors(t *testing.T) {
	ts := new(mockTrainingService)
	ts.On("TrainFromFile", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, errors.New(errors.ErrCodeTrainingInProgress, "busy"))
	h := NewClusteringHandler(ts, new(mockAssignmentService), ClusteringHandlerConfig{DataFile: "x.csv"}, nil)
	assert.Equal(t, http.StatusConflict, do(t, newTestRouter(h), http.MethodPost, "/train", nil).Code)

	disabled := NewClusteringHandler(nil, new(mockAssignmentService), ClusteringHandlerConfig{}, nil)
	assert.Equal(t, http.StatusServiceUnavailable, do(t, newTestRouter(disabled), http.MethodPost, "/train", nil).Code)
}

// ─────────────────────────────────────────────────────────────────────────────
// Reads
// ─────────────────────────────────────────────────────────────────────────────

func TestGetModel(t *testing.T) {
	as := new(mockAssignmentService)
	as.On("ActiveModel", mock.Anything).Return(&app.ModelSummary{Version: "v1", GroupCount: 2}, nil).Once()
	as.On("ActiveModel", mock.Anything).Return(nil, errors.New(errors.ErrCodeModelNotTrained, "no model")).Once()
	r := newTestRouter(NewClusteringHandler(nil, as, ClusteringHandlerConfig{}, nil))

	w := do(t, r, http.MethodGet, "/model", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var sum app.ModelSummary
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &sum))
	assert.Equal(t, 2, sum.GroupCount)

	assert.Equal(t, http.StatusConflict, do(t, r, http.MethodGet, "/model", nil).Code)
}

func TestGetGroup(t *testing.T) {
	as := new(mockAssignmentService)
	as.On("Group", mock.Anything, cluster.Label("1")).Return(&app.GroupDetail{Label: "1", Size: 20}, nil)
	as.On("Group", mock.Anything, cluster.Label("9")).Return(nil, errors.New(errors.ErrCodeGroupNotFound, "no group"))
	r := newTestRouter(NewClusteringHandler(nil, as, ClusteringHandlerConfig{}, nil))

	assert.Equal(t, http.StatusOK, do(t, r, http.MethodGet, "/groups/1", nil).Code)
	w := do(t, r, http.MethodGet, "/groups/9", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, string(errors.ErrCodeGroupNotFound), decodeError(t, w).Code)
}

func TestGetMatches_Pagination(t *testing.T) {
	as := new(mockAssignmentService)
	as.On("Matches", mock.Anything, "u1", 500, 10).Return(&app.MatchesResult{RecordID: "u1", Label: "0"}, nil)
	as.On("Matches", mock.Anything, "u2", 50, 0).Return(nil, errors.New(errors.ErrCodeMemberNotFound, "unknown"))
	r := newTestRouter(NewClusteringHandler(nil, as, ClusteringHandlerConfig{}, nil))

	assert.Equal(t, http.StatusOK, do(t, r, http.MethodGet, "/members/u1/matches?limit=9999&offset=10", nil).Code)
	assert.Equal(t, http.StatusNotFound, do(t, r, http.MethodGet, "/members/u2/matches?limit=abc", nil).Code)
	as.AssertExpectations(t)
}

//Personal.AI order the ending
