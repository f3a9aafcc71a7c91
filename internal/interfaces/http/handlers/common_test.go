package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/turtacn/TripMatch/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/TripMatch/pkg/errors"
)

func TestWriteAppError_ClientErrorKeepsMessage(t *testing.T) {
	w := httptest.NewRecorder()
	writeAppError(w, nil, errors.New(errors.ErrCodeGroupNotFound, "group 7 does not exist").WithDetail("label=7"))

	assert.Equal(t, http.StatusNotFound, w.Code)
	resp := decodeError(t, w)
	assert.Equal(t, "group 7 does not exist", resp.Error)
	assert.Equal(t, "label=7", resp.Detail)
}

func TestWriteAppError_ServerErrorIsLoggedAndMasked(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	w := httptest.NewRecorder()
	writeAppError(w, logging.NewLoggerFromCore(core), errors.New(errors.ErrCodeDatabaseError, "pq: relation missing"))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	resp := decodeError(t, w)
	assert.NotContains(t, resp.Error, "relation")
	assert.Empty(t, resp.Detail)
	assert.Equal(t, 1, logs.Len())
}

func TestParsePagination(t *testing.T) {
	tests := []struct {
		query         string
		limit, offset int
	}{
		{"", 50, 0},
		{"limit=10&offset=5", 10, 5},
		{"limit=0&offset=-3", 50, 0},
		{"limit=100000", 500, 0},
	}
	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodGet, "/x?"+tt.query, nil)
		limit, offset := parsePagination(r, 50, 500)
		assert.Equal(t, tt.limit, limit, tt.query)
		assert.Equal(t, tt.offset, offset, tt.query)
	}
}

//Personal.AI order the ending
