package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func serve(h http.Handler, remote string) *httptest.ResponseRecorder {
	r := httptest.NewRequest(http.MethodPost, "/api/v1/predict", nil)
	r.RemoteAddr = remote
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w
}

func TestRateLimit_RejectsOverLimit(t *testing.T) {
	h := NewRateLimitMiddleware(RateLimitConfig{Requests: 2, Window: time.Minute}, nil).Handler(okHandler())

	assert.Equal(t, http.StatusOK, serve(h, "10.0.0.1:1234").Code)
	assert.Equal(t, http.StatusOK, serve(h, "10.0.0.1:1234").Code)

	w := serve(h, "10.0.0.1:1234")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.JSONEq(t, `{"error":"rate limit exceeded","code":"RATE_LIMITED"}`, w.Body.String())

	// Another client has its own budget.
	assert.Equal(t, http.StatusOK, serve(h, "10.0.0.2:1234").Code)
}

func TestRateLimit_ZeroDisables(t *testing.T) {
	h := NewRateLimitMiddleware(RateLimitConfig{}, nil).Handler(okHandler())
	for i := 0; i < 50; i++ {
		assert.Equal(t, http.StatusOK, serve(h, "10.0.0.1:1234").Code)
	}
}

//Personal.AI order the ending
