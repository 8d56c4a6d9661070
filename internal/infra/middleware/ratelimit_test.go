package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func doRequest(handler http.Handler, remoteAddr string) int {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = remoteAddr
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec.Code
}

func TestRateLimitDisabledWhenZero(t *testing.T) {
	handler := RateLimit(context.Background(), 0, 0)(okHandler())

	for i := 0; i < 50; i++ {
		assert.Equal(t, http.StatusOK, doRequest(handler, "10.0.0.1:1234"))
	}
}

func TestRateLimitEnforcesBurst(t *testing.T) {
	handler := RateLimit(context.Background(), 60, 2)(okHandler())

	assert.Equal(t, http.StatusOK, doRequest(handler, "10.0.0.1:1234"))
	assert.Equal(t, http.StatusOK, doRequest(handler, "10.0.0.1:1234"))
	assert.Equal(t, http.StatusTooManyRequests, doRequest(handler, "10.0.0.1:1234"))
}

func TestRateLimitIsPerClient(t *testing.T) {
	handler := RateLimit(context.Background(), 60, 1)(okHandler())

	assert.Equal(t, http.StatusOK, doRequest(handler, "10.0.0.1:1234"))
	assert.Equal(t, http.StatusTooManyRequests, doRequest(handler, "10.0.0.1:5678"))
	// A different IP has its own bucket.
	assert.Equal(t, http.StatusOK, doRequest(handler, "10.0.0.2:1234"))
}
