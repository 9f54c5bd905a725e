package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiter_PerIP(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{Rate: 0.1, Burst: 1, CleanupInterval: time.Minute}, logging.Discard())
	defer rl.Stop()

	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) })
	h := rl.Middleware(ok)

	call := func(addr string) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = addr
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		return rr.Code
	}

	assert.Equal(t, http.StatusNoContent, call("10.0.0.1:1000"))
	assert.Equal(t, http.StatusTooManyRequests, call("10.0.0.1:2000"), "same IP, other port")
	assert.Equal(t, http.StatusNoContent, call("10.0.0.2:1000"))
	assert.Equal(t, 2, rl.Len())
}

func TestRateLimiter_CleanupDropsIdle(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{Rate: 1, Burst: 1, CleanupInterval: time.Minute}, logging.Discard())
	defer rl.Stop()

	require.True(t, rl.allow("10.0.0.1"))
	rl.cleanup(time.Now())
	assert.Equal(t, 1, rl.Len())

	rl.cleanup(time.Now().Add(3 * time.Minute))
	assert.Equal(t, 0, rl.Len())
}

func TestRateLimiter_DefaultsAndDoubleStop(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{}, logging.Discard())
	assert.Equal(t, DefaultRateLimiterConfig(), rl.config)
	rl.Stop()
	rl.Stop()
}

func TestHTTPServer_RunStopsOnCancel(t *testing.T) {
	e := newTestEnv(t, roomyLimits())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.server.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
