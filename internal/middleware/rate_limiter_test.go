package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiter_Allow_PermitsWithinLimit(t *testing.T) {
	rl := NewRateLimiter(RateLimitConfig{MaxCallsPerMinute: 5, BurstSize: 5})
	for i := 0; i < 5; i++ {
		assert.True(t, rl.Allow("tenant-a"), "call %d should be within limit", i+1)
	}
}

func TestRateLimiter_Allow_BlocksBeyondBurst(t *testing.T) {
	rl := NewRateLimiter(RateLimitConfig{MaxCallsPerMinute: 2, BurstSize: 3})
	for i := 0; i < 3; i++ {
		assert.True(t, rl.Allow("tenant-a"))
	}
	assert.False(t, rl.Allow("tenant-a"), "4th call exceeds burst size of 3")
}

func TestRateLimiter_Allow_KeysAreIndependent(t *testing.T) {
	rl := NewRateLimiter(RateLimitConfig{MaxCallsPerMinute: 1, BurstSize: 1})
	assert.True(t, rl.Allow("tenant-a"))
	assert.False(t, rl.Allow("tenant-a"))
	assert.True(t, rl.Allow("tenant-b"), "a different key must have its own window")
}

func TestRateLimiter_Middleware_RejectsWithTooManyRequests(t *testing.T) {
	rl := NewRateLimiter(RateLimitConfig{MaxCallsPerMinute: 1, BurstSize: 1})
	handler := rl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Tenant-ID", "tenant-a")

	rec1 := httptest.NewRecorder()
	handler.ServeHTTP(rec1, req)
	assert.Equal(t, http.StatusOK, rec1.Code)

	rec2 := httptest.NewRecorder()
	handler.ServeHTTP(rec2, req)
	assert.Equal(t, http.StatusTooManyRequests, rec2.Code)
}

func TestRateLimiter_Middleware_AnonymousFallsBackToSharedKey(t *testing.T) {
	rl := NewRateLimiter(RateLimitConfig{MaxCallsPerMinute: 1, BurstSize: 1})
	handler := rl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)

	rec1 := httptest.NewRecorder()
	handler.ServeHTTP(rec1, req)
	assert.Equal(t, http.StatusOK, rec1.Code)

	rec2 := httptest.NewRecorder()
	handler.ServeHTTP(rec2, req)
	assert.Equal(t, http.StatusTooManyRequests, rec2.Code)
}

func TestRateLimiter_Stats_ReportsConfiguredLimits(t *testing.T) {
	rl := NewRateLimiter(RateLimitConfig{MaxCallsPerMinute: 10, BurstSize: 20})
	rl.Allow("tenant-a")
	stats := rl.Stats()
	assert.Equal(t, 10, stats["max_calls_per_min"])
	assert.Equal(t, 20, stats["burst_size"])
	assert.Equal(t, 1, stats["active_windows"])
}
