package dispatcher

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ocx/paygate/internal/circuitbreaker"
	"github.com/ocx/paygate/internal/core"
)

func testPolicy() ResiliencePolicy {
	p := DefaultPolicy()
	p.RetryMaxAttempts = 3
	p.RetryBaseWait = time.Millisecond
	p.RetryMaxWait = 5 * time.Millisecond
	p.RetryMultiplier = 2.0
	p.BulkheadMaxConcurrent = 2
	p.BulkheadMaxWait = 50 * time.Millisecond
	p.TimeLimiter = time.Second
	p.RateLimitPerSecond = 1000
	p.RateLimitBurst = 1000
	p.CircuitBreaker.MinimumCalls = 100
	return p
}

func newTestDispatcher(policy ResiliencePolicy) *Dispatcher {
	cfg := policy.CircuitBreaker
	cfg.Name = "test-service"
	breaker := circuitbreaker.New(&cfg)
	return NewDispatcher("test-service", "tenant-a", policy, breaker)
}

func TestDispatcher_Execute_SucceedsOnFirstAttempt(t *testing.T) {
	d := newTestDispatcher(testPolicy())
	resp := d.Execute(context.Background(), func(ctx context.Context) (Response, error) {
		return Response{StatusCode: 200, ResponseCode: "ACSC"}, nil
	})
	assert.Equal(t, 200, resp.StatusCode)
	assert.False(t, resp.IsFallback)
}

func TestDispatcher_Execute_RetriesTransientThenSucceeds(t *testing.T) {
	d := newTestDispatcher(testPolicy())
	var attempts int32
	resp := d.Execute(context.Background(), func(ctx context.Context) (Response, error) {
		if atomic.AddInt32(&attempts, 1) < 3 {
			return Response{}, core.NewError(core.KindDispatchTransient, core.StageDispatch, errors.New("temporary blip"))
		}
		return Response{StatusCode: 200}, nil
	})
	assert.False(t, resp.IsFallback)
	assert.Equal(t, int32(3), atomic.LoadInt32(&attempts))
}

func TestDispatcher_Execute_FallsBackAfterRetriesExhausted(t *testing.T) {
	d := newTestDispatcher(testPolicy())
	var attempts int32
	resp := d.Execute(context.Background(), func(ctx context.Context) (Response, error) {
		atomic.AddInt32(&attempts, 1)
		return Response{}, core.NewError(core.KindDispatchTransient, core.StageDispatch, errors.New("downstream down"))
	})
	assert.True(t, resp.IsFallback)
	assert.Equal(t, 503, resp.StatusCode)
	assert.Equal(t, int32(3), atomic.LoadInt32(&attempts))
}

func TestDispatcher_Execute_NonRetryableFailsFast(t *testing.T) {
	d := newTestDispatcher(testPolicy())
	var attempts int32
	resp := d.Execute(context.Background(), func(ctx context.Context) (Response, error) {
		atomic.AddInt32(&attempts, 1)
		return Response{}, core.NewError(core.KindValidation, core.StageDispatch, errors.New("bad request"))
	})
	assert.True(t, resp.IsFallback)
	assert.Equal(t, int32(1), atomic.LoadInt32(&attempts))
}

func TestDispatcher_Execute_CustomFallback(t *testing.T) {
	d := newTestDispatcher(testPolicy())
	d.SetFallback(func(err error) Response {
		return Response{StatusCode: 999, ResponseCode: "MANUAL_REVIEW", IsFallback: true}
	})
	resp := d.Execute(context.Background(), func(ctx context.Context) (Response, error) {
		return Response{}, core.NewError(core.KindValidation, core.StageDispatch, errors.New("bad"))
	})
	assert.Equal(t, 999, resp.StatusCode)
	assert.Equal(t, "MANUAL_REVIEW", resp.ResponseCode)
}

func TestDispatcher_Execute_CircuitOpensAfterFailuresAndFallsBack(t *testing.T) {
	policy := testPolicy()
	policy.RetryMaxAttempts = 1
	policy.CircuitBreaker.MinimumCalls = 2
	policy.CircuitBreaker.ReadyToTrip = func(counts circuitbreaker.Counts) bool {
		return counts.Requests >= 2 && counts.FailureRatio() > 0.5
	}
	d := newTestDispatcher(policy)

	for i := 0; i < 2; i++ {
		resp := d.Execute(context.Background(), func(ctx context.Context) (Response, error) {
			return Response{}, core.NewError(core.KindDispatchTransient, core.StageDispatch, errors.New("boom"))
		})
		assert.True(t, resp.IsFallback)
	}

	var called bool
	resp := d.Execute(context.Background(), func(ctx context.Context) (Response, error) {
		called = true
		return Response{StatusCode: 200}, nil
	})
	assert.False(t, called, "circuit should short-circuit without invoking the call")
	assert.True(t, resp.IsFallback)
	assert.Equal(t, string(core.KindCircuitOpen), resp.ResponseCode)
}

func TestRegistry_GetReusesDispatcherPerServiceTenant(t *testing.T) {
	r := NewRegistry(nil)
	d1 := r.Get("clearing-system", "tenant-a")
	d2 := r.Get("clearing-system", "tenant-a")
	assert.Same(t, d1, d2)

	d3 := r.Get("clearing-system", "tenant-b")
	assert.NotSame(t, d1, d3)
}

func TestRegistry_LookupOverridesServiceDefault(t *testing.T) {
	override := DefaultPolicy()
	override.RateLimitPerSecond = 5

	lookup := func(serviceName, tenantID string) (ResiliencePolicy, bool) {
		if tenantID == "tenant-override" {
			return override, true
		}
		return ResiliencePolicy{}, false
	}
	r := NewRegistry(lookup)
	r.SetDefault("fraud-engine", DefaultPolicy())

	d := r.Get("fraud-engine", "tenant-override")
	require.NotNil(t, d)
	assert.Equal(t, float64(5), d.policy.RateLimitPerSecond)

	def := r.Get("fraud-engine", "tenant-default")
	assert.Equal(t, DefaultPolicy().RateLimitPerSecond, def.policy.RateLimitPerSecond)
}

func TestRegistry_GetServiceHealthStatusOnlyReturnsDispatchedServices(t *testing.T) {
	r := NewRegistry(nil)
	r.Get("clearing-system", "tenant-a")

	statuses := r.GetServiceHealthStatus(context.Background(), "tenant-a")
	require.Len(t, statuses, 1)
	assert.Equal(t, "clearing-system", statuses[0].ServiceName)
	assert.Equal(t, "CLOSED", statuses[0].CircuitState)

	none := r.GetServiceHealthStatus(context.Background(), "tenant-b")
	assert.Empty(t, none)
}
