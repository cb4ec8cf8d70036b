// Package dispatcher implements the Resilient Dispatcher: outbound calls
// to clearing systems, fraud engines, and other bank services run through
// a fixed pipeline of resilience primitives — RateLimiter, Bulkhead,
// CircuitBreaker, Retry, TimeLimiter, the call itself, then Fallback.
package dispatcher

import (
	"time"

	"github.com/ocx/paygate/internal/circuitbreaker"
)

// ResiliencePolicy configures every primitive for one (serviceName,
// tenantId) pair. The registry uses a policy as given: zero-value fields
// are passed to the primitives unchanged, not filled in from DefaultPolicy.
type ResiliencePolicy struct {
	CircuitBreaker circuitbreaker.Config // Name is overwritten per (serviceName, tenantId) by the registry

	RetryMaxAttempts int
	RetryBaseWait    time.Duration
	RetryMaxWait     time.Duration
	RetryMultiplier  float64

	BulkheadMaxConcurrent int64
	BulkheadMaxWait       time.Duration

	TimeLimiter time.Duration

	RateLimitPerSecond float64
	RateLimitBurst     int

	HealthCheckInterval time.Duration
}

// DefaultPolicy is applied to any (serviceName, tenantId) pair with no
// explicit override, per "policy defaults per service name, override per
// tenant."
func DefaultPolicy() ResiliencePolicy {
	return ResiliencePolicy{
		CircuitBreaker:        *circuitbreaker.DefaultConfig(""),
		RetryMaxAttempts:      3,
		RetryBaseWait:         200 * time.Millisecond,
		RetryMaxWait:          5 * time.Second,
		RetryMultiplier:       2.0,
		BulkheadMaxConcurrent: 20,
		BulkheadMaxWait:       2 * time.Second,
		TimeLimiter:           10 * time.Second,
		RateLimitPerSecond:    50,
		RateLimitBurst:        100,
		HealthCheckInterval:   30 * time.Second,
	}
}

// ResilienceDefaults is the subset of config.ResilienceDefaultsConfig this
// package needs, restated locally so dispatcher never imports config (kept
// on the core -> mapping -> policy -> database dependency direction, with
// dispatcher depending on circuitbreaker and core only).
type ResilienceDefaults struct {
	RetryMaxAttempts        int
	RetryBaseWaitMs         int
	RetryMaxWaitMs          int
	RetryMultiplier         float64
	BulkheadMaxConcurrent   int64
	BulkheadMaxWaitMs       int
	TimeLimiterMs           int
	RateLimitPerSecond      float64
	RateLimitBurst          int
	CircuitFailureThreshold float64
	CircuitMinimumCalls     int
}

// PolicyFromDefaults builds a ResiliencePolicy from operator-configured
// defaults, for installing as the registry-wide fallback ahead of
// DefaultPolicy's hardcoded values.
func PolicyFromDefaults(d ResilienceDefaults) ResiliencePolicy {
	p := DefaultPolicy()
	p.RetryMaxAttempts = d.RetryMaxAttempts
	p.RetryBaseWait = time.Duration(d.RetryBaseWaitMs) * time.Millisecond
	p.RetryMaxWait = time.Duration(d.RetryMaxWaitMs) * time.Millisecond
	p.RetryMultiplier = d.RetryMultiplier
	p.BulkheadMaxConcurrent = d.BulkheadMaxConcurrent
	p.BulkheadMaxWait = time.Duration(d.BulkheadMaxWaitMs) * time.Millisecond
	p.TimeLimiter = time.Duration(d.TimeLimiterMs) * time.Millisecond
	p.RateLimitPerSecond = d.RateLimitPerSecond
	p.RateLimitBurst = d.RateLimitBurst
	p.CircuitBreaker.MinimumCalls = uint32(d.CircuitMinimumCalls)
	threshold := d.CircuitFailureThreshold
	minCalls := uint32(d.CircuitMinimumCalls)
	p.CircuitBreaker.ReadyToTrip = func(counts circuitbreaker.Counts) bool {
		return counts.Requests >= minCalls && counts.FailureRatio() > threshold
	}
	return p
}
