package dispatcher

import (
	"context"
	"fmt"
	"time"

	"github.com/ocx/paygate/internal/circuitbreaker"
	"github.com/ocx/paygate/internal/core"
)

// Call is the actual outbound operation the pipeline wraps: a clearing-
// system POST, a fraud-engine call, or any other bank-service request.
type Call func(ctx context.Context) (Response, error)

// Dispatcher executes a Call for one (serviceName, tenantId) pair through
// the fixed primitive order: RateLimiter -> Bulkhead -> CircuitBreaker ->
// Retry -> TimeLimiter -> call -> Fallback.
type Dispatcher struct {
	serviceName string
	tenantID    string
	policy      ResiliencePolicy
	breaker     *circuitbreaker.CircuitBreaker

	limiter  *rateLimiter
	bulk     *bulkhead
	health   *healthCache
	fallback FallbackFunc
	probe    HealthProbe
}

// NewDispatcher builds a Dispatcher bound to a pre-resolved policy and
// circuit breaker (normally obtained through a Registry rather than
// called directly).
func NewDispatcher(serviceName, tenantID string, policy ResiliencePolicy, breaker *circuitbreaker.CircuitBreaker) *Dispatcher {
	return &Dispatcher{
		serviceName: serviceName,
		tenantID:    tenantID,
		policy:      policy,
		breaker:     breaker,
		limiter:     newRateLimiter(policy.RateLimitPerSecond, policy.RateLimitBurst),
		bulk:        newBulkhead(policy.BulkheadMaxConcurrent, policy.BulkheadMaxWait),
		health:      newHealthCache(),
		fallback:    DefaultFallback,
	}
}

// SetFallback overrides the default HTTP-503-shaped Fallback, e.g. with
// one that returns a MANUAL_REVIEW-shaped FraudAssessment envelope.
func (d *Dispatcher) SetFallback(fn FallbackFunc) {
	if fn != nil {
		d.fallback = fn
	}
}

// SetHealthProbe installs the optional per-service health probe.
func (d *Dispatcher) SetHealthProbe(probe HealthProbe) {
	d.probe = probe
}

// Healthy reports the memoized result of the last probe, running a fresh
// one if the TTL has elapsed.
func (d *Dispatcher) Healthy(ctx context.Context) bool {
	key := registryKey(d.serviceName, d.tenantID)
	return d.health.Check(ctx, key, d.policy.HealthCheckInterval, d.probe)
}

// Execute runs call through the full resilience pipeline. ctx should
// carry the owning FlowContext's cancellation signal; cancellation
// propagates through every primitive and releases bulkhead/rate-limiter
// state without transitioning the circuit breaker.
func (d *Dispatcher) Execute(ctx context.Context, call Call) Response {
	if err := d.limiter.allow(ctx, d.serviceName); err != nil {
		return d.fallback(err)
	}

	release, err := d.bulk.acquire(ctx, d.serviceName)
	if err != nil {
		return d.fallback(err)
	}
	defer release()

	result, err := retryCall(ctx, d.policy.RetryMaxAttempts, d.policy.RetryBaseWait, d.policy.RetryMaxWait, d.policy.RetryMultiplier,
		func(attemptCtx context.Context) (interface{}, error) {
			return d.throughBreaker(attemptCtx, call)
		})
	if err != nil {
		return d.fallback(err)
	}

	resp, ok := result.(Response)
	if !ok {
		return d.fallback(core.NewError(core.KindInternal, core.StageDispatch, fmt.Errorf("dispatcher: unexpected result type %T", result)))
	}
	return resp
}

func (d *Dispatcher) throughBreaker(ctx context.Context, call Call) (interface{}, error) {
	if ctx.Err() != nil {
		return nil, core.NewError(core.KindCancelled, core.StageDispatch, ctx.Err())
	}

	result, err := d.breaker.ExecuteContext(ctx, func(callCtx context.Context) (interface{}, error) {
		return withTimeLimit(callCtx, d.policy.TimeLimiter, func(tlCtx context.Context) (interface{}, error) {
			start := time.Now()
			resp, err := call(tlCtx)
			resp.ProcessingMs = time.Since(start).Milliseconds()
			if err != nil {
				return nil, classifyDispatchError(err)
			}
			return resp, nil
		})
	})
	if err == circuitbreaker.ErrCircuitOpen || err == circuitbreaker.ErrTooManyRequests {
		return nil, core.NewError(core.KindCircuitOpen, core.StageDispatch, err)
	}
	return result, err
}

// classifyDispatchError maps a raw call error to the taxonomy kind the
// retry primitive inspects, defaulting unrecognized errors to
// DISPATCH_TRANSIENT so a single flaky call does not permanently fail a
// flow that would otherwise succeed on retry.
func classifyDispatchError(err error) error {
	if _, ok := err.(*core.Error); ok {
		return err
	}
	return core.NewError(core.KindDispatchTransient, core.StageDispatch, err)
}
