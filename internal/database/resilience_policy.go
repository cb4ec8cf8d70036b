package database

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/ocx/paygate/internal/circuitbreaker"
	"github.com/ocx/paygate/internal/dispatcher"
)

// ResiliencePolicyLookup adapts SupabaseClient to dispatcher.PolicyLookup.
// PolicyLookup carries no context or error return — a lookup miss or a
// database error both fall back to the registry's service-name default —
// so every call here is a best-effort, timeout-bounded read.
type ResiliencePolicyLookup struct {
	sc     *SupabaseClient
	logger *log.Logger
}

// NewResiliencePolicyLookup wraps an existing Supabase client.
func NewResiliencePolicyLookup(sc *SupabaseClient) *ResiliencePolicyLookup {
	return &ResiliencePolicyLookup{sc: sc, logger: log.New(os.Stdout, "[RESILIENCE-POLICY] ", log.LstdFlags)}
}

// Lookup satisfies dispatcher.PolicyLookup.
func (l *ResiliencePolicyLookup) Lookup(serviceName, tenantID string) (dispatcher.ResiliencePolicy, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	row, err := l.sc.GetResiliencePolicy(ctx, serviceName, tenantID)
	if err != nil {
		l.logger.Printf("lookup failed service=%s tenant=%s: %v", serviceName, tenantID, err)
		return dispatcher.ResiliencePolicy{}, false
	}
	if row == nil {
		return dispatcher.ResiliencePolicy{}, false
	}
	return resiliencePolicyFromRow(*row), true
}

func resiliencePolicyFromRow(row ResiliencePolicyRow) dispatcher.ResiliencePolicy {
	failureThreshold := row.FailureRateThreshold
	minimumCalls := uint32(row.MinimumCalls)

	cbCfg := circuitbreaker.Config{
		MaxRequests:               uint32(row.MaxRequests),
		Interval:                  time.Duration(row.IntervalSeconds) * time.Second,
		Timeout:                   time.Duration(row.TimeoutSeconds) * time.Second,
		MinimumCalls:              minimumCalls,
		SlowCallDurationThreshold: time.Duration(row.SlowCallDurationMillis) * time.Millisecond,
		SlowCallRateThreshold:     row.SlowCallRateThreshold,
		ReadyToTrip: func(counts circuitbreaker.Counts) bool {
			return counts.Requests >= minimumCalls && counts.FailureRatio() > failureThreshold
		},
	}

	return dispatcher.ResiliencePolicy{
		CircuitBreaker:        cbCfg,
		RetryMaxAttempts:      row.RetryMaxAttempts,
		RetryBaseWait:         time.Duration(row.RetryBaseWaitMillis) * time.Millisecond,
		RetryMaxWait:          time.Duration(row.RetryMaxWaitMillis) * time.Millisecond,
		RetryMultiplier:       row.RetryMultiplier,
		BulkheadMaxConcurrent: int64(row.BulkheadMaxConcurrent),
		BulkheadMaxWait:       time.Duration(row.BulkheadMaxWaitMillis) * time.Millisecond,
		TimeLimiter:           time.Duration(row.TimeLimiterMillis) * time.Millisecond,
		RateLimitPerSecond:    row.RateLimitPerSecond,
		RateLimitBurst:        row.RateLimitBurst,
		HealthCheckInterval:   time.Duration(row.HealthCheckIntervalSecs) * time.Second,
	}
}
