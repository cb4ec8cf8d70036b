package dispatcher

import (
	"context"
	"sync"
	"time"
)

// HealthProbe checks whether a downstream service is reachable. Result is
// memoized with a TTL so the hot path never blocks on a live probe.
type HealthProbe func(ctx context.Context) error

type healthStatus struct {
	healthy   bool
	checkedAt time.Time
}

// healthCache memoizes probe results per (serviceName, tenantId), keyed by
// the same registry key, with a TTL equal to the policy's
// HealthCheckInterval.
type healthCache struct {
	mu    sync.Mutex
	cache map[string]healthStatus
}

func newHealthCache() *healthCache {
	return &healthCache{cache: make(map[string]healthStatus)}
}

// Check returns the memoized health status, refreshing it with probe when
// stale or absent. A nil probe is treated as always-healthy.
func (h *healthCache) Check(ctx context.Context, key string, ttl time.Duration, probe HealthProbe) bool {
	if probe == nil {
		return true
	}

	h.mu.Lock()
	status, ok := h.cache[key]
	h.mu.Unlock()
	if ok && time.Since(status.checkedAt) < ttl {
		return status.healthy
	}

	healthy := probe(ctx) == nil
	h.mu.Lock()
	h.cache[key] = healthStatus{healthy: healthy, checkedAt: time.Now()}
	h.mu.Unlock()
	return healthy
}
