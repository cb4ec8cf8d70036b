package dispatcher

import (
	"context"
	"fmt"
	"sync"

	"github.com/ocx/paygate/internal/circuitbreaker"
)

// PolicyLookup resolves an override for one (serviceName, tenantId) pair.
// The database package's ResiliencePolicyLookup consults
// resilience_policies; ok=false means "use the service-name default."
type PolicyLookup func(serviceName, tenantID string) (ResiliencePolicy, bool)

// Registry holds one Dispatcher per (serviceName, tenantId), built lazily
// on first use from a service-name default overridden per-tenant.
type Registry struct {
	mu       sync.RWMutex
	entries  map[string]*Dispatcher
	breakers *circuitbreaker.Manager
	lookup   PolicyLookup
	defaults map[string]ResiliencePolicy
	fallback ResiliencePolicy
}

// NewRegistry returns an empty registry. lookup may be nil, in which case
// every (serviceName, tenantId) pair uses its service-name default (or the
// registry-wide fallback if no default was registered for that service).
// fallback is optional; omitting it uses the package DefaultPolicy. A
// supplied fallback is used as given, so a zero-value ResiliencePolicy{}
// is not replaced by DefaultPolicy.
func NewRegistry(lookup PolicyLookup, fallback ...ResiliencePolicy) *Registry {
	f := DefaultPolicy()
	if len(fallback) > 0 {
		f = fallback[0]
	}
	return &Registry{
		entries:  make(map[string]*Dispatcher),
		breakers: circuitbreaker.NewManager(circuitbreaker.DefaultConfig("")),
		lookup:   lookup,
		defaults: make(map[string]ResiliencePolicy),
		fallback: f,
	}
}

// SetDefault registers the policy used for serviceName absent a
// tenant-specific override.
func (r *Registry) SetDefault(serviceName string, policy ResiliencePolicy) {
	r.mu.Lock()
	r.defaults[serviceName] = policy
	r.mu.Unlock()
}

func registryKey(serviceName, tenantID string) string {
	return serviceName + "::" + tenantID
}

// Get returns the Dispatcher for (serviceName, tenantId), building it on
// first use from the registered default overridden per-tenant.
func (r *Registry) Get(serviceName, tenantID string) *Dispatcher {
	key := registryKey(serviceName, tenantID)

	r.mu.RLock()
	d, ok := r.entries[key]
	r.mu.RUnlock()
	if ok {
		return d
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if d, ok := r.entries[key]; ok {
		return d
	}

	policy := r.resolvePolicy(serviceName, tenantID)
	cbCfg := policy.CircuitBreaker
	cbCfg.Name = fmt.Sprintf("%s/%s", serviceName, tenantID)
	breaker := r.breakers.GetOrCreate(cbCfg.Name, &cbCfg)

	d = NewDispatcher(serviceName, tenantID, policy, breaker)
	r.entries[key] = d
	return d
}

func (r *Registry) resolvePolicy(serviceName, tenantID string) ResiliencePolicy {
	if r.lookup != nil {
		if p, ok := r.lookup(serviceName, tenantID); ok {
			return p
		}
	}
	r.mu.RLock()
	def, ok := r.defaults[serviceName]
	r.mu.RUnlock()
	if ok {
		return def
	}
	return r.fallback
}

// Breakers exposes the shared circuit breaker manager, for health/status
// surfaces that want to enumerate every open breaker.
func (r *Registry) Breakers() *circuitbreaker.Manager {
	return r.breakers
}

// ServiceHealthStatus is one entry of getServiceHealthStatus(tenantId): the
// resilience state of a single downstream service for one tenant.
type ServiceHealthStatus struct {
	ServiceName  string
	TenantID     string
	CircuitState string
	Healthy      bool
}

// GetServiceHealthStatus reports the resilience state of every downstream
// service a dispatcher has been built for on behalf of tenantID. Only
// services that have actually been dispatched to at least once appear,
// since dispatchers are built lazily on first Get.
func (r *Registry) GetServiceHealthStatus(ctx context.Context, tenantID string) []ServiceHealthStatus {
	r.mu.RLock()
	entries := make([]*Dispatcher, 0, len(r.entries))
	for _, d := range r.entries {
		if d.tenantID == tenantID {
			entries = append(entries, d)
		}
	}
	r.mu.RUnlock()

	statuses := make([]ServiceHealthStatus, 0, len(entries))
	for _, d := range entries {
		statuses = append(statuses, ServiceHealthStatus{
			ServiceName:  d.serviceName,
			TenantID:     d.tenantID,
			CircuitState: d.breaker.State().String(),
			Healthy:      d.Healthy(ctx),
		})
	}
	return statuses
}
