package policy

import (
	"sync"

	"github.com/ocx/paygate/internal/mapping"
)

// resolutionCache memoizes resolve() and effectiveMapping() results,
// grounded on the teacher's RWMutex-guarded per-key cache idiom
// (internal/governance's GovernanceConfigCache): reads take the read
// lock; a miss upgrades to the write lock to populate. The whole cache is
// dropped on any mutation notification rather than tracked per-key, since
// mutations are rare relative to lookups and a coordinate-precise
// invalidation index would need its own bookkeeping the precedence model
// doesn't otherwise require.
type resolutionCache struct {
	mu     sync.RWMutex
	auth   map[string]authResolution
	mapped map[string]*mapping.Document
}

type authResolution struct {
	config AuthConfig
	level  Level
	found  bool
}

func newResolutionCache() *resolutionCache {
	return &resolutionCache{
		auth:   make(map[string]authResolution),
		mapped: make(map[string]*mapping.Document),
	}
}

func (c *resolutionCache) getAuth(key string) (authResolution, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.auth[key]
	return v, ok
}

func (c *resolutionCache) putAuth(key string, v authResolution) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.auth[key] = v
}

func (c *resolutionCache) getMapping(key string) (*mapping.Document, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.mapped[key]
	return v, ok
}

func (c *resolutionCache) putMapping(key string, v *mapping.Document) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mapped[key] = v
}

// invalidateAll drops every memoized resolution. Called synchronously on
// every Store mutation notification so the next lookup re-derives from
// the current configuration snapshot.
func (c *resolutionCache) invalidateAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.auth = make(map[string]authResolution)
	c.mapped = make(map[string]*mapping.Document)
}
