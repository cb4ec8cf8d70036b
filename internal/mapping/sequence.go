package mapping

import (
	"context"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
)

// SequenceStore hands out the monotonic counter a SEQUENTIAL AutoGeneration
// clause needs, scoped per (tenantId, documentName) per the spec's
// "counter is monotonic per (tenant, document-name)" rule.
type SequenceStore interface {
	Next(ctx context.Context, tenantID, documentName string) (uint64, error)
}

// InMemorySequenceStore is the default, process-local SequenceStore,
// grounded on the teacher's mutex-guarded in-memory counter idiom used
// throughout its middleware and governance packages.
type InMemorySequenceStore struct {
	mu       sync.Mutex
	counters map[string]uint64
}

// NewInMemorySequenceStore constructs an empty counter table.
func NewInMemorySequenceStore() *InMemorySequenceStore {
	return &InMemorySequenceStore{counters: make(map[string]uint64)}
}

func (s *InMemorySequenceStore) Next(_ context.Context, tenantID, documentName string) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := tenantID + "\x00" + documentName
	s.counters[key]++
	// Wrap only after exhausting the numeric space, per spec.
	if s.counters[key] == 0 {
		s.counters[key] = 1
	}
	return s.counters[key], nil
}

// RedisSequenceStore shares the counter across replicas via Redis INCR,
// so SEQUENTIAL numbering stays monotonic even when flows land on
// different instances.
type RedisSequenceStore struct {
	rdb *redis.Client
}

// NewRedisSequenceStore wraps an existing go-redis client.
func NewRedisSequenceStore(rdb *redis.Client) *RedisSequenceStore {
	return &RedisSequenceStore{rdb: rdb}
}

func (s *RedisSequenceStore) Next(ctx context.Context, tenantID, documentName string) (uint64, error) {
	key := fmt.Sprintf("paygate:seq:%s:%s", tenantID, documentName)
	n, err := s.rdb.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("redis sequence incr %s: %w", key, err)
	}
	return uint64(n), nil
}
