package dispatcher

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/ocx/paygate/internal/core"
)

// bulkhead bounds concurrent calls to one (serviceName, tenantId) with a
// weighted semaphore and a bounded acquisition wait; a timed-out wait
// fails with KindSaturated.
type bulkhead struct {
	sem     *semaphore.Weighted
	maxWait time.Duration
}

func newBulkhead(maxConcurrent int64, maxWait time.Duration) *bulkhead {
	if maxConcurrent <= 0 {
		maxConcurrent = 20
	}
	if maxWait <= 0 {
		maxWait = 2 * time.Second
	}
	return &bulkhead{sem: semaphore.NewWeighted(maxConcurrent), maxWait: maxWait}
}

// acquire blocks until a slot is free, maxWait elapses, or ctx is
// cancelled. The returned release func must be called exactly once when
// the caller is done, even on error paths upstream, so a cancelled flow
// never leaks a permit.
func (b *bulkhead) acquire(ctx context.Context, serviceName string) (release func(), err error) {
	waitCtx, cancel := context.WithTimeout(ctx, b.maxWait)
	defer cancel()

	if err := b.sem.Acquire(waitCtx, 1); err != nil {
		return nil, core.NewError(core.KindSaturated, core.StageDispatch,
			fmt.Errorf("dispatcher: bulkhead saturated for %s: %w", serviceName, err))
	}
	return func() { b.sem.Release(1) }, nil
}
