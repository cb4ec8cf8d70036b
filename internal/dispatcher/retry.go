package dispatcher

import (
	"context"
	"time"

	"github.com/ocx/paygate/internal/core"
)

// retryCall runs fn up to maxAttempts times, sleeping wait*multiplier^attempt
// (capped at maxWait) between attempts. Only errors tagged with a
// Retryable Kind are retried; anything else returns on the first attempt.
// A cancelled ctx aborts the loop immediately without consuming a wait.
func retryCall(ctx context.Context, maxAttempts int, baseWait, maxWait time.Duration, multiplier float64, fn func(context.Context) (interface{}, error)) (interface{}, error) {
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	if multiplier <= 0 {
		multiplier = 2.0
	}

	var lastErr error
	wait := baseWait
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if ctx.Err() != nil {
			return nil, core.NewError(core.KindCancelled, core.StageDispatch, ctx.Err())
		}

		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !core.KindOf(err).Retryable() {
			return nil, err
		}
		if attempt == maxAttempts-1 {
			break
		}

		select {
		case <-ctx.Done():
			return nil, core.NewError(core.KindCancelled, core.StageDispatch, ctx.Err())
		case <-time.After(wait):
		}

		wait = time.Duration(float64(wait) * multiplier)
		if maxWait > 0 && wait > maxWait {
			wait = maxWait
		}
	}
	return nil, lastErr
}
