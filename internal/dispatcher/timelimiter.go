package dispatcher

import (
	"context"
	"time"

	"github.com/ocx/paygate/internal/core"
)

// withTimeLimit runs fn under a hard deadline; on breach the pending
// operation's context is cancelled so fn can observe it and return, and
// the call reports KindTimedOut regardless of what fn itself returns.
func withTimeLimit(ctx context.Context, limit time.Duration, fn func(context.Context) (interface{}, error)) (interface{}, error) {
	if limit <= 0 {
		return fn(ctx)
	}

	callCtx, cancel := context.WithTimeout(ctx, limit)
	defer cancel()

	type outcome struct {
		result interface{}
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		result, err := fn(callCtx)
		done <- outcome{result, err}
	}()

	select {
	case o := <-done:
		return o.result, o.err
	case <-callCtx.Done():
		return nil, core.NewError(core.KindTimedOut, core.StageDispatch, callCtx.Err())
	}
}
