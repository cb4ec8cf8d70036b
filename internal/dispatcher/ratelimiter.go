package dispatcher

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/ocx/paygate/internal/core"
)

// rateLimiter is the outermost primitive in the composition order: a
// token bucket per (serviceName, tenantId). Exceeding it fails fast with
// KindSaturated rather than waiting, per "exceeds fail with RATE_LIMITED."
type rateLimiter struct {
	limiter *rate.Limiter
}

func newRateLimiter(perSecond float64, burst int) *rateLimiter {
	if perSecond <= 0 {
		perSecond = 50
	}
	if burst <= 0 {
		burst = int(perSecond) * 2
	}
	return &rateLimiter{limiter: rate.NewLimiter(rate.Limit(perSecond), burst)}
}

func (r *rateLimiter) allow(ctx context.Context, serviceName string) error {
	if r.limiter.Allow() {
		return nil
	}
	return core.NewError(core.KindSaturated, core.StageDispatch,
		fmt.Errorf("dispatcher: rate limit exceeded for %s", serviceName))
}
