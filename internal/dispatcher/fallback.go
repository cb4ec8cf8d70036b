package dispatcher

import "github.com/ocx/paygate/internal/core"

// Response is the canonical outbound-call response shape dispatched calls
// return, whether from the real call or a Fallback.
type Response struct {
	StatusCode      int
	ResponseCode    string
	ResponseMessage string
	Payload         core.Message
	ProcessingMs    int64
	IsFallback      bool
}

// FallbackFunc maps an exception from every other exhausted primitive to
// a canonical negative Response. It is invoked only after RateLimiter,
// Bulkhead, CircuitBreaker, Retry, and TimeLimiter have all given up.
type FallbackFunc func(err error) Response

// DefaultFallback maps the error taxonomy to an HTTP-503-shaped envelope;
// callers needing a FraudAssessment-shaped fallback (e.g. the fraud
// engine client) should supply their own FallbackFunc instead.
func DefaultFallback(err error) Response {
	kind := core.KindOf(err)
	return Response{
		StatusCode:      503,
		ResponseCode:    string(kind),
		ResponseMessage: err.Error(),
		IsFallback:      true,
	}
}
