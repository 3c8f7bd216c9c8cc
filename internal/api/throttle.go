package api

import (
	"context"
	"net/http"

	"golang.org/x/time/rate"
)

// NewLimiter returns a token-bucket limiter allowing rps requests per second.
// It returns nil (no limiting) when rps is not positive.
func NewLimiter(rps float64, burst int) *rate.Limiter {
	if rps <= 0 {
		return nil
	}
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(rps), burst)
}

type throttled struct {
	next    Completer
	limiter *rate.Limiter
}

// Throttle wraps a Completer so every request first waits on limiter.
// Several completers may share one limiter to respect a common quota.
func Throttle(next Completer, limiter *rate.Limiter) Completer {
	if limiter == nil {
		return next
	}
	return &throttled{next: next, limiter: limiter}
}

func (t *throttled) Complete(ctx context.Context, req Request) (*Response, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		// The wait would outlast the deadline: report it like a server-side 429.
		return nil, &StatusError{StatusCode: http.StatusTooManyRequests, Message: "local rate limit: " + err.Error()}
	}
	return t.next.Complete(ctx, req)
}
