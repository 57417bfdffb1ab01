package provider

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"grant-insight/internal/resilience/circuitbreaker"
)

// newLimiter paces outbound requests. A non-positive rps means unlimited.
func newLimiter(rps float64, burst int) *rate.Limiter {
	if rps <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	if burst <= 0 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(rps), burst)
}

// wait blocks until a request may be sent or ctx is done. A wait that would
// outlast the deadline fails at once with an error matching both
// circuitbreaker.ErrNotAttempted and context.DeadlineExceeded.
func wait(ctx context.Context, l *rate.Limiter) error {
	if err := l.Wait(ctx); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: rate limit wait exceeds deadline: %w", circuitbreaker.ErrNotAttempted, context.DeadlineExceeded)
	}
	return nil
}
