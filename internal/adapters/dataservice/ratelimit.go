package dataservice

import (
	"context"

	"golang.org/x/time/rate"

	"collections/pkg/errors"
)

// Limiter caps the request rate towards the data service
type Limiter struct {
	limiter *rate.Limiter
	name    string
}

// NewLimiter creates a limiter. rps <= 0 disables limiting.
func NewLimiter(name string, rps float64, burst int) *Limiter {
	limit := rate.Limit(rps)
	if rps <= 0 {
		limit = rate.Inf
	}
	if burst < 1 {
		burst = 1
	}
	return &Limiter{
		limiter: rate.NewLimiter(limit, burst),
		name:    name,
	}
}

// Wait blocks until the limiter allows the request. A cancelled caller
// gets its context error back; ErrRateLimitExceeded means the wait would
// outlast the deadline.
func (l *Limiter) Wait(ctx context.Context) error {
	if err := l.limiter.Wait(ctx); err != nil {
		if ctx.Err() != nil {
			return errors.Wrapf(ctx.Err(), "rate limiter %s", l.name)
		}
		return errors.Wrapf(errors.ErrRateLimitExceeded, "rate limiter %s: %s", l.name, err.Error())
	}
	return nil
}
