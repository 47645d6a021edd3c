package ratelimiter

import (
	"context"

	"golang.org/x/time/rate"
)

// RateLimiter throttles calls issued against the shared remote session.
//
// It wraps golang.org/x/time/rate (token bucket). Every transport call
// consumes one token; bursts up to the bucket size are served immediately,
// further calls wait for replenishment or for context cancellation.
//
// Thread safety:
// All methods are safe for concurrent use.
type RateLimiter struct {
	limiter *rate.Limiter
}

// New creates a RateLimiter allowing opsPerSecond sustained calls with the
// given burst capacity.
//
// Special cases:
//   - opsPerSecond = 0: no limit (Wait never blocks)
//   - burst = 0: defaults to opsPerSecond
func New(opsPerSecond, burst uint) *RateLimiter {
	if opsPerSecond == 0 {
		return &RateLimiter{limiter: rate.NewLimiter(rate.Inf, 0)}
	}
	if burst == 0 {
		burst = opsPerSecond
	}

	return &RateLimiter{
		limiter: rate.NewLimiter(rate.Limit(opsPerSecond), int(burst)),
	}
}

// Allow reports whether a call may proceed right now, consuming a token if so.
func (r *RateLimiter) Allow() bool {
	return r.limiter.Allow()
}

// Wait blocks until a token is available or the context is cancelled.
func (r *RateLimiter) Wait(ctx context.Context) error {
	return r.limiter.Wait(ctx)
}

// SetLimit changes the sustained rate; 0 removes the limit.
func (r *RateLimiter) SetLimit(opsPerSecond uint) {
	if opsPerSecond == 0 {
		r.limiter.SetLimit(rate.Inf)
		return
	}
	r.limiter.SetLimit(rate.Limit(opsPerSecond))
	if uint(r.limiter.Burst()) < opsPerSecond {
		r.limiter.SetBurst(int(opsPerSecond))
	}
}

// Unlimited reports whether the limiter never blocks.
func (r *RateLimiter) Unlimited() bool {
	return r.limiter.Limit() == rate.Inf
}
