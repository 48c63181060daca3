// Package ratelimiter throttles requests with a token bucket.
//
// The console adapter gives each connection its own limiter so one chatty
// client cannot monopolize the single-flight service.
package ratelimiter

import "golang.org/x/time/rate"

// unlimited is the rate used when a limiter is configured with zero.
const unlimited = 1_000_000_000

// RateLimiter wraps a token bucket limiter.
type RateLimiter struct {
	limiter *rate.Limiter
}

// New creates a limiter allowing requestsPerSecond with the given burst.
// Zero requestsPerSecond disables limiting. A zero burst with a non-zero
// rate defaults to the rate.
func New(requestsPerSecond, burst uint) *RateLimiter {
	if requestsPerSecond == 0 {
		requestsPerSecond = unlimited
		burst = unlimited
	}
	if burst == 0 {
		burst = requestsPerSecond
	}

	return &RateLimiter{
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), int(burst)),
	}
}

// Allow reports whether a request may proceed now and consumes a token if
// so.
func (r *RateLimiter) Allow() bool {
	return r.limiter.Allow()
}
