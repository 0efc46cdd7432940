// Package ratelimiter throttles how fast new connections are admitted.
package ratelimiter

import (
	"context"
	"sync/atomic"

	"golang.org/x/time/rate"
)

// RateLimiter is a token bucket over connection admissions.
//
// A zero rate disables limiting; Allow then always succeeds without touching
// the bucket. All methods are safe for concurrent use.
type RateLimiter struct {
	limiter *rate.Limiter
	denied  atomic.Uint64
}

// New creates a limiter admitting perSecond connections on average with
// bursts of up to burst. A zero perSecond disables limiting. A zero burst
// with a non-zero rate is raised to the rate so at least one token fits.
//
// Example:
//
//	// 500 connections/s sustained, bursts of 1000
//	limiter := ratelimiter.New(500, 1000)
func New(perSecond float64, burst int) *RateLimiter {
	if perSecond <= 0 {
		return &RateLimiter{limiter: rate.NewLimiter(rate.Inf, 0)}
	}
	if burst <= 0 {
		burst = int(perSecond)
		if burst < 1 {
			burst = 1
		}
	}
	return &RateLimiter{limiter: rate.NewLimiter(rate.Limit(perSecond), burst)}
}

// Allow consumes one token if available. Denials are counted.
func (r *RateLimiter) Allow() bool {
	if r.limiter.Allow() {
		return true
	}
	r.denied.Add(1)
	return false
}

// Wait blocks until a token is available or ctx is done.
func (r *RateLimiter) Wait(ctx context.Context) error {
	return r.limiter.Wait(ctx)
}

// SetLimit changes the sustained rate. Zero disables limiting.
func (r *RateLimiter) SetLimit(perSecond float64) {
	if perSecond <= 0 {
		r.limiter.SetLimit(rate.Inf)
		return
	}
	r.limiter.SetLimit(rate.Limit(perSecond))
	if r.limiter.Burst() < 1 {
		r.limiter.SetBurst(1)
	}
}

// SetBurst changes the bucket capacity.
func (r *RateLimiter) SetBurst(burst int) {
	r.limiter.SetBurst(burst)
}

// Unlimited reports whether limiting is disabled.
func (r *RateLimiter) Unlimited() bool {
	return r.limiter.Limit() == rate.Inf
}

// Tokens returns the tokens currently in the bucket.
func (r *RateLimiter) Tokens() float64 {
	return r.limiter.Tokens()
}

// Denied returns how many Allow calls were refused.
func (r *RateLimiter) Denied() uint64 {
	return r.denied.Load()
}
