// Package ratelimit wraps golang.org/x/time/rate with the small surface the
// venue adapters need: a token-bucket limiter sized in requests per second,
// shared between an adapter's subscription sends and its REST snapshot
// fetches so a reconnect storm cannot trip an exchange's request-weight ban.
package ratelimit

import (
	"context"

	"golang.org/x/time/rate"
)

// Defaults applied when a caller passes zero values; a zero rate.Limiter
// would block every Wait forever, which is never what a venue config that
// simply omitted the knob intends.
const (
	defaultRPS   = 10
	defaultBurst = 5
)

// Limiter is a token-bucket request limiter.
type Limiter struct {
	limiter *rate.Limiter
}

// NewWithBurst builds a Limiter allowing requestsPerSecond sustained with
// the given burst headroom. Non-positive arguments fall back to defaults.
func NewWithBurst(requestsPerSecond float64, burst int) *Limiter {
	if requestsPerSecond <= 0 {
		requestsPerSecond = defaultRPS
	}
	if burst <= 0 {
		burst = defaultBurst
	}
	return &Limiter{limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), burst)}
}

// PerMinute builds a Limiter from a requests-per-minute budget, the unit
// most exchange API docs quote, with 10% of the budget as burst.
func PerMinute(requestsPerMinute int) *Limiter {
	if requestsPerMinute <= 0 {
		requestsPerMinute = defaultRPS * 60
	}
	burst := requestsPerMinute / 10
	if burst < 1 {
		burst = 1
	}
	return &Limiter{limiter: rate.NewLimiter(rate.Limit(float64(requestsPerMinute)/60.0), burst)}
}

// Wait blocks until a token is available or ctx is cancelled.
func (l *Limiter) Wait(ctx context.Context) error {
	return l.limiter.Wait(ctx)
}

// Allow reports whether a request may proceed right now without waiting.
func (l *Limiter) Allow() bool {
	return l.limiter.Allow()
}

// Tokens reports the tokens currently available, for diagnostics.
func (l *Limiter) Tokens() float64 {
	return l.limiter.Tokens()
}
