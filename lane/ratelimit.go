package lane

import (
	"context"
	"errors"

	"golang.org/x/time/rate"
)

// RateLimitConfig limits how often the runner starts an exchange, across
// both lanes.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate. Zero disables limiting.
	RequestsPerSecond float64

	// Burst allows brief spikes above the rate. Minimum 1.
	Burst int

	// WaitOnLimit waits for a token (respecting ctx) instead of failing
	// with ErrRateLimited.
	WaitOnLimit bool
}

// ErrRateLimited is returned when a request is rejected by the rate limit.
var ErrRateLimited = errors.New("lane: rate limit exceeded")

func newLimiter(cfg RateLimitConfig) *rate.Limiter {
	if cfg.RequestsPerSecond <= 0 {
		return nil
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
}

// acquire takes one token. A nil limiter always admits.
func acquire(ctx context.Context, l *rate.Limiter, wait bool) error {
	if l == nil {
		return nil
	}
	if !wait {
		if !l.Allow() {
			return ErrRateLimited
		}
		return nil
	}
	if err := l.Wait(ctx); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return ErrRateLimited
	}
	return nil
}
