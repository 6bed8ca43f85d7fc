package lane

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/sony/gobreaker/v2"

	"github.com/kroma-labs/lanepin/pinnedhttp"
)

// RetryConfig holds the caller-side retry behaviour.
// Use DefaultRetryConfig() for balanced defaults, then modify as needed.
//
// Invalid targets, cancellations and open breakers are never retried.
// Statuses 429, 502, 503 and 504 are retried; the last response is
// returned once retries are exhausted.
type RetryConfig struct {
	// MaxRetries is the number of retries after the first attempt.
	// Set to 0 to disable retries.
	// Default: 3
	MaxRetries uint

	// InitialInterval is the first backoff interval.
	// Default: 500ms
	InitialInterval time.Duration

	// MaxInterval caps the backoff interval.
	// Default: 30s
	MaxInterval time.Duration

	// MaxElapsedTime bounds the whole retry sequence. Zero means only
	// MaxRetries applies.
	// Default: 2m
	MaxElapsedTime time.Duration

	// Multiplier controls exponential growth of backoff intervals.
	// Default: 2.0
	Multiplier float64

	// JitterFactor randomizes each interval by ±JitterFactor.
	// Default: 0.5
	JitterFactor float64
}

// Default values for RetryConfig.
const (
	DefaultMaxRetries      = 3
	DefaultInitialInterval = 500 * time.Millisecond
	DefaultMaxInterval     = 30 * time.Second
	DefaultMaxElapsedTime  = 2 * time.Minute
	DefaultMultiplier      = 2.0
	DefaultJitterFactor    = 0.5
)

// DefaultRetryConfig returns 3 retries with exponential backoff
// (500ms → 1s → 2s) and ±50% jitter.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:      DefaultMaxRetries,
		InitialInterval: DefaultInitialInterval,
		MaxInterval:     DefaultMaxInterval,
		MaxElapsedTime:  DefaultMaxElapsedTime,
		Multiplier:      DefaultMultiplier,
		JitterFactor:    DefaultJitterFactor,
	}
}

// NoRetryConfig disables retries.
func NoRetryConfig() RetryConfig {
	return RetryConfig{}
}

// IsEnabled returns true if retries are enabled.
func (c RetryConfig) IsEnabled() bool {
	return c.MaxRetries > 0
}

// newBackOff builds the exponential backoff, always with some jitter.
func (c RetryConfig) newBackOff() *backoff.ExponentialBackOff {
	jitter := c.JitterFactor
	if jitter <= 0 {
		jitter = DefaultJitterFactor
	}
	b := &backoff.ExponentialBackOff{
		InitialInterval:     c.InitialInterval,
		RandomizationFactor: jitter,
		Multiplier:          c.Multiplier,
		MaxInterval:         c.MaxInterval,
	}
	if b.InitialInterval <= 0 {
		b.InitialInterval = DefaultInitialInterval
	}
	if b.Multiplier < 1 {
		b.Multiplier = DefaultMultiplier
	}
	if b.MaxInterval <= 0 {
		b.MaxInterval = DefaultMaxInterval
	}
	b.Reset()
	return b
}

// errRetryableStatus marks a response whose status asks for a retry. It
// counts as a breaker failure and never reaches the caller.
var errRetryableStatus = errors.New("retryable status")

func retryableStatus(status int) bool {
	switch status {
	case 429, 502, 503, 504:
		return true
	}
	return false
}

// retryable reports whether err is worth another attempt.
func retryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, errRetryableStatus) {
		return true
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, ErrRateLimited) {
		return false
	}
	switch pinnedhttp.KindOf(err) {
	case pinnedhttp.KindInvalidTarget, pinnedhttp.KindCancelled:
		return false
	}
	return true
}
