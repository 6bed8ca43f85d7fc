package lane

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/kroma-labs/lanepin/pinnedhttp"
)

// BreakerConfig holds the per-lane circuit breaker configuration.
//
// Each lane has its own breaker, so a dead cellular link opens the pinned
// lane without affecting the default lane.
type BreakerConfig struct {
	// MaxRequests is the number of trial requests allowed while half-open.
	// If 0, the breaker allows 1 request.
	MaxRequests uint32

	// Interval is the cyclic period of the closed state after which
	// counts are cleared. If 0, counts are never cleared while closed.
	Interval time.Duration

	// Timeout is how long the breaker stays open before going half-open.
	Timeout time.Duration

	// ConsecutiveFailures trips the breaker after this many failures in
	// a row.
	ConsecutiveFailures uint32

	// OnStateChange is invoked when a lane breaker changes state.
	OnStateChange func(lane Lane, from, to gobreaker.State)
}

// DefaultBreakerConfig trips after 5 consecutive failures and goes
// half-open after 10s.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		MaxRequests:         1,
		Interval:            10 * time.Second,
		Timeout:             10 * time.Second,
		ConsecutiveFailures: 5,
	}
}

// breakerSuccess reports whether err leaves the breaker counts clean.
// Caller mistakes and cancellations say nothing about the lane's health.
func breakerSuccess(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return true
	}
	switch pinnedhttp.KindOf(err) {
	case pinnedhttp.KindInvalidTarget, pinnedhttp.KindCancelled:
		return true
	}
	return false
}

func newBreaker(l Lane, cfg BreakerConfig, m *metrics) *gobreaker.CircuitBreaker[Result] {
	threshold := cfg.ConsecutiveFailures
	if threshold == 0 {
		threshold = DefaultBreakerConfig().ConsecutiveFailures
	}
	st := gobreaker.Settings{
		Name:         "lanepin-" + string(l),
		MaxRequests:  cfg.MaxRequests,
		Interval:     cfg.Interval,
		Timeout:      cfg.Timeout,
		IsSuccessful: breakerSuccess,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(_ string, from, to gobreaker.State) {
			m.recordBreakerState(context.Background(), l, to)
			if cfg.OnStateChange != nil {
				cfg.OnStateChange(l, from, to)
			}
		},
	}
	return gobreaker.NewCircuitBreaker[Result](st)
}
