package lane

import (
	"context"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// metrics holds the lane instruments.
type metrics struct {
	// requests counts finished lane requests by outcome
	// (success, error, rejected).
	requests metric.Int64Counter

	// duration measures lane duration including retries, in seconds.
	duration metric.Float64Histogram

	// retries counts retry attempts.
	retries metric.Int64Counter

	// breakerState tracks breaker state (0=closed, 1=half-open, 2=open).
	breakerState metric.Int64Gauge
}

func newMetrics(meter metric.Meter) (*metrics, error) {
	m := &metrics{}
	var err error

	m.requests, err = meter.Int64Counter(
		"lanepin.lane.requests",
		metric.WithDescription("Lane requests by outcome"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	m.duration, err = meter.Float64Histogram(
		"lanepin.lane.duration",
		metric.WithDescription("Lane request duration including retries"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	m.retries, err = meter.Int64Counter(
		"lanepin.lane.retries",
		metric.WithDescription("Lane retry attempts"),
		metric.WithUnit("{retry}"),
	)
	if err != nil {
		return nil, err
	}

	m.breakerState, err = meter.Int64Gauge(
		"lanepin.lane.breaker.state",
		metric.WithDescription("Lane circuit breaker state (0=closed, 1=half-open, 2=open)"),
	)
	if err != nil {
		return nil, err
	}

	return m, nil
}

func (m *metrics) recordRequest(ctx context.Context, l Lane, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("lanepin.lane", string(l)),
		attribute.String("outcome", outcome),
	)
	m.requests.Add(ctx, 1, attrs)
	m.duration.Record(ctx, d.Seconds(), attrs)
}

func (m *metrics) recordRetry(ctx context.Context, l Lane) {
	if m == nil {
		return
	}
	m.retries.Add(ctx, 1, metric.WithAttributes(attribute.String("lanepin.lane", string(l))))
}

func (m *metrics) recordBreakerState(ctx context.Context, l Lane, s gobreaker.State) {
	if m == nil {
		return
	}
	m.breakerState.Record(ctx, int64(s), metric.WithAttributes(attribute.String("lanepin.lane", string(l))))
}
