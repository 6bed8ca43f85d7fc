package netpath

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// metrics holds the metric instruments for path monitoring.
type metrics struct {
	// updates counts emitted snapshots, by status and preferred class.
	updates metric.Int64Counter

	// readErrors counts inventory reads that failed and were skipped.
	readErrors metric.Int64Counter
}

// newMetrics creates and registers metric instruments.
func newMetrics(meter metric.Meter) (*metrics, error) {
	m := &metrics{}
	var err error

	m.updates, err = meter.Int64Counter(
		"network.path.updates",
		metric.WithDescription("Number of network path snapshots emitted"),
		metric.WithUnit("{snapshot}"),
	)
	if err != nil {
		return nil, err
	}

	m.readErrors, err = meter.Int64Counter(
		"network.path.read_errors",
		metric.WithDescription("Number of failed interface inventory reads"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	return m, nil
}

// recordUpdate records an emitted snapshot.
func (m *metrics) recordUpdate(ctx context.Context, snap Snapshot) {
	if m == nil || m.updates == nil {
		return
	}
	m.updates.Add(ctx, 1, metric.WithAttributes(
		attribute.String("network.path.status", snap.Status.String()),
		attribute.String("network.path.preferred", snap.Preferred.String()),
	))
}

// recordReadError records a skipped inventory read.
func (m *metrics) recordReadError(ctx context.Context) {
	if m == nil || m.readErrors == nil {
		return
	}
	m.readErrors.Add(ctx, 1)
}
