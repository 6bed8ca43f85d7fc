package httpserver

import (
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// routes are the paths recorded verbatim. Everything else is recorded as
// "other" so scanners cannot blow up label cardinality.
var routes = map[string]struct{}{
	"/ping":    {},
	"/livez":   {},
	"/readyz":  {},
	"/path":    {},
	"/metrics": {},
}

func routeOf(r *http.Request) string {
	if _, ok := routes[r.URL.Path]; ok {
		return r.URL.Path
	}
	return "other"
}

// Metrics records status server requests with OpenTelemetry.
type Metrics struct {
	serviceName     string
	requestDuration metric.Float64Histogram
	activeRequests  metric.Int64UpDownCounter
	requestTotal    metric.Int64Counter
}

// MetricsConfig configures the metrics middleware.
type MetricsConfig struct {
	// MeterProvider is the OTel meter provider.
	// If nil, uses otel.GetMeterProvider().
	MeterProvider metric.MeterProvider

	// serviceName is set internally by the server.
	serviceName string

	// DurationBuckets are the request duration histogram bounds in seconds.
	// Scrapes and health checks are local, so the buckets stay small.
	DurationBuckets []float64
}

// DefaultMetricsConfig returns the default metrics configuration.
func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		MeterProvider:   otel.GetMeterProvider(),
		DurationBuckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
	}
}

// NewMetrics creates the status server instruments.
func NewMetrics(cfg MetricsConfig) (*Metrics, error) {
	if cfg.MeterProvider == nil {
		cfg.MeterProvider = otel.GetMeterProvider()
	}
	if len(cfg.DurationBuckets) == 0 {
		cfg.DurationBuckets = DefaultMetricsConfig().DurationBuckets
	}

	meter := cfg.MeterProvider.Meter(scope)

	requestDuration, err := meter.Float64Histogram(
		"lanepin.status.request.duration",
		metric.WithDescription("Duration of status server requests"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(cfg.DurationBuckets...),
	)
	if err != nil {
		return nil, err
	}

	activeRequests, err := meter.Int64UpDownCounter(
		"lanepin.status.active_requests",
		metric.WithDescription("Number of in-flight status server requests"),
	)
	if err != nil {
		return nil, err
	}

	requestTotal, err := meter.Int64Counter(
		"lanepin.status.requests",
		metric.WithDescription("Status server requests by route and status code"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		serviceName:     cfg.serviceName,
		requestDuration: requestDuration,
		activeRequests:  activeRequests,
		requestTotal:    requestTotal,
	}, nil
}

// Middleware returns middleware that records:
//   - lanepin.status.request.duration
//   - lanepin.status.active_requests
//   - lanepin.status.requests
func (m *Metrics) Middleware() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			base := metric.WithAttributes(
				attribute.String("service.name", m.serviceName),
				attribute.String("http.route", routeOf(r)),
			)
			m.activeRequests.Add(r.Context(), 1, base)
			defer m.activeRequests.Add(r.Context(), -1, base)

			wrapped := wrapResponseWriter(w)
			next.ServeHTTP(wrapped, r)

			done := metric.WithAttributes(
				attribute.String("service.name", m.serviceName),
				attribute.String("http.route", routeOf(r)),
				attribute.String("http.request.method", r.Method),
				attribute.Int("http.response.status_code", wrapped.Status()),
			)
			m.requestDuration.Record(r.Context(), time.Since(start).Seconds(), done)
			m.requestTotal.Add(r.Context(), 1, done)
		})
	}
}
