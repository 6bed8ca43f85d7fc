package lane

import (
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/kroma-labs/lanepin/netpath"
	"github.com/kroma-labs/lanepin/pinnedhttp"
)

const (
	// scope is the instrumentation scope name for OpenTelemetry.
	scope = "github.com/kroma-labs/lanepin/lane"

	// DefaultLaneTimeout bounds every default-lane request.
	DefaultLaneTimeout = 10 * time.Second

	// DefaultMaxBodyBytes caps default-lane bodies, matching the pinned
	// client's response cap.
	DefaultMaxBodyBytes = 32 * 1024 * 1024
)

type internalConfig struct {
	class        netpath.InterfaceClass
	pinned       *pinnedhttp.Client
	pinnedOpts   []pinnedhttp.Option
	httpClient   *http.Client
	selector     pinnedhttp.Selector
	maxBodyBytes int64

	retry     RetryConfig
	breaker   *BreakerConfig
	rateLimit RateLimitConfig

	logger         zerolog.Logger
	TracerProvider trace.TracerProvider
	MeterProvider  metric.MeterProvider
	Tracer         trace.Tracer
	Metrics        *metrics
}

func newConfig(opts ...Option) *internalConfig {
	cfg := &internalConfig{
		class:          netpath.Cellular,
		maxBodyBytes:   DefaultMaxBodyBytes,
		retry:          NoRetryConfig(),
		logger:         zerolog.Nop(),
		TracerProvider: otel.GetTracerProvider(),
		MeterProvider:  otel.GetMeterProvider(),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.selector == nil {
		cfg.selector = pinnedhttp.NewSystemSelector(nil)
	}
	if cfg.pinned == nil {
		popts := []pinnedhttp.Option{
			pinnedhttp.WithInterface(cfg.class),
			pinnedhttp.WithSelector(cfg.selector),
			pinnedhttp.WithLogger(cfg.logger),
			pinnedhttp.WithTracerProvider(cfg.TracerProvider),
			pinnedhttp.WithMeterProvider(cfg.MeterProvider),
		}
		cfg.pinned = pinnedhttp.New(append(popts, cfg.pinnedOpts...)...)
	}
	if cfg.httpClient == nil {
		cfg.httpClient = &http.Client{Timeout: DefaultLaneTimeout}
	}

	cfg.Tracer = cfg.TracerProvider.Tracer(scope)
	cfg.Metrics, _ = newMetrics(cfg.MeterProvider.Meter(scope))
	return cfg
}

// Option configures a Runner.
type Option func(*internalConfig)

// WithInterface sets the class of the pinned lane. Ignored when
// WithPinnedClient is used.
// Default: netpath.Cellular
func WithInterface(class netpath.InterfaceClass) Option {
	return func(cfg *internalConfig) {
		cfg.class = class
	}
}

// WithPinnedClient sets the client of the pinned lane.
func WithPinnedClient(c *pinnedhttp.Client) Option {
	return func(cfg *internalConfig) {
		cfg.pinned = c
	}
}

// WithPinnedOptions adds options to the pinned client the runner builds.
//
// Example:
//
//	runner := lane.NewRunner(lane.WithPinnedOptions(
//	    pinnedhttp.WithStrictInterface(true),
//	    pinnedhttp.WithTimeout(15*time.Second),
//	))
func WithPinnedOptions(opts ...pinnedhttp.Option) Option {
	return func(cfg *internalConfig) {
		cfg.pinnedOpts = append(cfg.pinnedOpts, opts...)
	}
}

// WithHTTPClient sets the client of the default lane.
// Default: &http.Client{Timeout: 10 * time.Second}
func WithHTTPClient(c *http.Client) Option {
	return func(cfg *internalConfig) {
		cfg.httpClient = c
	}
}

// WithSelector sets the selector shared by the pinned lane and the
// default lane's interface observation.
func WithSelector(s pinnedhttp.Selector) Option {
	return func(cfg *internalConfig) {
		cfg.selector = s
	}
}

// WithMaxBodyBytes caps default-lane response bodies. Zero means unlimited.
func WithMaxBodyBytes(n int64) Option {
	return func(cfg *internalConfig) {
		cfg.maxBodyBytes = n
	}
}

// WithRetryConfig enables caller-side retries on both lanes.
func WithRetryConfig(c RetryConfig) Option {
	return func(cfg *internalConfig) {
		cfg.retry = c
	}
}

// WithBreakerConfig enables a circuit breaker per lane.
func WithBreakerConfig(c BreakerConfig) Option {
	return func(cfg *internalConfig) {
		cfg.breaker = &c
	}
}

// WithRateLimit limits how often either lane starts a request.
func WithRateLimit(c RateLimitConfig) Option {
	return func(cfg *internalConfig) {
		cfg.rateLimit = c
	}
}

// WithLogger sets the logger. Default: zerolog.Nop().
func WithLogger(l zerolog.Logger) Option {
	return func(cfg *internalConfig) {
		cfg.logger = l
	}
}

// WithTracerProvider sets the tracer provider.
// If not set, the global tracer provider is used.
func WithTracerProvider(provider trace.TracerProvider) Option {
	return func(cfg *internalConfig) {
		if provider != nil {
			cfg.TracerProvider = provider
		}
	}
}

// WithMeterProvider sets the meter provider.
// If not set, the global meter provider is used.
func WithMeterProvider(provider metric.MeterProvider) Option {
	return func(cfg *internalConfig) {
		if provider != nil {
			cfg.MeterProvider = provider
		}
	}
}
