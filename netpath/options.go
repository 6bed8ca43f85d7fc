package netpath

import (
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const (
	// scope is the instrumentation scope name for OpenTelemetry.
	scope = "github.com/kroma-labs/lanepin/netpath"
)

// internalConfig holds Monitor configuration.
type internalConfig struct {
	inventory Inventory
	watcher   Watcher
	policy    Policy

	logger zerolog.Logger

	// MeterProvider is the meter provider to use.
	// If not set, uses the global provider via otel.GetMeterProvider().
	MeterProvider metric.MeterProvider

	// Metrics holds the metric instruments.
	Metrics *metrics
}

// newConfig creates a new internal config with defaults and applies options.
func newConfig(opts ...Option) *internalConfig {
	cfg := &internalConfig{
		logger:        zerolog.Nop(),
		MeterProvider: otel.GetMeterProvider(),
	}

	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.inventory == nil {
		cfg.inventory = NewSystemInventory()
	}
	if cfg.watcher == nil {
		cfg.watcher = DefaultWatcher()
	}

	// Initialize metrics (ignore errors, will just be nil if fails)
	cfg.Metrics, _ = newMetrics(cfg.MeterProvider.Meter(scope))

	return cfg
}

// Option configures a Monitor.
type Option func(*internalConfig)

// WithInventory sets the interface source. Default: NewSystemInventory().
func WithInventory(inv Inventory) Option {
	return func(cfg *internalConfig) {
		if inv != nil {
			cfg.inventory = inv
		}
	}
}

// WithWatcher sets the change notification source. Default: DefaultWatcher(),
// which is rtnetlink on Linux and polling elsewhere.
//
// Example - Poll every 5 seconds:
//
//	m := netpath.NewMonitor(
//	    netpath.WithWatcher(netpath.NewPollWatcher(5 * time.Second)),
//	)
func WithWatcher(w Watcher) Option {
	return func(cfg *internalConfig) {
		if w != nil {
			cfg.watcher = w
		}
	}
}

// WithPolicy sets the expensive/constrained interface policy.
func WithPolicy(p Policy) Option {
	return func(cfg *internalConfig) {
		cfg.policy = p
	}
}

// WithLogger sets the logger. Default: zerolog.Nop().
func WithLogger(l zerolog.Logger) Option {
	return func(cfg *internalConfig) {
		cfg.logger = l
	}
}

// WithMeterProvider sets the meter provider for path update metrics.
// If not set, the global meter provider is used.
func WithMeterProvider(provider metric.MeterProvider) Option {
	return func(cfg *internalConfig) {
		if provider != nil {
			cfg.MeterProvider = provider
		}
	}
}
