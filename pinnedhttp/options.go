package pinnedhttp

import (
	"crypto/tls"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/kroma-labs/lanepin/netpath"
)

const (
	// scope is the instrumentation scope name for OpenTelemetry.
	scope = "github.com/kroma-labs/lanepin/pinnedhttp"
)

// =============================================================================
// Config - Pinned Client Configuration
// =============================================================================

// Config holds the pinned client parameters.
// Use DefaultConfig() to get a properly initialized configuration,
// then modify specific fields as needed.
//
// Example:
//
//	cfg := pinnedhttp.DefaultConfig()
//	cfg.Interface = netpath.WiFi
//	cfg.StrictInterface = true
//
//	client := pinnedhttp.New(pinnedhttp.WithConfig(cfg))
type Config struct {
	// Interface is the interface class every connection is pinned to.
	// Default: netpath.Cellular
	Interface netpath.InterfaceClass

	// StrictInterface fails the exchange with KindInterfaceUnavailable when
	// the connection becomes ready on a different class than Interface.
	// When false the mismatch is only reported through Response.Mismatch.
	// Default: false
	StrictInterface bool

	// Timeout bounds the whole exchange. Zero means no timeout: the pinned
	// client waits as long as the peer keeps the connection open.
	// Default: 0
	Timeout time.Duration

	// ReadChunkSize is the receive buffer size per read.
	// Default: 64 KiB
	ReadChunkSize int

	// MaxResponseBytes caps the accumulated response. Zero means unlimited.
	// Default: 32 MiB
	MaxResponseBytes int64

	// UserAgent is sent unless the target sets its own.
	// Default: "lanepin/1.0"
	UserAgent string
}

// DefaultConfig returns the default pinned client configuration.
func DefaultConfig() Config {
	return Config{
		Interface:        netpath.Cellular,
		StrictInterface:  false,
		Timeout:          0,
		ReadChunkSize:    64 * 1024,
		MaxResponseBytes: 32 * 1024 * 1024,
		UserAgent:        DefaultUserAgent,
	}
}

// =============================================================================
// Internal Configuration
// =============================================================================

// internalConfig holds all configuration including client and OTel settings.
type internalConfig struct {
	clientConfig Config

	// Selector pins and observes connections.
	// Default: NewSystemSelector(nil)
	Selector Selector

	// TLSConfig is cloned for every https exchange. ServerName defaults to
	// the target host.
	TLSConfig *tls.Config

	// bindDevice overrides the platform device bind. Nil uses bindToDevice.
	bindDevice func(fd uintptr, network string, iface netpath.Interface) error

	// === Logging ===

	Logger    zerolog.Logger
	loggerSet bool
	Debug     bool

	// === OpenTelemetry Configuration ===

	TracerProvider trace.TracerProvider
	MeterProvider  metric.MeterProvider
	Tracer         trace.Tracer
	Meter          metric.Meter
	Metrics        *metrics

	// ServiceName is added as "lanepin.client.name" to spans and metrics.
	ServiceName string
}

// newConfig creates a new internal config with defaults and applies options.
func newConfig(opts ...Option) *internalConfig {
	cfg := &internalConfig{
		clientConfig:   DefaultConfig(),
		Logger:         zerolog.Nop(),
		TracerProvider: otel.GetTracerProvider(),
		MeterProvider:  otel.GetMeterProvider(),
	}

	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.Selector == nil {
		cfg.Selector = NewSystemSelector(nil)
	}
	if cfg.clientConfig.ReadChunkSize <= 0 {
		cfg.clientConfig.ReadChunkSize = DefaultConfig().ReadChunkSize
	}
	if cfg.clientConfig.UserAgent == "" {
		cfg.clientConfig.UserAgent = DefaultUserAgent
	}

	// Initialize tracer and meter after options are applied
	cfg.Tracer = cfg.TracerProvider.Tracer(scope)
	cfg.Meter = cfg.MeterProvider.Meter(scope)

	// Initialize metrics (ignore errors, will just be nil if fails)
	cfg.Metrics, _ = newMetrics(cfg.Meter)

	return cfg
}

// baseAttributes returns common attributes for all spans and metrics.
func (cfg *internalConfig) baseAttributes() []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 2)
	attrs = append(attrs, attribute.String("lanepin.interface.requested", cfg.clientConfig.Interface.String()))
	if cfg.ServiceName != "" {
		attrs = append(attrs, attribute.String("lanepin.client.name", cfg.ServiceName))
	}
	return attrs
}

// =============================================================================
// Options - Functional Options for Client Configuration
// =============================================================================

// Option configures the pinned client.
type Option func(*internalConfig)

// WithConfig replaces the whole client configuration.
func WithConfig(c Config) Option {
	return func(cfg *internalConfig) {
		cfg.clientConfig = c
	}
}

// WithInterface sets the interface class connections are pinned to.
func WithInterface(class netpath.InterfaceClass) Option {
	return func(cfg *internalConfig) {
		cfg.clientConfig.Interface = class
	}
}

// WithStrictInterface makes an interface mismatch fatal.
func WithStrictInterface(strict bool) Option {
	return func(cfg *internalConfig) {
		cfg.clientConfig.StrictInterface = strict
	}
}

// WithTimeout bounds each exchange. Zero disables the timeout.
func WithTimeout(d time.Duration) Option {
	return func(cfg *internalConfig) {
		cfg.clientConfig.Timeout = d
	}
}

// WithUserAgent sets the User-Agent sent when the target has none.
func WithUserAgent(ua string) Option {
	return func(cfg *internalConfig) {
		if ua != "" {
			cfg.clientConfig.UserAgent = ua
		}
	}
}

// WithSelector sets the interface selector.
//
// Example - pin by a custom inventory:
//
//	inv := netpath.NewSystemInventory(netpath.WithClassOverride("usb*", netpath.Cellular))
//	client := pinnedhttp.New(pinnedhttp.WithSelector(pinnedhttp.NewSystemSelector(inv)))
func WithSelector(s Selector) Option {
	return func(cfg *internalConfig) {
		if s != nil {
			cfg.Selector = s
		}
	}
}

// WithTLSConfig sets the TLS configuration used for https targets.
func WithTLSConfig(c *tls.Config) Option {
	return func(cfg *internalConfig) {
		cfg.TLSConfig = c
	}
}

// WithLogger sets the logger. Default: zerolog.Nop().
func WithLogger(l zerolog.Logger) Option {
	return func(cfg *internalConfig) {
		cfg.Logger = l
		cfg.loggerSet = true
	}
}

// WithDebug logs every exchange with a curl equivalent. Output goes to the
// logger set by WithLogger, or to stdout when none is set.
func WithDebug(enabled bool) Option {
	return func(cfg *internalConfig) {
		cfg.Debug = enabled
	}
}

// WithServiceName sets an identifier for this client in traces and metrics.
func WithServiceName(name string) Option {
	return func(cfg *internalConfig) {
		cfg.ServiceName = name
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
