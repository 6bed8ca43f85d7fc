package httpserver

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Option configures the server.
type Option func(*Config)

// WithConfig replaces the whole configuration.
func WithConfig(cfg Config) Option {
	return func(c *Config) {
		*c = cfg
	}
}

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(c *Config) {
		c.Addr = addr
	}
}

// WithServiceName sets the service name used by health responses and
// request logs.
func WithServiceName(name string) Option {
	return func(c *Config) {
		c.ServiceName = name
	}
}

// WithHandler serves h instead of the built-in status routes.
func WithHandler(h http.Handler) Option {
	return func(c *Config) {
		c.Handler = h
	}
}

// WithSource sets the snapshot source behind /path and /readyz.
// A *netpath.Monitor satisfies SnapshotSource.
//
// Example:
//
//	monitor := netpath.NewMonitor()
//	server := httpserver.New(httpserver.WithSource(monitor))
func WithSource(src SnapshotSource) Option {
	return func(c *Config) {
		c.Source = src
	}
}

// WithGatherer sets the registry exposed at /metrics.
//
// Example:
//
//	reg := prometheus.NewRegistry()
//	server := httpserver.New(
//	    httpserver.WithSource(monitor),
//	    httpserver.WithGatherer(reg),
//	)
func WithGatherer(g prometheus.Gatherer) Option {
	return func(c *Config) {
		c.Gatherer = g
	}
}

// WithLogger sets the logger for server lifecycle events. For per-request
// logs use WithLogging.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Config) {
		c.Logger = l
	}
}

// WithMiddleware adds middleware around the handler. The first one given
// is the outermost.
func WithMiddleware(ms ...Middleware) Option {
	return func(c *Config) {
		c.Middleware = append(c.Middleware, ms...)
	}
}

// WithLogging enables request logging. The server's ServiceName is added
// to every entry.
//
// Example:
//
//	server := httpserver.New(
//	    httpserver.WithSource(monitor),
//	    httpserver.WithLogging(httpserver.LoggerConfig{
//	        Logger:    logger,
//	        SkipPaths: []string{"/livez", "/readyz", "/ping", "/metrics"},
//	    }),
//	)
func WithLogging(cfg LoggerConfig) Option {
	return func(c *Config) {
		c.LoggerConfig = &cfg
	}
}

// WithHealth creates a HealthHandler carrying the server's ServiceName and
// stores it in *handler so callers can add their own checks.
//
// Example:
//
//	var health *httpserver.HealthHandler
//	server := httpserver.New(
//	    httpserver.WithSource(monitor),
//	    httpserver.WithHealth(&health, version),
//	)
//	health.AddLivenessCheck("watcher", watcherCheck)
func WithHealth(handler **HealthHandler, version string) Option {
	return func(c *Config) {
		c.HealthVersion = version
		c.HealthHandler = handler
	}
}

// WithTelemetry instruments requests with tracing and metrics. Either
// provider may be nil to leave that signal off. Scrapes of /metrics and
// /ping are not traced.
func WithTelemetry(tp trace.TracerProvider, mp metric.MeterProvider) Option {
	return func(c *Config) {
		c.TracerProvider = tp
		c.MeterProvider = mp
	}
}
