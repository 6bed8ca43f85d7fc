package httpserver

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Config holds the status server configuration.
//
// Start from DefaultConfig and override what you need:
//
//	cfg := httpserver.DefaultConfig()
//	cfg.Addr = "127.0.0.1:9464"
//
//	server := httpserver.New(
//	    httpserver.WithConfig(cfg),
//	    httpserver.WithSource(monitor),
//	)
type Config struct {
	// Addr is the TCP address to listen on (default: ":9464").
	Addr string

	// ServiceName appears in health responses and request logs.
	// Default: "lanepin"
	ServiceName string

	// ReadTimeout bounds reading a whole request. Zero means no timeout.
	// Default: 5s
	ReadTimeout time.Duration

	// ReadHeaderTimeout bounds reading request headers.
	// Default: 5s
	ReadHeaderTimeout time.Duration

	// WriteTimeout bounds writing a response. A Prometheus scrape must fit.
	// Default: 10s
	WriteTimeout time.Duration

	// IdleTimeout bounds idle keep-alive connections.
	// Default: 60s
	IdleTimeout time.Duration

	// MaxHeaderBytes caps request header size.
	// Default: 64KB
	MaxHeaderBytes int

	// ShutdownTimeout is how long in-flight requests get to finish once
	// shutdown starts. Remaining connections are then closed.
	// Default: 5s
	ShutdownTimeout time.Duration

	// Logger is used for server lifecycle events.
	Logger zerolog.Logger

	// Middleware wraps the handler, outermost first.
	Middleware []Middleware

	// Handler serves requests. When nil, New builds the status routes from
	// Source, the health handler and Gatherer.
	Handler http.Handler

	// Source provides the latest path snapshot for /path and /readyz.
	Source SnapshotSource

	// Gatherer backs /metrics. Nil uses prometheus.DefaultGatherer.
	Gatherer prometheus.Gatherer

	// LoggerConfig enables request logging. ServiceName is applied.
	LoggerConfig *LoggerConfig

	// HealthHandler is populated by WithHealth.
	HealthHandler **HealthHandler

	// HealthVersion is the version string in health responses.
	HealthVersion string

	// TracerProvider enables a server span per request. Nil disables it.
	TracerProvider trace.TracerProvider

	// MeterProvider enables request metrics. Nil disables them.
	MeterProvider metric.MeterProvider
}

// DefaultConfig returns the configuration used by `lanepin monitor`.
//
// Timeout values:
//   - ReadTimeout: 5s
//   - WriteTimeout: 10s
//   - IdleTimeout: 60s
//   - ShutdownTimeout: 5s
func DefaultConfig() Config {
	return Config{
		Addr:              ":9464",
		ServiceName:       "lanepin",
		ReadTimeout:       5 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    64 << 10,
		ShutdownTimeout:   5 * time.Second,
	}
}
