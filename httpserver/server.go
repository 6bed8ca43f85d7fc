package httpserver

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/rs/zerolog"
)

// Server is the status server of `lanepin monitor`. It wraps http.Server
// with graceful shutdown, signal handling and lifecycle logging.
//
//	server := httpserver.New(
//	    httpserver.WithAddr(":9464"),
//	    httpserver.WithSource(monitor),
//	    httpserver.WithGatherer(registry),
//	)
//
//	// Blocks until SIGTERM, SIGINT or ctx cancellation.
//	if err := server.ListenAndServe(ctx); err != nil {
//	    return err
//	}
type Server struct {
	httpServer  *http.Server
	config      Config
	logger      zerolog.Logger
	serviceName string
	health      *HealthHandler

	mu       sync.Mutex
	listener net.Listener
}

// New creates a Server. Without WithHandler it serves the status routes
// (see Routes). If no config is given, DefaultConfig() is used.
func New(opts ...Option) *Server {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	if cfg.ServiceName == "" {
		cfg.ServiceName = "lanepin"
	}
	if cfg.Addr == "" {
		cfg.Addr = ":9464"
	}

	health := NewHealthHandler(
		withHealthServiceName(cfg.ServiceName),
		WithVersion(cfg.HealthVersion),
	)
	if cfg.Source != nil {
		health.AddReadinessCheck("path", SnapshotCheck(cfg.Source))
	}
	if cfg.HealthHandler != nil {
		*cfg.HealthHandler = health
	}

	handler := cfg.Handler
	if handler == nil {
		handler = Routes(cfg.Source, health, cfg.Gatherer)
	}

	middlewares := []Middleware{Recovery(cfg.Logger), RequestID()}
	if cfg.TracerProvider != nil {
		middlewares = append(middlewares, Tracing(TracingConfig{
			TracerProvider: cfg.TracerProvider,
			serviceName:    cfg.ServiceName,
			SkipPaths:      []string{"/metrics", "/ping"},
		}))
	}
	if cfg.MeterProvider != nil {
		mcfg := DefaultMetricsConfig()
		mcfg.MeterProvider = cfg.MeterProvider
		mcfg.serviceName = cfg.ServiceName
		if m, err := NewMetrics(mcfg); err != nil {
			cfg.Logger.Warn().Err(err).Msg("status server metrics disabled")
		} else {
			middlewares = append(middlewares, m.Middleware())
		}
	}
	if cfg.LoggerConfig != nil {
		loggerCfg := *cfg.LoggerConfig
		loggerCfg.serviceName = cfg.ServiceName
		middlewares = append(middlewares, Logger(loggerCfg))
	}
	middlewares = append(middlewares, cfg.Middleware...)

	return &Server{
		httpServer: &http.Server{
			Addr:              cfg.Addr,
			Handler:           Chain(middlewares...)(handler),
			ReadTimeout:       cfg.ReadTimeout,
			ReadHeaderTimeout: cfg.ReadHeaderTimeout,
			WriteTimeout:      cfg.WriteTimeout,
			IdleTimeout:       cfg.IdleTimeout,
			MaxHeaderBytes:    cfg.MaxHeaderBytes,
		},
		config:      cfg,
		logger:      cfg.Logger,
		serviceName: cfg.ServiceName,
		health:      health,
	}
}

// ListenAndServe listens on the configured address and blocks until
// shutdown. It returns nil after a clean shutdown triggered by SIGTERM,
// SIGINT or ctx cancellation.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until shutdown. Serve takes ownership of ln.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	shutdownChan := make(chan os.Signal, 1)
	signal.Notify(shutdownChan, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(shutdownChan)

	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	serverErrChan := make(chan error, 1)
	go func() {
		s.logger.Info().
			Str("addr", ln.Addr().String()).
			Str("service", s.serviceName).
			Msg("status server starting")

		err := s.httpServer.Serve(ln)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrChan <- err
		}
		close(serverErrChan)
	}()

	select {
	case err, ok := <-serverErrChan:
		if ok && err != nil {
			s.logger.Error().Err(err).Msg("status server error")
			return err
		}
		return nil
	case sig := <-shutdownChan:
		s.logger.Info().
			Str("signal", sig.String()).
			Msg("shutdown signal received")
	case <-ctx.Done():
		s.logger.Info().
			Err(ctx.Err()).
			Msg("context cancelled, shutting down")
	}

	// The drain must outlive the cancelled parent.
	return s.shutdown(context.WithoutCancel(ctx))
}

func (s *Server) shutdown(ctx context.Context) error {
	s.logger.Info().
		Dur("timeout", s.config.ShutdownTimeout).
		Msg("starting graceful shutdown")

	shutdownCtx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Error().
			Err(err).
			Msg("graceful shutdown failed, forcing close")
		if closeErr := s.httpServer.Close(); closeErr != nil {
			s.logger.Error().Err(closeErr).Msg("force close failed")
		}
		return err
	}

	s.logger.Info().Msg("status server stopped gracefully")
	return nil
}

// Shutdown gracefully stops the server without waiting for a signal.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// Addr returns the bound address once serving, otherwise the configured
// one. Use it to learn the port picked for ":0".
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.httpServer.Addr
}

// ServiceName returns the configured service name.
func (s *Server) ServiceName() string {
	return s.serviceName
}

// Health returns the server's health handler.
func (s *Server) Health() *HealthHandler {
	return s.health
}
