package httpserver

import (
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// LoggerConfig configures request logging.
type LoggerConfig struct {
	Logger zerolog.Logger

	// serviceName is set by New.
	serviceName string

	// SkipPaths are not logged. Health check and scrape paths are the usual
	// candidates.
	SkipPaths []string
}

// Logger logs one entry per request: method, path, status, duration, size
// and request ID. 4xx log at warn, 5xx at error.
func Logger(cfg LoggerConfig) Middleware {
	skip := make(map[string]bool, len(cfg.SkipPaths))
	for _, p := range cfg.SkipPaths {
		skip[p] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if skip[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			wrapped := wrapResponseWriter(w)
			next.ServeHTTP(wrapped, r)

			var event *zerolog.Event
			switch status := wrapped.Status(); {
			case status >= 500:
				event = cfg.Logger.Error()
			case status >= 400:
				event = cfg.Logger.Warn()
			default:
				event = cfg.Logger.Info()
			}

			event.
				Str("service", cfg.serviceName).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", wrapped.Status()).
				Dur("duration", time.Since(start)).
				Int("bytes", wrapped.BytesWritten()).
				Str("remote_addr", r.RemoteAddr)
			if id := RequestIDFromContext(r.Context()); id != "" {
				event.Str("request_id", id)
			}
			event.Msg("request completed")
		})
	}
}
