package pinnedhttp

import (
	"fmt"
	"net/http"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// debugLogger is the package-level zerolog logger for debug output.
var debugLogger = zerolog.New(os.Stdout).With().Timestamp().Logger()

// generateCurlCommand creates a cURL command equivalent for the target,
// pinned with --interface when the bound device is known.
//
// Example output:
//
//	curl --interface wwan0 -X POST 'https://api.example.com/users' \
//	  -H 'Content-Type: application/json' \
//	  -d '{"name":"John"}'
func generateCurlCommand(t Target, device string) string {
	var parts []string

	parts = append(parts, "curl")

	if device != "" {
		parts = append(parts, "--interface", device)
	}

	// Method
	if t.method != http.MethodGet {
		parts = append(parts, "-X", t.method)
	}

	// URL
	parts = append(parts, fmt.Sprintf("'%s'", t.url))

	// Headers (sorted for consistent output)
	headerKeys := make([]string, 0, len(t.header))
	for k := range t.header {
		headerKeys = append(headerKeys, k)
	}
	sort.Strings(headerKeys)

	for _, k := range headerKeys {
		parts = append(parts, "-H", fmt.Sprintf("'%s: %s'", k, t.header[k]))
	}

	// Body
	if len(t.body) > 0 {
		// Escape single quotes in body
		bodyStr := strings.ReplaceAll(string(t.body), "'", "'\\''")
		parts = append(parts, "-d", fmt.Sprintf("'%s'", bodyStr))
	}

	return strings.Join(parts, " ")
}

// debugExchange is the per-exchange record written in debug mode.
type debugExchange struct {
	id       string
	target   Target
	device   string
	resp     *Response
	rawBytes int
	duration time.Duration
	err      error
}

// logExchange writes one debug line for a finished exchange.
func (cfg *internalConfig) logExchange(x debugExchange) {
	if !cfg.Debug {
		return
	}
	logger := &debugLogger
	if cfg.loggerSet {
		logger = &cfg.Logger
	}

	event := logger.Info()
	if x.err != nil {
		event = logger.Warn().Err(x.err).Stringer("kind", KindOf(x.err))
	}
	event = event.
		Str("exchange_id", x.id).
		Str("method", x.target.method).
		Str("url", x.target.url).
		Stringer("requested", cfg.clientConfig.Interface).
		Str("device", x.device).
		Dur("duration", x.duration).
		Int("bytes", x.rawBytes).
		Str("curl", generateCurlCommand(x.target, x.device))
	if x.resp != nil {
		event = event.
			Int("status", x.resp.Status).
			Stringer("used", x.resp.Used).
			Bool("mismatch", x.resp.Mismatch())
	}
	event.Msg("pinnedhttp: exchange")
}
