package pinnedhttp

import (
	"context"
	"crypto/tls"
	"errors"
	"io"
	"net"
	"strconv"
	"strings"
	"syscall"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Error type constants for the error.type attribute.
const (
	// ErrorTypeInvalidTarget indicates the URL could not be encoded.
	ErrorTypeInvalidTarget = "invalid_target"

	// ErrorTypeInterfaceUnavailable indicates no interface of the requested
	// class could carry the connection.
	ErrorTypeInterfaceUnavailable = "interface_unavailable"

	// ErrorTypeTimeout indicates the exchange exceeded its deadline.
	ErrorTypeTimeout = "timeout"

	// ErrorTypeConnectionRefused indicates the server refused the connection.
	ErrorTypeConnectionRefused = "connection_refused"

	// ErrorTypeDNSError indicates hostname resolution failed.
	ErrorTypeDNSError = "dns_error"

	// ErrorTypeTLSError indicates a TLS handshake or certificate error.
	ErrorTypeTLSError = "tls_error"

	// ErrorTypeCancelled indicates the caller cancelled the exchange.
	ErrorTypeCancelled = "cancelled"

	// ErrorTypeConnectionReset indicates the peer reset the connection.
	ErrorTypeConnectionReset = "connection_reset"

	// ErrorTypeEOF indicates the stream ended mid-record.
	ErrorTypeEOF = "eof"

	// ErrorTypeTooLarge indicates the response exceeded MaxResponseBytes.
	ErrorTypeTooLarge = "response_too_large"

	// ErrorTypeUnknown is used when the error doesn't match known types.
	ErrorTypeUnknown = "unknown"
)

// connTrace captures stage timestamps of one exchange. It is written only
// by the goroutine running the exchange and read after it finishes.
type connTrace struct {
	selectStart time.Time
	selectDone  time.Time

	dnsStart time.Time
	dnsDone  time.Time
	dnsAddrs []string

	connectStart time.Time
	connectDone  time.Time

	tlsStart    time.Time
	tlsDone     time.Time
	tlsVersion  string
	tlsResumed  bool
	localAddr   string
	remoteAddr  string
	boundDevice string

	wroteRequest time.Time
	firstByte    time.Time
}

// addTraceEvents adds stage events to the span.
func (ct *connTrace) addTraceEvents(span trace.Span) {
	if !ct.selectStart.IsZero() && !ct.selectDone.IsZero() {
		span.AddEvent("interface.selected", trace.WithTimestamp(ct.selectDone),
			trace.WithAttributes(
				attribute.String("lanepin.interface.name", ct.boundDevice),
				attribute.Float64(
					"select.duration_ms",
					float64(ct.selectDone.Sub(ct.selectStart).Milliseconds()),
				),
			))
	}

	if !ct.dnsStart.IsZero() && !ct.dnsDone.IsZero() {
		span.AddEvent("dns.start", trace.WithTimestamp(ct.dnsStart))
		span.AddEvent("dns.done", trace.WithTimestamp(ct.dnsDone),
			trace.WithAttributes(
				attribute.Float64(
					"dns.duration_ms",
					float64(ct.dnsDone.Sub(ct.dnsStart).Milliseconds()),
				),
				attribute.StringSlice("dns.addresses", ct.dnsAddrs),
			))
	}

	if !ct.connectStart.IsZero() && !ct.connectDone.IsZero() {
		span.AddEvent("connect.start", trace.WithTimestamp(ct.connectStart))
		span.AddEvent("connect.done", trace.WithTimestamp(ct.connectDone),
			trace.WithAttributes(
				attribute.Float64(
					"connect.duration_ms",
					float64(ct.connectDone.Sub(ct.connectStart).Milliseconds()),
				),
				attribute.String("network.local.address", ct.localAddr),
				attribute.String("network.peer.address", ct.remoteAddr),
			))
	}

	if !ct.tlsStart.IsZero() && !ct.tlsDone.IsZero() {
		span.AddEvent("tls.start", trace.WithTimestamp(ct.tlsStart))
		span.AddEvent("tls.done", trace.WithTimestamp(ct.tlsDone),
			trace.WithAttributes(
				attribute.Float64(
					"tls.duration_ms",
					float64(ct.tlsDone.Sub(ct.tlsStart).Milliseconds()),
				),
				attribute.String("tls.protocol.version", ct.tlsVersion),
				attribute.Bool("tls.resumed", ct.tlsResumed),
			))
	}

	if !ct.wroteRequest.IsZero() {
		span.AddEvent("wrote_request", trace.WithTimestamp(ct.wroteRequest))
	}

	if !ct.firstByte.IsZero() {
		var ttfbMs float64
		if !ct.wroteRequest.IsZero() {
			ttfbMs = float64(ct.firstByte.Sub(ct.wroteRequest).Milliseconds())
		}
		span.AddEvent("got_first_response_byte", trace.WithTimestamp(ct.firstByte),
			trace.WithAttributes(
				attribute.Float64("ttfb_ms", ttfbMs),
			))
	}
}

// recordTimingMetrics records stage durations.
func (ct *connTrace) recordTimingMetrics(
	ctx context.Context,
	m *metrics,
	attrs []attribute.KeyValue,
) {
	if m == nil {
		return
	}

	if !ct.dnsStart.IsZero() && !ct.dnsDone.IsZero() {
		m.recordDNSDuration(ctx, ct.dnsDone.Sub(ct.dnsStart), attrs)
	}

	if !ct.connectStart.IsZero() && !ct.connectDone.IsZero() {
		m.recordConnectionDuration(ctx, ct.connectDone.Sub(ct.connectStart), attrs)
	}

	if !ct.tlsStart.IsZero() && !ct.tlsDone.IsZero() {
		m.recordTLSDuration(ctx, ct.tlsDone.Sub(ct.tlsStart), attrs)
	}

	if !ct.wroteRequest.IsZero() && !ct.firstByte.IsZero() {
		m.recordTTFB(ctx, ct.firstByte.Sub(ct.wroteRequest), attrs)
	}
}

// tlsVersionName formats a TLS version the way OTel expects ("1.3").
func tlsVersionName(v uint16) string {
	switch v {
	case tls.VersionTLS10:
		return "1.0"
	case tls.VersionTLS11:
		return "1.1"
	case tls.VersionTLS12:
		return "1.2"
	case tls.VersionTLS13:
		return "1.3"
	}
	return ""
}

// classifyError maps an exchange error to an error.type value.
//
// Kinds that name their own cause (invalid target, interface unavailable,
// cancelled) win; connection and I/O failures are refined by their cause.
func classifyError(err error) string {
	if err == nil {
		return ""
	}

	switch KindOf(err) {
	case KindInvalidTarget:
		return ErrorTypeInvalidTarget
	case KindInterfaceUnavailable:
		return ErrorTypeInterfaceUnavailable
	case KindCancelled:
		return ErrorTypeCancelled
	}

	if errors.Is(err, context.Canceled) {
		return ErrorTypeCancelled
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return ErrorTypeTimeout
	}

	if errors.Is(err, ErrResponseTooLarge) {
		return ErrorTypeTooLarge
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return ErrorTypeTimeout
		}
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return ErrorTypeDNSError
	}

	var tlsRecordErr tls.RecordHeaderError
	if errors.As(err, &tlsRecordErr) {
		return ErrorTypeTLSError
	}

	var certErr *tls.CertificateVerificationError
	if errors.As(err, &certErr) {
		return ErrorTypeTLSError
	}

	if errors.Is(err, syscall.ECONNREFUSED) {
		return ErrorTypeConnectionRefused
	}
	if errors.Is(err, syscall.ECONNRESET) {
		return ErrorTypeConnectionReset
	}
	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		return ErrorTypeEOF
	}

	// Fallback: check error message for common patterns
	errStr := strings.ToLower(err.Error())

	if strings.Contains(errStr, "timeout") {
		return ErrorTypeTimeout
	}
	if strings.Contains(errStr, "connection refused") {
		return ErrorTypeConnectionRefused
	}
	if strings.Contains(errStr, "connection reset") {
		return ErrorTypeConnectionReset
	}
	if strings.Contains(errStr, "no such host") {
		return ErrorTypeDNSError
	}
	if strings.Contains(errStr, "tls") || strings.Contains(errStr, "certificate") ||
		strings.Contains(errStr, "x509") {
		return ErrorTypeTLSError
	}

	return ErrorTypeUnknown
}

// errorTypeFromStatusCode returns error.type for HTTP status codes.
// Per OTel semconv, the status code itself is used as the error type for 4xx/5xx.
func errorTypeFromStatusCode(statusCode int) string {
	if statusCode >= 400 {
		return strconv.Itoa(statusCode)
	}
	return ""
}

// setSpanError records an error on the span with proper status and attributes.
func setSpanError(span trace.Span, err error, errorType string) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	if errorType != "" {
		span.SetAttributes(attribute.String("error.type", errorType))
	}
}
