package pinnedhttp

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Client performs HTTP/1.1 exchanges over connections pinned to one
// interface class. A Client holds no per-exchange state: every call opens,
// uses and closes its own connection, so calls are independent and may
// complete in any order.
type Client struct {
	cfg *internalConfig
}

// New creates a pinned client.
//
// Example:
//
//	client := pinnedhttp.New(
//	    pinnedhttp.WithInterface(netpath.Cellular),
//	    pinnedhttp.WithLogger(logger),
//	)
//	resp, err := client.Get(ctx, "https://httpbin.org/get")
func New(opts ...Option) *Client {
	return &Client{cfg: newConfig(opts...)}
}

// Config returns the effective client configuration.
func (c *Client) Config() Config {
	return c.cfg.clientConfig
}

// Call is a handle on one in-flight exchange.
type Call struct {
	id     string
	cancel context.CancelFunc
	done   chan struct{}
	conn   *connection

	resp *Response
	err  error
}

// ID returns the exchange id used in logs and spans.
func (c *Call) ID() string { return c.id }

// Cancel abandons the exchange. The socket is closed and the result becomes
// a KindCancelled error unless the exchange already finished. Cancel is safe
// to call more than once and from any goroutine.
func (c *Call) Cancel() { c.cancel() }

// Done is closed when the result is available.
func (c *Call) Done() <-chan struct{} { return c.done }

// Wait blocks until the exchange finishes and returns its result.
func (c *Call) Wait() (*Response, error) {
	<-c.done
	return c.resp, c.err
}

// State returns the current connection state.
func (c *Call) State() ConnState { return c.conn.State() }

// Go starts an exchange on its own goroutine and returns immediately.
// completion, when non-nil, is called exactly once with either a Response or
// an error, after Done is closed.
func (c *Client) Go(ctx context.Context, t Target, completion func(*Response, error)) *Call {
	callCtx, cancel := context.WithCancel(ctx)
	stop := cancel
	if c.cfg.clientConfig.Timeout > 0 {
		var cancelTimeout context.CancelFunc
		callCtx, cancelTimeout = context.WithTimeout(callCtx, c.cfg.clientConfig.Timeout)
		stop = func() {
			cancelTimeout()
			cancel()
		}
	}

	call := &Call{
		id:     uuid.NewString(),
		cancel: cancel,
		done:   make(chan struct{}),
		conn:   newConnection(c.cfg),
	}

	go func() {
		defer stop()
		call.resp, call.err = c.run(callCtx, call, t)
		close(call.done)
		if completion != nil {
			completion(call.resp, call.err)
		}
	}()

	return call
}

// Do performs an exchange and waits for its result.
func (c *Client) Do(ctx context.Context, t Target) (*Response, error) {
	return c.Go(ctx, t, nil).Wait()
}

// Get performs a GET exchange.
func (c *Client) Get(ctx context.Context, rawURL string) (*Response, error) {
	return c.Do(ctx, Get(rawURL))
}

// Post performs a POST exchange.
func (c *Client) Post(ctx context.Context, rawURL string, header map[string]string, body []byte) (*Response, error) {
	return c.Do(ctx, Post(rawURL, header, body))
}

// run sequences encode, exchange and decode with tracing and metrics.
func (c *Client) run(ctx context.Context, call *Call, t Target) (*Response, error) {
	cfg := c.cfg
	start := time.Now()

	spanAttrs := append(cfg.baseAttributes(),
		attribute.String("http.request.method", t.method),
		attribute.String("url.full", t.url),
		attribute.String("lanepin.exchange.id", call.id),
	)
	metricAttrs := append(cfg.baseAttributes(), attribute.String("http.request.method", t.method))

	u, ep, err := parseTarget(t)
	if err == nil {
		spanAttrs = append(spanAttrs,
			attribute.String("url.scheme", u.Scheme),
			attribute.String("server.address", ep.host),
			attribute.Int("server.port", ep.port),
		)
		metricAttrs = append(metricAttrs,
			attribute.String("server.address", ep.host),
			attribute.Int("server.port", ep.port),
		)
	}

	ctx, span := cfg.Tracer.Start(ctx, fmt.Sprintf("HTTP %s", t.method),
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(spanAttrs...),
	)
	defer span.End()

	cfg.Metrics.recordActiveRequest(ctx, 1, metricAttrs)
	defer cfg.Metrics.recordActiveRequest(ctx, -1, metricAttrs)

	var request []byte
	if err == nil {
		request, err = encodeRequest(u, t, cfg.clientConfig.UserAgent)
	}
	if err != nil {
		err = call.conn.fail(ctx, KindInvalidTarget, "encode", err)
		return nil, c.finishError(ctx, span, call, t, metricAttrs, start, 0, err)
	}
	cfg.Metrics.recordRequestBodySize(ctx, int64(len(t.body)), metricAttrs)

	raw, err := call.conn.exchange(ctx, ep, request)

	ct := &call.conn.trace
	ct.addTraceEvents(span)
	ct.recordTimingMetrics(ctx, cfg.Metrics, metricAttrs)
	if ct.boundDevice != "" {
		span.SetAttributes(attribute.String("lanepin.interface.name", ct.boundDevice))
	}

	if err != nil {
		return nil, c.finishError(ctx, span, call, t, metricAttrs, start, len(raw), err)
	}

	resp := DecodeResponse(raw)
	resp.Requested = cfg.clientConfig.Interface
	resp.Used = call.conn.Used()

	span.SetAttributes(
		attribute.String("lanepin.interface.used", resp.Used.String()),
		attribute.Bool("lanepin.interface.mismatch", resp.Mismatch()),
		attribute.Int("http.response.status_code", resp.Status),
		attribute.Int("lanepin.response.size", len(raw)),
	)
	if resp.Mismatch() {
		cfg.Metrics.recordMismatch(ctx, append(metricAttrs,
			attribute.String("lanepin.interface.used", resp.Used.String()),
		))
	}

	durationAttrs := append(metricAttrs, attribute.Int("http.response.status_code", resp.Status))
	if errorType := errorTypeFromStatusCode(resp.Status); errorType != "" {
		span.SetStatus(codes.Error, fmt.Sprintf("HTTP %d", resp.Status))
		span.SetAttributes(attribute.String("error.type", errorType))
		durationAttrs = append(durationAttrs, attribute.String("error.type", errorType))
	}
	cfg.Metrics.recordResponseSize(ctx, int64(len(raw)), metricAttrs)
	cfg.Metrics.recordRequestDuration(ctx, time.Since(start), durationAttrs)

	cfg.logExchange(debugExchange{
		id:       call.id,
		target:   t,
		device:   ct.boundDevice,
		resp:     &resp,
		rawBytes: len(raw),
		duration: time.Since(start),
	})
	return &resp, nil
}

func (c *Client) finishError(
	ctx context.Context,
	span trace.Span,
	call *Call,
	t Target,
	metricAttrs []attribute.KeyValue,
	start time.Time,
	rawBytes int,
	err error,
) error {
	cfg := c.cfg
	errorType := classifyError(err)
	setSpanError(span, err, errorType)

	errAttrs := append(metricAttrs, attribute.String("error.type", errorType))
	cfg.Metrics.recordError(ctx, errAttrs)
	cfg.Metrics.recordRequestDuration(ctx, time.Since(start), errAttrs)

	cfg.Logger.Debug().
		Err(err).
		Str("exchange_id", call.id).
		Str("error_type", errorType).
		Msg("pinnedhttp: exchange failed")

	cfg.logExchange(debugExchange{
		id:       call.id,
		target:   t,
		device:   call.conn.trace.boundDevice,
		rawBytes: rawBytes,
		duration: time.Since(start),
		err:      err,
	})
	return err
}
