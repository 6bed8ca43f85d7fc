package lane

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptrace"
	"slices"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/kroma-labs/lanepin/netpath"
	"github.com/kroma-labs/lanepin/pinnedhttp"
)

// Runner sends targets over the pinned lane, the default lane, or both.
//
// Example:
//
//	runner := lane.NewRunner(
//	    lane.WithInterface(netpath.Cellular),
//	    lane.WithRetryConfig(lane.DefaultRetryConfig()),
//	)
//	cmp := runner.Compare(ctx, pinnedhttp.Get("https://httpbin.org/get"))
//	fmt.Println(cmp.Pinned.Used, cmp.Default.Used)
type Runner struct {
	cfg      *internalConfig
	breakers map[Lane]*gobreaker.CircuitBreaker[Result]
	limiter  *rate.Limiter
}

// NewRunner creates a runner.
func NewRunner(opts ...Option) *Runner {
	cfg := newConfig(opts...)
	r := &Runner{
		cfg:     cfg,
		limiter: newLimiter(cfg.rateLimit),
	}
	if cfg.breaker != nil {
		r.breakers = map[Lane]*gobreaker.CircuitBreaker[Result]{
			Pinned:  newBreaker(Pinned, *cfg.breaker, cfg.Metrics),
			Default: newBreaker(Default, *cfg.breaker, cfg.Metrics),
		}
	}
	return r
}

// Interface returns the class the pinned lane is pinned to.
func (r *Runner) Interface() netpath.InterfaceClass {
	return r.cfg.pinned.Config().Interface
}

// BreakerState returns the breaker state of a lane. ok is false when no
// breaker is configured.
func (r *Runner) BreakerState(l Lane) (state gobreaker.State, ok bool) {
	cb, ok := r.breakers[l]
	if !ok {
		return gobreaker.StateClosed, false
	}
	return cb.State(), true
}

// Pinned sends t over the pinned lane.
func (r *Runner) Pinned(ctx context.Context, t pinnedhttp.Target) Result {
	return r.run(ctx, Pinned, t, r.pinnedAttempt)
}

// Default sends t over the default lane.
func (r *Runner) Default(ctx context.Context, t pinnedhttp.Target) Result {
	return r.run(ctx, Default, t, r.defaultAttempt)
}

// Compare sends t over both lanes concurrently. A failure on one lane does
// not cancel the other.
func (r *Runner) Compare(ctx context.Context, t pinnedhttp.Target) Comparison {
	var (
		g   errgroup.Group
		cmp Comparison
	)
	g.Go(func() error {
		cmp.Pinned = r.Pinned(ctx, t)
		return nil
	})
	g.Go(func() error {
		cmp.Default = r.Default(ctx, t)
		return nil
	})
	_ = g.Wait()
	return cmp
}

type attemptFunc func(ctx context.Context, t pinnedhttp.Target) (Result, error)

// run drives one lane request through the rate limit, the lane breaker and
// the retry loop.
func (r *Runner) run(ctx context.Context, l Lane, t pinnedhttp.Target, attempt attemptFunc) Result {
	cfg := r.cfg
	start := time.Now()

	ctx, span := cfg.Tracer.Start(ctx, "lane."+string(l),
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("lanepin.lane", string(l)),
			attribute.String("http.request.method", t.Method()),
			attribute.String("url.full", t.URL()),
		),
	)
	defer span.End()

	var (
		last     Result
		attempts int
	)
	op := func() (Result, error) {
		attempts++
		if err := acquire(ctx, r.limiter, cfg.rateLimit.WaitOnLimit); err != nil {
			last = Result{}
			return last, err
		}
		res, err := r.execute(l, func() (Result, error) {
			res, err := attempt(ctx, t)
			if err == nil && retryableStatus(res.Status) {
				return res, fmt.Errorf("%w: %d", errRetryableStatus, res.Status)
			}
			return res, err
		})
		last = res
		return res, err
	}

	var err error
	if cfg.retry.IsEnabled() {
		opts := []backoff.RetryOption{
			backoff.WithBackOff(cfg.retry.newBackOff()),
			backoff.WithMaxTries(cfg.retry.MaxRetries + 1),
			backoff.WithNotify(func(err error, next time.Duration) {
				cfg.Metrics.recordRetry(ctx, l)
				span.AddEvent("retry", trace.WithAttributes(
					attribute.Int("retry.attempt", attempts),
					attribute.String("retry.reason", err.Error()),
					attribute.Float64("retry.backoff_ms", float64(next.Milliseconds())),
				))
				cfg.logger.Debug().
					Err(err).
					Stringer("lane", l).
					Int("attempt", attempts).
					Dur("backoff", next).
					Msg("lane: retrying")
			}),
		}
		if cfg.retry.MaxElapsedTime > 0 {
			opts = append(opts, backoff.WithMaxElapsedTime(cfg.retry.MaxElapsedTime))
		}
		_, err = backoff.Retry(ctx, func() (Result, error) {
			res, err := op()
			if err != nil && !retryable(err) {
				return res, backoff.Permanent(err)
			}
			return res, err
		}, opts...)
	} else {
		_, err = op()
	}

	// A retryable status that outlived its retries is still a response.
	if errors.Is(err, errRetryableStatus) {
		err = nil
	}
	if err != nil && errors.Is(ctx.Err(), context.Canceled) && pinnedhttp.KindOf(err) == pinnedhttp.KindUnknown {
		err = &pinnedhttp.Error{Kind: pinnedhttp.KindCancelled, Op: "retry", Err: err}
	}

	res := last
	res.Lane = l
	res.URL = t.URL()
	res.Attempts = attempts
	res.Duration = time.Since(start)
	res.Err = err
	if l == Pinned && res.Requested == netpath.Unknown {
		res.Requested = r.Interface()
	}

	outcome := "success"
	switch {
	case isRejection(err):
		outcome = "rejected"
	case err != nil:
		outcome = "error"
	}
	cfg.Metrics.recordRequest(ctx, l, outcome, res.Duration)

	span.SetAttributes(
		attribute.Int("lane.attempts", attempts),
		attribute.String("lanepin.interface.used", res.Used.String()),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetAttributes(attribute.Int("http.response.status_code", res.Status))
	}

	event := cfg.logger.Debug()
	if err != nil {
		event = cfg.logger.Warn().Err(err)
	}
	event.
		Stringer("lane", l).
		Str("url", res.URL).
		Int("status", res.Status).
		Stringer("requested", res.Requested).
		Stringer("used", res.Used).
		Int("attempts", attempts).
		Dur("duration", res.Duration).
		Msg("lane: request finished")

	return res
}

func (r *Runner) execute(l Lane, fn func() (Result, error)) (Result, error) {
	cb, ok := r.breakers[l]
	if !ok {
		return fn()
	}
	return cb.Execute(fn)
}

func isRejection(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) ||
		errors.Is(err, gobreaker.ErrTooManyRequests) ||
		errors.Is(err, ErrRateLimited)
}

func (r *Runner) pinnedAttempt(ctx context.Context, t pinnedhttp.Target) (Result, error) {
	resp, err := r.cfg.pinned.Do(ctx, t)
	if err != nil {
		return Result{Requested: r.Interface()}, err
	}
	return Result{
		Status:    resp.Status,
		Header:    resp.Header,
		Body:      resp.Body,
		Requested: resp.Requested,
		Used:      resp.Used,
	}, nil
}

// defaultAttempt sends t with the standard library client and observes
// which interface the OS routed it through.
func (r *Runner) defaultAttempt(ctx context.Context, t pinnedhttp.Target) (Result, error) {
	res := Result{Requested: netpath.Unknown, Used: netpath.Unknown}

	// Same validation as the pinned lane so both lanes reject alike.
	if _, err := pinnedhttp.EncodeRequest(t, ""); err != nil {
		return res, err
	}

	var (
		mu    sync.Mutex
		local net.Addr
	)
	ct := &httptrace.ClientTrace{
		GotConn: func(info httptrace.GotConnInfo) {
			mu.Lock()
			local = info.Conn.LocalAddr()
			mu.Unlock()
		},
	}

	var body io.Reader = http.NoBody
	if t.Body() != nil {
		body = bytes.NewReader(t.Body())
	}
	req, err := http.NewRequestWithContext(httptrace.WithClientTrace(ctx, ct), t.Method(), t.URL(), body)
	if err != nil {
		return res, &pinnedhttp.Error{Kind: pinnedhttp.KindInvalidTarget, Op: "encode", Err: err}
	}
	for k, v := range t.Header() {
		req.Header.Set(k, v)
	}
	if req.Header.Get("User-Agent") == "" {
		ua := r.cfg.pinned.Config().UserAgent
		if ua == "" {
			ua = pinnedhttp.DefaultUserAgent
		}
		req.Header.Set("User-Agent", ua)
	}

	resp, err := r.cfg.httpClient.Do(req)
	if err != nil {
		return res, defaultLaneError(ctx, pinnedhttp.KindConnectionFailed, "dial", err)
	}
	defer resp.Body.Close()

	limit := r.cfg.maxBodyBytes
	var rd io.Reader = resp.Body
	if limit > 0 {
		rd = io.LimitReader(resp.Body, limit+1)
	}
	data, err := io.ReadAll(rd)
	if err != nil {
		return res, defaultLaneError(ctx, pinnedhttp.KindIO, "read", err)
	}
	if limit > 0 && int64(len(data)) > limit {
		return res, &pinnedhttp.Error{
			Kind: pinnedhttp.KindIO,
			Op:   "read",
			Err:  fmt.Errorf("%w (%d bytes)", pinnedhttp.ErrResponseTooLarge, limit),
		}
	}

	res.Status = resp.StatusCode
	res.Body = data
	names := make([]string, 0, len(resp.Header))
	for k := range resp.Header {
		names = append(names, k)
	}
	slices.Sort(names)
	for _, k := range names {
		vs := resp.Header[k]
		res.Header.Set(k, vs[len(vs)-1])
	}

	mu.Lock()
	addr := local
	mu.Unlock()
	if addr != nil {
		if used, err := r.cfg.selector.Observe(ctx, addr); err == nil {
			res.Used = used
		}
	}
	return res, nil
}

func defaultLaneError(ctx context.Context, kind pinnedhttp.Kind, op string, err error) error {
	if errors.Is(ctx.Err(), context.Canceled) {
		kind = pinnedhttp.KindCancelled
	}
	return &pinnedhttp.Error{Kind: kind, Op: op, Err: err}
}
