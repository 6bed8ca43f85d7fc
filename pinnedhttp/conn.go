package pinnedhttp

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/kroma-labs/lanepin/netpath"
)

// ErrResponseTooLarge is wrapped in the KindIO error returned when a
// response exceeds Config.MaxResponseBytes.
var ErrResponseTooLarge = errors.New("response exceeds size limit")

// connection owns one transport connection pinned to an interface class and
// carries exactly one exchange through the ConnState machine.
type connection struct {
	requested netpath.InterfaceClass
	selector  Selector
	strict    bool
	chunkSize int
	maxBytes  int64
	tlsConfig *tls.Config
	logger    zerolog.Logger
	trace     connTrace
	bind      func(fd uintptr, network string, iface netpath.Interface) error

	mu    sync.Mutex
	state ConnState
	err   error
	conn  net.Conn
	iface netpath.Interface
	used  netpath.InterfaceClass

	// bound is false when the socket is only source-address bound.
	bound bool
}

func newConnection(cfg *internalConfig) *connection {
	return &connection{
		requested: cfg.clientConfig.Interface,
		selector:  cfg.Selector,
		strict:    cfg.clientConfig.StrictInterface,
		chunkSize: cfg.clientConfig.ReadChunkSize,
		maxBytes:  cfg.clientConfig.MaxResponseBytes,
		tlsConfig: cfg.TLSConfig,
		logger:    cfg.Logger,
		bind:      cfg.bindDevice,
	}
}

// State returns the current lifecycle state.
func (c *connection) State() ConnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Err returns the failure cause once the connection is failed.
func (c *connection) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Used returns the interface class observed when the connection was ready.
func (c *connection) Used() netpath.InterfaceClass {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.used
}

func (c *connection) transition(next ConnState) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.state.CanTransition(next) {
		return fmt.Errorf("pinnedhttp: illegal connection transition %s -> %s", c.state, next)
	}
	c.logger.Trace().Stringer("from", c.state).Stringer("to", next).Msg("pinnedhttp: connection state")
	c.state = next
	return nil
}

// fail moves the connection to failed, releases the socket and returns the
// error to surface. A cancelled context always yields KindCancelled.
func (c *connection) fail(ctx context.Context, kind Kind, op string, cause error) error {
	var err *Error
	switch {
	case errors.Is(ctx.Err(), context.Canceled):
		err = newError(KindCancelled, op, ctx.Err())
	case ctx.Err() != nil:
		err = newError(kind, op, ctx.Err())
	case errors.As(cause, &err):
	default:
		err = newError(kind, op, cause)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		_ = c.conn.Close()
	}
	if !c.state.Terminal() {
		c.state = StateFailed
		c.err = err
	}
	return err
}

func (c *connection) setConn(conn net.Conn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn = conn
}

func (c *connection) closeConn() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		_ = c.conn.Close()
	}
}

// exchange runs connect, send, receive and close in order and returns the
// raw response bytes.
func (c *connection) exchange(ctx context.Context, ep endpoint, request []byte) ([]byte, error) {
	if err := c.transition(StateConnecting); err != nil {
		return nil, err
	}
	if ctx.Err() != nil {
		return nil, c.fail(ctx, KindCancelled, "connect", ctx.Err())
	}

	conn, err := c.connect(ctx, ep)
	if err != nil {
		return nil, err
	}

	// Cancelling ctx from here on closes the socket and unblocks I/O.
	stop := context.AfterFunc(ctx, c.closeConn)
	defer stop()

	if err := c.ready(ctx, conn); err != nil {
		return nil, err
	}

	if err := c.transition(StateSending); err != nil {
		return nil, c.fail(ctx, KindIO, "write", err)
	}
	if _, err := conn.Write(request); err != nil {
		return nil, c.fail(ctx, KindIO, "write", err)
	}
	c.trace.wroteRequest = time.Now()

	if err := c.transition(StateReceiving); err != nil {
		return nil, c.fail(ctx, KindIO, "read", err)
	}
	raw, err := c.receive(ctx, conn)
	if err != nil {
		return nil, err
	}

	_ = conn.Close()
	if err := c.transition(StateClosed); err != nil {
		return nil, c.fail(ctx, KindIO, "read", err)
	}
	return raw, nil
}

// connect selects the interface, dials through it and, for https, performs
// the TLS handshake.
func (c *connection) connect(ctx context.Context, ep endpoint) (net.Conn, error) {
	c.trace.selectStart = time.Now()
	iface, err := c.selector.Select(ctx, c.requested)
	c.trace.selectDone = time.Now()
	if err != nil {
		return nil, c.fail(ctx, KindInterfaceUnavailable, "select", err)
	}
	c.mu.Lock()
	c.iface = iface
	c.mu.Unlock()
	c.trace.boundDevice = iface.Name

	d := &pinnedDialer{iface: iface, logger: c.logger, trace: &c.trace, bind: c.bind}
	conn, err := d.DialContext(ctx, ep.host, ep.port)
	if err != nil {
		if errors.Is(err, errNoLocalAddress) {
			return nil, c.fail(ctx, KindInterfaceUnavailable, "dial", err)
		}
		return nil, c.fail(ctx, KindConnectionFailed, "dial", err)
	}
	c.setConn(conn)
	c.mu.Lock()
	c.bound = d.deviceBound()
	c.mu.Unlock()
	c.trace.localAddr = conn.LocalAddr().String()
	c.trace.remoteAddr = conn.RemoteAddr().String()

	if !ep.tls {
		return conn, nil
	}

	cfg := &tls.Config{}
	if c.tlsConfig != nil {
		cfg = c.tlsConfig.Clone()
	}
	if cfg.ServerName == "" {
		cfg.ServerName = ep.host
	}
	tc := tls.Client(conn, cfg)
	c.setConn(tc)

	c.trace.tlsStart = time.Now()
	err = tc.HandshakeContext(ctx)
	c.trace.tlsDone = time.Now()
	if err != nil {
		return nil, c.fail(ctx, KindConnectionFailed, "tls", err)
	}
	state := tc.ConnectionState()
	c.trace.tlsVersion = tlsVersionName(state.Version)
	c.trace.tlsResumed = state.DidResume
	return tc, nil
}

// ready samples the interface the connection actually runs on. A mismatch is
// reported, not fatal, unless the connection is strict. A socket that is not
// device bound reports netpath.Unknown: its source address belongs to the
// selected interface whatever route the kernel picked.
func (c *connection) ready(ctx context.Context, conn net.Conn) error {
	c.mu.Lock()
	bound := c.bound
	c.mu.Unlock()

	used := netpath.Unknown
	if bound {
		var err error
		used, err = c.selector.Observe(ctx, conn.LocalAddr())
		if err != nil {
			if ctx.Err() != nil {
				return c.fail(ctx, KindConnectionFailed, "observe", err)
			}
			c.logger.Debug().Err(err).Msg("pinnedhttp: could not observe interface, reporting unknown")
			used = netpath.Unknown
		}
	}

	c.mu.Lock()
	c.used = used
	c.mu.Unlock()

	if err := c.transition(StateReady); err != nil {
		return c.fail(ctx, KindConnectionFailed, "observe", err)
	}

	if used != c.requested {
		if c.strict {
			return c.fail(ctx, KindInterfaceUnavailable, "observe",
				fmt.Errorf("connection runs on %s, not %s", used, c.requested))
		}
		c.logger.Warn().
			Stringer("requested", c.requested).
			Stringer("used", used).
			Str("local", conn.LocalAddr().String()).
			Msg("pinnedhttp: interface mismatch")
	}
	return nil
}

// receive reads until the peer closes the stream.
func (c *connection) receive(ctx context.Context, conn net.Conn) ([]byte, error) {
	var buf bytes.Buffer
	chunk := make([]byte, c.chunkSize)
	for {
		n, err := conn.Read(chunk)
		if n > 0 {
			if c.trace.firstByte.IsZero() {
				c.trace.firstByte = time.Now()
			}
			if c.maxBytes > 0 && int64(buf.Len()+n) > c.maxBytes {
				return nil, c.fail(ctx, KindIO, "read",
					fmt.Errorf("%w (%d bytes)", ErrResponseTooLarge, c.maxBytes))
			}
			buf.Write(chunk[:n])
			if terr := c.transition(StateReceiving); terr != nil {
				return nil, c.fail(ctx, KindIO, "read", terr)
			}
		}
		if errors.Is(err, io.EOF) {
			return buf.Bytes(), nil
		}
		if err != nil {
			return nil, c.fail(ctx, KindIO, "read", err)
		}
	}
}
