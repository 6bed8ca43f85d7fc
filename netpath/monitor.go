package netpath

import (
	"bytes"
	"context"
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
)

// Monitor observes network path changes and reports a Snapshot on each one.
//
// Each Monitor owns its own watcher subscription, so tests can create and
// tear down independent instances. The zero value is not usable; create
// monitors with NewMonitor.
//
// Example:
//
//	m := netpath.NewMonitor(netpath.WithLogger(logger))
//	if err := m.Start(func(s netpath.Snapshot) {
//	    fmt.Println(s.Status, s.Preferred)
//	}); err != nil {
//	    return err
//	}
//	defer m.Stop()
type Monitor struct {
	cfg *internalConfig

	mu        sync.Mutex
	gen       uint64
	onChange  func(Snapshot)
	cancel    context.CancelFunc
	done      chan struct{}
	kick      chan struct{}
	reload    chan struct{}
	latest    Snapshot
	hasLatest bool

	// callbackGoroutine is the id of the goroutine running onChange, or 0.
	callbackGoroutine atomic.Uint64
}

// NewMonitor creates a stopped Monitor.
func NewMonitor(opts ...Option) *Monitor {
	return &Monitor{cfg: newConfig(opts...)}
}

// Start begins observing on a background goroutine and calls onChange with
// an initial snapshot, then once per detected change. Identical consecutive
// snapshots are suppressed and bursts of OS events coalesce into one update.
//
// Calling Start on a running Monitor replaces the callback; the new callback
// receives the latest snapshot. Errors opening the watcher or reading the
// initial inventory are returned here.
//
// onChange runs on the monitor goroutine and must not block for long.
func (m *Monitor) Start(onChange func(Snapshot)) error {
	if onChange == nil {
		onChange = func(Snapshot) {}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cancel != nil {
		m.onChange = onChange
		signal(m.kick)
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	events, err := m.cfg.watcher.Open(ctx)
	if err != nil {
		cancel()
		return fmt.Errorf("netpath: open watcher: %w", err)
	}

	ifaces, err := m.cfg.inventory.Interfaces(ctx)
	if err != nil {
		cancel()
		_ = m.cfg.watcher.Close()
		return fmt.Errorf("netpath: read interfaces: %w", err)
	}

	m.gen++
	m.onChange = onChange
	m.cancel = cancel
	m.done = make(chan struct{})
	m.kick = make(chan struct{}, 1)
	m.reload = make(chan struct{}, 1)

	go m.run(ctx, m.gen, events, m.kick, m.reload, m.done, BuildSnapshot(ifaces, m.cfg.policy))

	m.cfg.logger.Debug().Msg("netpath: monitor started")
	return nil
}

// Stop ends observation and releases the watcher. Stop on a Monitor that is
// not running is a no-op. From any other goroutine Stop waits for an
// in-flight callback to return; from inside the callback it returns without
// waiting.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if m.cancel == nil {
		m.mu.Unlock()
		return
	}
	cancel, done := m.cancel, m.done
	m.cancel, m.done, m.kick, m.reload, m.onChange = nil, nil, nil, nil, nil
	m.mu.Unlock()

	cancel()
	if err := m.cfg.watcher.Close(); err != nil {
		m.cfg.logger.Debug().Err(err).Msg("netpath: close watcher")
	}

	// Waiting from inside the callback would deadlock on our own goroutine.
	if id := m.callbackGoroutine.Load(); id == 0 || id != goroutineID() {
		<-done
	}
	m.cfg.logger.Debug().Msg("netpath: monitor stopped")
}

// SetPolicy replaces the expensive/constrained policy. A running Monitor
// re-reads the inventory and reports a snapshot if the path changed under
// the new policy.
func (m *Monitor) SetPolicy(p Policy) {
	m.mu.Lock()
	m.cfg.policy = p
	reload := m.reload
	m.mu.Unlock()

	if reload != nil {
		signal(reload)
	}
}

func (m *Monitor) policy() Policy {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cfg.policy
}

// Latest returns the most recent snapshot. ok is false until the first
// snapshot has been taken.
func (m *Monitor) Latest() (snap Snapshot, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.latest, m.hasLatest
}

func (m *Monitor) run(
	ctx context.Context,
	gen uint64,
	events <-chan struct{},
	kick <-chan struct{},
	reload <-chan struct{},
	done chan<- struct{},
	initial Snapshot,
) {
	defer close(done)

	m.publish(ctx, gen, initial, true)

	for {
		select {
		case <-ctx.Done():
			return
		case <-kick:
			m.replay(gen)
		case <-reload:
			m.refresh(ctx, gen)
		case _, ok := <-events:
			if !ok {
				if ctx.Err() == nil {
					m.cfg.logger.Warn().Msg("netpath: watcher closed unexpectedly, path updates stopped")
				}
				return
			}
			m.refresh(ctx, gen)
		}
	}
}

// refresh re-reads the inventory. Read errors are transient by contract:
// they are logged and the update is skipped.
func (m *Monitor) refresh(ctx context.Context, gen uint64) {
	ifaces, err := m.cfg.inventory.Interfaces(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		m.cfg.Metrics.recordReadError(ctx)
		m.cfg.logger.Debug().Err(err).Msg("netpath: inventory read failed, skipping update")
		return
	}
	m.publish(ctx, gen, BuildSnapshot(ifaces, m.policy()), false)
}

func (m *Monitor) publish(ctx context.Context, gen uint64, snap Snapshot, force bool) {
	m.mu.Lock()
	if m.gen != gen || m.cancel == nil {
		m.mu.Unlock()
		return
	}
	if !force && m.hasLatest && m.latest.Equal(snap) {
		m.mu.Unlock()
		return
	}
	m.latest, m.hasLatest = snap, true
	cb := m.onChange
	m.mu.Unlock()

	m.cfg.Metrics.recordUpdate(ctx, snap)
	m.cfg.logger.Debug().
		Stringer("status", snap.Status).
		Stringer("preferred", snap.Preferred).
		Bool("expensive", snap.IsExpensive).
		Bool("constrained", snap.IsConstrained).
		Msg("netpath: path update")

	m.invoke(cb, snap)
}

// replay delivers the latest snapshot to a freshly installed callback.
func (m *Monitor) replay(gen uint64) {
	m.mu.Lock()
	if m.gen != gen || m.cancel == nil || !m.hasLatest {
		m.mu.Unlock()
		return
	}
	cb, snap := m.onChange, m.latest
	m.mu.Unlock()

	m.invoke(cb, snap)
}

func (m *Monitor) invoke(cb func(Snapshot), snap Snapshot) {
	if cb == nil {
		return
	}
	m.callbackGoroutine.Store(goroutineID())
	defer m.callbackGoroutine.Store(0)
	cb(snap)
}

// goroutineID parses the current goroutine id from the runtime stack header,
// which starts with "goroutine <id> [".
func goroutineID() uint64 {
	var buf [64]byte
	b := buf[:runtime.Stack(buf[:], false)]
	b = bytes.TrimPrefix(b, []byte("goroutine "))
	if i := bytes.IndexByte(b, ' '); i > 0 {
		b = b[:i]
	}
	id, _ := strconv.ParseUint(string(b), 10, 64)
	return id
}
