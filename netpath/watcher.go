package netpath

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Watcher turns OS path-change notifications into a coalescing signal
// stream. A receive on the channel means "something may have changed";
// the Monitor re-reads the inventory to find out what.
//
// The channel must have capacity 1 and sends must never block, so a burst of
// kernel events collapses into a single pending signal.
type Watcher interface {
	Open(ctx context.Context) (<-chan struct{}, error)
	Close() error
}

// ErrWatcherOpen is returned by Open when the watcher is already open.
var ErrWatcherOpen = errors.New("netpath: watcher already open")

// DefaultPollInterval is how often a PollWatcher re-checks the inventory.
const DefaultPollInterval = 2 * time.Second

// PollWatcher signals on a fixed interval. It works everywhere and is the
// fallback when no kernel notification source exists.
type PollWatcher struct {
	interval time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewPollWatcher creates a PollWatcher. A non-positive interval uses
// DefaultPollInterval.
func NewPollWatcher(interval time.Duration) *PollWatcher {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &PollWatcher{interval: interval}
}

// Open implements Watcher.
func (w *PollWatcher) Open(ctx context.Context) (<-chan struct{}, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cancel != nil {
		return nil, ErrWatcherOpen
	}

	ctx, cancel := context.WithCancel(ctx)
	events := make(chan struct{}, 1)
	done := make(chan struct{})
	w.cancel = cancel
	w.done = done

	go func() {
		defer close(done)
		defer close(events)
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				signal(events)
			}
		}
	}()
	return events, nil
}

// Close implements Watcher. Closing a watcher that is not open is a no-op.
func (w *PollWatcher) Close() error {
	w.mu.Lock()
	cancel, done := w.cancel, w.done
	w.cancel, w.done = nil, nil
	w.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	<-done
	return nil
}

// signal performs a non-blocking send on a capacity-1 channel.
func signal(ch chan<- struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}
