package netpath

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

type fakeInventory struct {
	mu     sync.Mutex
	ifaces []Interface
	err    error
	calls  int
}

func (f *fakeInventory) Interfaces(context.Context) ([]Interface, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make([]Interface, len(f.ifaces))
	copy(out, f.ifaces)
	return out, nil
}

func (f *fakeInventory) set(ifaces []Interface, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ifaces, f.err = ifaces, err
}

func (f *fakeInventory) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeWatcher struct {
	mu      sync.Mutex
	ch      chan struct{}
	openErr error
	opens   int
	closes  int
}

func newFakeWatcher() *fakeWatcher {
	return &fakeWatcher{ch: make(chan struct{}, 1)}
}

func (f *fakeWatcher) Open(context.Context) (<-chan struct{}, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.openErr != nil {
		return nil, f.openErr
	}
	f.opens++
	return f.ch, nil
}

func (f *fakeWatcher) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closes++
	return nil
}

func (f *fakeWatcher) fire() {
	f.ch <- struct{}{}
}

func wifiOnly() []Interface {
	return []Interface{iface("wlan0", WiFi, true, true, 600, "192.168.1.10")}
}

func cellularOnly() []Interface {
	return []Interface{iface("wwan0", Cellular, true, true, 100, "10.64.1.2")}
}

func recvSnapshot(t *testing.T, ch <-chan Snapshot) Snapshot {
	t.Helper()
	select {
	case s := <-ch:
		return s
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for snapshot")
		return Snapshot{}
	}
}

func assertNoSnapshot(t *testing.T, ch <-chan Snapshot) {
	t.Helper()
	select {
	case s := <-ch:
		t.Fatalf("unexpected snapshot: %+v", s)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestMonitor_Start(t *testing.T) {
	t.Run("given a running host, then emits an initial snapshot", func(t *testing.T) {
		inv := &fakeInventory{ifaces: wifiOnly()}
		m := NewMonitor(WithInventory(inv), WithWatcher(newFakeWatcher()))

		got := make(chan Snapshot, 4)
		require.NoError(t, m.Start(func(s Snapshot) { got <- s }))
		defer m.Stop()

		snap := recvSnapshot(t, got)
		assert.Equal(t, StatusSatisfied, snap.Status)
		assert.True(t, snap.UsesInterfaceClass(WiFi))

		latest, ok := m.Latest()
		assert.True(t, ok)
		assert.True(t, latest.Equal(snap))
	})

	t.Run("given watcher open fails, then Start returns the error", func(t *testing.T) {
		w := newFakeWatcher()
		w.openErr = errors.New("netlink: permission denied")
		m := NewMonitor(WithInventory(&fakeInventory{}), WithWatcher(w))

		err := m.Start(func(Snapshot) {})

		assert.ErrorIs(t, err, w.openErr)
		_, ok := m.Latest()
		assert.False(t, ok)
	})

	t.Run("given initial inventory read fails, then Start returns the error and closes the watcher", func(t *testing.T) {
		readErr := errors.New("no interfaces")
		w := newFakeWatcher()
		m := NewMonitor(WithInventory(&fakeInventory{err: readErr}), WithWatcher(w))

		err := m.Start(func(Snapshot) {})

		assert.ErrorIs(t, err, readErr)
		assert.Equal(t, 1, w.closes)
	})
}

func TestMonitor_Changes(t *testing.T) {
	inv := &fakeInventory{ifaces: wifiOnly()}
	w := newFakeWatcher()
	m := NewMonitor(WithInventory(inv), WithWatcher(w))

	got := make(chan Snapshot, 8)
	require.NoError(t, m.Start(func(s Snapshot) { got <- s }))
	defer m.Stop()
	recvSnapshot(t, got)

	// Identical path: no emission.
	w.fire()
	require.Eventually(t, func() bool { return inv.callCount() >= 2 }, time.Second, 5*time.Millisecond)
	assertNoSnapshot(t, got)

	// Path moves to cellular.
	inv.set(cellularOnly(), nil)
	w.fire()
	snap := recvSnapshot(t, got)
	assert.True(t, snap.UsesInterfaceClass(Cellular))
	assert.False(t, snap.UsesInterfaceClass(WiFi))
	assert.True(t, snap.IsExpensive)
}

func TestMonitor_SetPolicy(t *testing.T) {
	t.Run("given a running monitor, then a new policy re-evaluates the path", func(t *testing.T) {
		inv := &fakeInventory{ifaces: wifiOnly()}
		m := NewMonitor(WithInventory(inv), WithWatcher(newFakeWatcher()))

		got := make(chan Snapshot, 4)
		require.NoError(t, m.Start(func(s Snapshot) { got <- s }))
		defer m.Stop()
		assert.False(t, recvSnapshot(t, got).IsConstrained)

		m.SetPolicy(Policy{ConstrainedInterfaces: []string{"wlan*"}})

		snap := recvSnapshot(t, got)
		assert.True(t, snap.IsConstrained)
		latest, ok := m.Latest()
		require.True(t, ok)
		assert.True(t, latest.IsConstrained)
	})

	t.Run("given an unchanged outcome, then emits nothing", func(t *testing.T) {
		inv := &fakeInventory{ifaces: wifiOnly()}
		m := NewMonitor(WithInventory(inv), WithWatcher(newFakeWatcher()))

		got := make(chan Snapshot, 4)
		require.NoError(t, m.Start(func(s Snapshot) { got <- s }))
		defer m.Stop()
		recvSnapshot(t, got)

		m.SetPolicy(Policy{ConstrainedInterfaces: []string{"usb*"}})
		require.Eventually(t, func() bool { return inv.callCount() >= 2 }, time.Second, 5*time.Millisecond)
		assertNoSnapshot(t, got)
	})

	t.Run("given a stopped monitor, then the policy applies on the next Start", func(t *testing.T) {
		m := NewMonitor(WithInventory(&fakeInventory{ifaces: wifiOnly()}), WithWatcher(newFakeWatcher()))
		m.SetPolicy(Policy{ExpensiveInterfaces: []string{"wlan0"}})

		got := make(chan Snapshot, 1)
		require.NoError(t, m.Start(func(s Snapshot) { got <- s }))
		defer m.Stop()
		assert.True(t, recvSnapshot(t, got).IsExpensive)
	})
}

func TestMonitor_TransientErrorIsSkipped(t *testing.T) {
	inv := &fakeInventory{ifaces: wifiOnly()}
	w := newFakeWatcher()
	m := NewMonitor(WithInventory(inv), WithWatcher(w))

	got := make(chan Snapshot, 8)
	require.NoError(t, m.Start(func(s Snapshot) { got <- s }))
	defer m.Stop()
	recvSnapshot(t, got)

	inv.set(nil, errors.New("EAGAIN"))
	w.fire()
	require.Eventually(t, func() bool { return inv.callCount() >= 2 }, time.Second, 5*time.Millisecond)
	assertNoSnapshot(t, got)

	inv.set(cellularOnly(), nil)
	w.fire()
	snap := recvSnapshot(t, got)
	assert.Equal(t, Cellular, snap.Preferred)
}

func TestMonitor_StartTwiceReplacesCallback(t *testing.T) {
	inv := &fakeInventory{ifaces: wifiOnly()}
	w := newFakeWatcher()
	m := NewMonitor(WithInventory(inv), WithWatcher(w))

	first := make(chan Snapshot, 8)
	second := make(chan Snapshot, 8)
	require.NoError(t, m.Start(func(s Snapshot) { first <- s }))
	defer m.Stop()
	recvSnapshot(t, first)

	require.NoError(t, m.Start(func(s Snapshot) { second <- s }))
	replayed := recvSnapshot(t, second)
	assert.Equal(t, WiFi, replayed.Preferred)

	inv.set(cellularOnly(), nil)
	w.fire()
	snap := recvSnapshot(t, second)
	assert.Equal(t, Cellular, snap.Preferred)
	assertNoSnapshot(t, first)

	assert.Equal(t, 1, w.opens, "second Start must not open another subscription")
}

func TestMonitor_Stop(t *testing.T) {
	t.Run("given a monitor that was never started, then Stop is a no-op", func(t *testing.T) {
		w := newFakeWatcher()
		m := NewMonitor(WithInventory(&fakeInventory{}), WithWatcher(w))

		m.Stop()
		m.Stop()

		assert.Equal(t, 0, w.closes)
	})

	t.Run("given a running monitor, then Stop releases the watcher and silences callbacks", func(t *testing.T) {
		inv := &fakeInventory{ifaces: wifiOnly()}
		w := newFakeWatcher()
		m := NewMonitor(WithInventory(inv), WithWatcher(w))

		got := make(chan Snapshot, 8)
		require.NoError(t, m.Start(func(s Snapshot) { got <- s }))
		recvSnapshot(t, got)

		m.Stop()
		assert.Equal(t, 1, w.closes)

		inv.set(cellularOnly(), nil)
		select {
		case w.ch <- struct{}{}:
		default:
		}
		assertNoSnapshot(t, got)
	})

	t.Run("given Stop called from the callback, then it does not deadlock", func(t *testing.T) {
		inv := &fakeInventory{ifaces: wifiOnly()}
		m := NewMonitor(WithInventory(inv), WithWatcher(newFakeWatcher()))

		stopped := make(chan struct{})
		require.NoError(t, m.Start(func(Snapshot) {
			m.Stop()
			close(stopped)
		}))

		select {
		case <-stopped:
		case <-time.After(2 * time.Second):
			t.Fatal("Stop from callback deadlocked")
		}
	})

	t.Run("given Stop from another goroutine during a callback, then it waits for the callback", func(t *testing.T) {
		inv := &fakeInventory{ifaces: wifiOnly()}
		m := NewMonitor(WithInventory(inv), WithWatcher(newFakeWatcher()))

		entered := make(chan struct{})
		release := make(chan struct{})
		var once sync.Once
		require.NoError(t, m.Start(func(Snapshot) {
			once.Do(func() { close(entered) })
			<-release
		}))
		<-entered

		stopped := make(chan struct{})
		go func() {
			m.Stop()
			close(stopped)
		}()

		select {
		case <-stopped:
			t.Fatal("Stop returned while the callback was still running")
		case <-time.After(50 * time.Millisecond):
		}

		close(release)
		select {
		case <-stopped:
		case <-time.After(2 * time.Second):
			t.Fatal("Stop did not return after the callback finished")
		}
	})

	t.Run("given stop then start, then a fresh initial snapshot is emitted", func(t *testing.T) {
		inv := &fakeInventory{ifaces: wifiOnly()}
		w := newFakeWatcher()
		m := NewMonitor(WithInventory(inv), WithWatcher(w))

		got := make(chan Snapshot, 8)
		require.NoError(t, m.Start(func(s Snapshot) { got <- s }))
		recvSnapshot(t, got)
		m.Stop()

		require.NoError(t, m.Start(func(s Snapshot) { got <- s }))
		defer m.Stop()
		snap := recvSnapshot(t, got)
		assert.Equal(t, WiFi, snap.Preferred)
		assert.Equal(t, 2, w.opens)
	})
}

func TestGoroutineID(t *testing.T) {
	own := goroutineID()
	require.NotZero(t, own)
	assert.Equal(t, own, goroutineID())

	other := make(chan uint64)
	go func() { other <- goroutineID() }()
	assert.NotEqual(t, own, <-other)
}

func TestMonitor_Metrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer mp.Shutdown(context.Background())

	inv := &fakeInventory{ifaces: wifiOnly()}
	w := newFakeWatcher()
	m := NewMonitor(WithInventory(inv), WithWatcher(w), WithMeterProvider(mp))

	got := make(chan Snapshot, 8)
	require.NoError(t, m.Start(func(s Snapshot) { got <- s }))
	defer m.Stop()
	recvSnapshot(t, got)

	inv.set(nil, errors.New("boom"))
	w.fire()
	require.Eventually(t, func() bool { return inv.callCount() >= 2 }, time.Second, 5*time.Millisecond)
	// The read error is recorded after the inventory call returns.
	time.Sleep(20 * time.Millisecond)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	sums := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, md := range sm.Metrics {
			if s, ok := md.Data.(metricdata.Sum[int64]); ok {
				for _, dp := range s.DataPoints {
					sums[md.Name] += dp.Value
				}
			}
		}
	}
	assert.Equal(t, int64(1), sums["network.path.updates"])
	assert.Equal(t, int64(1), sums["network.path.read_errors"])
}
