package netpath

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPollWatcher(t *testing.T) {
	w := NewPollWatcher(5 * time.Millisecond)

	events, err := w.Open(context.Background())
	require.NoError(t, err)

	select {
	case <-events:
	case <-time.After(time.Second):
		t.Fatal("no poll tick")
	}

	_, err = w.Open(context.Background())
	assert.ErrorIs(t, err, ErrWatcherOpen)

	require.NoError(t, w.Close())
	for range events {
	}

	require.NoError(t, w.Close(), "second close is a no-op")

	_, err = w.Open(context.Background())
	require.NoError(t, err, "watcher can be reopened after close")
	require.NoError(t, w.Close())
}

func TestPollWatcher_ContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	w := NewPollWatcher(time.Hour)

	events, err := w.Open(ctx)
	require.NoError(t, err)
	cancel()

	select {
	case _, ok := <-events:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("channel not closed after cancel")
	}
	require.NoError(t, w.Close())
}

func TestNewPollWatcher_DefaultInterval(t *testing.T) {
	assert.Equal(t, DefaultPollInterval, NewPollWatcher(0).interval)
}

func TestSignal_Coalesces(t *testing.T) {
	ch := make(chan struct{}, 1)

	signal(ch)
	signal(ch)
	signal(ch)

	assert.Len(t, ch, 1)
}
