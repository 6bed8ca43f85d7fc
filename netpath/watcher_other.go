//go:build !linux

package netpath

// DefaultWatcher returns the best notification source for this platform.
// Without rtnetlink the inventory is polled.
func DefaultWatcher() Watcher {
	return NewPollWatcher(DefaultPollInterval)
}
