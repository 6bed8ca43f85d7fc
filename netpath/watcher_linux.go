//go:build linux

package netpath

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"sync"

	"golang.org/x/sys/unix"
)

// NetlinkWatcher subscribes to rtnetlink multicast groups for link, address
// and route changes.
type NetlinkWatcher struct {
	mu   sync.Mutex
	file *os.File
	done chan struct{}
}

// NewNetlinkWatcher creates an unopened NetlinkWatcher.
func NewNetlinkWatcher() *NetlinkWatcher {
	return &NetlinkWatcher{}
}

// DefaultWatcher returns the best notification source for this platform.
func DefaultWatcher() Watcher {
	return NewNetlinkWatcher()
}

const netlinkGroups = unix.RTMGRP_LINK |
	unix.RTMGRP_IPV4_IFADDR |
	unix.RTMGRP_IPV6_IFADDR |
	unix.RTMGRP_IPV4_ROUTE |
	unix.RTMGRP_IPV6_ROUTE

// Open implements Watcher.
func (w *NetlinkWatcher) Open(ctx context.Context) (<-chan struct{}, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file != nil {
		return nil, ErrWatcherOpen
	}

	fd, err := unix.Socket(unix.AF_NETLINK, unix.SOCK_RAW|unix.SOCK_CLOEXEC|unix.SOCK_NONBLOCK, unix.NETLINK_ROUTE)
	if err != nil {
		return nil, fmt.Errorf("netpath: netlink socket: %w", err)
	}
	if err := unix.Bind(fd, &unix.SockaddrNetlink{Family: unix.AF_NETLINK, Groups: netlinkGroups}); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("netpath: netlink bind: %w", err)
	}

	// os.NewFile registers a non-blocking fd with the runtime poller, so
	// Close unblocks a pending Read.
	file := os.NewFile(uintptr(fd), "rtnetlink")
	events := make(chan struct{}, 1)
	done := make(chan struct{})
	w.file = file
	w.done = done

	go func() {
		defer close(done)
		defer close(events)
		buf := make([]byte, 1<<16)
		for {
			n, err := file.Read(buf)
			if err != nil {
				if errors.Is(err, os.ErrClosed) || ctx.Err() != nil {
					return
				}
				// ENOBUFS means the kernel dropped events; the next
				// inventory read will catch up anyway.
				if errors.Is(err, unix.ENOBUFS) {
					signal(events)
					continue
				}
				return
			}
			if containsPathChange(buf[:n]) {
				signal(events)
			}
		}
	}()

	go func() {
		select {
		case <-ctx.Done():
			_ = w.closeFile(file)
		case <-done:
		}
	}()

	return events, nil
}

// Close implements Watcher. Closing a watcher that is not open is a no-op.
func (w *NetlinkWatcher) Close() error {
	w.mu.Lock()
	file, done := w.file, w.done
	w.file, w.done = nil, nil
	w.mu.Unlock()

	if file == nil {
		return nil
	}
	err := file.Close()
	<-done
	return err
}

// closeFile closes file only while it is still the open subscription. A
// cancelled context from an earlier Open must not close a reopened socket.
func (w *NetlinkWatcher) closeFile(file *os.File) error {
	w.mu.Lock()
	if w.file != file {
		w.mu.Unlock()
		return nil
	}
	done := w.done
	w.file, w.done = nil, nil
	w.mu.Unlock()

	err := file.Close()
	<-done
	return err
}

// containsPathChange walks a netlink datagram and reports whether any message
// is a link, address or route add/remove.
func containsPathChange(b []byte) bool {
	for len(b) >= unix.NLMSG_HDRLEN {
		msgLen := binary.NativeEndian.Uint32(b[0:4])
		msgType := binary.NativeEndian.Uint16(b[4:6])
		if msgLen < unix.NLMSG_HDRLEN || int(msgLen) > len(b) {
			return false
		}
		switch msgType {
		case unix.RTM_NEWLINK, unix.RTM_DELLINK,
			unix.RTM_NEWADDR, unix.RTM_DELADDR,
			unix.RTM_NEWROUTE, unix.RTM_DELROUTE:
			return true
		}
		aligned := (int(msgLen) + unix.NLMSG_ALIGNTO - 1) &^ (unix.NLMSG_ALIGNTO - 1)
		if aligned >= len(b) {
			return false
		}
		b = b[aligned:]
	}
	return false
}
