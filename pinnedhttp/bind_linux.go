//go:build linux

package pinnedhttp

import (
	"golang.org/x/sys/unix"

	"github.com/kroma-labs/lanepin/netpath"
)

// bindToDevice restricts the socket to iface with SO_BINDTODEVICE. Routing
// lookups then only consider routes through that device.
func bindToDevice(fd uintptr, _ string, iface netpath.Interface) error {
	return unix.SetsockoptString(int(fd), unix.SOL_SOCKET, unix.SO_BINDTODEVICE, iface.Name)
}
