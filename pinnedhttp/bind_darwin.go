//go:build darwin

package pinnedhttp

import (
	"strings"

	"golang.org/x/sys/unix"

	"github.com/kroma-labs/lanepin/netpath"
)

// bindToDevice scopes the socket to iface with IP_BOUND_IF / IPV6_BOUND_IF.
func bindToDevice(fd uintptr, network string, iface netpath.Interface) error {
	if strings.HasSuffix(network, "6") {
		return unix.SetsockoptInt(int(fd), unix.IPPROTO_IPV6, unix.IPV6_BOUND_IF, iface.Index)
	}
	return unix.SetsockoptInt(int(fd), unix.IPPROTO_IP, unix.IP_BOUND_IF, iface.Index)
}
