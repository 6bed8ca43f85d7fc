package pinnedhttp

import (
	"cmp"
	"context"
	"fmt"
	"net"
	"net/netip"
	"slices"

	"golang.org/x/sync/singleflight"

	"github.com/kroma-labs/lanepin/netpath"
)

// Selector is the platform capability that pins connections to an interface
// class. Select picks the interface a new connection must use; Observe maps
// the local address of an established connection back to the class it is
// actually running on.
type Selector interface {
	Select(ctx context.Context, class netpath.InterfaceClass) (netpath.Interface, error)
	Observe(ctx context.Context, local net.Addr) (netpath.InterfaceClass, error)
}

// Compile-time interface check.
var _ Selector = (*SystemSelector)(nil)

// SystemSelector implements Selector over a netpath.Inventory. Concurrent
// lookups share a single inventory read.
type SystemSelector struct {
	inventory netpath.Inventory
	group     singleflight.Group
}

// NewSystemSelector creates a selector. A nil inventory uses
// netpath.NewSystemInventory().
func NewSystemSelector(inv netpath.Inventory) *SystemSelector {
	if inv == nil {
		inv = netpath.NewSystemInventory()
	}
	return &SystemSelector{inventory: inv}
}

// Select returns the best usable interface of class. Interfaces carrying a
// default route win, then lower route metric, then name.
func (s *SystemSelector) Select(ctx context.Context, class netpath.InterfaceClass) (netpath.Interface, error) {
	ifaces, err := s.interfaces(ctx)
	if err != nil {
		return netpath.Interface{}, newError(KindInterfaceUnavailable, "select", err)
	}

	candidates := make([]netpath.Interface, 0, len(ifaces))
	for _, iface := range ifaces {
		if iface.Class == class && iface.Usable() {
			candidates = append(candidates, iface)
		}
	}
	if len(candidates) == 0 {
		return netpath.Interface{}, newError(KindInterfaceUnavailable, "select",
			fmt.Errorf("no usable %s interface", class))
	}

	slices.SortStableFunc(candidates, func(a, b netpath.Interface) int {
		if a.DefaultRoute != b.DefaultRoute {
			if a.DefaultRoute {
				return -1
			}
			return 1
		}
		if c := cmp.Compare(a.RouteMetric, b.RouteMetric); c != 0 {
			return c
		}
		return cmp.Compare(a.Name, b.Name)
	})
	return candidates[0], nil
}

// Observe returns the class of the interface that owns local. Addresses not
// owned by any listed interface report netpath.Unknown.
func (s *SystemSelector) Observe(ctx context.Context, local net.Addr) (netpath.InterfaceClass, error) {
	ip, ok := addrIP(local)
	if !ok {
		return netpath.Unknown, nil
	}

	ifaces, err := s.interfaces(ctx)
	if err != nil {
		return netpath.Unknown, err
	}
	for _, iface := range ifaces {
		if slices.Contains(iface.Addrs, ip) {
			return iface.Class, nil
		}
	}
	return netpath.Unknown, nil
}

func (s *SystemSelector) interfaces(ctx context.Context) ([]netpath.Interface, error) {
	ch := s.group.DoChan("interfaces", func() (interface{}, error) {
		return s.inventory.Interfaces(context.WithoutCancel(ctx))
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]netpath.Interface), nil
	}
}

// addrIP extracts the IP of a TCP/UDP/IP address.
func addrIP(a net.Addr) (netip.Addr, bool) {
	var ip net.IP
	switch v := a.(type) {
	case *net.TCPAddr:
		ip = v.IP
	case *net.UDPAddr:
		ip = v.IP
	case *net.IPAddr:
		ip = v.IP
	default:
		return netip.Addr{}, false
	}
	addr, ok := netip.AddrFromSlice(ip)
	if !ok {
		return netip.Addr{}, false
	}
	return addr.Unmap(), true
}
