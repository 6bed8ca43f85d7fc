package netpath

import (
	"fmt"
	"net/netip"
	"path"
	"sort"
	"strings"
)

// PathStatus is the overall reachability verdict of a path snapshot.
type PathStatus uint8

const (
	// StatusUnsatisfied means no interface can currently carry traffic.
	StatusUnsatisfied PathStatus = iota

	// StatusSatisfied means at least one interface is up with a usable address.
	StatusSatisfied

	// StatusRequiresConnection means interfaces are up but none has a usable
	// address yet (e.g. a modem waiting for a data session or DHCP in flight).
	StatusRequiresConnection
)

var statusNames = map[PathStatus]string{
	StatusUnsatisfied:        "unsatisfied",
	StatusSatisfied:          "satisfied",
	StatusRequiresConnection: "requiresConnection",
}

func (s PathStatus) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("PathStatus(%d)", uint8(s))
}

// MarshalText implements encoding.TextMarshaler.
func (s PathStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Interface describes one OS network interface as seen by an Inventory.
type Interface struct {
	Name  string         `json:"name"`
	Index int            `json:"index"`
	Class InterfaceClass `json:"class"`
	Up    bool           `json:"up"`
	Addrs []netip.Addr   `json:"addrs,omitempty"`

	// DefaultRoute is set when the interface carries a default route.
	// RouteMetric orders competing default routes, lower wins.
	DefaultRoute bool `json:"default_route,omitempty"`
	RouteMetric  int  `json:"route_metric,omitempty"`
}

// Usable reports whether the interface is up and holds at least one address
// that can source traffic beyond the local link.
func (i Interface) Usable() bool {
	if !i.Up {
		return false
	}
	for _, a := range i.Addrs {
		if usableAddr(a) {
			return true
		}
	}
	return false
}

func usableAddr(a netip.Addr) bool {
	return a.IsValid() && !a.IsLoopback() && !a.IsLinkLocalUnicast() && !a.IsUnspecified()
}

// Policy marks interfaces as expensive or constrained by name.
// Entries are shell patterns as understood by path.Match ("wwan*", "usb0").
type Policy struct {
	ExpensiveInterfaces   []string
	ConstrainedInterfaces []string
}

func matchAny(patterns []string, name string) bool {
	for _, p := range patterns {
		if ok, _ := path.Match(p, name); ok {
			return true
		}
	}
	return false
}

// Snapshot is an immutable view of the network path at one moment.
// The Uses map and slices must not be modified by receivers.
type Snapshot struct {
	Status        PathStatus              `json:"status"`
	Available     []InterfaceClass        `json:"available_interfaces"`
	Uses          map[InterfaceClass]bool `json:"uses_interface_class"`
	Preferred     InterfaceClass          `json:"preferred"`
	IsExpensive   bool                    `json:"is_expensive"`
	IsConstrained bool                    `json:"is_constrained"`
	Interfaces    []Interface             `json:"interfaces,omitempty"`
}

// UsesInterfaceClass reports whether the path currently routes over class c.
func (s Snapshot) UsesInterfaceClass(c InterfaceClass) bool {
	return s.Uses[c]
}

// HasInterfaceClass reports whether class c is available on the path.
func (s Snapshot) HasInterfaceClass(c InterfaceClass) bool {
	for _, a := range s.Available {
		if a == c {
			return true
		}
	}
	return false
}

// Equal reports whether two snapshots describe the same path.
func (s Snapshot) Equal(o Snapshot) bool {
	return s.fingerprint() == o.fingerprint()
}

func (s Snapshot) fingerprint() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d|%d|%t|%t|", s.Status, s.Preferred, s.IsExpensive, s.IsConstrained)
	for _, c := range s.Available {
		fmt.Fprintf(&b, "a%d,", c)
	}
	for _, c := range Classes {
		if s.Uses[c] {
			fmt.Fprintf(&b, "u%d,", c)
		}
	}
	for _, i := range s.Interfaces {
		fmt.Fprintf(&b, "|%s:%d:%t:%t:%d", i.Name, i.Class, i.Up, i.DefaultRoute, i.RouteMetric)
		for _, a := range i.Addrs {
			b.WriteString(":" + a.String())
		}
	}
	return b.String()
}

// BuildSnapshot derives a Snapshot from an interface inventory.
//
// The preferred interface is the usable one carrying the default route with
// the lowest metric. Uses reports true only for the preferred class.
func BuildSnapshot(ifaces []Interface, policy Policy) Snapshot {
	snap := Snapshot{
		Uses: make(map[InterfaceClass]bool, len(Classes)),
	}
	for _, c := range Classes {
		snap.Uses[c] = false
	}

	sorted := make([]Interface, len(ifaces))
	copy(sorted, ifaces)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })
	snap.Interfaces = sorted

	available := make(map[InterfaceClass]bool)
	anyUp := false
	var preferred *Interface
	for i := range sorted {
		iface := &sorted[i]
		if iface.Up {
			anyUp = true
		}
		if !iface.Usable() {
			continue
		}
		available[iface.Class] = true
		if iface.DefaultRoute && (preferred == nil || iface.RouteMetric < preferred.RouteMetric) {
			preferred = iface
		}
	}

	for _, c := range append([]InterfaceClass{Unknown}, Classes...) {
		if available[c] {
			snap.Available = append(snap.Available, c)
		}
	}

	switch {
	case len(snap.Available) > 0:
		snap.Status = StatusSatisfied
	case anyUp:
		snap.Status = StatusRequiresConnection
	default:
		snap.Status = StatusUnsatisfied
	}

	if preferred != nil {
		snap.Preferred = preferred.Class
		snap.Uses[preferred.Class] = true
		snap.IsExpensive = preferred.Class == Cellular ||
			matchAny(policy.ExpensiveInterfaces, preferred.Name)
		snap.IsConstrained = matchAny(policy.ConstrainedInterfaces, preferred.Name)
	}

	return snap
}
