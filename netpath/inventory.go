package netpath

import (
	"bufio"
	"context"
	"io"
	"net"
	"net/netip"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
)

// Inventory lists the host's network interfaces with their classes,
// addresses and default-route status.
type Inventory interface {
	Interfaces(ctx context.Context) ([]Interface, error)
}

// Compile-time interface check.
var _ Inventory = (*SystemInventory)(nil)

const (
	defaultSysClassNet = "/sys/class/net"
	defaultProcNet     = "/proc/net"
)

// ARPHRD_* hardware types as reported by /sys/class/net/<if>/type.
const (
	arphrdEther    = 1
	arphrdPPP      = 512
	arphrdRawIP    = 519
	arphrdLoopback = 772
	arphrdNone     = 65534
)

// classOverride forces a class for interfaces whose name matches pattern.
type classOverride struct {
	pattern string
	class   InterfaceClass
}

// SystemInventory reads interfaces from the running host.
//
// On Linux, classes come from sysfs and default routes from procfs. Elsewhere
// classification falls back to interface name conventions and the default
// route is found by asking the kernel which source address it would pick.
type SystemInventory struct {
	sysClassNet string
	procNet     string
	overrides   []classOverride

	listInterfaces func() ([]net.Interface, error)
	interfaceAddrs func(net.Interface) ([]net.Addr, error)
	defaultSource  func() (netip.Addr, bool)
}

// InventoryOption configures a SystemInventory.
type InventoryOption func(*SystemInventory)

// WithClassOverride forces class for every interface whose name matches the
// shell pattern. Overrides are checked in the order they were added.
//
// Example:
//
//	netpath.NewSystemInventory(
//	    netpath.WithClassOverride("usb*", netpath.Cellular),
//	)
func WithClassOverride(pattern string, class InterfaceClass) InventoryOption {
	return func(s *SystemInventory) {
		s.overrides = append(s.overrides, classOverride{pattern: pattern, class: class})
	}
}

// WithSysfsRoot points classification at a different /sys/class/net tree.
func WithSysfsRoot(dir string) InventoryOption {
	return func(s *SystemInventory) {
		s.sysClassNet = dir
	}
}

// WithProcNetRoot points route discovery at a different /proc/net directory.
func WithProcNetRoot(dir string) InventoryOption {
	return func(s *SystemInventory) {
		s.procNet = dir
	}
}

// NewSystemInventory creates an Inventory backed by the host network stack.
func NewSystemInventory(opts ...InventoryOption) *SystemInventory {
	s := &SystemInventory{
		sysClassNet:    defaultSysClassNet,
		procNet:        defaultProcNet,
		listInterfaces: net.Interfaces,
		interfaceAddrs: func(i net.Interface) ([]net.Addr, error) { return i.Addrs() },
		defaultSource:  lookupDefaultSource,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Interfaces implements Inventory. Loopback interfaces are omitted.
func (s *SystemInventory) Interfaces(ctx context.Context) ([]Interface, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sysIfaces, err := s.listInterfaces()
	if err != nil {
		return nil, err
	}

	routes, routesKnown := s.readDefaultRoutes()

	out := make([]Interface, 0, len(sysIfaces))
	for _, si := range sysIfaces {
		if si.Flags&net.FlagLoopback != 0 {
			continue
		}
		class, skip := s.classify(si.Name)
		if skip {
			continue
		}

		iface := Interface{
			Name:  si.Name,
			Index: si.Index,
			Class: class,
			Up:    si.Flags&net.FlagUp != 0 && si.Flags&net.FlagRunning != 0,
		}

		// Address errors are per-interface and transient; report the
		// interface without addresses rather than failing the listing.
		if addrs, err := s.interfaceAddrs(si); err == nil {
			iface.Addrs = toNetipAddrs(addrs)
		}

		if metric, ok := routes[si.Name]; ok {
			iface.DefaultRoute = true
			iface.RouteMetric = metric
		}
		out = append(out, iface)
	}

	if !routesKnown {
		s.markDefaultBySource(out)
	}

	return out, nil
}

// markDefaultBySource flags the interface owning the kernel's preferred
// source address for off-link traffic.
func (s *SystemInventory) markDefaultBySource(ifaces []Interface) {
	src, ok := s.defaultSource()
	if !ok {
		return
	}
	for i := range ifaces {
		for _, a := range ifaces[i].Addrs {
			if a == src {
				ifaces[i].DefaultRoute = true
				return
			}
		}
	}
}

// classify returns the class of the named interface, or skip=true for
// loopback devices that slipped past the flag check.
func (s *SystemInventory) classify(name string) (class InterfaceClass, skip bool) {
	for _, o := range s.overrides {
		if ok, _ := path.Match(o.pattern, name); ok {
			return o.class, false
		}
	}
	if c, ok, skip := classifyFromSysfs(s.sysClassNet, name); ok || skip {
		return c, skip
	}
	return classifyByName(name), false
}

// classifyFromSysfs inspects /sys/class/net/<name>. ok is false when sysfs
// has nothing conclusive to say about the interface.
func classifyFromSysfs(root, name string) (class InterfaceClass, ok bool, skip bool) {
	dir := filepath.Join(root, name)
	if _, err := os.Stat(dir); err != nil {
		return Unknown, false, false
	}

	if exists(filepath.Join(dir, "wireless")) || exists(filepath.Join(dir, "phy80211")) {
		return WiFi, true, false
	}

	switch ueventDevType(filepath.Join(dir, "uevent")) {
	case "wlan":
		return WiFi, true, false
	case "wwan":
		return Cellular, true, false
	case "bridge", "vlan", "bond", "vxlan", "wireguard", "tun", "tap":
		return Other, true, false
	}

	hwType, err := readInt(filepath.Join(dir, "type"))
	if err != nil {
		return Unknown, false, false
	}
	switch hwType {
	case arphrdLoopback:
		return Unknown, false, true
	case arphrdRawIP:
		return Cellular, true, false
	case arphrdEther:
		if c := classifyByName(name); c == Cellular {
			return Cellular, true, false
		}
		// Only devices backed by hardware are wired; veth pairs and
		// software bridges have no device link.
		if exists(filepath.Join(dir, "device")) {
			return Wired, true, false
		}
		return Other, true, false
	case arphrdPPP, arphrdNone:
		return Other, true, false
	}
	return Other, true, false
}

// classifyByName applies common interface naming conventions across Linux,
// Android, macOS and iOS.
func classifyByName(name string) InterfaceClass {
	n := strings.ToLower(name)
	switch {
	case hasAnyPrefix(n, "wwan", "rmnet", "ccmni", "pdp_ip", "wwp", "qmimux", "mhi_hwip"):
		return Cellular
	case hasAnyPrefix(n, "wlan", "wlp", "wlx", "wl", "ath", "ra", "awdl", "llw"):
		return WiFi
	case hasAnyPrefix(n, "eth", "enp", "eno", "ens", "enx", "em", "en"):
		return Wired
	case hasAnyPrefix(n, "tun", "tap", "utun", "ppp", "br", "docker", "veth", "virbr", "wg", "ipsec", "gif", "stf", "bridge", "vmnet", "zt"):
		return Other
	}
	return Unknown
}

func hasAnyPrefix(s string, prefixes ...string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

// readDefaultRoutes returns interface name → lowest default-route metric.
// known is false when procfs is unavailable.
func (s *SystemInventory) readDefaultRoutes() (routes map[string]int, known bool) {
	routes = make(map[string]int)

	f4, err4 := os.Open(filepath.Join(s.procNet, "route"))
	if err4 == nil {
		mergeRoutes(routes, parseIPv4DefaultRoutes(f4))
		f4.Close()
	}
	f6, err6 := os.Open(filepath.Join(s.procNet, "ipv6_route"))
	if err6 == nil {
		mergeRoutes(routes, parseIPv6DefaultRoutes(f6))
		f6.Close()
	}
	return routes, err4 == nil || err6 == nil
}

func mergeRoutes(dst, src map[string]int) {
	for name, metric := range src {
		if cur, ok := dst[name]; !ok || metric < cur {
			dst[name] = metric
		}
	}
}

const (
	rtfUp     = 0x0001
	rtfReject = 0x0200
)

// parseIPv4DefaultRoutes parses /proc/net/route.
func parseIPv4DefaultRoutes(r io.Reader) map[string]int {
	out := make(map[string]int)
	sc := bufio.NewScanner(r)
	first := true
	for sc.Scan() {
		if first {
			first = false
			continue
		}
		f := strings.Fields(sc.Text())
		if len(f) < 8 {
			continue
		}
		if f[1] != "00000000" || f[7] != "00000000" {
			continue
		}
		flags, err := strconv.ParseUint(f[3], 16, 32)
		if err != nil || flags&rtfUp == 0 || flags&rtfReject != 0 {
			continue
		}
		metric, _ := strconv.Atoi(f[6])
		if cur, ok := out[f[0]]; !ok || metric < cur {
			out[f[0]] = metric
		}
	}
	return out
}

// parseIPv6DefaultRoutes parses /proc/net/ipv6_route.
func parseIPv6DefaultRoutes(r io.Reader) map[string]int {
	const zero = "00000000000000000000000000000000"
	out := make(map[string]int)
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		f := strings.Fields(sc.Text())
		if len(f) < 10 {
			continue
		}
		if f[0] != zero || f[1] != "00" || f[9] == "lo" {
			continue
		}
		flags, err := strconv.ParseUint(f[8], 16, 32)
		if err != nil || flags&rtfUp == 0 || flags&rtfReject != 0 {
			continue
		}
		metric64, _ := strconv.ParseUint(f[5], 16, 32)
		metric := int(metric64)
		if cur, ok := out[f[9]]; !ok || metric < cur {
			out[f[9]] = metric
		}
	}
	return out
}

// lookupDefaultSource asks the kernel which local address it would use to
// reach a documentation-range host. UDP "dial" sends no packets.
func lookupDefaultSource() (netip.Addr, bool) {
	for _, target := range []string{"192.0.2.1:9", "[2001:db8::1]:9"} {
		conn, err := net.Dial("udp", target)
		if err != nil {
			continue
		}
		local, _ := conn.LocalAddr().(*net.UDPAddr)
		conn.Close()
		if local == nil {
			continue
		}
		if addr, ok := netip.AddrFromSlice(local.IP); ok {
			return addr.Unmap(), true
		}
	}
	return netip.Addr{}, false
}

func toNetipAddrs(addrs []net.Addr) []netip.Addr {
	out := make([]netip.Addr, 0, len(addrs))
	for _, a := range addrs {
		var ip net.IP
		switch v := a.(type) {
		case *net.IPNet:
			ip = v.IP
		case *net.IPAddr:
			ip = v.IP
		}
		if addr, ok := netip.AddrFromSlice(ip); ok {
			out = append(out, addr.Unmap())
		}
	}
	return out
}

func ueventDevType(file string) string {
	f, err := os.Open(file)
	if err != nil {
		return ""
	}
	defer f.Close()
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if v, ok := strings.CutPrefix(sc.Text(), "DEVTYPE="); ok {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func readInt(file string) (int, error) {
	b, err := os.ReadFile(file)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(b)))
}

func exists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
