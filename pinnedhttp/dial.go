package pinnedhttp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/kroma-labs/lanepin/netpath"
)

var (
	errBindUnsupported = errors.New("interface binding not supported on this platform")
	errNoLocalAddress  = errors.New("interface has no address of the target family")
)

// pinnedDialer opens TCP connections whose every packet, DNS included, must
// leave through one interface. Each socket is bound to the interface device
// where the platform allows it, and always to one of its source addresses.
type pinnedDialer struct {
	iface  netpath.Interface
	logger zerolog.Logger
	trace  *connTrace

	// bind scopes a socket to the interface device. Nil uses bindToDevice.
	bind func(fd uintptr, network string, iface netpath.Interface) error

	// unbound is set once a TCP socket fell back to the source address
	// alone. The kernel then routes by destination, so the local address no
	// longer tells which interface the packets leave through.
	unbound atomic.Bool
}

// deviceBound reports whether every TCP socket was bound to the device.
func (d *pinnedDialer) deviceBound() bool {
	return !d.unbound.Load()
}

// control binds the raw socket to the interface before connect.
func (d *pinnedDialer) control(network, _ string, rc syscall.RawConn) error {
	if d.iface.Name == "" {
		return nil
	}
	bind := d.bind
	if bind == nil {
		bind = bindToDevice
	}
	var bindErr error
	if err := rc.Control(func(fd uintptr) {
		bindErr = bind(fd, network, d.iface)
	}); err != nil {
		return err
	}
	if bindErr == nil {
		return nil
	}
	// Binding to a device can need CAP_NET_RAW. The dial proceeds on the
	// source address, and the connection reports its interface as unknown.
	if errors.Is(bindErr, errBindUnsupported) ||
		errors.Is(bindErr, syscall.EPERM) ||
		errors.Is(bindErr, syscall.EACCES) {
		if strings.HasPrefix(network, "tcp") {
			d.unbound.Store(true)
		}
		d.logger.Warn().
			Err(bindErr).
			Str("interface", d.iface.Name).
			Msg("pinnedhttp: device binding unavailable, egress interface cannot be verified")
		return nil
	}
	return bindErr
}

// localIP picks an interface address in the same family as remote.
// Link-local addresses are skipped since they need a zone and cannot reach
// off-link peers.
func (d *pinnedDialer) localIP(remote netip.Addr) (netip.Addr, bool) {
	for _, a := range d.iface.Addrs {
		if a.Is4() != remote.Is4() || a.IsLinkLocalUnicast() {
			continue
		}
		return a, true
	}
	return netip.Addr{}, false
}

func (d *pinnedDialer) dialAddr(ctx context.Context, network string, remote netip.AddrPort) (net.Conn, error) {
	local, ok := d.localIP(remote.Addr())
	if !ok {
		return nil, fmt.Errorf("%w: %s for %s", errNoLocalAddress, d.iface.Name, remote.Addr())
	}

	nd := net.Dialer{Control: d.control}
	switch network {
	case "udp", "udp4", "udp6":
		nd.LocalAddr = &net.UDPAddr{IP: local.AsSlice()}
	default:
		nd.LocalAddr = &net.TCPAddr{IP: local.AsSlice()}
	}
	return nd.DialContext(ctx, network, remote.String())
}

// dialDNS is the resolver's dial hook. A loopback stub resolver cannot be
// reached through the pinned interface, so it is dialed directly and does the
// upstream lookup itself.
func (d *pinnedDialer) dialDNS(ctx context.Context, network, server string) (net.Conn, error) {
	ap, err := netip.ParseAddrPort(server)
	if err != nil {
		return nil, err
	}
	if ap.Addr().IsLoopback() {
		var nd net.Dialer
		return nd.DialContext(ctx, network, server)
	}
	return d.dialAddr(ctx, network, netip.AddrPortFrom(ap.Addr().Unmap(), ap.Port()))
}

// DialContext resolves host through the pinned interface and connects to the
// first address that accepts.
func (d *pinnedDialer) DialContext(ctx context.Context, host string, port int) (net.Conn, error) {
	var addrs []netip.Addr
	if ip, err := netip.ParseAddr(host); err == nil {
		addrs = []netip.Addr{ip.Unmap()}
	} else {
		resolver := &net.Resolver{PreferGo: true, Dial: d.dialDNS}
		d.trace.dnsStart = time.Now()
		addrs, err = resolver.LookupNetIP(ctx, "ip", host)
		d.trace.dnsDone = time.Now()
		if err != nil {
			return nil, err
		}
		d.trace.dnsAddrs = make([]string, 0, len(addrs))
		for _, a := range addrs {
			d.trace.dnsAddrs = append(d.trace.dnsAddrs, a.String())
		}
	}

	d.trace.connectStart = time.Now()
	defer func() { d.trace.connectDone = time.Now() }()

	var errs []error
	for _, a := range addrs {
		conn, err := d.dialAddr(ctx, "tcp", netip.AddrPortFrom(a.Unmap(), uint16(port)))
		if err == nil {
			return conn, nil
		}
		errs = append(errs, err)
		if ctx.Err() != nil {
			break
		}
	}
	if len(errs) == 0 {
		return nil, fmt.Errorf("no addresses for %s", host)
	}

	// Report a family mismatch only when no address was even attempted.
	var dialErrs []error
	for _, err := range errs {
		if !errors.Is(err, errNoLocalAddress) {
			dialErrs = append(dialErrs, err)
		}
	}
	if len(dialErrs) == 0 {
		return nil, errs[0]
	}
	return nil, errors.Join(dialErrs...)
}
