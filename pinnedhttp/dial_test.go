package pinnedhttp

import (
	"context"
	"errors"
	"net"
	"net/netip"
	"syscall"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kroma-labs/lanepin/netpath"
)

func TestPinnedDialer_LocalIP(t *testing.T) {
	iface := netpath.Interface{
		Name: "wwan0",
		Addrs: []netip.Addr{
			netip.MustParseAddr("fe80::1"),
			netip.MustParseAddr("10.0.0.7"),
			netip.MustParseAddr("2001:db8::7"),
		},
	}

	tests := []struct {
		name   string
		remote string
		want   string
		wantOK bool
	}{
		{name: "given IPv4 remote, then IPv4 source", remote: "93.184.216.34", want: "10.0.0.7", wantOK: true},
		{name: "given IPv6 remote, then global IPv6 source", remote: "2606:2800::1", want: "2001:db8::7", wantOK: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := &pinnedDialer{iface: iface}

			got, ok := d.localIP(netip.MustParseAddr(tt.remote))

			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got.String())
		})
	}

	t.Run("given only link-local IPv6, then no source", func(t *testing.T) {
		d := &pinnedDialer{iface: netpath.Interface{Addrs: []netip.Addr{netip.MustParseAddr("fe80::1")}}}

		_, ok := d.localIP(netip.MustParseAddr("2606:2800::1"))

		assert.False(t, ok)
	})
}

func TestPinnedDialer_DialContext(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			_ = conn.Close()
		}
	}()

	port := ln.Addr().(*net.TCPAddr).Port
	ct := &connTrace{}
	d := &pinnedDialer{
		iface:  netpath.Interface{Addrs: []netip.Addr{netip.MustParseAddr("127.0.0.1")}},
		logger: zerolog.Nop(),
		trace:  ct,
	}

	conn, err := d.DialContext(context.Background(), "127.0.0.1", port)
	require.NoError(t, err)
	defer conn.Close()

	local := conn.LocalAddr().(*net.TCPAddr)
	assert.Equal(t, "127.0.0.1", local.IP.String())
	assert.False(t, ct.connectStart.IsZero())
	assert.False(t, ct.connectDone.IsZero())
	assert.True(t, ct.dnsStart.IsZero(), "IP literal skips resolution")
}

func TestPinnedDialer_ControlWithoutDevice(t *testing.T) {
	d := &pinnedDialer{logger: zerolog.Nop()}

	assert.NoError(t, d.control("tcp4", "127.0.0.1:80", nil))
}

func TestPinnedDialer_DeviceBind(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			_ = conn.Close()
		}
	}()
	port := ln.Addr().(*net.TCPAddr).Port

	tests := []struct {
		name      string
		bindErr   error
		wantErr   bool
		wantBound bool
	}{
		{name: "given the bind succeeds, then the socket is device bound", wantBound: true},
		{name: "given EPERM, then dials on the source address unbound", bindErr: syscall.EPERM},
		{name: "given EACCES, then dials on the source address unbound", bindErr: syscall.EACCES},
		{name: "given an unsupported platform, then dials on the source address unbound", bindErr: errBindUnsupported},
		{name: "given any other bind error, then the dial fails", bindErr: errors.New("no such device"), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var binds int
			d := &pinnedDialer{
				iface: netpath.Interface{
					Name:  "wwan0",
					Addrs: []netip.Addr{netip.MustParseAddr("127.0.0.1")},
				},
				logger: zerolog.Nop(),
				trace:  &connTrace{},
				bind: func(_ uintptr, network string, iface netpath.Interface) error {
					binds++
					assert.Equal(t, "wwan0", iface.Name)
					assert.Equal(t, "tcp4", network)
					return tt.bindErr
				},
			}

			conn, err := d.DialContext(context.Background(), "127.0.0.1", port)
			assert.Equal(t, 1, binds)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			defer conn.Close()
			assert.Equal(t, tt.wantBound, d.deviceBound())
		})
	}
}
