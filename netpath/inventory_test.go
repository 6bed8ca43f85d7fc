package netpath

import (
	"context"
	"net"
	"net/netip"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const procRoute = `Iface	Destination	Gateway 	Flags	RefCnt	Use	Metric	Mask		MTU	Window	IRTT
wlan0	00000000	0101A8C0	0003	0	0	600	00000000	0	0	0
wwan0	00000000	01400A0A	0003	0	0	700	00000000	0	0	0
wlan0	0001A8C0	00000000	0001	0	0	600	00FFFFFF	0	0	0
eth0	00000000	0100000A	0201	0	0	10	00000000	0	0	0
`

const procIPv6Route = `00000000000000000000000000000000 00 00000000000000000000000000000000 00 fe800000000000000000000000000001 00000064 00000001 00000000 00000003 wwan0
20010db8000000000000000000000000 40 00000000000000000000000000000000 00 00000000000000000000000000000000 00000100 00000001 00000000 00000001 wlan0
00000000000000000000000000000000 00 00000000000000000000000000000000 00 00000000000000000000000000000000 ffffffff 00000001 00000000 00200200 lo
`

func TestParseIPv4DefaultRoutes(t *testing.T) {
	got := parseIPv4DefaultRoutes(strings.NewReader(procRoute))

	assert.Equal(t, map[string]int{"wlan0": 600, "wwan0": 700}, got)
}

func TestParseIPv6DefaultRoutes(t *testing.T) {
	got := parseIPv6DefaultRoutes(strings.NewReader(procIPv6Route))

	assert.Equal(t, map[string]int{"wwan0": 100}, got)
}

func TestClassifyByName(t *testing.T) {
	tests := []struct {
		name string
		want InterfaceClass
	}{
		{name: "wwan0", want: Cellular},
		{name: "rmnet_data0", want: Cellular},
		{name: "pdp_ip0", want: Cellular},
		{name: "wlan0", want: WiFi},
		{name: "wlp3s0", want: WiFi},
		{name: "eth0", want: Wired},
		{name: "enp0s31f6", want: Wired},
		{name: "docker0", want: Other},
		{name: "utun3", want: Other},
		{name: "xyz9", want: Unknown},
	}

	for _, tt := range tests {
		t.Run("given "+tt.name+", then "+tt.want.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, classifyByName(tt.name))
		})
	}
}

// sysfsIface lays out a fake /sys/class/net/<name> directory.
type sysfsIface struct {
	name      string
	hwType    string
	devType   string
	wireless  bool
	hasDevice bool
}

func writeSysfs(t *testing.T, root string, s sysfsIface) {
	t.Helper()
	dir := filepath.Join(root, s.name)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	if s.hwType != "" {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "type"), []byte(s.hwType+"\n"), 0o644))
	}
	uevent := "INTERFACE=" + s.name + "\n"
	if s.devType != "" {
		uevent += "DEVTYPE=" + s.devType + "\n"
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "uevent"), []byte(uevent), 0o644))
	if s.wireless {
		require.NoError(t, os.MkdirAll(filepath.Join(dir, "wireless"), 0o755))
	}
	if s.hasDevice {
		require.NoError(t, os.MkdirAll(filepath.Join(dir, "device"), 0o755))
	}
}

func TestClassifyFromSysfs(t *testing.T) {
	tests := []struct {
		name     string
		sysfs    sysfsIface
		want     InterfaceClass
		wantOK   bool
		wantSkip bool
	}{
		{
			name:   "given wireless directory, then WiFi",
			sysfs:  sysfsIface{name: "wlp2s0", hwType: "1", wireless: true, hasDevice: true},
			want:   WiFi,
			wantOK: true,
		},
		{
			name:   "given wwan devtype, then Cellular",
			sysfs:  sysfsIface{name: "usb0", hwType: "1", devType: "wwan", hasDevice: true},
			want:   Cellular,
			wantOK: true,
		},
		{
			name:   "given raw IP hardware type, then Cellular",
			sysfs:  sysfsIface{name: "mbim0", hwType: "519"},
			want:   Cellular,
			wantOK: true,
		},
		{
			name:   "given ethernet with device link, then Wired",
			sysfs:  sysfsIface{name: "eno1", hwType: "1", hasDevice: true},
			want:   Wired,
			wantOK: true,
		},
		{
			name:   "given ethernet without device link, then Other",
			sysfs:  sysfsIface{name: "veth12ab", hwType: "1"},
			want:   Other,
			wantOK: true,
		},
		{
			name:   "given bridge devtype, then Other",
			sysfs:  sysfsIface{name: "br0", hwType: "1", devType: "bridge"},
			want:   Other,
			wantOK: true,
		},
		{
			name:     "given loopback hardware type, then skipped",
			sysfs:    sysfsIface{name: "lo", hwType: "772"},
			want:     Unknown,
			wantSkip: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := t.TempDir()
			writeSysfs(t, root, tt.sysfs)

			got, ok, skip := classifyFromSysfs(root, tt.sysfs.name)

			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantSkip, skip)
		})
	}

	t.Run("given missing directory, then not conclusive", func(t *testing.T) {
		_, ok, skip := classifyFromSysfs(t.TempDir(), "ghost0")
		assert.False(t, ok)
		assert.False(t, skip)
	})
}

func newTestInventory(t *testing.T, procNet string, opts ...InventoryOption) *SystemInventory {
	t.Helper()

	addrs := map[string][]net.Addr{
		"wlan0": {&net.IPNet{IP: net.ParseIP("192.168.1.5"), Mask: net.CIDRMask(24, 32)}},
		"wwan0": {&net.IPNet{IP: net.ParseIP("10.64.1.2"), Mask: net.CIDRMask(30, 32)}},
		"usb0":  {&net.IPNet{IP: net.ParseIP("172.20.10.2"), Mask: net.CIDRMask(28, 32)}},
	}

	opts = append([]InventoryOption{WithSysfsRoot(t.TempDir()), WithProcNetRoot(procNet)}, opts...)
	inv := NewSystemInventory(opts...)
	inv.listInterfaces = func() ([]net.Interface, error) {
		return []net.Interface{
			{Index: 1, Name: "lo", Flags: net.FlagUp | net.FlagLoopback | net.FlagRunning},
			{Index: 2, Name: "wlan0", Flags: net.FlagUp | net.FlagRunning},
			{Index: 3, Name: "wwan0", Flags: net.FlagUp | net.FlagRunning},
			{Index: 4, Name: "usb0", Flags: net.FlagUp},
		}, nil
	}
	inv.interfaceAddrs = func(i net.Interface) ([]net.Addr, error) {
		return addrs[i.Name], nil
	}
	inv.defaultSource = func() (netip.Addr, bool) {
		return netip.MustParseAddr("10.64.1.2"), true
	}
	return inv
}

func TestSystemInventory_Interfaces(t *testing.T) {
	procNet := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(procNet, "route"), []byte(procRoute), 0o644))

	inv := newTestInventory(t, procNet, WithClassOverride("usb*", Cellular))

	got, err := inv.Interfaces(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 3)

	byName := make(map[string]Interface, len(got))
	for _, i := range got {
		byName[i.Name] = i
	}

	assert.NotContains(t, byName, "lo")

	assert.Equal(t, WiFi, byName["wlan0"].Class)
	assert.True(t, byName["wlan0"].Up)
	assert.True(t, byName["wlan0"].DefaultRoute)
	assert.Equal(t, 600, byName["wlan0"].RouteMetric)
	assert.Equal(t, []netip.Addr{netip.MustParseAddr("192.168.1.5")}, byName["wlan0"].Addrs)

	assert.Equal(t, Cellular, byName["wwan0"].Class)
	assert.Equal(t, 700, byName["wwan0"].RouteMetric)

	assert.Equal(t, Cellular, byName["usb0"].Class, "override applies")
	assert.False(t, byName["usb0"].Up, "not running means not up")
	assert.False(t, byName["usb0"].DefaultRoute)
}

func TestSystemInventory_Interfaces_NoProcfs(t *testing.T) {
	inv := newTestInventory(t, filepath.Join(t.TempDir(), "missing"))

	got, err := inv.Interfaces(context.Background())
	require.NoError(t, err)

	for _, i := range got {
		assert.Equal(t, i.Name == "wwan0", i.DefaultRoute, "default route on %s", i.Name)
	}
}

func TestSystemInventory_Interfaces_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestInventory(t, t.TempDir()).Interfaces(ctx)

	assert.ErrorIs(t, err, context.Canceled)
}
