// Package netpath reports which classes of network interface (cellular,
// Wi-Fi, wired, other) the host can currently reach the network through.
//
// # Snapshots
//
// A Snapshot is an immutable view of the path: overall status, the set of
// available interface classes, the class carrying the default route, and
// whether that route is expensive or constrained.
//
//	ifaces, _ := netpath.NewSystemInventory().Interfaces(ctx)
//	snap := netpath.BuildSnapshot(ifaces, netpath.Policy{})
//	if snap.HasInterfaceClass(netpath.Cellular) {
//	    // a cellular data session is up
//	}
//
// # Monitoring
//
// Monitor emits a Snapshot on start and after every change. On Linux changes
// are detected through rtnetlink; elsewhere the inventory is polled.
//
//	m := netpath.NewMonitor(
//	    netpath.WithPolicy(netpath.Policy{ConstrainedInterfaces: []string{"usb*"}}),
//	)
//	err := m.Start(func(s netpath.Snapshot) { log.Println(s.Status) })
//	defer m.Stop()
//
// # Classification
//
// On Linux, SystemInventory classifies interfaces from sysfs (wireless
// directories, uevent DEVTYPE, ARPHRD type). Names are used as a fallback and
// on other platforms. WithClassOverride pins a class for names matching a
// pattern, which is useful for USB modems that present as Ethernet.
package netpath
