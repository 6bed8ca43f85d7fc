//go:build !linux && !darwin

package pinnedhttp

import "github.com/kroma-labs/lanepin/netpath"

// bindToDevice is unsupported here; connections rely on source address
// binding alone.
func bindToDevice(uintptr, string, netpath.Interface) error {
	return errBindUnsupported
}
