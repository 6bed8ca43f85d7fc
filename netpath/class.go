package netpath

import (
	"fmt"
	"strings"
)

// InterfaceClass is a category of network access medium.
//
// The zero value is Unknown, which is what a connection reports when the
// interface it ended up on cannot be attributed to any known class.
type InterfaceClass uint8

const (
	// Unknown is used when the class of an interface cannot be determined.
	Unknown InterfaceClass = iota

	// Cellular is a mobile broadband radio (LTE/5G modem, WWAN).
	Cellular

	// WiFi is an 802.11 wireless LAN adapter.
	WiFi

	// Wired is an Ethernet (or Ethernet-like) adapter.
	Wired

	// Other covers tunnels, bridges, virtual and point-to-point links.
	Other
)

// Classes lists every concrete interface class, in reporting order.
var Classes = []InterfaceClass{Cellular, WiFi, Wired, Other}

var classNames = map[InterfaceClass]string{
	Unknown:  "unknown",
	Cellular: "cellular",
	WiFi:     "wifi",
	Wired:    "wired",
	Other:    "other",
}

// String returns the lowercase name of the class.
func (c InterfaceClass) String() string {
	if name, ok := classNames[c]; ok {
		return name
	}
	return fmt.Sprintf("InterfaceClass(%d)", uint8(c))
}

// ParseInterfaceClass parses a class name. Matching is case-insensitive and
// accepts a few common aliases ("wwan", "ethernet", "wlan").
func ParseInterfaceClass(s string) (InterfaceClass, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "cellular", "wwan", "mobile":
		return Cellular, nil
	case "wifi", "wi-fi", "wlan":
		return WiFi, nil
	case "wired", "ethernet", "eth":
		return Wired, nil
	case "other":
		return Other, nil
	case "unknown", "":
		return Unknown, nil
	}
	return Unknown, fmt.Errorf("netpath: unknown interface class %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (c InterfaceClass) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *InterfaceClass) UnmarshalText(text []byte) error {
	parsed, err := ParseInterfaceClass(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}
