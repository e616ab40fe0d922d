// Package device implements the PRO DJ LINK announce layer: parsing and
// building announce packets, the live device-presence manager, and the
// virtual player's own periodic announcement.
package device

import (
	"fmt"
	"net"
)

// Type enumerates the PRO DJ LINK device kinds that appear in announce and
// status packets.
type Type uint8

const (
	TypeCDJ       Type = 0x01
	TypeMixer     Type = 0x03
	TypeRekordbox Type = 0x04
)

func (t Type) String() string {
	switch t {
	case TypeCDJ:
		return "CDJ"
	case TypeMixer:
		return "Mixer"
	case TypeRekordbox:
		return "Rekordbox"
	default:
		return fmt.Sprintf("Type(%#02x)", uint8(t))
	}
}

// ID is a device's network identity. 1..6 is the reserved player range;
// 7+ are "observer" IDs (spec.md §3).
type ID uint8

// IsPlayerSlot reports whether id occupies one of the six physical player
// slots on the network.
func (id ID) IsPlayerSlot() bool { return id >= 1 && id <= 6 }

// Device is the identity of one node observed on the PRO DJ LINK network.
type Device struct {
	ID   ID
	Name string // UTF-8, <=20 bytes on the wire
	Type Type
	MAC  net.HardwareAddr // 6 bytes
	IP   net.IP
}

func (d Device) String() string {
	return fmt.Sprintf("%s #%d (%s @ %s)", d.Name, d.ID, d.Type, d.IP)
}
