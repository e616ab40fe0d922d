package device

import (
	"bytes"
	"fmt"
	"net"
)

// ProlinkHeader is the 10-byte magic that begins every PRO DJ LINK UDP
// datagram (spec.md §6).
var ProlinkHeader = []byte{0x51, 0x73, 0x70, 0x74, 0x31, 0x57, 0x6d, 0x4a, 0x4f, 0x4c}

const (
	subtypeAnnounce = 0x06
	announcePortLen = 0x36 // minimum viable length for an announce packet
)

// BuildAnnounce constructs the wire bytes for an announce packet describing
// dev, per the field layout in spec.md §4.2.
func BuildAnnounce(dev Device) []byte {
	name := make([]byte, 20)
	copy(name, []byte(dev.Name))

	mac := make([]byte, 6)
	copy(mac, dev.MAC)

	ip := dev.IP.To4()
	if ip == nil {
		ip = make([]byte, 4)
	}

	parts := [][]byte{
		ProlinkHeader,                        // 0x00..0x09
		{subtypeAnnounce, 0x00},               // 0x0A sub-type, 0x0B unused
		name,                                  // 0x0C..0x1F device name
		{0x01, 0x02, 0x00, 0x36},               // 0x20..0x23 fixed padding
		{byte(dev.ID)},                         // 0x24 device id
		{0x00},                                 // 0x25 unused
		mac,                                   // 0x26..0x2B mac address
		ip,                                    // 0x2C..0x2F ipv4
		{0x01, 0x00, 0x00, 0x00},               // 0x30..0x33 fixed padding
		{byte(dev.Type)},                       // 0x34 device type
		{0x00},                                 // 0x35 final padding
	}

	return bytes.Join(parts, nil)
}

// ParseAnnounce decodes an announce packet, failing on bad magic, wrong
// sub-type, or a length mismatch (spec.md §4.2 "best-effort discovery").
func ParseAnnounce(packet []byte) (Device, error) {
	if len(packet) < announcePortLen {
		return Device{}, fmt.Errorf("device: announce packet too short (%d bytes)", len(packet))
	}
	if !bytes.HasPrefix(packet, ProlinkHeader) {
		return Device{}, fmt.Errorf("device: announce packet has bad magic")
	}
	if packet[0x0A] != subtypeAnnounce {
		return Device{}, fmt.Errorf("device: packet sub-type %#02x is not announce", packet[0x0A])
	}

	dev := Device{
		Name: string(bytes.TrimRight(packet[0x0C:0x0C+20], "\x00")),
		ID:   ID(packet[0x24]),
		Type: Type(packet[0x34]),
		MAC:  net.HardwareAddr(append([]byte(nil), packet[0x26:0x26+6]...)),
		IP:   net.IP(append([]byte(nil), packet[0x2C:0x2C+4]...)),
	}

	return dev, nil
}
