// Package control sends fire-and-forget transport command datagrams to a
// target deck over the beat port (spec.md §4.9).
package control

import (
	"bytes"
	"net"

	"github.com/cartomix/prolink/internal/device"
)

// State is the transport state a command datagram requests.
type State uint8

const (
	StatePlaying State = 0x00
	StateCued    State = 0x01
)

const controlSubtype = 0x02

// BuildCommand constructs the command datagram spec.md §4.9 describes: a
// 4-byte mask with the requested state encoded at the byte for target.id-1.
func BuildCommand(hostName string, hostID device.ID, target device.ID, state State) []byte {
	name := make([]byte, 20)
	copy(name, []byte(hostName))

	mask := make([]byte, 4)
	if target >= 1 && int(target) <= len(mask) {
		mask[target-1] = byte(state)
	}

	parts := [][]byte{
		device.ProlinkHeader,
		{controlSubtype},
		name,
		{0x01, 0x00},
		{byte(hostID)},
		{0x00, 0x04},
		mask,
	}
	return bytes.Join(parts, nil)
}

// SendCommand transmits a command datagram to target over conn. It does not
// wait for or expect a response.
func SendCommand(conn *net.UDPConn, addr *net.UDPAddr, hostName string, hostID device.ID, target device.ID, state State) error {
	packet := BuildCommand(hostName, hostID, target, state)
	_, err := conn.WriteToUDP(packet, addr)
	return err
}
