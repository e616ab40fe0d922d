package nfs

import (
	"fmt"
	"net"
	"time"

	"github.com/cartomix/prolink/internal/wire"
)

const portmapPort = 111

// GetPort asks the portmapper on host (program 100000 v2) which UDP port
// serves the given ONC-RPC program/version, per spec.md §4.6.
func GetPort(host net.IP, program, version uint32, timeout time.Duration) (uint16, error) {
	addr := &net.UDPAddr{IP: host, Port: portmapPort}
	conn, err := net.DialUDP("udp4", nil, addr)
	if err != nil {
		return 0, fmt.Errorf("nfs: dial portmapper: %w", err)
	}
	defer conn.Close()

	e := wire.NewXDREncoder()
	e.PutUint32(program)
	e.PutUint32(version)
	e.PutUint32(17) // IPPROTO_UDP
	e.PutUint32(0)  // port, unused in a GETPORT request

	reply, err := callUnix(conn, 1, programPortmap, versionPortmap, portmapProcGetPort, e.Bytes(), timeout)
	if err != nil {
		return 0, fmt.Errorf("nfs: portmap getport(%d,%d): %w", program, version, err)
	}
	d := wire.NewXDRDecoder(reply)
	port, err := d.Uint32()
	if err != nil {
		return 0, fmt.Errorf("nfs: decode getport reply: %w", err)
	}
	if port == 0 {
		return 0, fmt.Errorf("nfs: program %d version %d not registered on %s", program, version, host)
	}
	return uint16(port), nil
}
