package device

import (
	"fmt"
	"log/slog"
	"net"
	"time"

	"golang.org/x/sys/unix"
)

const (
	AnnouncePort = 50000
	BeatPort     = 50001
	StatusPort   = 50002

	// AnnounceInterval is how often the virtual player re-broadcasts its
	// announce packet (spec.md §4.3).
	AnnounceInterval = 1500 * time.Millisecond

	// KeepAliveInterval is how often the virtual player emits its status
	// keep-alive packet on the status port, so peers don't declare it
	// running old firmware (spec.md §4.3).
	KeepAliveInterval = 1500 * time.Millisecond

	// DefaultVCDJID is the safe default virtual player id. It occupies no
	// physical player slot, but also cannot request metadata for
	// unanalyzed/CD media from other CDJs (spec.md §4.3).
	DefaultVCDJID ID = 7

	// FirmwareString is reported in the keep-alive status packet.
	FirmwareString = "1.43"

	// keepAlivePacketLen is the minimum length spec.md §4.4 requires of a
	// status-shaped packet for peers to treat it as current firmware.
	keepAlivePacketLen = 0xFF
)

// Announcer periodically broadcasts a synthetic announce packet identifying
// the virtual player, and emits the status-port keep-alive packet that
// keeps other CDJs from treating it as outdated firmware (spec.md §4.3).
type Announcer struct {
	logger       *slog.Logger
	self         Device
	broadcast    *net.UDPAddr
	announceConn *net.UDPConn
	statusConn   *net.UDPConn
	statusAddr   *net.UDPAddr

	stop chan struct{}
	done chan struct{}
}

// NewAnnouncer binds the announce socket on AnnouncePort (all local
// addresses, broadcast enabled) and the status socket on an ephemeral port,
// addresses both packet kinds to iface's broadcast address, and returns an
// Announcer ready to Start.
func NewAnnouncer(iface *net.Interface, self Device, logger *slog.Logger) (*Announcer, error) {
	if logger == nil {
		logger = slog.Default()
	}

	announceConn, err := net.ListenUDP("udp4", &net.UDPAddr{Port: AnnouncePort})
	if err != nil {
		return nil, fmt.Errorf("device: open announce socket: %w", err)
	}
	if err := enableBroadcast(announceConn); err != nil {
		announceConn.Close()
		return nil, fmt.Errorf("device: enable broadcast: %w", err)
	}

	statusConn, err := net.ListenUDP("udp4", &net.UDPAddr{Port: 0})
	if err != nil {
		announceConn.Close()
		return nil, fmt.Errorf("device: open status socket: %w", err)
	}

	bcast, err := broadcastAddress(iface, self.IP)
	if err != nil {
		announceConn.Close()
		statusConn.Close()
		return nil, err
	}

	return &Announcer{
		logger:       logger,
		self:         self,
		broadcast:    &net.UDPAddr{IP: bcast, Port: AnnouncePort},
		announceConn: announceConn,
		statusConn:   statusConn,
		statusAddr:   &net.UDPAddr{IP: bcast, Port: StatusPort},
		stop:         make(chan struct{}),
		done:         make(chan struct{}),
	}, nil
}

// Start begins the periodic announce/keep-alive loop in a background
// goroutine. Stop ends it.
func (a *Announcer) Start() {
	go a.run()
}

// Stop ends the announce loop and closes the sockets it owns.
func (a *Announcer) Stop() {
	close(a.stop)
	<-a.done
	a.announceConn.Close()
	a.statusConn.Close()
}

func (a *Announcer) run() {
	defer close(a.done)

	announceTicker := time.NewTicker(AnnounceInterval)
	defer announceTicker.Stop()
	keepAliveTicker := time.NewTicker(KeepAliveInterval)
	defer keepAliveTicker.Stop()

	packet := BuildAnnounce(a.self)
	keepAlive := buildKeepAlivePacket(a.self)

	for {
		select {
		case <-a.stop:
			return
		case <-announceTicker.C:
			if _, err := a.announceConn.WriteToUDP(packet, a.broadcast); err != nil {
				a.logger.Warn("device: announce broadcast failed", "error", err)
			}
		case <-keepAliveTicker.C:
			if _, err := a.statusConn.WriteToUDP(keepAlive, a.statusAddr); err != nil {
				a.logger.Warn("device: status keep-alive failed", "error", err)
			}
		}
	}
}

// buildKeepAlivePacket constructs the host-name/id/firmware status datagram
// spec.md §4.3 requires to prevent peers from treating the virtual player as
// old firmware. The spec does not pin exact field offsets for this packet
// (unlike announce/status/media-slot); we reuse the announce packet's
// name/id layout and append the firmware string, padded to the minimum
// length peers expect of a status-shaped packet.
func buildKeepAlivePacket(self Device) []byte {
	buf := BuildAnnounce(self)
	buf = append(buf, []byte(FirmwareString)...)
	if len(buf) < keepAlivePacketLen {
		buf = append(buf, make([]byte, keepAlivePacketLen-len(buf))...)
	}
	return buf
}

func broadcastAddress(iface *net.Interface, ip net.IP) (net.IP, error) {
	ip4 := ip.To4()
	if ip4 == nil {
		return nil, fmt.Errorf("device: host ip %s is not IPv4", ip)
	}

	addrs, err := iface.Addrs()
	if err != nil {
		return nil, fmt.Errorf("device: list interface addrs: %w", err)
	}
	for _, addr := range addrs {
		ipNet, ok := addr.(*net.IPNet)
		if !ok || ipNet.IP.To4() == nil || !ipNet.IP.Equal(ip4) {
			continue
		}
		mask := ipNet.Mask
		bcast := make(net.IP, net.IPv4len)
		for i := range ip4 {
			bcast[i] = ip4[i] | ^mask[i]
		}
		return bcast, nil
	}
	return nil, fmt.Errorf("device: no interface address matches %s", ip)
}

// enableBroadcast sets SO_BROADCAST on the announce socket so the kernel
// permits sends to a subnet broadcast address.
func enableBroadcast(conn *net.UDPConn) error {
	raw, err := conn.SyscallConn()
	if err != nil {
		return err
	}
	var sockErr error
	err = raw.Control(func(fd uintptr) {
		sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_BROADCAST, 1)
	})
	if err != nil {
		return err
	}
	return sockErr
}

// FindBroadcastInterface returns the first interface matching name (or any
// broadcast-capable interface if name is empty) — mirrors the discovery
// behaviour config.Interface selects from (spec.md §6).
func FindBroadcastInterface(name string) (*net.Interface, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}
	for _, iface := range ifaces {
		if name != "" && iface.Name != name {
			continue
		}
		if iface.Flags&net.FlagBroadcast != 0 {
			found := iface
			return &found, nil
		}
	}
	return nil, fmt.Errorf("device: no broadcast-capable interface found (name=%q)", name)
}
