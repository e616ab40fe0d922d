package status

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"

	"github.com/cartomix/prolink/internal/device"
)

// Listener receives every DeckState decoded from the status socket.
type Listener func(DeckState)

type mediaSlotKey struct {
	device device.ID
	slot   SlotTag
}

// Emitter owns the status-port socket (spec.md §4.4). It fans out decoded
// DeckState updates to registered listeners, and answers synchronous
// media-slot queries over the same socket (spec.md §4.4, §5).
type Emitter struct {
	logger *slog.Logger
	conn   *net.UDPConn

	mu        sync.Mutex
	listeners []Listener

	pendingMu sync.Mutex
	pending   map[mediaSlotKey]chan MediaSlotInfo

	stop chan struct{}
	done chan struct{}
}

// NewEmitter binds the status socket (port 50002) and returns an Emitter
// ready to Start.
func NewEmitter(logger *slog.Logger) (*Emitter, error) {
	if logger == nil {
		logger = slog.Default()
	}
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{Port: device.StatusPort})
	if err != nil {
		return nil, fmt.Errorf("status: open status socket: %w", err)
	}
	return &Emitter{
		logger:  logger,
		conn:    conn,
		pending: make(map[mediaSlotKey]chan MediaSlotInfo),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}, nil
}

// OnUpdate registers fn to be called with every DeckState this emitter
// decodes. fn is called synchronously from the read loop; callers that do
// slow work should hand off to their own goroutine.
func (e *Emitter) OnUpdate(fn Listener) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.listeners = append(e.listeners, fn)
}

// Start begins the read loop in a background goroutine. Stop ends it.
func (e *Emitter) Start() {
	go e.run()
}

// Stop ends the read loop and closes the socket.
func (e *Emitter) Stop() {
	close(e.stop)
	e.conn.Close()
	<-e.done
}

func (e *Emitter) run() {
	defer close(e.done)

	buf := make([]byte, 2048)
	for {
		n, _, err := e.conn.ReadFromUDP(buf)
		if err != nil {
			select {
			case <-e.stop:
				return
			default:
				e.logger.Debug("status: read failed", "error", err)
				continue
			}
		}
		e.handlePacket(append([]byte(nil), buf[:n]...))
	}
}

func (e *Emitter) handlePacket(packet []byte) {
	if len(packet) <= offSubtype {
		return
	}
	switch packet[offSubtype] {
	case subtypeStatus:
		deck, err := ParseStatus(packet)
		if err != nil {
			e.logger.Debug("status: dropping malformed status packet", "error", err)
			return
		}
		e.mu.Lock()
		listeners := append([]Listener(nil), e.listeners...)
		e.mu.Unlock()
		for _, l := range listeners {
			l(deck)
		}
	case mediaQuerySubtype:
		info, err := ParseMediaSlotResponse(packet)
		if err != nil {
			e.logger.Debug("status: dropping malformed media slot response", "error", err)
			return
		}
		key := mediaSlotKey{device: info.DeviceID, slot: info.Slot}
		e.pendingMu.Lock()
		ch, ok := e.pending[key]
		e.pendingMu.Unlock()
		if ok {
			select {
			case ch <- info:
			default:
			}
		}
	}
}

// QueryMediaSlot sends a media-slot query to target/slot and blocks until a
// response arrives or ctx is done (spec.md §6).
func (e *Emitter) QueryMediaSlot(ctx context.Context, hostName string, hostID device.ID, hostIP net.IP, target device.ID, slot SlotTag) (MediaSlotInfo, error) {
	key := mediaSlotKey{device: target, slot: slot}
	ch := make(chan MediaSlotInfo, 1)

	e.pendingMu.Lock()
	e.pending[key] = ch
	e.pendingMu.Unlock()
	defer func() {
		e.pendingMu.Lock()
		delete(e.pending, key)
		e.pendingMu.Unlock()
	}()

	query := BuildMediaSlotQuery(hostName, hostID, hostIP, target, slot)
	addr := &net.UDPAddr{IP: hostIP, Port: device.StatusPort}
	if _, err := e.conn.WriteToUDP(query, addr); err != nil {
		return MediaSlotInfo{}, fmt.Errorf("status: send media slot query: %w", err)
	}

	select {
	case info := <-ch:
		return info, nil
	case <-ctx.Done():
		return MediaSlotInfo{}, fmt.Errorf("status: media slot query to device %d slot %s: %w", target, slot, ctx.Err())
	}
}
