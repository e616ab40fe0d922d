package remotedb

import (
	"encoding/binary"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/cartomix/prolink/internal/device"
	"github.com/cartomix/prolink/internal/wire"
	"github.com/google/uuid"
	"github.com/sony/gobreaker/v2"
)

// discoveryPort is the fixed port a remote-database server can be probed on
// to learn its actual (dynamic) service port (spec.md §4.5, §6).
const discoveryPort = 12523

// DiscoverPort queries ip for the dynamic port its remote-database service
// listens on (spec.md §4.5).
func DiscoverPort(ip net.IP, timeout time.Duration) (uint16, error) {
	addr := fmt.Sprintf("%s:%d", ip, discoveryPort)
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return 0, fmt.Errorf("remotedb: dial discovery port: %w", err)
	}
	defer conn.Close()

	probe := []byte{0x00, 0x00, 0x00, 0x0f}
	probe = append(probe, []byte("RemoteDBServer")...)
	probe = append(probe, 0x00)

	if _, err := conn.Write(probe); err != nil {
		return 0, fmt.Errorf("remotedb: send discovery probe: %w", err)
	}

	resp := make([]byte, 2)
	if _, err := readFull(conn, resp); err != nil {
		return 0, fmt.Errorf("remotedb: read discovery response: %w", err)
	}
	return binary.BigEndian.Uint16(resp), nil
}

func readFull(conn net.Conn, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := conn.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// Connection is a per-device remote-database session: one TCP socket, one
// mutex serializing every request/response pair (including multi-message
// queries and paged menu rendering, so they execute atomically), and one
// monotonic transaction counter (spec.md §4.5).
type Connection struct {
	ID       uuid.UUID
	DeviceID device.ID

	mu       sync.Mutex
	conn     net.Conn
	nextTxID uint32
	breaker  *gobreaker.CircuitBreaker[struct{}]
}

// Dial performs discovery against dev, opens the database session, and
// completes the preamble + Introduce handshake with hostID (spec.md §4.5).
func Dial(dev device.Device, hostID device.ID, timeout time.Duration) (*Connection, error) {
	port, err := DiscoverPort(dev.IP, timeout)
	if err != nil {
		return nil, err
	}

	addr := fmt.Sprintf("%s:%d", dev.IP, port)
	sock, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return nil, fmt.Errorf("remotedb: dial database service: %w", err)
	}

	c := &Connection{
		ID:       uuid.New(),
		DeviceID: dev.ID,
		conn:     sock,
		nextTxID: 1,
		breaker: gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
			Name:        fmt.Sprintf("remotedb-%d", dev.ID),
			MaxRequests: 1,
			Timeout:     30 * time.Second,
		}),
	}

	if err := c.handshake(hostID); err != nil {
		sock.Close()
		return nil, err
	}
	return c, nil
}

func (c *Connection) handshake(hostID device.ID) error {
	preamble := make([]byte, 4)
	binary.BigEndian.PutUint32(preamble, 1)
	if _, err := c.conn.Write(preamble); err != nil {
		return fmt.Errorf("remotedb: write preamble: %w", err)
	}

	resp := make([]byte, 4)
	if _, err := readFull(c.conn, resp); err != nil {
		return fmt.Errorf("remotedb: read preamble ack: %w", err)
	}
	if binary.BigEndian.Uint32(resp) != 1 {
		return fmt.Errorf("remotedb: unexpected preamble ack %v", resp)
	}

	introduce := Message{
		TransactionID: TransactionSentinel,
		Type:          TypeIntroduce,
		Args:          []wire.Field{wire.U32(uint32(hostID))},
	}
	if err := WriteMessage(c.conn, introduce); err != nil {
		return fmt.Errorf("remotedb: send introduce: %w", err)
	}
	if _, err := ReadMessage(c.conn, TypeSuccess, []ArgKind{ArgKindU32, ArgKindU32}); err != nil {
		return fmt.Errorf("remotedb: introduce handshake: %w", err)
	}
	return nil
}

// Close sends a Disconnect message and closes the socket.
func (c *Connection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = WriteMessage(c.conn, Message{TransactionID: TransactionSentinel, Type: TypeDisconnect})
	return c.conn.Close()
}

// transact sends req (after assigning it a fresh transaction id) and decodes
// exactly one response of the given type, under the connection's circuit
// breaker and serialization lock.
func (c *Connection) transact(req Message, respType MessageType, respArgKinds []ArgKind) (Message, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.transactLocked(req, respType, respArgKinds)
}

// transactLocked is transact's body, assuming c.mu is already held. Callers
// that need a lease spanning more than one message (a compound query
// followed by paged rendering, spec.md §4.5, §9) lock once and drive
// several transactLocked/renderPageLocked calls under that single lease
// instead of calling transact per message.
func (c *Connection) transactLocked(req Message, respType MessageType, respArgKinds []ArgKind) (Message, error) {
	req.TransactionID = c.nextTxID
	c.nextTxID++

	result, err := c.breaker.Execute(func() (struct{}, error) {
		if err := WriteMessage(c.conn, req); err != nil {
			return struct{}{}, err
		}
		return struct{}{}, nil
	})
	_ = result
	if err != nil {
		return Message{}, fmt.Errorf("remotedb: send request %#04x: %w", req.Type, err)
	}

	resp, err := ReadMessage(c.conn, respType, respArgKinds)
	if err != nil {
		return Message{}, fmt.Errorf("remotedb: read response to %#04x: %w", req.Type, err)
	}
	return resp, nil
}
