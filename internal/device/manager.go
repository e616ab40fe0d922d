package device

import (
	"log/slog"
	"sort"
	"sync"
	"time"
)

// DefaultDeviceTimeout is the liveness window used when none is configured
// (spec.md §4.2).
const DefaultDeviceTimeout = 10 * time.Second

// Manager consumes announce datagrams and maintains the authoritative live
// device set. It owns the {id -> Device} mapping exclusively; callers only
// ever see snapshots (spec.md §3 "Ownership").
type Manager struct {
	logger   *slog.Logger
	hostName string

	mu      sync.Mutex
	timeout time.Duration
	live    map[ID]Device
	timers  map[ID]*time.Timer

	registry listenerRegistry
}

// NewManager constructs a Manager. hostName is the virtual player's own
// announce name, used to ignore the host's own broadcasts (spec.md §4.2).
func NewManager(hostName string, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		logger:   logger,
		hostName: hostName,
		timeout:  DefaultDeviceTimeout,
		live:     make(map[ID]Device),
		timers:   make(map[ID]*time.Timer),
	}
}

// On registers a listener for event, returning an id usable with Off.
func (m *Manager) On(event Event, fn Listener) ListenerID { return m.registry.on(event, fn) }

// Once registers a listener that fires at most once.
func (m *Manager) Once(event Event, fn Listener) ListenerID { return m.registry.once(event, fn) }

// Off removes a previously registered listener.
func (m *Manager) Off(id ListenerID) { m.registry.off(id) }

// Devices returns a snapshot of the live set, sorted by id (supplemented
// convenience in place of spec.md §4.2's read-only map; no map is exposed —
// see SPEC_FULL.md §5).
func (m *Manager) Devices() []Device {
	m.mu.Lock()
	out := make([]Device, 0, len(m.live))
	for _, d := range m.live {
		out = append(out, d)
	}
	m.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Device returns the currently live device with the given id, if any.
func (m *Manager) Device(id ID) (Device, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.live[id]
	return d, ok
}

// Reconfigure updates the liveness timeout. Devices already being tracked
// have their pending expiry restarted with the new duration immediately.
func (m *Manager) Reconfigure(timeout time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.timeout = timeout
	for _, t := range m.timers {
		t.Reset(timeout)
	}
}

// HandleAnnounce processes one raw announce datagram. Malformed packets
// (bad magic, wrong sub-type, length mismatch) are dropped silently
// (spec.md §4.2 "best-effort discovery").
func (m *Manager) HandleAnnounce(packet []byte) {
	dev, err := ParseAnnounce(packet)
	if err != nil {
		m.logger.Debug("device: dropped malformed announce packet", "error", err)
		return
	}
	if dev.Name == m.hostName {
		return
	}

	m.mu.Lock()
	_, known := m.live[dev.ID]
	m.live[dev.ID] = dev
	m.resetTimerLocked(dev.ID)
	m.mu.Unlock()

	if !known {
		m.logger.Info("device: connected", "device", dev)
		m.registry.emit(EventConnected, dev)
	}
	m.registry.emit(EventAnnounced, dev)
}

func (m *Manager) resetTimerLocked(id ID) {
	if t, ok := m.timers[id]; ok {
		t.Stop()
	}
	m.timers[id] = time.AfterFunc(m.timeout, func() { m.expire(id) })
}

func (m *Manager) expire(id ID) {
	m.mu.Lock()
	dev, ok := m.live[id]
	if ok {
		delete(m.live, id)
		delete(m.timers, id)
	}
	m.mu.Unlock()

	if ok {
		m.logger.Info("device: disconnected", "device", dev)
		m.registry.emit(EventDisconnected, dev)
	}
}

// GetDeviceEnsured resolves immediately if id is already live, otherwise
// waits up to timeout for a matching connect event. It never blocks past
// timeout and never panics/errors on expiry — a timeout simply yields
// (Device{}, false) (spec.md §4.2, §7 "Timeout").
func (m *Manager) GetDeviceEnsured(id ID, timeout time.Duration) (Device, bool) {
	if dev, ok := m.Device(id); ok {
		return dev, true
	}

	found := make(chan Device, 1)
	listenerID := m.On(EventConnected, func(dev Device) {
		if dev.ID == id {
			select {
			case found <- dev:
			default:
			}
		}
	})
	defer m.Off(listenerID)

	// A connect may have landed between the initial check and registering
	// the listener; check once more before waiting.
	if dev, ok := m.Device(id); ok {
		return dev, true
	}

	select {
	case dev := <-found:
		return dev, true
	case <-time.After(timeout):
		return Device{}, false
	}
}
