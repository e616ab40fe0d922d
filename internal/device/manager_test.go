package device

import (
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDevice(id ID) Device {
	return Device{
		Name: "CDJ-2000nexus",
		ID:   id,
		Type: TypeCDJ,
		MAC:  net.HardwareAddr{0x01, 0x02, 0x03, 0x04, 0x05, 0x06},
		IP:   net.ParseIP("10.0.0.207").To4(),
	}
}

// TestDeviceLifecycle exercises scenario S1 from spec.md §8.
func TestDeviceLifecycle(t *testing.T) {
	m := NewManager("vcdj-test", nil)
	m.Reconfigure(100 * time.Millisecond)

	var connected, announced, disconnected atomic.Int32
	m.On(EventConnected, func(Device) { connected.Add(1) })
	m.On(EventAnnounced, func(Device) { announced.Add(1) })
	m.On(EventDisconnected, func(Device) { disconnected.Add(1) })

	packet := BuildAnnounce(testDevice(2))
	m.HandleAnnounce(packet)

	require.Eventually(t, func() bool { return len(m.Devices()) == 1 }, time.Second, time.Millisecond)
	assert.EqualValues(t, 1, connected.Load())
	assert.EqualValues(t, 1, announced.Load())

	m.HandleAnnounce(packet)
	assert.EqualValues(t, 1, connected.Load())
	assert.EqualValues(t, 2, announced.Load())

	require.Eventually(t, func() bool { return len(m.Devices()) == 0 }, time.Second, 5*time.Millisecond)
	assert.EqualValues(t, 1, disconnected.Load())
}

func TestHandleAnnounceIgnoresSelf(t *testing.T) {
	m := NewManager("My VCDJ", nil)
	packet := BuildAnnounce(Device{Name: "My VCDJ", ID: 7, Type: TypeCDJ, IP: net.IPv4(10, 0, 0, 1)})
	m.HandleAnnounce(packet)
	assert.Empty(t, m.Devices())
}

func TestHandleAnnounceDropsMalformed(t *testing.T) {
	m := NewManager("vcdj", nil)
	m.HandleAnnounce([]byte{0x00, 0x01, 0x02})
	assert.Empty(t, m.Devices())
}

func TestGetDeviceEnsuredImmediate(t *testing.T) {
	m := NewManager("vcdj", nil)
	m.HandleAnnounce(BuildAnnounce(testDevice(3)))

	dev, ok := m.GetDeviceEnsured(3, time.Second)
	require.True(t, ok)
	assert.EqualValues(t, 3, dev.ID)
}

func TestGetDeviceEnsuredWaitsThenTimesOut(t *testing.T) {
	m := NewManager("vcdj", nil)
	dev, ok := m.GetDeviceEnsured(5, 20*time.Millisecond)
	assert.False(t, ok)
	assert.Equal(t, Device{}, dev)
}

func TestGetDeviceEnsuredResolvesOnLateConnect(t *testing.T) {
	m := NewManager("vcdj", nil)

	go func() {
		time.Sleep(10 * time.Millisecond)
		m.HandleAnnounce(BuildAnnounce(testDevice(4)))
	}()

	dev, ok := m.GetDeviceEnsured(4, time.Second)
	require.True(t, ok)
	assert.EqualValues(t, 4, dev.ID)
}
