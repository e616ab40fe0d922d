package device

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestParseAnnounceKnownOffsets(t *testing.T) {
	dev := testDevice(2)
	packet := BuildAnnounce(dev)

	assert.Equal(t, ProlinkHeader, packet[0:10])
	assert.Equal(t, byte(0x06), packet[0x0A])
	assert.Equal(t, byte(dev.ID), packet[0x24])
	assert.Equal(t, byte(dev.Type), packet[0x34])

	got, err := ParseAnnounce(packet)
	require.NoError(t, err)
	assert.Equal(t, dev.ID, got.ID)
	assert.Equal(t, dev.Type, got.Type)
	assert.Equal(t, dev.Name, got.Name)
	assert.True(t, dev.IP.Equal(got.IP))
}

// TestAnnounceRoundtripProperty exercises invariant #1 from spec.md §8 for
// the announce packet specifically.
func TestAnnounceRoundtripProperty(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		id := ID(rapid.IntRange(0, 255).Draw(rt, "id"))
		typ := Type(rapid.SampledFrom([]uint8{1, 3, 4}).Draw(rt, "type"))
		name := rapid.StringN(0, 19, 19).Draw(rt, "name")
		ip := net.IPv4(
			byte(rapid.IntRange(1, 254).Draw(rt, "ip0")),
			byte(rapid.IntRange(0, 255).Draw(rt, "ip1")),
			byte(rapid.IntRange(0, 255).Draw(rt, "ip2")),
			byte(rapid.IntRange(1, 254).Draw(rt, "ip3")),
		)

		dev := Device{Name: name, ID: id, Type: typ, MAC: net.HardwareAddr{1, 2, 3, 4, 5, 6}, IP: ip}
		packet := BuildAnnounce(dev)

		got, err := ParseAnnounce(packet)
		require.NoError(t, err)
		assert.Equal(t, dev.ID, got.ID)
		assert.Equal(t, dev.Type, got.Type)
		assert.True(t, dev.IP.Equal(got.IP))
	})
}

func TestParseAnnounceBadMagic(t *testing.T) {
	packet := BuildAnnounce(testDevice(1))
	packet[0] = 0xFF
	_, err := ParseAnnounce(packet)
	assert.Error(t, err)
}
