package status

import (
	"testing"

	"github.com/cartomix/prolink/internal/device"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func buildStatusPacket(deviceID device.ID, playState byte, flags byte, beatsUntilCue uint16) []byte {
	packet := make([]byte, statusMinLen)
	copy(packet[0:10], device.ProlinkHeader)
	packet[offSubtype] = subtypeStatus
	packet[offDeviceID] = byte(deviceID)
	packet[offPlayState] = playState
	packet[offFlags] = flags
	packet[offBeatsUntilCue] = byte(beatsUntilCue >> 8)
	packet[offBeatsUntilCue+1] = byte(beatsUntilCue)
	packet[offTrackBPM] = 0x2E
	packet[offTrackBPM+1] = 0xE0 // 12000 -> 120.00 BPM
	return packet
}

func TestParseStatusBasicFields(t *testing.T) {
	packet := buildStatusPacket(2, 0x03, flagOnAir|flagMaster, 16)

	got, err := ParseStatus(packet)
	require.NoError(t, err)
	assert.EqualValues(t, 2, got.DeviceID)
	assert.Equal(t, PlayStatePlaying, got.PlayState)
	assert.True(t, got.IsOnAir)
	assert.True(t, got.IsMaster)
	assert.False(t, got.IsSync)
	require.True(t, got.BeatsUntilCue.Valid)
	assert.EqualValues(t, 16, got.BeatsUntilCue.Value)

	bpm, ok := got.BPM()
	require.True(t, ok)
	assert.InDelta(t, 120.0, bpm, 0.01)
}

// TestParseStatusClearsBeatsUntilCueWhenNotPlaying covers the invariant
// documented in ParseStatus: a non-playing deck reports no next cue.
func TestParseStatusClearsBeatsUntilCueWhenNotPlaying(t *testing.T) {
	packet := buildStatusPacket(2, 0x05, 0, 16) // paused
	got, err := ParseStatus(packet)
	require.NoError(t, err)
	assert.Equal(t, PlayStatePaused, got.PlayState)
	assert.False(t, got.BeatsUntilCue.Valid)
}

func TestParseStatusTooShort(t *testing.T) {
	_, err := ParseStatus(make([]byte, 10))
	assert.Error(t, err)
}

func TestParseStatusBadMagic(t *testing.T) {
	packet := buildStatusPacket(1, 0x03, 0, 0xFFFF)
	packet[0] = 0x00
	_, err := ParseStatus(packet)
	assert.Error(t, err)
}

// TestDecodePitchFixedPoints covers spec.md §8 invariant #2: 0 at center,
// -100 at the low end, +100 at the high end.
func TestDecodePitchFixedPoints(t *testing.T) {
	assert.InDelta(t, 0.0, DecodePitch(0x100000), 0.0001)
	assert.InDelta(t, -100.0, DecodePitch(0x000000), 0.0001)
	assert.InDelta(t, 100.0, DecodePitch(0x200000), 0.0001)
}

// TestDecodePitchMonotonic covers the other half of invariant #2: pitch
// decodes monotonically with the raw encoding.
func TestDecodePitchMonotonic(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		a := rapid.Uint32Range(0, 0x1FFFFF).Draw(rt, "a")
		b := rapid.Uint32Range(0, 0x1FFFFF).Draw(rt, "b")
		if a > b {
			a, b = b, a
		}
		assert.LessOrEqual(t, DecodePitch(a), DecodePitch(b))
	})
}

func TestBuildMediaSlotQueryHeaderProperty(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		hostID := device.ID(rapid.IntRange(0, 255).Draw(rt, "hostID"))
		target := device.ID(rapid.IntRange(0, 255).Draw(rt, "target"))
		slot := SlotTag(rapid.SampledFrom([]uint8{0, 1, 2, 3, 4}).Draw(rt, "slot"))

		packet := BuildMediaSlotQuery("vcdj-test", hostID, []byte{10, 0, 0, 7}, target, slot)
		assert.Equal(t, device.ProlinkHeader, packet[0:10])
		assert.Equal(t, byte(mediaQuerySubtype), packet[10])
	})
}

func TestParseMediaSlotResponse(t *testing.T) {
	packet := make([]byte, mediaResponseMinLen)
	copy(packet[0:10], device.ProlinkHeader)
	packet[mqOffDeviceID] = 3
	packet[mqOffSlot] = byte(SlotUSB)
	copy(packet[mqOffName:], []byte("DENON SSD"))
	copy(packet[mqOffCreatedDate:], []byte("2024-01-02"))
	packet[mqOffTrackCount] = 0x00
	packet[mqOffTrackCount+1] = 0x2A // 42
	packet[mqOffTracksType] = byte(TrackTypeRB)
	packet[mqOffHasSettings] = 1
	packet[mqOffPlaylists+1] = 0x05
	for i, b := range []byte{0, 0, 0, 0, 0x3B, 0x9A, 0xCA, 0x00} { // 1_000_000_000
		packet[mqOffTotalBytes+i] = b
	}

	got, err := ParseMediaSlotResponse(packet)
	require.NoError(t, err)
	assert.EqualValues(t, 3, got.DeviceID)
	assert.Equal(t, SlotUSB, got.Slot)
	assert.Equal(t, "DENON SSD", got.Name)
	assert.Equal(t, "2024-01-02", got.CreatedDate)
	assert.EqualValues(t, 42, got.TrackCount)
	assert.Equal(t, TrackTypeRB, got.TracksType)
	assert.True(t, got.HasSettings)
	assert.EqualValues(t, 5, got.PlaylistCount)
	assert.EqualValues(t, 1_000_000_000, got.TotalBytes)
}
