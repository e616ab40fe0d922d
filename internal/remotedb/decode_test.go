package remotedb

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestDecodeWaveformHDFixture covers spec.md §8 scenario S5.
func TestDecodeWaveformHDFixture(t *testing.T) {
	raw := make([]byte, waveformHDDataOffset+2)
	raw[waveformHDDataOffset] = 0x7F
	raw[waveformHDDataOffset+1] = 0xFF // little-endian u16 0xFF7F

	got := DecodeWaveformHD(raw)
	require := assert.New(t)
	require.Len(got, 1)
	seg := got[0]
	require.InDelta(1.0, seg.Red, 0.0001)
	require.InDelta(1.0, seg.Green, 0.0001)
	require.InDelta(6.0/7, seg.Blue, 0.0001) // (0xFF7F>>7)&7 == 6
	require.EqualValues((0xFF7F>>2)&31, seg.Height)
}

func TestDecodeWaveformPreviewFixedSegmentCount(t *testing.T) {
	raw := make([]byte, waveformPreviewSegments*2)
	for i := range raw {
		if i%2 == 0 {
			raw[i] = 10
		} else {
			raw[i] = 7
		}
	}
	got := DecodeWaveformPreview(raw)
	assert.Len(t, got, waveformPreviewSegments)
	assert.EqualValues(t, 10, got[0].Height)
	assert.InDelta(t, 1.0, got[0].Whiteness, 0.0001)
}

func TestDecodeWaveformDetailedSplitsNibbles(t *testing.T) {
	// height=5 (0b00101), whiteness numerator=3 (0b011) -> byte = 0b01100101
	b := byte(0b01100101)
	got := DecodeWaveformDetailed([]byte{b})
	assert.Len(t, got, 1)
	assert.EqualValues(t, 5, got[0].Height)
	assert.InDelta(t, 3.0/7, got[0].Whiteness, 0.0001)
}

func TestDecodeBeatGridSkipsHeader(t *testing.T) {
	raw := make([]byte, beatGridDataOffset+beatGridEntrySize)
	entry := raw[beatGridDataOffset:]
	entry[0] = 1 // countInBar
	entry[1], entry[2], entry[3], entry[4] = 0x00, 0x10, 0x00, 0x00

	got := DecodeBeatGrid(raw)
	assert.Len(t, got, 1)
	assert.EqualValues(t, 1, got[0].CountInBar)
	assert.EqualValues(t, 0x1000, got[0].OffsetMillis)
}

func TestNewCueAndLoopDecisionTable(t *testing.T) {
	cases := []struct {
		name      string
		isCue     bool
		isLoop    bool
		hasButton bool
		want      CueKind
	}{
		{"hot loop", false, true, true, CueKindHotLoop},
		{"hot cue", true, false, true, CueKindHotCue},
		{"loop", false, true, false, CueKindLoop},
		{"cue point", true, false, false, CueKindCuePoint},
		{"none", false, false, false, CueKindNone},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := NewCueAndLoop(c.isCue, c.isLoop, c.hasButton, 3, 1000, 500)
			assert.Equal(t, c.want, got.Kind)
		})
	}
}
