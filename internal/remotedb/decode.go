package remotedb

import "encoding/binary"

// BeatGridEntry is one entry of an ordered beat grid (spec.md §3).
type BeatGridEntry struct {
	OffsetMillis uint32
	CountInBar   uint8 // 1..4
	BPM          float64
}

const beatGridDataOffset = 0x14
const beatGridEntrySize = 16

// DecodeBeatGrid decodes the raw BeatGrid response payload (spec.md §4.5).
func DecodeBeatGrid(raw []byte) []BeatGridEntry {
	if len(raw) <= beatGridDataOffset {
		return nil
	}
	data := raw[beatGridDataOffset:]

	var out []BeatGridEntry
	for off := 0; off+beatGridEntrySize <= len(data); off += beatGridEntrySize {
		entry := data[off : off+beatGridEntrySize]
		out = append(out, BeatGridEntry{
			CountInBar:   entry[0],
			OffsetMillis: binary.LittleEndian.Uint32(entry[1:5]),
		})
	}
	return out
}

// WaveformPreviewSegment is one of the fixed 400 segments of a waveform
// preview (spec.md §3, §4.5).
type WaveformPreviewSegment struct {
	Height    uint8 // 0..31
	Whiteness float64
}

const waveformPreviewSegments = 400

// DecodeWaveformPreview decodes the fixed 400-segment, 2-bytes-per-segment
// waveform preview payload (spec.md §4.5).
func DecodeWaveformPreview(raw []byte) []WaveformPreviewSegment {
	out := make([]WaveformPreviewSegment, 0, waveformPreviewSegments)
	for i := 0; i+1 < len(raw) && len(out) < waveformPreviewSegments; i += 2 {
		out = append(out, WaveformPreviewSegment{
			Height:    raw[i],
			Whiteness: float64(raw[i+1]) / 7,
		})
	}
	return out
}

// WaveformDetailedSegment is one per-second segment of a detailed waveform
// (spec.md §3, §4.5).
type WaveformDetailedSegment struct {
	Height    uint8
	Whiteness float64
}

// DecodeWaveformDetailed decodes the one-byte-per-segment detailed waveform
// payload (spec.md §4.5).
func DecodeWaveformDetailed(raw []byte) []WaveformDetailedSegment {
	out := make([]WaveformDetailedSegment, 0, len(raw))
	for _, b := range raw {
		out = append(out, WaveformDetailedSegment{
			Height:    b & 0b00011111,
			Whiteness: float64(b>>5) / 7,
		})
	}
	return out
}

// WaveformHDSegment is one color segment of an HD waveform (spec.md §3).
type WaveformHDSegment struct {
	Red, Green, Blue float64
	Height           uint8 // 0..31
}

const waveformHDDataOffset = 0x34

// DecodeWaveformHD decodes the HD waveform payload (spec.md §4.5, §8
// scenario S5).
func DecodeWaveformHD(raw []byte) []WaveformHDSegment {
	if len(raw) <= waveformHDDataOffset {
		return nil
	}
	data := raw[waveformHDDataOffset:]

	out := make([]WaveformHDSegment, 0, len(data)/2)
	for i := 0; i+1 < len(data); i += 2 {
		v := binary.LittleEndian.Uint16(data[i : i+2])
		out = append(out, WaveformHDSegment{
			Red:    float64((v>>13)&0x7) / 7,
			Green:  float64((v>>10)&0x7) / 7,
			Blue:   float64((v>>7)&0x7) / 7,
			Height: uint8((v >> 2) & 0x1F),
		})
	}
	return out
}

// CueAndLoop is a tagged sum of the four cue/loop shapes a track can carry
// (spec.md §3).
type CueAndLoop struct {
	Kind   CueKind
	Offset uint32
	Length uint32
	Button uint8 // A..H, encoded 0..7
}

type CueKind int

const (
	CueKindNone CueKind = iota
	CueKindCuePoint
	CueKindLoop
	CueKindHotCue
	CueKindHotLoop
)

// NewCueAndLoop applies the decision table from spec.md §3: button set ->
// hot_loop if isLoop else hot_cue; else loop if isLoop, cue_point if isCue,
// else none.
func NewCueAndLoop(isCue, isLoop bool, hasButton bool, button uint8, offset, length uint32) CueAndLoop {
	switch {
	case hasButton && isLoop:
		return CueAndLoop{Kind: CueKindHotLoop, Offset: offset, Length: length, Button: button}
	case hasButton:
		return CueAndLoop{Kind: CueKindHotCue, Offset: offset, Button: button}
	case isLoop:
		return CueAndLoop{Kind: CueKindLoop, Offset: offset, Length: length}
	case isCue:
		return CueAndLoop{Kind: CueKindCuePoint, Offset: offset}
	default:
		return CueAndLoop{Kind: CueKindNone}
	}
}
