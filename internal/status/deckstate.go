// Package status parses per-deck status datagrams (port 50002) into
// structured DeckState records, and answers synchronous media-slot queries
// over the same socket (spec.md §4.4, §5 "status socket feeds both status
// emitter and media-slot query").
package status

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/cartomix/prolink/internal/device"
)

// PlayState enumerates a deck's transport state (spec.md §3).
type PlayState uint8

const (
	PlayStateEmpty PlayState = iota
	PlayStateLoading
	PlayStatePlaying
	PlayStateLooping
	PlayStatePaused
	PlayStateCued
	PlayStateCuing
	PlayStatePlatterHeld
	PlayStateSearching
	PlayStateSpunDown
	PlayStateEnded
)

func (p PlayState) String() string {
	switch p {
	case PlayStateEmpty:
		return "Empty"
	case PlayStateLoading:
		return "Loading"
	case PlayStatePlaying:
		return "Playing"
	case PlayStateLooping:
		return "Looping"
	case PlayStatePaused:
		return "Paused"
	case PlayStateCued:
		return "Cued"
	case PlayStateCuing:
		return "Cuing"
	case PlayStatePlatterHeld:
		return "PlatterHeld"
	case PlayStateSearching:
		return "Searching"
	case PlayStateSpunDown:
		return "SpunDown"
	case PlayStateEnded:
		return "Ended"
	default:
		return fmt.Sprintf("PlayState(%d)", uint8(p))
	}
}

// IsPlaying reports whether p represents audio actually moving forward.
func (p PlayState) IsPlaying() bool {
	return p == PlayStatePlaying || p == PlayStateLooping
}

// OptionalUint16 carries an unsigned 16-bit value that may be absent on the
// wire. spec.md §9 leaves the "no next cue" sentinel for beatsUntilCue as an
// open question; we resolve it by exposing an explicit optional rather than
// a magic number, and apply the same shape to trackBPM.
type OptionalUint16 struct {
	Value uint16
	Valid bool
}

// absentU16 is the wire sentinel meaning "no value" for the fields this
// module resolves as OptionalUint16.
const absentU16 = 0xFFFF

func optionalFromWire(raw uint16) OptionalUint16 {
	if raw == absentU16 {
		return OptionalUint16{}
	}
	return OptionalUint16{Value: raw, Valid: true}
}

// DeckState is a snapshot extracted from one status datagram (spec.md §3).
type DeckState struct {
	DeviceID device.ID
	TrackID  uint32

	SourceDeviceID device.ID
	SourceSlot     uint8
	SourceType     uint8

	PlayState PlayState

	IsOnAir         bool
	IsSync          bool
	IsMaster        bool
	IsEmergencyMode bool

	TrackBPM OptionalUint16 // hundredths of a BPM on the wire; Value is BPM*100

	SliderPitch    float64 // percent, -100..100
	EffectivePitch float64 // percent, -100..100

	BeatInMeasure uint8 // 1..4, or 0 if unknown
	BeatsUntilCue OptionalUint16
	Beat          uint32

	PacketNum uint32
}

// BPM returns the track's tempo as a plain float, or (0, false) if unknown.
func (d DeckState) BPM() (float64, bool) {
	if !d.TrackBPM.Valid {
		return 0, false
	}
	return float64(d.TrackBPM.Value) / 100.0, true
}

// Wire layout of the status packet this module decodes. The distilled spec
// names the fields DeckState carries (spec.md §3/§4.4) and the encoding of
// the pitch fields specifically, but does not give a byte-offset table for
// the rest of the packet (unlike the announce and media-slot packets, which
// it does). The offsets below are this implementation's resolution of that
// gap: a self-consistent status layout sized to the spec's documented
// ">= 0xFF bytes" minimum.
const (
	statusMinLen = 0xFF

	offSubtype        = 0x0A
	offDeviceID       = 0x21
	offTrackID        = 0x2C
	offSourceDeviceID = 0x28
	offSourceSlot     = 0x29
	offSourceType     = 0x2A
	offPlayState      = 0x7B
	offFlags          = 0x89
	offTrackBPM       = 0x92
	offSliderPitch    = 0x8D
	offEffectivePitch = 0x99
	offBeat           = 0xA0
	offBeatsUntilCue  = 0xA4
	offBeatInMeasure  = 0xA6
	offPacketNum      = 0xC8

	subtypeStatus = 0x0A
)

const (
	flagOnAir         = 1 << 0
	flagSync          = 1 << 1
	flagMaster        = 1 << 2
	flagEmergencyMode = 1 << 3
)

// wirePlayState maps the single status play-mode byte to PlayState.
var wirePlayState = map[byte]PlayState{
	0x00: PlayStateEmpty,
	0x02: PlayStateLoading,
	0x03: PlayStatePlaying,
	0x04: PlayStateLooping,
	0x05: PlayStatePaused,
	0x06: PlayStateCued,
	0x07: PlayStateCuing,
	0x08: PlayStatePlatterHeld,
	0x09: PlayStateSearching,
	0x0A: PlayStateSpunDown,
	0x11: PlayStateEnded,
}

// ParseStatus decodes a status datagram into a DeckState. Packets shorter
// than the documented minimum (rekordbox sends short ones) are rejected,
// not an error the caller need surface — see spec.md §4.4 "Smaller packets
// are ignored."
func ParseStatus(packet []byte) (DeckState, error) {
	if len(packet) < statusMinLen {
		return DeckState{}, fmt.Errorf("status: packet too short (%d bytes)", len(packet))
	}
	if string(packet[0:10]) != string(device.ProlinkHeader) {
		return DeckState{}, fmt.Errorf("status: bad magic header")
	}
	if packet[offSubtype] != subtypeStatus {
		return DeckState{}, fmt.Errorf("status: sub-type %#02x is not a status packet", packet[offSubtype])
	}

	flags := packet[offFlags]
	state, ok := wirePlayState[packet[offPlayState]]
	if !ok {
		state = PlayStateEmpty
	}

	beatsUntilCue := optionalFromWire(binary.BigEndian.Uint16(packet[offBeatsUntilCue:]))
	if !state.IsPlaying() {
		// spec.md §3 invariant: a non-playing state clears beatsUntilCue to
		// "unknown".
		beatsUntilCue = OptionalUint16{}
	}

	d := DeckState{
		DeviceID:        device.ID(packet[offDeviceID]),
		TrackID:         binary.BigEndian.Uint32(packet[offTrackID:]),
		SourceDeviceID:  device.ID(packet[offSourceDeviceID]),
		SourceSlot:      packet[offSourceSlot],
		SourceType:      packet[offSourceType],
		PlayState:       state,
		IsOnAir:         flags&flagOnAir != 0,
		IsSync:          flags&flagSync != 0,
		IsMaster:        flags&flagMaster != 0,
		IsEmergencyMode: flags&flagEmergencyMode != 0,
		TrackBPM:        optionalFromWire(binary.BigEndian.Uint16(packet[offTrackBPM:])),
		SliderPitch:     DecodePitch(read24(packet[offSliderPitch:])),
		EffectivePitch:  DecodePitch(read24(packet[offEffectivePitch:])),
		BeatInMeasure:   packet[offBeatInMeasure],
		BeatsUntilCue:   beatsUntilCue,
		Beat:            binary.BigEndian.Uint32(packet[offBeat:]),
		PacketNum:       binary.BigEndian.Uint32(packet[offPacketNum:]),
	}

	return d, nil
}

func read24(b []byte) uint32 {
	return uint32(b[0])<<16 | uint32(b[1])<<8 | uint32(b[2])
}

// pitchCenter is the 24-bit encoding of 0% pitch (spec.md §4.4, §8 invariant
// #2).
const pitchCenter = 0x100000

// DecodePitch converts a 24-bit signed-about-0x100000 pitch encoding into a
// percentage, rounded to 2 decimals (spec.md §4.4).
func DecodePitch(raw uint32) float64 {
	v := (float64(int64(raw)) - pitchCenter) / pitchCenter * 100
	return math.Round(v*100) / 100
}
