package localdb

import (
	"encoding/binary"
	"fmt"
)

// Section tags recognized inside an analyze_*.DAT/.EXT file (spec.md §4.6).
// Unrecognized tags are skipped; only BEAT_GRID and CUES are hydrated.
const (
	tagBeatGrid = "PQTZ"
	tagCues     = "PCOB"
)

// AnlzBeat is one beat-grid entry hydrated from an analysis file.
type AnlzBeat struct {
	Number       uint16
	Tempo        float64 // BPM, scaled by 1/100 on load
	OffsetMillis uint32
}

// AnlzCueKind mirrors the remote-protocol tagged sum, but offsets here are
// already in milliseconds: no BPM conversion applies (spec.md §4.6).
type AnlzCueKind int

const (
	AnlzCueKindCuePoint AnlzCueKind = iota
	AnlzCueKindLoop
)

// AnlzCue is one cue or loop entry hydrated from an analysis file.
type AnlzCue struct {
	Kind         AnlzCueKind
	OffsetMillis uint32
	LengthMillis uint32
	HotCueNumber uint8 // 0 means not assigned to a hot cue button
}

// Analysis holds everything HydrateAnlz can populate for one track.
type Analysis struct {
	BeatGrid    []AnlzBeat
	CueAndLoops []AnlzCue
}

// sectionHeaderLen is the fixed 4-byte-tag + two 4-byte-length preamble
// every tagged section in the container starts with.
const sectionHeaderLen = 12

// HydrateAnlz iterates the section list of a decoded analyze_*.DAT/.EXT
// payload and routes recognized sections into an Analysis (spec.md §4.6).
func HydrateAnlz(raw []byte) (Analysis, error) {
	var out Analysis
	pos := 0
	for pos+sectionHeaderLen <= len(raw) {
		tag := string(raw[pos : pos+4])
		headerLen := binary.BigEndian.Uint32(raw[pos+4 : pos+8])
		sectionLen := binary.BigEndian.Uint32(raw[pos+8 : pos+12])
		if sectionLen < sectionHeaderLen || int(sectionLen) > len(raw)-pos {
			return out, fmt.Errorf("localdb: section %q has invalid length %d", tag, sectionLen)
		}
		body := raw[pos+int(headerLen) : pos+int(sectionLen)]

		switch tag {
		case tagBeatGrid:
			beats, err := decodeBeatGridSection(body)
			if err != nil {
				return out, fmt.Errorf("localdb: decode %s: %w", tag, err)
			}
			out.BeatGrid = beats
		case tagCues:
			cues, err := decodeCuesSection(body)
			if err != nil {
				return out, fmt.Errorf("localdb: decode %s: %w", tag, err)
			}
			out.CueAndLoops = cues
		}

		pos += int(sectionLen)
	}
	return out, nil
}

const beatGridEntrySize = 8

func decodeBeatGridSection(body []byte) ([]AnlzBeat, error) {
	const beatGridBodyPreamble = 8 // two reserved u32 fields before the entries
	if len(body) < beatGridBodyPreamble {
		return nil, nil
	}
	entries := body[beatGridBodyPreamble:]

	var out []AnlzBeat
	for off := 0; off+beatGridEntrySize <= len(entries); off += beatGridEntrySize {
		e := entries[off : off+beatGridEntrySize]
		out = append(out, AnlzBeat{
			Number:       binary.BigEndian.Uint16(e[0:2]),
			Tempo:        float64(binary.BigEndian.Uint16(e[2:4])) / 100,
			OffsetMillis: binary.BigEndian.Uint32(e[4:8]),
		})
	}
	return out, nil
}

const cueEntrySize = 16

func decodeCuesSection(body []byte) ([]AnlzCue, error) {
	const cuesBodyPreamble = 4 // entry count header
	if len(body) < cuesBodyPreamble {
		return nil, nil
	}
	entries := body[cuesBodyPreamble:]

	var out []AnlzCue
	for off := 0; off+cueEntrySize <= len(entries); off += cueEntrySize {
		e := entries[off : off+cueEntrySize]
		kind := AnlzCueKindCuePoint
		if e[0] != 0 {
			kind = AnlzCueKindLoop
		}
		out = append(out, AnlzCue{
			Kind:         kind,
			HotCueNumber: e[1],
			OffsetMillis: binary.BigEndian.Uint32(e[4:8]),
			LengthMillis: binary.BigEndian.Uint32(e[8:12]),
		})
	}
	return out, nil
}
