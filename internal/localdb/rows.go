package localdb

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// Track is a hydrated TRACKS row (spec.md §4.6).
type Track struct {
	ID          uint32
	ArtistID    uint32
	AlbumID     uint32
	GenreID     uint32
	LabelID     uint32
	KeyID       uint32
	ArtworkID   uint32
	Tempo       float64 // scaled by 1/100 on load
	Duration    uint32  // seconds
	Rating      uint8
	Title       string
	AnalyzePath string // trailing .DAT stripped
	FileName    string
	DateAdded   string // "unset" if unparseable
}

// NamedRow is the shape shared by ARTISTS, GENRES, ALBUMS, LABELS, KEYS,
// and COLORS: a numeric id plus a single DeviceSQL string name.
type NamedRow struct {
	ID   uint32
	Name string
}

// Artwork is a hydrated ARTWORK row: an id and its on-slot image path.
type Artwork struct {
	ID   uint32
	Path string
}

// PlaylistNode is a hydrated PLAYLIST_TREE row.
type PlaylistNode struct {
	ID       uint32
	ParentID uint32
	SortOrder uint32
	IsFolder bool
	Name     string
}

// PlaylistEntry is a hydrated PLAYLIST_ENTRIES row.
type PlaylistEntry struct {
	PlaylistID uint32
	TrackID    uint32
	EntryIndex uint32
}

const trackFixedFieldsLen = 0x5C

// decodeTrackRow interprets a TRACKS row's fixed-width numeric header
// followed by a table of string-field offsets (spec.md §4.6). The offset
// table layout mirrors the structural shape of the other record types:
// fixed numeric fields, then repeated [stringFieldCount]uint16 offsets
// relative to the start of the row.
func decodeTrackRow(f []byte) (Track, error) {
	if len(f) < trackFixedFieldsLen {
		return Track{}, fmt.Errorf("localdb: track row too short (%d bytes)", len(f))
	}
	t := Track{
		ID:        binary.LittleEndian.Uint32(f[0x04:0x08]),
		ArtistID:  binary.LittleEndian.Uint32(f[0x0C:0x10]),
		AlbumID:   binary.LittleEndian.Uint32(f[0x10:0x14]),
		GenreID:   binary.LittleEndian.Uint32(f[0x14:0x18]),
		LabelID:   binary.LittleEndian.Uint32(f[0x18:0x1C]),
		KeyID:     binary.LittleEndian.Uint32(f[0x1C:0x20]),
		ArtworkID: binary.LittleEndian.Uint32(f[0x20:0x24]),
		Duration:  binary.LittleEndian.Uint32(f[0x24:0x28]),
		Rating:    f[0x28],
		Tempo:     float64(binary.LittleEndian.Uint32(f[0x2C:0x30])) / 100,
	}

	const stringOffsetCount = 4 // title, filename, analyzePath, dateAdded
	offTableStart := 0x40
	if offTableStart+stringOffsetCount*2 > len(f) {
		return t, fmt.Errorf("localdb: track row missing string offset table")
	}
	offs := make([]int, stringOffsetCount)
	for i := range offs {
		offs[i] = int(binary.LittleEndian.Uint16(f[offTableStart+i*2 : offTableStart+i*2+2]))
	}

	title, _, err := deviceSQLString(sliceFrom(f, offs[0]))
	if err == nil {
		t.Title = title
	}
	fileName, _, err := deviceSQLString(sliceFrom(f, offs[1]))
	if err == nil {
		t.FileName = fileName
	}
	analyzePath, _, err := deviceSQLString(sliceFrom(f, offs[2]))
	if err == nil {
		t.AnalyzePath = strings.TrimSuffix(analyzePath, ".DAT")
	}
	dateAdded, _, err := deviceSQLString(sliceFrom(f, offs[3]))
	if err != nil || dateAdded == "" {
		t.DateAdded = "unset"
	} else {
		t.DateAdded = dateAdded
	}

	return t, nil
}

func sliceFrom(f []byte, off int) []byte {
	if off < 0 || off >= len(f) {
		return nil
	}
	return f[off:]
}

// decodeNamedRow interprets ARTISTS/GENRES/ALBUMS/LABELS/KEYS/COLORS rows:
// a 4-byte id followed by a single DeviceSQL string name field.
func decodeNamedRow(f []byte) (NamedRow, error) {
	if len(f) < 6 {
		return NamedRow{}, fmt.Errorf("localdb: named row too short (%d bytes)", len(f))
	}
	id := binary.LittleEndian.Uint32(f[0:4])
	name, _, err := deviceSQLString(f[4:])
	if err != nil {
		return NamedRow{}, fmt.Errorf("localdb: decode name: %w", err)
	}
	return NamedRow{ID: id, Name: name}, nil
}

func decodeArtworkRow(f []byte) (Artwork, error) {
	if len(f) < 6 {
		return Artwork{}, fmt.Errorf("localdb: artwork row too short (%d bytes)", len(f))
	}
	id := binary.LittleEndian.Uint32(f[0:4])
	path, _, err := deviceSQLString(f[4:])
	if err != nil {
		return Artwork{}, fmt.Errorf("localdb: decode artwork path: %w", err)
	}
	return Artwork{ID: id, Path: path}, nil
}

func decodePlaylistNodeRow(f []byte) (PlaylistNode, error) {
	if len(f) < 16 {
		return PlaylistNode{}, fmt.Errorf("localdb: playlist node row too short (%d bytes)", len(f))
	}
	n := PlaylistNode{
		ParentID:  binary.LittleEndian.Uint32(f[0:4]),
		SortOrder: binary.LittleEndian.Uint32(f[4:8]),
		ID:        binary.LittleEndian.Uint32(f[8:12]),
		IsFolder:  binary.LittleEndian.Uint32(f[12:16]) != 0,
	}
	name, _, err := deviceSQLString(f[16:])
	if err == nil {
		n.Name = name
	}
	return n, nil
}

func decodePlaylistEntryRow(f []byte) (PlaylistEntry, error) {
	if len(f) < 12 {
		return PlaylistEntry{}, fmt.Errorf("localdb: playlist entry row too short (%d bytes)", len(f))
	}
	return PlaylistEntry{
		EntryIndex: binary.LittleEndian.Uint32(f[0:4]),
		TrackID:    binary.LittleEndian.Uint32(f[4:8]),
		PlaylistID: binary.LittleEndian.Uint32(f[8:12]),
	}, nil
}
