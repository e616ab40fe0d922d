package localdb

import (
	"encoding/binary"
	"fmt"
	"strings"

	"golang.org/x/text/encoding/unicode"
)

// PageType identifies the kind of row a page carries. Unknown page types
// are ignored at hydration time (spec.md §4.6).
type PageType uint32

const (
	PageTracks          PageType = 0
	PageGenres          PageType = 1
	PageArtists         PageType = 2
	PageAlbums          PageType = 3
	PageLabels          PageType = 4
	PageKeys            PageType = 5
	PageColors          PageType = 6
	PagePlaylistTree    PageType = 7
	PagePlaylistEntries PageType = 8
	PageArtwork         PageType = 13
)

const (
	pdbHeaderLen    = 28
	pdbRowGroupRows = 16 // rows per row group, trailing presence bitmask
)

// pdbHeader is the fixed-size file header: a page size, a table count, and
// (ignored here) bookkeeping fields the export tool uses internally.
type pdbHeader struct {
	pageSize  uint32
	numTables uint32
	// next free page / unused sequence fields are not needed for reading.
}

// tablePointer names a page chain's starting page and row type.
type tablePointer struct {
	pageType PageType
	firstPage uint32
	lastPage  uint32
}

// Row is one decoded row from a page, carrying its raw field bytes. Callers
// interpret Fields according to the row's page type.
type Row struct {
	PageType PageType
	Fields   []byte
}

// Decode walks the page/row-group container described in spec.md §4.6 and
// returns every present row, grouped by page type in file order.
func Decode(raw []byte) ([]Row, error) {
	if len(raw) < pdbHeaderLen {
		return nil, fmt.Errorf("localdb: pdb file too short (%d bytes)", len(raw))
	}
	hdr := pdbHeader{
		pageSize:  binary.LittleEndian.Uint32(raw[4:8]),
		numTables: binary.LittleEndian.Uint32(raw[8:12]),
	}
	if hdr.pageSize == 0 {
		return nil, fmt.Errorf("localdb: pdb page size is zero")
	}

	tables := make([]tablePointer, 0, hdr.numTables)
	tableBase := pdbHeaderLen
	for i := uint32(0); i < hdr.numTables; i++ {
		off := tableBase + int(i)*12
		if off+12 > len(raw) {
			return nil, fmt.Errorf("localdb: truncated table pointer %d", i)
		}
		tables = append(tables, tablePointer{
			pageType:  PageType(binary.LittleEndian.Uint32(raw[off : off+4])),
			firstPage: binary.LittleEndian.Uint32(raw[off+4 : off+8]),
			lastPage:  binary.LittleEndian.Uint32(raw[off+8 : off+12]),
		})
	}

	var rows []Row
	for _, tp := range tables {
		page := tp.firstPage
		seen := make(map[uint32]bool)
		for page != 0 && !seen[page] {
			seen[page] = true
			pageRows, next, err := decodePage(raw, hdr.pageSize, page, tp.pageType)
			if err != nil {
				return rows, fmt.Errorf("localdb: page %d (type %d): %w", page, tp.pageType, err)
			}
			rows = append(rows, pageRows...)
			if page == tp.lastPage {
				break
			}
			page = next
		}
	}
	return rows, nil
}

// decodePage decodes one fixed-size page: a small header, then row groups
// of up to 16 rows each with a trailing presence bitmask, and a backward-
// growing row offset table at the end of the page.
func decodePage(raw []byte, pageSize uint32, pageIndex uint32, pageType PageType) ([]Row, uint32, error) {
	start := int(pageIndex) * int(pageSize)
	if start < 0 || start+40 > len(raw) {
		return nil, 0, fmt.Errorf("page offset %d out of range", start)
	}
	page := raw[start:min(start+int(pageSize), len(raw))]

	nextPage := binary.LittleEndian.Uint32(page[4:8])
	numRowsSmall := page[26]
	numRowsLarge := binary.LittleEndian.Uint16(page[22:24])
	numRows := int(numRowsSmall)
	if numRowsLarge > 0 {
		numRows = int(numRowsLarge)
	}
	if numRows == 0 {
		return nil, nextPage, nil
	}

	const rowOffsetTableEntrySize = 2
	rows := make([]Row, 0, numRows)

	numGroups := (numRows + pdbRowGroupRows - 1) / pdbRowGroupRows
	footerEnd := len(page)
	for g := 0; g < numGroups; g++ {
		groupRows := pdbRowGroupRows
		if remaining := numRows - g*pdbRowGroupRows; remaining < groupRows {
			groupRows = remaining
		}
		// presence bitmask (2 bytes) precedes the group's offset entries,
		// which themselves sit immediately before footerEnd.
		entriesLen := groupRows * rowOffsetTableEntrySize
		bitmaskOff := footerEnd - entriesLen - 4
		if bitmaskOff < 40 {
			break
		}
		bitmask := binary.LittleEndian.Uint16(page[bitmaskOff : bitmaskOff+2])

		for i := 0; i < groupRows; i++ {
			present := bitmask&(1<<uint(i)) != 0
			if !present {
				continue
			}
			entryOff := bitmaskOff + 4 + i*rowOffsetTableEntrySize
			if entryOff+2 > len(page) {
				continue
			}
			rowOff := int(binary.LittleEndian.Uint16(page[entryOff : entryOff+2]))
			absOff := 40 + rowOff
			if absOff >= len(page) {
				continue
			}
			rows = append(rows, Row{PageType: pageType, Fields: page[absOff:]})
		}
		footerEnd = bitmaskOff
	}
	return rows, nextPage, nil
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// deviceSQLString decodes a DeviceSQL string field: a short form (1-byte
// length, 7-bit ASCII) when the leading byte is odd, or a long form
// (2-byte length, UTF-16LE) when it's even (rekordbox's on-disk dialect).
func deviceSQLString(data []byte) (string, int, error) {
	if len(data) == 0 {
		return "", 0, fmt.Errorf("localdb: empty string field")
	}
	lead := data[0]
	if lead&0x01 != 0 {
		n := int(lead >> 1)
		if n+1 > len(data) {
			return "", 0, fmt.Errorf("localdb: short string overruns field")
		}
		return strings.TrimRight(string(data[1:1+n]), "\x00"), n + 1, nil
	}

	if len(data) < 4 {
		return "", 0, fmt.Errorf("localdb: truncated long string header")
	}
	n := int(binary.LittleEndian.Uint16(data[2:4]))
	if n+4 > len(data) {
		return "", 0, fmt.Errorf("localdb: long string overruns field")
	}
	dec := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)
	out, err := dec.NewDecoder().Bytes(data[4 : 4+n])
	if err != nil {
		return "", 0, fmt.Errorf("localdb: decode utf16 string: %w", err)
	}
	return strings.TrimRight(string(out), "\x00"), n + 4, nil
}
