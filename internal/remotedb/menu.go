package remotedb

import (
	"fmt"

	"github.com/cartomix/prolink/internal/device"
	"github.com/cartomix/prolink/internal/wire"
)

const pageSize = 64

var menuItemArgKinds = []ArgKind{
	ArgKindU32, ArgKindU32, ArgKindU32, ArgKindString, ArgKindU32, ArgKindString,
	ArgKindU32, ArgKindU32, ArgKindU32, ArgKindU32, ArgKindU32, ArgKindU32,
}

// ItemType identifies the semantic shape of a raw MenuItem (spec.md §4.5).
type ItemType uint32

const (
	ItemTypeTrack  ItemType = 2
	ItemTypeArtist ItemType = 4
	ItemTypeAlbum  ItemType = 6
	ItemTypeGenre  ItemType = 7
	ItemTypeYear   ItemType = 11
	ItemTypeLabel  ItemType = 13
	ItemTypeKey    ItemType = 15
	ItemTypeColor  ItemType = 18
	ItemTypeTempo  ItemType = 19
	ItemTypePath   ItemType = 32
)

// MenuItem is a raw decoded 12-argument menu row before the per-itemType
// transform is applied (spec.md §4.5).
type MenuItem struct {
	ParentID   uint32
	MainID     uint32
	Label1     string
	Label2     string
	ItemType   ItemType
	Flags      uint32
	ArtworkID  uint32
}

func decodeMenuItem(m Message) (MenuItem, error) {
	if len(m.Args) < 9 {
		return MenuItem{}, fmt.Errorf("remotedb: menu item has %d args, need at least 9", len(m.Args))
	}
	return MenuItem{
		ParentID:  m.Args[0].Uint32(),
		MainID:    m.Args[1].Uint32(),
		Label1:    m.Args[3].String(),
		Label2:    m.Args[5].String(),
		ItemType:  ItemType(m.Args[6].Uint32()),
		Flags:     m.Args[7].Uint32(),
		ArtworkID: m.Args[8].Uint32(),
	}, nil
}

// Entry is the semantic value a MenuItem transforms to. Unknown item types
// degrade to only Item being populated and Known=false (spec.md §4.5).
type Entry struct {
	Item  MenuItem
	Known bool

	ID        uint32
	Name      string
	Title     string
	ArtworkID uint32
	Year      int
	BPM       float64
	Path      string
}

// Transform applies the per-itemType semantic extraction spec.md §4.5
// describes. Unknown item types are returned with Known=false so callers
// can record them as a diagnostic rather than fail the whole page.
func Transform(item MenuItem) Entry {
	e := Entry{Item: item, Known: true}
	switch item.ItemType {
	case ItemTypeTrack:
		e.ID = item.MainID
		e.Title = item.Label1
		e.ArtworkID = item.ArtworkID
	case ItemTypeArtist, ItemTypeGenre, ItemTypeKey, ItemTypeLabel, ItemTypeColor, ItemTypeAlbum:
		e.ID = item.MainID
		e.Name = item.Label1
	case ItemTypeYear:
		e.Year = int(item.MainID)
	case ItemTypeTempo:
		e.BPM = float64(item.MainID) / 100
	case ItemTypePath:
		e.Path = item.Label1
	default:
		e.Known = false
	}
	return e
}

// RenderMenu fetches itemsAvailable items in pages of up to 64, yielding
// each decoded Entry in order. The whole multi-page enumeration runs under
// one connection-lock lease, not one lease per page, so a second query on
// the same Connection cannot interleave its response bytes into the middle
// of this enumeration (spec.md §4.5, §9).
func (c *Connection) RenderMenu(hostID device.ID, slot SlotTag, trackType TrackTypeTag, itemsAvailable uint32) ([]Entry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.renderMenuLocked(descriptor(hostID, slot, trackType), itemsAvailable)
}

// renderMenuLocked is RenderMenu's body, assuming c.mu is already held.
func (c *Connection) renderMenuLocked(desc uint32, itemsAvailable uint32) ([]Entry, error) {
	var entries []Entry
	for offset := uint32(0); offset < itemsAvailable; offset += pageSize {
		limit := uint32(pageSize)
		if remaining := itemsAvailable - offset; remaining < limit {
			limit = remaining
		}

		page, err := c.renderPageLocked(desc, offset, limit)
		if err != nil {
			return entries, fmt.Errorf("remotedb: render menu page at offset %d: %w", offset, err)
		}
		entries = append(entries, page...)
	}
	return entries, nil
}

// renderPageLocked fetches one page, assuming c.mu is already held.
func (c *Connection) renderPageLocked(desc uint32, offset, limit uint32) ([]Entry, error) {
	req := Message{
		Type: TypeRenderMenu,
		Args: []wire.Field{
			wire.U32(desc), wire.U32(offset), wire.U32(limit),
			wire.U32(0), wire.U32(limit), wire.U32(0),
		},
	}
	req.TransactionID = c.nextTxID
	c.nextTxID++

	if err := WriteMessage(c.conn, req); err != nil {
		return nil, fmt.Errorf("send RenderMenu: %w", err)
	}

	if _, err := ReadMessage(c.conn, TypeMenuHeader, nil); err != nil {
		return nil, fmt.Errorf("read MenuHeader: %w", err)
	}

	entries := make([]Entry, 0, limit)
	for i := uint32(0); i < limit; i++ {
		m, err := ReadMessage(c.conn, TypeMenuItem, menuItemArgKinds)
		if err != nil {
			return entries, fmt.Errorf("read MenuItem %d: %w", i, err)
		}
		item, err := decodeMenuItem(m)
		if err != nil {
			return entries, err
		}
		entries = append(entries, Transform(item))
	}

	if _, err := ReadMessage(c.conn, TypeMenuFooter, nil); err != nil {
		return entries, fmt.Errorf("read MenuFooter: %w", err)
	}
	return entries, nil
}
