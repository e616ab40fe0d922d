package remotedb

import (
	"fmt"

	"github.com/cartomix/prolink/internal/device"
	"github.com/cartomix/prolink/internal/status"
	"github.com/cartomix/prolink/internal/wire"
)

// SlotTag and TrackTypeTag mirror status.SlotTag/status.TrackType on the
// wire, packed into the query descriptor (spec.md §4.5).
type SlotTag = status.SlotTag
type TrackTypeTag = status.TrackType

const menuTarget = 0x01

// descriptor builds the 4-byte query descriptor every query sends as its
// first argument: [hostId, menuTarget=0x01, slotTag, trackTypeTag].
func descriptor(hostID device.ID, slot SlotTag, trackType TrackTypeTag) uint32 {
	return uint32(hostID)<<24 | uint32(menuTarget)<<16 | uint32(slot)<<8 | uint32(trackType)
}

// Success reports the item count a query's paged response will carry.
type Success struct {
	ItemsAvailable uint32
}

func decodeSuccess(m Message) (Success, error) {
	if len(m.Args) < 2 {
		return Success{}, fmt.Errorf("remotedb: success response missing itemsAvailable arg")
	}
	return Success{ItemsAvailable: m.Args[1].Uint32()}, nil
}

// queryMenu sends req, decodes its Success response, and renders the full
// resulting page sequence, all under one connection-lock lease (spec.md
// §4.5: "the same mutex protects query handlers so that a multi-message
// query … is atomic"; §9: "the paged iterator … owns its connection-lock
// lease for the duration of the enumeration"). Locking once here instead
// of once per message is what keeps a second query on the same Connection
// from interleaving its response bytes into this request/success/page/
// footer sequence.
func (c *Connection) queryMenu(req Message, desc uint32) (Success, []Entry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	resp, err := c.transactLocked(req, TypeSuccess, []ArgKind{ArgKindU32, ArgKindU32})
	if err != nil {
		return Success{}, nil, err
	}
	success, err := decodeSuccess(resp)
	if err != nil {
		return Success{}, nil, err
	}
	entries, err := c.renderMenuLocked(desc, success.ItemsAvailable)
	if err != nil {
		return success, nil, err
	}
	return success, entries, nil
}

// GetMetadata requests the paged metadata menu for trackId and renders it
// in full, atomically (spec.md §4.5).
func (c *Connection) GetMetadata(hostID device.ID, slot SlotTag, trackType TrackTypeTag, trackID uint32) (Success, []Entry, error) {
	desc := descriptor(hostID, slot, trackType)
	req := Message{
		Type: TypeGetMetadata,
		Args: []wire.Field{wire.U32(desc), wire.U32(trackID)},
	}
	return c.queryMenu(req, desc)
}

// GetGenericMetadata requests the paged metadata menu for unanalyzed/CD
// media and renders it in full, atomically (spec.md §4.5).
func (c *Connection) GetGenericMetadata(hostID device.ID, slot SlotTag, trackType TrackTypeTag, trackID uint32) (Success, []Entry, error) {
	desc := descriptor(hostID, slot, trackType)
	req := Message{
		Type: TypeGetGenericMetadata,
		Args: []wire.Field{wire.U32(desc), wire.U32(trackID)},
	}
	return c.queryMenu(req, desc)
}

// GetTrackInfo requests the paged path/metadata menu for trackId and
// renders it in full, atomically (spec.md §4.5).
func (c *Connection) GetTrackInfo(hostID device.ID, slot SlotTag, trackType TrackTypeTag, trackID uint32) (Success, []Entry, error) {
	desc := descriptor(hostID, slot, trackType)
	req := Message{
		Type: TypeGetTrackInfo,
		Args: []wire.Field{wire.U32(desc), wire.U32(trackID)},
	}
	return c.queryMenu(req, desc)
}

// GetArtwork fetches the raw artwork bytes for artworkId (spec.md §4.5).
func (c *Connection) GetArtwork(hostID device.ID, slot SlotTag, trackType TrackTypeTag, artworkID uint32) ([]byte, error) {
	req := Message{
		Type: TypeGetArtwork,
		Args: []wire.Field{wire.U32(descriptor(hostID, slot, trackType)), wire.U32(artworkID)},
	}
	resp, err := c.transact(req, TypeArtwork, []ArgKind{ArgKindU32, ArgKindU32, ArgKindU32, ArgKindBinary})
	if err != nil {
		return nil, err
	}
	if len(resp.Args) < 4 {
		return nil, fmt.Errorf("remotedb: artwork response missing data arg")
	}
	return resp.Args[3].Bytes(), nil
}

// GetBeatGrid fetches the beat-grid binary for trackId and returns it
// decoded into entries (spec.md §4.5).
func (c *Connection) GetBeatGrid(hostID device.ID, slot SlotTag, trackType TrackTypeTag, trackID uint32) ([]BeatGridEntry, error) {
	req := Message{
		Type: TypeGetBeatGrid,
		Args: []wire.Field{wire.U32(descriptor(hostID, slot, trackType)), wire.U32(trackID)},
	}
	resp, err := c.transact(req, TypeBeatGrid, []ArgKind{ArgKindU32, ArgKindU32, ArgKindU32, ArgKindBinary})
	if err != nil {
		return nil, err
	}
	if len(resp.Args) < 4 {
		return nil, fmt.Errorf("remotedb: beat grid response missing data arg")
	}
	return DecodeBeatGrid(resp.Args[3].Bytes()), nil
}

// GetCueAndLoops fetches cue/loop points for trackId (spec.md §4.5).
func (c *Connection) GetCueAndLoops(hostID device.ID, slot SlotTag, trackType TrackTypeTag, trackID uint32) (Message, error) {
	req := Message{
		Type: TypeGetCueAndLoops,
		Args: []wire.Field{wire.U32(descriptor(hostID, slot, trackType)), wire.U32(trackID)},
	}
	return c.transact(req, TypeCueAndLoops, []ArgKind{ArgKindU32, ArgKindU32, ArgKindU32, ArgKindBinary})
}

// GetAdvCueAndLoops fetches the extended cue/loop representation for
// trackId (spec.md §4.5).
func (c *Connection) GetAdvCueAndLoops(hostID device.ID, slot SlotTag, trackType TrackTypeTag, trackID uint32) (Message, error) {
	req := Message{
		Type: TypeGetAdvCueAndLoops,
		Args: []wire.Field{wire.U32(descriptor(hostID, slot, trackType)), wire.U32(trackID), wire.U32(0)},
	}
	return c.transact(req, TypeAdvCueAndLoops, []ArgKind{ArgKindU32, ArgKindU32, ArgKindU32, ArgKindBinary})
}

// GetWaveformPreview fetches the 400-segment waveform preview for trackId
// (spec.md §4.5).
func (c *Connection) GetWaveformPreview(hostID device.ID, slot SlotTag, trackType TrackTypeTag, trackID uint32) ([]WaveformPreviewSegment, error) {
	req := Message{
		Type: TypeGetWaveformPreview,
		Args: []wire.Field{
			wire.U32(descriptor(hostID, slot, trackType)),
			wire.U32(0),
			wire.U32(trackID),
			wire.U32(0),
			wire.Binary(nil), // empty-binary quirk: elided on the wire
		},
	}
	resp, err := c.transact(req, TypeWaveformPreview, []ArgKind{ArgKindU32, ArgKindU32, ArgKindU32, ArgKindBinary})
	if err != nil {
		return nil, err
	}
	if len(resp.Args) < 4 {
		return nil, fmt.Errorf("remotedb: waveform preview response missing data arg")
	}
	return DecodeWaveformPreview(resp.Args[3].Bytes()), nil
}

// GetWaveformDetailed fetches the per-second detailed waveform for trackId
// (spec.md §4.5).
func (c *Connection) GetWaveformDetailed(hostID device.ID, slot SlotTag, trackType TrackTypeTag, trackID uint32) ([]WaveformDetailedSegment, error) {
	req := Message{
		Type: TypeGetWaveformDetailed,
		Args: []wire.Field{wire.U32(descriptor(hostID, slot, trackType)), wire.U32(trackID), wire.U32(0)},
	}
	resp, err := c.transact(req, TypeWaveformDetailed, []ArgKind{ArgKindU32, ArgKindU32, ArgKindU32, ArgKindBinary})
	if err != nil {
		return nil, err
	}
	if len(resp.Args) < 4 {
		return nil, fmt.Errorf("remotedb: waveform detailed response missing data arg")
	}
	return DecodeWaveformDetailed(resp.Args[3].Bytes()), nil
}

// waveformHDMagic/waveformHDExt are the fixed tag arguments GetWaveformHD
// sends (spec.md §4.5: "u32 'PWV5', u32 'EXT\0'").
var waveformHDMagic = fourCC('P', 'W', 'V', '5')
var waveformHDExt = fourCC('E', 'X', 'T', 0)

func fourCC(a, b, c, d byte) uint32 {
	return uint32(a)<<24 | uint32(b)<<16 | uint32(c)<<8 | uint32(d)
}

// GetWaveformHD fetches the color HD waveform for trackId (spec.md §4.5).
func (c *Connection) GetWaveformHD(hostID device.ID, slot SlotTag, trackType TrackTypeTag, trackID uint32) ([]WaveformHDSegment, error) {
	req := Message{
		Type: TypeGetWaveformHD,
		Args: []wire.Field{
			wire.U32(descriptor(hostID, slot, trackType)),
			wire.U32(trackID),
			wire.U32(waveformHDMagic),
			wire.U32(waveformHDExt),
		},
	}
	resp, err := c.transact(req, TypeWaveformHD, []ArgKind{ArgKindU32, ArgKindU32, ArgKindU32, ArgKindBinary})
	if err != nil {
		return nil, err
	}
	if len(resp.Args) < 4 {
		return nil, fmt.Errorf("remotedb: waveform HD response missing data arg")
	}
	return DecodeWaveformHD(resp.Args[3].Bytes()), nil
}

// MenuPlaylist requests the paged contents of a playlist or folder and
// renders it in full, atomically (spec.md §4.5).
func (c *Connection) MenuPlaylist(hostID device.ID, slot SlotTag, trackType TrackTypeTag, sort, id uint32, isFolder bool) (Success, []Entry, error) {
	folderFlag := uint32(0)
	if isFolder {
		folderFlag = 1
	}
	desc := descriptor(hostID, slot, trackType)
	req := Message{
		Type: TypeMenuPlaylist,
		Args: []wire.Field{wire.U32(desc), wire.U32(sort), wire.U32(id), wire.U32(folderFlag)},
	}
	return c.queryMenu(req, desc)
}
