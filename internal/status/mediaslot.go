package status

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"net"
	"strings"

	"github.com/cartomix/prolink/internal/device"
)

// SlotTag identifies a media slot kind (spec.md §3).
type SlotTag uint8

const (
	SlotEmpty SlotTag = iota
	SlotCD
	SlotSD
	SlotUSB
	SlotRB
)

func (s SlotTag) String() string {
	switch s {
	case SlotEmpty:
		return "Empty"
	case SlotCD:
		return "CD"
	case SlotSD:
		return "SD"
	case SlotUSB:
		return "USB"
	case SlotRB:
		return "RB"
	default:
		return fmt.Sprintf("SlotTag(%d)", uint8(s))
	}
}

// TrackType identifies how the media in a slot is organized (spec.md §3).
type TrackType uint8

const (
	TrackTypeNone TrackType = iota
	TrackTypeRB
	TrackTypeUnanalyzed
	TrackTypeAudioCD
)

func (t TrackType) String() string {
	switch t {
	case TrackTypeNone:
		return "None"
	case TrackTypeRB:
		return "RB"
	case TrackTypeUnanalyzed:
		return "Unanalyzed"
	case TrackTypeAudioCD:
		return "AudioCD"
	default:
		return fmt.Sprintf("TrackType(%d)", uint8(t))
	}
}

// MediaSlotInfo is a per-slot media descriptor queried on demand
// (spec.md §3).
type MediaSlotInfo struct {
	DeviceID       device.ID
	Slot           SlotTag
	Name           string
	CreatedDate    string
	FreeBytes      uint64
	TotalBytes     uint64
	TrackCount     uint16
	PlaylistCount  uint16
	TracksType     TrackType
	Color          uint8
	HasSettings    bool
}

const (
	mediaQuerySubtype = 0x05

	mqOffName        = 0x2C
	mqNameLen        = 40
	mqOffCreatedDate = 0x6C
	mqCreatedLen     = 24
	mqOffDeviceID    = 0x27
	mqOffSlot        = 0x2B
	mqOffTrackCount  = 0xA6
	mqOffColor       = 0xA8
	mqOffTracksType  = 0xAA
	mqOffHasSettings = 0xAB
	mqOffPlaylists   = 0xAE
	mqOffTotalBytes  = 0xB0
	mqOffFreeBytes   = 0xB8

	mediaResponseMinLen = mqOffFreeBytes + 8
)

// BuildMediaSlotQuery constructs the query datagram sent on the status port
// to ask target for its media-slot descriptor (spec.md §6).
func BuildMediaSlotQuery(hostName string, hostID device.ID, hostIP net.IP, target device.ID, slot SlotTag) []byte {
	name := make([]byte, 20)
	copy(name, []byte(hostName))

	ip4 := hostIP.To4()
	if ip4 == nil {
		ip4 = make([]byte, 4)
	}

	parts := [][]byte{
		device.ProlinkHeader,
		{mediaQuerySubtype},
		name,
		{0x01, 0x00},
		{byte(hostID)},
		{0x00, 0x0C},
		ip4,
		{0x00, 0x00, 0x00, byte(target)},
		{0x00, 0x00, 0x00, byte(slot)},
	}
	return bytes.Join(parts, nil)
}

// ParseMediaSlotResponse decodes a media-slot query response at the fixed
// offsets spec.md §6 documents.
func ParseMediaSlotResponse(packet []byte) (MediaSlotInfo, error) {
	if len(packet) < mediaResponseMinLen {
		return MediaSlotInfo{}, fmt.Errorf("status: media slot response too short (%d bytes)", len(packet))
	}
	if !bytes.HasPrefix(packet, device.ProlinkHeader) {
		return MediaSlotInfo{}, fmt.Errorf("status: media slot response has bad magic")
	}

	info := MediaSlotInfo{
		DeviceID:      device.ID(packet[mqOffDeviceID]),
		Slot:          SlotTag(packet[mqOffSlot]),
		Name:          decodeFixedASCII(packet[mqOffName : mqOffName+mqNameLen]),
		CreatedDate:   decodeFixedASCII(packet[mqOffCreatedDate : mqOffCreatedDate+mqCreatedLen]),
		TrackCount:    binary.BigEndian.Uint16(packet[mqOffTrackCount:]),
		Color:         packet[mqOffColor],
		TracksType:    TrackType(packet[mqOffTracksType]),
		HasSettings:   packet[mqOffHasSettings] != 0,
		PlaylistCount: binary.BigEndian.Uint16(packet[mqOffPlaylists:]),
		TotalBytes:    binary.BigEndian.Uint64(packet[mqOffTotalBytes:]),
		FreeBytes:     binary.BigEndian.Uint64(packet[mqOffFreeBytes:]),
	}
	return info, nil
}

func decodeFixedASCII(b []byte) string {
	return strings.TrimRight(string(bytes.TrimRight(b, "\x00")), " ")
}
