// Package dbfacade unifies the remote-database (TCP) and local-database
// (NFS + rekordbox export) backends behind one strategy-selecting facade
// (spec.md §4.8).
package dbfacade

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/cartomix/prolink/internal/device"
	"github.com/cartomix/prolink/internal/localdb"
	"github.com/cartomix/prolink/internal/remotedb"
	"github.com/cartomix/prolink/internal/status"
)

// Strategy identifies which backend a request is routed to.
type Strategy int

const (
	StrategyNone Strategy = iota
	StrategyRemote
	StrategyLocal
)

// Facade picks Remote (TCP remote-database protocol), Local (rekordbox
// export read over NFS), or None for each device/slot pair, per the rules
// in spec.md §4.8.
type Facade struct {
	devices *device.Manager
	remote  *remotedb.Connection
	local   *localdb.Service

	vcdjID        device.ID
	deviceTimeout time.Duration
}

// New wires a device manager and the two backends into a Facade. remote may
// be nil if no TCP remote-database connection is established yet; local may
// be nil if no acquisition service is configured.
func New(devices *device.Manager, remote *remotedb.Connection, local *localdb.Service, vcdjID device.ID, deviceTimeout time.Duration) *Facade {
	return &Facade{devices: devices, remote: remote, local: local, vcdjID: vcdjID, deviceTimeout: deviceTimeout}
}

// selectStrategy implements spec.md §4.8 step 2 for the non-playlist
// operations.
func (f *Facade) selectStrategy(dev device.Device, trackType status.TrackType) Strategy {
	switch {
	case dev.Type == device.TypeRekordbox:
		return StrategyRemote
	case dev.Type == device.TypeCDJ && (trackType == status.TrackTypeAudioCD || trackType == status.TrackTypeUnanalyzed) && f.vcdjID.IsPlayerSlot():
		return StrategyRemote
	case dev.Type == device.TypeCDJ && trackType == status.TrackTypeRB:
		return StrategyLocal
	default:
		return StrategyNone
	}
}

// selectPlaylistStrategy implements spec.md §4.8's parallel, slot-keyed
// rule for getPlaylist.
func (f *Facade) selectPlaylistStrategy(dev device.Device, slot status.SlotTag) Strategy {
	switch {
	case dev.Type == device.TypeRekordbox && slot == status.SlotRB:
		return StrategyRemote
	case dev.Type == device.TypeRekordbox:
		return StrategyNone
	case dev.Type == device.TypeCDJ:
		return StrategyLocal
	default:
		return StrategyNone
	}
}

func (f *Facade) awaitDevice(id device.ID) (device.Device, bool) {
	return f.devices.GetDeviceEnsured(id, f.deviceTimeout)
}

// GetMetadata resolves a track's metadata menu entries, or (nil, false) if
// the device is unreachable or no strategy applies (spec.md §4.8). The
// local strategy requires a fingerprint resolved via Acquire, since
// spec.md §4.7's hydrated cache (not a live connection) backs it.
func (f *Facade) GetMetadata(ctx context.Context, target device.ID, targetIP net.IP, slot status.SlotTag, trackType status.TrackType, trackID uint32, onProgress func(localdb.HydrationEvent)) ([]remotedb.Entry, bool, error) {
	dev, ok := f.awaitDevice(target)
	if !ok {
		return nil, false, nil
	}

	switch f.selectStrategy(dev, trackType) {
	case StrategyRemote:
		if f.remote == nil {
			return nil, false, fmt.Errorf("dbfacade: remote strategy selected but no connection configured")
		}
		var entries []remotedb.Entry
		var err error
		if trackType == status.TrackTypeAudioCD || trackType == status.TrackTypeUnanalyzed {
			_, entries, err = f.remote.GetGenericMetadata(target, slot, trackType, trackID)
		} else {
			_, entries, err = f.remote.GetMetadata(target, slot, trackType, trackID)
		}
		if err != nil {
			return nil, false, err
		}
		return entries, true, nil

	case StrategyLocal:
		if f.local == nil {
			return nil, false, fmt.Errorf("dbfacade: no local database service configured")
		}
		fp, ok, err := f.local.Acquire(ctx, targetIP, target, slot, onProgress)
		if err != nil {
			return nil, false, err
		}
		if !ok {
			return nil, false, nil
		}
		t, err := f.local.Cache().GetTrack(fp, trackID)
		if err != nil {
			return nil, false, err
		}
		return []remotedb.Entry{{ID: t.ID, Title: t.Title, ArtworkID: t.ArtworkID, BPM: t.Tempo}}, true, nil

	default:
		return nil, false, nil
	}
}

// GetArtwork resolves the raw artwork bytes for a track over the remote
// strategy. For any other strategy it returns (nil, false, nil): it neither
// resolves the on-slot path nor fetches anything over NFS; LocalArtworkPath
// resolves that path as a separate call.
func (f *Facade) GetArtwork(ctx context.Context, target device.ID, slot status.SlotTag, trackType status.TrackType, artworkID uint32) ([]byte, bool, error) {
	dev, ok := f.awaitDevice(target)
	if !ok {
		return nil, false, nil
	}
	if f.selectStrategy(dev, trackType) != StrategyRemote {
		return nil, false, nil
	}
	if f.remote == nil {
		return nil, false, fmt.Errorf("dbfacade: remote strategy selected but no connection configured")
	}
	data, err := f.remote.GetArtwork(target, slot, trackType, artworkID)
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

// LocalArtworkPath resolves the on-slot artwork path for a track already
// hydrated into the local cache under fingerprint.
func (f *Facade) LocalArtworkPath(fingerprint string, artworkID uint32) (string, error) {
	if f.local == nil {
		return "", fmt.Errorf("dbfacade: no local database service configured")
	}
	art, err := f.local.Cache().GetArtwork(fingerprint, artworkID)
	if err != nil {
		return "", err
	}
	return art.Path, nil
}

// Waveforms bundles the three waveform resolutions a GetWaveforms call
// returns together (spec.md §4.8).
type Waveforms struct {
	Preview  []remotedb.WaveformPreviewSegment
	Detailed []remotedb.WaveformDetailedSegment
	HD       []remotedb.WaveformHDSegment
}

// GetWaveforms resolves all three waveform resolutions for a track via the
// remote strategy; waveforms have no local-database equivalent.
func (f *Facade) GetWaveforms(ctx context.Context, target device.ID, slot status.SlotTag, trackType status.TrackType, trackID uint32) (*Waveforms, bool, error) {
	dev, ok := f.awaitDevice(target)
	if !ok {
		return nil, false, nil
	}
	if f.selectStrategy(dev, trackType) != StrategyRemote {
		return nil, false, nil
	}
	if f.remote == nil {
		return nil, false, fmt.Errorf("dbfacade: remote strategy selected but no connection configured")
	}

	preview, err := f.remote.GetWaveformPreview(target, slot, trackType, trackID)
	if err != nil {
		return nil, false, err
	}
	detailed, err := f.remote.GetWaveformDetailed(target, slot, trackType, trackID)
	if err != nil {
		return nil, false, err
	}
	hd, err := f.remote.GetWaveformHD(target, slot, trackType, trackID)
	if err != nil {
		return nil, false, err
	}

	return &Waveforms{Preview: preview, Detailed: detailed, HD: hd}, true, nil
}

// Playlist is the shape spec.md §4.8 names for getPlaylist's return value.
// TracksIterator is finite and not restartable: each call consumes the next
// entry, mirroring the spec's lazy-sequence semantics.
type Playlist struct {
	Folders        []remotedb.Entry
	Playlists      []remotedb.Entry
	TracksIterator func() (remotedb.Entry, bool)
	TotalTracks    uint32
}

func sliceIterator(entries []remotedb.Entry) func() (remotedb.Entry, bool) {
	idx := 0
	return func() (remotedb.Entry, bool) {
		if idx >= len(entries) {
			return remotedb.Entry{}, false
		}
		e := entries[idx]
		idx++
		return e, true
	}
}

// GetPlaylist resolves a playlist's folders/tracks via the slot-keyed
// strategy rule (spec.md §4.8).
func (f *Facade) GetPlaylist(ctx context.Context, target device.ID, targetIP net.IP, slot status.SlotTag, trackType status.TrackType, parentID uint32, isFolder bool, onProgress func(localdb.HydrationEvent)) (*Playlist, bool, error) {
	dev, ok := f.awaitDevice(target)
	if !ok {
		return nil, false, nil
	}

	switch f.selectPlaylistStrategy(dev, slot) {
	case StrategyRemote:
		if f.remote == nil {
			return nil, false, fmt.Errorf("dbfacade: remote strategy selected but no connection configured")
		}
		_, entries, err := f.remote.MenuPlaylist(target, slot, trackType, 0, parentID, isFolder)
		if err != nil {
			return nil, false, err
		}
		return &Playlist{Playlists: entries, TracksIterator: sliceIterator(entries), TotalTracks: uint32(len(entries))}, true, nil

	case StrategyLocal:
		if f.local == nil {
			return nil, false, fmt.Errorf("dbfacade: no local database service configured")
		}
		fp, ok, err := f.local.Acquire(ctx, targetIP, target, slot, onProgress)
		if err != nil {
			return nil, false, err
		}
		if !ok {
			return nil, false, nil
		}

		nodes, err := f.local.Cache().ListPlaylistNodes(fp)
		if err != nil {
			return nil, false, err
		}
		entries, err := f.local.Cache().ListPlaylistEntries(fp, parentID)
		if err != nil {
			return nil, false, err
		}

		var folders []remotedb.Entry
		var trackEntries []remotedb.Entry
		for _, n := range nodes {
			if n.IsFolder {
				folders = append(folders, remotedb.Entry{ID: n.ID, Name: n.Name})
			}
		}
		for _, e := range entries {
			trackEntries = append(trackEntries, remotedb.Entry{ID: e.TrackID})
		}

		return &Playlist{Folders: folders, TracksIterator: sliceIterator(trackEntries), TotalTracks: uint32(len(trackEntries))}, true, nil

	default:
		return nil, false, nil
	}
}
