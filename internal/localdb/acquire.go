package localdb

import (
	"context"
	"fmt"
	"net"
	"runtime"
	"sync"

	"github.com/cartomix/prolink/internal/device"
	"github.com/cartomix/prolink/internal/nfs"
	"github.com/cartomix/prolink/internal/status"
)

// exportCandidates lists the two paths a rekordbox export is known to live
// at, ordered by host OS bias: Windows tries the un-hidden path first
// (spec.md §4.6).
func exportCandidates() []string {
	if runtime.GOOS == "windows" {
		return []string{"PIONEER/rekordbox/export.pdb", ".PIONEER/rekordbox/export.pdb"}
	}
	return []string{".PIONEER/rekordbox/export.pdb", "PIONEER/rekordbox/export.pdb"}
}

type slotKey struct {
	device device.ID
	slot   status.SlotTag
}

// Service acquires and caches rekordbox exports for (device, slot) pairs,
// serializing concurrent requests against the same slot (spec.md §4.6).
type Service struct {
	cache   *Cache
	nfs     *nfs.Client
	emitter *status.Emitter

	hostName string
	hostID   device.ID
	hostIP   net.IP

	mu     sync.Mutex
	locks  map[slotKey]*sync.Mutex
}

// Cache exposes the underlying cache for read-only lookups once an
// acquisition has resolved a fingerprint.
func (s *Service) Cache() *Cache { return s.cache }

// NewService wires a cache, NFS client, and status emitter into an
// acquisition pipeline presenting as hostName/hostID/hostIP on the network.
func NewService(cache *Cache, nfsClient *nfs.Client, emitter *status.Emitter, hostName string, hostID device.ID, hostIP net.IP) *Service {
	return &Service{
		cache: cache, nfs: nfsClient, emitter: emitter,
		hostName: hostName, hostID: hostID, hostIP: hostIP,
		locks: make(map[slotKey]*sync.Mutex),
	}
}

func (s *Service) lockFor(key slotKey) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.locks[key]
	if !ok {
		m = &sync.Mutex{}
		s.locks[key] = m
	}
	return m
}

// Acquire resolves the fingerprint for (target, slot), returning it along
// with whether the export has been hydrated into the cache. It returns
// ("", false, nil) when the slot holds media that isn't a rekordbox
// database (spec.md §4.6).
func (s *Service) Acquire(ctx context.Context, targetIP net.IP, target device.ID, slot status.SlotTag, onProgress func(HydrationEvent)) (fingerprint string, ok bool, err error) {
	info, err := s.emitter.QueryMediaSlot(ctx, s.hostName, s.hostID, s.hostIP, target, slot)
	if err != nil {
		return "", false, fmt.Errorf("localdb: query media slot: %w", err)
	}
	if info.TracksType != status.TrackTypeRB {
		return "", false, nil
	}

	fp := Fingerprint(target, slot, info)
	key := slotKey{device: target, slot: slot}
	lock := s.lockFor(key)
	lock.Lock()
	defer lock.Unlock()

	cached, err := s.cache.IsCached(fp)
	if err != nil {
		return "", false, fmt.Errorf("localdb: check cache: %w", err)
	}
	if cached {
		return fp, true, nil
	}

	raw, err := s.fetchExport(targetIP, slot, onProgress)
	if err != nil {
		return "", false, err
	}

	rows, err := Decode(raw)
	if err != nil {
		return "", false, fmt.Errorf("localdb: decode export: %w", err)
	}
	if err := s.cache.Hydrate(fp, rows, onProgress); err != nil {
		return "", false, fmt.Errorf("localdb: hydrate export: %w", err)
	}
	return fp, true, nil
}

func (s *Service) fetchExport(targetIP net.IP, slot status.SlotTag, onProgress func(HydrationEvent)) ([]byte, error) {
	var lastErr error
	for _, path := range exportCandidates() {
		raw, err := s.nfs.FetchFile(targetIP, slot, path, func(p nfs.Progress) {
			if onProgress != nil {
				onProgress(HydrationEvent{Table: "export.pdb", Complete: int(p.Read), Total: int(p.Total)})
			}
		})
		if err == nil {
			return raw, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("localdb: fetch export.pdb: %w", lastErr)
}

// HydrateTrackAnalysis fetches ${analyzePath}.${ext} via loader and hydrates
// its sections into an Analysis (spec.md §4.6). ext is "DAT" or "EXT".
func HydrateTrackAnalysis(analyzePath, ext string, loader func(path string) ([]byte, error)) (Analysis, error) {
	raw, err := loader(fmt.Sprintf("%s.%s", analyzePath, ext))
	if err != nil {
		return Analysis{}, fmt.Errorf("localdb: load analysis file: %w", err)
	}
	return HydrateAnlz(raw)
}
