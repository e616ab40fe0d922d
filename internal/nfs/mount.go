package nfs

import (
	"fmt"
	"net"
	"time"

	"github.com/cartomix/prolink/internal/status"
	"github.com/cartomix/prolink/internal/wire"
)

// FileHandle is an opaque NFSv2 handle, always 32 bytes on the wire.
type FileHandle [32]byte

// SlotExportPath maps a media slot to the export path the player's NFS
// server mounts it under (spec.md §4.6): USB -> /C/, SD -> /B/, RB -> /.
func SlotExportPath(slot status.SlotTag) (string, error) {
	switch slot {
	case status.SlotUSB:
		return "/C/", nil
	case status.SlotSD:
		return "/B/", nil
	case status.SlotRB:
		return "/", nil
	default:
		return "", fmt.Errorf("nfs: slot %s has no NFS export", slot)
	}
}

// Export performs mount's EXPORT call (procedure 5) and returns the exported
// paths; each entry's group list is read and discarded. Client does not call
// it before mounting.
func Export(conn net.Conn, xid uint32, timeout time.Duration) ([]string, error) {
	reply, err := callUnix(conn, xid, programMount, versionMount, mountProcExport, nil, timeout)
	if err != nil {
		return nil, fmt.Errorf("nfs: mount export: %w", err)
	}
	d := wire.NewXDRDecoder(reply)
	var paths []string
	for {
		hasNext, err := d.Bool()
		if err != nil {
			return nil, fmt.Errorf("nfs: decode export list: %w", err)
		}
		if !hasNext {
			break
		}
		path, err := d.String()
		if err != nil {
			return nil, fmt.Errorf("nfs: decode export path: %w", err)
		}
		paths = append(paths, path)
		// skip the group list attached to this export entry
		for {
			hasGroup, err := d.Bool()
			if err != nil {
				return nil, fmt.Errorf("nfs: decode export groups: %w", err)
			}
			if !hasGroup {
				break
			}
			if _, err := d.String(); err != nil {
				return nil, fmt.Errorf("nfs: decode group name: %w", err)
			}
		}
	}
	return paths, nil
}

// Mount performs mount's MNT call (procedure 1), returning the root file
// handle for path.
func Mount(conn net.Conn, xid uint32, path string, timeout time.Duration) (FileHandle, error) {
	e := wire.NewXDREncoder()
	if err := e.PutString(path); err != nil {
		return FileHandle{}, fmt.Errorf("nfs: encode mount path: %w", err)
	}

	reply, err := callUnix(conn, xid, programMount, versionMount, mountProcMount, e.Bytes(), timeout)
	if err != nil {
		return FileHandle{}, fmt.Errorf("nfs: mount(%s): %w", path, err)
	}
	d := wire.NewXDRDecoder(reply)
	status_, err := d.Uint32()
	if err != nil {
		return FileHandle{}, fmt.Errorf("nfs: decode mount status: %w", err)
	}
	if status_ != 0 {
		return FileHandle{}, fmt.Errorf("nfs: mount(%s) rejected, status %d", path, status_)
	}
	raw, err := d.OpaqueFixed(32)
	if err != nil {
		return FileHandle{}, fmt.Errorf("nfs: decode root handle: %w", err)
	}
	var fh FileHandle
	copy(fh[:], raw)
	return fh, nil
}
