package nfs

import (
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/cartomix/prolink/internal/wire"
)

// NFSv2 status codes this client distinguishes.
const (
	nfsOK       = 0
	nfsErrNoEnt = 2
	readChunk   = 2048 // count requested per NFS READ call (spec.md §4.6: READ_SIZE)
)

// Lookup performs NFSv2 LOOKUP (procedure 4), resolving name within dir.
func Lookup(conn net.Conn, xid uint32, dir FileHandle, name string, timeout time.Duration) (FileHandle, error) {
	e := wire.NewXDREncoder()
	e.PutOpaqueFixed(dir[:])
	if err := e.PutString(name); err != nil {
		return FileHandle{}, fmt.Errorf("nfs: encode lookup name: %w", err)
	}

	reply, err := callUnix(conn, xid, programNFS, versionNFS, nfsProcLookup, e.Bytes(), timeout)
	if err != nil {
		return FileHandle{}, fmt.Errorf("nfs: lookup(%s): %w", name, err)
	}
	d := wire.NewXDRDecoder(reply)
	st, err := d.Uint32()
	if err != nil {
		return FileHandle{}, fmt.Errorf("nfs: decode lookup status: %w", err)
	}
	if st == nfsErrNoEnt {
		return FileHandle{}, ErrNotExist
	}
	if st != nfsOK {
		return FileHandle{}, fmt.Errorf("nfs: lookup(%s) failed, status %d", name, st)
	}
	raw, err := d.OpaqueFixed(32)
	if err != nil {
		return FileHandle{}, fmt.Errorf("nfs: decode lookup handle: %w", err)
	}
	var fh FileHandle
	copy(fh[:], raw)
	return fh, nil
}

// ErrNotExist is returned by Lookup when the path component does not exist.
var ErrNotExist = fmt.Errorf("nfs: no such file or directory")

// Read performs a single NFSv2 READ (procedure 6) call at the given offset,
// returning up to readChunk bytes of file data and its total size (from the
// file attributes every READ reply carries).
func Read(conn net.Conn, xid uint32, fh FileHandle, offset uint32, timeout time.Duration) (data []byte, totalSize uint32, err error) {
	e := wire.NewXDREncoder()
	e.PutOpaqueFixed(fh[:])
	e.PutUint32(offset)
	e.PutUint32(readChunk)
	e.PutUint32(0) // unused "totalcount" field

	reply, err := callUnix(conn, xid, programNFS, versionNFS, nfsProcRead, e.Bytes(), timeout)
	if err != nil {
		return nil, 0, fmt.Errorf("nfs: read at %d: %w", offset, err)
	}
	d := wire.NewXDRDecoder(reply)
	st, err := d.Uint32()
	if err != nil {
		return nil, 0, fmt.Errorf("nfs: decode read status: %w", err)
	}
	if st != nfsOK {
		return nil, 0, fmt.Errorf("nfs: read at %d failed, status %d", offset, st)
	}

	// fattr: type, mode, nlink, uid, gid, size, blocksize, rdev, blocks,
	// fsid, fileid, atime(2), mtime(2), ctime(2) = 17 u32 fields.
	attrs := make([]uint32, 17)
	for i := range attrs {
		attrs[i], err = d.Uint32()
		if err != nil {
			return nil, 0, fmt.Errorf("nfs: decode read attrs: %w", err)
		}
	}
	totalSize = attrs[5]

	data, err = d.OpaqueVar()
	if err != nil {
		return nil, 0, fmt.Errorf("nfs: decode read data: %w", err)
	}
	return data, totalSize, nil
}

// splitPath breaks a slash-separated export-relative path into its
// non-empty components, used to walk a lookup chain component by component.
func splitPath(path string) []string {
	var parts []string
	for _, p := range strings.Split(path, "/") {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return parts
}
