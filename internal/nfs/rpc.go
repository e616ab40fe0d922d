// Package nfs implements the minimal ONC-RPC client this module needs to
// pull rekordbox export databases off a player's media slot: portmap's
// getPort, mount's export/mount, and NFSv2's lookup/read (spec.md §4.6).
package nfs

import (
	"encoding/binary"
	"fmt"
	"net"
	"time"

	"github.com/cartomix/prolink/internal/wire"
)

// ONC-RPC program numbers and versions this client speaks.
const (
	programPortmap = 100000
	versionPortmap = 2

	programMount = 100005
	versionMount = 1

	programNFS = 100003
	versionNFS = 2
)

// Portmap procedures.
const (
	portmapProcGetPort = 3
)

// Mount procedures.
const (
	mountProcExport = 5
	mountProcMount  = 1
)

// NFS procedures.
const (
	nfsProcLookup = 4
	nfsProcRead   = 6
)

const (
	rpcCall          = 0
	rpcReply         = 1
	rpcMsgAccepted   = 0
	authFlavorUnix   = 1
	authFlavorNone   = 0
	// authStamp is the fixed auth-unix stamp value this module presents on
	// every RPC call (spec.md §4.6).
	authStamp = 0x967B8703
)

// callUnix performs a single ONC-RPC call over conn (already connected, UDP
// or TCP framing handled by the caller) and returns the reply body.
func callUnix(conn net.Conn, xid uint32, program, version, proc uint32, args []byte, timeout time.Duration) ([]byte, error) {
	req := encodeCall(xid, program, version, proc, args)

	if timeout > 0 {
		if err := conn.SetDeadline(time.Now().Add(timeout)); err != nil {
			return nil, fmt.Errorf("nfs: set deadline: %w", err)
		}
	}
	if _, err := conn.Write(req); err != nil {
		return nil, fmt.Errorf("nfs: write call: %w", err)
	}

	buf := make([]byte, 65536)
	n, err := conn.Read(buf)
	if err != nil {
		return nil, fmt.Errorf("nfs: read reply: %w", err)
	}
	return decodeReply(buf[:n], xid)
}

func encodeCall(xid, program, version, proc uint32, args []byte) []byte {
	e := wire.NewXDREncoder()
	e.PutUint32(xid)
	e.PutUint32(rpcCall)
	e.PutUint32(2) // RPC version 2
	e.PutUint32(program)
	e.PutUint32(version)
	e.PutUint32(proc)

	// auth-unix credential: stamp, empty machine name, uid 0, gid 0, no aux gids.
	e.PutUint32(authFlavorUnix)
	cred := wire.NewXDREncoder()
	cred.PutUint32(authStamp)
	if err := cred.PutString(""); err != nil {
		panic(err) // encoding an empty string never fails
	}
	cred.PutUint32(0)
	cred.PutUint32(0)
	cred.PutUint32(0)
	credBytes := cred.Bytes()
	e.PutUint32(uint32(len(credBytes)))
	e.PutOpaqueFixed(credBytes)

	// verifier: AUTH_NONE, zero length.
	e.PutUint32(authFlavorNone)
	e.PutUint32(0)

	e.PutOpaqueFixed(args)
	return e.Bytes()
}

func decodeReply(raw []byte, wantXID uint32) ([]byte, error) {
	d := wire.NewXDRDecoder(raw)
	xid, err := d.Uint32()
	if err != nil {
		return nil, fmt.Errorf("nfs: truncated reply header: %w", err)
	}
	if xid != wantXID {
		return nil, fmt.Errorf("nfs: reply xid %d does not match call xid %d", xid, wantXID)
	}
	msgType, err := d.Uint32()
	if err != nil || msgType != rpcReply {
		return nil, fmt.Errorf("nfs: reply is not an RPC reply message")
	}
	acceptState, err := d.Uint32()
	if err != nil {
		return nil, fmt.Errorf("nfs: truncated reply status: %w", err)
	}
	if acceptState != rpcMsgAccepted {
		return nil, fmt.Errorf("nfs: call rejected by server (state %d)", acceptState)
	}

	// verifier to skip: flavor + opaque body.
	if _, err := d.Uint32(); err != nil {
		return nil, fmt.Errorf("nfs: truncated verifier flavor: %w", err)
	}
	if _, err := d.OpaqueVar(); err != nil {
		return nil, fmt.Errorf("nfs: truncated verifier body: %w", err)
	}

	acceptStatus, err := d.Uint32()
	if err != nil {
		return nil, fmt.Errorf("nfs: truncated accept status: %w", err)
	}
	if acceptStatus != 0 {
		return nil, fmt.Errorf("nfs: procedure rejected (accept status %d)", acceptStatus)
	}

	return raw[len(raw)-d.Remaining():], nil
}

// putUint32BE encodes v as four big-endian bytes. Nothing in this package
// calls it; GetPort builds its mapping argument with wire.XDREncoder.
func putUint32BE(v uint32) []byte {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	return b[:]
}
