package nfs

import (
	"net"
	"testing"
	"time"

	"github.com/cartomix/prolink/internal/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookupDecodesHandle(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	var wantHandle [32]byte
	wantHandle[0] = 0xAB

	go func() {
		e := wire.NewXDREncoder()
		e.PutUint32(nfsOK)
		e.PutOpaqueFixed(wantHandle[:])
		serveOneCall(t, server, e.Bytes())
	}()

	fh, err := Lookup(client, 1, FileHandle{}, "PIONEER", time.Second)
	require.NoError(t, err)
	assert.Equal(t, FileHandle(wantHandle), fh)
}

func TestLookupReturnsErrNotExist(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	go func() {
		e := wire.NewXDREncoder()
		e.PutUint32(nfsErrNoEnt)
		serveOneCall(t, server, e.Bytes())
	}()

	_, err := Lookup(client, 1, FileHandle{}, "missing", time.Second)
	assert.ErrorIs(t, err, ErrNotExist)
}

func fakeReadReply(size uint32, data []byte) []byte {
	e := wire.NewXDREncoder()
	e.PutUint32(nfsOK)
	for i := 0; i < 17; i++ {
		if i == 5 {
			e.PutUint32(size)
		} else {
			e.PutUint32(0)
		}
	}
	e.PutOpaqueVar(data)
	return e.Bytes()
}

func TestReadDecodesDataAndTotalSize(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	go func() {
		serveOneCall(t, server, fakeReadReply(100, []byte("hello")))
	}()

	data, total, err := Read(client, 1, FileHandle{}, 0, time.Second)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), data)
	assert.EqualValues(t, 100, total)
}

func TestSplitPathDropsEmptyComponents(t *testing.T) {
	assert.Equal(t, []string{"PIONEER", "rekordbox", "export.pdb"}, splitPath("/PIONEER/rekordbox/export.pdb"))
}

// TestReadRequestsSpecSizedChunks covers spec.md §4.6's "issue sequential
// read calls of READ_SIZE=2048": the count argument on the wire must be
// 2048, not the reply-side buffer cap.
func TestReadRequestsSpecSizedChunks(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	go func() {
		buf := make([]byte, 4096)
		n, err := server.Read(buf)
		require.NoError(t, err)
		req := buf[:n]
		// The request body ends with [fh(32) offset(4) count(4) totalcount(4)];
		// count is the second-to-last 4-byte word.
		count := req[len(req)-8 : len(req)-4]
		assert.EqualValues(t, 2048, (uint32(count[0])<<24)|(uint32(count[1])<<16)|(uint32(count[2])<<8)|uint32(count[3]))

		d := wire.NewXDRDecoder(req)
		xid, err := d.Uint32()
		require.NoError(t, err)
		_, err = server.Write(fakeRPCReply(xid, fakeReadReply(10, []byte("x"))))
		require.NoError(t, err)
	}()

	_, _, err := Read(client, 1, FileHandle{}, 0, time.Second)
	require.NoError(t, err)
}
