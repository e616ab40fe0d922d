package nfs

import (
	"net"
	"testing"
	"time"

	"github.com/cartomix/prolink/internal/status"
	"github.com/cartomix/prolink/internal/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlotExportPathMapping(t *testing.T) {
	cases := []struct {
		slot status.SlotTag
		want string
	}{
		{status.SlotUSB, "/C/"},
		{status.SlotSD, "/B/"},
		{status.SlotRB, "/"},
	}
	for _, c := range cases {
		got, err := SlotExportPath(c.slot)
		require.NoError(t, err)
		assert.Equal(t, c.want, got)
	}

	_, err := SlotExportPath(status.SlotEmpty)
	assert.Error(t, err)
}

func serveOneCall(t *testing.T, server net.Conn, reply []byte) {
	t.Helper()
	buf := make([]byte, 4096)
	n, err := server.Read(buf)
	require.NoError(t, err)
	d := wire.NewXDRDecoder(buf[:n])
	xid, err := d.Uint32()
	require.NoError(t, err)
	_, err = server.Write(fakeRPCReply(xid, reply))
	require.NoError(t, err)
}

func TestMountDecodesRootHandle(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	var wantHandle [32]byte
	for i := range wantHandle {
		wantHandle[i] = byte(i)
	}

	go func() {
		e := wire.NewXDREncoder()
		e.PutUint32(0) // mount status: ok
		e.PutOpaqueFixed(wantHandle[:])
		serveOneCall(t, server, e.Bytes())
	}()

	fh, err := Mount(client, 1, "/C/", time.Second)
	require.NoError(t, err)
	assert.Equal(t, FileHandle(wantHandle), fh)
}

func TestMountRejectsNonZeroStatus(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	go func() {
		e := wire.NewXDREncoder()
		e.PutUint32(2) // status: access denied
		serveOneCall(t, server, e.Bytes())
	}()

	_, err := Mount(client, 1, "/nope/", time.Second)
	assert.Error(t, err)
}

func TestExportDecodesPathList(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	go func() {
		e := wire.NewXDREncoder()
		e.PutUint32(1) // hasNext: entry 1
		require.NoError(t, e.PutString("/C/"))
		e.PutUint32(0) // no groups
		e.PutUint32(0) // hasNext: no more entries
		serveOneCall(t, server, e.Bytes())
	}()

	paths, err := Export(client, 1, time.Second)
	require.NoError(t, err)
	assert.Equal(t, []string{"/C/"}, paths)
}
