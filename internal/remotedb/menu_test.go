package remotedb

import (
	"net"
	"testing"

	"github.com/cartomix/prolink/internal/status"
	"github.com/cartomix/prolink/internal/wire"
	"github.com/stretchr/testify/require"
)

func TestTransformKnownAndUnknownItemTypes(t *testing.T) {
	track := Transform(MenuItem{MainID: 42, Label1: "Title", ItemType: ItemTypeTrack, ArtworkID: 9})
	require.True(t, track.Known)
	require.EqualValues(t, 42, track.ID)
	require.Equal(t, "Title", track.Title)

	unknown := Transform(MenuItem{ItemType: ItemType(9999)})
	require.False(t, unknown.Known)
}

// fakeMenuServer writes one page of MenuHeader/MenuItem.../MenuFooter per
// RenderMenu page request it receives, then serves the next page request.
func fakeMenuServer(t *testing.T, conn net.Conn, totalItems int) {
	t.Helper()
	served := 0
	for served < totalItems {
		_, err := ReadMessage(conn, TypeRenderMenu, nil)
		require.NoError(t, err)

		limit := pageSize
		if remaining := totalItems - served; remaining < limit {
			limit = remaining
		}

		require.NoError(t, WriteMessage(conn, Message{Type: TypeMenuHeader, Args: []wire.Field{wire.U32(0)}}))
		for i := 0; i < limit; i++ {
			item := Message{
				Type: TypeMenuItem,
				Args: []wire.Field{
					wire.U32(0), wire.U32(uint32(served + i)), wire.U32(5), wire.NewString("t"),
					wire.U32(0), wire.NewString(""), wire.U32(uint32(ItemTypeTrack)), wire.U32(0),
					wire.U32(0), wire.U32(0), wire.U32(0), wire.U32(0),
				},
			}
			require.NoError(t, WriteMessage(conn, item))
		}
		require.NoError(t, WriteMessage(conn, Message{Type: TypeMenuFooter, Args: []wire.Field{wire.U32(0)}}))
		served += limit
	}
}

// TestRenderMenuYieldsExactItemCount covers spec.md §8 invariant #7: paged
// rendering yields exactly itemsAvailable items across all pages, reading a
// matching MenuHeader/MenuFooter pair per page.
func TestRenderMenuYieldsExactItemCount(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	const total = pageSize + 10 // forces a second page
	done := make(chan struct{})
	go func() {
		defer close(done)
		fakeMenuServer(t, server, total)
	}()

	c := &Connection{conn: client, nextTxID: 1}
	entries, err := c.RenderMenu(7, status.SlotUSB, status.TrackTypeRB, total)
	require.NoError(t, err)
	require.Len(t, entries, total)
	<-done
}
