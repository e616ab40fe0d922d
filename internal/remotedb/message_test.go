package remotedb

import (
	"bytes"
	"testing"

	"github.com/cartomix/prolink/internal/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestEmptyBinaryQuirkRoundtrip covers spec.md §8 scenario S2: a request
// with final argument binary(0) preceded by u32(0) serializes without the
// binary, and decodes back to an empty buffer.
func TestEmptyBinaryQuirkRoundtrip(t *testing.T) {
	msg := Message{
		TransactionID: 5,
		Type:          TypeGetWaveformPreview,
		Args: []wire.Field{
			wire.U32(1), wire.U32(0), wire.U32(123), wire.U32(0), wire.Binary(nil),
		},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteMessage(&buf, msg))

	// The elided binary contributes nothing beyond its arg-kind slot: no
	// binary tag/length/payload should appear on the wire for it.
	got, err := ReadMessage(&buf, TypeGetWaveformPreview, []ArgKind{ArgKindU32, ArgKindU32, ArgKindU32, ArgKindU32, ArgKindBinary})
	require.NoError(t, err)
	require.Len(t, got.Args, 5)
	assert.Equal(t, wire.KindBinary, got.Args[4].Kind())
	assert.Empty(t, got.Args[4].Bytes())
	assert.EqualValues(t, 123, got.Args[2].Uint32())
}

func TestWriteMessageRejectsTooManyArgs(t *testing.T) {
	args := make([]wire.Field, maxArgs+1)
	for i := range args {
		args[i] = wire.U32(uint32(i))
	}
	var buf bytes.Buffer
	err := WriteMessage(&buf, Message{Type: TypeSuccess, Args: args})
	assert.Error(t, err)
}

func TestReadMessageRejectsWrongType(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteMessage(&buf, Message{Type: TypeSuccess, Args: []wire.Field{wire.U32(0), wire.U32(1)}}))
	_, err := ReadMessage(&buf, TypeArtwork, []ArgKind{ArgKindU32, ArgKindU32})
	assert.Error(t, err)
}

func TestReadMessageRejectsBadMagic(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteMessage(&buf, Message{Type: TypeSuccess, Args: []wire.Field{wire.U32(0), wire.U32(1)}}))
	b := buf.Bytes()
	b[0] ^= 0xFF
	_, err := ReadMessage(bytes.NewReader(b), TypeSuccess, []ArgKind{ArgKindU32, ArgKindU32})
	assert.Error(t, err)
}

func TestMessageRoundtripWithStringAndBinary(t *testing.T) {
	msg := Message{
		TransactionID: 9,
		Type:          TypeMenuItem,
		Args: []wire.Field{
			wire.U32(1), wire.U32(2), wire.U32(5), wire.NewString("Title"),
			wire.U32(0), wire.NewString(""), wire.U32(uint32(ItemTypeTrack)), wire.U32(0),
			wire.U32(7), wire.U32(0), wire.U32(0), wire.U32(0),
		},
	}
	var buf bytes.Buffer
	require.NoError(t, WriteMessage(&buf, msg))

	got, err := ReadMessage(&buf, TypeMenuItem, menuItemArgKinds)
	require.NoError(t, err)
	item, err := decodeMenuItem(got)
	require.NoError(t, err)
	assert.Equal(t, "Title", item.Label1)
	assert.Equal(t, ItemTypeTrack, item.ItemType)
	assert.EqualValues(t, 7, item.ArtworkID)
}
