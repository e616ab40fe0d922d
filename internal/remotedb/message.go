// Package remotedb implements the per-device TCP remote-database protocol
// CDJs and rekordbox speak for metadata, artwork, beat grids, cue points and
// waveforms (spec.md §4.5), grounded on the framing and query catalog this
// specification documents and the connection-lifecycle shape of the
// IljaN-prolink-go/benardnicolas3-prolink-go remotedb reference clients.
package remotedb

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/cartomix/prolink/internal/wire"
)

// Magic is the message-frame magic constant (spec.md §6).
const Magic uint32 = 0x872349AE

// TransactionSentinel is the fixed transaction id used for the Introduce
// and Disconnect messages (spec.md §4.5).
const TransactionSentinel uint32 = 0xFFFFFFFE

// MessageType identifies a remote-database request or response.
type MessageType uint16

const (
	TypeIntroduce MessageType = 0x0000
	TypeDisconnect MessageType = 0x0100

	TypeRenderMenu MessageType = 0x3000

	TypeSuccess          MessageType = 0x4000
	TypeMenuHeader       MessageType = 0x4001
	TypeMenuItem         MessageType = 0x4101
	TypeMenuFooter       MessageType = 0x4201
	TypeArtwork          MessageType = 0x4002
	TypeWaveformPreview  MessageType = 0x4402
	TypeBeatGrid         MessageType = 0x4602
	TypeCueAndLoops      MessageType = 0x4702
	TypeWaveformDetailed MessageType = 0x4a02
	TypeAdvCueAndLoops   MessageType = 0x4e02
	TypeWaveformHD       MessageType = 0x4f02

	TypeGetMetadata        MessageType = 0x2002
	TypeGetTrackInfo       MessageType = 0x2102
	TypeGetGenericMetadata MessageType = 0x2202
	TypeGetArtwork         MessageType = 0x2003
	TypeGetWaveformPreview MessageType = 0x2004
	TypeGetCueAndLoops     MessageType = 0x2104
	TypeGetBeatGrid        MessageType = 0x2204
	TypeGetWaveformDetailed MessageType = 0x2904
	TypeGetAdvCueAndLoops  MessageType = 0x2b04
	TypeGetWaveformHD      MessageType = 0x2c04
	TypeMenuPlaylist       MessageType = 0x1105
)

// ArgKind is the compact per-argument type tag carried in a message's
// 12-byte arg-kind array — distinct from (and narrower than) wire.Kind,
// which tags each argument value itself (spec.md §4.5).
type ArgKind uint8

const (
	ArgKindNone   ArgKind = 0x00
	ArgKindString ArgKind = 0x02
	ArgKindBinary ArgKind = 0x03
	ArgKindU32    ArgKind = 0x06
)

const maxArgs = 12

// Message is one remote-database request or response frame (spec.md §4.5).
type Message struct {
	TransactionID uint32
	Type          MessageType
	Args          []wire.Field
}

func argKindFor(f wire.Field) ArgKind {
	switch f.Kind() {
	case wire.KindString:
		return ArgKindString
	case wire.KindBinary:
		return ArgKindBinary
	default:
		return ArgKindU32
	}
}

// WriteMessage serializes msg to w, applying the empty-binary quirk: a
// binary argument immediately preceded by a zero-valued u32 is elided from
// the wire (spec.md §4.1, §4.5, §8 invariant #1 / scenario S2).
func WriteMessage(w io.Writer, msg Message) error {
	if len(msg.Args) > maxArgs {
		return fmt.Errorf("remotedb: message has %d args, maximum is %d", len(msg.Args), maxArgs)
	}

	elide := elidedIndices(msg.Args)

	kinds := make([]byte, maxArgs)
	for i, arg := range msg.Args {
		if elide[i] {
			kinds[i] = byte(ArgKindNone)
			continue
		}
		kinds[i] = byte(argKindFor(arg))
	}

	header := make([]byte, 4+4+2+1)
	binary.BigEndian.PutUint32(header[0:4], Magic)
	binary.BigEndian.PutUint32(header[4:8], msg.TransactionID)
	binary.BigEndian.PutUint16(header[8:10], uint16(msg.Type))
	header[10] = byte(len(msg.Args))
	if _, err := w.Write(header); err != nil {
		return fmt.Errorf("remotedb: write header: %w", err)
	}

	if err := wire.WriteField(w, wire.Binary(kinds)); err != nil {
		return fmt.Errorf("remotedb: write arg-kind array: %w", err)
	}

	for i, arg := range msg.Args {
		if elide[i] {
			continue
		}
		if err := wire.WriteField(w, arg); err != nil {
			return fmt.Errorf("remotedb: write arg %d: %w", i, err)
		}
	}
	return nil
}

// elidedIndices reports, per argument, whether the empty-binary quirk
// drops it from the wire: a binary argument of zero length, immediately
// preceded by a u32 argument with value 0.
func elidedIndices(args []wire.Field) []bool {
	out := make([]bool, len(args))
	for i := 1; i < len(args); i++ {
		if args[i].Kind() != wire.KindBinary || len(args[i].Bytes()) != 0 {
			continue
		}
		prev := args[i-1]
		if prev.Kind() == wire.KindU32 && prev.Uint32() == 0 {
			out[i] = true
		}
	}
	return out
}

// ReadMessage decodes one frame from r. argKinds describes the expected
// shape of each argument slot, resolving the symmetric empty-binary quirk:
// an expected binary argument that was elided on the wire decodes as an
// empty buffer.
func ReadMessage(r io.Reader, expected MessageType, argKinds []ArgKind) (Message, error) {
	header := make([]byte, 4+4+2+1)
	if _, err := io.ReadFull(r, header); err != nil {
		return Message{}, fmt.Errorf("remotedb: read header: %w", err)
	}

	magic := binary.BigEndian.Uint32(header[0:4])
	if magic != Magic {
		return Message{}, fmt.Errorf("remotedb: bad magic %#08x", magic)
	}
	txID := binary.BigEndian.Uint32(header[4:8])
	msgType := MessageType(binary.BigEndian.Uint16(header[8:10]))
	if msgType != expected {
		return Message{}, fmt.Errorf("remotedb: expected message type %#04x, got %#04x", expected, msgType)
	}
	argCount := int(header[10])

	kindsField, err := wire.ReadField(r, wire.KindBinary)
	if err != nil {
		return Message{}, fmt.Errorf("remotedb: read arg-kind array: %w", err)
	}
	kinds := kindsField.Bytes()

	args := make([]wire.Field, 0, argCount)
	for i := 0; i < argCount; i++ {
		wantElided := false
		if i < len(argKinds) && argKinds[i] == ArgKindBinary && i < len(kinds) && ArgKind(kinds[i]) == ArgKindNone {
			wantElided = true
		}
		if wantElided {
			args = append(args, wire.Binary(nil))
			continue
		}

		var kind wire.Kind
		if i < len(kinds) {
			kind = kindFromArg(ArgKind(kinds[i]))
		} else if i < len(argKinds) {
			kind = kindFromArg(argKinds[i])
		} else {
			return Message{}, fmt.Errorf("remotedb: cannot determine kind for arg %d", i)
		}

		f, err := wire.ReadField(r, kind)
		if err != nil {
			return Message{}, fmt.Errorf("remotedb: read arg %d: %w", i, err)
		}
		args = append(args, f)
	}

	return Message{TransactionID: txID, Type: msgType, Args: args}, nil
}

func kindFromArg(k ArgKind) wire.Kind {
	switch k {
	case ArgKindString:
		return wire.KindString
	case ArgKindBinary:
		return wire.KindBinary
	default:
		return wire.KindU32
	}
}
