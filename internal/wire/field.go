// Package wire implements the PRO DJ LINK binary field codec: the typed,
// tagged fields used by the remote database protocol, plus the minimal XDR
// encoder/decoder the NFS client builds its ONC-RPC calls on.
package wire

import (
	"encoding/binary"
	"fmt"
	"io"

	"golang.org/x/text/encoding/unicode"
)

// Kind identifies the wire type of a field by its leading tag byte.
type Kind byte

const (
	KindU8     Kind = 0x0F
	KindU16    Kind = 0x10
	KindU32    Kind = 0x11
	KindBinary Kind = 0x14
	KindString Kind = 0x26
)

func (k Kind) String() string {
	switch k {
	case KindU8:
		return "u8"
	case KindU16:
		return "u16"
	case KindU32:
		return "u32"
	case KindBinary:
		return "binary"
	case KindString:
		return "string"
	default:
		return fmt.Sprintf("kind(%#02x)", byte(k))
	}
}

var utf16BE = unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM)

// Field is a single typed value as it travels on the wire.
type Field struct {
	kind Kind
	num  uint32
	bin  []byte
	str  string
}

// Kind reports the field's wire kind.
func (f Field) Kind() Kind { return f.kind }

// Uint32 returns the numeric value of a u8/u16/u32 field.
func (f Field) Uint32() uint32 { return f.num }

// Bytes returns the raw payload of a binary field.
func (f Field) Bytes() []byte { return f.bin }

// String returns the decoded value of a string field.
func (f Field) String() string { return f.str }

// U8 constructs a u8 field.
func U8(v uint8) Field { return Field{kind: KindU8, num: uint32(v)} }

// U16 constructs a u16 field.
func U16(v uint16) Field { return Field{kind: KindU16, num: uint32(v)} }

// U32 constructs a u32 field.
func U32(v uint32) Field { return Field{kind: KindU32, num: v} }

// Binary constructs a binary field.
func Binary(b []byte) Field { return Field{kind: KindBinary, bin: b} }

// NewString constructs a string field.
func NewString(s string) Field { return Field{kind: KindString, str: s} }

// ReadField reads one tagged field from r and fails if its tag does not
// match expected.
func ReadField(r io.Reader, expected Kind) (Field, error) {
	var tagBuf [1]byte
	if _, err := io.ReadFull(r, tagBuf[:]); err != nil {
		return Field{}, fmt.Errorf("wire: read tag: %w", err)
	}
	got := Kind(tagBuf[0])
	if got != expected {
		return Field{}, fmt.Errorf("wire: expected field kind %s, got %s", expected, got)
	}

	switch expected {
	case KindU8:
		var b [1]byte
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return Field{}, fmt.Errorf("wire: read u8: %w", err)
		}
		return Field{kind: KindU8, num: uint32(b[0])}, nil

	case KindU16:
		var b [2]byte
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return Field{}, fmt.Errorf("wire: read u16: %w", err)
		}
		return Field{kind: KindU16, num: uint32(binary.BigEndian.Uint16(b[:]))}, nil

	case KindU32:
		var b [4]byte
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return Field{}, fmt.Errorf("wire: read u32: %w", err)
		}
		return Field{kind: KindU32, num: binary.BigEndian.Uint32(b[:])}, nil

	case KindBinary:
		n, err := readU32(r)
		if err != nil {
			return Field{}, fmt.Errorf("wire: read binary length: %w", err)
		}
		buf := make([]byte, n)
		if n > 0 {
			if _, err := io.ReadFull(r, buf); err != nil {
				return Field{}, fmt.Errorf("wire: read binary payload: %w", err)
			}
		}
		return Field{kind: KindBinary, bin: buf}, nil

	case KindString:
		units, err := readU32(r)
		if err != nil {
			return Field{}, fmt.Errorf("wire: read string length: %w", err)
		}
		raw := make([]byte, int(units)*2)
		if units > 0 {
			if _, err := io.ReadFull(r, raw); err != nil {
				return Field{}, fmt.Errorf("wire: read string payload: %w", err)
			}
		}
		decoded, err := utf16BE.NewDecoder().Bytes(raw)
		if err != nil {
			return Field{}, fmt.Errorf("wire: decode utf16: %w", err)
		}
		s := string(decoded)
		// The terminating null is included in the on-wire length; strip it.
		s = trimTrailingNull(s)
		return Field{kind: KindString, str: s}, nil

	default:
		return Field{}, fmt.Errorf("wire: unknown field kind %s", expected)
	}
}

// WriteField writes one tagged field to w.
func WriteField(w io.Writer, f Field) error {
	if _, err := w.Write([]byte{byte(f.kind)}); err != nil {
		return fmt.Errorf("wire: write tag: %w", err)
	}

	switch f.kind {
	case KindU8:
		_, err := w.Write([]byte{byte(f.num)})
		return err

	case KindU16:
		var b [2]byte
		binary.BigEndian.PutUint16(b[:], uint16(f.num))
		_, err := w.Write(b[:])
		return err

	case KindU32:
		var b [4]byte
		binary.BigEndian.PutUint32(b[:], f.num)
		_, err := w.Write(b[:])
		return err

	case KindBinary:
		if err := writeU32(w, uint32(len(f.bin))); err != nil {
			return err
		}
		_, err := w.Write(f.bin)
		return err

	case KindString:
		encoded, err := utf16BE.NewEncoder().Bytes(appendTrailingNull(f.str))
		if err != nil {
			return fmt.Errorf("wire: encode utf16: %w", err)
		}
		units := len(encoded) / 2
		if err := writeU32(w, uint32(units)); err != nil {
			return err
		}
		_, err = w.Write(encoded)
		return err

	default:
		return fmt.Errorf("wire: unknown field kind %s", f.kind)
	}
}

func readU32(r io.Reader) (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b[:]), nil
}

func writeU32(w io.Writer, v uint32) error {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	_, err := w.Write(b[:])
	return err
}

func trimTrailingNull(s string) string {
	r := []rune(s)
	if len(r) > 0 && r[len(r)-1] == 0 {
		r = r[:len(r)-1]
	}
	return string(r)
}

func appendTrailingNull(s string) []byte {
	return []byte(s + "\x00")
}
