package wire

import (
	"encoding/binary"
	"fmt"
	"io"

	"golang.org/x/text/encoding/unicode"
)

// XDREncoder accumulates XDR-encoded bytes for an ONC-RPC request body.
//
// Only the subset of RFC 4506 that portmap/mount/NFSv2 (as used by this
// module) require is implemented: unsigned integers, fixed and
// variable-length opaque data, strings (UTF-16LE on this wire, unlike
// classic ASCII NFS — see spec.md §4.6), and, on the decode side only,
// booleans, from which callers walk XDR linked lists themselves.
type XDREncoder struct {
	buf []byte
}

// NewXDREncoder returns an empty encoder.
func NewXDREncoder() *XDREncoder {
	return &XDREncoder{}
}

// Bytes returns the accumulated encoded body.
func (e *XDREncoder) Bytes() []byte { return e.buf }

// PutUint32 appends a 4-byte big-endian unsigned integer.
func (e *XDREncoder) PutUint32(v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	e.buf = append(e.buf, b[:]...)
}

// PutOpaqueFixed appends fixed-length opaque data, zero-padded to a
// multiple of 4 bytes. The caller is responsible for knowing the length on
// decode; no length prefix is written.
func (e *XDREncoder) PutOpaqueFixed(data []byte) {
	e.buf = append(e.buf, data...)
	e.pad(len(data))
}

// PutOpaqueVar appends a length-prefixed, zero-padded opaque block.
func (e *XDREncoder) PutOpaqueVar(data []byte) {
	e.PutUint32(uint32(len(data)))
	e.PutOpaqueFixed(data)
}

// PutString appends a length-prefixed UTF-16LE string, zero-padded to a
// multiple of 4 bytes on emit (spec.md §4.6).
func (e *XDREncoder) PutString(s string) error {
	enc := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)
	encoded, err := enc.NewEncoder().Bytes([]byte(s))
	if err != nil {
		return fmt.Errorf("xdr: encode utf16: %w", err)
	}
	e.PutOpaqueVar(encoded)
	return nil
}

func (e *XDREncoder) pad(n int) {
	if rem := n % 4; rem != 0 {
		e.buf = append(e.buf, make([]byte, 4-rem)...)
	}
}

// XDRDecoder reads sequential XDR-encoded values from a byte slice.
type XDRDecoder struct {
	buf []byte
	pos int
}

// NewXDRDecoder wraps buf for sequential decoding.
func NewXDRDecoder(buf []byte) *XDRDecoder {
	return &XDRDecoder{buf: buf}
}

// Remaining reports how many bytes are left to decode.
func (d *XDRDecoder) Remaining() int { return len(d.buf) - d.pos }

// Uint32 reads a 4-byte big-endian unsigned integer.
func (d *XDRDecoder) Uint32() (uint32, error) {
	if d.Remaining() < 4 {
		return 0, io.ErrUnexpectedEOF
	}
	v := binary.BigEndian.Uint32(d.buf[d.pos:])
	d.pos += 4
	return v, nil
}

// OpaqueFixed reads n bytes of fixed opaque data, consuming XDR padding.
func (d *XDRDecoder) OpaqueFixed(n int) ([]byte, error) {
	if d.Remaining() < n {
		return nil, io.ErrUnexpectedEOF
	}
	data := d.buf[d.pos : d.pos+n]
	d.pos += n
	d.skipPad(n)
	return data, nil
}

// OpaqueVar reads a length-prefixed, padded opaque block.
func (d *XDRDecoder) OpaqueVar() ([]byte, error) {
	n, err := d.Uint32()
	if err != nil {
		return nil, err
	}
	return d.OpaqueFixed(int(n))
}

// String reads a length-prefixed UTF-16LE string (spec.md §4.6).
func (d *XDRDecoder) String() (string, error) {
	raw, err := d.OpaqueVar()
	if err != nil {
		return "", err
	}
	dec := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)
	decoded, err := dec.NewDecoder().Bytes(raw)
	if err != nil {
		return "", fmt.Errorf("xdr: decode utf16: %w", err)
	}
	return string(decoded), nil
}

// Bool reads an XDR boolean (encoded as a uint32, 0 or 1).
func (d *XDRDecoder) Bool() (bool, error) {
	v, err := d.Uint32()
	if err != nil {
		return false, err
	}
	return v != 0, nil
}

func (d *XDRDecoder) skipPad(n int) {
	if rem := n % 4; rem != 0 {
		d.pos += 4 - rem
	}
}
