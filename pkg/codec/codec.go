// Package codec implements the binary row format and key encoding used by the
// repository layer. Rows are append-compatible: fields added to an entity are
// appended to its encoding, and a decoder reading an older row past its end
// yields zero values instead of failing, so newer code can read older stores.
package codec

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// ErrMalformed reports a payload that cannot be decoded. Callers map it into
// their own error taxonomy.
var ErrMalformed = errors.New("malformed payload")

// EncodeID renders a 64-bit identifier as an 8-byte big-endian key.
// Big-endian keeps byte order equal to numeric order under byte-sorted
// engines, so "first N in key order" means "lowest N ids".
func EncodeID(id uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], id)
	return b[:]
}

// DecodeID parses an 8-byte big-endian key.
func DecodeID(b []byte) (uint64, error) {
	if len(b) != 8 {
		return 0, fmt.Errorf("%w: id key must be 8 bytes, got %d", ErrMalformed, len(b))
	}
	return binary.BigEndian.Uint64(b), nil
}

// StringKey renders a string as a length-prefixed UTF-8 key.
func StringKey(s string) []byte {
	b := binary.AppendUvarint(nil, uint64(len(s)))
	return append(b, s...)
}

// Encoder serializes entity fields in declaration order.
type Encoder struct {
	buf []byte
}

// NewEncoder returns an empty encoder.
func NewEncoder() *Encoder {
	return &Encoder{}
}

// Bytes returns the accumulated encoding.
func (e *Encoder) Bytes() []byte {
	return e.buf
}

// Uint64 appends an unsigned integer.
func (e *Encoder) Uint64(v uint64) {
	e.buf = binary.AppendUvarint(e.buf, v)
}

// Int64 appends a signed integer.
func (e *Encoder) Int64(v int64) {
	e.buf = binary.AppendVarint(e.buf, v)
}

// Bool appends a boolean as a single byte.
func (e *Encoder) Bool(v bool) {
	if v {
		e.buf = append(e.buf, 1)
	} else {
		e.buf = append(e.buf, 0)
	}
}

// Float64 appends a float in IEEE 754 little-endian form.
func (e *Encoder) Float64(v float64) {
	e.buf = binary.LittleEndian.AppendUint64(e.buf, math.Float64bits(v))
}

// String appends a length-prefixed UTF-8 string.
func (e *Encoder) String(s string) {
	e.buf = binary.AppendUvarint(e.buf, uint64(len(s)))
	e.buf = append(e.buf, s...)
}

// StringSlice appends a counted list of strings.
func (e *Encoder) StringSlice(ss []string) {
	e.buf = binary.AppendUvarint(e.buf, uint64(len(ss)))
	for _, s := range ss {
		e.String(s)
	}
}

// Decoder deserializes entity fields in declaration order. Reading past the
// end of the payload yields zero values; a malformed payload latches an error
// reported by Err.
type Decoder struct {
	buf []byte
	off int
	err error
}

// NewDecoder wraps a row payload.
func NewDecoder(b []byte) *Decoder {
	return &Decoder{buf: b}
}

// Err returns the first malformed-data error encountered, if any.
func (d *Decoder) Err() error {
	return d.err
}

// exhausted reports whether the decoder has consumed the payload.
func (d *Decoder) exhausted() bool {
	return d.off >= len(d.buf)
}

func (d *Decoder) fail(what string) {
	if d.err == nil {
		d.err = fmt.Errorf("%w: truncated %s at offset %d", ErrMalformed, what, d.off)
	}
}

// Uint64 reads an unsigned integer, zero at end of payload.
func (d *Decoder) Uint64() uint64 {
	if d.err != nil || d.exhausted() {
		return 0
	}
	v, n := binary.Uvarint(d.buf[d.off:])
	if n <= 0 {
		d.fail("uvarint")
		return 0
	}
	d.off += n
	return v
}

// Int64 reads a signed integer, zero at end of payload.
func (d *Decoder) Int64() int64 {
	if d.err != nil || d.exhausted() {
		return 0
	}
	v, n := binary.Varint(d.buf[d.off:])
	if n <= 0 {
		d.fail("varint")
		return 0
	}
	d.off += n
	return v
}

// Bool reads a boolean, false at end of payload.
func (d *Decoder) Bool() bool {
	if d.err != nil || d.exhausted() {
		return false
	}
	v := d.buf[d.off]
	d.off++
	return v != 0
}

// Float64 reads a float, zero at end of payload.
func (d *Decoder) Float64() float64 {
	if d.err != nil || d.exhausted() {
		return 0
	}
	if len(d.buf)-d.off < 8 {
		d.fail("float64")
		return 0
	}
	v := binary.LittleEndian.Uint64(d.buf[d.off:])
	d.off += 8
	return math.Float64frombits(v)
}

// String reads a length-prefixed string, empty at end of payload.
func (d *Decoder) String() string {
	if d.err != nil || d.exhausted() {
		return ""
	}
	n := d.Uint64()
	if d.err != nil {
		return ""
	}
	if uint64(len(d.buf)-d.off) < n {
		d.fail("string")
		return ""
	}
	s := string(d.buf[d.off : d.off+int(n)])
	d.off += int(n)
	return s
}

// StringSlice reads a counted list of strings, nil at end of payload.
func (d *Decoder) StringSlice() []string {
	if d.err != nil || d.exhausted() {
		return nil
	}
	n := d.Uint64()
	if n == 0 || d.err != nil {
		return nil
	}
	ss := make([]string, 0, n)
	for i := uint64(0); i < n; i++ {
		ss = append(ss, d.String())
	}
	return ss
}
