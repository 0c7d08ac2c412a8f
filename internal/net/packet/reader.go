package packet

import (
	"encoding/binary"
	"math"

	"golang.org/x/text/encoding/unicode"
)

var utf16le = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)

// Reader reads byte-aligned packet fields from a decrypted payload.
// The first two bytes are always the 16-bit opcode (spec.md §4.1 "the body
// is an opcode (16-bit integer, enumerated) followed by an opcode-specific
// payload").
type Reader struct {
	data []byte
	off  int
}

func NewReader(data []byte) *Reader {
	return &Reader{data: data, off: 2} // skip the 2-byte opcode
}

func (r *Reader) Opcode() uint16 {
	if len(r.data) < 2 {
		return 0
	}
	return binary.LittleEndian.Uint16(r.data[:2])
}

// ReadC reads 1 unsigned byte.
func (r *Reader) ReadC() byte {
	if r.off >= len(r.data) {
		return 0
	}
	v := r.data[r.off]
	r.off++
	return v
}

// ReadH reads 2 bytes as little-endian uint16.
func (r *Reader) ReadH() uint16 {
	if r.off+2 > len(r.data) {
		return 0
	}
	v := binary.LittleEndian.Uint16(r.data[r.off:])
	r.off += 2
	return v
}

// ReadD reads 4 bytes as little-endian int32.
func (r *Reader) ReadD() int32 {
	if r.off+4 > len(r.data) {
		return 0
	}
	v := int32(binary.LittleEndian.Uint32(r.data[r.off:]))
	r.off += 4
	return v
}

// ReadQ reads 8 bytes as little-endian int64 — the 64-bit byte-aligned
// fields spec.md §4.1 lists alongside the bit-packed widths.
func (r *Reader) ReadQ() int64 {
	if r.off+8 > len(r.data) {
		return 0
	}
	v := int64(binary.LittleEndian.Uint64(r.data[r.off:]))
	r.off += 8
	return v
}

// ReadF32 reads 4 bytes as an IEEE-754 float32, the encoding zone
// coordinates and orientations travel in.
func (r *Reader) ReadF32() float32 {
	return math.Float32frombits(uint32(r.ReadD()))
}

// ReadWS reads a uint16-length-prefixed UTF-16LE string and returns it as
// UTF-8. WildStar's wire strings are UTF-16LE, not the teacher's Big5 —
// replacing that codec is the re-homing DESIGN.md records for
// golang.org/x/text/encoding/unicode.
func (r *Reader) ReadWS() string {
	n := int(r.ReadH())
	raw := r.ReadBytes(n * 2)
	out, err := utf16le.NewDecoder().Bytes(raw)
	if err != nil {
		return ""
	}
	return string(out)
}

// ReadBytes reads n raw bytes.
func (r *Reader) ReadBytes(n int) []byte {
	if n <= 0 {
		return nil
	}
	if r.off+n > len(r.data) {
		if r.off >= len(r.data) {
			return nil
		}
		remaining := r.data[r.off:]
		r.off = len(r.data)
		return remaining
	}
	b := make([]byte, n)
	copy(b, r.data[r.off:r.off+n])
	r.off += n
	return b
}

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int {
	return len(r.data) - r.off
}
