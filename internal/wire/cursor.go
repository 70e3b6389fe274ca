// Package wire holds the low-level primitives shared by the binary format
// packages: a bounds-checked byte cursor and a consumed-byte tracker.
package wire

import (
	"encoding/binary"
	"errors"
	"math"
)

// ErrShortBuffer is reported by Cursor.Err after any read past the end of
// the underlying data.
var ErrShortBuffer = errors.New("read past end of buffer")

// Cursor walks a byte slice in a fixed byte order. Reads past the end set a
// sticky error and return zero values, so a parse routine can issue a run of
// reads and check Err once at the end.
type Cursor struct {
	data  []byte
	off   int
	order binary.ByteOrder
	err   error
}

// NewCursor creates a cursor over data starting at offset 0.
func NewCursor(data []byte, order binary.ByteOrder) *Cursor {
	return &Cursor{data: data, order: order}
}

// Err returns the first read failure, or nil.
func (c *Cursor) Err() error {
	return c.err
}

// Offset returns the current read position.
func (c *Cursor) Offset() int {
	return c.off
}

// Remaining returns the number of unread bytes.
func (c *Cursor) Remaining() int {
	if c.off > len(c.data) {
		return 0
	}
	return len(c.data) - c.off
}

// Seek moves the read position to off.
func (c *Cursor) Seek(off int) {
	if off < 0 || off > len(c.data) {
		c.fail()
		return
	}
	c.off = off
}

// Skip advances the read position by n bytes.
func (c *Cursor) Skip(n int) {
	c.Seek(c.off + n)
}

// AlignTo advances the read position to the next multiple of n.
func (c *Cursor) AlignTo(n int) {
	if rem := c.off % n; rem != 0 {
		c.Skip(n - rem)
	}
}

func (c *Cursor) fail() {
	if c.err == nil {
		c.err = ErrShortBuffer
	}
}

func (c *Cursor) take(n int) []byte {
	if c.err != nil {
		return nil
	}
	if c.off+n > len(c.data) {
		c.fail()
		return nil
	}
	b := c.data[c.off : c.off+n]
	c.off += n
	return b
}

// Bytes reads the next n bytes.
func (c *Cursor) Bytes(n int) []byte {
	b := c.take(n)
	if b == nil {
		return nil
	}
	out := make([]byte, n)
	copy(out, b)
	return out
}

// U8 reads one unsigned byte.
func (c *Cursor) U8() uint8 {
	b := c.take(1)
	if b == nil {
		return 0
	}
	return b[0]
}

// I8 reads one signed byte.
func (c *Cursor) I8() int8 {
	return int8(c.U8())
}

// U16 reads an unsigned 16-bit word.
func (c *Cursor) U16() uint16 {
	b := c.take(2)
	if b == nil {
		return 0
	}
	return c.order.Uint16(b)
}

// I16 reads a signed 16-bit word.
func (c *Cursor) I16() int16 {
	return int16(c.U16())
}

// U32 reads an unsigned 32-bit word.
func (c *Cursor) U32() uint32 {
	b := c.take(4)
	if b == nil {
		return 0
	}
	return c.order.Uint32(b)
}

// I32 reads a signed 32-bit word.
func (c *Cursor) I32() int32 {
	return int32(c.U32())
}

// F32 reads an IEEE 754 single-precision float.
func (c *Cursor) F32() float32 {
	return math.Float32frombits(c.U32())
}

// F64 reads an IEEE 754 double-precision float.
func (c *Cursor) F64() float64 {
	b := c.take(8)
	if b == nil {
		return 0
	}
	return math.Float64frombits(c.order.Uint64(b))
}

// Align rounds off up to the next multiple of four, the universal padding
// unit of these formats.
func Align(off int) int {
	return (off + 3) &^ 3
}
