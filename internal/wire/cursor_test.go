package wire

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCursorReadsLittleEndian(t *testing.T) {
	data := []byte{
		0x01,
		0xFF,
		0x02, 0x01,
		0xFE, 0xFF,
		0x04, 0x03, 0x02, 0x01,
		0xFB, 0xFF, 0xFF, 0xFF,
		0x00, 0x00, 0x80, 0x3F,
		0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0xE0, 0x3F,
	}
	c := NewCursor(data, binary.LittleEndian)

	require.Equal(t, uint8(1), c.U8())
	require.Equal(t, int8(-1), c.I8())
	require.Equal(t, uint16(0x0102), c.U16())
	require.Equal(t, int16(-2), c.I16())
	require.Equal(t, uint32(0x01020304), c.U32())
	require.Equal(t, int32(-5), c.I32())
	require.Equal(t, float32(1.0), c.F32())
	require.Equal(t, 0.5, c.F64())

	require.NoError(t, c.Err())
	require.Equal(t, len(data), c.Offset())
	require.Equal(t, 0, c.Remaining())
}

func TestCursorReadsBigEndian(t *testing.T) {
	data := []byte{0x12, 0x34, 0x56, 0x78, 0x3F, 0x80, 0x00, 0x00}
	c := NewCursor(data, binary.BigEndian)

	require.Equal(t, uint16(0x1234), c.U16())
	require.Equal(t, uint16(0x5678), c.U16())
	require.Equal(t, float32(1.0), c.F32())
	require.NoError(t, c.Err())
}

// TestCursorBytesCopies checks the returned slice does not alias the
// underlying buffer.
func TestCursorBytesCopies(t *testing.T) {
	data := []byte{1, 2, 3, 4}
	c := NewCursor(data, binary.LittleEndian)

	got := c.Bytes(4)
	require.Equal(t, []byte{1, 2, 3, 4}, got)

	got[0] = 9
	require.Equal(t, byte(1), data[0])
}

func TestCursorSeekSkipAlign(t *testing.T) {
	c := NewCursor(make([]byte, 16), binary.LittleEndian)

	c.Seek(5)
	require.Equal(t, 5, c.Offset())
	c.AlignTo(4)
	require.Equal(t, 8, c.Offset())
	c.AlignTo(4)
	require.Equal(t, 8, c.Offset())
	c.Skip(3)
	require.Equal(t, 11, c.Offset())
	require.Equal(t, 5, c.Remaining())

	// the end of the buffer is a valid position
	c.Seek(16)
	require.NoError(t, c.Err())
	require.Equal(t, 0, c.Remaining())
}

func TestCursorSeekOutOfRange(t *testing.T) {
	c := NewCursor(make([]byte, 4), binary.LittleEndian)
	c.Seek(5)
	require.ErrorIs(t, c.Err(), ErrShortBuffer)

	c = NewCursor(make([]byte, 4), binary.LittleEndian)
	c.Skip(-1)
	require.ErrorIs(t, c.Err(), ErrShortBuffer)
}

// TestCursorStickyError checks a failed read poisons the cursor: later
// reads return zero values without advancing.
func TestCursorStickyError(t *testing.T) {
	c := NewCursor([]byte{0x01, 0x02}, binary.LittleEndian)
	require.Equal(t, uint16(0x0201), c.U16())
	require.NoError(t, c.Err())

	if got := c.U32(); got != 0 {
		t.Errorf("U32 past end = %#x, want 0", got)
	}
	require.ErrorIs(t, c.Err(), ErrShortBuffer)

	require.Equal(t, uint8(0), c.U8())
	require.Nil(t, c.Bytes(1))
	require.Equal(t, 2, c.Offset())
	require.ErrorIs(t, c.Err(), ErrShortBuffer)
}

func TestAlign(t *testing.T) {
	testCases := []struct{ in, want int }{
		{0, 0}, {1, 4}, {3, 4}, {4, 4}, {5, 8}, {13, 16},
	}
	for _, tc := range testCases {
		if got := Align(tc.in); got != tc.want {
			t.Errorf("Align(%d) = %d, want %d", tc.in, got, tc.want)
		}
	}
}
