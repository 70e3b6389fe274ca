package ap2

import (
	"testing"

	"github.com/stretchr/testify/require"
	afpErrors "github.com/wz18207/bemaniutils-gfdm/pkg/afp/errors"
)

func TestDescrambleReversesRuns(t *testing.T) {
	data := []byte{0, 1, 2, 3, 4, 5, 6, 7}

	// One word: no skip, type 1, single loop. Reverses the first two bytes.
	out, err := Descramble(data, []byte{0x00, 0x20, 0x00, 0x00})
	require.NoError(t, err)
	require.Equal(t, []byte{1, 0, 2, 3, 4, 5, 6, 7}, out)
	require.Equal(t, []byte{0, 1, 2, 3, 4, 5, 6, 7}, data, "input must not be mutated")

	// Skip two doubled positions first, then reverse one two-byte run.
	out, err = Descramble(data, []byte{0x02, 0x00, 0x00, 0x20, 0x00, 0x00})
	require.NoError(t, err)
	require.Equal(t, []byte{0, 1, 2, 3, 5, 4, 6, 7}, out)
}

func TestDescrambleWideRuns(t *testing.T) {
	data := make([]byte, 24)
	for i := range data {
		data[i] = byte(i)
	}

	// Two four-byte reversals back to back, then skip one doubled position
	// and reverse one eight-byte run.
	info := []byte{0x80, 0x40, 0x01, 0x60, 0x00, 0x00}
	out, err := Descramble(data, info)
	require.NoError(t, err)

	want := []byte{
		3, 2, 1, 0,
		7, 6, 5, 4,
		8, 9,
		17, 16, 15, 14, 13, 12, 11, 10,
		18, 19, 20, 21, 22, 23,
	}
	require.Equal(t, want, out)

	// Reversal is an involution, so the same info restores the input.
	back, err := Descramble(out, info)
	require.NoError(t, err)
	require.Equal(t, data, back)
}

// TestDescrambleLongSkip drives the type-0 word, which jumps the cursor 256
// bytes per loop without touching data.
func TestDescrambleLongSkip(t *testing.T) {
	data := make([]byte, 260)
	for i := range data {
		data[i] = byte(i)
	}

	// Type 0 with one loop, then one two-byte reversal at offset 256.
	out, err := Descramble(data, []byte{0x80, 0x00, 0x00, 0x20, 0x00, 0x00})
	require.NoError(t, err)
	require.Equal(t, data[:256], out[:256])
	require.Equal(t, []byte{data[257], data[256]}, out[256:258])
	require.Equal(t, data[258:], out[258:])
}

func TestDescrambleNoInfo(t *testing.T) {
	data := []byte{9, 8, 7}

	out, err := Descramble(data, nil)
	require.NoError(t, err)
	require.Equal(t, data, out)

	out[0] = 0
	require.Equal(t, byte(9), data[0], "output must be a copy")

	out, err = Descramble(data, []byte{0x00, 0x00})
	require.NoError(t, err)
	require.Equal(t, data, out)
}

func TestDescrambleErrors(t *testing.T) {
	// Swap types above 3 are not defined by the format.
	_, err := Descramble([]byte{1, 2, 3, 4}, []byte{0x00, 0x80, 0x00, 0x00})
	require.ErrorIs(t, err, afpErrors.ErrStructure)

	// A run that extends past the payload.
	_, err = Descramble([]byte{1}, []byte{0x00, 0x20, 0x00, 0x00})
	require.ErrorIs(t, err, afpErrors.ErrStructure)
}
