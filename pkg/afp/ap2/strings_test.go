package ap2

import (
	"testing"

	"github.com/stretchr/testify/require"
	afpErrors "github.com/wz18207/bemaniutils-gfdm/pkg/afp/errors"
)

// scramblePool applies the storage transform to a plaintext pool: each byte
// gains a running key that starts at 128 and climbs by one per position.
func scramblePool(plain []byte) []byte {
	out := make([]byte, len(plain))
	for i, b := range plain {
		out[i] = byte((int(b) + 128 + i) & 0xFF)
	}
	return out
}

func TestDescrambleStringPool(t *testing.T) {
	plain := []byte("\x00main\x00obj\x00")
	data := scramblePool(plain)

	table, err := descrambleStringPool(data, 0, len(data))
	require.NoError(t, err)
	require.Equal(t, plain, data, "pool must be decoded in place")

	value, err := table.get(1)
	require.NoError(t, err)
	require.Equal(t, "main", value)

	value, err = table.get(6)
	require.NoError(t, err)
	require.Equal(t, "obj", value)

	// Offset zero is the reserved empty-string sentinel.
	value, err = table.get(0)
	require.NoError(t, err)
	require.Equal(t, "", value)

	// Offsets into the middle of a string do not exist.
	_, err = table.get(3)
	require.ErrorIs(t, err, afpErrors.ErrBadStringOffset)
}

func TestStringTableUnread(t *testing.T) {
	data := scramblePool([]byte("\x00main\x00obj\x00"))
	table, err := descrambleStringPool(data, 0, len(data))
	require.NoError(t, err)

	_, err = table.get(1)
	require.NoError(t, err)

	unread := table.unread()
	require.Len(t, unread, 1)
	require.Equal(t, PoolString{Offset: 6, Value: "obj"}, unread[0])
}

func TestDescrambleStringPoolErrors(t *testing.T) {
	// The pool region must sit inside the payload.
	_, err := descrambleStringPool(make([]byte, 4), 2, 8)
	require.ErrorIs(t, err, afpErrors.ErrStructure)

	// Every string must be terminated before the pool ends.
	_, err = descrambleStringPool(scramblePool([]byte("\x00ab")), 0, 3)
	require.ErrorIs(t, err, afpErrors.ErrStructure)

	// Offset zero is reserved, so a string may not start there.
	_, err = descrambleStringPool(scramblePool([]byte("x\x00")), 0, 2)
	require.ErrorIs(t, err, afpErrors.ErrStructure)
}
