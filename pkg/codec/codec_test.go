package codec

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRegistryBuiltins(t *testing.T) {
	for _, name := range []string{"bzip2", "gzip", "lz4", "stored", "zstd"} {
		c, err := Get(name)
		require.NoError(t, err, name)
		require.Equal(t, name, c.Name())
	}
}

func TestGetUnknown(t *testing.T) {
	_, err := Get("nope")
	require.Error(t, err)
	require.Contains(t, err.Error(), `unknown codec: "nope"`)
}

func TestNamesSorted(t *testing.T) {
	names := Names()
	require.True(t, sort.StringsAreSorted(names))
	require.Subset(t, names, []string{"bzip2", "gzip", "lz4", "stored", "zstd"})
}

// TestRegisterIntegratorCodec drives the documented path for plugging in
// the real arcade compressor under the reserved name.
func TestRegisterIntegratorCodec(t *testing.T) {
	Register(&StoredCodec{BaseCodec{CodecName: NameLZ77}})
	t.Cleanup(func() { delete(Registry, NameLZ77) })

	c, err := Get(NameLZ77)
	require.NoError(t, err)
	require.Equal(t, NameLZ77, c.Name())
}

func TestRoundTrips(t *testing.T) {
	payload := make([]byte, 4096)
	for i := range payload {
		payload[i] = byte(i / 16)
	}

	for _, name := range Names() {
		t.Run(name, func(t *testing.T) {
			c, err := Get(name)
			require.NoError(t, err)

			stored, err := c.Compress(payload)
			require.NoError(t, err)
			restored, err := c.Decompress(stored)
			require.NoError(t, err)
			require.Equal(t, payload, restored)
		})
	}
}

// TestStoredCopies checks the identity codec does not alias its input.
func TestStoredCopies(t *testing.T) {
	c, err := Get("stored")
	require.NoError(t, err)

	in := []byte{1, 2, 3}
	out, err := c.Compress(in)
	require.NoError(t, err)

	in[0] = 9
	require.Equal(t, []byte{1, 2, 3}, out)
}
