package pkg

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/require"

	"github.com/wz18207/bemaniutils-gfdm/pkg/afp/txp2"
)

func testLogger() hclog.Logger {
	return hclog.New(&hclog.LoggerOptions{Name: "api_test", Level: hclog.Trace})
}

// sampleContainer builds a one-texture container with a name table, enough
// to drive the full save, open and verify paths.
func sampleContainer() *txp2.File {
	raw := make([]byte, 16)
	for i := range raw {
		raw[i] = byte(i * 9)
	}
	return &txp2.File{
		Endian:   binary.LittleEndian,
		Features: txp2.FeatureTextures | txp2.FeatureTextureMap,
		Textures: []*txp2.Texture{{
			Name:   "tex0",
			Width:  2,
			Height: 2,
			Format: txp2.PixelFormatBGRA8888,
			Raw:    raw,
		}},
		TextureMap: txp2.NewNameTable([]string{"tex0"}),
	}
}

func TestSaveAndOpenContainer(t *testing.T) {
	file := sampleContainer()
	path := filepath.Join(t.TempDir(), "sample.txp2")
	require.NoError(t, SaveContainer(file, path))

	got, err := OpenContainer(path, ContainerOptions{CodecName: "stored"})
	require.NoError(t, err)
	require.Len(t, got.Textures, 1)
	require.Equal(t, "tex0", got.Textures[0].Name)
	require.Equal(t, file.Textures[0].Raw, got.Textures[0].Raw)

	idx, ok := got.TextureMap.Lookup("tex0")
	require.True(t, ok)
	require.Equal(t, 0, idx)
}

func TestOpenContainerErrors(t *testing.T) {
	_, err := OpenContainer(filepath.Join(t.TempDir(), "missing.txp2"), ContainerOptions{})
	require.Error(t, err)
	require.Contains(t, err.Error(), "reading container")

	_, err = OpenContainerBytes(nil, ContainerOptions{CodecName: "nope"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown codec")
}

func TestVerifyContainer(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sample.txp2")
	require.NoError(t, SaveContainer(sampleContainer(), path))

	require.NoError(t, VerifyContainerWithLogger(path, ContainerOptions{}, testLogger()))
}

func TestVerifyContainerRejectsDamage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sample.txp2")
	require.NoError(t, SaveContainer(sampleContainer(), path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	copy(data, "XXXX")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	err = VerifyContainerWithLogger(path, ContainerOptions{}, testLogger())
	require.ErrorIs(t, err, ErrVerificationFailed)
}

// TestVerifyReadOnlyContainer checks a container with an unhandled header
// section passes verification with the rewrite check skipped.
func TestVerifyReadOnlyContainer(t *testing.T) {
	le := binary.LittleEndian
	data := make([]byte, 28)
	copy(data, txp2.MagicLE)
	le.PutUint32(data[12:], 28)
	le.PutUint32(data[16:], 28)
	le.PutUint32(data[20:], txp2.FeatureUnhandled)

	path := filepath.Join(t.TempDir(), "readonly.txp2")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	require.NoError(t, VerifyContainerWithLogger(path, ContainerOptions{}, testLogger()))
}

func TestStructureDiff(t *testing.T) {
	a := sampleContainer()
	require.Empty(t, structureDiff(a, a))

	b := sampleContainer()
	b.Features |= txp2.FeatureRegions
	b.Textures[0].Raw[0] ^= 0xFF

	diffs := structureDiff(a, b)
	require.Len(t, diffs, 2)
	require.Contains(t, diffs[0], "feature mask")
	require.Contains(t, diffs[1], "pixel payload changed")
}
