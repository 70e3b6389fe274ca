package txp2

import (
	"encoding/binary"
	"errors"
	"image"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/require"
	"github.com/wz18207/bemaniutils-gfdm/internal/wire"
	afpErrors "github.com/wz18207/bemaniutils-gfdm/pkg/afp/errors"
	"github.com/wz18207/bemaniutils-gfdm/pkg/codec"
)

// TestParseSingleTexture walks the whole decoded model of the canonical
// one-texture fixture.
func TestParseSingleTexture(t *testing.T) {
	logger := hclog.New(&hclog.LoggerOptions{
		Name:  "reader_test",
		Level: hclog.Trace,
	})

	f, err := Parse(singleTextureContainer(binary.LittleEndian), Options{Logger: logger})
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if f.Endian != binary.LittleEndian {
		t.Errorf("Endian = %v, want little", f.Endian)
	}
	wantFeatures := uint32(FeatureTextures | FeatureTextureMap | FeatureRegions | FeatureRegionMap)
	if f.Features != wantFeatures {
		t.Errorf("Features = %#x, want %#x", f.Features, wantFeatures)
	}
	require.Equal(t, []byte{1, 0, 0, 0, 0, 0, 0, 0}, f.FileFlags)
	if f.TextObfuscated || f.LegacyLZ || f.ModernLZ || f.ReadOnly() {
		t.Errorf("flags = obfuscated %v, legacy %v, modern %v, readonly %v, want all false",
			f.TextObfuscated, f.LegacyLZ, f.ModernLZ, f.ReadOnly())
	}

	require.Len(t, f.Textures, 1)
	tex := f.Textures[0]
	if tex.Name != "tex0" || tex.Width != 4 || tex.Height != 4 {
		t.Errorf("texture = %q %dx%d, want tex0 4x4", tex.Name, tex.Width, tex.Height)
	}
	if tex.Format != PixelFormatBGRA8888 {
		t.Errorf("Format = %#x, want %#x", tex.Format, PixelFormatBGRA8888)
	}
	require.Equal(t, fixtureTexturePixels(), tex.Raw)
	require.Nil(t, tex.Compressed)
	if tex.HeaderFlags1|tex.HeaderFlags2|tex.HeaderFlags3|tex.FormatFlags != 0 {
		t.Errorf("header flag words nonzero: %#x %#x %#x %#x",
			tex.HeaderFlags1, tex.HeaderFlags2, tex.HeaderFlags3, tex.FormatFlags)
	}

	img := tex.Raster()
	require.NotNil(t, img)
	for _, i := range []int{0, 5, 15} {
		r, g, b, a := img.Pix[i*4], img.Pix[i*4+1], img.Pix[i*4+2], img.Pix[i*4+3]
		if r != byte(i*4) || g != byte(i*8) || b != byte(i*16) || a != 0xFF {
			t.Errorf("pixel %d = %d,%d,%d,%d, want %d,%d,%d,255", i, r, g, b, a, i*4, i*8, i*16)
		}
	}

	require.Equal(t, []string{"tex0"}, f.TextureMap.Entries)
	require.Equal(t, []int{0}, f.TextureMap.Ordering)
	require.Equal(t, []string{"rgn0"}, f.RegionMap.Entries)

	require.Equal(t, []TextureRegion{{TextureNo: 0, Left: 0, Top: 0, Right: 8, Bottom: 8}}, f.Regions)
	if got := f.Regions[0].PixelRect(); got != image.Rect(0, 0, 4, 4) {
		t.Errorf("PixelRect = %v, want (0,0)-(4,4)", got)
	}

	region, no, ok := f.RegionByName("rgn0")
	if !ok || no != 0 || region != f.Regions[0] {
		t.Errorf("RegionByName = %v, %d, %v", region, no, ok)
	}
	if _, ok := f.TextureByName("missing"); ok {
		t.Error("TextureByName found a texture that does not exist")
	}
}

// TestParseBigEndian re-parses the fixture in its big-endian form.
func TestParseBigEndian(t *testing.T) {
	f, err := Parse(singleTextureContainer(binary.BigEndian), Options{})
	require.NoError(t, err)
	require.Equal(t, binary.BigEndian, f.Endian)
	require.Equal(t, []string{"tex0"}, f.TextureMap.Entries)
	require.Equal(t, fixtureTexturePixels(), f.Textures[0].Raw)
}

// TestParseCoverage pins the exact byte ranges the parser never consumes:
// the alignment gaps behind each string and the region list.
func TestParseCoverage(t *testing.T) {
	f, err := Parse(singleTextureContainer(binary.LittleEndian), Options{})
	require.NoError(t, err)

	want := []wire.Range{
		{Start: 65, End: 68},
		{Start: 78, End: 80},
		{Start: 165, End: 168},
	}
	require.Equal(t, want, f.Uncovered())
}

// TestParseRejectsDamage mutates single fields of the fixture and checks
// each lands on its dedicated error class.
func TestParseRejectsDamage(t *testing.T) {
	le := binary.LittleEndian
	testCases := []struct {
		name    string
		mutate  func(data []byte)
		wantErr error
	}{
		{
			name:    "bad magic",
			mutate:  func(d []byte) { copy(d, "XXXX") },
			wantErr: afpErrors.ErrInvalidMagic,
		},
		{
			name:    "declared length mismatch",
			mutate:  func(d []byte) { le.PutUint32(d[12:], 300) },
			wantErr: afpErrors.ErrLengthMismatch,
		},
		{
			name:    "unknown feature bit",
			mutate:  func(d []byte) { le.PutUint32(d[20:], le.Uint32(d[20:])|0x80000) },
			wantErr: afpErrors.ErrUnknownFeature,
		},
		{
			name:    "header length mismatch",
			mutate:  func(d []byte) { le.PutUint32(d[16:], 52) },
			wantErr: afpErrors.ErrStructure,
		},
		{
			name:    "region references missing texture",
			mutate:  func(d []byte) { le.PutUint16(d[68:], 5) },
			wantErr: afpErrors.ErrOutOfBounds,
		},
		{
			name:    "name table checksum",
			mutate:  func(d []byte) { le.PutUint32(d[108:], 0) },
			wantErr: afpErrors.ErrChecksumMismatch,
		},
		{
			name:    "name table entry number",
			mutate:  func(d []byte) { le.PutUint32(d[112:], 7) },
			wantErr: afpErrors.ErrOutOfBounds,
		},
		{
			name:    "zero name offset",
			mutate:  func(d []byte) { le.PutUint32(d[116:], 0) },
			wantErr: afpErrors.ErrBadStringOffset,
		},
		{
			name:    "name table magic",
			mutate:  func(d []byte) { copy(d[80:], "XXXX") },
			wantErr: afpErrors.ErrInvalidMagic,
		},
		{
			name:    "name table reserved word",
			mutate:  func(d []byte) { d[84] = 1 },
			wantErr: afpErrors.ErrReservedNotZero,
		},
		{
			name:    "texture payload length",
			mutate:  func(d []byte) { binary.BigEndian.PutUint32(d[172:], 64) },
			wantErr: afpErrors.ErrLengthMismatch,
		},
		{
			name:    "texture magic",
			mutate:  func(d []byte) { copy(d[176:], "XXXX") },
			wantErr: afpErrors.ErrInvalidMagic,
		},
		{
			name:    "texture reserved bytes",
			mutate:  func(d []byte) { d[176+24] = 1 },
			wantErr: afpErrors.ErrReservedNotZero,
		},
		{
			name:    "legacy compression",
			mutate:  func(d []byte) { le.PutUint32(d[20:], le.Uint32(d[20:])|FeatureLegacyLZ) },
			wantErr: afpErrors.ErrUnsupported,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			data := singleTextureContainer(binary.LittleEndian)
			tc.mutate(data)
			_, err := Parse(data, Options{})
			if !errors.Is(err, tc.wantErr) {
				t.Errorf("Parse error = %v, want %v", err, tc.wantErr)
			}
		})
	}
}

func TestParseTruncated(t *testing.T) {
	data := singleTextureContainer(binary.LittleEndian)

	if _, err := Parse(nil, Options{}); !errors.Is(err, afpErrors.ErrInvalidMagic) {
		t.Errorf("Parse(nil) = %v, want %v", err, afpErrors.ErrInvalidMagic)
	}
	if _, err := Parse(data[:20], Options{}); !errors.Is(err, afpErrors.ErrStructure) {
		t.Errorf("Parse(short) = %v, want %v", err, afpErrors.ErrStructure)
	}
}

// TestParseUnhandledSection checks that the never-observed header section
// is tolerated on read but blocks the rewrite.
func TestParseUnhandledSection(t *testing.T) {
	f, err := Parse(readOnlyContainer(), Options{})
	require.NoError(t, err)
	require.True(t, f.ReadOnly())

	_, err = f.Serialize()
	require.ErrorIs(t, err, afpErrors.ErrReadOnly)
}

// TestParseModernLZ flips the compression bit on the fixture. The envelope
// already matches what an identity codec produces, so the same bytes parse
// once a codec is supplied and refuse without one.
func TestParseModernLZ(t *testing.T) {
	features := uint32(FeatureTextures | FeatureTextureMap | FeatureRegions | FeatureRegionMap | FeatureModernLZ)

	data := singleTextureContainer(binary.LittleEndian)
	binary.LittleEndian.PutUint32(data[20:], features)

	_, err := Parse(data, Options{})
	require.ErrorIs(t, err, afpErrors.ErrNoCompressor)

	stored, err := codec.Get("stored")
	require.NoError(t, err)

	f, err := Parse(data, Options{Compressor: stored})
	require.NoError(t, err)
	require.True(t, f.ModernLZ)
	require.Equal(t, fixtureTexturePixels(), f.Textures[0].Raw)
	require.Len(t, f.Textures[0].Compressed, 128)

	// The rewrite reuses the cached compressed payload byte for byte.
	out, err := f.Serialize()
	require.NoError(t, err)
	require.Equal(t, data, out)
}
