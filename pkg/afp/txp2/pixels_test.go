package txp2

import (
	"encoding/binary"
	"image"
	"testing"

	"github.com/stretchr/testify/require"
	afpErrors "github.com/wz18207/bemaniutils-gfdm/pkg/afp/errors"
)

func TestRep(t *testing.T) {
	testCases := []struct {
		v    uint8
		bits uint
		want uint8
	}{
		{0x00, 4, 0x00},
		{0xF0, 4, 0xFF},
		{0x80, 4, 0x88},
		{0xF8, 5, 0xFF},
		{0xFC, 6, 0xFF},
	}
	for _, tc := range testCases {
		if got := rep(tc.v, tc.bits); got != tc.want {
			t.Errorf("rep(%#02x, %d) = %#02x, want %#02x", tc.v, tc.bits, got, tc.want)
		}
	}
}

// TestRasterStability feeds arbitrary raw payloads through decode and
// encode for every format the mutation path supports. The channel
// replication on decode is inverted exactly by the truncation on encode, so
// the raw bytes must survive unchanged.
func TestRasterStability(t *testing.T) {
	formats := []struct {
		name string
		code int
		bpp  int
	}{
		{"rgb565", PixelFormatRGB565, 2},
		{"argb1555", PixelFormatARGB1555, 2},
		{"rgba4444", PixelFormatRGBA4444, 2},
		{"bgra8888", PixelFormatBGRA8888, 4},
	}
	orders := []struct {
		name  string
		order binary.ByteOrder
	}{
		{"le", binary.LittleEndian},
		{"be", binary.BigEndian},
	}

	for _, f := range formats {
		for _, o := range orders {
			t.Run(f.name+"/"+o.name, func(t *testing.T) {
				raw := make([]byte, 4*4*f.bpp)
				for i := range raw {
					raw[i] = byte(i*31 + 7)
				}

				img, err := decodeRaster(f.code, 4, 4, raw, o.order, nil)
				require.NoError(t, err)
				require.NotNil(t, img)

				out, err := encodeRaster(f.code, img, o.order)
				require.NoError(t, err)
				require.Equal(t, raw, out)
			})
		}
	}
}

func TestDecodeRasterSpotChecks(t *testing.T) {
	le := binary.LittleEndian

	t.Run("bgr888", func(t *testing.T) {
		img, err := decodeRaster(PixelFormatBGR888, 1, 1, []byte{1, 2, 3}, le, nil)
		require.NoError(t, err)
		require.Equal(t, []byte{3, 2, 1, 0xFF}, img.Pix)
	})

	t.Run("rgb888", func(t *testing.T) {
		img, err := decodeRaster(PixelFormatRGB888, 1, 1, []byte{1, 2, 3}, le, nil)
		require.NoError(t, err)
		require.Equal(t, []byte{1, 2, 3, 0xFF}, img.Pix)
	})

	t.Run("argb8888 stores alpha first", func(t *testing.T) {
		img, err := decodeRaster(PixelFormatARGB8888, 1, 1, []byte{10, 20, 30, 40}, le, nil)
		require.NoError(t, err)
		require.Equal(t, []byte{20, 30, 40, 10}, img.Pix)
	})

	t.Run("rgb565 saturates to full white", func(t *testing.T) {
		img, err := decodeRaster(PixelFormatRGB565, 1, 1, []byte{0xFF, 0xFF}, le, nil)
		require.NoError(t, err)
		require.Equal(t, []byte{0xFF, 0xFF, 0xFF, 0xFF}, img.Pix)
	})

	t.Run("argb1555 alpha is a single bit", func(t *testing.T) {
		word := make([]byte, 2)
		le.PutUint16(word, 0x7FFF)
		img, err := decodeRaster(PixelFormatARGB1555, 1, 1, word, le, nil)
		require.NoError(t, err)
		require.Equal(t, uint8(0), img.Pix[3])

		le.PutUint16(word, 0xFFFF)
		img, err = decodeRaster(PixelFormatARGB1555, 1, 1, word, le, nil)
		require.NoError(t, err)
		require.Equal(t, []byte{0xFF, 0xFF, 0xFF, 0xFF}, img.Pix)
	})

	t.Run("rgba4444 nibble order", func(t *testing.T) {
		word := make([]byte, 2)
		le.PutUint16(word, 0xF0F0)
		img, err := decodeRaster(PixelFormatRGBA4444, 1, 1, word, le, nil)
		require.NoError(t, err)
		require.Equal(t, []byte{0x00, 0xFF, 0x00, 0xFF}, img.Pix)
	})
}

// TestDecodeRasterBestEffort checks the deliberate soft failures: unknown
// formats and missing block decoders yield no raster instead of an error.
func TestDecodeRasterBestEffort(t *testing.T) {
	le := binary.LittleEndian

	img, err := decodeRaster(PixelFormatUnknown, 4, 4, make([]byte, 64), le, nil)
	require.NoError(t, err)
	require.Nil(t, img)

	img, err = decodeRaster(PixelFormatDXT1, 4, 4, make([]byte, 8), le, nil)
	require.NoError(t, err)
	require.Nil(t, img)

	img, err = decodeRaster(PixelFormatDXT5, 4, 4, make([]byte, 16), le, nil)
	require.NoError(t, err)
	require.Nil(t, img)
}

func TestDecodeRasterShortPayload(t *testing.T) {
	_, err := decodeRaster(PixelFormatBGRA8888, 4, 4, make([]byte, 10), binary.LittleEndian, nil)
	require.ErrorIs(t, err, afpErrors.ErrStructure)
}

func TestEncodeRasterUnsupported(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 1, 1))
	for _, code := range []int{PixelFormatRGB888, PixelFormatBGR888, PixelFormatARGB8888, PixelFormatDXT1, PixelFormatDXT5} {
		_, err := encodeRaster(code, img, binary.LittleEndian)
		require.ErrorIs(t, err, afpErrors.ErrEncodeUnsupported)
	}
}
