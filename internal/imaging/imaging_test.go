package imaging

import (
	"bytes"
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/require"
)

func gradientImage(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x * 7), G: uint8(y * 5), B: 0x40, A: 0xFF})
		}
	}
	return img
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("png")
	require.NoError(t, err)
	require.Equal(t, FormatPNG, f)

	f, err = ParseFormat("bmp")
	require.NoError(t, err)
	require.Equal(t, FormatBMP, f)

	_, err = ParseFormat("jpg")
	require.Error(t, err)
	require.Contains(t, err.Error(), `unknown image format "jpg"`)
}

func TestFormatExt(t *testing.T) {
	if got := FormatPNG.Ext(); got != ".png" {
		t.Errorf("FormatPNG.Ext() = %q, want %q", got, ".png")
	}
	if got := FormatBMP.Ext(); got != ".bmp" {
		t.Errorf("FormatBMP.Ext() = %q, want %q", got, ".bmp")
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	src := gradientImage(8, 6)

	for _, format := range []Format{FormatPNG, FormatBMP} {
		t.Run(string(format), func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, Encode(&buf, src, format, 0))

			got, err := Decode(&buf)
			require.NoError(t, err)
			require.Equal(t, src.Bounds(), got.Bounds())

			want := color.NRGBA{R: 3 * 7, G: 2 * 5, B: 0x40, A: 0xFF}
			require.Equal(t, want, color.NRGBAModel.Convert(got.At(3, 2)))
		})
	}
}

func TestEncodeUnknownFormat(t *testing.T) {
	var buf bytes.Buffer
	err := Encode(&buf, gradientImage(2, 2), Format("gif"), 0)
	require.Error(t, err)
}

func TestDecodeGarbage(t *testing.T) {
	_, err := Decode(bytes.NewReader([]byte("not an image")))
	require.Error(t, err)
	require.Contains(t, err.Error(), "decoding image")
}

func TestThumbnail(t *testing.T) {
	testCases := []struct {
		name         string
		w, h         int
		limit        int
		wantW, wantH int
	}{
		{"already small", 4, 4, 8, 4, 4},
		{"wide", 64, 16, 32, 32, 8},
		{"tall", 16, 64, 32, 8, 32},
		{"square", 64, 64, 32, 32, 32},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := Thumbnail(gradientImage(tc.w, tc.h), tc.limit)
			bounds := got.Bounds()
			if bounds.Dx() != tc.wantW || bounds.Dy() != tc.wantH {
				t.Errorf("Thumbnail bounds = %dx%d, want %dx%d", bounds.Dx(), bounds.Dy(), tc.wantW, tc.wantH)
			}
		})
	}
}

// TestEncodeScales drives the thumbnail path through Encode itself.
func TestEncodeScales(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, gradientImage(64, 16), FormatPNG, 32))

	got, err := Decode(&buf)
	require.NoError(t, err)
	require.Equal(t, image.Rect(0, 0, 32, 8), got.Bounds())
}
