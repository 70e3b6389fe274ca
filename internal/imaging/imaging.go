// Package imaging encodes decoded texture rasters as image files and reads
// replacement images back in for mutation commands.
package imaging

import (
	"fmt"
	"image"
	"image/png"
	"io"

	"github.com/nfnt/resize"
	"golang.org/x/image/bmp"
)

// Format selects the output encoder.
type Format string

const (
	FormatPNG Format = "png"
	FormatBMP Format = "bmp"
)

// ParseFormat maps a user-supplied format name to a Format.
func ParseFormat(name string) (Format, error) {
	switch Format(name) {
	case FormatPNG, FormatBMP:
		return Format(name), nil
	}
	return "", fmt.Errorf("unknown image format %q", name)
}

// Ext returns the file extension for the format, dot included.
func (f Format) Ext() string {
	return "." + string(f)
}

// Encode writes img to w, optionally scaled down first so the longest side
// is at most thumb pixels (zero disables scaling).
func Encode(w io.Writer, img image.Image, format Format, thumb int) error {
	if thumb > 0 {
		img = Thumbnail(img, thumb)
	}
	switch format {
	case FormatPNG:
		return png.Encode(w, img)
	case FormatBMP:
		return bmp.Encode(w, img)
	}
	return fmt.Errorf("unknown image format %q", format)
}

// Thumbnail scales img down proportionally until its longest side fits in
// limit pixels. Images already small enough come back unchanged.
func Thumbnail(img image.Image, limit int) image.Image {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= limit && h <= limit {
		return img
	}
	if w >= h {
		return resize.Resize(uint(limit), 0, img, resize.Lanczos3)
	}
	return resize.Resize(0, uint(limit), img, resize.Lanczos3)
}

// Decode reads a PNG or BMP image. Both decoders are registered through the
// encoder imports above.
func Decode(r io.Reader) (image.Image, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("decoding image: %w", err)
	}
	return img, nil
}
