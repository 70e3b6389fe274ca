package txp2

import (
	"encoding/binary"
	"fmt"
	"image"

	"github.com/wz18207/bemaniutils-gfdm/pkg/afp"
	afpErrors "github.com/wz18207/bemaniutils-gfdm/pkg/afp/errors"
)

// rep fills the low bits of an upscaled channel value with its own high bits
// so the maximum stored value maps to 255 instead of a truncated ceiling.
func rep(v uint8, bits uint) uint8 {
	return v | (v >> bits)
}

// decodeRaster converts raw pixel bytes into an RGBA raster. A format code
// the codec does not know yields a nil image without error; container
// structure is strict but pixel display is best effort. The same applies to
// the block-compressed formats when no DXT decoder was supplied.
func decodeRaster(fmtCode int, width, height int, raw []byte, order binary.ByteOrder, dxt afp.DXTDecoder) (*image.NRGBA, error) {
	count := width * height
	img := image.NewNRGBA(image.Rect(0, 0, width, height))

	checkLen := func(need int) error {
		if len(raw) < need {
			return fmt.Errorf("%w: format 0x%02x needs %d payload bytes, have %d", afpErrors.ErrStructure, fmtCode, need, len(raw))
		}
		return nil
	}

	switch fmtCode {
	case PixelFormatRGB565:
		if err := checkLen(count * 2); err != nil {
			return nil, err
		}
		for i := 0; i < count; i++ {
			pixel := order.Uint16(raw[i*2:])
			r := uint8(((pixel >> 11) & 0x1F) << 3)
			g := uint8(((pixel >> 5) & 0x3F) << 2)
			b := uint8((pixel & 0x1F) << 3)
			img.Pix[i*4+0] = rep(r, 5)
			img.Pix[i*4+1] = rep(g, 6)
			img.Pix[i*4+2] = rep(b, 5)
			img.Pix[i*4+3] = 0xFF
		}

	case PixelFormatRGB888:
		if err := checkLen(count * 3); err != nil {
			return nil, err
		}
		for i := 0; i < count; i++ {
			img.Pix[i*4+0] = raw[i*3+0]
			img.Pix[i*4+1] = raw[i*3+1]
			img.Pix[i*4+2] = raw[i*3+2]
			img.Pix[i*4+3] = 0xFF
		}

	case PixelFormatBGR888:
		if err := checkLen(count * 3); err != nil {
			return nil, err
		}
		for i := 0; i < count; i++ {
			img.Pix[i*4+0] = raw[i*3+2]
			img.Pix[i*4+1] = raw[i*3+1]
			img.Pix[i*4+2] = raw[i*3+0]
			img.Pix[i*4+3] = 0xFF
		}

	case PixelFormatARGB1555:
		if err := checkLen(count * 2); err != nil {
			return nil, err
		}
		for i := 0; i < count; i++ {
			pixel := order.Uint16(raw[i*2:])
			var a uint8
			if pixel&0x8000 != 0 {
				a = 0xFF
			}
			r := uint8(((pixel >> 10) & 0x1F) << 3)
			g := uint8(((pixel >> 5) & 0x1F) << 3)
			b := uint8((pixel & 0x1F) << 3)
			img.Pix[i*4+0] = rep(r, 5)
			img.Pix[i*4+1] = rep(g, 5)
			img.Pix[i*4+2] = rep(b, 5)
			img.Pix[i*4+3] = a
		}

	case PixelFormatARGB8888:
		if err := checkLen(count * 4); err != nil {
			return nil, err
		}
		for i := 0; i < count; i++ {
			img.Pix[i*4+0] = raw[i*4+1]
			img.Pix[i*4+1] = raw[i*4+2]
			img.Pix[i*4+2] = raw[i*4+3]
			img.Pix[i*4+3] = raw[i*4+0]
		}

	case PixelFormatRGBA4444:
		if err := checkLen(count * 2); err != nil {
			return nil, err
		}
		for i := 0; i < count; i++ {
			pixel := order.Uint16(raw[i*2:])
			b := uint8((pixel & 0xF) << 4)
			g := uint8(((pixel >> 4) & 0xF) << 4)
			r := uint8(((pixel >> 8) & 0xF) << 4)
			a := uint8(((pixel >> 12) & 0xF) << 4)
			img.Pix[i*4+0] = rep(r, 4)
			img.Pix[i*4+1] = rep(g, 4)
			img.Pix[i*4+2] = rep(b, 4)
			img.Pix[i*4+3] = rep(a, 4)
		}

	case PixelFormatBGRA8888:
		if err := checkLen(count * 4); err != nil {
			return nil, err
		}
		for i := 0; i < count; i++ {
			img.Pix[i*4+0] = raw[i*4+2]
			img.Pix[i*4+1] = raw[i*4+1]
			img.Pix[i*4+2] = raw[i*4+0]
			img.Pix[i*4+3] = raw[i*4+3]
		}

	case PixelFormatDXT1:
		if dxt == nil {
			return nil, nil
		}
		pixels, err := dxt.DecompressDXT1(raw, width, height, order == binary.BigEndian)
		if err != nil {
			return nil, fmt.Errorf("%w: dxt1: %v", afpErrors.ErrStructure, err)
		}
		if len(pixels) < count*4 {
			return nil, fmt.Errorf("%w: dxt1 decoder returned %d bytes, want %d", afpErrors.ErrStructure, len(pixels), count*4)
		}
		copy(img.Pix, pixels[:count*4])

	case PixelFormatDXT5:
		if dxt == nil {
			return nil, nil
		}
		pixels, err := dxt.DecompressDXT5(raw, width, height, order == binary.BigEndian)
		if err != nil {
			return nil, fmt.Errorf("%w: dxt5: %v", afpErrors.ErrStructure, err)
		}
		if len(pixels) < count*4 {
			return nil, fmt.Errorf("%w: dxt5 decoder returned %d bytes, want %d", afpErrors.ErrStructure, len(pixels), count*4)
		}
		copy(img.Pix, pixels[:count*4])

	default:
		// Includes PixelFormatUnknown: games reference it but never draw it.
		return nil, nil
	}

	return img, nil
}

// encodeRaster converts a raster back into raw pixel bytes. Only the formats
// the mutation path supports can be encoded; everything else, including the
// block-compressed ones, is refused.
func encodeRaster(fmtCode int, img *image.NRGBA, order binary.ByteOrder) ([]byte, error) {
	bounds := img.Bounds()
	count := bounds.Dx() * bounds.Dy()

	switch fmtCode {
	case PixelFormatRGB565:
		out := make([]byte, count*2)
		for i := 0; i < count; i++ {
			r, g, b := img.Pix[i*4+0], img.Pix[i*4+1], img.Pix[i*4+2]
			word := uint16(r>>3)<<11 | uint16(g>>2)<<5 | uint16(b>>3)
			order.PutUint16(out[i*2:], word)
		}
		return out, nil

	case PixelFormatARGB1555:
		out := make([]byte, count*2)
		for i := 0; i < count; i++ {
			r, g, b, a := img.Pix[i*4+0], img.Pix[i*4+1], img.Pix[i*4+2], img.Pix[i*4+3]
			var word uint16
			if a >= 128 {
				word = 0x8000
			}
			word |= uint16(r>>3)<<10 | uint16(g>>3)<<5 | uint16(b>>3)
			order.PutUint16(out[i*2:], word)
		}
		return out, nil

	case PixelFormatRGBA4444:
		out := make([]byte, count*2)
		for i := 0; i < count; i++ {
			r, g, b, a := img.Pix[i*4+0], img.Pix[i*4+1], img.Pix[i*4+2], img.Pix[i*4+3]
			word := uint16(b>>4) | uint16(g>>4)<<4 | uint16(r>>4)<<8 | uint16(a>>4)<<12
			order.PutUint16(out[i*2:], word)
		}
		return out, nil

	case PixelFormatBGRA8888:
		out := make([]byte, count*4)
		for i := 0; i < count; i++ {
			out[i*4+0] = img.Pix[i*4+2]
			out[i*4+1] = img.Pix[i*4+1]
			out[i*4+2] = img.Pix[i*4+0]
			out[i*4+3] = img.Pix[i*4+3]
		}
		return out, nil
	}

	return nil, fmt.Errorf("%w: format 0x%02x", afpErrors.ErrEncodeUnsupported, fmtCode)
}
