package txp2

import (
	"encoding/binary"
	"fmt"
	"image"

	"github.com/wz18207/bemaniutils-gfdm/pkg/afp"
	afpErrors "github.com/wz18207/bemaniutils-gfdm/pkg/afp/errors"
)

// Texture is one TDXT entry: a named raster with its pixel payload kept in
// the exact raw form needed to write the file back out. Compressed holds the
// deflated payload exactly as found, so an untouched texture round-trips
// without recompressing; mutation clears it.
type Texture struct {
	Name   string
	Width  int
	Height int
	Format int

	// Round-tripped header words nobody has fully decoded.
	HeaderFlags1 uint32
	HeaderFlags2 uint32
	HeaderFlags3 uint32
	FormatFlags  uint32 // format word with the low format byte masked off

	Raw        []byte
	Compressed []byte

	img *image.NRGBA
}

// Raster returns the decoded image, or nil when the pixel format is unknown
// or its decoder capability was not supplied.
func (t *Texture) Raster() *image.NRGBA {
	return t.img
}

// parseTexture validates the 64-byte sub-header in blob and decodes the
// pixel payload behind it. blob is the full inflated texture structure,
// compressed the deflated bytes it came from (nil when stored raw).
func parseTexture(name string, blob []byte, compressed []byte, order binary.ByteOrder, dxt afp.DXTDecoder) (*Texture, error) {
	if len(blob) < TextureHeaderLen {
		return nil, fmt.Errorf("%w: texture %q too short for header", afpErrors.ErrStructure, name)
	}

	magic := blob[0:4]
	headerFlags1 := order.Uint32(blob[4:])
	headerFlags2 := order.Uint32(blob[8:])
	rawLength := int(order.Uint32(blob[12:]))
	width := int(order.Uint16(blob[16:]))
	height := int(order.Uint16(blob[18:]))
	fmtFlags := order.Uint32(blob[20:])
	expectedZero1 := order.Uint32(blob[24:])
	expectedZero2 := order.Uint32(blob[28:])

	want := TextureMagicLE
	if order == binary.BigEndian {
		want = TextureMagicBE
	}
	if string(magic) != string(want) {
		return nil, fmt.Errorf("%w: texture %q", afpErrors.ErrInvalidMagic, name)
	}
	if rawLength != len(blob) {
		return nil, fmt.Errorf("%w: texture %q declares %d bytes, has %d", afpErrors.ErrLengthMismatch, name, rawLength, len(blob))
	}
	// Only ever observed as zero across every known file; a nonzero value
	// means a layout this parser would silently misread.
	if expectedZero1|expectedZero2 != 0 {
		return nil, fmt.Errorf("%w: texture %q header", afpErrors.ErrReservedNotZero, name)
	}
	for _, b := range blob[32:44] {
		if b != 0 {
			return nil, fmt.Errorf("%w: texture %q header", afpErrors.ErrReservedNotZero, name)
		}
	}
	headerFlags3 := order.Uint32(blob[44:])
	for _, b := range blob[48:64] {
		if b != 0 {
			return nil, fmt.Errorf("%w: texture %q header", afpErrors.ErrReservedNotZero, name)
		}
	}

	fmtCode := int(fmtFlags & 0xFF)
	raw := append([]byte(nil), blob[TextureHeaderLen:]...)

	img, err := decodeRaster(fmtCode, width, height, raw, order, dxt)
	if err != nil {
		return nil, err
	}

	return &Texture{
		Name:         name,
		Width:        width,
		Height:       height,
		Format:       fmtCode,
		HeaderFlags1: headerFlags1,
		HeaderFlags2: headerFlags2,
		HeaderFlags3: headerFlags3,
		FormatFlags:  fmtFlags & 0xFFFFFF00,
		Raw:          raw,
		Compressed:   compressed,
		img:          img,
	}, nil
}

// headerBytes reconstructs the 64-byte sub-header plus payload.
func (t *Texture) headerBytes(order binary.ByteOrder) []byte {
	blob := make([]byte, TextureHeaderLen, TextureHeaderLen+len(t.Raw))

	magic := TextureMagicLE
	if order == binary.BigEndian {
		magic = TextureMagicBE
	}
	copy(blob[0:4], magic)
	order.PutUint32(blob[4:], t.HeaderFlags1)
	order.PutUint32(blob[8:], t.HeaderFlags2)
	order.PutUint32(blob[12:], uint32(TextureHeaderLen+len(t.Raw)))
	order.PutUint16(blob[16:], uint16(t.Width))
	order.PutUint16(blob[18:], uint16(t.Height))
	order.PutUint32(blob[20:], t.FormatFlags|uint32(t.Format&0xFF))
	order.PutUint32(blob[44:], t.HeaderFlags3)

	return append(blob, t.Raw...)
}

// setRaster replaces the decoded image and re-encodes the raw payload,
// dropping the stale compressed copy.
func (t *Texture) setRaster(img *image.NRGBA, order binary.ByteOrder) error {
	raw, err := encodeRaster(t.Format, img, order)
	if err != nil {
		return err
	}
	t.img = img
	t.Raw = raw
	t.Compressed = nil
	return nil
}

// cloneNRGBA copies src into a freshly allocated raster anchored at the
// origin, detaching mutations from caller-owned backing arrays.
func cloneNRGBA(src image.Image) *image.NRGBA {
	bounds := src.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	for y := 0; y < bounds.Dy(); y++ {
		for x := 0; x < bounds.Dx(); x++ {
			dst.Set(x, y, src.At(bounds.Min.X+x, bounds.Min.Y+y))
		}
	}
	return dst
}
