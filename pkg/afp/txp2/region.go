package txp2

import (
	"fmt"
	"image"
)

// TextureRegion is a named rectangular slice of a texture. Coordinates are
// stored at twice their pixel value; games hardcode a divide by two when
// loading, and so does PixelRect.
type TextureRegion struct {
	TextureNo int
	Left      int
	Top       int
	Right     int
	Bottom    int
}

// PixelRect returns the region bounds in real pixels.
func (r TextureRegion) PixelRect() image.Rectangle {
	return image.Rect(r.Left/2, r.Top/2, r.Right/2, r.Bottom/2)
}

func (r TextureRegion) String() string {
	return fmt.Sprintf("texture %d, left %d, top %d, right %d, bottom %d",
		r.TextureNo, r.Left, r.Top, r.Right, r.Bottom)
}

// Unknown1 is one of the opaque 16-byte records behind feature bit 0x40: a
// name plus twelve bytes nobody has decoded. Preserved verbatim so files
// carrying them survive a round trip.
type Unknown1 struct {
	Name string
	Data []byte
}

// Unknown2 is one of the opaque 4-byte records behind feature bit 0x100.
type Unknown2 struct {
	Data []byte
}
