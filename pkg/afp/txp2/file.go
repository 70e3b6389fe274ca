// Package txp2 reads and writes TXP2 asset containers: texture sheets,
// their named regions, animation timelines and geometry blobs, all indexed
// through PMAN name tables. Parsing walks the header feature bitfield to
// find each optional section; serializing lays the sections back out in the
// canonical order real files use, byte-exact for untouched containers.
//
// The heavyweight externals stay outside this package as capabilities on
// Options: the proprietary LZ77 codec, the DXT block decompressor and the
// codec for the embedded font tree.
package txp2

import (
	"encoding/binary"
	"fmt"
	"image"
	"image/draw"

	"github.com/hashicorp/go-hclog"
	"github.com/wz18207/bemaniutils-gfdm/internal/wire"
	"github.com/wz18207/bemaniutils-gfdm/pkg/afp"
	"github.com/wz18207/bemaniutils-gfdm/pkg/afp/ap2"
	afpErrors "github.com/wz18207/bemaniutils-gfdm/pkg/afp/errors"
	"github.com/wz18207/bemaniutils-gfdm/pkg/afp/geo"
)

// Options carries the logger and the external codec capabilities a parse
// may need. Every field may be nil; texture payload compression then fails
// with a descriptive error only if the file actually needs it, and DXT
// textures decode to an absent raster.
type Options struct {
	Logger     hclog.Logger
	Compressor afp.Compressor
	DXT        afp.DXTDecoder
	FontCodec  afp.TreeCodec
}

// File is one parsed TXP2 container. Section slices hold parse order;
// lookups by name go through the corresponding name tables, whose indices
// other sections reference.
type File struct {
	Endian   binary.ByteOrder
	Features uint32

	// Eight header bytes after the magic, version or date by the look of
	// them, preserved for the round trip.
	FileFlags []byte

	TextObfuscated bool
	LegacyLZ       bool
	ModernLZ       bool

	Textures   []*Texture
	TextureMap *NameTable

	Regions   []TextureRegion
	RegionMap *NameTable

	Timelines   []*ap2.Timeline
	TimelineMap *NameTable

	Shapes   []*geo.Shape
	ShapeMap *NameTable

	Unknown1    []Unknown1
	Unknown1Map *NameTable
	Unknown2    []Unknown2
	Unknown2Map *NameTable

	// FontBlob is the embedded font package exactly as stored; FontData is
	// its decoded tree when a FontCodec was supplied. Serialization writes
	// FontBlob back verbatim, so the decode is a read-only view.
	FontBlob []byte
	FontData any

	readOnly bool
	data     []byte
	cov      *wire.Coverage
	opts     Options
	log      hclog.Logger
}

// ReadOnly reports whether the file carried a section this codec cannot
// re-serialize safely. Read-only files reject Serialize.
func (f *File) ReadOnly() bool {
	return f.readOnly
}

// Uncovered returns the byte ranges of the container the parse never
// consumed.
func (f *File) Uncovered() []wire.Range {
	if f.cov == nil {
		return nil
	}
	return f.cov.Uncovered()
}

// TextureByName finds a texture by its entry name.
func (f *File) TextureByName(name string) (*Texture, bool) {
	for _, t := range f.Textures {
		if t.Name == name {
			return t, true
		}
	}
	return nil, false
}

// TimelineByName finds an animation timeline by its entry name.
func (f *File) TimelineByName(name string) (*ap2.Timeline, bool) {
	for _, t := range f.Timelines {
		if t.Name == name {
			return t, true
		}
	}
	return nil, false
}

// ShapeByName finds a geometry record by its entry name.
func (f *File) ShapeByName(name string) (*geo.Shape, bool) {
	for _, s := range f.Shapes {
		if s.Name == name {
			return s, true
		}
	}
	return nil, false
}

// RegionByName resolves a region through the region name table, returning
// its list index alongside the region itself.
func (f *File) RegionByName(name string) (TextureRegion, int, bool) {
	no, ok := f.RegionMap.Lookup(name)
	if !ok || no >= len(f.Regions) {
		return TextureRegion{}, 0, false
	}
	return f.Regions[no], no, true
}

// UpdateTexture replaces the pixels of the named texture. The new image
// must match the stored dimensions exactly; on any failure the container is
// left untouched.
func (f *File) UpdateTexture(name string, img image.Image) error {
	texture, ok := f.TextureByName(name)
	if !ok {
		return fmt.Errorf("%w: no texture named %q", afpErrors.ErrOutOfBounds, name)
	}

	bounds := img.Bounds()
	if bounds.Dx() != texture.Width || bounds.Dy() != texture.Height {
		return fmt.Errorf("%w: texture %q is %dx%d, replacement is %dx%d",
			afpErrors.ErrDimensionMismatch, name, texture.Width, texture.Height, bounds.Dx(), bounds.Dy())
	}

	f.log.Debug("updating texture", "name", name, "width", texture.Width, "height", texture.Height)
	return texture.setRaster(cloneNRGBA(img), f.Endian)
}

// UpdateSprite replaces the pixels of one named region within the named
// texture. The replacement must match the region's pixel dimensions; on any
// failure the container is left untouched.
func (f *File) UpdateSprite(textureName, spriteName string, img image.Image) error {
	textureNo, ok := f.TextureMap.Lookup(textureName)
	if !ok {
		return fmt.Errorf("%w: no texture named %q", afpErrors.ErrOutOfBounds, textureName)
	}

	// The sprite name alone is not enough: several textures may carry a
	// region under the same name, so the match must also land on the
	// requested texture.
	region, found := TextureRegion{}, false
	for no, name := range f.RegionMap.Entries {
		if name != spriteName || no >= len(f.Regions) {
			continue
		}
		if f.Regions[no].TextureNo == textureNo {
			region = f.Regions[no]
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("%w: no sprite named %q on texture %q", afpErrors.ErrOutOfBounds, spriteName, textureName)
	}

	rect := region.PixelRect()
	bounds := img.Bounds()
	if bounds.Dx() != rect.Dx() || bounds.Dy() != rect.Dy() {
		return fmt.Errorf("%w: sprite %q is %dx%d, replacement is %dx%d",
			afpErrors.ErrDimensionMismatch, spriteName, rect.Dx(), rect.Dy(), bounds.Dx(), bounds.Dy())
	}

	texture, ok := f.TextureByName(textureName)
	if !ok {
		return fmt.Errorf("%w: no texture named %q", afpErrors.ErrOutOfBounds, textureName)
	}
	if texture.Raster() == nil {
		return fmt.Errorf("%w: texture %q has no decoded raster to paste into", afpErrors.ErrUnsupported, textureName)
	}

	f.log.Debug("updating sprite", "texture", textureName, "sprite", spriteName,
		"left", rect.Min.X, "top", rect.Min.Y, "width", rect.Dx(), "height", rect.Dy())

	updated := cloneNRGBA(texture.Raster())
	draw.Draw(updated, rect, img, bounds.Min, draw.Src)
	return texture.setRaster(updated, f.Endian)
}
