package geo

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/wz18207/bemaniutils-gfdm/internal/wire"
	"github.com/wz18207/bemaniutils-gfdm/pkg/afp"
	afpErrors "github.com/wz18207/bemaniutils-gfdm/pkg/afp/errors"
)

// GE2D blob magic, mirrored the same way as the container magic.
var (
	ShapeMagicLE = []byte("D2EG")
	ShapeMagicBE = []byte("GE2D")
)

const (
	shapeHeaderLen    = 52
	drawParamsLen     = 16
	drawModeTextured  = 4
	textureSlotUnused = 0xFF
)

// DrawParams flag bits, as far as they are understood.
const (
	DrawFlagInstantiable uint8 = 0x01
	DrawFlagTexture      uint8 = 0x02
	DrawFlagTextureColor uint8 = 0x04
	DrawFlagBlendColor   uint8 = 0x08
	DrawFlagNormalizeTex uint8 = 0x40
)

// DrawParams is one render pass over a shape: which texture region it
// samples, which vertex indices form its triangles, and an optional blend
// color.
type DrawParams struct {
	Flags    uint8
	Region   string
	Vertices []int
	Blend    *Color
}

func (d DrawParams) String() string {
	var bits []string
	if d.Flags&DrawFlagInstantiable != 0 {
		bits = append(bits, "(Instantiable)")
	}
	if d.Flags&DrawFlagTexture != 0 {
		bits = append(bits, "(Includes Texture)")
	}
	if d.Flags&DrawFlagTextureColor != 0 {
		bits = append(bits, "(Includes Texture Color)")
	}
	if d.Flags&DrawFlagBlendColor != 0 {
		bits = append(bits, "(Includes Blend Color)")
	}
	if d.Flags&DrawFlagNormalizeTex != 0 {
		bits = append(bits, "(Needs Tex Point Normalization)")
	}

	out := fmt.Sprintf("flags: %#x %s", d.Flags, strings.Join(bits, " "))
	if d.Flags&DrawFlagTexture != 0 {
		verts := make([]string, len(d.Vertices))
		for i, v := range d.Vertices {
			verts[i] = fmt.Sprintf("%d", v)
		}
		out += fmt.Sprintf(", region: %s, vertexes: %s", d.Region, strings.Join(verts, ", "))
	}
	if d.Flags&DrawFlagBlendColor != 0 && d.Blend != nil {
		out += fmt.Sprintf(", blend: %s", d.Blend)
	}
	return out
}

// Shape is one GE2D geometry blob: a triangle mesh with optional texture
// coordinates, per-point colors and render passes. The raw bytes are kept
// alongside the decoded view so a container round-trips byte for byte.
type Shape struct {
	Name string
	Data []byte

	// Vertex points outlining this shape.
	VertexPoints []Point

	// Texture points, used with the vertex chunks when a pass has a texture.
	TexPoints []Point

	// Colors for texture points, when present.
	TexColors []Color

	// Region names the draw passes select textures through.
	Labels []string

	// Render passes.
	DrawParams []DrawParams

	parsed bool
}

// NewShape wraps a named GE2D blob. Call Parse to decode it.
func NewShape(name string, data []byte) *Shape {
	return &Shape{Name: name, Data: data}
}

// Parsed reports whether Parse has decoded this shape.
func (s *Shape) Parsed() bool {
	return s.parsed
}

// Parse decodes the GE2D structure. The obfuscation flag comes from the
// owning container and applies to the region labels.
func (s *Shape) Parse(textObfuscated bool) error {
	if len(s.Data) < shapeHeaderLen {
		return fmt.Errorf("%w: geometry blob shorter than header", afpErrors.ErrStructure)
	}

	var order binary.ByteOrder
	switch {
	case bytes.Equal(s.Data[0:4], ShapeMagicLE):
		order = binary.LittleEndian
	case bytes.Equal(s.Data[0:4], ShapeMagicBE):
		order = binary.BigEndian
	default:
		return fmt.Errorf("%w: not a GE2D structure", afpErrors.ErrInvalidMagic)
	}

	c := wire.NewCursor(s.Data, order)
	c.Seek(4)
	c.Skip(8) // two version words, unvalidated

	if int(c.U32()) != len(s.Data) {
		return fmt.Errorf("%w: GE2D structure", afpErrors.ErrLengthMismatch)
	}
	if c.U32() != 0 {
		return fmt.Errorf("%w: GE2D flag word", afpErrors.ErrReservedNotZero)
	}

	vertexCount := int(c.U16())
	texCount := int(c.U16())
	colorCount := int(c.U16())
	labelCount := int(c.U16())
	renderParamsCount := int(c.U16())
	c.U16() // unused count

	vertexOffset := int(c.U32())
	texOffset := int(c.U32())
	colorOffset := int(c.U32())
	labelOffset := int(c.U32())
	renderParamsOffset := int(c.U32())
	if err := c.Err(); err != nil {
		return fmt.Errorf("%w: truncated GE2D header", afpErrors.ErrStructure)
	}

	vertexPoints, err := s.readPoints(c, vertexOffset, vertexCount)
	if err != nil {
		return err
	}
	texPoints, err := s.readPoints(c, texOffset, texCount)
	if err != nil {
		return err
	}

	var colors []Color
	if colorOffset != 0 {
		c.Seek(colorOffset)
		for i := 0; i < colorCount; i++ {
			rgba := c.U32()
			colors = append(colors, Color{
				A: float64(rgba&0xFF) / 255.0,
				B: float64((rgba>>8)&0xFF) / 255.0,
				G: float64((rgba>>16)&0xFF) / 255.0,
				R: float64((rgba>>24)&0xFF) / 255.0,
			})
		}
		if err := c.Err(); err != nil {
			return fmt.Errorf("%w: truncated GE2D color table", afpErrors.ErrStructure)
		}
	}

	var labels []string
	if labelOffset != 0 {
		for i := 0; i < labelCount; i++ {
			c.Seek(labelOffset + 4*i)
			namePtr := int(c.U32())
			if err := c.Err(); err != nil {
				return fmt.Errorf("%w: truncated GE2D label table", afpErrors.ErrStructure)
			}
			label, err := s.readLabel(namePtr, textObfuscated)
			if err != nil {
				return err
			}
			labels = append(labels, label)
		}
	}

	var drawParams []DrawParams
	if renderParamsOffset != 0 {
		for i := 0; i < renderParamsCount; i++ {
			c.Seek(renderParamsOffset + drawParamsLen*i)
			mode := c.U8()
			flags := c.U8()
			tex1 := c.U8()
			tex2 := c.U8()
			triangleCount := int(c.U16())
			c.U16() // unused
			rgba := c.U32()
			triangleOffset := int(c.U32())
			if err := c.Err(); err != nil {
				return fmt.Errorf("%w: truncated GE2D render parameters", afpErrors.ErrStructure)
			}

			if mode != drawModeTextured {
				return fmt.Errorf("%w: unexpected draw mode %d in GE2D structure", afpErrors.ErrStructure, mode)
			}
			if flags&DrawFlagTexture != 0 && len(labels) == 0 {
				return fmt.Errorf("%w: GE2D structure has a texture but no region labels", afpErrors.ErrStructure)
			}
			if flags&DrawFlagTexture != 0 && tex1 == textureSlotUnused {
				return fmt.Errorf("%w: GE2D structure requests a texture but no texture pointer present", afpErrors.ErrStructure)
			}
			if tex2 != textureSlotUnused {
				return fmt.Errorf("%w: GE2D structure requests a second texture", afpErrors.ErrUnsupported)
			}

			color := Color{
				R: float64(rgba&0xFF) / 255.0,
				G: float64((rgba>>8)&0xFF) / 255.0,
				B: float64((rgba>>16)&0xFF) / 255.0,
				A: float64((rgba>>24)&0xFF) / 255.0,
			}

			var vertices []int
			c.Seek(triangleOffset)
			for j := 0; j < triangleCount; j++ {
				vertices = append(vertices, int(c.U16()))
			}
			if err := c.Err(); err != nil {
				return fmt.Errorf("%w: truncated GE2D triangle list", afpErrors.ErrStructure)
			}

			params := DrawParams{Flags: flags}
			if flags&DrawFlagTexture != 0 {
				if int(tex1) >= len(labels) {
					return fmt.Errorf("%w: GE2D texture slot %d has no label", afpErrors.ErrOutOfBounds, tex1)
				}
				params.Region = labels[tex1]
			}
			if flags&(DrawFlagTexture|DrawFlagTextureColor) != 0 {
				params.Vertices = vertices
			}
			if flags&DrawFlagBlendColor != 0 {
				params.Blend = &color
			}
			drawParams = append(drawParams, params)
		}
	}

	s.VertexPoints = vertexPoints
	s.TexPoints = texPoints
	s.TexColors = colors
	s.Labels = labels
	s.DrawParams = drawParams
	s.parsed = true
	return nil
}

func (s *Shape) readPoints(c *wire.Cursor, offset, count int) ([]Point, error) {
	if offset == 0 {
		return nil, nil
	}
	c.Seek(offset)
	points := make([]Point, 0, count)
	for i := 0; i < count; i++ {
		x := c.F32()
		y := c.F32()
		points = append(points, Point{X: float64(x), Y: float64(y)})
	}
	if err := c.Err(); err != nil {
		return nil, fmt.Errorf("%w: truncated GE2D point table", afpErrors.ErrStructure)
	}
	return points, nil
}

func (s *Shape) readLabel(off int, obfuscated bool) (string, error) {
	end := off
	for {
		if end < 0 || end >= len(s.Data) {
			return "", fmt.Errorf("%w: unterminated GE2D label at offset 0x%x", afpErrors.ErrStructure, off)
		}
		if s.Data[end] == 0 {
			break
		}
		end++
	}
	return afp.DescrambleText(s.Data[off:end], obfuscated), nil
}

func (s *Shape) String() string {
	var lines []string
	for _, v := range s.VertexPoints {
		lines = append(lines, fmt.Sprintf("vertex point: %s", v))
	}
	for _, t := range s.TexPoints {
		lines = append(lines, fmt.Sprintf("tex point: %s", t))
	}
	for _, c := range s.TexColors {
		lines = append(lines, fmt.Sprintf("tex color: %s", c))
	}
	for _, d := range s.DrawParams {
		lines = append(lines, fmt.Sprintf("draw params: %s", d))
	}
	return strings.Join(lines, "\n")
}
