package ap2

import (
	"crypto/md5"
	"encoding/binary"
	"fmt"

	"github.com/wz18207/bemaniutils-gfdm/internal/wire"
	afpErrors "github.com/wz18207/bemaniutils-gfdm/pkg/afp/errors"
	"github.com/wz18207/bemaniutils-gfdm/pkg/afp/geo"
)

// TagPayload is the decoded body of one directory tag.
type TagPayload interface {
	isTagPayload()
}

// Tag is one directory entry: its type, raw extent and decoded payload.
type Tag struct {
	Type    TagType
	Size    int
	Offset  int
	Payload TagPayload
}

// Frame schedules a run of tags: play Count tags starting at StartTag.
type Frame struct {
	StartTag int
	Count    int
}

// UnknownTagRef is one entry of the side table of named values nothing else
// references. Kept for diagnostics only.
type UnknownTagRef struct {
	Value uint16
	Name  string
}

// ShapeRef points at a geometry asset by numeric id. The asset's name on
// disk is derived from the timeline's exported name by convention.
type ShapeRef struct {
	Unknown uint16
	ShapeID uint16

	// Reference is the conventional asset name, exportedname_shapeN.
	Reference string
}

func (ShapeRef) isTagPayload() {}

// GeoFilename returns the hashed filename the asset archive stores this
// shape's geometry blob under.
func (s ShapeRef) GeoFilename() string {
	return fmt.Sprintf("%x", md5.Sum([]byte(s.Reference)))
}

// SpriteDef nests a child tag directory. Directory indexes the timeline's
// directory arena.
type SpriteDef struct {
	Flags     uint16
	SpriteID  uint16
	Directory int
}

func (SpriteDef) isTagPayload() {}

// FontDef names a font and lists the glyph heights it is prerendered at.
type FontDef struct {
	Unknown   uint16
	FontID    uint16
	Name      string
	XMLPrefix string
	Heights   []uint16
}

func (FontDef) isTagPayload() {}

// DoAction wraps a disassembled bytecode chunk run when the tag executes.
type DoAction struct {
	Bytecode *Chunk
}

func (DoAction) isTagPayload() {}

// RemoveObject clears the object at a depth. An id of zero removes whatever
// is there.
type RemoveObject struct {
	ObjectID uint16
	Depth    uint16
}

func (RemoveObject) isTagPayload() {}

// EditText is a text field definition.
type EditText struct {
	Flags      uint32
	TextID     uint16
	FontTagID  uint16
	FontHeight uint16
	Unknown1   string
	Unknowns   [4]uint16
	Rect       geo.Rectangle
	Color      geo.Color

	VariableName string
	DefaultText  *string
}

func (EditText) isTagPayload() {}

// EventTrigger is one scripted handler on a placed object: which events
// fire it, an optional key filter and the handler bytecode.
type EventTrigger struct {
	Flags    uint32
	KeyCode  uint8
	Bytecode *Chunk
}

// FilterEnvelope is the undeciphered filter section of a place-object
// record. Only the declared count and the raw interior bytes are kept.
type FilterEnvelope struct {
	Count int
	Raw   []byte
}

// PlaceObject creates or updates one object on the display list. Every
// field beyond the first three is optional, keyed off its own flag bit;
// absent fields stay nil.
type PlaceObject struct {
	Flags    uint32
	Depth    uint16
	ObjectID uint16

	SrcTagID  *uint16
	Unknown2  *uint16
	Name      *string
	Unknown3  *uint16
	BlendMode *uint8

	Transform *geo.Matrix
	MultColor *geo.Color
	AddColor  *geo.Color

	Events  []EventTrigger
	Filters *FilterEnvelope

	Point        *geo.Point
	ScaledPointA *geo.Point
	ScaledPointB *geo.Point
}

func (PlaceObject) isTagPayload() {}

// IsUpdate reports whether this record updates the object already at the
// depth instead of creating a fresh one.
func (p *PlaceObject) IsUpdate() bool {
	return p.Flags&placeFlagUpdate != 0
}

func (p *parser) parseTag(tagType TagType, dataOffset, size int) (TagPayload, error) {
	switch tagType {
	case TagShape:
		return p.parseShapeRef(dataOffset, size)
	case TagDefineSprite:
		return p.parseSpriteDef(dataOffset, size)
	case TagDefineFont:
		return p.parseFontDef(dataOffset)
	case TagDoAction:
		return p.parseDoAction(dataOffset, size)
	case TagPlaceObject:
		return p.parsePlaceObject(dataOffset, size)
	case TagRemoveObject:
		return p.parseRemoveObject(dataOffset, size)
	case TagDefineEditText:
		return p.parseEditText(dataOffset, size)
	}
	return nil, fmt.Errorf("%w: %s in tag directory", afpErrors.ErrUnknownTag, tagType)
}

func (p *parser) parseShapeRef(dataOffset, size int) (TagPayload, error) {
	if size != 4 {
		return nil, fmt.Errorf("%w: shape tag size %d", afpErrors.ErrStructure, size)
	}
	c := p.cursorAt(dataOffset)
	unknown := c.U16()
	shapeID := c.U16()
	if err := p.consume(c, dataOffset, 4); err != nil {
		return nil, err
	}
	return ShapeRef{
		Unknown:   unknown,
		ShapeID:   shapeID,
		Reference: fmt.Sprintf("%s_shape%d", p.t.ExportedName, shapeID),
	}, nil
}

func (p *parser) parseSpriteDef(dataOffset, size int) (TagPayload, error) {
	c := p.cursorAt(dataOffset)
	flags := c.U16()
	spriteID := c.U16()
	if err := p.consume(c, dataOffset, 4); err != nil {
		return nil, err
	}

	subtagsOffset := dataOffset + 4
	if flags&1 != 0 {
		// New-style: the directory sits behind a relative pointer.
		rel := int(c.U32())
		if err := p.consume(c, dataOffset+4, 4); err != nil {
			return nil, err
		}
		subtagsOffset = rel + dataOffset
	}

	dir, err := p.parseDirectory(subtagsOffset)
	if err != nil {
		return nil, err
	}
	return SpriteDef{Flags: flags, SpriteID: spriteID, Directory: dir}, nil
}

func (p *parser) parseFontDef(dataOffset int) (TagPayload, error) {
	c := p.cursorAt(dataOffset)
	unknown := c.U16()
	fontID := c.U16()
	nameOffset := c.U16()
	xmlPrefixOffset := c.U16()
	heightsOffset := int(c.U16())
	heightsCount := int(c.U16())
	if err := p.consume(c, dataOffset, 12); err != nil {
		return nil, err
	}

	name, err := p.getString(int(nameOffset))
	if err != nil {
		return nil, err
	}
	xmlPrefix, err := p.getString(int(xmlPrefixOffset))
	if err != nil {
		return nil, err
	}

	font := FontDef{
		Unknown:   unknown,
		FontID:    fontID,
		Name:      name,
		XMLPrefix: xmlPrefix,
	}
	for i := 0; i < heightsCount; i++ {
		entryOffset := dataOffset + 12 + heightsOffset*2 + i*2
		c.Seek(entryOffset)
		height := c.U16()
		if err := p.consume(c, entryOffset, 2); err != nil {
			return nil, err
		}
		font.Heights = append(font.Heights, height)
	}
	return font, nil
}

func (p *parser) parseDoAction(dataOffset, size int) (TagPayload, error) {
	if dataOffset+size > len(p.data) {
		return nil, fmt.Errorf("%w: action tag runs past end of timeline", afpErrors.ErrStructure)
	}
	chunk, err := disassemble(p.data[dataOffset:dataOffset+size], nil, p.table)
	if err != nil {
		return nil, err
	}
	if err := p.cov.Mark(dataOffset, size); err != nil {
		return nil, fmt.Errorf("%w: %v", afpErrors.ErrStructure, err)
	}
	return DoAction{Bytecode: chunk}, nil
}

func (p *parser) parseRemoveObject(dataOffset, size int) (TagPayload, error) {
	if size != 4 {
		return nil, fmt.Errorf("%w: remove tag size %d", afpErrors.ErrStructure, size)
	}
	c := p.cursorAt(dataOffset)
	objectID := c.U16()
	depth := c.U16()
	if err := p.consume(c, dataOffset, 4); err != nil {
		return nil, err
	}
	return RemoveObject{ObjectID: objectID, Depth: depth}, nil
}

func (p *parser) parseEditText(dataOffset, size int) (TagPayload, error) {
	if size != editTextLen {
		return nil, fmt.Errorf("%w: edit text tag size %d", afpErrors.ErrStructure, size)
	}
	c := p.cursorAt(dataOffset)
	flags := c.U32()
	textID := c.U16()
	fontTagID := c.U16()
	fontHeight := c.U16()
	unknownStrOffset := c.U16()
	var unknowns [4]uint16
	for i := range unknowns {
		unknowns[i] = c.U16()
	}
	rgba := c.U32()
	f1 := c.I32()
	f2 := c.I32()
	f3 := c.I32()
	f4 := c.I32()
	variableNameOffset := c.U16()
	defaultTextOffset := c.U16()
	if err := p.consume(c, dataOffset, editTextLen); err != nil {
		return nil, err
	}

	unknownStr, err := p.getString(int(unknownStrOffset))
	if err != nil {
		return nil, err
	}
	variableName, err := p.getString(int(variableNameOffset))
	if err != nil {
		return nil, err
	}

	text := EditText{
		Flags:      flags,
		TextID:     textID,
		FontTagID:  fontTagID,
		FontHeight: fontHeight,
		Unknown1:   unknownStr,
		Unknowns:   unknowns,
		Rect: geo.Rectangle{
			Left:   float64(f1) / 20.0,
			Top:    float64(f2) / 20.0,
			Bottom: float64(f3) / 20.0,
			Right:  float64(f4) / 20.0,
		},
		Color: geo.Color{
			R: float64(rgba&0xFF) / 255.0,
			G: float64((rgba>>8)&0xFF) / 255.0,
			B: float64((rgba>>16)&0xFF) / 255.0,
			A: float64((rgba>>24)&0xFF) / 255.0,
		},
		VariableName: variableName,
	}
	if flags&0x80 != 0 {
		defaultText, err := p.getString(int(defaultTextOffset))
		if err != nil {
			return nil, err
		}
		text.DefaultText = &defaultText
	}
	return text, nil
}

func (p *parser) parsePlaceObject(dataOffset, size int) (TagPayload, error) {
	if dataOffset+size > len(p.data) {
		return nil, fmt.Errorf("%w: place tag runs past end of timeline", afpErrors.ErrStructure)
	}
	record := p.data[dataOffset : dataOffset+size]
	c := wire.NewCursor(record, binary.LittleEndian)

	place := PlaceObject{}
	place.Flags = c.U32()
	place.Depth = c.U16()
	place.ObjectID = c.U16()
	if err := p.consume(c, dataOffset, 8); err != nil {
		return nil, err
	}

	unhandled := place.Flags

	readU16 := func(bit uint32) (*uint16, error) {
		if place.Flags&bit == 0 {
			return nil, nil
		}
		unhandled &^= bit
		at := c.Offset()
		v := c.U16()
		if err := p.consume(c, dataOffset+at, 2); err != nil {
			return nil, err
		}
		return &v, nil
	}

	var err error
	if place.SrcTagID, err = readU16(placeFlagSrcTag); err != nil {
		return nil, err
	}
	if place.Unknown2, err = readU16(placeFlagUnknown2); err != nil {
		return nil, err
	}
	if place.Flags&placeFlagName != 0 {
		unhandled &^= placeFlagName
		at := c.Offset()
		nameOffset := c.U16()
		if err := p.consume(c, dataOffset+at, 2); err != nil {
			return nil, err
		}
		name, err := p.getString(int(nameOffset))
		if err != nil {
			return nil, err
		}
		place.Name = &name
	}
	if place.Unknown3, err = readU16(placeFlagUnknown3); err != nil {
		return nil, err
	}
	if place.Flags&placeFlagBlend != 0 {
		unhandled &^= placeFlagBlend
		at := c.Offset()
		blend := c.U8()
		if err := p.consume(c, dataOffset+at, 1); err != nil {
			return nil, err
		}
		place.BlendMode = &blend
	}

	// The optional half-words above can leave the cursor misaligned.
	if misalignment := c.Offset() & 3; misalignment > 0 {
		catchup := 4 - misalignment
		at := c.Offset()
		c.Skip(catchup)
		if err := p.consume(c, dataOffset+at, catchup); err != nil {
			return nil, err
		}
	}

	transform := geo.Identity()
	haveTransform := false

	if place.Flags&placeFlagMatrixScale != 0 {
		unhandled &^= placeFlagMatrixScale
		at := c.Offset()
		a := c.U32()
		d := c.U32()
		if err := p.consume(c, dataOffset+at, 8); err != nil {
			return nil, err
		}
		transform.A = float64(a) * 0.0009765625
		transform.D = float64(d) * 0.0009765625
		haveTransform = true
	}
	if place.Flags&placeFlagMatrixRotate != 0 {
		unhandled &^= placeFlagMatrixRotate
		at := c.Offset()
		b := c.U32()
		cc := c.U32()
		if err := p.consume(c, dataOffset+at, 8); err != nil {
			return nil, err
		}
		transform.B = float64(b) * 0.0009765625
		transform.C = float64(cc) * 0.0009765625
		haveTransform = true
	}
	if place.Flags&placeFlagMatrixOffset != 0 {
		unhandled &^= placeFlagMatrixOffset
		at := c.Offset()
		tx := c.U32()
		c.U32()
		if err := p.consume(c, dataOffset+at, 8); err != nil {
			return nil, err
		}
		// Both components come from the first word. The game reads it this
		// way, so the quirk is preserved rather than corrected.
		transform.TX = float64(tx) / 20.0
		transform.TY = float64(tx) / 20.0
		haveTransform = true
	}
	if haveTransform {
		place.Transform = &transform
	}

	readWideColor := func(bit uint32) (*geo.Color, error) {
		if place.Flags&bit == 0 {
			return nil, nil
		}
		unhandled &^= bit
		at := c.Offset()
		r := c.U16()
		g := c.U16()
		b := c.U16()
		a := c.U16()
		if err := p.consume(c, dataOffset+at, 8); err != nil {
			return nil, err
		}
		return &geo.Color{
			R: float64(r) * 0.003921569,
			G: float64(g) * 0.003921569,
			B: float64(b) * 0.003921569,
			A: float64(a) * 0.003921569,
		}, nil
	}
	readPackedColor := func(bit uint32) (*geo.Color, error) {
		if place.Flags&bit == 0 {
			return nil, nil
		}
		unhandled &^= bit
		at := c.Offset()
		rgba := c.U32()
		if err := p.consume(c, dataOffset+at, 4); err != nil {
			return nil, err
		}
		return &geo.Color{
			R: float64((rgba>>24)&0xFF) * 0.003921569,
			G: float64((rgba>>16)&0xFF) * 0.003921569,
			B: float64((rgba>>8)&0xFF) * 0.003921569,
			A: float64(rgba&0xFF) * 0.003921569,
		}, nil
	}

	if color, err := readWideColor(placeFlagColorWide); err != nil {
		return nil, err
	} else if color != nil {
		place.MultColor = color
	}
	if color, err := readWideColor(placeFlagAddColorWide); err != nil {
		return nil, err
	} else if color != nil {
		place.AddColor = color
	}
	if color, err := readPackedColor(placeFlagColorPacked); err != nil {
		return nil, err
	} else if color != nil {
		place.MultColor = color
	}
	if color, err := readPackedColor(placeFlagAddColorPack); err != nil {
		return nil, err
	} else if color != nil {
		place.AddColor = color
	}

	if place.Flags&placeFlagEvents != 0 {
		unhandled &^= placeFlagEvents
		events, err := p.parseEventTriggers(record, c, dataOffset)
		if err != nil {
			return nil, err
		}
		place.Events = events
	}

	if place.Flags&placeFlagFilters != 0 {
		unhandled &^= placeFlagFilters
		at := c.Offset()
		count := int(c.U16())
		filterSize := int(c.U16())
		if err := p.consume(c, dataOffset+at, 4); err != nil {
			return nil, err
		}
		if at+filterSize > len(record) {
			return nil, fmt.Errorf("%w: filter section runs past place record", afpErrors.ErrStructure)
		}
		envelope := &FilterEnvelope{Count: count}
		if filterSize > 4 {
			envelope.Raw = append([]byte(nil), record[at+4:at+filterSize]...)
		}
		place.Filters = envelope
		c.Seek(at + filterSize)
	}

	if place.Flags&placeFlagPointFloat != 0 {
		unhandled &^= placeFlagPointFloat
		at := c.Offset()
		x := c.F32()
		y := c.F32()
		if err := p.consume(c, dataOffset+at, 8); err != nil {
			return nil, err
		}
		place.Point = &geo.Point{X: float64(x) / 20.0, Y: float64(y) / 20.0}
	}
	if place.Flags&placeFlagPointZero != 0 {
		unhandled &^= placeFlagPointZero
		place.Point = &geo.Point{}
	}

	readScaledPoint := func(bit uint32) (*geo.Point, error) {
		if place.Flags&bit == 0 {
			return nil, nil
		}
		unhandled &^= bit
		at := c.Offset()
		x := c.U16()
		y := c.U16()
		if err := p.consume(c, dataOffset+at, 4); err != nil {
			return nil, err
		}
		const scale = 3.051758e-05
		return &geo.Point{X: float64(x) * scale, Y: float64(y) * scale}, nil
	}
	if place.ScaledPointA, err = readScaledPoint(placeFlagPointScaledA); err != nil {
		return nil, err
	}
	if place.ScaledPointB, err = readScaledPoint(placeFlagPointScaledB); err != nil {
		return nil, err
	}

	unhandled &^= placeFlagHousekeeping
	if unhandled != 0 {
		return nil, fmt.Errorf("%w: place-object flag bits %#x", afpErrors.ErrUnsupported, unhandled)
	}
	if c.Offset() < size {
		return nil, fmt.Errorf("%w: %d bytes left unconsumed in place-object record", afpErrors.ErrOutOfBounds, size-c.Offset())
	}
	if c.Offset() != size {
		return nil, fmt.Errorf("%w: place-object record overran its declared size", afpErrors.ErrStructure)
	}
	return place, nil
}

// parseEventTriggers decodes the event table of a place-object record. The
// cursor sits at the table's 8-byte header; each event's bytecode length is
// the gap to the next event's bytecode or to the table's declared end.
func (p *parser) parseEventTriggers(record []byte, c *wire.Cursor, dataOffset int) ([]EventTrigger, error) {
	tableStart := c.Offset()
	eventFlags := c.U32()
	eventSize := int(c.U32())
	if err := p.consume(c, dataOffset+tableStart, 8); err != nil {
		return nil, err
	}

	var events []EventTrigger
	if eventFlags != 0 {
		c.U16()
		count := int(c.U16())
		if err := p.consume(c, dataOffset+tableStart+8, 4); err != nil {
			return nil, err
		}

		// First pass gathers every handler's bytecode start so lengths can
		// be derived from the next start (or the table end for the last).
		offsets := make([]int, 0, count+1)
		for i := 0; i < count; i++ {
			entryOffset := tableStart + 12 + i*8
			c.Seek(entryOffset + 6)
			bytecodeOffset := int(c.U16()) + entryOffset
			if err := c.Err(); err != nil {
				return nil, fmt.Errorf("%w: truncated event table", afpErrors.ErrStructure)
			}
			offsets = append(offsets, bytecodeOffset)
		}
		offsets = append(offsets, eventSize+tableStart)

		endOf := make(map[int]int, count)
		for i := 0; i < count; i++ {
			endOf[offsets[i]] = offsets[i+1]
		}

		for i := 0; i < count; i++ {
			entryOffset := tableStart + 12 + i*8
			c.Seek(entryOffset)
			flags := c.U32()
			c.U8()
			keyCode := c.U8()
			bytecodeOffset := int(c.U16()) + entryOffset
			if err := p.consume(c, dataOffset+entryOffset, 8); err != nil {
				return nil, err
			}

			length := endOf[bytecodeOffset] - bytecodeOffset
			if length < 0 || bytecodeOffset+length > len(record) {
				return nil, fmt.Errorf("%w: event bytecode offsets are inconsistent", afpErrors.ErrOutOfBounds)
			}

			chunk, err := disassemble(record[bytecodeOffset:bytecodeOffset+length], nil, p.table)
			if err != nil {
				return nil, err
			}
			if err := p.cov.Mark(dataOffset+bytecodeOffset, length); err != nil {
				return nil, fmt.Errorf("%w: %v", afpErrors.ErrStructure, err)
			}
			events = append(events, EventTrigger{Flags: flags, KeyCode: keyCode, Bytecode: chunk})
		}
	}

	c.Seek(tableStart + eventSize)
	if err := c.Err(); err != nil {
		return nil, fmt.Errorf("%w: event table runs past place record", afpErrors.ErrStructure)
	}
	return events, nil
}
