// Package ap2 decodes the animation timeline blobs embedded in TXP2
// containers. A timeline is a scrambled SWF derivative: after the byteswap
// transform is undone it carries a fixed header, an obfuscated string pool,
// exported and imported asset tables and a tag directory whose place-object
// and do-action records embed bytecode for the disassembler in this package.
//
// Parsing tracks byte coverage over the descrambled blob, so unrecognized
// regions of real-world files can be reported instead of silently skipped.
package ap2

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/hashicorp/go-hclog"
	"github.com/wz18207/bemaniutils-gfdm/internal/wire"
	afpErrors "github.com/wz18207/bemaniutils-gfdm/pkg/afp/errors"
	"github.com/wz18207/bemaniutils-gfdm/pkg/afp/geo"
)

// ExportedAsset names a tag this timeline offers to other timelines.
type ExportedAsset struct {
	TagID uint16
	Name  string
}

// ImportedAsset is one asset pulled in from another timeline.
type ImportedAsset struct {
	TagID uint16
	Name  string
}

// ImportGroup collects the assets imported from one source timeline.
type ImportGroup struct {
	Source string
	Assets []ImportedAsset
}

// TagInitializer is per-frame setup bytecode attached to an imported tag.
// Bytecode is nil when the entry declares a zero-length body.
type TagInitializer struct {
	TagID    uint16
	Frame    uint16
	Bytecode *Chunk
}

// TagDirectory is one directory of tags plus its frame schedule. The root
// directory and every nested sprite directory share this shape.
type TagDirectory struct {
	Flags    uint16
	Tags     []Tag
	Frames   []Frame
	Unknowns []UnknownTagRef
}

// Timeline is one animation blob from a container: the raw scrambled bytes,
// the swap instructions needed to unscramble them and, after Parse, the
// decoded model. Directories holds the root tag directory at index zero with
// nested sprite directories appended behind it; sprite tags refer to their
// children by index.
type Timeline struct {
	Name           string
	Data           []byte
	DescrambleInfo []byte

	ExportedName     string
	ContainerVersion uint8
	Version          uint16
	Flags            uint32
	FPS              float64
	BackgroundColor  *geo.Color
	Stage            geo.Rectangle

	Exported     []ExportedAsset
	ImportGroups []ImportGroup
	Directories  []TagDirectory
	Initializers []TagInitializer

	table   *stringTable
	cov     *wire.Coverage
	decoded []byte
	parsed  bool
}

// NewTimeline wraps a scrambled animation blob. Parse must be called before
// the decoded fields are meaningful.
func NewTimeline(name string, data, descrambleInfo []byte) *Timeline {
	return &Timeline{Name: name, Data: data, DescrambleInfo: descrambleInfo}
}

// Parsed reports whether Parse has completed on this timeline.
func (t *Timeline) Parsed() bool {
	return t.parsed
}

// Decoded returns the descrambled blob from the last Parse, or nil.
func (t *Timeline) Decoded() []byte {
	return t.decoded
}

// Uncovered returns the byte ranges of the descrambled blob the last Parse
// never consumed. Real files usually have a few, padding mostly.
func (t *Timeline) Uncovered() []wire.Range {
	if t.cov == nil {
		return nil
	}
	return t.cov.Uncovered()
}

// UnreadStrings returns pool strings nothing referenced during the last
// Parse, in pool order.
func (t *Timeline) UnreadStrings() []string {
	if t.table == nil {
		return nil
	}
	var out []string
	for _, s := range t.table.unread() {
		out = append(out, s.Value)
	}
	return out
}

// RootDirectory returns the timeline's top-level tag directory, or nil
// before Parse.
func (t *Timeline) RootDirectory() *TagDirectory {
	if !t.parsed || len(t.Directories) == 0 {
		return nil
	}
	return &t.Directories[0]
}

// parser carries the decoded blob and per-parse state through the
// recursive descent.
type parser struct {
	t     *Timeline
	data  []byte
	cov   *wire.Coverage
	table *stringTable
	log   hclog.Logger

	stringTableOffset int
}

// Parse descrambles the blob and decodes the header, string pool, asset
// tables, tag directories and initializers into the timeline. A nil logger
// silences progress output. Calling Parse again re-parses from the raw
// bytes with fresh coverage.
func (t *Timeline) Parse(log hclog.Logger) error {
	if log == nil {
		log = hclog.NewNullLogger()
	}
	log = log.With("timeline", t.Name)

	data, err := Descramble(t.Data, t.DescrambleInfo)
	if err != nil {
		return err
	}

	t.ExportedName = ""
	t.BackgroundColor = nil
	t.Exported = nil
	t.ImportGroups = nil
	t.Directories = nil
	t.Initializers = nil
	t.decoded = data
	t.cov = wire.NewCoverage(len(data))
	t.table = nil
	t.parsed = false

	p := &parser{t: t, data: data, cov: t.cov, log: log}

	if err := p.parseHeader(); err != nil {
		return err
	}
	if err := p.parseExportedAssets(); err != nil {
		return err
	}

	c := p.cursorAt(36)
	tagsOffset := int(c.U32())
	if err := p.consume(c, 36, 4); err != nil {
		return err
	}
	if _, err := p.parseDirectory(tagsOffset); err != nil {
		return err
	}

	if err := p.parseImportedAssets(); err != nil {
		return err
	}
	if err := p.parseInitializers(); err != nil {
		return err
	}

	t.parsed = true
	log.Debug("parsed timeline",
		"exported_name", t.ExportedName,
		"directories", len(t.Directories),
		"exported", len(t.Exported),
		"imports", len(t.ImportGroups),
		"uncovered", len(t.cov.Uncovered()))
	if log.IsDebug() {
		for _, rng := range t.cov.Uncovered() {
			log.Debug("unparsed range", "range", rng.String())
		}
		for _, s := range t.UnreadStrings() {
			log.Debug("unread pool string", "value", s)
		}
	}
	return nil
}

func (p *parser) cursorAt(off int) *wire.Cursor {
	c := wire.NewCursor(p.data, binary.LittleEndian)
	c.Seek(off)
	return c
}

// consume validates the reads since the last call and marks [off, off+n) as
// structurally claimed.
func (p *parser) consume(c *wire.Cursor, off, n int) error {
	if err := c.Err(); err != nil {
		return fmt.Errorf("%w: %v", afpErrors.ErrStructure, err)
	}
	if err := p.cov.Mark(off, n); err != nil {
		return fmt.Errorf("%w: %v", afpErrors.ErrStructure, err)
	}
	return nil
}

func (p *parser) getString(offset int) (string, error) {
	if p.table == nil {
		return "", fmt.Errorf("%w: string referenced before string table", afpErrors.ErrStructure)
	}
	return p.table.get(offset)
}

// headerString resolves a string referenced from the fixed header or the
// asset tables, re-claiming its pool bytes as shared since several
// referencers may name the same string.
func (p *parser) headerString(offset int) (string, error) {
	s, err := p.getString(offset)
	if err != nil {
		return "", err
	}
	if err := p.cov.MarkShared(p.stringTableOffset+offset, len(s)+1); err != nil {
		return "", fmt.Errorf("%w: %v", afpErrors.ErrStructure, err)
	}
	return s, nil
}

func (p *parser) parseHeader() error {
	t := p.t
	c := p.cursorAt(0)
	magic := c.Bytes(4)
	length := int(c.U32())
	version := c.U16()
	nameOffset := c.U16()
	flags := c.U32()
	left := c.U16()
	right := c.U16()
	top := c.U16()
	bottom := c.U16()
	if err := p.consume(c, 0, headerLen); err != nil {
		return err
	}

	// The magic arrives byte-mirrored with the sub-version riding in the
	// high byte's spare bits.
	containerVersion := magic[0]
	if magic[3]&0x7F != 'A' || magic[2]&0x7F != 'P' || magic[1]&0x7F != '2' {
		return fmt.Errorf("%w: animation header", afpErrors.ErrInvalidMagic)
	}
	if length != len(p.data) {
		return fmt.Errorf("%w: animation header declares %d bytes, have %d", afpErrors.ErrLengthMismatch, length, len(p.data))
	}
	switch containerVersion {
	case 8, 9, 10:
	default:
		return fmt.Errorf("%w: animation container version %d", afpErrors.ErrUnsupported, containerVersion)
	}
	if version != versionWord {
		return fmt.Errorf("%w: animation version %#x", afpErrors.ErrUnsupported, version)
	}

	t.ContainerVersion = containerVersion
	t.Version = version
	t.Flags = flags
	t.Stage = geo.Rectangle{
		Left:   float64(left),
		Right:  float64(right),
		Top:    float64(top),
		Bottom: float64(bottom),
	}

	// Bytes 24-32 hold the frame rate and background color slots and are
	// claimed whether or not their flag bits select them.
	if flags&HeaderFlagBGColor != 0 {
		c.Seek(28)
		rgba := c.U32()
		t.BackgroundColor = &geo.Color{
			R: float64(rgba&0xFF) / 255.0,
			G: float64((rgba>>8)&0xFF) / 255.0,
			B: float64((rgba>>16)&0xFF) / 255.0,
			A: float64((rgba>>24)&0xFF) / 255.0,
		}
	}
	if err := p.consume(c, 28, 4); err != nil {
		return err
	}

	c.Seek(24)
	if flags&HeaderFlagIntegerFPS != 0 {
		t.FPS = float64(c.I32()) * 0.0009765625
	} else {
		t.FPS = float64(math.Float32frombits(c.U32()))
	}
	if err := p.consume(c, 24, 4); err != nil {
		return err
	}

	c.Seek(48)
	stringTableOffset := int(c.U32())
	stringTableSize := int(c.U32())
	if err := p.consume(c, 48, 8); err != nil {
		return err
	}

	table, err := descrambleStringPool(p.data, stringTableOffset, stringTableSize)
	if err != nil {
		return err
	}
	if err := p.cov.Mark(stringTableOffset, stringTableSize); err != nil {
		return fmt.Errorf("%w: %v", afpErrors.ErrStructure, err)
	}
	p.table = table
	p.t.table = table
	p.stringTableOffset = stringTableOffset

	exportedName, err := p.headerString(int(nameOffset))
	if err != nil {
		return err
	}
	t.ExportedName = exportedName

	p.log.Debug("parsed animation header",
		"exported_name", exportedName,
		"container_version", containerVersion,
		"flags", fmt.Sprintf("%#x", flags),
		"size", fmt.Sprintf("%.0fx%.0f", t.Stage.Width(), t.Stage.Height()),
		"fps", t.FPS)
	return nil
}

func (p *parser) parseExportedAssets() error {
	c := p.cursorAt(32)
	count := int(c.U16())
	if err := p.consume(c, 32, 2); err != nil {
		return err
	}
	c.Seek(40)
	assetOffset := int(c.U32())
	if err := p.consume(c, 40, 4); err != nil {
		return err
	}

	for i := 0; i < count; i++ {
		c.Seek(assetOffset)
		tagID := c.U16()
		stringOffset := c.U16()
		if err := p.consume(c, assetOffset, 4); err != nil {
			return err
		}
		assetOffset += 4

		name, err := p.headerString(int(stringOffset))
		if err != nil {
			return err
		}
		p.t.Exported = append(p.t.Exported, ExportedAsset{TagID: tagID, Name: name})
	}
	return nil
}

func (p *parser) parseImportedAssets() error {
	c := p.cursorAt(34)
	count := int(c.I16())
	if err := p.consume(c, 34, 2); err != nil {
		return err
	}
	c.Seek(44)
	groupOffset := int(c.U32())
	if err := p.consume(c, 44, 4); err != nil {
		return err
	}

	// Count groups of (source, asset count) pairs come first; the flattened
	// asset entries for all groups follow directly behind them.
	entryOffset := groupOffset + 4*count
	for i := 0; i < count; i++ {
		c.Seek(groupOffset)
		sourceOffset := c.U16()
		assetCount := int(c.U16())
		if err := p.consume(c, groupOffset, 4); err != nil {
			return err
		}
		groupOffset += 4

		source, err := p.headerString(int(sourceOffset))
		if err != nil {
			return err
		}
		group := ImportGroup{Source: source}

		for j := 0; j < assetCount; j++ {
			c.Seek(entryOffset)
			tagID := c.U16()
			nameOffset := c.U16()
			if err := p.consume(c, entryOffset, 4); err != nil {
				return err
			}
			entryOffset += 4

			name, err := p.headerString(int(nameOffset))
			if err != nil {
				return err
			}
			group.Assets = append(group.Assets, ImportedAsset{TagID: tagID, Name: name})
		}
		p.t.ImportGroups = append(p.t.ImportGroups, group)
	}
	return nil
}

// parseInitializers decodes the per-frame setup bytecode table referenced
// from the header when the initializer flag is set. Entry bytecode offsets
// are relative to the table itself.
func (p *parser) parseInitializers() error {
	if p.t.Flags&HeaderFlagInitializers == 0 {
		return nil
	}

	c := p.cursorAt(56)
	base := int(c.U32())
	if err := p.consume(c, 56, 4); err != nil {
		return err
	}

	c.Seek(base)
	c.U16()
	count := int(c.U16())
	if err := p.consume(c, base, 4); err != nil {
		return err
	}

	for i := 0; i < count; i++ {
		itemOffset := base + 4 + i*initializerLen
		c.Seek(itemOffset)
		tagID := c.U16()
		frame := c.U16()
		bytecodeOffset := int(c.U32())
		bytecodeLength := int(c.U32())
		if err := p.consume(c, itemOffset, initializerLen); err != nil {
			return err
		}

		init := TagInitializer{TagID: tagID, Frame: frame}
		if bytecodeLength != 0 {
			start := base + bytecodeOffset
			if start < 0 || start+bytecodeLength > len(p.data) {
				return fmt.Errorf("%w: initializer bytecode for tag %d past end of timeline", afpErrors.ErrStructure, tagID)
			}
			chunk, err := disassemble(p.data[start:start+bytecodeLength], nil, p.table)
			if err != nil {
				return err
			}
			init.Bytecode = chunk
		}
		p.t.Initializers = append(p.t.Initializers, init)
	}
	return nil
}

// parseDirectory decodes the tag directory at base into the arena and
// returns its index. Sprite tags recurse back in here, so the slot is
// reserved before children are parsed to keep indices stable. A directory
// cycle cannot recurse forever: revisiting a header trips the coverage
// double-claim check.
func (p *parser) parseDirectory(base int) (int, error) {
	index := len(p.t.Directories)
	p.t.Directories = append(p.t.Directories, TagDirectory{})

	c := p.cursorAt(base)
	unknownFlags := c.U16()
	unknownCount := int(c.U16())
	frameCount := int(c.U32())
	tagsCount := int(c.U32())
	unknownOffset := int(c.U32()) + base
	frameOffset := int(c.U32()) + base
	tagsOffset := int(c.U32()) + base
	if err := p.consume(c, base, tagHeaderLen); err != nil {
		return 0, err
	}

	dir := TagDirectory{Flags: unknownFlags}

	for i := 0; i < tagsCount; i++ {
		c.Seek(tagsOffset)
		word := c.U32()
		if err := p.consume(c, tagsOffset, 4); err != nil {
			return 0, err
		}

		tagType := TagType((word >> 22) & 0x3FF)
		size := int(word & 0x3FFFFF)
		if size > maxTagSize {
			return 0, fmt.Errorf("%w: tag size %#x", afpErrors.ErrStructure, size)
		}

		p.log.Trace("parsing tag", "type", tagType.String(), "size", size, "offset", tagsOffset+4)
		payload, err := p.parseTag(tagType, tagsOffset+4, size)
		if err != nil {
			return 0, err
		}
		dir.Tags = append(dir.Tags, Tag{Type: tagType, Size: size, Offset: tagsOffset + 4, Payload: payload})

		// Tag data is padded to the next word before the following header.
		tagsOffset += int((uint32(size)+3)&0xFFFFFFFC) + 4
	}

	for i := 0; i < frameCount; i++ {
		c.Seek(frameOffset)
		word := c.U32()
		if err := p.consume(c, frameOffset, 4); err != nil {
			return 0, err
		}
		frameOffset += 4

		dir.Frames = append(dir.Frames, Frame{
			StartTag: int(word & 0xFFFFF),
			Count:    int((word >> 20) & 0xFFF),
		})
	}

	for i := 0; i < unknownCount; i++ {
		c.Seek(unknownOffset)
		value := c.U16()
		stringOffset := c.U16()
		if err := p.consume(c, unknownOffset, 4); err != nil {
			return 0, err
		}
		unknownOffset += 4

		name, err := p.getString(int(stringOffset))
		if err != nil {
			return 0, err
		}
		dir.Unknowns = append(dir.Unknowns, UnknownTagRef{Value: value, Name: name})
	}

	p.t.Directories[index] = dir
	return index, nil
}
