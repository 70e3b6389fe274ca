package txp2

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/hashicorp/go-hclog"
	"github.com/wz18207/bemaniutils-gfdm/internal/wire"
	"github.com/wz18207/bemaniutils-gfdm/pkg/afp/ap2"
	afpErrors "github.com/wz18207/bemaniutils-gfdm/pkg/afp/errors"
	"github.com/wz18207/bemaniutils-gfdm/pkg/afp/geo"
)

// Parse decodes a TXP2 container. Every byte of every structure the walk
// touches is claimed in a coverage map, so overlapping records fail loudly
// and leftover bytes stay visible through Uncovered.
func Parse(data []byte, opts Options) (*File, error) {
	log := opts.Logger
	if log == nil {
		log = hclog.NewNullLogger()
	}

	var order binary.ByteOrder
	switch {
	case len(data) >= 4 && bytes.Equal(data[0:4], MagicLE):
		order = binary.LittleEndian
	case len(data) >= 4 && bytes.Equal(data[0:4], MagicBE):
		order = binary.BigEndian
	default:
		return nil, fmt.Errorf("%w: not a TXP2 container", afpErrors.ErrInvalidMagic)
	}

	f := &File{
		Endian: order,
		data:   data,
		cov:    wire.NewCoverage(len(data)),
		opts:   opts,
		log:    log,
	}

	r := &reader{data: data, order: order, f: f, cov: f.cov, log: log}
	if err := r.parse(); err != nil {
		return nil, err
	}
	return f, nil
}

type reader struct {
	data  []byte
	order binary.ByteOrder
	f     *File
	cov   *wire.Coverage
	log   hclog.Logger
}

// record bounds-checks the n bytes at off and claims them as consumed.
func (r *reader) record(off, n int) ([]byte, error) {
	if off < 0 || n < 0 || off+n > len(r.data) {
		return nil, fmt.Errorf("%w: record at 0x%x runs past end of file", afpErrors.ErrStructure, off)
	}
	if err := r.cov.Mark(off, n); err != nil {
		return nil, fmt.Errorf("%w: %v", afpErrors.ErrStructure, err)
	}
	return r.data[off : off+n], nil
}

func (r *reader) parse() error {
	f := r.f

	if _, err := r.record(0, PreambleSize); err != nil {
		return err
	}
	f.FileFlags = append([]byte(nil), r.data[4:12]...)
	if length := int(r.order.Uint32(r.data[12:])); length != len(r.data) {
		return fmt.Errorf("%w: container declares %d bytes, have %d", afpErrors.ErrLengthMismatch, length, len(r.data))
	}
	headerLength := int(r.order.Uint32(r.data[16:]))
	mask := r.order.Uint32(r.data[20:])

	f.Features = mask
	f.TextObfuscated = mask&FeatureTextObfuscated != 0
	f.LegacyLZ = mask&FeatureLegacyLZ != 0
	f.ModernLZ = mask&FeatureModernLZ != 0

	r.log.Debug("parsing container",
		"endian", r.order.String(), "features", fmt.Sprintf("%#x", mask), "header_length", headerLength)

	// Each feature bit contributes one fixed-size record to the header
	// area, walked in ascending bit order. The flag bits contribute none.
	headerOffset := PreambleSize

	if mask&FeatureTextures != 0 {
		rec, err := r.record(headerOffset, 8)
		if err != nil {
			return err
		}
		headerOffset += 8
		if err := r.parseTextures(int(r.order.Uint32(rec)), int(r.order.Uint32(rec[4:]))); err != nil {
			return err
		}
	}

	if mask&FeatureTextureMap != 0 {
		table, next, err := r.nameTable(headerOffset)
		if err != nil {
			return err
		}
		headerOffset = next
		f.TextureMap = table
	}

	if mask&FeatureRegions != 0 {
		rec, err := r.record(headerOffset, 8)
		if err != nil {
			return err
		}
		headerOffset += 8
		if err := r.parseRegions(int(r.order.Uint32(rec)), int(r.order.Uint32(rec[4:]))); err != nil {
			return err
		}
	}

	if mask&FeatureRegionMap != 0 {
		table, next, err := r.nameTable(headerOffset)
		if err != nil {
			return err
		}
		headerOffset = next
		f.RegionMap = table
	}

	if mask&FeatureUnknown1 != 0 {
		rec, err := r.record(headerOffset, 8)
		if err != nil {
			return err
		}
		headerOffset += 8
		if err := r.parseUnknown1(int(r.order.Uint32(rec)), int(r.order.Uint32(rec[4:]))); err != nil {
			return err
		}
	}

	if mask&FeatureUnknown1Map != 0 {
		table, next, err := r.nameTable(headerOffset)
		if err != nil {
			return err
		}
		headerOffset = next
		f.Unknown1Map = table
	}

	if mask&FeatureUnknown2 != 0 {
		rec, err := r.record(headerOffset, 8)
		if err != nil {
			return err
		}
		headerOffset += 8
		if err := r.parseUnknown2(int(r.order.Uint32(rec)), int(r.order.Uint32(rec[4:]))); err != nil {
			return err
		}
	}

	if mask&FeatureUnknown2Map != 0 {
		table, next, err := r.nameTable(headerOffset)
		if err != nil {
			return err
		}
		headerOffset = next
		f.Unknown2Map = table
	}

	if mask&FeatureEmptyBlock != 0 {
		// A pointer that never leads anywhere in observed files. Games
		// still consume the slot.
		rec, err := r.record(headerOffset, 4)
		if err != nil {
			return err
		}
		headerOffset += 4
		r.log.Trace("empty block pointer", "offset", fmt.Sprintf("%#x", r.order.Uint32(rec)))
	}

	if mask&FeatureTimelines != 0 {
		rec, err := r.record(headerOffset, 8)
		if err != nil {
			return err
		}
		headerOffset += 8
		if err := r.parseTimelines(int(r.order.Uint32(rec)), int(r.order.Uint32(rec[4:]))); err != nil {
			return err
		}
	}

	if mask&FeatureTimelineMap != 0 {
		table, next, err := r.nameTable(headerOffset)
		if err != nil {
			return err
		}
		headerOffset = next
		f.TimelineMap = table
	}

	if mask&FeatureShapes != 0 {
		rec, err := r.record(headerOffset, 8)
		if err != nil {
			return err
		}
		headerOffset += 8
		if err := r.parseShapes(int(r.order.Uint32(rec)), int(r.order.Uint32(rec[4:]))); err != nil {
			return err
		}
	}

	if mask&FeatureShapeMap != 0 {
		table, next, err := r.nameTable(headerOffset)
		if err != nil {
			return err
		}
		headerOffset = next
		f.ShapeMap = table
	}

	if mask&FeatureUnhandled != 0 {
		rec, err := r.record(headerOffset, 4)
		if err != nil {
			return err
		}
		headerOffset += 4
		// Never observed in the wild. Whatever it points at would be lost
		// on rewrite, so refuse to serialize this file.
		f.readOnly = true
		r.log.Warn("unhandled header section present, container is read-only",
			"offset", fmt.Sprintf("%#x", r.order.Uint32(rec)))
	}

	if mask&FeatureFontInfo != 0 {
		rec, err := r.record(headerOffset, 4)
		if err != nil {
			return err
		}
		headerOffset += 4
		if err := r.parseFontInfo(int(r.order.Uint32(rec))); err != nil {
			return err
		}
	}

	if mask&FeatureSwapHeaders != 0 {
		rec, err := r.record(headerOffset, 4)
		if err != nil {
			return err
		}
		headerOffset += 4
		if err := r.parseSwapHeaders(int(r.order.Uint32(rec))); err != nil {
			return err
		}
	}

	if mask&^uint32(featureLimit-1) != 0 {
		return fmt.Errorf("%w: feature mask %#x", afpErrors.ErrUnknownFeature, mask)
	}
	if headerOffset != headerLength {
		return fmt.Errorf("%w: feature walk ended at 0x%x, header declares 0x%x",
			afpErrors.ErrStructure, headerOffset, headerLength)
	}

	// Timeline blobs only get decoded once the whole container is walked,
	// since their byteswap headers arrive after the blobs themselves.
	for _, timeline := range f.Timelines {
		if err := timeline.Parse(r.log); err != nil {
			return err
		}
	}

	r.log.Debug("parsed container",
		"textures", len(f.Textures), "regions", len(f.Regions),
		"timelines", len(f.Timelines), "shapes", len(f.Shapes),
		"uncovered", len(f.cov.Uncovered()))
	if r.log.IsDebug() {
		for _, rng := range f.cov.Uncovered() {
			r.log.Debug("unparsed range", "range", rng.String())
		}
	}
	return nil
}

// nameTable reads the pointer record at headerOffset and parses the PMAN
// structure it addresses, returning the advanced header offset.
func (r *reader) nameTable(headerOffset int) (*NameTable, int, error) {
	rec, err := r.record(headerOffset, 4)
	if err != nil {
		return nil, 0, err
	}
	off := int(r.order.Uint32(rec))
	if off == 0 {
		return nil, headerOffset + 4, nil
	}
	table, err := parseNameTable(r.data, r.order, off, r.f.TextObfuscated, r.cov)
	if err != nil {
		return nil, 0, err
	}
	return table, headerOffset + 4, nil
}

func (r *reader) parseTextures(count, offset int) error {
	for x := 0; x < count; x++ {
		entryOffset := offset + x*TextureEntryLen
		if entryOffset == 0 {
			continue
		}
		rec, err := r.record(entryOffset, TextureEntryLen)
		if err != nil {
			return err
		}
		nameOffset := int(r.order.Uint32(rec))
		textureLength := int(r.order.Uint32(rec[4:]))
		textureOffset := int(r.order.Uint32(rec[8:]))

		name := ""
		if nameOffset != 0 {
			if name, err = readName(r.data, nameOffset, r.f.TextObfuscated, r.cov); err != nil {
				return err
			}
		}
		if nameOffset == 0 || textureOffset == 0 {
			continue
		}

		var blob, compressed []byte
		switch {
		case r.f.LegacyLZ:
			return fmt.Errorf("%w: legacy lz texture payloads", afpErrors.ErrUnsupported)

		case r.f.ModernLZ:
			// The payload envelope is big-endian regardless of the
			// container byte order.
			head, err := r.record(textureOffset, 8)
			if err != nil {
				return err
			}
			inflated := int(binary.BigEndian.Uint32(head))
			deflated := int(binary.BigEndian.Uint32(head[4:]))
			if deflated != textureLength-8 {
				return fmt.Errorf("%w: compressed texture %q", afpErrors.ErrLengthMismatch, name)
			}
			r.log.Trace("texture payload", "name", name,
				"offset", fmt.Sprintf("%#x", textureOffset), "deflated", deflated, "inflated", inflated)

			if compressed, err = r.record(textureOffset+8, deflated); err != nil {
				return err
			}
			if r.f.opts.Compressor == nil {
				return fmt.Errorf("%w: texture %q needs the arcade lz77 codec", afpErrors.ErrNoCompressor, name)
			}
			if blob, err = r.f.opts.Compressor.Decompress(compressed); err != nil {
				return fmt.Errorf("decompressing texture %q: %w", name, err)
			}

		default:
			if textureOffset+8 > len(r.data) {
				return fmt.Errorf("%w: texture %q payload header past end of file", afpErrors.ErrStructure, name)
			}
			deflated := int(binary.BigEndian.Uint32(r.data[textureOffset+4:]))
			if deflated != textureLength-8 {
				return fmt.Errorf("%w: raw texture %q", afpErrors.ErrLengthMismatch, name)
			}
			payload, err := r.record(textureOffset, deflated+8)
			if err != nil {
				return err
			}
			blob = payload[8:]
		}

		texture, err := parseTexture(name, blob, compressed, r.order, r.f.opts.DXT)
		if err != nil {
			return err
		}
		r.f.Textures = append(r.f.Textures, texture)
	}
	return nil
}

func (r *reader) parseRegions(count, offset int) error {
	if offset == 0 || count <= 0 {
		return nil
	}
	for i := 0; i < count; i++ {
		rec, err := r.record(offset+i*RegionEntryLen, RegionEntryLen)
		if err != nil {
			return err
		}
		textureNo := int(r.order.Uint16(rec))
		if textureNo >= r.f.TextureMap.Len() {
			return fmt.Errorf("%w: region %d references texture %d of %d",
				afpErrors.ErrOutOfBounds, i, textureNo, r.f.TextureMap.Len())
		}
		r.f.Regions = append(r.f.Regions, TextureRegion{
			TextureNo: textureNo,
			Left:      int(r.order.Uint16(rec[2:])),
			Top:       int(r.order.Uint16(rec[4:])),
			Right:     int(r.order.Uint16(rec[6:])),
			Bottom:    int(r.order.Uint16(rec[8:])),
		})
	}
	return nil
}

func (r *reader) parseUnknown1(count, offset int) error {
	if offset == 0 || count <= 0 {
		return nil
	}
	for i := 0; i < count; i++ {
		entryOffset := offset + i*Unknown1EntryLen
		rec, err := r.record(entryOffset, 4)
		if err != nil {
			return err
		}

		// The name pointer is stored bit-shuffled; this mirrors the
		// shifting seen in game disassembly.
		raw := r.order.Uint32(rec)
		nameOffset := int((((raw >> 7) & 0x1FF) << 16) + ((raw >> 16) & 0xFFFF))

		name := ""
		if nameOffset != 0 {
			if name, err = readName(r.data, nameOffset, r.f.TextObfuscated, r.cov); err != nil {
				return err
			}
		}

		data, err := r.record(entryOffset+4, Unknown1EntryLen-4)
		if err != nil {
			return err
		}
		r.f.Unknown1 = append(r.f.Unknown1, Unknown1{
			Name: name,
			Data: append([]byte(nil), data...),
		})
	}
	return nil
}

func (r *reader) parseUnknown2(count, offset int) error {
	if offset == 0 || count <= 0 {
		return nil
	}
	for i := 0; i < count; i++ {
		rec, err := r.record(offset+i*Unknown2EntryLen, Unknown2EntryLen)
		if err != nil {
			return err
		}
		r.f.Unknown2 = append(r.f.Unknown2, Unknown2{Data: append([]byte(nil), rec...)})
	}
	return nil
}

func (r *reader) parseTimelines(count, offset int) error {
	for x := 0; x < count; x++ {
		entryOffset := offset + x*TimelineEntryLen
		if entryOffset == 0 {
			continue
		}
		rec, err := r.record(entryOffset, TimelineEntryLen)
		if err != nil {
			return err
		}
		nameOffset := int(r.order.Uint32(rec))
		length := int(r.order.Uint32(rec[4:]))
		dataOffset := int(r.order.Uint32(rec[8:]))

		name := ""
		if nameOffset != 0 {
			if name, err = readName(r.data, nameOffset, r.f.TextObfuscated, r.cov); err != nil {
				return err
			}
		}
		if dataOffset == 0 {
			continue
		}

		payload, err := r.record(dataOffset, length)
		if err != nil {
			return err
		}
		r.f.Timelines = append(r.f.Timelines, ap2.NewTimeline(name, append([]byte(nil), payload...), nil))
	}
	return nil
}

func (r *reader) parseShapes(count, offset int) error {
	for x := 0; x < count; x++ {
		entryOffset := offset + x*ShapeEntryLen
		if entryOffset == 0 {
			continue
		}
		rec, err := r.record(entryOffset, ShapeEntryLen)
		if err != nil {
			return err
		}
		nameOffset := int(r.order.Uint32(rec))
		length := int(r.order.Uint32(rec[4:]))
		dataOffset := int(r.order.Uint32(rec[8:]))

		name := "<unnamed>"
		if nameOffset != 0 {
			if name, err = readName(r.data, nameOffset, r.f.TextObfuscated, r.cov); err != nil {
				return err
			}
		}
		if dataOffset == 0 {
			continue
		}

		payload, err := r.record(dataOffset, length)
		if err != nil {
			return err
		}
		shape := geo.NewShape(name, append([]byte(nil), payload...))
		if err := shape.Parse(r.f.TextObfuscated); err != nil {
			return err
		}
		r.f.Shapes = append(r.f.Shapes, shape)
	}
	return nil
}

func (r *reader) parseFontInfo(offset int) error {
	rec, err := r.record(offset, 12)
	if err != nil {
		return err
	}
	expectZero := r.order.Uint32(rec)
	length := int(r.order.Uint32(rec[4:]))
	blobOffset := int(r.order.Uint32(rec[8:]))

	// A nonzero value here means a header layout this codec would rewrite
	// incorrectly.
	if expectZero != 0 {
		return fmt.Errorf("%w: font package header", afpErrors.ErrReservedNotZero)
	}
	if blobOffset == 0 {
		return nil
	}

	blob, err := r.record(blobOffset, length)
	if err != nil {
		return err
	}
	r.f.FontBlob = append([]byte(nil), blob...)

	if codec := r.f.opts.FontCodec; codec != nil {
		tree, err := codec.Decode(r.f.FontBlob)
		if err != nil {
			return fmt.Errorf("decoding font package: %w", err)
		}
		r.f.FontData = tree
	}
	return nil
}

func (r *reader) parseSwapHeaders(offset int) error {
	if offset <= 0 || len(r.f.Timelines) == 0 {
		return nil
	}
	for i := range r.f.Timelines {
		rec, err := r.record(offset+i*SwapHeaderLen, SwapHeaderLen)
		if err != nil {
			return err
		}
		if r.order.Uint32(rec) != 0 {
			return fmt.Errorf("%w: byteswap header %d", afpErrors.ErrReservedNotZero, i)
		}
		length := int(r.order.Uint32(rec[4:]))
		infoOffset := int(r.order.Uint32(rec[8:]))

		info, err := r.record(infoOffset, length)
		if err != nil {
			return err
		}
		r.f.Timelines[i].DescrambleInfo = append([]byte(nil), info...)
	}
	return nil
}
