package txp2

import (
	"encoding/binary"
	"fmt"
	"math/bits"

	"github.com/hashicorp/go-hclog"
	afpErrors "github.com/wz18207/bemaniutils-gfdm/pkg/afp/errors"
)

// align rounds up to the next 4-byte boundary.
func align(n int) int {
	return (n + 3) &^ 3
}

// Serialize lays the container back out as bytes. Sections are written in
// the canonical order observed in real files, which differs from header bit
// order; the header area is laid out first as padding so every section
// offset is final the moment the section is written. Texture payloads go
// last, behind a placeholder pointer patched once their position is known.
func (f *File) Serialize() ([]byte, error) {
	if f.readOnly {
		return nil, fmt.Errorf("%w: container carries sections this codec cannot rewrite", afpErrors.ErrReadOnly)
	}

	log := f.log
	if log == nil {
		log = hclog.NewNullLogger()
	}

	b := &builder{
		f:     f,
		order: f.Endian,
		bank:  newStringBank(f.TextObfuscated),
		log:   log,
	}
	return b.build()
}

type builder struct {
	f     *File
	order binary.ByteOrder
	bank  *stringBank
	log   hclog.Logger

	body    []byte
	chunks  [32][]byte
	patches []texPatch
}

// texPatch is a texture payload waiting to be appended at the end of the
// file, plus the descriptor field that must be pointed at it.
type texPatch struct {
	fixOffset int
	payload   []byte
}

func (b *builder) build() ([]byte, error) {
	f := b.f

	var magic []byte
	switch {
	case b.order == binary.LittleEndian:
		magic = MagicLE
	case b.order == binary.BigEndian:
		magic = MagicBE
	default:
		return nil, fmt.Errorf("%w: container has no byte order", afpErrors.ErrStructure)
	}

	headerLength := 0
	for bit := uint32(1); bit < featureLimit; bit <<= 1 {
		if f.Features&bit == 0 {
			continue
		}
		switch bit {
		case FeatureTextures, FeatureRegions, FeatureUnknown1, FeatureUnknown2,
			FeatureTimelines, FeatureShapes:
			headerLength += 8
		case FeatureTextureMap, FeatureRegionMap, FeatureUnknown1Map, FeatureUnknown2Map,
			FeatureEmptyBlock, FeatureTimelineMap, FeatureShapeMap, FeatureUnhandled,
			FeatureFontInfo, FeatureSwapHeaders:
			headerLength += 4
		}
	}

	// The body buffer is absolute-indexed: it starts padded out past the
	// header area so section offsets can be recorded as they are written.
	b.body = make([]byte, PreambleSize+headerLength)

	if f.Features&FeatureTextures != 0 {
		if err := b.writeTextures(); err != nil {
			return nil, err
		}
	}
	if f.Features&FeatureRegions != 0 {
		b.writeRegions()
	}
	if f.Features&FeatureUnknown1 != 0 {
		if err := b.writeUnknown1(); err != nil {
			return nil, err
		}
	}
	if f.Features&FeatureUnknown2 != 0 {
		b.writeUnknown2()
	}
	if f.Features&FeatureTimelines != 0 {
		if err := b.writeTimelines(); err != nil {
			return nil, err
		}
	}
	if f.Features&FeatureShapes != 0 {
		if err := b.writeShapes(); err != nil {
			return nil, err
		}
	}

	for _, section := range []struct {
		feature uint32
		table   *NameTable
	}{
		{FeatureTextureMap, f.TextureMap},
		{FeatureRegionMap, f.RegionMap},
		{FeatureUnknown1Map, f.Unknown1Map},
		{FeatureUnknown2Map, f.Unknown2Map},
		{FeatureTimelineMap, f.TimelineMap},
		{FeatureShapeMap, f.ShapeMap},
	} {
		if f.Features&section.feature == 0 {
			continue
		}
		if err := b.writeNameTable(section.feature, section.table); err != nil {
			return nil, err
		}
	}

	if f.Features&FeatureFontInfo != 0 {
		b.writeFontInfo()
	}
	if f.Features&FeatureEmptyBlock != 0 {
		// Real files carry a pointer at the current write position with no
		// data behind it, so reproduce exactly that.
		b.chunk4(FeatureEmptyBlock, b.alignBody())
	}
	if f.Features&FeatureUnhandled != 0 {
		return nil, fmt.Errorf("%w: container carries an unhandled header section", afpErrors.ErrUnsupported)
	}
	if f.Features&FeatureSwapHeaders != 0 {
		b.writeSwapHeaders()
	}

	for _, patch := range b.patches {
		offset := b.alignBody()
		b.body = append(b.body, patch.payload...)
		b.order.PutUint32(b.body[patch.fixOffset:], uint32(offset))
	}
	b.alignBody()

	fileFlags := make([]byte, 8)
	copy(fileFlags, f.FileFlags)

	out := make([]byte, 0, len(b.body))
	out = append(out, magic...)
	out = append(out, fileFlags...)
	out = b.appendU32(out, uint32(len(b.body)))
	out = b.appendU32(out, uint32(PreambleSize+headerLength))
	out = b.appendU32(out, f.Features)
	for _, chunk := range b.chunks {
		out = append(out, chunk...)
	}
	out = append(out, b.body[PreambleSize+headerLength:]...)

	b.log.Debug("serialized container", "bytes", len(out), "features", fmt.Sprintf("%#x", f.Features))
	return out, nil
}

// alignBody pads the body to the next 4-byte boundary and returns the
// resulting write position.
func (b *builder) alignBody() int {
	off := align(len(b.body))
	for len(b.body) < off {
		b.body = append(b.body, 0)
	}
	return off
}

func (b *builder) appendU32(dst []byte, v uint32) []byte {
	var word [4]byte
	b.order.PutUint32(word[:], v)
	return append(dst, word[:]...)
}

// chunk8 records the count+pointer header record for a feature bit.
func (b *builder) chunk8(feature uint32, count, offset int) {
	chunk := make([]byte, 8)
	b.order.PutUint32(chunk, uint32(count))
	b.order.PutUint32(chunk[4:], uint32(offset))
	b.chunks[bits.TrailingZeros32(feature)] = chunk
}

// chunk4 records the pointer-only header record for a feature bit.
func (b *builder) chunk4(feature uint32, offset int) {
	chunk := make([]byte, 4)
	b.order.PutUint32(chunk, uint32(offset))
	b.chunks[bits.TrailingZeros32(feature)] = chunk
}

func (b *builder) writeTextures() error {
	offset := b.alignBody()
	b.chunk8(FeatureTextures, len(b.f.Textures), offset)

	// Payload bytes are built now but appended at the end of the file, so
	// first figure out every descriptor's declared length.
	payloads := make([][]byte, len(b.f.Textures))
	for i, texture := range b.f.Textures {
		blob := texture.headerBytes(b.order)
		switch {
		case b.f.LegacyLZ:
			return fmt.Errorf("%w: legacy lz texture payloads", afpErrors.ErrUnsupported)

		case b.f.ModernLZ:
			compressed := texture.Compressed
			if len(compressed) == 0 {
				// The texture was replaced since parsing, so the cached
				// compressed copy is gone.
				if b.f.opts.Compressor == nil {
					return fmt.Errorf("%w: texture %q needs the arcade lz77 codec", afpErrors.ErrNoCompressor, texture.Name)
				}
				var err error
				if compressed, err = b.f.opts.Compressor.Compress(blob); err != nil {
					return fmt.Errorf("compressing texture %q: %w", texture.Name, err)
				}
			}
			head := make([]byte, 8, 8+len(compressed))
			binary.BigEndian.PutUint32(head, uint32(len(blob)))
			binary.BigEndian.PutUint32(head[4:], uint32(len(compressed)))
			payloads[i] = append(head, compressed...)

		default:
			head := make([]byte, 8, 8+len(blob))
			binary.BigEndian.PutUint32(head, uint32(len(blob)))
			binary.BigEndian.PutUint32(head[4:], uint32(len(blob)))
			payloads[i] = append(head, blob...)
		}
	}

	stringOffset := align(len(b.body) + len(b.f.Textures)*TextureEntryLen)
	claimed := make(pending)
	for i, texture := range b.f.Textures {
		var nameOffset int
		nameOffset, stringOffset = b.bank.claim(texture.Name, stringOffset, claimed)

		b.patches = append(b.patches, texPatch{fixOffset: len(b.body) + 8, payload: payloads[i]})

		var rec [TextureEntryLen]byte
		b.order.PutUint32(rec[0:], uint32(nameOffset))
		b.order.PutUint32(rec[4:], uint32(len(payloads[i])))
		b.order.PutUint32(rec[8:], pointerPlaceholder)
		b.body = append(b.body, rec[:]...)
	}

	body, err := b.bank.flush(b.body, claimed)
	if err != nil {
		return err
	}
	b.body = body
	return nil
}

func (b *builder) writeRegions() {
	offset := b.alignBody()
	b.chunk8(FeatureRegions, len(b.f.Regions), offset)

	for _, region := range b.f.Regions {
		var rec [RegionEntryLen]byte
		b.order.PutUint16(rec[0:], uint16(region.TextureNo))
		b.order.PutUint16(rec[2:], uint16(region.Left))
		b.order.PutUint16(rec[4:], uint16(region.Top))
		b.order.PutUint16(rec[6:], uint16(region.Right))
		b.order.PutUint16(rec[8:], uint16(region.Bottom))
		b.body = append(b.body, rec[:]...)
	}
}

func (b *builder) writeUnknown1() error {
	offset := b.alignBody()
	b.chunk8(FeatureUnknown1, len(b.f.Unknown1), offset)

	stringOffset := align(len(b.body) + len(b.f.Unknown1)*Unknown1EntryLen)
	claimed := make(pending)
	for _, entry := range b.f.Unknown1 {
		var nameOffset int
		nameOffset, stringOffset = b.bank.claim(entry.Name, stringOffset, claimed)

		// The name pointer is stored bit-shuffled; this is the inverse of
		// the shifting applied when reading, so the offset survives a
		// round trip.
		shuffled := ((uint32(nameOffset) & 0xFFFF) << 16) | (((uint32(nameOffset) >> 16) & 0x1FF) << 7)

		var rec [4]byte
		b.order.PutUint32(rec[:], shuffled)
		b.body = append(b.body, rec[:]...)

		data := make([]byte, Unknown1EntryLen-4)
		copy(data, entry.Data)
		b.body = append(b.body, data...)
	}

	body, err := b.bank.flush(b.body, claimed)
	if err != nil {
		return err
	}
	b.body = body
	return nil
}

func (b *builder) writeUnknown2() {
	offset := b.alignBody()
	b.chunk8(FeatureUnknown2, len(b.f.Unknown2), offset)

	for _, entry := range b.f.Unknown2 {
		data := make([]byte, Unknown2EntryLen)
		copy(data, entry.Data)
		b.body = append(b.body, data...)
	}
}

func (b *builder) writeTimelines() error {
	offset := b.alignBody()
	b.chunk8(FeatureTimelines, len(b.f.Timelines), offset)

	dataOffset := align(len(b.body) + len(b.f.Timelines)*TimelineEntryLen)
	stringOffset := dataOffset
	for _, timeline := range b.f.Timelines {
		stringOffset += align(len(timeline.Data))
	}
	stringOffset = align(stringOffset)

	claimed := make(pending)
	var blobs []byte
	for _, timeline := range b.f.Timelines {
		var nameOffset int
		nameOffset, stringOffset = b.bank.claim(timeline.Name, stringOffset, claimed)

		var rec [TimelineEntryLen]byte
		b.order.PutUint32(rec[0:], uint32(nameOffset))
		b.order.PutUint32(rec[4:], uint32(len(timeline.Data)))
		b.order.PutUint32(rec[8:], uint32(dataOffset+len(blobs)))
		b.body = append(b.body, rec[:]...)

		blobs = append(blobs, timeline.Data...)
		for len(blobs)%4 != 0 {
			blobs = append(blobs, 0)
		}
	}

	body, err := b.bank.flush(append(b.body, blobs...), claimed)
	if err != nil {
		return err
	}
	b.body = body
	return nil
}

func (b *builder) writeShapes() error {
	offset := b.alignBody()
	b.chunk8(FeatureShapes, len(b.f.Shapes), offset)

	dataOffset := align(len(b.body) + len(b.f.Shapes)*ShapeEntryLen)
	stringOffset := dataOffset
	for _, shape := range b.f.Shapes {
		stringOffset += align(len(shape.Data))
	}
	stringOffset = align(stringOffset)

	claimed := make(pending)
	var blobs []byte
	for _, shape := range b.f.Shapes {
		var nameOffset int
		nameOffset, stringOffset = b.bank.claim(shape.Name, stringOffset, claimed)

		var rec [ShapeEntryLen]byte
		b.order.PutUint32(rec[0:], uint32(nameOffset))
		b.order.PutUint32(rec[4:], uint32(len(shape.Data)))
		b.order.PutUint32(rec[8:], uint32(dataOffset+len(blobs)))
		b.body = append(b.body, rec[:]...)

		blobs = append(blobs, shape.Data...)
		for len(blobs)%4 != 0 {
			blobs = append(blobs, 0)
		}
	}

	body, err := b.bank.flush(append(b.body, blobs...), claimed)
	if err != nil {
		return err
	}
	b.body = body
	return nil
}

func (b *builder) writeNameTable(feature uint32, table *NameTable) error {
	offset := b.alignBody()
	b.chunk4(feature, offset)

	if table == nil {
		table = &NameTable{}
	}
	body, err := appendNameTable(b.body, b.order, table, b.bank)
	if err != nil {
		return err
	}
	b.body = body
	return nil
}

func (b *builder) writeFontInfo() {
	offset := b.alignBody()
	b.chunk4(FeatureFontInfo, offset)

	// The envelope is written back around the blob exactly as stored; the
	// decoded view is never re-encoded.
	var rec [12]byte
	if b.f.FontBlob != nil {
		b.order.PutUint32(rec[4:], uint32(len(b.f.FontBlob)))
		b.order.PutUint32(rec[8:], uint32(offset+12))
	}
	b.body = append(b.body, rec[:]...)
	b.body = append(b.body, b.f.FontBlob...)
}

func (b *builder) writeSwapHeaders() {
	offset := b.alignBody()
	b.chunk4(FeatureSwapHeaders, offset)

	blobOffset := align(len(b.body) + len(b.f.Timelines)*SwapHeaderLen)
	var blobs []byte
	for _, timeline := range b.f.Timelines {
		var rec [SwapHeaderLen]byte
		b.order.PutUint32(rec[4:], uint32(len(timeline.DescrambleInfo)))
		b.order.PutUint32(rec[8:], uint32(blobOffset+len(blobs)))
		b.body = append(b.body, rec[:]...)

		blobs = append(blobs, timeline.DescrambleInfo...)
		for len(blobs)%4 != 0 {
			blobs = append(blobs, 0)
		}
	}
	b.body = append(b.body, blobs...)
}
