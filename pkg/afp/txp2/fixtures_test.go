package txp2

import (
	"encoding/binary"
	"math"
)

// Hand-assembled containers for the parser and serializer tests. Offsets
// follow the canonical section order Serialize produces, so the fixtures
// double as byte-exact rewrite vectors.

func put32(order binary.ByteOrder, dst []byte, v uint32) []byte {
	var word [4]byte
	order.PutUint32(word[:], v)
	return append(dst, word[:]...)
}

func put16(order binary.ByteOrder, dst []byte, v uint16) []byte {
	var word [2]byte
	order.PutUint16(word[:], v)
	return append(dst, word[:]...)
}

func padBytes(dst []byte, to int) []byte {
	for len(dst) < to {
		dst = append(dst, 0)
	}
	return dst
}

type fixtureName struct {
	name       string
	entryNo    uint32
	nameOffset uint32
}

// fixturePMAN appends a name table whose entry records follow the header
// directly. The strings themselves are the caller's business.
func fixturePMAN(order binary.ByteOrder, dst []byte, entries []fixtureName) []byte {
	magic := NameTableMagicLE
	if order == binary.BigEndian {
		magic = NameTableMagicBE
	}
	payload := len(dst) + NameTableHeaderLen

	dst = append(dst, magic...)
	dst = put32(order, dst, 0) // reserved
	dst = put32(order, dst, 0) // flags1
	dst = put32(order, dst, 0) // flags2
	dst = put32(order, dst, uint32(len(entries)))
	dst = put32(order, dst, 0) // flags3
	dst = put32(order, dst, uint32(payload))
	for _, e := range entries {
		dst = put32(order, dst, NameChecksum([]byte(e.name)))
		dst = put32(order, dst, e.entryNo)
		dst = put32(order, dst, e.nameOffset)
	}
	return dst
}

// fixtureTexturePixels is the 4x4 BGRA payload of the single texture
// fixture, a ramp that differs in every channel.
func fixtureTexturePixels() []byte {
	raw := make([]byte, 0, 64)
	for i := 0; i < 16; i++ {
		raw = append(raw, byte(i*16), byte(i*8), byte(i*4), 0xFF)
	}
	return raw
}

// singleTextureContainer assembles a 304-byte container holding one 4x4
// BGRA8888 texture named "tex0" and one region named "rgn0" spanning it.
func singleTextureContainer(order binary.ByteOrder) []byte {
	magic, texMagic := MagicLE, TextureMagicLE
	if order == binary.BigEndian {
		magic, texMagic = MagicBE, TextureMagicBE
	}
	raw := fixtureTexturePixels()

	data := make([]byte, 0, 304)
	data = append(data, magic...)
	data = append(data, 1, 0, 0, 0, 0, 0, 0, 0) // file flags
	data = put32(order, data, 304)              // total length
	data = put32(order, data, 48)               // header length
	data = put32(order, data, FeatureTextures|FeatureTextureMap|FeatureRegions|FeatureRegionMap)

	// Header records, ascending bit order.
	data = put32(order, data, 1)   // texture count
	data = put32(order, data, 48)  // texture list
	data = put32(order, data, 80)  // texture name table
	data = put32(order, data, 1)   // region count
	data = put32(order, data, 68)  // region list
	data = put32(order, data, 120) // region name table

	// Texture descriptor and its name string.
	data = put32(order, data, 60)  // name offset
	data = put32(order, data, 136) // payload length
	data = put32(order, data, 168) // payload offset
	data = append(data, "tex0"...)
	data = append(data, 0)
	data = padBytes(data, 68)

	// Region record; coordinates are stored at twice their pixel value.
	data = put16(order, data, 0) // texture number
	data = put16(order, data, 0) // left
	data = put16(order, data, 0) // top
	data = put16(order, data, 8) // right
	data = put16(order, data, 8) // bottom
	data = padBytes(data, 80)

	// The texture name table reuses the descriptor's string; the region
	// table claims its own behind its entry records.
	data = fixturePMAN(order, data, []fixtureName{{name: "tex0", entryNo: 0, nameOffset: 60}})
	data = fixturePMAN(order, data, []fixtureName{{name: "rgn0", entryNo: 0, nameOffset: 160}})
	data = append(data, "rgn0"...)
	data = append(data, 0)
	data = padBytes(data, 168)

	// Raw payload: the envelope is big-endian regardless of container
	// order, the sub-header follows container order.
	data = put32(binary.BigEndian, data, 128)
	data = put32(binary.BigEndian, data, 128)

	header := make([]byte, TextureHeaderLen)
	copy(header, texMagic)
	order.PutUint32(header[12:], 128)
	order.PutUint16(header[16:], 4)
	order.PutUint16(header[18:], 4)
	order.PutUint32(header[20:], PixelFormatBGRA8888)
	data = append(data, header...)
	return append(data, raw...)
}

// readOnlyContainer carries only the never-observed header section that
// forces the parser into read-only mode.
func readOnlyContainer() []byte {
	le := binary.LittleEndian
	data := make([]byte, 0, 28)
	data = append(data, MagicLE...)
	data = append(data, make([]byte, 8)...)
	data = put32(le, data, 28)
	data = put32(le, data, 28)
	data = put32(le, data, FeatureUnhandled)
	return put32(le, data, 0)
}

// fixtureTimelineBlob is a minimal valid animation: one exported asset
// named "main", one DoAction tag holding a single PLAY instruction, one
// frame running it, and an empty initializer table.
func fixtureTimelineBlob() []byte {
	le := binary.LittleEndian
	data := make([]byte, 112)

	data[0] = 10 // container version
	data[1] = '2'
	data[2] = 'P'
	data[3] = 'A'
	le.PutUint32(data[4:], 112)
	le.PutUint16(data[8:], 0x200)
	le.PutUint16(data[10:], 1)          // exported name pool offset
	le.PutUint32(data[12:], 0x7)        // bgcolor, integer fps, initializers
	le.PutUint16(data[18:], 480)        // stage right
	le.PutUint16(data[22:], 270)        // stage bottom
	le.PutUint32(data[24:], 30720)      // 30 fps in 1/1024 units
	le.PutUint32(data[28:], 0xFF000000) // opaque black
	le.PutUint16(data[32:], 1)          // exported asset count
	le.PutUint16(data[34:], 0)          // imported asset count
	le.PutUint32(data[36:], 76)         // root tag directory
	le.PutUint32(data[40:], 60)         // exported asset table
	le.PutUint32(data[44:], 0)          // import group table, unused
	le.PutUint32(data[48:], 64)         // string pool offset
	le.PutUint32(data[52:], 6)          // string pool size
	le.PutUint32(data[56:], 72)         // initializer table

	le.PutUint16(data[60:], 1) // exported tag id
	le.PutUint16(data[62:], 1) // pool offset of "main"

	// String pool, scrambled with the running key.
	pool := []byte("\x00main\x00")
	for i, b := range pool {
		data[64+i] = byte((int(b) + 128 + i) & 0xFF)
	}

	// Empty initializer table at 72, then the root directory.
	le.PutUint16(data[76:], 0)  // directory flags
	le.PutUint16(data[78:], 0)  // unknown count
	le.PutUint32(data[80:], 1)  // frame count
	le.PutUint32(data[84:], 1)  // tag count
	le.PutUint32(data[88:], 0)  // unknown table, unused
	le.PutUint32(data[92:], 32) // frames, relative to directory
	le.PutUint32(data[96:], 24) // tags, relative to directory

	le.PutUint32(data[100:], 0x7A<<22|3) // DoAction, 3 bytes
	data[104] = 0xFF                     // bytecode sentinel
	data[105] = 0x00                     // no embedded string pool
	data[106] = 3                        // PLAY
	le.PutUint32(data[108:], 1<<20)      // frame: start 0, count 1

	return data
}

// fixtureShapeBlob is a valid GE2D quad: four vertices, four texture
// points, one white color, one label "rgn0" and a textured render pass of
// two triangles.
func fixtureShapeBlob() []byte {
	le := binary.LittleEndian
	data := make([]byte, 0, 160)

	data = append(data, "D2EG"...)
	data = put32(le, data, 1)   // version word
	data = put32(le, data, 0)   // version word
	data = put32(le, data, 160) // total length
	data = put32(le, data, 0)   // flag word
	data = put16(le, data, 4)   // vertex count
	data = put16(le, data, 4)   // tex point count
	data = put16(le, data, 1)   // color count
	data = put16(le, data, 1)   // label count
	data = put16(le, data, 1)   // render pass count
	data = put16(le, data, 0)   // unused count
	data = put32(le, data, 52)  // vertices
	data = put32(le, data, 84)  // tex points
	data = put32(le, data, 116) // colors
	data = put32(le, data, 120) // label pointers
	data = put32(le, data, 124) // render passes

	for _, p := range [][2]float32{{0, 0}, {32, 0}, {0, 32}, {32, 32}} {
		data = put32(le, data, math.Float32bits(p[0]))
		data = put32(le, data, math.Float32bits(p[1]))
	}
	for _, p := range [][2]float32{{0, 0}, {1, 0}, {0, 1}, {1, 1}} {
		data = put32(le, data, math.Float32bits(p[0]))
		data = put32(le, data, math.Float32bits(p[1]))
	}

	data = put32(le, data, 0xFFFFFFFF) // white, full alpha
	data = put32(le, data, 140)        // label pointer

	data = append(data, 4)    // draw mode
	data = append(data, 0x06) // texture and texture color flags
	data = append(data, 0)    // texture slot
	data = append(data, 0xFF) // second slot unused
	data = put16(le, data, 6) // triangle index count
	data = put16(le, data, 0)
	data = put32(le, data, 0)   // blend color, unused
	data = put32(le, data, 148) // triangle indices

	data = append(data, "rgn0"...)
	data = append(data, 0)
	data = padBytes(data, 148)

	for _, idx := range []uint16{0, 1, 2, 2, 1, 3} {
		data = put16(le, data, idx)
	}
	return data
}
