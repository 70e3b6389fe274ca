package txp2

// Core format constants. The container magic appears byte-mirrored in
// little-endian files, so the first four bytes double as the endianness
// selector for everything that follows.

var (
	MagicLE = []byte("2PXT") // little-endian container
	MagicBE = []byte("TXP2") // big-endian container

	TextureMagicLE = []byte("TDXT")
	TextureMagicBE = []byte("TXDT")

	NameTableMagicLE = []byte("PMAN")
	NameTableMagicBE = []byte("NAMP")
)

// Feature bits of the container header. Each set bit both declares a section
// present and contributes a fixed-size record (pointer, or count+pointer) to
// the header area, in ascending bit order.
const (
	FeatureTextures       = 0x00000001 // count+ptr: texture descriptor list
	FeatureTextureMap     = 0x00000002 // ptr: texture name table
	FeatureLegacyLZ       = 0x00000004 // flag: old compression scheme
	FeatureRegions        = 0x00000008 // count+ptr: texture region list
	FeatureRegionMap      = 0x00000010 // ptr: region name table
	FeatureTextObfuscated = 0x00000020 // flag: name strings are obfuscated
	FeatureUnknown1       = 0x00000040 // count+ptr: opaque 16-byte records
	FeatureUnknown1Map    = 0x00000080 // ptr: name table for the above
	FeatureUnknown2       = 0x00000100 // count+ptr: opaque 4-byte records
	FeatureUnknown2Map    = 0x00000200 // ptr: name table for the above
	FeatureEmptyBlock     = 0x00000400 // ptr: always empty, games still parse it
	FeatureTimelines      = 0x00000800 // count+ptr: animation data list
	FeatureTimelineMap    = 0x00001000 // ptr: animation name table
	FeatureShapes         = 0x00002000 // count+ptr: geometry data list
	FeatureShapeMap       = 0x00004000 // ptr: geometry name table
	FeatureUnhandled      = 0x00008000 // ptr: never observed, forces read-only
	FeatureFontInfo       = 0x00010000 // ptr: font package envelope
	FeatureSwapHeaders    = 0x00020000 // ptr: per-timeline byteswap headers
	FeatureModernLZ       = 0x00040000 // flag: texture payloads are compressed

	// Anything at or above this bit is unknown and fails the parse.
	featureLimit = 0x00080000
)

// Pixel format codes found in the texture sub-header's format word.
const (
	PixelFormatRGB565   = 0x0B // 16-bit 5-6-5 RGB
	PixelFormatRGB888   = 0x0E // 24-bit RGB
	PixelFormatBGR888   = 0x10 // 24-bit RGB, swapped byte order
	PixelFormatARGB1555 = 0x13 // 16-bit 1-5-5-5 ARGB
	PixelFormatARGB8888 = 0x15 // 32-bit, A first in file
	PixelFormatDXT1     = 0x16 // block compressed, external decoder
	PixelFormatDXT5     = 0x1A // block compressed, external decoder
	PixelFormatUnknown  = 0x1E // referenced by games but never drawn
	PixelFormatRGBA4444 = 0x1F // 16-bit 4-4-4-4
	PixelFormatBGRA8888 = 0x20 // 32-bit, B first in file
)

const (
	// Fixed structure sizes
	PreambleSize       = 24 // magic + flag bytes + length + header length + feature mask
	NameTableHeaderLen = 28
	NameTableEntryLen  = 12
	TextureHeaderLen   = 64
	TextureEntryLen    = 12
	RegionEntryLen     = 10
	TimelineEntryLen   = 12
	ShapeEntryLen      = 12
	Unknown1EntryLen   = 16
	Unknown2EntryLen   = 4
	SwapHeaderLen      = 12

	// Name checksum generator polynomial; applied to the six low bits of
	// each name byte through a 32-bit register.
	namePoly = 0x04C11DB7

	// Placeholder written where a texture payload pointer belongs until the
	// payload lands at the end of the file and the real offset is patched.
	pointerPlaceholder = 0xDEADBEEF
)
