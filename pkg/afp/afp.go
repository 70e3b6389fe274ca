// Package afp holds the contract types shared by the TXP2 container codec
// and its nested formats. The compression scheme, the block-texture
// decompressor, and the font blob codec all live outside this repository;
// the interfaces here are the capabilities callers supply for them.
package afp

import "fmt"

// Compressor is the payload compression capability. The arcade data path
// uses a proprietary LZ77 variant; the codec only requires that Decompress
// inverts Compress exactly.
type Compressor interface {
	Compress(data []byte) ([]byte, error)
	Decompress(data []byte) ([]byte, error)
}

// DXTDecoder decompresses DXT1/DXT5 block-compressed pixel payloads into
// width*height*4 RGBA bytes. The swap flag asks for the interleaved
// byteswap one console port applies to the blocks even though the format is
// nominally little-endian everywhere.
type DXTDecoder interface {
	DecompressDXT1(data []byte, width, height int, swap bool) ([]byte, error)
	DecompressDXT5(data []byte, width, height int, swap bool) ([]byte, error)
}

// TreeCodec decodes and encodes the tree-structured font blob embedded in
// some containers. The tree's node type is the codec's own business; the
// container treats it as opaque.
type TreeCodec interface {
	Decode(data []byte) (any, error)
	Encode(tree any) ([]byte, error)
}

// ByteRange is a half-open byte interval [Start, End) of an input buffer.
type ByteRange struct {
	Start int
	End   int
}

func (r ByteRange) String() string {
	return fmt.Sprintf("0x%x - 0x%x (%d bytes)", r.Start, r.End, r.End-r.Start)
}

// DescrambleText decodes a name string fetched from a container or geometry
// blob. When the obfuscation bit is on and the first byte sits in the
// scrambled range, every byte has its high bit toggled; otherwise the bytes
// are plain ASCII already.
func DescrambleText(text []byte, obfuscated bool) string {
	if len(text) == 0 {
		return ""
	}
	if obfuscated && text[0]-0x20 > 0x7F {
		out := make([]byte, len(text))
		for i, b := range text {
			out[i] = b + 0x80
		}
		return string(out)
	}
	return string(text)
}

// ScrambleText is the inverse transform, with the terminating null included.
func ScrambleText(text string, obfuscated bool) []byte {
	out := make([]byte, 0, len(text)+1)
	if obfuscated {
		for i := 0; i < len(text); i++ {
			out = append(out, text[i]+0x80)
		}
	} else {
		out = append(out, text...)
	}
	return append(out, 0)
}
