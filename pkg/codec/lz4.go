package codec

import (
	"fmt"

	"github.com/bkaradzic/go-lz4"
)

func init() {
	Register(&LZ4Codec{BaseCodec{CodecName: "lz4"}})
}

// LZ4Codec compresses payloads with the LZ4 block format. The encoded form
// carries the uncompressed length in a leading 4-byte word.
type LZ4Codec struct {
	BaseCodec
}

// Compress compresses data using LZ4
func (c *LZ4Codec) Compress(input []byte) ([]byte, error) {
	out, err := lz4.Encode(nil, input)
	if err != nil {
		return nil, fmt.Errorf("encoding lz4 data: %w", err)
	}
	return out, nil
}

// Decompress decompresses LZ4 data
func (c *LZ4Codec) Decompress(input []byte) ([]byte, error) {
	out, err := lz4.Decode(nil, input)
	if err != nil {
		return nil, fmt.Errorf("decoding lz4 data: %w", err)
	}
	return out, nil
}
