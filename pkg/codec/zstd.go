package codec

import (
	"fmt"

	"github.com/klauspost/compress/zstd"
)

func init() {
	enc, _ := zstd.NewWriter(nil)
	dec, _ := zstd.NewReader(nil)
	Register(&ZstdCodec{BaseCodec: BaseCodec{CodecName: "zstd"}, enc: enc, dec: dec})
}

// ZstdCodec compresses payloads with Zstandard
type ZstdCodec struct {
	BaseCodec
	enc *zstd.Encoder
	dec *zstd.Decoder
}

// Compress compresses data using Zstandard
func (c *ZstdCodec) Compress(input []byte) ([]byte, error) {
	return c.enc.EncodeAll(input, nil), nil
}

// Decompress decompresses Zstandard data
func (c *ZstdCodec) Decompress(input []byte) ([]byte, error) {
	data, err := c.dec.DecodeAll(input, nil)
	if err != nil {
		return nil, fmt.Errorf("decoding zstd data: %w", err)
	}
	return data, nil
}
