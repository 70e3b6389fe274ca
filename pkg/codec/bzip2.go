package codec

import (
	"bytes"
	"fmt"
	"io"

	"github.com/dsnet/compress/bzip2"
)

func init() {
	Register(&Bzip2Codec{BaseCodec{CodecName: "bzip2"}})
}

// Bzip2Codec compresses payloads with BZIP2
type Bzip2Codec struct {
	BaseCodec
}

// Compress compresses data using BZIP2
func (c *Bzip2Codec) Compress(input []byte) ([]byte, error) {
	var buf bytes.Buffer

	bw, err := bzip2.NewWriter(&buf, &bzip2.WriterConfig{Level: 9})
	if err != nil {
		return nil, fmt.Errorf("creating bzip2 writer: %w", err)
	}

	// Close flushes the final block, so a close failure loses data too.
	_, err = bw.Write(input)
	if cerr := bw.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return nil, fmt.Errorf("encoding bzip2 data: %w", err)
	}

	return buf.Bytes(), nil
}

// Decompress decompresses BZIP2 data
func (c *Bzip2Codec) Decompress(input []byte) ([]byte, error) {
	br, err := bzip2.NewReader(bytes.NewReader(input), &bzip2.ReaderConfig{})
	if err != nil {
		return nil, fmt.Errorf("creating bzip2 reader: %w", err)
	}
	defer br.Close()

	data, err := io.ReadAll(br)
	if err != nil {
		return nil, fmt.Errorf("decoding bzip2 data: %w", err)
	}
	return data, nil
}
