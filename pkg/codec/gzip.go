package codec

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
)

func init() {
	Register(&GzipCodec{BaseCodec{CodecName: "gzip"}})
}

// GzipCodec compresses payloads with GZIP
type GzipCodec struct {
	BaseCodec
}

// Compress compresses data using GZIP
func (c *GzipCodec) Compress(input []byte) ([]byte, error) {
	var buf bytes.Buffer

	gw := gzip.NewWriter(&buf)
	if _, err := gw.Write(input); err != nil {
		gw.Close()
		return nil, fmt.Errorf("writing gzip data: %w", err)
	}

	if err := gw.Close(); err != nil {
		return nil, fmt.Errorf("closing gzip writer: %w", err)
	}

	return buf.Bytes(), nil
}

// Decompress decompresses GZIP data
func (c *GzipCodec) Decompress(input []byte) ([]byte, error) {
	gr, err := gzip.NewReader(bytes.NewReader(input))
	if err != nil {
		return nil, fmt.Errorf("creating gzip reader: %w", err)
	}
	defer gr.Close()

	data, err := io.ReadAll(gr)
	if err != nil {
		return nil, fmt.Errorf("reading gzip data: %w", err)
	}

	return data, nil
}
