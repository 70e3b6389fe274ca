package codec

func init() {
	Register(&StoredCodec{BaseCodec{CodecName: "stored"}})
}

// StoredCodec is the identity transform: payloads are kept verbatim.
type StoredCodec struct {
	BaseCodec
}

// Compress returns a copy of the input
func (c *StoredCodec) Compress(input []byte) ([]byte, error) {
	out := make([]byte, len(input))
	copy(out, input)
	return out, nil
}

// Decompress returns a copy of the input
func (c *StoredCodec) Decompress(input []byte) ([]byte, error) {
	out := make([]byte, len(input))
	copy(out, input)
	return out, nil
}
