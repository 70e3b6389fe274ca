// Package codec holds the pluggable payload codecs used for TXP2 texture
// bodies. The arcade data path uses a proprietary LZ77 variant that is not
// part of this repository; integrators register their implementation under
// the reserved name "lz77". The built-in codecs exist so tooling and tests
// can drive every compressed code path with a substitute scheme.
package codec

import (
	"fmt"
	"sort"
)

// Reserved name for the real arcade compressor, registered by integrators.
const NameLZ77 = "lz77"

// Codec is a byte-for-byte reversible payload transform.
type Codec interface {
	// Name returns the registry name, e.g. "lz4"
	Name() string

	// Compress transforms raw payload bytes into their stored form
	Compress(input []byte) ([]byte, error)

	// Decompress is the exact inverse of Compress
	Decompress(input []byte) ([]byte, error)
}

// BaseCodec provides common functionality for codecs
type BaseCodec struct {
	CodecName string
}

func (c *BaseCodec) Name() string {
	return c.CodecName
}

// Registry maps codec names to implementations
var Registry = make(map[string]Codec)

// Register registers a codec implementation, replacing any previous
// registration under the same name.
func Register(c Codec) {
	Registry[c.Name()] = c
}

// Get retrieves a codec by name
func Get(name string) (Codec, error) {
	c, ok := Registry[name]
	if !ok {
		return nil, fmt.Errorf("unknown codec: %q", name)
	}
	return c, nil
}

// Names returns the registered codec names, sorted
func Names() []string {
	names := make([]string, 0, len(Registry))
	for name := range Registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
