package pkg

import (
	"fmt"
	"os"

	"github.com/hashicorp/go-hclog"
	"github.com/wz18207/bemaniutils-gfdm/internal/fsutil"
	"github.com/wz18207/bemaniutils-gfdm/pkg/afp"
	"github.com/wz18207/bemaniutils-gfdm/pkg/afp/txp2"
	"github.com/wz18207/bemaniutils-gfdm/pkg/codec"
)

// ContainerOptions selects the external capabilities a parse may need and
// the logger everything reports through. The zero value works for files
// with no compressed textures.
type ContainerOptions struct {
	Logger hclog.Logger

	// CodecName picks the texture payload codec from the registry. Leave
	// empty to parse without one; files that need it will say so.
	CodecName string

	// DXT decodes block-compressed textures when supplied.
	DXT afp.DXTDecoder

	// FontCodec decodes the embedded font package when supplied.
	FontCodec afp.TreeCodec
}

func (o ContainerOptions) resolve() (txp2.Options, error) {
	opts := txp2.Options{
		Logger:    o.Logger,
		DXT:       o.DXT,
		FontCodec: o.FontCodec,
	}
	if o.CodecName != "" {
		c, err := codec.Get(o.CodecName)
		if err != nil {
			return txp2.Options{}, err
		}
		opts.Compressor = c
	}
	return opts, nil
}

// OpenContainer reads and parses the TXP2 container at path.
func OpenContainer(path string, options ContainerOptions) (*txp2.File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading container: %w", err)
	}
	return OpenContainerBytes(data, options)
}

// OpenContainerBytes parses an in-memory TXP2 container.
func OpenContainerBytes(data []byte, options ContainerOptions) (*txp2.File, error) {
	opts, err := options.resolve()
	if err != nil {
		return nil, err
	}
	return txp2.Parse(data, opts)
}

// SaveContainer serializes the container and writes it to path. The write
// goes through a temporary file, so saving over the source container cannot
// truncate it on failure.
func SaveContainer(file *txp2.File, path string) error {
	data, err := file.Serialize()
	if err != nil {
		return err
	}
	if err := fsutil.WriteFileAtomic(path, data, 0o644); err != nil {
		return fmt.Errorf("writing container: %w", err)
	}
	return nil
}
