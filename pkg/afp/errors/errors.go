package errors

import (
	"errors"
	"fmt"
)

// Error classes. Every failure produced by the codec wraps exactly one of
// these, so callers can sort errors with errors.Is without matching strings.
var (
	// Structure errors 📦 - the buffer contradicts the format itself
	ErrStructure = errors.New("❌ structural error")

	// Unsupported errors 🚧 - valid-looking data the codec does not handle
	ErrUnsupported = errors.New("❌ unsupported feature")

	// State errors 🔒
	ErrReadOnly = errors.New("❌ container is read-only")

	// Range errors 📏
	ErrOutOfBounds       = errors.New("❌ value out of bounds")
	ErrDimensionMismatch = errors.New("❌ image dimensions do not match")
)

// Named specifics, pre-wrapped onto their class.
var (
	ErrInvalidMagic      = fmt.Errorf("%w: invalid magic sequence", ErrStructure)
	ErrLengthMismatch    = fmt.Errorf("%w: declared length does not match data", ErrStructure)
	ErrReservedNotZero   = fmt.Errorf("%w: reserved field is not zero", ErrStructure)
	ErrChecksumMismatch  = fmt.Errorf("%w: name checksum mismatch", ErrStructure)
	ErrBadStringOffset   = fmt.Errorf("%w: invalid string table offset", ErrStructure)
	ErrUnknownFeature    = fmt.Errorf("%w: unrecognized feature bit", ErrUnsupported)
	ErrUnknownTag        = fmt.Errorf("%w: unrecognized tag type", ErrUnsupported)
	ErrUnknownOpcode     = fmt.Errorf("%w: unrecognized bytecode opcode", ErrUnsupported)
	ErrNoCompressor      = fmt.Errorf("%w: no payload codec configured", ErrUnsupported)
	ErrEncodeUnsupported = fmt.Errorf("%w: pixel format cannot be re-encoded", ErrUnsupported)
)
