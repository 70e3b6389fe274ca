package ap2

import (
	"encoding/binary"
	"fmt"

	afpErrors "github.com/wz18207/bemaniutils-gfdm/pkg/afp/errors"
)

// Descramble undoes the byte shuffling some containers apply to timeline
// payloads. The info slice is a list of little-endian instruction words,
// terminated by a zero word: 7 bits of cursor skip (doubled), 3 bits of swap
// type and 6 bits of repeat count. Type 0 only moves the cursor; types 1, 2
// and 3 reverse runs of 2, 4 or 8 bytes. Reversal is its own inverse, so
// applying the same info twice restores the input.
func Descramble(scrambled, info []byte) ([]byte, error) {
	data := make([]byte, len(scrambled))
	copy(data, scrambled)

	cursor := 0
	for i := 0; i+2 <= len(info); i += 2 {
		word := binary.LittleEndian.Uint16(info[i : i+2])
		if word == 0 {
			break
		}

		cursor += int(word&0x7F) * 2
		swapType := (word >> 13) & 0x7
		loops := int((word >> 7) & 0x3F)

		if swapType == 0 {
			cursor += 256 * loops
			continue
		}

		var width int
		switch swapType {
		case 1:
			width = 2
		case 2:
			width = 4
		case 3:
			width = 8
		default:
			return nil, fmt.Errorf("%w: unknown swap type %d", afpErrors.ErrStructure, swapType)
		}

		for n := 0; n < loops+1; n++ {
			if cursor < 0 || cursor+width > len(data) {
				return nil, fmt.Errorf("%w: swap run past end of payload at offset 0x%x", afpErrors.ErrStructure, cursor)
			}
			for a, b := cursor, cursor+width-1; a < b; a, b = a+1, b-1 {
				data[a], data[b] = data[b], data[a]
			}
			cursor += width
		}
	}

	return data, nil
}
