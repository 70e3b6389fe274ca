package ap2

import (
	"fmt"
	"sort"

	afpErrors "github.com/wz18207/bemaniutils-gfdm/pkg/afp/errors"
)

// PoolString is one entry of the timeline string table, kept with its pool
// offset and whether anything referenced it during parsing.
type PoolString struct {
	Offset int
	Value  string
	Read   bool
}

// stringTable is the timeline's decoded string pool. Offsets are relative to
// the pool start; offset zero is the reserved empty-string sentinel and never
// a real entry.
type stringTable struct {
	entries map[int]*PoolString
}

// descrambleStringPool decodes the string table region of data in place and
// indexes the strings it finds. Each byte has a running key subtracted, the
// key starting at 128 and climbing by one per byte position. Strings are
// null-delimited and recorded at their starting offset within the pool.
func descrambleStringPool(data []byte, offset, size int) (*stringTable, error) {
	if offset < 0 || size < 0 || offset+size > len(data) {
		return nil, fmt.Errorf("%w: string table region out of range", afpErrors.ErrStructure)
	}

	table := &stringTable{entries: make(map[int]*PoolString)}

	var current []byte
	curloc := 0
	addition := 128
	for i := 0; i < size; i++ {
		b := (int(data[offset+i]) - addition) & 0xFF
		data[offset+i] = byte(b)
		addition++

		if b == 0 {
			if len(current) > 0 {
				table.entries[curloc] = &PoolString{Offset: curloc, Value: string(current)}
				current = nil
			}
			curloc = i + 1
		} else {
			current = append(current, byte(b))
		}
	}

	if len(current) > 0 {
		return nil, fmt.Errorf("%w: unterminated string at end of pool", afpErrors.ErrStructure)
	}
	if _, ok := table.entries[0]; ok {
		return nil, fmt.Errorf("%w: string pool must not start with a string", afpErrors.ErrStructure)
	}

	return table, nil
}

// get returns the string at a pool offset, marking it read. Offset zero is
// the empty string.
func (t *stringTable) get(offset int) (string, error) {
	if offset == 0 {
		return "", nil
	}
	entry, ok := t.entries[offset]
	if !ok {
		return "", fmt.Errorf("%w: no string at pool offset %#x", afpErrors.ErrBadStringOffset, offset)
	}
	entry.Read = true
	return entry.Value, nil
}

// unread returns the entries nothing referenced, in pool order.
func (t *stringTable) unread() []PoolString {
	var out []PoolString
	for _, entry := range t.entries {
		if !entry.Read {
			out = append(out, *entry)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Offset < out[j].Offset })
	return out
}
