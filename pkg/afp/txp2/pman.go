package txp2

import (
	"encoding/binary"
	"fmt"

	"github.com/wz18207/bemaniutils-gfdm/internal/wire"
	afpErrors "github.com/wz18207/bemaniutils-gfdm/pkg/afp/errors"
)

// NameTable is a parsed PMAN block: an ordered name registry that the other
// sections use to resolve names to list indices. Entry strings are held in
// logical order; Ordering records the physical position each entry's record
// occupied in the file, which some games hardcode and which therefore must
// survive a round trip.
type NameTable struct {
	Entries  []string
	Ordering []int
	Flags1   uint32
	Flags2   uint32
	Flags3   uint32
}

// NewNameTable builds a table over names with physical order matching
// logical order, the layout the serializer produces for new tables.
func NewNameTable(names []string) *NameTable {
	ordering := make([]int, len(names))
	for i := range ordering {
		ordering[i] = i
	}
	return &NameTable{Entries: append([]string(nil), names...), Ordering: ordering}
}

// Len returns the number of entries.
func (t *NameTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Entries)
}

// Lookup resolves a name to its logical index.
func (t *NameTable) Lookup(name string) (int, bool) {
	if t == nil {
		return 0, false
	}
	for i, entry := range t.Entries {
		if entry == name {
			return i, true
		}
	}
	return 0, false
}

// NameChecksum computes the 6-bit-serial CRC stored next to every name table
// entry. Each name byte contributes its six low bits, least significant
// first, to a 32-bit register that xors in the generator polynomial whenever
// its top bit is set before the shift.
func NameChecksum(name []byte) uint32 {
	var result uint32
	for _, b := range name {
		for i := 0; i < 6; i++ {
			var poly uint32
			if result&0x80000000 != 0 {
				poly = namePoly
			}
			result = poly ^ ((result << 1) | uint32((b>>i)&1))
		}
	}
	return result
}

// parseNameTable reads the PMAN structure at off.
func parseNameTable(data []byte, order binary.ByteOrder, off int, obfuscated bool, cov *wire.Coverage) (*NameTable, error) {
	if off+NameTableHeaderLen > len(data) {
		return nil, fmt.Errorf("%w: name table header at 0x%x past end of file", afpErrors.ErrStructure, off)
	}

	magic := data[off : off+4]
	expectZero := order.Uint32(data[off+4:])
	flags1 := order.Uint32(data[off+8:])
	flags2 := order.Uint32(data[off+12:])
	numEntries := int(order.Uint32(data[off+16:]))
	flags3 := order.Uint32(data[off+20:])
	payloadOffset := int(order.Uint32(data[off+24:]))
	if err := cov.Mark(off, NameTableHeaderLen); err != nil {
		return nil, fmt.Errorf("%w: %v", afpErrors.ErrStructure, err)
	}

	want := NameTableMagicLE
	if order == binary.BigEndian {
		want = NameTableMagicBE
	}
	if string(magic) != string(want) {
		return nil, fmt.Errorf("%w: name table at 0x%x", afpErrors.ErrInvalidMagic, off)
	}
	if expectZero != 0 {
		return nil, fmt.Errorf("%w: name table at 0x%x", afpErrors.ErrReservedNotZero, off)
	}

	names := make([]string, numEntries)
	seen := make([]bool, numEntries)
	ordering := make([]int, numEntries)
	for i := 0; i < numEntries; i++ {
		entryOffset := payloadOffset + i*NameTableEntryLen
		if entryOffset+NameTableEntryLen > len(data) {
			return nil, fmt.Errorf("%w: name table entry %d past end of file", afpErrors.ErrStructure, i)
		}
		nameCRC := order.Uint32(data[entryOffset:])
		entryNo := order.Uint32(data[entryOffset+4:])
		nameOffset := int(order.Uint32(data[entryOffset+8:]))
		if err := cov.Mark(entryOffset, NameTableEntryLen); err != nil {
			return nil, fmt.Errorf("%w: %v", afpErrors.ErrStructure, err)
		}

		if nameOffset == 0 {
			return nil, fmt.Errorf("%w: name table entry %d", afpErrors.ErrBadStringOffset, i)
		}
		if int(entryNo) >= numEntries {
			return nil, fmt.Errorf("%w: name table entry number %d out of %d", afpErrors.ErrOutOfBounds, entryNo, numEntries)
		}
		if seen[entryNo] {
			return nil, fmt.Errorf("%w: name table entry number %d repeated", afpErrors.ErrOutOfBounds, entryNo)
		}

		name, err := readName(data, nameOffset, obfuscated, cov)
		if err != nil {
			return nil, err
		}
		if nameCRC != NameChecksum([]byte(name)) {
			return nil, fmt.Errorf("%w: name %q", afpErrors.ErrChecksumMismatch, name)
		}

		names[entryNo] = name
		ordering[entryNo] = i
		seen[entryNo] = true
	}

	// Every logical slot must have been claimed exactly once; the repeat
	// check above makes the two permutations stand or fall together.
	for i, ok := range seen {
		if !ok {
			return nil, fmt.Errorf("%w: no name table mapping for entry %d", afpErrors.ErrOutOfBounds, i)
		}
	}

	return &NameTable{
		Entries:  names,
		Ordering: ordering,
		Flags1:   flags1,
		Flags2:   flags2,
		Flags3:   flags3,
	}, nil
}

// appendNameTable lays the PMAN structure down at the current end of body,
// which the caller has already aligned. Entry records land at their recorded
// physical positions; strings new to the file go through the bank.
func appendNameTable(body []byte, order binary.ByteOrder, table *NameTable, bank *stringBank) ([]byte, error) {
	offset := len(body)
	payloadOffset := offset + NameTableHeaderLen
	stringOffset := payloadOffset + table.Len()*NameTableEntryLen
	claimed := make(pending)

	magic := NameTableMagicLE
	if order == binary.BigEndian {
		magic = NameTableMagicBE
	}

	var header [NameTableHeaderLen]byte
	copy(header[0:4], magic)
	order.PutUint32(header[8:], table.Flags1)
	order.PutUint32(header[12:], table.Flags2)
	order.PutUint32(header[16:], uint32(table.Len()))
	order.PutUint32(header[20:], table.Flags3)
	order.PutUint32(header[24:], uint32(payloadOffset))
	body = append(body, header[:]...)

	records := make([][]byte, table.Len())
	for entryNo, name := range table.Entries {
		isNew := !bank.has(name)
		nameOffset, next := bank.place(name, stringOffset)
		if isNew {
			claimed[name] = nameOffset
			stringOffset = next
		}

		record := make([]byte, NameTableEntryLen)
		order.PutUint32(record[0:], NameChecksum([]byte(name)))
		order.PutUint32(record[4:], uint32(entryNo))
		order.PutUint32(record[8:], uint32(nameOffset))

		position := table.Ordering[entryNo]
		if position < 0 || position >= len(records) || records[position] != nil {
			return nil, fmt.Errorf("%w: name table ordering is not a permutation", afpErrors.ErrOutOfBounds)
		}
		records[position] = record
	}
	for _, record := range records {
		body = append(body, record...)
	}

	return bank.flush(body, claimed)
}
