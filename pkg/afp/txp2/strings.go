package txp2

import (
	"fmt"
	"sort"

	"github.com/wz18207/bemaniutils-gfdm/internal/wire"
	"github.com/wz18207/bemaniutils-gfdm/pkg/afp"
	afpErrors "github.com/wz18207/bemaniutils-gfdm/pkg/afp/errors"
)

// readName reads the null-terminated string at off, marks it as shared
// coverage (several records may point at one name), and undoes obfuscation.
func readName(data []byte, off int, obfuscated bool, cov *wire.Coverage) (string, error) {
	end := off
	for {
		if end >= len(data) {
			return "", fmt.Errorf("%w: unterminated name at offset 0x%x", afpErrors.ErrStructure, off)
		}
		if data[end] == 0 {
			break
		}
		end++
	}
	if cov != nil {
		if err := cov.MarkShared(off, end-off+1); err != nil {
			return "", fmt.Errorf("%w: %v", afpErrors.ErrStructure, err)
		}
	}
	return afp.DescrambleText(data[off:end], obfuscated), nil
}

// stringBank allocates name-string offsets during serialization. Offsets are
// deduplicated across the whole file: whichever section first needs a name
// claims its slot, later sections reuse it.
type stringBank struct {
	offsets    map[string]int
	obfuscated bool
}

func newStringBank(obfuscated bool) *stringBank {
	return &stringBank{offsets: make(map[string]int), obfuscated: obfuscated}
}

// has reports whether name already owns an offset.
func (b *stringBank) has(name string) bool {
	_, ok := b.offsets[name]
	return ok
}

// place assigns name the next free offset starting at next, returning the
// offset it holds and the updated cursor. Already-placed names do not move
// the cursor.
func (b *stringBank) place(name string, next int) (int, int) {
	if off, ok := b.offsets[name]; ok {
		return off, next
	}
	b.offsets[name] = next
	return next, next + len(name) + 1
}

// claim places name at or after next like place, additionally tracking names
// fresh to the file in claimed so the owning section writes them out.
func (b *stringBank) claim(name string, next int, claimed pending) (int, int) {
	if b.has(name) {
		off, _ := b.place(name, next)
		return off, next
	}
	off, after := b.place(name, next)
	claimed[name] = off
	return off, after
}

// pending collects the names placed at or after the given offset, the ones a
// section just claimed and still has to write.
type pending map[string]int

// flush appends every pending string at its claimed offset, padding the gaps,
// and returns the extended body. Offsets are strictly ascending after the
// sort, so padding only ever moves forward.
func (b *stringBank) flush(body []byte, p pending) ([]byte, error) {
	names := make([]string, 0, len(p))
	for name := range p {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return p[names[i]] < p[names[j]] })

	for _, name := range names {
		var err error
		body, err = padTo(body, p[name])
		if err != nil {
			return nil, err
		}
		body = append(body, afp.ScrambleText(name, b.obfuscated)...)
	}
	return body, nil
}

// padTo extends body with zero bytes up to length, refusing to shrink.
func padTo(body []byte, length int) ([]byte, error) {
	if len(body) > length {
		return nil, fmt.Errorf("%w: layout error, data already written past offset 0x%x", afpErrors.ErrStructure, length)
	}
	for len(body) < length {
		body = append(body, 0)
	}
	return body, nil
}
