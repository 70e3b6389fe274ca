package wire

import "fmt"

// Coverage records which bytes of an input buffer a parse has consumed, so
// leftover regions can be reported afterwards. Structural data may be marked
// exactly once; shared data (name strings referenced from several records)
// is marked without the uniqueness check.
type Coverage struct {
	taken []bool
}

// Range is a half-open byte interval [Start, End).
type Range struct {
	Start int
	End   int
}

func (r Range) String() string {
	return fmt.Sprintf("0x%x - 0x%x (%d bytes)", r.Start, r.End, r.End-r.Start)
}

// NewCoverage creates a tracker for a buffer of size bytes.
func NewCoverage(size int) *Coverage {
	return &Coverage{taken: make([]bool, size)}
}

// Mark consumes [off, off+length) and fails if any byte in the range was
// already consumed or lies outside the buffer.
func (c *Coverage) Mark(off, length int) error {
	if off < 0 || length < 0 || off+length > len(c.taken) {
		return fmt.Errorf("coverage range 0x%x+%d outside buffer of %d bytes", off, length, len(c.taken))
	}
	for i := off; i < off+length; i++ {
		if c.taken[i] {
			return fmt.Errorf("byte 0x%x consumed twice", i)
		}
		c.taken[i] = true
	}
	return nil
}

// MarkShared consumes [off, off+length) without the double-consume check.
func (c *Coverage) MarkShared(off, length int) error {
	if off < 0 || length < 0 || off+length > len(c.taken) {
		return fmt.Errorf("coverage range 0x%x+%d outside buffer of %d bytes", off, length, len(c.taken))
	}
	for i := off; i < off+length; i++ {
		c.taken[i] = true
	}
	return nil
}

// Uncovered returns the byte ranges never consumed, in ascending order.
func (c *Coverage) Uncovered() []Range {
	var out []Range
	start := -1
	for off, covered := range c.taken {
		if covered {
			if start >= 0 {
				out = append(out, Range{Start: start, End: off})
				start = -1
			}
		} else if start < 0 {
			start = off
		}
	}
	if start >= 0 {
		out = append(out, Range{Start: start, End: len(c.taken)})
	}
	return out
}
