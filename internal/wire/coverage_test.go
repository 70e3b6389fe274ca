package wire

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCoverageUncovered(t *testing.T) {
	c := NewCoverage(16)
	require.NoError(t, c.Mark(0, 4))
	require.NoError(t, c.Mark(6, 2))
	require.NoError(t, c.Mark(12, 4))

	want := []Range{{Start: 4, End: 6}, {Start: 8, End: 12}}
	require.Equal(t, want, c.Uncovered())
}

func TestCoverageFullyConsumed(t *testing.T) {
	c := NewCoverage(8)
	require.NoError(t, c.Mark(0, 8))
	require.Empty(t, c.Uncovered())
}

func TestCoverageTrailingGap(t *testing.T) {
	c := NewCoverage(8)
	require.NoError(t, c.Mark(0, 5))
	require.Equal(t, []Range{{Start: 5, End: 8}}, c.Uncovered())
}

func TestCoverageDoubleConsume(t *testing.T) {
	c := NewCoverage(8)
	require.NoError(t, c.Mark(0, 4))
	err := c.Mark(2, 4)
	require.Error(t, err)
	require.Contains(t, err.Error(), "byte 0x2 consumed twice")
}

// TestCoverageMarkShared checks that shared regions may overlap structural
// ones and each other.
func TestCoverageMarkShared(t *testing.T) {
	c := NewCoverage(8)
	require.NoError(t, c.Mark(2, 4))
	require.NoError(t, c.MarkShared(0, 8))
	require.NoError(t, c.MarkShared(0, 8))
	require.Empty(t, c.Uncovered())
}

func TestCoverageRangeChecks(t *testing.T) {
	c := NewCoverage(8)
	require.Error(t, c.Mark(-1, 2))
	require.Error(t, c.Mark(6, 4))
	require.Error(t, c.Mark(0, -1))
	require.Error(t, c.MarkShared(6, 4))
	require.NoError(t, c.Mark(6, 2))
}

func TestRangeString(t *testing.T) {
	r := Range{Start: 0x41, End: 0x44}
	if got, want := r.String(), "0x41 - 0x44 (3 bytes)"; got != want {
		t.Errorf("Range.String() = %q, want %q", got, want)
	}
}
