package services

import (
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReviseVersion(t *testing.T) {
	tests := []struct {
		name    string
		current string
		level   RevisionLevel
		want    string
	}{
		{"major zeroes the rest", "2.1.3", RevisionMajor, "3.0.0"},
		{"minor zeroes patch", "2.1.3", RevisionMinor, "2.2.0"},
		{"patch increments alone", "2.1.3", RevisionPatch, "2.1.4"},
		{"initial major", "1.0.0", RevisionMajor, "2.0.0"},
		{"initial minor", "1.0.0", RevisionMinor, "1.1.0"},
		{"initial patch", "1.0.0", RevisionPatch, "1.0.1"},
		{"visibility is a no-op", "2.1.3", RevisionVisibility, "2.1.3"},
		{"large components", "10.20.30", RevisionMinor, "10.21.0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ReviseVersion(tt.current, tt.level)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestReviseVersionInvalidFormat(t *testing.T) {
	invalid := []string{"", "1", "1.2", "1.2.3.4", "a.b.c", "1.2.x", "-1.0.0", "1..0"}

	for _, current := range invalid {
		t.Run(current, func(t *testing.T) {
			_, err := ReviseVersion(current, RevisionPatch)
			assert.ErrorIs(t, err, ErrInvalidVersionFormat)
		})
	}
}

func TestReviseVersionInvalidLevel(t *testing.T) {
	_, err := ReviseVersion("1.0.0", RevisionLevel(3))
	assert.ErrorIs(t, err, ErrInvalidRevisionLevel)

	_, err = ReviseVersion("1.0.0", RevisionLevel(-2))
	assert.ErrorIs(t, err, ErrInvalidRevisionLevel)
}

func parseVersion(t *testing.T, v string) [3]int {
	t.Helper()
	parts := strings.Split(v, ".")
	require.Len(t, parts, 3)

	var out [3]int
	for i, part := range parts {
		n, err := strconv.Atoi(part)
		require.NoError(t, err)
		out[i] = n
	}
	return out
}

// Revising at any real level must produce a strictly larger version
// under component-wise comparison.
func TestReviseVersionMonotonic(t *testing.T) {
	starts := []string{"1.0.0", "0.0.0", "3.9.9", "9.0.1"}
	levels := []RevisionLevel{RevisionMajor, RevisionMinor, RevisionPatch}

	less := func(a, b [3]int) bool {
		for i := 0; i < 3; i++ {
			if a[i] != b[i] {
				return a[i] < b[i]
			}
		}
		return false
	}

	for _, start := range starts {
		for _, level := range levels {
			next, err := ReviseVersion(start, level)
			require.NoError(t, err)
			assert.True(t, less(parseVersion(t, start), parseVersion(t, next)),
				"expected %s < %s at level %d", start, next, level)
		}
	}
}

func TestParseRevisionLevel(t *testing.T) {
	tests := []struct {
		in   string
		want RevisionLevel
	}{
		{"major", RevisionMajor},
		{"minor", RevisionMinor},
		{"patch", RevisionPatch},
		{"visibility", RevisionVisibility},
		{"MAJOR", RevisionMajor},
		{"Patch", RevisionPatch},
	}

	for _, tt := range tests {
		got, err := ParseRevisionLevel(tt.in)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}

	_, err := ParseRevisionLevel("huge")
	assert.ErrorIs(t, err, ErrInvalidRevisionLevel)
}
