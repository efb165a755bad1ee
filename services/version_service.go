package services

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// RevisionLevel selects which component of a MAJOR.MINOR.PATCH version
// string is incremented by a revision.
type RevisionLevel int

const (
	RevisionMajor RevisionLevel = 0
	RevisionMinor RevisionLevel = 1
	RevisionPatch RevisionLevel = 2

	// RevisionVisibility is the sentinel level for visibility-only
	// changes, which never rev the version.
	RevisionVisibility RevisionLevel = -1
)

var ErrInvalidVersionFormat = errors.New("version must be three dot-separated integers")

var ErrInvalidRevisionLevel = errors.New("invalid revision level")

// ParseRevisionLevel maps the wire form of a revision level onto a
// RevisionLevel.
func ParseRevisionLevel(s string) (RevisionLevel, error) {
	switch strings.ToLower(s) {
	case "major":
		return RevisionMajor, nil
	case "minor":
		return RevisionMinor, nil
	case "patch":
		return RevisionPatch, nil
	case "visibility":
		return RevisionVisibility, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidRevisionLevel, s)
	}
}

// ReviseVersion computes the next version string: the component at the
// given level is incremented and every less-significant component is
// zeroed. The visibility sentinel returns the input unchanged.
func ReviseVersion(current string, level RevisionLevel) (string, error) {
	if level == RevisionVisibility {
		return current, nil
	}
	if level < RevisionMajor || level > RevisionPatch {
		return "", fmt.Errorf("%w: %d", ErrInvalidRevisionLevel, int(level))
	}

	parts := strings.Split(current, ".")
	if len(parts) != 3 {
		return "", fmt.Errorf("%w: %q", ErrInvalidVersionFormat, current)
	}

	var components [3]int
	for i, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 {
			return "", fmt.Errorf("%w: %q", ErrInvalidVersionFormat, current)
		}
		components[i] = n
	}

	components[level]++
	for i := int(level) + 1; i < len(components); i++ {
		components[i] = 0
	}

	return fmt.Sprintf("%d.%d.%d", components[0], components[1], components[2]), nil
}
