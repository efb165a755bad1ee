package services

import "errors"

var (
	ErrProductNotFound = errors.New("product not found")
	ErrProductExists   = errors.New("product already exists")

	ErrCollectionNotFound = errors.New("collection not found")

	ErrUserNotFound = errors.New("user not found")

	// Source-set conflicts during update_sources.
	ErrFileExists   = errors.New("source file already exists")
	ErrFileNotFound = errors.New("source file not found")

	ErrNotAuthorized = errors.New("not authorized")

	// ErrChainCorrupt indicates the version chain on disk is broken (a
	// non-current version with no forward link, or a middle version
	// with no successor). This is an internal invariant violation, not
	// a caller mistake.
	ErrChainCorrupt = errors.New("version chain corrupt")
)

// VersioningError is a precondition failure on a versioned operation,
// e.g. attempting to revise a non-current product.
type VersioningError struct {
	Msg string
}

func (e *VersioningError) Error() string { return e.Msg }
