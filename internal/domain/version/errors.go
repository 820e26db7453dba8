// Package version provides domain types for semantic versioning.
package version

import "errors"

// Domain errors for version operations.
var (
	// ErrInvalidVersion indicates an invalid version string.
	ErrInvalidVersion = errors.New("invalid semantic version")

	// ErrInvalidBumpType indicates an invalid bump type.
	ErrInvalidBumpType = errors.New("invalid bump type")

	// ErrCannotDowngrade indicates an explicit version that is not newer than the last one.
	ErrCannotDowngrade = errors.New("cannot downgrade version")

	// ErrInvalidIncrement indicates an increment-by value below one.
	ErrInvalidIncrement = errors.New("increment must be at least 1")
)
