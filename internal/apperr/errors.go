// Package apperr defines the error taxonomy shared by the engine packages.
package apperr

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks rejected input (empty title, oversized payloads).
	ErrValidation = errors.New("validation")
	// ErrNotFound marks requests for an item id that does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidPath marks a storage root that cannot be created or written.
	ErrInvalidPath = errors.New("invalid path")
	// ErrStorageUnavailable marks a storage root that stopped being writable.
	ErrStorageUnavailable = errors.New("storage unavailable")
)

// CorruptionError reports a structurally damaged full-text index. The
// consistency manager matches on it to trigger a rebuild; it must never be
// conflated with document-store failures, which are real data errors.
type CorruptionError struct {
	Op  string
	Err error
}

func (e *CorruptionError) Error() string {
	return fmt.Sprintf("index corruption during %s: %v", e.Op, e.Err)
}

func (e *CorruptionError) Unwrap() error { return e.Err }

// IsCorruption reports whether err carries a CorruptionError.
func IsCorruption(err error) bool {
	var ce *CorruptionError
	return errors.As(err, &ce)
}
