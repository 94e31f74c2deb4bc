package storage

import (
	"errors"
)

var (
	// ErrNotFound is returned when a retrieved key does not exist in the
	// database. It is the caller's responsibility to handle this error
	// and decide whether the absence is expected.
	ErrNotFound = errors.New("key not found")

	// ErrAlreadyExists is returned when an insert targets a key that
	// already exists in the database.
	ErrAlreadyExists = errors.New("key already exists")
)

// IsNotFound returns whether err indicates a missing key.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
