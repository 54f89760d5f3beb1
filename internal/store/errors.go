package store

import "errors"

var (
	// ErrNotFound is returned when the addressed row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a conditional update matched no row
	// because the current state differs from the expected one.
	ErrConflict = errors.New("state conflict")
	// ErrDuplicate is returned when an insert hits a unique key, such as a
	// reused idempotency key.
	ErrDuplicate = errors.New("duplicate")
)

const uniqueViolation = "23505"
