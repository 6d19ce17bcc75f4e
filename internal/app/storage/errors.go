package storage

import "errors"

// ErrNotFound is returned when the requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned when a unique constraint is violated, e.g. a
// username that is already taken.
var ErrDuplicate = errors.New("duplicate")
