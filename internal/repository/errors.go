package repository

import "errors"

// ErrNotFound indicates an entity was not located.
var ErrNotFound = errors.New("repository: not found")

// ErrInvalidArgument indicates the store rejected the operation, including
// conditional updates whose guard did not match.
var ErrInvalidArgument = errors.New("repository: invalid argument")

// ErrConflict indicates a uniqueness violation.
var ErrConflict = errors.New("repository: conflict")
