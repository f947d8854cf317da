package store

import "errors"

var (
	// ErrInvalidOwner means the owner identifier failed format validation
	// and never reached the document store.
	ErrInvalidOwner = errors.New("invalid owner id")

	// ErrInvalidInput means a required field failed sanitization or
	// validation.
	ErrInvalidInput = errors.New("invalid input")

	// ErrDuplicateTitle means the owner already has a goal with the same
	// title (case-insensitive, trimmed).
	ErrDuplicateTitle = errors.New("duplicate goal title")

	// ErrNotFound means the goal or task id did not resolve.
	ErrNotFound = errors.New("goal not found")

	// ErrForbidden means the caller does not own the goal.
	ErrForbidden = errors.New("forbidden")

	// ErrOutOfRange means a progress value outside 0-100.
	ErrOutOfRange = errors.New("progress out of range")
)
