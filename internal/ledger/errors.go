package ledger

import "errors"

var (
	// ErrNotFound is returned when a record does not exist
	ErrNotFound = errors.New("not found")
	// ErrInvalidInput is returned when a request fails validation
	ErrInvalidInput = errors.New("invalid input")
	// ErrUnsupportedFile is returned for uploads that are not receipts we can read
	ErrUnsupportedFile = errors.New("unsupported file")
	// ErrConflict is returned when a unique value is already taken
	ErrConflict = errors.New("conflict")
)
