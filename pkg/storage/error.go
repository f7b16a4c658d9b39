package storage

import "github.com/papercomputeco/docchat/pkg/errs"

// NotFoundError is returned when a document doesn't exist in the store.
type NotFoundError struct {
	ID string
}

func (e NotFoundError) Error() string {
	if e.ID == "" {
		return "document not found"
	}

	return "document not found: " + e.ID
}

// Unwrap lets errors.Is(err, errs.ErrNotFound) match.
func (e NotFoundError) Unwrap() error {
	return errs.ErrNotFound
}
