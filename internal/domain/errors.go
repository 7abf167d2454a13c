package domain

import (
	"errors"
	"fmt"
)

// ErrStoreUnavailable marks the one condition that aborts a whole ingestion
// cycle: the persistence layer itself cannot be reached. Everything below it
// (a bad upstream record, a single failed insert, a dead provider) is recovered
// locally and reduced to a count.
var ErrStoreUnavailable = errors.New("store unavailable")

// ValidationError reports a single record failing schema or range checks.
// The record is dropped and counted; it never aborts a batch.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// IsValidation reports whether err is a per-record validation failure.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
