// Package apperr defines the sentinel errors shared across Wunjo layers.
package apperr

import (
	"errors"
	"strings"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	// ErrPending is returned when a mutation targets an entity that already
	// has an unresolved optimistic operation in flight.
	ErrPending = errors.New("operation pending")
)

// ValidationError carries the message list produced by the validation layer.
type ValidationError struct {
	Messages []string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Messages, "; ")
}

// AsValidation unwraps err into a *ValidationError if it is one.
func AsValidation(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}
