package models

import (
	"errors"
	"fmt"
)

var (
	// ErrTransport means the remote store could not be reached or timed out
	ErrTransport = errors.New("transport error")
	// ErrServiceUnavailable means the remote store answered but is degraded
	ErrServiceUnavailable = errors.New("service unavailable")
	// ErrNotFound means the referenced complaint does not exist
	ErrNotFound = errors.New("complaint not found")
	// ErrMalformedPayload means the remote answer could not be decoded
	ErrMalformedPayload = errors.New("malformed payload")
)

// ValidationError reports a missing or invalid input field
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// IsValidation reports whether err is (or wraps) a ValidationError
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
