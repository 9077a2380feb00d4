package scheduling

import "errors"

var (
	ErrNotFound     = errors.New("appointment not found")
	ErrInvalidInput = errors.New("invalid appointment")
)

// ValidationError reports a single rejected field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string { return e.Field + " " + e.Message }

func (e *ValidationError) Unwrap() error { return ErrInvalidInput }

func invalid(field, msg string) error {
	return &ValidationError{Field: field, Message: msg}
}
