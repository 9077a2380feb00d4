package identity

import "errors"

var (
	ErrNotFound           = errors.New("user not found")
	ErrInvalidInput       = errors.New("invalid user")
	ErrUsernameTaken      = errors.New("username already taken")
	ErrPatientNameTaken   = errors.New("a patient with this name is already registered")
	ErrInvalidCredentials = errors.New("invalid username or password")
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
