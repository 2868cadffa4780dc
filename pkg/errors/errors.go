package tastetrail_errors

import (
	"errors"
)

// Common errors
var (
	ErrNotFound           = errors.New("not found")
	ErrConflict           = errors.New("conflict")
	ErrInvalidInput       = errors.New("invalid input")
	ErrAlreadyExists      = errors.New("already exists")
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrCircuitOpen        = errors.New("circuit breaker open")
	ErrNonRetriable       = errors.New("non-retriable")
	ErrDataIntegrity      = errors.New("data integrity conflict")
)

// NonRetriable wraps err so consumers route it straight to the dead-letter
// sink instead of burning retry attempts on it.
func NonRetriable(err error) error {
	if err == nil {
		return nil
	}
	return &nonRetriableError{err: err}
}

// IsNonRetriable reports whether err (or anything it wraps) was marked
// non-retriable, or is a validation error.
func IsNonRetriable(err error) bool {
	if err == nil {
		return false
	}
	var nr *nonRetriableError
	if errors.As(err, &nr) {
		return true
	}
	return errors.Is(err, ErrNonRetriable) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrDataIntegrity)
}

type nonRetriableError struct {
	err error
}

func (e *nonRetriableError) Error() string {
	return "non-retriable: " + e.err.Error()
}

func (e *nonRetriableError) Unwrap() error {
	return e.err
}
