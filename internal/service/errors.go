package service

import (
	"errors"

	"github.com/nebari-dev/accessd/internal/store"
)

// ErrNotFound indicates the requested resource was not found.
var ErrNotFound = errors.New("not found")

// ValidationError represents a bad-request condition (HTTP 400).
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func invalid(msg string) error {
	return &ValidationError{Message: msg}
}

// translate maps store errors onto service errors. Unique violations become
// a ValidationError carrying msg.
func translate(err error, msg string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrNotFound):
		return ErrNotFound
	case msg != "" && store.IsUniqueViolation(err):
		return invalid(msg)
	default:
		return err
	}
}
