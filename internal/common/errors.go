// Package common defines shared constants, sentinel errors and small helpers
// used across authkeeper layers. Callers should use errors.Is to match the
// sentinel values and errors.As to match *StorageError.
package common

import (
	"errors"
	"fmt"
)

var (
	// Repository-level errors.
	ErrorNotFound      = errors.New("not found")
	ErrorAlreadyExists = errors.New("already exists")

	// ErrEmailInUse is the conflict raised when the unique email index rejects
	// an insert. It is surfaced to clients and never retried.
	ErrEmailInUse = errors.New("email already in use")

	// Service-level errors.
	ErrorInternal       = errors.New("internal error")
	ErrorUnauthorized   = errors.New("unauthorized")
	ErrorValidation     = errors.New("validation error")
	ErrEmailNotVerified = errors.New("email not verified")
	ErrAccountNotLinked = errors.New("account not linked")

	// Token errors.
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)

// StorageError reports a failed read or write against the persistence layer.
// Op names the step that failed.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// NewStorageError wraps err as a *StorageError unless it already is one.
func NewStorageError(op string, err error) error {
	var se *StorageError
	if errors.As(err, &se) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}

// ValidationError builds an error that matches ErrorValidation and carries a
// human readable reason.
func ValidationError(reason string) error {
	return fmt.Errorf("%w: %s", ErrorValidation, reason)
}
