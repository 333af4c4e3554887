// Package errors defines the sentinel error kinds used across the engine and
// an AppError wrapper that attaches context to a sentinel.
package errors

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput covers unknown fields, malformed regexes, and illegal
	// configuration values. No state change occurs.
	ErrInvalidInput = errors.New("invalid input")
	// ErrNotFound covers lookups of unknown keys or terms. Callers treat it
	// as an empty result.
	ErrNotFound = errors.New("not found")
	// ErrConflict covers duplicate external keys on insert. Conflicting rows
	// are skipped and counted, never fatal.
	ErrConflict = errors.New("duplicate key")
	// ErrBackend covers I/O failures against the backing store. The writer
	// aborts and the enclosing transaction rolls back.
	ErrBackend = errors.New("backend failure")
	// ErrTimeout marks a query deadline expiry; partial results may
	// accompany it.
	ErrTimeout = errors.New("operation timed out")
)

type AppError struct {
	Err     error
	Message string
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(sentinel error, message string) *AppError {
	return &AppError{Err: sentinel, Message: message}
}

func Newf(sentinel error, format string, args ...any) *AppError {
	return &AppError{Err: sentinel, Message: fmt.Sprintf(format, args...)}
}
