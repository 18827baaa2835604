package domain

import (
	"errors"
	"fmt"
)

var (
	// Validation failures
	ErrInvalidURL       = errors.New("invalid URL")
	ErrInvalidValidity  = errors.New("invalid validity")
	ErrInvalidShortCode = errors.New("invalid short code")

	// Conflict and lookup failures
	ErrDuplicateShortCode = errors.New("short code already exists")
	ErrNotFound           = errors.New("short code not found")
	ErrExpired            = errors.New("short link expired")

	// ErrPersistence matches any *PersistenceError via errors.Is
	ErrPersistence = errors.New("persistence failure")
)

// PersistenceError reports a failed write or read of the backing store.
// The in-memory registry stays authoritative when one is returned.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v: %v", e.Op, ErrPersistence, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrPersistence) match without losing the cause chain.
func (e *PersistenceError) Is(target error) bool { return target == ErrPersistence }

// KindOf maps an error to a short kind name suitable for logs and metric labels.
func KindOf(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, ErrInvalidURL):
		return "invalid_url"
	case errors.Is(err, ErrInvalidValidity):
		return "invalid_validity"
	case errors.Is(err, ErrInvalidShortCode):
		return "invalid_short_code"
	case errors.Is(err, ErrDuplicateShortCode):
		return "duplicate_short_code"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrExpired):
		return "expired"
	case errors.Is(err, ErrPersistence):
		return "persistence"
	default:
		return "unknown"
	}
}

// IsValidation reports whether err is one of the request validation failures.
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidURL) ||
		errors.Is(err, ErrInvalidValidity) ||
		errors.Is(err, ErrInvalidShortCode)
}
