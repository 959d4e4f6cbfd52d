// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import "errors"

// Common sentinels across repo/service layers.
var (
	// ErrNotFound indicates the requested entity does not exist or is not owned by the caller.
	ErrNotFound = errors.New("not found")

	// ErrInvalidActivity indicates an unknown (category, activity type) pair.
	ErrInvalidActivity = errors.New("invalid activity type")

	// ErrInvalidAmount indicates a missing, non-positive or non-finite amount.
	ErrInvalidAmount = errors.New("amount must be greater than 0")

	// ErrInvalidTimestamp indicates an activity timestamp in the future.
	ErrInvalidTimestamp = errors.New("invalid activity timestamp")

	// ErrInvalidCredentials indicates malformed registration input.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrPersistence wraps storage collaborator failures.
	ErrPersistence = errors.New("persistence failure")

	// ErrUnauthorized indicates failed authentication/authorization.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrAlreadyExists indicates a unique constraint violation (e.g., username taken).
	ErrAlreadyExists = errors.New("already exists")
)

// IsValidation reports whether err is an input error the caller must correct.
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidActivity) ||
		errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrInvalidTimestamp) ||
		errors.Is(err, ErrInvalidCredentials)
}
