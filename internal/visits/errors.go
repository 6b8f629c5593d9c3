package visits

import "errors"

var (
	// ErrInvalidInput indicates a missing or malformed field in the request.
	ErrInvalidInput = errors.New("visits: invalid input")

	// ErrNotFound indicates that no session matches the given id and domain.
	ErrNotFound = errors.New("visits: session not found")

	// ErrAlreadyClosed indicates a close attempt on a session whose exit
	// timestamp is already set. The stored timestamp is never overwritten.
	ErrAlreadyClosed = errors.New("visits: session already closed")

	// ErrDomainMismatch indicates that the session exists but belongs to a
	// different domain than the one named in the request.
	ErrDomainMismatch = errors.New("visits: session belongs to another domain")

	// ErrStoreUnavailable indicates that the durable store could not be
	// reached or timed out. Safe to retry from the caller's side.
	ErrStoreUnavailable = errors.New("visits: store unavailable")
)

// storeErr marks a driver or context failure as a retryable store outage
// while preserving the underlying cause for logs.
func storeErr(err error) error {
	return errors.Join(ErrStoreUnavailable, err)
}
