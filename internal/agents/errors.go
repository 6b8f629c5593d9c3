package agents

import "errors"

var (
	// ErrInvalidInput indicates a missing or malformed field in the request.
	ErrInvalidInput = errors.New("agents: invalid input")

	// ErrNotFound indicates that no agent matches the given id.
	ErrNotFound = errors.New("agents: agent not found")

	// ErrStoreUnavailable indicates that the durable store could not be
	// reached or timed out.
	ErrStoreUnavailable = errors.New("agents: store unavailable")
)

func storeErr(err error) error {
	return errors.Join(ErrStoreUnavailable, err)
}
