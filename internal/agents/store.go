package agents

import "context"

// Store persists agent records.
//
// Implementations map their backend's "not found" onto ErrNotFound and wrap
// infrastructure failures with ErrStoreUnavailable.
type Store interface {
	// Insert persists a new agent and returns it with the assigned id.
	Insert(ctx context.Context, agent Agent) (Agent, error)

	// UpdateNetwork replaces the ip and user agent of an existing agent.
	UpdateNetwork(ctx context.Context, id, ip, userAgent string) (Agent, error)

	// ListByDomain returns agents registered for the domain, up to limit.
	ListByDomain(ctx context.Context, domain string, limit int) ([]Agent, error)
}
