package visits

import (
	"context"
	"time"
)

// Store is the contract over the durable session collection. Implementations
// must treat single-document updates as atomic; cross-document consistency is
// the Tracker's responsibility.
//
// The mutation surface is deliberately narrow: sessions are inserted open and
// closed exactly once via CloseByID. There are no free-form partial updates.
type Store interface {
	// Insert persists a new session and returns it with the store-assigned ID.
	Insert(ctx context.Context, session VisitSession) (VisitSession, error)

	// FindByID returns the session with the given id regardless of domain.
	// Returns ErrNotFound when no such session exists.
	FindByID(ctx context.Context, id string) (VisitSession, error)

	// FindOpenByVisitor returns the open session for the visitor within the
	// domain, or ErrNotFound when the visitor has no open session.
	FindOpenByVisitor(ctx context.Context, domain, visitorID string) (VisitSession, error)

	// CloseByID sets the exit timestamp on the session matching id and
	// domain, guarded by the condition that the session is still open.
	// Returns the updated session, or ErrAlreadyClosed when the guard fails
	// because another writer closed it first.
	CloseByID(ctx context.Context, id, domain string, exitedAt time.Time) (VisitSession, error)

	// ListByDomain returns up to limit sessions for the domain, newest first.
	ListByDomain(ctx context.Context, domain string, limit int) ([]VisitSession, error)

	// AppendActivity appends an entry to the per-domain IP activity log.
	AppendActivity(ctx context.Context, entry ActivityEntry) error

	// RecentActivity returns up to limit activity entries for the domain with
	// EnteredAt at or after since.
	RecentActivity(ctx context.Context, domain string, since time.Time, limit int) ([]ActivityEntry, error)
}
