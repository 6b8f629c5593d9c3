package visits

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore implements Store with in-process maps. Used by tests and local
// development; production deployments use MongoStore.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]VisitSession
	activity []ActivityEntry
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]VisitSession)}
}

func (ms *MemoryStore) Insert(ctx context.Context, session VisitSession) (VisitSession, error) {
	if err := ctx.Err(); err != nil {
		return VisitSession{}, storeErr(err)
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()

	session.ID = uuid.NewString()
	ms.sessions[session.ID] = session
	return session, nil
}

func (ms *MemoryStore) FindByID(ctx context.Context, id string) (VisitSession, error) {
	if err := ctx.Err(); err != nil {
		return VisitSession{}, storeErr(err)
	}

	ms.mu.RLock()
	defer ms.mu.RUnlock()

	s, ok := ms.sessions[id]
	if !ok {
		return VisitSession{}, ErrNotFound
	}
	return s, nil
}

func (ms *MemoryStore) FindOpenByVisitor(ctx context.Context, domain, visitorID string) (VisitSession, error) {
	if err := ctx.Err(); err != nil {
		return VisitSession{}, storeErr(err)
	}

	ms.mu.RLock()
	defer ms.mu.RUnlock()

	for _, s := range ms.sessions {
		if s.Domain == domain && s.VisitorID == visitorID && s.IsOpen() {
			return s, nil
		}
	}
	return VisitSession{}, ErrNotFound
}

func (ms *MemoryStore) CloseByID(ctx context.Context, id, domain string, exitedAt time.Time) (VisitSession, error) {
	if err := ctx.Err(); err != nil {
		return VisitSession{}, storeErr(err)
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()

	s, ok := ms.sessions[id]
	if !ok || s.Domain != domain {
		return VisitSession{}, ErrNotFound
	}
	if !s.IsOpen() {
		return VisitSession{}, ErrAlreadyClosed
	}

	exited := exitedAt.UTC()
	s.ExitedAt = &exited
	ms.sessions[id] = s
	return s, nil
}

func (ms *MemoryStore) ListByDomain(ctx context.Context, domain string, limit int) ([]VisitSession, error) {
	if err := ctx.Err(); err != nil {
		return nil, storeErr(err)
	}

	ms.mu.RLock()
	defer ms.mu.RUnlock()

	var out []VisitSession
	for _, s := range ms.sessions {
		if s.Domain == domain {
			out = append(out, s)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].EnteredAt.After(out[j].EnteredAt)
	})

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (ms *MemoryStore) AppendActivity(ctx context.Context, entry ActivityEntry) error {
	if err := ctx.Err(); err != nil {
		return storeErr(err)
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()

	ms.activity = append(ms.activity, entry)
	return nil
}

func (ms *MemoryStore) RecentActivity(ctx context.Context, domain string, since time.Time, limit int) ([]ActivityEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, storeErr(err)
	}

	ms.mu.RLock()
	defer ms.mu.RUnlock()

	var out []ActivityEntry
	for _, e := range ms.activity {
		if e.Domain == domain && !e.EnteredAt.Before(since) {
			out = append(out, e)
		}
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// OpenCount returns the number of open sessions for a visitor key.
// Test helper for invariant assertions.
func (ms *MemoryStore) OpenCount(domain, visitorID string) int {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	count := 0
	for _, s := range ms.sessions {
		if s.Domain == domain && s.VisitorID == visitorID && s.IsOpen() {
			count++
		}
	}
	return count
}
