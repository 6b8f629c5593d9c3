package agents

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// MemoryStore implements Store with an in-process map. Used by tests and
// local development.
type MemoryStore struct {
	mu     sync.RWMutex
	agents map[string]Agent
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{agents: make(map[string]Agent)}
}

func (ms *MemoryStore) Insert(ctx context.Context, agent Agent) (Agent, error) {
	if err := ctx.Err(); err != nil {
		return Agent{}, storeErr(err)
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()

	agent.ID = uuid.NewString()
	ms.agents[agent.ID] = agent
	return agent, nil
}

func (ms *MemoryStore) UpdateNetwork(ctx context.Context, id, ip, userAgent string) (Agent, error) {
	if err := ctx.Err(); err != nil {
		return Agent{}, storeErr(err)
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()

	a, ok := ms.agents[id]
	if !ok {
		return Agent{}, ErrNotFound
	}

	a.IP = ip
	a.UserAgent = userAgent
	ms.agents[id] = a
	return a, nil
}

func (ms *MemoryStore) ListByDomain(ctx context.Context, domain string, limit int) ([]Agent, error) {
	if err := ctx.Err(); err != nil {
		return nil, storeErr(err)
	}

	ms.mu.RLock()
	defer ms.mu.RUnlock()

	var out []Agent
	for _, a := range ms.agents {
		if a.Domain == domain {
			out = append(out, a)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].AddedAt.After(out[j].AddedAt)
	})

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
