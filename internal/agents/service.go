package agents

import (
	"context"
	"fmt"
	"time"
)

// ListLimit caps the number of agents returned for a domain.
const ListLimit = 100

const defaultOpTimeout = 5 * time.Second

// RegisterRequest carries an agent self-registration.
type RegisterRequest struct {
	AgentID   string
	Domain    string
	IP        string
	UserAgent string
}

func (r RegisterRequest) validate() error {
	switch {
	case r.AgentID == "":
		return fmt.Errorf("%w: agent_id is required", ErrInvalidInput)
	case r.Domain == "":
		return fmt.Errorf("%w: domain is required", ErrInvalidInput)
	case r.IP == "":
		return fmt.Errorf("%w: ip is required", ErrInvalidInput)
	case r.UserAgent == "":
		return fmt.Errorf("%w: user_agent is required", ErrInvalidInput)
	}
	return nil
}

// Service owns the agent registry operations.
type Service struct {
	store     Store
	opTimeout time.Duration
	now       func() time.Time
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithOpTimeout overrides the per-operation store timeout.
func WithOpTimeout(d time.Duration) ServiceOption {
	return func(s *Service) {
		if d > 0 {
			s.opTimeout = d
		}
	}
}

// WithClock overrides the registration timestamp source. Test hook.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService creates an agent registry over the given store.
func NewService(store Store, opts ...ServiceOption) *Service {
	s := &Service{
		store:     store,
		opTimeout: defaultOpTimeout,
		now:       time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Register records a new agent with the current timestamp.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (Agent, error) {
	if err := req.validate(); err != nil {
		return Agent{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	return s.store.Insert(ctx, Agent{
		AgentID:   req.AgentID,
		Domain:    req.Domain,
		IP:        req.IP,
		UserAgent: req.UserAgent,
		AddedAt:   s.now().UTC(),
	})
}

// UpdateNetwork refreshes the ip and user agent of a registered agent.
func (s *Service) UpdateNetwork(ctx context.Context, id, ip, userAgent string) (Agent, error) {
	switch {
	case id == "":
		return Agent{}, fmt.Errorf("%w: agent id is required", ErrInvalidInput)
	case ip == "":
		return Agent{}, fmt.Errorf("%w: ip is required", ErrInvalidInput)
	case userAgent == "":
		return Agent{}, fmt.Errorf("%w: user_agent is required", ErrInvalidInput)
	}

	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	return s.store.UpdateNetwork(ctx, id, ip, userAgent)
}

// ListByDomain returns up to ListLimit agents for a domain, newest first.
func (s *Service) ListByDomain(ctx context.Context, domain string) ([]Agent, error) {
	if domain == "" {
		return nil, fmt.Errorf("%w: domain is required", ErrInvalidInput)
	}

	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	return s.store.ListByDomain(ctx, domain, ListLimit)
}
