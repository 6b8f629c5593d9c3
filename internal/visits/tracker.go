package visits

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// ListLimit caps the number of sessions returned by a single list call.
// Callers needing more are told the result is truncated.
const ListLimit = 100

// defaultOpTimeout bounds every store operation issued by the tracker.
const defaultOpTimeout = 5 * time.Second

// OpenRequest carries a track-visit event.
type OpenRequest struct {
	Domain    string
	VisitorID string
	IP        string
	UserAgent string
	EnteredAt time.Time
}

func (r OpenRequest) validate() error {
	switch {
	case r.Domain == "":
		return fmt.Errorf("%w: domain is required", ErrInvalidInput)
	case r.VisitorID == "":
		return fmt.Errorf("%w: visitor_id is required", ErrInvalidInput)
	case r.IP == "":
		return fmt.Errorf("%w: ip is required", ErrInvalidInput)
	case r.UserAgent == "":
		return fmt.Errorf("%w: user_agent is required", ErrInvalidInput)
	case r.EnteredAt.IsZero():
		return fmt.Errorf("%w: date_entree is required", ErrInvalidInput)
	}
	return nil
}

// ListResult is the outcome of a session list query.
type ListResult struct {
	Sessions  []VisitSession
	Truncated bool // true when the result hit ListLimit
}

// SuspiciousIP is an IP whose session-open count within the inspected window
// exceeded the configured threshold.
type SuspiciousIP struct {
	IP    string
	Count int
}

// TrackerOption configures a Tracker.
type TrackerOption func(*Tracker)

// WithOpTimeout overrides the per-operation store timeout.
func WithOpTimeout(d time.Duration) TrackerOption {
	return func(t *Tracker) {
		if d > 0 {
			t.opTimeout = d
		}
	}
}

// WithLogger sets the tracker's logger.
func WithLogger(log *slog.Logger) TrackerOption {
	return func(t *Tracker) {
		if log != nil {
			t.log = log
		}
	}
}

// Tracker owns the session lifecycle: it decides whether an incoming visit
// event opens a new session or supersedes an existing one, and it is the only
// component that mutates the session collection.
//
// The core invariant - at most one open session per visitor key - is enforced
// by serializing the read-then-write in OpenOrContinue behind a per-key
// mutex. Operations on different visitor keys proceed fully in parallel.
type Tracker struct {
	store     Store
	publisher Publisher
	keys      *keyMutex
	opTimeout time.Duration
	log       *slog.Logger
}

// NewTracker creates a session tracker over the given store.
// Events are delivered to the publisher; pass NopPublisher{} to disable fan-out.
func NewTracker(store Store, publisher Publisher, opts ...TrackerOption) *Tracker {
	t := &Tracker{
		store:     store,
		publisher: publisher,
		keys:      newKeyMutex(),
		opTimeout: defaultOpTimeout,
		log:       slog.Default(),
	}

	for _, opt := range opts {
		opt(t)
	}

	return t
}

// OpenOrContinue processes a track-visit event. If the visitor already has an
// open session within the domain, that session is closed with the new event's
// entry time before the new one is opened, so that exactly one open session
// exists for the key when the call returns.
//
// Side effects on success: an IP activity entry is appended and a
// session_opened event is published. A superseded session additionally yields
// a session_closed event.
func (t *Tracker) OpenOrContinue(ctx context.Context, req OpenRequest) (VisitSession, error) {
	if err := req.validate(); err != nil {
		return VisitSession{}, err
	}

	enteredAt := req.EnteredAt.UTC()

	// Serialize concurrent opens for the same visitor; otherwise two writers
	// could both observe "no open session" and both insert one.
	unlock := t.keys.Lock(visitorKey(req.Domain, req.VisitorID))
	defer unlock()

	ctx, cancel := context.WithTimeout(ctx, t.opTimeout)
	defer cancel()

	var superseded *VisitSession
	prior, err := t.store.FindOpenByVisitor(ctx, req.Domain, req.VisitorID)
	switch {
	case err == nil:
		// The visitor's previous tab/session ended when the new one began.
		closed, err := t.store.CloseByID(ctx, prior.ID, req.Domain, enteredAt)
		if err != nil && !errors.Is(err, ErrAlreadyClosed) {
			return VisitSession{}, err
		}
		if err == nil {
			superseded = &closed
		}
	case errors.Is(err, ErrNotFound):
		// First visit event for this key, nothing to supersede.
	default:
		return VisitSession{}, err
	}

	session, err := t.store.Insert(ctx, VisitSession{
		Domain:    req.Domain,
		VisitorID: req.VisitorID,
		IP:        req.IP,
		UserAgent: req.UserAgent,
		EnteredAt: enteredAt,
	})
	if err != nil {
		return VisitSession{}, err
	}

	// The activity log is advisory; a failed append must not fail the open.
	if err := t.store.AppendActivity(ctx, ActivityEntry{
		Domain:    req.Domain,
		VisitorID: req.VisitorID,
		IP:        req.IP,
		UserAgent: req.UserAgent,
		EnteredAt: enteredAt,
	}); err != nil {
		t.log.Warn("failed to append ip activity entry",
			slog.String("domain", req.Domain),
			slog.Any("error", err))
	}

	if superseded != nil {
		t.publisher.Publish(Event{Kind: EventSessionClosed, Session: *superseded})
	}
	t.publisher.Publish(Event{Kind: EventSessionOpened, Session: session})

	return session, nil
}

// Close sets the exit timestamp on an open session. A second close attempt is
// rejected with ErrAlreadyClosed rather than silently overwriting the stored
// timestamp, and a close scoped to the wrong domain never touches the record.
func (t *Tracker) Close(ctx context.Context, sessionID, domain string, exitedAt time.Time) (VisitSession, error) {
	switch {
	case sessionID == "":
		return VisitSession{}, fmt.Errorf("%w: visit_id is required", ErrInvalidInput)
	case domain == "":
		return VisitSession{}, fmt.Errorf("%w: domain is required", ErrInvalidInput)
	case exitedAt.IsZero():
		return VisitSession{}, fmt.Errorf("%w: date_sortie is required", ErrInvalidInput)
	}

	ctx, cancel := context.WithTimeout(ctx, t.opTimeout)
	defer cancel()

	existing, err := t.store.FindByID(ctx, sessionID)
	if err != nil {
		return VisitSession{}, err
	}
	if existing.Domain != domain {
		return VisitSession{}, ErrDomainMismatch
	}
	if !existing.IsOpen() {
		return VisitSession{}, ErrAlreadyClosed
	}

	// The store-side guard handles the race where another writer closed the
	// session between the read above and this update.
	session, err := t.store.CloseByID(ctx, sessionID, domain, exitedAt.UTC())
	if err != nil {
		return VisitSession{}, err
	}

	t.publisher.Publish(Event{Kind: EventSessionClosed, Session: session})

	return session, nil
}

// List returns up to ListLimit sessions for a domain, newest first.
func (t *Tracker) List(ctx context.Context, domain string) (ListResult, error) {
	if domain == "" {
		return ListResult{}, fmt.Errorf("%w: domain is required", ErrInvalidInput)
	}

	ctx, cancel := context.WithTimeout(ctx, t.opTimeout)
	defer cancel()

	sessions, err := t.store.ListByDomain(ctx, domain, ListLimit)
	if err != nil {
		return ListResult{}, err
	}

	return ListResult{
		Sessions:  sessions,
		Truncated: len(sessions) == ListLimit,
	}, nil
}

// SuspiciousIPs returns the IPs that opened at least threshold sessions for
// the domain within the trailing window, ordered by the activity log scan.
func (t *Tracker) SuspiciousIPs(ctx context.Context, domain string, window time.Duration, threshold int) ([]SuspiciousIP, error) {
	switch {
	case domain == "":
		return nil, fmt.Errorf("%w: domain is required", ErrInvalidInput)
	case window <= 0:
		return nil, fmt.Errorf("%w: window must be positive", ErrInvalidInput)
	case threshold <= 0:
		return nil, fmt.Errorf("%w: threshold must be positive", ErrInvalidInput)
	}

	ctx, cancel := context.WithTimeout(ctx, t.opTimeout)
	defer cancel()

	entries, err := t.store.RecentActivity(ctx, domain, time.Now().Add(-window), 0)
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int)
	var order []string
	for _, e := range entries {
		if _, seen := counts[e.IP]; !seen {
			order = append(order, e.IP)
		}
		counts[e.IP]++
	}

	var out []SuspiciousIP
	for _, ip := range order {
		if counts[ip] >= threshold {
			out = append(out, SuspiciousIP{IP: ip, Count: counts[ip]})
		}
	}
	return out, nil
}
