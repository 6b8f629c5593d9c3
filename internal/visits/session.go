package visits

import "time"

// VisitSession is a single continuous visit by one visitor to one domain,
// bounded by an open and (eventually) a close event.
type VisitSession struct {
	ID        string     // store-assigned, immutable
	Domain    string     // tenant scope; every query and mutation is domain-scoped
	VisitorID string     // analytics identifier correlating events from the same visitor
	IP        string     // captured at open, immutable
	UserAgent string     // captured at open, immutable
	EnteredAt time.Time  // UTC
	ExitedAt  *time.Time // nil while the session is open
}

// VisitorKey identifies "the same visitor" for dedup purposes.
// At most one open session may exist per key at any time.
func (s VisitSession) VisitorKey() string {
	return visitorKey(s.Domain, s.VisitorID)
}

// IsOpen reports whether the session has not been closed yet.
func (s VisitSession) IsOpen() bool {
	return s.ExitedAt == nil
}

func visitorKey(domain, visitorID string) string {
	return domain + ":" + visitorID
}

// ActivityEntry is one row of the per-domain IP activity log, appended on
// every session open. It feeds the suspicious-activity heuristics and is not
// subject to the open/closed invariant.
type ActivityEntry struct {
	Domain    string
	VisitorID string
	IP        string
	UserAgent string
	EnteredAt time.Time
}

// Event kinds broadcast to live subscribers.
const (
	EventSessionOpened = "session_opened"
	EventSessionClosed = "session_closed"
)

// Event is a session lifecycle notification carrying the session snapshot
// taken at the moment the event occurred.
type Event struct {
	Kind    string
	Session VisitSession
}

// Publisher distributes session lifecycle events to live observers.
// Implementations must never block the caller on a slow observer and must
// never return delivery failures to it.
type Publisher interface {
	Publish(event Event)
}

// NopPublisher discards events. Used when no fan-out hub is attached.
type NopPublisher struct{}

func (NopPublisher) Publish(Event) {}
