package visits

import "time"

// SessionJSON is the wire shape of a session. Identifiers cross the boundary
// as strings and timestamps as RFC 3339 UTC; field names follow the public
// tracking API contract.
type SessionJSON struct {
	ID        string  `json:"visit_id"`
	Domain    string  `json:"domain"`
	VisitorID string  `json:"visitor_id"`
	IP        string  `json:"ip"`
	UserAgent string  `json:"user_agent"`
	EnteredAt string  `json:"date_entree"`
	ExitedAt  *string `json:"date_sortie"`
}

// EventJSON is the wire shape of a fan-out message.
type EventJSON struct {
	Event string      `json:"event"`
	Data  SessionJSON `json:"data"`
}

// EncodeSession maps the in-memory session model to its wire shape.
// This is the single serialization boundary for sessions; nothing else in
// the service renders session fields to JSON.
func EncodeSession(s VisitSession) SessionJSON {
	out := SessionJSON{
		ID:        s.ID,
		Domain:    s.Domain,
		VisitorID: s.VisitorID,
		IP:        s.IP,
		UserAgent: s.UserAgent,
		EnteredAt: encodeTime(s.EnteredAt),
	}
	if s.ExitedAt != nil {
		exited := encodeTime(*s.ExitedAt)
		out.ExitedAt = &exited
	}
	return out
}

// EncodeSessions maps a slice of sessions to their wire shape.
func EncodeSessions(sessions []VisitSession) []SessionJSON {
	out := make([]SessionJSON, len(sessions))
	for i, s := range sessions {
		out[i] = EncodeSession(s)
	}
	return out
}

// EncodeEvent maps a lifecycle event to its wire shape.
func EncodeEvent(e Event) EventJSON {
	return EventJSON{
		Event: e.Kind,
		Data:  EncodeSession(e.Session),
	}
}

func encodeTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
