package agents

import "time"

// Agent is a monitoring agent deployed on a tracked domain. Agents register
// themselves on startup and refresh their network identity when it changes.
type Agent struct {
	ID        string // store-assigned
	AgentID   string // caller-chosen identifier
	Domain    string
	IP        string
	UserAgent string
	AddedAt   time.Time // UTC
}

// AgentJSON is the wire shape of an agent record.
type AgentJSON struct {
	ID        string `json:"id"`
	AgentID   string `json:"agent_id"`
	Domain    string `json:"domain"`
	IP        string `json:"ip"`
	UserAgent string `json:"user_agent"`
	AddedAt   string `json:"date_added"`
}

// Encode maps an agent to its wire shape.
func Encode(a Agent) AgentJSON {
	return AgentJSON{
		ID:        a.ID,
		AgentID:   a.AgentID,
		Domain:    a.Domain,
		IP:        a.IP,
		UserAgent: a.UserAgent,
		AddedAt:   a.AddedAt.UTC().Format(time.RFC3339Nano),
	}
}

// EncodeAll maps a slice of agents to their wire shape.
func EncodeAll(list []Agent) []AgentJSON {
	out := make([]AgentJSON, len(list))
	for i, a := range list {
		out[i] = Encode(a)
	}
	return out
}
