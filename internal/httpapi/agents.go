package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/visitpulse/backend/internal/agents"
	"github.com/visitpulse/backend/pkg/clientip"
)

type registerAgentRequest struct {
	AgentID   string `json:"agent_id"`
	IP        string `json:"ip"`
	UserAgent string `json:"user_agent"`
	Domain    string `json:"domain"`
}

type registerAgentResponse struct {
	Status string           `json:"status"`
	Agent  agents.AgentJSON `json:"agent"`
}

type updateAgentRequest struct {
	IP        string `json:"ip"`
	UserAgent string `json:"user_agent"`
}

type updateAgentResponse struct {
	Status string           `json:"status"`
	Agent  agents.AgentJSON `json:"agent"`
}

type listAgentsResponse struct {
	Status string             `json:"status"`
	Agents []agents.AgentJSON `json:"agents"`
}

// registerAgent records a monitoring agent for a domain. The ip defaults to
// the caller's network address when omitted.
func (a *api) registerAgent(w http.ResponseWriter, r *http.Request) {
	var req registerAgentRequest
	if err := decodeBody(r, &req); err != nil {
		writeErrorCode(w, http.StatusBadRequest, CodeInvalidInput, "malformed request body")
		return
	}
	if req.IP == "" {
		req.IP = clientip.GetIP(r)
	}

	agent, err := a.agents.Register(r.Context(), agents.RegisterRequest{
		AgentID:   req.AgentID,
		Domain:    req.Domain,
		IP:        req.IP,
		UserAgent: req.UserAgent,
	})
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, registerAgentResponse{
		Status: "success",
		Agent:  agents.Encode(agent),
	})
}

// updateAgent refreshes the network identity of a registered agent.
func (a *api) updateAgent(w http.ResponseWriter, r *http.Request) {
	var req updateAgentRequest
	if err := decodeBody(r, &req); err != nil {
		writeErrorCode(w, http.StatusBadRequest, CodeInvalidInput, "malformed request body")
		return
	}

	agent, err := a.agents.UpdateNetwork(r.Context(), chi.URLParam(r, "id"), req.IP, req.UserAgent)
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, updateAgentResponse{
		Status: "success",
		Agent:  agents.Encode(agent),
	})
}

// listAgents returns the agents registered for a domain.
func (a *api) listAgents(w http.ResponseWriter, r *http.Request) {
	list, err := a.agents.ListByDomain(r.Context(), chi.URLParam(r, "domain"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, listAgentsResponse{
		Status: "success",
		Agents: agents.EncodeAll(list),
	})
}
