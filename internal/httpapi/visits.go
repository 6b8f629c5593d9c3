package httpapi

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/visitpulse/backend/internal/visits"
)

type trackVisitRequest struct {
	IP        string `json:"ip"`
	UserAgent string `json:"user_agent"`
	EnteredAt string `json:"date_entree"`
	Domain    string `json:"domain"`
	VisitorID string `json:"visitor_id"`
}

type trackVisitResponse struct {
	Status    string `json:"status"`
	VisitID   string `json:"visit_id"`
	VisitorID string `json:"visitor_id"`
}

type closeVisitRequest struct {
	ExitedAt string `json:"date_sortie"`
	Domain   string `json:"domain"`
}

type closeVisitResponse struct {
	Status  string             `json:"status"`
	Message string             `json:"message"`
	Visit   visits.SessionJSON `json:"visit"`
}

type listVisitsResponse struct {
	Status    string               `json:"status"`
	Sessions  []visits.SessionJSON `json:"sessions"`
	Truncated bool                 `json:"truncated"`
}

// trackVisit opens a session, superseding any open session for the same
// visitor within the domain.
func (a *api) trackVisit(w http.ResponseWriter, r *http.Request) {
	var req trackVisitRequest
	if err := decodeBody(r, &req); err != nil {
		writeErrorCode(w, http.StatusBadRequest, CodeInvalidInput, "malformed request body")
		return
	}

	enteredAt, err := parseTimestamp(req.EnteredAt)
	if err != nil {
		writeErrorCode(w, http.StatusBadRequest, CodeInvalidInput, "date_entree must be a valid timestamp")
		return
	}

	session, err := a.tracker.OpenOrContinue(r.Context(), visits.OpenRequest{
		Domain:    req.Domain,
		VisitorID: req.VisitorID,
		IP:        req.IP,
		UserAgent: req.UserAgent,
		EnteredAt: enteredAt,
	})
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, trackVisitResponse{
		Status:    "success",
		VisitID:   session.ID,
		VisitorID: session.VisitorID,
	})
}

// closeVisit sets the exit timestamp on an open session. A repeated close or
// a close scoped to the wrong domain is rejected.
func (a *api) closeVisit(w http.ResponseWriter, r *http.Request) {
	var req closeVisitRequest
	if err := decodeBody(r, &req); err != nil {
		writeErrorCode(w, http.StatusBadRequest, CodeInvalidInput, "malformed request body")
		return
	}

	exitedAt, err := parseTimestamp(req.ExitedAt)
	if err != nil {
		writeErrorCode(w, http.StatusBadRequest, CodeInvalidInput, "date_sortie must be a valid timestamp")
		return
	}

	session, err := a.tracker.Close(r.Context(), chi.URLParam(r, "id"), req.Domain, exitedAt)
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, closeVisitResponse{
		Status:  "success",
		Message: "session closed",
		Visit:   visits.EncodeSession(session),
	})
}

// listVisits returns the most recent sessions for a domain, capped.
func (a *api) listVisits(w http.ResponseWriter, r *http.Request) {
	result, err := a.tracker.List(r.Context(), chi.URLParam(r, "domain"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, listVisitsResponse{
		Status:    "success",
		Sessions:  visits.EncodeSessions(result.Sessions),
		Truncated: result.Truncated,
	})
}

// timestampLayouts are the accepted wire formats, most specific first.
// Zone-naive timestamps are treated as UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
}

func parseTimestamp(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}
