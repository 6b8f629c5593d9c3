package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/visitpulse/backend/internal/agents"
	"github.com/visitpulse/backend/internal/domaincheck"
	"github.com/visitpulse/backend/internal/visits"
)

// Stable machine-readable error codes carried in every error payload.
const (
	CodeInvalidInput     = "invalid_input"
	CodeUnauthorized     = "unauthorized"
	CodeNotFound         = "not_found"
	CodeAlreadyClosed    = "already_closed"
	CodeDomainMismatch   = "domain_mismatch"
	CodeRateLimited      = "rate_limited"
	CodeStoreUnavailable = "store_unavailable"
	CodeUnreachable      = "domain_unreachable"
	CodeInternal         = "internal"
)

type errorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeErrorCode(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorPayload{Code: code, Message: message})
}

// writeError maps a domain error onto its HTTP status and stable code.
// Unexpected failures are logged with full context and surface as a generic
// internal error.
func (a *api) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, visits.ErrInvalidInput),
		errors.Is(err, agents.ErrInvalidInput),
		errors.Is(err, domaincheck.ErrInvalidDomain):
		writeErrorCode(w, http.StatusBadRequest, CodeInvalidInput, err.Error())
	case errors.Is(err, visits.ErrNotFound), errors.Is(err, agents.ErrNotFound):
		writeErrorCode(w, http.StatusNotFound, CodeNotFound, err.Error())
	case errors.Is(err, visits.ErrAlreadyClosed):
		writeErrorCode(w, http.StatusConflict, CodeAlreadyClosed, err.Error())
	case errors.Is(err, visits.ErrDomainMismatch):
		writeErrorCode(w, http.StatusConflict, CodeDomainMismatch, err.Error())
	case errors.Is(err, visits.ErrStoreUnavailable), errors.Is(err, agents.ErrStoreUnavailable):
		writeErrorCode(w, http.StatusServiceUnavailable, CodeStoreUnavailable,
			"store unavailable, retry later")
	case errors.Is(err, domaincheck.ErrUnreachable):
		writeErrorCode(w, http.StatusBadGateway, CodeUnreachable, err.Error())
	default:
		a.log.Error("unexpected handler failure",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Any("error", err))
		writeErrorCode(w, http.StatusInternalServerError, CodeInternal, "internal error")
	}
}

// decodeBody parses a JSON request body into dst. Unknown fields are
// tolerated; agents in the field send a superset of what each route needs.
func decodeBody(r *http.Request, dst any) error {
	return json.NewDecoder(r.Body).Decode(dst)
}
