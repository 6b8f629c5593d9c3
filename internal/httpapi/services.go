package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// checkStatus probes whether a domain answers HTTP.
func (a *api) checkStatus(w http.ResponseWriter, r *http.Request) {
	result, err := a.checker.Status(r.Context(), chi.URLParam(r, "domain"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// checkResponseTime measures a domain's response time.
func (a *api) checkResponseTime(w http.ResponseWriter, r *http.Request) {
	result, err := a.checker.ResponseTime(r.Context(), chi.URLParam(r, "domain"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// checkSSL reads a domain's TLS certificate validity window.
func (a *api) checkSSL(w http.ResponseWriter, r *http.Request) {
	info, err := a.checker.SSL(r.Context(), chi.URLParam(r, "domain"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// publicIP echoes the server's public address.
func (a *api) publicIP(w http.ResponseWriter, r *http.Request) {
	ip, err := a.checker.PublicIP(r.Context())
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"ip": ip})
}
