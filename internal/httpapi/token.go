package httpapi

import (
	"fmt"
	"net/http"
	"time"

	"github.com/visitpulse/backend/pkg/jwt"
)

type tokenRequest struct {
	Domain string `json:"domain"`
	UserID string `json:"user_id"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

// generateToken issues a short-lived bearer credential scoped to a domain.
// Nothing is persisted; validity is purely a function of signature and
// expiry at check time.
func (a *api) generateToken(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := decodeBody(r, &req); err != nil {
		writeErrorCode(w, http.StatusBadRequest, CodeInvalidInput, "malformed request body")
		return
	}
	if req.Domain == "" || req.UserID == "" {
		writeErrorCode(w, http.StatusBadRequest, CodeInvalidInput, "domain and user_id are required")
		return
	}

	now := time.Now()
	token, err := a.tokens.Generate(jwt.StandardClaims{
		Subject:   fmt.Sprintf("%s_user_%s", req.Domain, req.UserID),
		IssuedAt:  now.Unix(),
		ExpiresAt: now.Add(a.tokenTTL).Unix(),
	})
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, tokenResponse{Token: token})
}
