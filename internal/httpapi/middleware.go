package httpapi

import (
	"net/http"

	"github.com/visitpulse/backend/pkg/clientip"
	"github.com/visitpulse/backend/pkg/jwt"
)

// corsMiddleware answers preflight requests and stamps permissive CORS
// headers on every response. Tracking snippets run on arbitrary third-party
// origins, so the API cannot restrict them.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// clientIPKey keys rate limit buckets by the caller's network address.
func clientIPKey(r *http.Request) string {
	return clientip.GetIP(r)
}

// subjectKey keys rate limit buckets by the authenticated credential subject,
// falling back to the client IP when no claims are present.
func subjectKey(r *http.Request) string {
	if claims, ok := jwt.GetClaims[jwt.StandardClaims](r.Context()); ok && claims.Subject != "" {
		return claims.Subject
	}
	return clientip.GetIP(r)
}
