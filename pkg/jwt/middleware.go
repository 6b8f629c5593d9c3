package jwt

import (
	"net/http"
	"strings"
)

// ErrorResponder writes an HTTP response for a rejected credential.
// The default responder replies with plain-text 401.
type ErrorResponder func(w http.ResponseWriter, r *http.Request, err error)

// MiddlewareConfig configures credential validation middleware.
type MiddlewareConfig struct {
	Service *Service       // token service used for validation
	OnError ErrorResponder // optional custom rejection response
}

// Middleware validates the Bearer credential on every request and injects
// the parsed claims into the request context for downstream handlers.
// Requests with a missing, malformed, expired, or forged token never reach
// the wrapped handler.
func Middleware(service *Service) func(next http.Handler) http.Handler {
	return MiddlewareWithConfig(MiddlewareConfig{Service: service})
}

// MiddlewareWithConfig creates credential validation middleware with custom configuration.
func MiddlewareWithConfig(config MiddlewareConfig) func(next http.Handler) http.Handler {
	if config.OnError == nil {
		config.OnError = func(w http.ResponseWriter, r *http.Request, err error) {
			http.Error(w, err.Error(), http.StatusUnauthorized)
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, err := BearerToken(r)
			if err != nil {
				config.OnError(w, r, err)
				return
			}

			var claims StandardClaims
			if err := config.Service.Parse(tokenString, &claims); err != nil {
				config.OnError(w, r, err)
				return
			}

			ctx := SetToken(r.Context(), tokenString)
			ctx = SetClaims(ctx, claims)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// BearerToken extracts a token from the "Authorization: Bearer <token>"
// header per RFC 6750.
func BearerToken(r *http.Request) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", ErrInvalidToken
	}

	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", ErrInvalidToken
	}

	return parts[1], nil
}
