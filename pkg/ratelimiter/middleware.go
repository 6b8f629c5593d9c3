package ratelimiter

import (
	"hash/fnv"
	"net/http"
	"strconv"
	"strings"
)

// maxKeyLength is the maximum allowed length for a rate limit key
// to prevent excessively long storage keys.
const maxKeyLength = 64

// KeyFunc extracts a rate limit key from the request.
type KeyFunc func(r *http.Request) string

// LimitResponder writes the response for a request that exceeded its quota.
type LimitResponder func(w http.ResponseWriter, r *http.Request, result *Result)

// Composite combines multiple key functions into one.
// Long keys (>64 chars) are hashed using FNV-1a for storage efficiency.
func Composite(keyFuncs ...KeyFunc) KeyFunc {
	return func(r *http.Request) string {
		parts := make([]string, 0, len(keyFuncs))
		for _, fn := range keyFuncs {
			if key := fn(r); key != "" {
				parts = append(parts, key)
			}
		}

		if len(parts) == 0 {
			return ""
		}

		if len(parts) == 1 && len(parts[0]) <= maxKeyLength {
			return parts[0]
		}

		combined := strings.Join(parts, ":")

		if len(combined) > maxKeyLength {
			h := fnv.New64a()
			h.Write([]byte(combined))
			// Base36 encoding for compact output (~13 chars)
			return strconv.FormatUint(h.Sum64(), 36)
		}

		return combined
	}
}

// MiddlewareConfig configures rate limiting middleware.
type MiddlewareConfig struct {
	Limiter *TokenBucket
	Key     KeyFunc
	OnLimit LimitResponder // optional custom 429 response
}

// Middleware creates an HTTP middleware for rate limiting.
func Middleware(tb *TokenBucket, keyFunc KeyFunc) func(http.Handler) http.Handler {
	return MiddlewareWithConfig(MiddlewareConfig{Limiter: tb, Key: keyFunc})
}

// MiddlewareWithConfig creates rate limiting middleware with custom configuration.
func MiddlewareWithConfig(config MiddlewareConfig) func(http.Handler) http.Handler {
	if config.OnLimit == nil {
		config.OnLimit = func(w http.ResponseWriter, r *http.Request, result *Result) {
			http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := config.Key(r)

			result, err := config.Limiter.Allow(r.Context(), key)
			if err != nil {
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(max(0, result.Remaining)))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))

			if !result.Allowed() {
				if retryAfter := int(result.RetryAfter().Seconds()); retryAfter > 0 {
					w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
				}
				config.OnLimit(w, r, result)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
