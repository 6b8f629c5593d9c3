// Package ratelimiter implements token bucket rate limiting with pluggable
// storage backends.
//
// The in-memory store suits single-instance deployments; the Redis store
// shares bucket state across replicas. Both implement the same Store
// interface, so the limiter and its middleware are backend-agnostic:
//
//	store := ratelimiter.NewMemoryStore()
//	tb, err := ratelimiter.NewTokenBucket(store, ratelimiter.PerMinute(60))
//	r.Use(ratelimiter.Middleware(tb, keyByClientIP))
package ratelimiter
