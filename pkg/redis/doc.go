// Package redis provides connection helpers for the go-redis client: retried
// startup connection from environment-driven configuration plus a readiness
// probe. The shared rate limit store builds on the client returned here.
package redis
