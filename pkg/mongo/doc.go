// Package mongo wires the MongoDB driver into the service: connection with
// startup retries, environment-driven configuration, and a readiness probe.
package mongo
