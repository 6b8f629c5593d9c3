// Package jwt implements signing and validation of the short-lived bearer
// credentials that gate write access to the tracking API.
//
// Tokens are HMAC-SHA256 (HS256) JWTs. Validity is purely a function of the
// signature and the temporal claims at check time; nothing is persisted
// server-side.
package jwt
