package domaincheck_test

import (
	"context"
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/visitpulse/backend/internal/domaincheck"
)

func TestCheckerStatus(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("reports online for a 200 response", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))
		defer srv.Close()

		checker := domaincheck.New()
		result, err := checker.Status(ctx, srv.URL)
		require.NoError(t, err)

		assert.True(t, result.Online)
		assert.Equal(t, http.StatusOK, result.StatusCode)
	})

	t.Run("reports offline for a non-200 response", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer srv.Close()

		checker := domaincheck.New()
		result, err := checker.Status(ctx, srv.URL)
		require.NoError(t, err)

		assert.False(t, result.Online)
		assert.Equal(t, http.StatusServiceUnavailable, result.StatusCode)
	})

	t.Run("reports offline for an unreachable domain", func(t *testing.T) {
		t.Parallel()

		checker := domaincheck.New(domaincheck.WithTimeout(time.Second))
		result, err := checker.Status(ctx, "http://127.0.0.1:1")
		require.NoError(t, err)

		assert.False(t, result.Online)
		assert.Zero(t, result.StatusCode)
	})

	t.Run("rejects an empty domain", func(t *testing.T) {
		t.Parallel()

		checker := domaincheck.New()
		_, err := checker.Status(ctx, "  ")
		assert.ErrorIs(t, err, domaincheck.ErrInvalidDomain)
	})
}

func TestCheckerResponseTime(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("measures the round trip", func(t *testing.T) {
		t.Parallel()

		delay := 50 * time.Millisecond
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(delay)
			w.WriteHeader(http.StatusOK)
		}))
		defer srv.Close()

		checker := domaincheck.New()
		result, err := checker.ResponseTime(ctx, srv.URL)
		require.NoError(t, err)

		assert.GreaterOrEqual(t, result.Seconds, delay.Seconds())
		assert.Equal(t, http.StatusOK, result.StatusCode)
	})

	t.Run("fails for an unreachable domain", func(t *testing.T) {
		t.Parallel()

		checker := domaincheck.New(domaincheck.WithTimeout(time.Second))
		_, err := checker.ResponseTime(ctx, "http://127.0.0.1:1")
		assert.ErrorIs(t, err, domaincheck.ErrUnreachable)
	})
}

func TestCheckerSSL(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("reads the certificate validity window", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))
		defer srv.Close()

		addr := strings.TrimPrefix(srv.URL, "https://")
		checker := domaincheck.New(
			domaincheck.WithTLSConfig(&tls.Config{InsecureSkipVerify: true}),
		)

		info, err := checker.SSL(ctx, addr)
		require.NoError(t, err)

		assert.True(t, info.Valid)
		assert.False(t, info.NotBefore.IsZero())
		assert.True(t, info.NotAfter.After(info.NotBefore))
		assert.NotEmpty(t, info.SerialNumber)
	})

	t.Run("fails for a non-tls endpoint", func(t *testing.T) {
		t.Parallel()

		checker := domaincheck.New(domaincheck.WithTimeout(time.Second))
		_, err := checker.SSL(ctx, "127.0.0.1:1")
		assert.ErrorIs(t, err, domaincheck.ErrUnreachable)
	})

	t.Run("rejects an empty domain", func(t *testing.T) {
		t.Parallel()

		checker := domaincheck.New()
		_, err := checker.SSL(ctx, "")
		assert.ErrorIs(t, err, domaincheck.ErrInvalidDomain)
	})
}

func TestCheckerPublicIP(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("returns the echoed ip", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"ip":"198.51.100.33"}`))
		}))
		defer srv.Close()

		checker := domaincheck.New(domaincheck.WithIPEchoURL(srv.URL))
		ip, err := checker.PublicIP(ctx)
		require.NoError(t, err)
		assert.Equal(t, "198.51.100.33", ip)
	})

	t.Run("fails when the echo service errors", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer srv.Close()

		checker := domaincheck.New(domaincheck.WithIPEchoURL(srv.URL))
		_, err := checker.PublicIP(ctx)
		assert.ErrorIs(t, err, domaincheck.ErrUnreachable)
	})
}
