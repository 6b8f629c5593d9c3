package domaincheck

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"
)

const (
	defaultProbeTimeout = 10 * time.Second
	defaultIPEchoURL    = "https://api.ipify.org?format=json"
)

var (
	// ErrInvalidDomain indicates an empty or malformed domain argument.
	ErrInvalidDomain = errors.New("domaincheck: invalid domain")

	// ErrUnreachable indicates that the probed domain did not answer.
	ErrUnreachable = errors.New("domaincheck: domain unreachable")
)

// StatusResult reports whether a domain answers HTTP at all and with what
// status code. A non-200 answer counts as offline, matching the uptime
// semantics the monitoring dashboards expect.
type StatusResult struct {
	Domain     string `json:"domain"`
	StatusCode int    `json:"status_code,omitempty"`
	Online     bool   `json:"online"`
}

// ResponseTimeResult is a single response-time measurement.
type ResponseTimeResult struct {
	Domain     string  `json:"domain"`
	Seconds    float64 `json:"response_time"`
	StatusCode int     `json:"status_code"`
}

// CertInfo describes the TLS certificate a domain presents on port 443.
type CertInfo struct {
	Domain       string    `json:"domain"`
	Subject      string    `json:"subject"`
	Issuer       string    `json:"issuer"`
	SerialNumber string    `json:"serial_number"`
	NotBefore    time.Time `json:"valid_from"`
	NotAfter     time.Time `json:"valid_until"`
	Valid        bool      `json:"valid"`
}

// Option configures a Checker.
type Option func(*Checker)

// WithHTTPClient overrides the probe HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Checker) {
		if client != nil {
			c.client = client
		}
	}
}

// WithTimeout bounds each probe.
func WithTimeout(d time.Duration) Option {
	return func(c *Checker) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithIPEchoURL overrides the external service used to resolve the caller's
// public IP. Test hook.
func WithIPEchoURL(url string) Option {
	return func(c *Checker) {
		if url != "" {
			c.ipEchoURL = url
		}
	}
}

// WithTLSConfig overrides the TLS configuration used by certificate probes.
func WithTLSConfig(cfg *tls.Config) Option {
	return func(c *Checker) {
		if cfg != nil {
			c.tlsConfig = cfg
		}
	}
}

// Checker runs stateless health probes against external domains. It holds no
// state between probes and is safe for concurrent use.
type Checker struct {
	client    *http.Client
	timeout   time.Duration
	ipEchoURL string
	tlsConfig *tls.Config
}

// New creates a domain checker.
func New(opts ...Option) *Checker {
	c := &Checker{
		client:    &http.Client{Timeout: defaultProbeTimeout},
		timeout:   defaultProbeTimeout,
		ipEchoURL: defaultIPEchoURL,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Status probes the domain over HTTP and reports whether it is online.
// Connection failures yield an offline result rather than an error; only a
// bad argument fails the call.
func (c *Checker) Status(ctx context.Context, domain string) (StatusResult, error) {
	url, err := normalizeURL(domain)
	if err != nil {
		return StatusResult{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return StatusResult{}, fmt.Errorf("%w: %s", ErrInvalidDomain, domain)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return StatusResult{Domain: domain, Online: false}, nil
	}
	defer resp.Body.Close()

	return StatusResult{
		Domain:     domain,
		StatusCode: resp.StatusCode,
		Online:     resp.StatusCode == http.StatusOK,
	}, nil
}

// ResponseTime measures how long the domain takes to answer a GET request.
func (c *Checker) ResponseTime(ctx context.Context, domain string) (ResponseTimeResult, error) {
	url, err := normalizeURL(domain)
	if err != nil {
		return ResponseTimeResult{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return ResponseTimeResult{}, fmt.Errorf("%w: %s", ErrInvalidDomain, domain)
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return ResponseTimeResult{}, fmt.Errorf("%w: %s", ErrUnreachable, domain)
	}
	defer resp.Body.Close()
	elapsed := time.Since(start)

	return ResponseTimeResult{
		Domain:     domain,
		Seconds:    elapsed.Seconds(),
		StatusCode: resp.StatusCode,
	}, nil
}

// SSL dials the domain's TLS endpoint and reports the leaf certificate's
// validity window. The domain may carry an explicit port; 443 is assumed
// otherwise.
func (c *Checker) SSL(ctx context.Context, domain string) (CertInfo, error) {
	if strings.TrimSpace(domain) == "" {
		return CertInfo{}, ErrInvalidDomain
	}

	addr := domain
	host := domain
	if h, _, err := net.SplitHostPort(domain); err == nil {
		host = h
	} else {
		addr = net.JoinHostPort(domain, "443")
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	tlsCfg := &tls.Config{ServerName: host}
	if c.tlsConfig != nil {
		tlsCfg = c.tlsConfig.Clone()
		if tlsCfg.ServerName == "" {
			tlsCfg.ServerName = host
		}
	}
	dialer := &tls.Dialer{Config: tlsCfg}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return CertInfo{}, fmt.Errorf("%w: %s", ErrUnreachable, domain)
	}
	defer conn.Close()

	state := conn.(*tls.Conn).ConnectionState()
	if len(state.PeerCertificates) == 0 {
		return CertInfo{}, fmt.Errorf("%w: %s presented no certificate", ErrUnreachable, domain)
	}

	cert := state.PeerCertificates[0]
	now := time.Now()
	return CertInfo{
		Domain:       host,
		Subject:      cert.Subject.CommonName,
		Issuer:       cert.Issuer.CommonName,
		SerialNumber: cert.SerialNumber.String(),
		NotBefore:    cert.NotBefore.UTC(),
		NotAfter:     cert.NotAfter.UTC(),
		Valid:        !now.Before(cert.NotBefore) && !now.After(cert.NotAfter),
	}, nil
}

// PublicIP resolves the server's public IP through an external echo service.
func (c *Checker) PublicIP(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.ipEchoURL, nil)
	if err != nil {
		return "", fmt.Errorf("domaincheck: build ip echo request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: ip echo service", ErrUnreachable)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: ip echo service returned %d", ErrUnreachable, resp.StatusCode)
	}

	var payload struct {
		IP string `json:"ip"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("domaincheck: decode ip echo response: %w", err)
	}
	return payload.IP, nil
}

// normalizeURL turns a bare domain into a probe URL. An explicit scheme is
// kept as is.
func normalizeURL(domain string) (string, error) {
	domain = strings.TrimSpace(domain)
	if domain == "" {
		return "", ErrInvalidDomain
	}
	if strings.HasPrefix(domain, "http://") || strings.HasPrefix(domain, "https://") {
		return domain, nil
	}
	return "http://" + domain, nil
}
