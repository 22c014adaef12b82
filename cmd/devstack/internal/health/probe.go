// Package health implements readiness probing for stack services.
//
// A Probe performs exactly one bounded HTTP check against a readiness
// endpoint. The Poller layers retry policy on top: fixed-interval
// attempts under a deadline, cancellable at any point. Keeping the two
// separate means retry policy is testable with a fake timer and the
// probe is testable with a mock HTTP client.
package health

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// =============================================================================
// Error Definitions
// =============================================================================

var (
	// ErrUnsafeURL is returned when an endpoint URL fails validation.
	ErrUnsafeURL = errors.New("unsafe or invalid URL")
)

// HTTPClient abstracts http.Client for testability.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// =============================================================================
// Probe Types
// =============================================================================

// ProbeStatus classifies a single readiness check.
type ProbeStatus int

const (
	// StatusReady means the endpoint returned a 2xx response.
	StatusReady ProbeStatus = iota

	// StatusUnreachable means the request could not complete
	// (connection refused, DNS failure, timeout).
	StatusUnreachable

	// StatusError means the endpoint responded with a non-2xx status.
	StatusError
)

// String returns a human-readable status name.
func (s ProbeStatus) String() string {
	switch s {
	case StatusReady:
		return "ready"
	case StatusUnreachable:
		return "unreachable"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// Outcome is the immutable result of one probe attempt.
type Outcome struct {
	// Status classifies the attempt.
	Status ProbeStatus

	// Code is the HTTP status code when Status is StatusError
	// (or StatusReady), zero otherwise.
	Code int

	// Err is the transport error when Status is StatusUnreachable.
	Err error
}

// Ready reports whether the outcome indicates a ready endpoint.
func (o Outcome) Ready() bool {
	return o.Status == StatusReady
}

// Prober performs a single readiness check against an endpoint.
type Prober interface {
	Probe(ctx context.Context, endpoint string) Outcome
}

// =============================================================================
// HTTP Probe
// =============================================================================

// HTTPProbe checks readiness with one bounded GET request.
//
// # Description
//
// A 2xx response means ready. A non-2xx response and a transport failure
// are distinguished so callers can tell "service up but unhealthy" from
// "service not listening". No retries happen at this layer.
type HTTPProbe struct {
	client  HTTPClient
	timeout time.Duration
}

// NewHTTPProbe creates a probe with the given client and per-request timeout.
// A nil client falls back to a default http.Client; a zero timeout
// defaults to 5 seconds.
func NewHTTPProbe(client HTTPClient, timeout time.Duration) *HTTPProbe {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	return &HTTPProbe{client: client, timeout: timeout}
}

// Probe performs one GET against the endpoint.
//
// # Inputs
//
//   - ctx: Parent context; the request is additionally bounded by the
//     probe's own timeout
//   - endpoint: Full readiness URL, e.g. "http://localhost:8089/health"
//
// # Outputs
//
//   - Outcome: StatusReady on 2xx, StatusError with code on other
//     responses, StatusUnreachable with cause on transport failure
func (p *HTTPProbe) Probe(ctx context.Context, endpoint string) Outcome {
	if err := validateEndpointURL(endpoint); err != nil {
		return Outcome{Status: StatusUnreachable, Err: err}
	}

	reqCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Outcome{Status: StatusUnreachable, Err: err}
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return Outcome{Status: StatusUnreachable, Err: err}
	}
	defer resp.Body.Close()

	// Drain so the connection can be reused across attempts.
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return Outcome{Status: StatusReady, Code: resp.StatusCode}
	}
	return Outcome{Status: StatusError, Code: resp.StatusCode}
}

// validateEndpointURL rejects URLs that are not plain http/https.
// Readiness endpoints are operator-configured, but a malformed scheme
// here points at a config mistake worth failing loudly on.
func validateEndpointURL(endpoint string) error {
	u, err := url.Parse(endpoint)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnsafeURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: scheme %q", ErrUnsafeURL, u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("%w: missing host", ErrUnsafeURL)
	}
	return nil
}

// ProbeFunc adapts a function to the Prober interface.
type ProbeFunc func(ctx context.Context, endpoint string) Outcome

// Probe implements Prober.
func (f ProbeFunc) Probe(ctx context.Context, endpoint string) Outcome {
	return f(ctx, endpoint)
}

var _ Prober = (*HTTPProbe)(nil)
var _ Prober = (ProbeFunc)(nil)
