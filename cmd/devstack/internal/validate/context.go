package validate

import (
	"net/http"
	"sync"
	"time"
)

// HTTPClient abstracts http.Client for testability.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Context carries everything a check needs to run against a live stack.
//
// # Description
//
// Checks receive this instead of reading process environment or global
// state, so each check is independently testable with a fabricated
// context. All fields are read-only for checks, with one exception: the
// bearer token, which the token-acquisition check caches through
// SetToken. Token access is guarded for concurrent harness execution.
type Context struct {
	// AuthURL is the auth service base URL, e.g. "http://localhost:8089".
	AuthURL string

	// APIURL is the protected event API base URL.
	APIURL string

	// GatewayURL is the public gateway proxy base URL.
	GatewayURL string

	// AdminURL is the gateway admin API base URL.
	AdminURL string

	// InternalEndpoints lists internal-only URLs that must not be
	// reachable from the public interface.
	InternalEndpoints []string

	// Username and Password are the test credentials for the password
	// grant against the auth service.
	Username string
	Password string

	// AuthSecret is the configured JWT signing secret, inspected by the
	// secret-strength check. Never logged.
	AuthSecret string

	// Client is the HTTP client shared by all checks.
	Client HTTPClient

	mu    sync.RWMutex
	token string
}

// NewContext creates a Context with a default bounded HTTP client.
func NewContext() *Context {
	return &Context{
		Client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Token returns the cached bearer token, empty when none was acquired.
// Safe for concurrent use.
func (c *Context) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// SetToken caches a bearer token for later checks. Safe for concurrent use.
func (c *Context) SetToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
}
