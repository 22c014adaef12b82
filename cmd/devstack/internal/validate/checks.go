package validate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/time/rate"
)

// insecureDefaultSecret is the development JWT secret shipped in the
// stack's compose file. Any deployment still carrying it fails the
// secret-strength check.
const insecureDefaultSecret = "dev-secret-key-change-in-production-256-bits-minimum"

// minSecretLength is the minimum acceptable JWT secret length in bytes.
const minSecretLength = 32

// rateLimitBudget caps the request burst used to provoke a 429.
const rateLimitBudget = 25

// =============================================================================
// Check Base
// =============================================================================

// baseCheck carries the identity shared by all check kinds.
type baseCheck struct {
	id       string
	desc     string
	severity Severity
}

func (b baseCheck) ID() string { return b.id }

func (b baseCheck) Description() string { return b.desc }

func (b baseCheck) Severity() Severity { return b.severity }

func (b baseCheck) pass(format string, args ...any) Result {
	return b.result(StatusPass, format, args...)
}

func (b baseCheck) fail(format string, args ...any) Result {
	return b.result(StatusFail, format, args...)
}

func (b baseCheck) warn(format string, args ...any) Result {
	return b.result(StatusWarn, format, args...)
}

func (b baseCheck) result(status Status, format string, args ...any) Result {
	return Result{
		CheckID:   b.id,
		Status:    status,
		Severity:  b.severity,
		Detail:    fmt.Sprintf(format, args...),
		Timestamp: time.Now(),
	}
}

// =============================================================================
// HTTP Helpers
// =============================================================================

// eventEnvelope is the body of POST /api/event.
type eventEnvelope struct {
	Timestamp string         `json:"timestamp"`
	Source    string         `json:"source"`
	Intent    string         `json:"intent"`
	Payload   map[string]any `json:"payload"`
}

func newEventEnvelope(source, intent string) eventEnvelope {
	return eventEnvelope{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Source:    source,
		Intent:    intent,
		Payload:   map[string]any{"message": "validation probe"},
	}
}

func doGet(ctx context.Context, rctx *Context, target string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	return rctx.Client.Do(req)
}

func doPostJSON(ctx context.Context, rctx *Context, target, bearer string, body any) (*http.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	return rctx.Client.Do(req)
}

func drainAndClose(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024))
	resp.Body.Close()
}

// acquireToken performs the password grant and caches the token.
// Checks that need a bearer call this when the cache is empty, keeping
// every check runnable in isolation.
func acquireToken(ctx context.Context, rctx *Context) (string, error) {
	if tok := rctx.Token(); tok != "" {
		return tok, nil
	}

	form := url.Values{
		"grant_type": {"password"},
		"username":   {rctx.Username},
		"password":   {rctx.Password},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		rctx.AuthURL+"/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := rctx.Client.Do(req)
	if err != nil {
		return "", err
	}
	defer drainAndClose(resp)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("token endpoint returned %d", resp.StatusCode)
	}

	var body struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64*1024)).Decode(&body); err != nil {
		return "", fmt.Errorf("malformed token response: %w", err)
	}
	if body.AccessToken == "" {
		return "", fmt.Errorf("token response missing access_token")
	}

	rctx.SetToken(body.AccessToken)
	return body.AccessToken, nil
}

// =============================================================================
// Check Kinds
// =============================================================================

// EndpointReachable asserts a service health endpoint answers 2xx.
type EndpointReachable struct {
	baseCheck
	endpoint string
}

// NewEndpointReachable creates a reachability check for one service.
func NewEndpointReachable(service, endpoint string) *EndpointReachable {
	return &EndpointReachable{
		baseCheck: baseCheck{
			id:       "reachable-" + service,
			desc:     fmt.Sprintf("%s health endpoint answers 2xx", service),
			severity: SeverityError,
		},
		endpoint: endpoint,
	}
}

// Run implements Check.
func (c *EndpointReachable) Run(ctx context.Context, rctx *Context) Result {
	resp, err := doGet(ctx, rctx, c.endpoint)
	if err != nil {
		return c.fail("unreachable: %v", err)
	}
	defer drainAndClose(resp)

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return c.pass("responded %d", resp.StatusCode)
	}
	return c.fail("responded %d, want 2xx", resp.StatusCode)
}

// GatewayPlugin asserts a named plugin is enabled on the gateway.
type GatewayPlugin struct {
	baseCheck
	plugin string
}

// NewGatewayPlugin creates a plugin-presence check, e.g. for "jwt",
// "rate-limiting", or "cors".
func NewGatewayPlugin(plugin string) *GatewayPlugin {
	return &GatewayPlugin{
		baseCheck: baseCheck{
			id:       "gateway-plugin-" + plugin,
			desc:     fmt.Sprintf("gateway has the %s plugin enabled", plugin),
			severity: SeverityError,
		},
		plugin: plugin,
	}
}

// Run implements Check.
func (c *GatewayPlugin) Run(ctx context.Context, rctx *Context) Result {
	resp, err := doGet(ctx, rctx, rctx.AdminURL+"/plugins")
	if err != nil {
		return c.fail("admin API unreachable: %v", err)
	}
	defer drainAndClose(resp)

	if resp.StatusCode != http.StatusOK {
		return c.fail("admin API responded %d", resp.StatusCode)
	}

	var body struct {
		Data []struct {
			Name string `json:"name"`
		} `json:"data"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&body); err != nil {
		return c.fail("malformed plugin list: %v", err)
	}

	names := make([]string, 0, len(body.Data))
	for _, p := range body.Data {
		if p.Name == c.plugin {
			return c.pass("plugin %q enabled", c.plugin)
		}
		names = append(names, p.Name)
	}
	return c.fail("plugin %q not found (enabled: %s)", c.plugin, strings.Join(names, ", "))
}

// AuthToken asserts the password grant issues an access token.
// On success the token is cached in the context for later checks.
type AuthToken struct {
	baseCheck
}

// NewAuthToken creates the token-acquisition check.
func NewAuthToken() *AuthToken {
	return &AuthToken{
		baseCheck: baseCheck{
			id:       "auth-token",
			desc:     "auth service issues a token for the password grant",
			severity: SeverityError,
		},
	}
}

// Run implements Check.
func (c *AuthToken) Run(ctx context.Context, rctx *Context) Result {
	token, err := acquireToken(ctx, rctx)
	if err != nil {
		return c.fail("token acquisition failed: %v", err)
	}
	return c.pass("token issued (%d bytes)", len(token))
}

// TokenVerify asserts the auth service validates its own tokens.
type TokenVerify struct {
	baseCheck
}

// NewTokenVerify creates the token-verification check.
func NewTokenVerify() *TokenVerify {
	return &TokenVerify{
		baseCheck: baseCheck{
			id:       "token-verify",
			desc:     "auth service verifies an issued token",
			severity: SeverityError,
		},
	}
}

// Run implements Check.
func (c *TokenVerify) Run(ctx context.Context, rctx *Context) Result {
	token, err := acquireToken(ctx, rctx)
	if err != nil {
		return c.fail("no token to verify: %v", err)
	}

	resp, err := doPostJSON(ctx, rctx, rctx.AuthURL+"/verify", "", map[string]string{"token": token})
	if err != nil {
		return c.fail("verify endpoint unreachable: %v", err)
	}
	defer drainAndClose(resp)

	if resp.StatusCode != http.StatusOK {
		return c.fail("verify endpoint responded %d", resp.StatusCode)
	}

	var body struct {
		Valid bool `json:"valid"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64*1024)).Decode(&body); err != nil {
		return c.fail("malformed verify response: %v", err)
	}
	if !body.Valid {
		return c.fail("issued token reported invalid")
	}
	return c.pass("issued token verifies")
}

// AuthRequired asserts the protected API rejects unauthenticated requests.
type AuthRequired struct {
	baseCheck
}

// NewAuthRequired creates the no-token rejection check.
func NewAuthRequired() *AuthRequired {
	return &AuthRequired{
		baseCheck: baseCheck{
			id:       "auth-required",
			desc:     "event API rejects requests without a bearer token",
			severity: SeverityError,
		},
	}
}

// Run implements Check.
func (c *AuthRequired) Run(ctx context.Context, rctx *Context) Result {
	resp, err := doPostJSON(ctx, rctx, rctx.APIURL+"/api/event", "",
		newEventEnvelope("devstack-validate", "echo"))
	if err != nil {
		return c.fail("event API unreachable: %v", err)
	}
	defer drainAndClose(resp)

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return c.pass("rejected with %d", resp.StatusCode)
	}
	return c.fail("responded %d without credentials, want 401 or 403", resp.StatusCode)
}

// AuthedEvent asserts the protected API accepts an authenticated event.
type AuthedEvent struct {
	baseCheck
}

// NewAuthedEvent creates the authenticated-request check.
func NewAuthedEvent() *AuthedEvent {
	return &AuthedEvent{
		baseCheck: baseCheck{
			id:       "authed-event",
			desc:     "event API accepts an authenticated event",
			severity: SeverityError,
		},
	}
}

// Run implements Check.
func (c *AuthedEvent) Run(ctx context.Context, rctx *Context) Result {
	token, err := acquireToken(ctx, rctx)
	if err != nil {
		return c.fail("no bearer token: %v", err)
	}

	resp, err := doPostJSON(ctx, rctx, rctx.APIURL+"/api/event", token,
		newEventEnvelope("devstack-validate", "echo"))
	if err != nil {
		return c.fail("event API unreachable: %v", err)
	}
	defer drainAndClose(resp)

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return c.pass("accepted with %d", resp.StatusCode)
	}
	return c.fail("responded %d with valid bearer, want 2xx", resp.StatusCode)
}

// InputSanitized asserts the event API rejects script content in
// source/intent fields.
type InputSanitized struct {
	baseCheck
}

// NewInputSanitized creates the input-sanitization check.
func NewInputSanitized() *InputSanitized {
	return &InputSanitized{
		baseCheck: baseCheck{
			id:       "input-sanitized",
			desc:     "event API rejects script content in envelope fields",
			severity: SeverityError,
		},
	}
}

// Run implements Check.
func (c *InputSanitized) Run(ctx context.Context, rctx *Context) Result {
	token, err := acquireToken(ctx, rctx)
	if err != nil {
		return c.fail("no bearer token: %v", err)
	}

	// Authenticated on purpose: an unauthenticated request would be
	// rejected with 401 before input validation runs.
	resp, err := doPostJSON(ctx, rctx, rctx.APIURL+"/api/event", token,
		newEventEnvelope("<script>alert(1)</script>", "<script>alert(1)</script>"))
	if err != nil {
		return c.fail("event API unreachable: %v", err)
	}
	defer drainAndClose(resp)

	if resp.StatusCode == http.StatusBadRequest {
		return c.pass("script content rejected with 400")
	}
	return c.fail("script content answered %d, want 400", resp.StatusCode)
}

// RateLimit asserts a paced burst triggers the gateway rate limiter.
type RateLimit struct {
	baseCheck
	pace rate.Limit
}

// NewRateLimit creates the rate-limit probe. Up to 25 requests are sent
// at the given pace; the check passes as soon as a 429 is observed.
func NewRateLimit(pace rate.Limit) *RateLimit {
	if pace <= 0 {
		pace = rate.Limit(10)
	}
	return &RateLimit{
		baseCheck: baseCheck{
			id:       "rate-limit",
			desc:     fmt.Sprintf("gateway rate limit triggers within %d requests", rateLimitBudget),
			severity: SeverityWarning,
		},
		pace: pace,
	}
}

// Run implements Check.
func (c *RateLimit) Run(ctx context.Context, rctx *Context) Result {
	limiter := rate.NewLimiter(c.pace, 1)

	for i := 1; i <= rateLimitBudget; i++ {
		if err := limiter.Wait(ctx); err != nil {
			return c.fail("cancelled after %d requests: %v", i-1, err)
		}

		resp, err := doGet(ctx, rctx, rctx.GatewayURL+"/api/health")
		if err != nil {
			return c.fail("gateway unreachable on request %d: %v", i, err)
		}
		status := resp.StatusCode
		drainAndClose(resp)

		if status == http.StatusTooManyRequests {
			return c.pass("429 after %d requests", i)
		}
	}
	return c.fail("no 429 within %d requests", rateLimitBudget)
}

// SecretStrength asserts the JWT signing secret is not the shipped
// default and meets a minimum length.
type SecretStrength struct {
	baseCheck
}

// NewSecretStrength creates the secret-strength check.
func NewSecretStrength() *SecretStrength {
	return &SecretStrength{
		baseCheck: baseCheck{
			id:       "secret-strength",
			desc:     "JWT secret differs from the insecure default and is long enough",
			severity: SeverityError,
		},
	}
}

// Run implements Check.
func (c *SecretStrength) Run(ctx context.Context, rctx *Context) Result {
	secret := rctx.AuthSecret
	if secret == "" {
		return c.fail("no auth secret configured")
	}
	if secret == insecureDefaultSecret {
		return c.fail("secret is the shipped development default")
	}
	if len(secret) < minSecretLength {
		return c.fail("secret is %d bytes, want at least %d", len(secret), minSecretLength)
	}

	// The secret must actually be usable for HS256 sign and verify.
	claims := jwt.MapClaims{
		"sub": "devstack-validate",
		"iat": time.Now().Unix(),
		"exp": time.Now().Add(time.Minute).Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return c.fail("secret cannot sign HS256: %v", err)
	}

	parsed, err := jwt.Parse(signed, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil || !parsed.Valid {
		return c.fail("signed token does not verify: %v", err)
	}

	return c.pass("secret passes length and signing checks")
}

// InternalIsolated asserts internal-only endpoints are not reachable
// from the public interface.
type InternalIsolated struct {
	baseCheck
}

// NewInternalIsolated creates the network-isolation check.
func NewInternalIsolated() *InternalIsolated {
	return &InternalIsolated{
		baseCheck: baseCheck{
			id:       "internal-isolated",
			desc:     "internal-only endpoints are unreachable from the public interface",
			severity: SeverityWarning,
		},
	}
}

// Run implements Check.
func (c *InternalIsolated) Run(ctx context.Context, rctx *Context) Result {
	if len(rctx.InternalEndpoints) == 0 {
		return c.pass("no internal endpoints configured")
	}

	exposed := []string{}
	for _, endpoint := range rctx.InternalEndpoints {
		resp, err := doGet(ctx, rctx, endpoint)
		if err != nil {
			// Unreachable is exactly what we want here.
			continue
		}
		drainAndClose(resp)
		exposed = append(exposed, endpoint)
	}

	if len(exposed) > 0 {
		return c.warn("publicly reachable: %s", strings.Join(exposed, ", "))
	}
	return c.pass("%d internal endpoints unreachable", len(rctx.InternalEndpoints))
}

// SecurityHeaders asserts an expected response header is present on a
// gateway response.
type SecurityHeaders struct {
	baseCheck
	header string
}

// NewSecurityHeaders creates the header-presence check.
func NewSecurityHeaders(header string) *SecurityHeaders {
	if header == "" {
		header = "X-Content-Type-Options"
	}
	return &SecurityHeaders{
		baseCheck: baseCheck{
			id:       "security-headers",
			desc:     fmt.Sprintf("gateway responses carry %s", header),
			severity: SeverityWarning,
		},
		header: header,
	}
}

// Run implements Check.
func (c *SecurityHeaders) Run(ctx context.Context, rctx *Context) Result {
	resp, err := doGet(ctx, rctx, rctx.GatewayURL+"/api/health")
	if err != nil {
		return c.fail("gateway unreachable: %v", err)
	}
	defer drainAndClose(resp)

	if resp.Header.Get(c.header) == "" {
		return c.warn("header %s missing", c.header)
	}
	return c.pass("header %s present", c.header)
}
