// Package auth manages the bearer token presented on archive calls, either a
// static token or an OAuth2 client-credentials token with automatic refresh.
package auth

import (
	"context"
	"crypto/tls"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// DefaultSkew is the safety margin before expiry at which a token is treated
// as stale and refreshed ahead of use.
const DefaultSkew = 30 * time.Second

// ErrNoCredentials is returned when neither a static token nor a complete
// OAuth2 client-credentials configuration is supplied.
var ErrNoCredentials = errors.New("either a static token or token endpoint, client id and client secret are required")

// Error wraps a credential acquisition or refresh failure. Workers record the
// affected item as failed and do not retry: the same credentials cannot
// succeed on a second attempt.
type Error struct {
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("acquiring bearer token: %v", e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Options configures a Manager.
type Options struct {
	// StaticToken disables all refresh logic when non-empty.
	StaticToken string

	// TokenEndpoint, ClientID and ClientSecret configure the OAuth2
	// client-credentials grant. Scope is optional.
	TokenEndpoint string
	ClientID      string
	ClientSecret  string
	Scope         string

	// Skew is the pre-expiry refresh margin. Zero means DefaultSkew.
	Skew time.Duration

	// Timeout bounds each token request. Zero means 30 seconds.
	Timeout time.Duration

	// Insecure skips TLS verification on the token endpoint.
	Insecure bool
}

// Manager hands out a valid bearer token to concurrent workers. Refreshes are
// coalesced: while one token request is in flight every caller that needs a
// token waits on it and receives its single result.
type Manager struct {
	opts       Options
	httpClient *http.Client
	now        func() time.Time

	mu        sync.Mutex
	token     string
	expiresAt time.Time // zero means no known expiry

	group singleflight.Group
}

// NewManager validates opts and builds a Manager. Exactly one of the static
// and OAuth2 configurations must be usable.
func NewManager(opts Options) (*Manager, error) {
	if opts.StaticToken == "" &&
		(opts.TokenEndpoint == "" || opts.ClientID == "" || opts.ClientSecret == "") {
		return nil, ErrNoCredentials
	}
	if opts.Skew <= 0 {
		opts.Skew = DefaultSkew
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}

	transport := http.DefaultTransport
	if opts.Insecure {
		transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true}, //nolint:gosec // --insecure opt-in
		}
	}

	return &Manager{
		opts:       opts,
		httpClient: &http.Client{Transport: transport, Timeout: opts.Timeout},
		now:        time.Now,
	}, nil
}

// Static reports whether the manager runs in static-token mode.
func (m *Manager) Static() bool {
	return m.opts.StaticToken != ""
}

// Token returns a token valid for at least the skew margin past now,
// refreshing first when the held token is absent or near expiry.
func (m *Manager) Token(ctx context.Context) (string, error) {
	if m.Static() {
		return m.opts.StaticToken, nil
	}

	m.mu.Lock()
	token, fresh := m.token, m.isFreshLocked()
	m.mu.Unlock()
	if fresh {
		return token, nil
	}
	return m.refresh(ctx)
}

// ForceRefresh unconditionally fetches a new token. It is called after the
// archive itself rejected a token: the local expiry calculation is no longer
// trusted. Concurrent callers share one refresh via singleflight.
func (m *Manager) ForceRefresh(ctx context.Context) (string, error) {
	if m.Static() {
		return m.opts.StaticToken, nil
	}
	return m.refresh(ctx)
}

// refresh coalesces concurrent token requests onto a single fetch. The fetched
// token and expiry replace the held pair atomically before any waiter returns.
func (m *Manager) refresh(ctx context.Context) (string, error) {
	result, err, _ := m.group.Do("token", func() (any, error) {
		token, expiresAt, fetchErr := m.fetchToken(ctx)
		if fetchErr != nil {
			return "", &Error{Err: fetchErr}
		}
		m.mu.Lock()
		m.token, m.expiresAt = token, expiresAt
		m.mu.Unlock()
		return token, nil
	})
	if err != nil {
		return "", err
	}
	return result.(string), nil
}

// isFreshLocked reports whether the held token is still usable. Callers must
// hold mu.
func (m *Manager) isFreshLocked() bool {
	if m.token == "" {
		return false
	}
	if m.expiresAt.IsZero() {
		return true
	}
	return m.now().Add(m.opts.Skew).Before(m.expiresAt)
}

// tokenResponse is the relevant subset of an OAuth2 token endpoint response.
type tokenResponse struct {
	AccessToken string `json:"access_token"`
	Token       string `json:"token"`
	ExpiresIn   int64  `json:"expires_in"`
}

// fetchToken performs the client-credentials grant and derives the expiry,
// preferring the JWT exp claim over expires_in.
func (m *Manager) fetchToken(ctx context.Context) (string, time.Time, error) {
	form := url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {m.opts.ClientID},
		"client_secret": {m.opts.ClientSecret},
	}
	if m.opts.Scope != "" {
		form.Set("scope", m.opts.Scope)
	}

	req, err := http.NewRequestWithContext(
		ctx, http.MethodPost, m.opts.TokenEndpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("building token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("requesting token: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("reading token response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", time.Time{}, fmt.Errorf("token endpoint returned HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var tok tokenResponse
	if err := json.Unmarshal(body, &tok); err != nil {
		return "", time.Time{}, fmt.Errorf("parsing token response: %w", err)
	}
	access := tok.AccessToken
	if access == "" {
		access = tok.Token
	}
	if access == "" {
		return "", time.Time{}, errors.New("token endpoint did not return an access_token")
	}

	if exp, ok := decodeJWTExpiry(access); ok {
		return access, exp, nil
	}
	if tok.ExpiresIn > 0 {
		return access, m.now().Add(time.Duration(tok.ExpiresIn) * time.Second), nil
	}
	// No expiry information: treat as non-expiring until a 401 forces a refresh.
	return access, time.Time{}, nil
}

// decodeJWTExpiry extracts the exp claim from a JWT access token without
// verifying the signature. The claim only schedules proactive refreshes; the
// archive remains the authority on token validity.
func decodeJWTExpiry(token string) (time.Time, bool) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return time.Time{}, false
	}
	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return time.Time{}, false
	}
	var claims struct {
		Exp int64 `json:"exp"`
	}
	if err := json.Unmarshal(payload, &claims); err != nil || claims.Exp == 0 {
		return time.Time{}, false
	}
	return time.Unix(claims.Exp, 0), true
}
