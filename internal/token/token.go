// Package token manages OAuth2 client-credentials access tokens for
// authenticated transit backends. A single Manager instance is shared by all
// station coordinators of a backend; it caches tokens per credential and
// guarantees at most one in-flight refresh per credential, with concurrent
// requesters awaiting the shared result.
package token

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"abfahrt.transitboard.org/internal/clock"
	"abfahrt.transitboard.org/internal/logging"
	"abfahrt.transitboard.org/internal/metrics"
)

// safetyMargin is how long before actual expiry a cached token is treated as
// stale and refreshed. It keeps tokens from expiring mid-request.
const safetyMargin = 60 * time.Second

// Credential identifies an OAuth2 client-credentials grant.
// Immutable once configured.
type Credential struct {
	ClientID     string
	ClientSecret string
	Resource     string
	OAuthURL     string
}

// cacheKey distinguishes credentials in the token cache and single-flight
// group. The secret participates so that rotated secrets cannot share state.
func (c Credential) cacheKey() string {
	return c.OAuthURL + "|" + c.ClientID + "|" + c.ClientSecret + "|" + c.Resource
}

// AccessToken is an issued bearer token. Owned by the Manager; callers
// receive copies and never mutate it.
type AccessToken struct {
	Value     string
	ExpiresAt time.Time
}

// Fresh reports whether the token is still comfortably inside its lifetime.
func (t AccessToken) Fresh(now time.Time) bool {
	return t.Value != "" && now.Before(t.ExpiresAt.Add(-safetyMargin))
}

// Usable reports whether the token has not actually expired yet. A usable but
// not fresh token is served when a refresh fails.
func (t AccessToken) Usable(now time.Time) bool {
	return t.Value != "" && now.Before(t.ExpiresAt)
}

// AuthError indicates that a token refresh failed: the authorization server
// rejected the credentials or could not be reached.
type AuthError struct {
	Err error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("token refresh failed: %v", e.Err)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// Manager caches access tokens per credential and serializes refreshes.
type Manager struct {
	httpClient *http.Client
	clock      clock.Clock
	metrics    *metrics.Metrics
	logger     *slog.Logger

	group  singleflight.Group
	mu     sync.RWMutex
	tokens map[string]AccessToken
}

// NewManager creates a token manager. Metrics may be nil.
func NewManager(clk clock.Clock, m *metrics.Metrics, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		httpClient: newOAuthHTTPClient(),
		clock:      clk,
		metrics:    m,
		logger:     logger.With(slog.String("component", "token_manager")),
		tokens:     make(map[string]AccessToken),
	}
}

// newOAuthHTTPClient builds a dedicated HTTP client for token exchanges,
// cloned from http.DefaultTransport to preserve proxy and dialer defaults.
func newOAuthHTTPClient() *http.Client {
	var transport *http.Transport
	if t, ok := http.DefaultTransport.(*http.Transport); ok {
		transport = t.Clone()
	} else {
		transport = &http.Transport{}
	}
	transport.MaxIdleConns = 10
	transport.MaxIdleConnsPerHost = 2
	transport.IdleConnTimeout = 90 * time.Second
	transport.TLSHandshakeTimeout = 10 * time.Second

	return &http.Client{
		Timeout:   10 * time.Second,
		Transport: transport,
	}
}

// Token returns a valid access token for the credential, refreshing it if
// needed. Concurrent callers during a refresh share a single exchange
// request. When a refresh fails but a previously issued token has not yet
// expired, that token is returned and the failure is only logged.
func (m *Manager) Token(ctx context.Context, cred Credential) (AccessToken, error) {
	key := cred.cacheKey()
	now := m.clock.Now()

	m.mu.RLock()
	cached, ok := m.tokens[key]
	m.mu.RUnlock()
	if ok && cached.Fresh(now) {
		return cached, nil
	}

	result, err, _ := m.group.Do(key, func() (any, error) {
		return m.refresh(ctx, cred, key)
	})
	if err != nil {
		return AccessToken{}, err
	}
	return result.(AccessToken), nil
}

// refresh performs the client-credentials exchange. It re-checks the cache
// first: a caller that queued behind a completed refresh takes the fresh
// token without touching the network.
func (m *Manager) refresh(ctx context.Context, cred Credential, key string) (AccessToken, error) {
	now := m.clock.Now()

	m.mu.RLock()
	cached, ok := m.tokens[key]
	m.mu.RUnlock()
	if ok && cached.Fresh(now) {
		return cached, nil
	}

	tok, err := m.requestToken(ctx, cred)
	if err != nil {
		m.countRefresh("failure")
		// A token past its safety margin but not actually expired keeps
		// working; hand it out rather than failing the caller.
		if ok && cached.Usable(now) {
			logging.LogError(m.logger, "token refresh failed, serving previous token", err)
			return cached, nil
		}
		return AccessToken{}, &AuthError{Err: err}
	}

	m.mu.Lock()
	m.tokens[key] = tok
	m.mu.Unlock()

	m.countRefresh("success")
	logging.LogOperation(m.logger, "token_refreshed",
		slog.Time("expires_at", tok.ExpiresAt))
	return tok, nil
}

// tokenResponse is the authorization server's response body. expires_on is a
// unix-seconds timestamp; Microsoft's endpoint returns it as a string.
type tokenResponse struct {
	AccessToken string      `json:"access_token"`
	ExpiresOn   json.Number `json:"expires_on"`
}

func (m *Manager) requestToken(ctx context.Context, cred Credential) (AccessToken, error) {
	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", cred.ClientID)
	form.Set("client_secret", cred.ClientSecret)
	form.Set("resource", cred.Resource)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cred.OAuthURL,
		strings.NewReader(form.Encode()))
	if err != nil {
		return AccessToken{}, fmt.Errorf("building token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return AccessToken{}, fmt.Errorf("executing token request: %w", err)
	}
	defer logging.SafeCloseWithLogging(resp.Body, m.logger, "token_response_body")

	if resp.StatusCode != http.StatusOK {
		return AccessToken{}, fmt.Errorf("authorization server returned %s", resp.Status)
	}

	const maxBodySize = 1 * 1024 * 1024
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return AccessToken{}, fmt.Errorf("reading token response: %w", err)
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return AccessToken{}, fmt.Errorf("decoding token response: %w", err)
	}
	if tr.AccessToken == "" {
		return AccessToken{}, fmt.Errorf("token response missing access_token")
	}

	expiresOn, err := tr.ExpiresOn.Int64()
	if err != nil {
		return AccessToken{}, fmt.Errorf("token response has invalid expires_on %q: %w", tr.ExpiresOn, err)
	}

	return AccessToken{
		Value:     tr.AccessToken,
		ExpiresAt: time.Unix(expiresOn, 0),
	}, nil
}

func (m *Manager) countRefresh(result string) {
	if m.metrics != nil {
		m.metrics.TokenRefreshesTotal.WithLabelValues(result).Inc()
	}
}
