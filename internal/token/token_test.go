package token

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"abfahrt.transitboard.org/internal/clock"
)

func newTestServer(t *testing.T, requestCount *atomic.Int64, expiresOn int64) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestCount.Add(1)

		require.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, r.ParseForm())
		require.Equal(t, "client_credentials", r.PostForm.Get("grant_type"))
		require.Equal(t, "client-1", r.PostForm.Get("client_id"))
		require.Equal(t, "secret-1", r.PostForm.Get("client_secret"))
		require.Equal(t, "resource-1", r.PostForm.Get("resource"))

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"access_token":"tok-%d","expires_on":"%d"}`, requestCount.Load(), expiresOn)
	}))
}

func testCredential(serverURL string) Credential {
	return Credential{
		ClientID:     "client-1",
		ClientSecret: "secret-1",
		Resource:     "resource-1",
		OAuthURL:     serverURL,
	}
}

func TestToken_FetchesAndCaches(t *testing.T) {
	now := time.Date(2025, 6, 15, 8, 0, 0, 0, time.UTC)
	clk := clock.NewMockClock(now)

	var requests atomic.Int64
	server := newTestServer(t, &requests, now.Add(time.Hour).Unix())
	defer server.Close()

	manager := NewManager(clk, nil, nil)
	cred := testCredential(server.URL)

	tok, err := manager.Token(context.Background(), cred)
	require.NoError(t, err)
	assert.Equal(t, "tok-1", tok.Value)
	assert.Equal(t, now.Add(time.Hour).Unix(), tok.ExpiresAt.Unix())

	// Second call within the token lifetime hits the cache.
	tok2, err := manager.Token(context.Background(), cred)
	require.NoError(t, err)
	assert.Equal(t, tok.Value, tok2.Value)
	assert.Equal(t, int64(1), requests.Load())
}

func TestToken_RefreshesInsideSafetyMargin(t *testing.T) {
	now := time.Date(2025, 6, 15, 8, 0, 0, 0, time.UTC)
	clk := clock.NewMockClock(now)

	var requests atomic.Int64
	server := newTestServer(t, &requests, now.Add(time.Hour).Unix())
	defer server.Close()

	manager := NewManager(clk, nil, nil)
	cred := testCredential(server.URL)

	_, err := manager.Token(context.Background(), cred)
	require.NoError(t, err)

	// 30s before expiry is inside the 60s safety margin: refresh again.
	clk.Set(now.Add(time.Hour).Add(-30 * time.Second))
	tok, err := manager.Token(context.Background(), cred)
	require.NoError(t, err)
	assert.Equal(t, "tok-2", tok.Value)
	assert.Equal(t, int64(2), requests.Load())
}

func TestToken_ConcurrentCallersSingleRefresh(t *testing.T) {
	now := time.Date(2025, 6, 15, 8, 0, 0, 0, time.UTC)
	clk := clock.NewMockClock(now)

	var requests atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		// Slow response so all callers pile up behind the same flight.
		time.Sleep(50 * time.Millisecond)
		fmt.Fprintf(w, `{"access_token":"tok","expires_on":"%d"}`, now.Add(time.Hour).Unix())
	}))
	defer server.Close()

	manager := NewManager(clk, nil, nil)
	cred := testCredential(server.URL)

	var wg sync.WaitGroup
	results := make([]AccessToken, 10)
	errs := make([]error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = manager.Token(context.Background(), cred)
		}(i)
	}
	wg.Wait()

	for i := 0; i < 10; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, "tok", results[i].Value)
	}
	assert.Equal(t, int64(1), requests.Load(), "concurrent callers must share one refresh")
}

func TestToken_RefreshFailureKeepsUsableToken(t *testing.T) {
	now := time.Date(2025, 6, 15, 8, 0, 0, 0, time.UTC)
	clk := clock.NewMockClock(now)

	var fail atomic.Bool
	var requests atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		if fail.Load() {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		fmt.Fprintf(w, `{"access_token":"tok","expires_on":"%d"}`, now.Add(time.Hour).Unix())
	}))
	defer server.Close()

	manager := NewManager(clk, nil, nil)
	cred := testCredential(server.URL)

	_, err := manager.Token(context.Background(), cred)
	require.NoError(t, err)

	// Inside the safety margin but before actual expiry: a failed refresh
	// falls back to the previous token.
	fail.Store(true)
	clk.Set(now.Add(time.Hour).Add(-30 * time.Second))
	tok, err := manager.Token(context.Background(), cred)
	require.NoError(t, err)
	assert.Equal(t, "tok", tok.Value)

	// Past actual expiry there is nothing usable left.
	clk.Set(now.Add(2 * time.Hour))
	_, err = manager.Token(context.Background(), cred)
	require.Error(t, err)

	var authErr *AuthError
	assert.True(t, errors.As(err, &authErr))
}

func TestToken_RejectedCredentials(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	manager := NewManager(clock.RealClock{}, nil, nil)

	_, err := manager.Token(context.Background(), testCredential(server.URL))
	require.Error(t, err)

	var authErr *AuthError
	require.True(t, errors.As(err, &authErr))
	assert.Contains(t, authErr.Error(), "401")
}

func TestToken_MalformedResponse(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not JSON", "<html>uh oh</html>"},
		{"missing access_token", `{"expires_on":"12345"}`},
		{"bad expires_on", `{"access_token":"tok","expires_on":"later"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			manager := NewManager(clock.RealClock{}, nil, nil)
			_, err := manager.Token(context.Background(), testCredential(server.URL))
			require.Error(t, err)
		})
	}
}

func TestToken_NumericExpiresOn(t *testing.T) {
	now := time.Now()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"access_token":"tok","expires_on":%d}`, now.Add(time.Hour).Unix())
	}))
	defer server.Close()

	manager := NewManager(clock.RealClock{}, nil, nil)
	tok, err := manager.Token(context.Background(), testCredential(server.URL))
	require.NoError(t, err)
	assert.Equal(t, now.Add(time.Hour).Unix(), tok.ExpiresAt.Unix())
}
