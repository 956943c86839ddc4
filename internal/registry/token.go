package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"clientflow.se/internal/obs"
)

const tokenExpiryMargin = 5 * time.Minute

// TokenSource exchanges client credentials for bearer tokens and caches the
// result until shortly before expiry. Concurrent callers may race a refresh;
// the last writer wins and every caller still receives a valid token.
type TokenSource struct {
	tokenURL     string
	clientID     string
	clientSecret string
	scope        string
	client       *http.Client

	mu      sync.Mutex
	token   string
	expires time.Time
}

// NewTokenSource constructs a token source for the registry token endpoint.
func NewTokenSource(tokenURL, clientID, clientSecret, scope string) *TokenSource {
	return &TokenSource{
		tokenURL:     tokenURL,
		clientID:     clientID,
		clientSecret: clientSecret,
		scope:        scope,
		client:       &http.Client{Timeout: 10 * time.Second},
	}
}

// Token returns a cached bearer token, refreshing it when missing or inside
// the expiry margin. Refresh failures are never cached.
func (ts *TokenSource) Token(ctx context.Context) (string, error) {
	ts.mu.Lock()
	if ts.token != "" && time.Now().Before(ts.expires) {
		token := ts.token
		ts.mu.Unlock()
		return token, nil
	}
	ts.mu.Unlock()

	// The exchange happens outside the lock so a slow token endpoint does
	// not serialize unrelated requests.
	token, lifetime, err := ts.refresh(ctx)
	if err != nil {
		return "", err
	}

	ts.mu.Lock()
	ts.token = token
	ts.expires = time.Now().Add(lifetime - tokenExpiryMargin)
	ts.mu.Unlock()
	return token, nil
}

func (ts *TokenSource) refresh(ctx context.Context) (string, time.Duration, error) {
	obs.ObserveTokenRefresh()

	form := url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {ts.clientID},
		"client_secret": {ts.clientSecret},
		"scope":         {ts.scope},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ts.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", 0, fmt.Errorf("%w: %v", ErrUpstreamAuth, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := ts.client.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("%w: %v", ErrUpstreamAuth, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		obs.LogEvent("error", "token_refresh_failed", map[string]any{
			"status": resp.StatusCode,
			"body":   strings.TrimSpace(string(body)),
		})
		return "", 0, fmt.Errorf("%w: token endpoint responded %d", ErrUpstreamAuth, resp.StatusCode)
	}

	var payload struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", 0, fmt.Errorf("%w: decode token response: %v", ErrUpstreamAuth, err)
	}
	if payload.AccessToken == "" {
		return "", 0, fmt.Errorf("%w: empty access token", ErrUpstreamAuth)
	}
	lifetime := time.Duration(payload.ExpiresIn) * time.Second
	if lifetime <= tokenExpiryMargin {
		// Degenerate lifetime; use it as-is so the next call refreshes.
		lifetime = tokenExpiryMargin + time.Second
	}
	return payload.AccessToken, lifetime, nil
}

// Invalidate drops the cached token so the next call refreshes.
func (ts *TokenSource) Invalidate() {
	ts.mu.Lock()
	ts.token = ""
	ts.expires = time.Time{}
	ts.mu.Unlock()
}
