package registry

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"
)

func newTokenServer(t *testing.T, calls *atomic.Int64, expiresIn int64) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.Method != http.MethodPost {
			t.Errorf("unexpected method %s", r.Method)
		}
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		if r.PostForm.Get("grant_type") != "client_credentials" {
			t.Errorf("unexpected grant type %q", r.PostForm.Get("grant_type"))
		}
		if r.PostForm.Get("scope") == "" {
			t.Errorf("missing scope")
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"token-abc","expires_in":` + strconv.FormatInt(expiresIn, 10) + `}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestTokenSourceCachesUntilMargin(t *testing.T) {
	var calls atomic.Int64
	srv := newTokenServer(t, &calls, 3600)

	ts := NewTokenSource(srv.URL, "id", "secret", "scope:read")
	ctx := context.Background()

	first, err := ts.Token(ctx)
	if err != nil {
		t.Fatalf("Token: %v", err)
	}
	second, err := ts.Token(ctx)
	if err != nil {
		t.Fatalf("Token: %v", err)
	}
	if first != "token-abc" || second != "token-abc" {
		t.Fatalf("unexpected tokens: %q %q", first, second)
	}
	if got := calls.Load(); got != 1 {
		t.Fatalf("expected a single refresh, got %d", got)
	}
}

func TestTokenSourceRefreshesInsideMargin(t *testing.T) {
	var calls atomic.Int64
	// Lifetime below the 5 minute margin means the cached expiry is nearly
	// immediate, forcing a refresh on the next call.
	srv := newTokenServer(t, &calls, 1)

	ts := NewTokenSource(srv.URL, "id", "secret", "scope:read")
	ctx := context.Background()

	if _, err := ts.Token(ctx); err != nil {
		t.Fatalf("Token: %v", err)
	}
	time.Sleep(1100 * time.Millisecond)
	if _, err := ts.Token(ctx); err != nil {
		t.Fatalf("Token: %v", err)
	}
	if got := calls.Load(); got != 2 {
		t.Fatalf("expected two refreshes, got %d", got)
	}
}

func TestTokenSourceSurfacesAuthError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"invalid_client"}`, http.StatusUnauthorized)
	}))
	t.Cleanup(srv.Close)

	ts := NewTokenSource(srv.URL, "id", "bad-secret", "scope:read")
	if _, err := ts.Token(context.Background()); !errors.Is(err, ErrUpstreamAuth) {
		t.Fatalf("expected ErrUpstreamAuth, got %v", err)
	}
}

func TestTokenSourceDoesNotCacheFailures(t *testing.T) {
	var calls atomic.Int64
	fail := atomic.Bool{}
	fail.Store(true)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if fail.Load() {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"token-xyz","expires_in":3600}`))
	}))
	t.Cleanup(srv.Close)

	ts := NewTokenSource(srv.URL, "id", "secret", "scope:read")
	ctx := context.Background()

	if _, err := ts.Token(ctx); err == nil {
		t.Fatalf("expected first call to fail")
	}
	fail.Store(false)
	token, err := ts.Token(ctx)
	if err != nil {
		t.Fatalf("Token after recovery: %v", err)
	}
	if token != "token-xyz" {
		t.Fatalf("unexpected token %q", token)
	}
	if got := calls.Load(); got != 2 {
		t.Fatalf("expected two refresh attempts, got %d", got)
	}
}
