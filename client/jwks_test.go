package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

const jwksBody = `{"keys":[{"kty":"oct","kid":"k1","k":"c2VjcmV0LWtleS1tYXRlcmlhbA"}]}`

func TestJWKS_CachedWithinTTL(t *testing.T) {
	var fetches atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fetches.Add(1)
		_, _ = w.Write([]byte(jwksBody))
	}))
	defer srv.Close()

	c := New(Options{BaseURL: srv.URL})
	first, err := c.JWKS(context.Background())
	if err != nil {
		t.Fatalf("first JWKS: %v", err)
	}
	second, err := c.JWKS(context.Background())
	if err != nil {
		t.Fatalf("second JWKS: %v", err)
	}

	if n := fetches.Load(); n != 1 {
		t.Fatalf("fetches = %d, want 1", n)
	}
	if first != second {
		t.Fatal("expected the cached set to be reused")
	}
	if first.Len() != 1 {
		t.Fatalf("key count = %d, want 1", first.Len())
	}
}

func TestJWKS_RefetchesAfterExpiry(t *testing.T) {
	var fetches atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fetches.Add(1)
		_, _ = w.Write([]byte(jwksBody))
	}))
	defer srv.Close()

	c := New(Options{BaseURL: srv.URL})
	if _, err := c.JWKS(context.Background()); err != nil {
		t.Fatalf("first JWKS: %v", err)
	}

	// force expiry
	c.jwks.mu.Lock()
	c.jwks.expiry = time.Now().Add(-time.Second)
	c.jwks.mu.Unlock()

	if _, err := c.JWKS(context.Background()); err != nil {
		t.Fatalf("second JWKS: %v", err)
	}
	if n := fetches.Load(); n != 2 {
		t.Fatalf("fetches = %d, want 2", n)
	}
}

func TestJWKS_FetchFailureLeavesCacheUntouched(t *testing.T) {
	var fail atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(jwksBody))
	}))
	defer srv.Close()

	c := New(Options{BaseURL: srv.URL})
	if _, err := c.JWKS(context.Background()); err != nil {
		t.Fatalf("warm JWKS: %v", err)
	}

	c.jwks.mu.Lock()
	cached := c.jwks.set
	c.jwks.expiry = time.Now().Add(-time.Second)
	c.jwks.mu.Unlock()

	fail.Store(true)
	_, err := c.JWKS(context.Background())
	var ce *Error
	if !errors.As(err, &ce) {
		t.Fatalf("error = %v", err)
	}
	if ce.Code != CodeJWKSFetchFailed {
		t.Fatalf("code = %s, want jwks_fetch_failed", ce.Code)
	}

	// stale cache is neither replaced nor served
	c.jwks.mu.Lock()
	defer c.jwks.mu.Unlock()
	if c.jwks.set != cached {
		t.Fatal("cache was replaced by a failed fetch")
	}
	if !c.jwks.expiry.Before(time.Now()) {
		t.Fatal("expiry was refreshed by a failed fetch")
	}
}
