package client

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/lestrrat-go/jwx/v3/jwk"
)

const jwksTTL = 5 * time.Minute

type jwksCache struct {
	mu     sync.Mutex
	set    jwk.Set
	expiry time.Time
}

// JWKS returns the server's key set, serving a cached copy for up to five
// minutes after the last successful fetch. Concurrent cache misses are not
// deduplicated: each caller fetches and the last successful write wins. A
// failed fetch leaves any existing cache untouched and is never served.
func (c *Client) JWKS(ctx context.Context) (jwk.Set, error) {
	c.jwks.mu.Lock()
	if c.jwks.set != nil && time.Now().Before(c.jwks.expiry) {
		set := c.jwks.set
		c.jwks.mu.Unlock()
		return set, nil
	}
	c.jwks.mu.Unlock()

	raw, _, err := c.do(ctx, http.MethodGet, "/jwks.json", nil, "")
	if err != nil {
		return nil, jwksFetchError()
	}

	set, err := jwk.Parse(raw)
	if err != nil {
		return nil, jwksFetchError()
	}

	c.jwks.mu.Lock()
	c.jwks.set = set
	c.jwks.expiry = time.Now().Add(jwksTTL)
	c.jwks.mu.Unlock()
	return set, nil
}

func jwksFetchError() *Error {
	return &Error{
		Status:  500,
		Code:    CodeJWKSFetchFailed,
		Reasons: []Reason{{Code: "JWKS_FETCH_FAILED", Message: "Failed to fetch JWKS"}},
	}
}
