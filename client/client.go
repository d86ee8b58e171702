package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/aporthq/aport-go/internal/version"
)

const (
	defaultBaseURL = "https://api.aport.io"
	defaultTimeout = 800 * time.Millisecond
)

// Options configures a Client.
type Options struct {
	// BaseURL of the APort API. Defaults to https://api.aport.io.
	BaseURL string
	// APIKey, if set, is sent as a bearer Authorization header.
	APIKey string
	// Timeout bounds every call; the in-flight request is cancelled on
	// expiry. Defaults to 800ms.
	Timeout time.Duration
	// HTTPClient overrides the underlying transport. Mostly for tests.
	HTTPClient *http.Client
}

// Client is a thin client for the APort policy decision API. It holds no
// state between calls other than the JWKS cache; see JWKS.
type Client struct {
	opts Options
	http *http.Client

	jwks jwksCache
}

func New(opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = defaultBaseURL
	}
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}
	return &Client{opts: opts, http: hc}
}

// VerifyPolicy asks the server to evaluate policyID for agentID against the
// given context. An empty idempotencyKey sends no Idempotency-Key header;
// when set, the header takes precedence over any key embedded in the body.
func (c *Client) VerifyPolicy(ctx context.Context, agentID, policyID string, vctx map[string]any, idempotencyKey string) (*Decision, error) {
	if vctx == nil {
		vctx = map[string]any{}
	}
	req := verifyRequest{AgentID: agentID, Context: vctx, IdempotencyKey: idempotencyKey}

	body, serverTiming, err := c.do(ctx, http.MethodPost, "/api/verify/policy/"+policyID, req, idempotencyKey)
	if err != nil {
		return nil, err
	}

	var d Decision
	if err := json.Unmarshal(body, &d); err != nil {
		return nil, fmt.Errorf("decode decision: %w", err)
	}
	if serverTiming != "" {
		d.Meta = &Meta{ServerTiming: serverTiming}
	}
	return &d, nil
}

// GetDecisionToken returns an opaque signed token for later validation.
func (c *Client) GetDecisionToken(ctx context.Context, agentID, policyID string, vctx map[string]any) (string, error) {
	if vctx == nil {
		vctx = map[string]any{}
	}
	req := verifyRequest{AgentID: agentID, Context: vctx}

	body, _, err := c.do(ctx, http.MethodPost, "/api/verify/token/"+policyID, req, "")
	if err != nil {
		return "", err
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return "", fmt.Errorf("decode token response: %w", err)
	}
	return tr.Token, nil
}

// ValidateDecisionTokenLocal ensures the key set is available, then falls
// back to a remote validation round-trip. Local signature verification is
// not performed; any failure on this path is classified as invalid_token.
func (c *Client) ValidateDecisionTokenLocal(ctx context.Context, token string) (*Decision, error) {
	if _, err := c.JWKS(ctx); err != nil {
		return nil, invalidTokenError()
	}
	d, err := c.ValidateDecisionToken(ctx, token)
	if err != nil {
		return nil, invalidTokenError()
	}
	return d, nil
}

// ValidateDecisionToken validates a decision token via the server. Intended
// for debugging and auditing.
func (c *Client) ValidateDecisionToken(ctx context.Context, token string) (*Decision, error) {
	body, _, err := c.do(ctx, http.MethodPost, "/api/verify/token/validate", validateRequest{Token: token}, "")
	if err != nil {
		return nil, err
	}

	var vr validateResponse
	if err := json.Unmarshal(body, &vr); err != nil {
		return nil, fmt.Errorf("decode validate response: %w", err)
	}
	return &vr.Decision, nil
}

// GetPassportView fetches the read-only verification summary for an agent.
// No local caching is applied.
func (c *Client) GetPassportView(ctx context.Context, agentID string) (PassportView, error) {
	body, _, err := c.do(ctx, http.MethodGet, "/api/passports/"+agentID+"/verify_view", nil, "")
	if err != nil {
		return nil, err
	}

	var view PassportView
	if err := json.Unmarshal(body, &view); err != nil {
		return nil, fmt.Errorf("decode passport view: %w", err)
	}
	return view, nil
}

// do issues one request bounded by the configured timeout and returns the
// raw response body plus the Server-Timing header. Non-2xx responses and
// transport failures come back as *Error; raw transport errors never escape.
func (c *Client) do(ctx context.Context, method, path string, payload any, idempotencyKey string) ([]byte, string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	var bodyReader io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, "", fmt.Errorf("marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.opts.BaseURL+path, bodyReader)
	if err != nil {
		return nil, "", fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "aport-go/"+version.Version)
	if c.opts.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.opts.APIKey)
	}
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, "", classifyTransport(err)
	}
	defer resp.Body.Close()

	serverTiming := resp.Header.Get("Server-Timing")
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", classifyTransport(err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var eb errorBody
		// best effort; an unparseable body yields an empty reasons list
		_ = json.Unmarshal(raw, &eb)
		return nil, "", apiError(resp.StatusCode, eb, serverTiming, string(raw))
	}

	if len(raw) == 0 {
		raw = []byte("{}")
	}
	return raw, serverTiming, nil
}

func classifyTransport(err error) *Error {
	if errors.Is(err, context.DeadlineExceeded) {
		return timeoutError()
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return timeoutError()
	}
	return networkError(err)
}

func invalidTokenError() *Error {
	return &Error{
		Status:  401,
		Code:    CodeInvalidToken,
		Reasons: []Reason{{Code: "INVALID_TOKEN", Message: "Token validation failed"}},
	}
}
