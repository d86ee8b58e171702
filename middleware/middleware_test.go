package middleware

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/aporthq/aport-go/client"
)

// apiStub fakes the APort service and counts calls per endpoint.
type apiStub struct {
	verifyCalls   atomic.Int32
	passportCalls atomic.Int32
	verifyStatus  int
	verifyBody    string
	passportBody  string
	lastVerifyReq map[string]any
	srv           *httptest.Server
}

func newAPIStub(t *testing.T) *apiStub {
	t.Helper()
	s := &apiStub{
		verifyStatus: http.StatusOK,
		verifyBody:   `{"decision_id":"d_ok","allow":true}`,
		passportBody: `{"agent_id":"ap_123","status":"active"}`,
	}
	s.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasPrefix(r.URL.Path, "/api/verify/policy/"):
			s.verifyCalls.Add(1)
			b, _ := io.ReadAll(r.Body)
			var req map[string]any
			_ = json.Unmarshal(b, &req)
			s.lastVerifyReq = req
			w.WriteHeader(s.verifyStatus)
			_, _ = w.Write([]byte(s.verifyBody))
		case strings.HasPrefix(r.URL.Path, "/api/passports/"):
			s.passportCalls.Add(1)
			if strings.Contains(r.URL.Path, "/ap_missing/") {
				w.WriteHeader(http.StatusNotFound)
				_, _ = w.Write([]byte(`{"reasons":[{"code":"NOT_FOUND","message":"unknown agent"}]}`))
				return
			}
			_, _ = w.Write([]byte(s.passportBody))
		default:
			t.Errorf("unexpected api path %s", r.URL.Path)
		}
	}))
	t.Cleanup(s.srv.Close)
	return s
}

func (s *apiStub) client() *client.Client {
	return client.New(client.Options{BaseURL: s.srv.URL})
}

func decodeFailure(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return out
}

func TestEnforce_PolicyViolationEndToEnd(t *testing.T) {
	stub := newAPIStub(t)
	stub.verifyBody = `{"decision_id":"d1","allow":false,"reasons":[{"code":"LIMIT_EXCEEDED","message":"over cap"}]}`

	var handlerCalled bool
	h := Enforce(Options{
		Client:     stub.client(),
		PolicyID:   "finance.payment.refund.v1",
		FailClosed: true,
	})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlerCalled = true
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/refunds",
		strings.NewReader(`{"amount":1000,"currency":"USD","order_id":"o1"}`))
	req.Header.Set("X-Agent-Passport-Id", "ap_123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if handlerCalled {
		t.Fatal("handler must not run on a policy violation")
	}
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}

	out := decodeFailure(t, rec)
	if out["error"] != "policy_violation" {
		t.Fatalf("error = %v", out["error"])
	}
	if out["decision_id"] != "d1" {
		t.Fatalf("decision_id = %v, want d1", out["decision_id"])
	}
	if out["agent_id"] != "ap_123" || out["policy_id"] != "finance.payment.refund.v1" {
		t.Fatalf("identifiers = %v / %v", out["agent_id"], out["policy_id"])
	}
	reasons := out["reasons"].([]any)
	r0 := reasons[0].(map[string]any)
	if r0["code"] != "LIMIT_EXCEEDED" || r0["message"] != "over cap" {
		t.Fatalf("reasons = %v", reasons)
	}

	// body-derived context was forwarded
	vctx := stub.lastVerifyReq["context"].(map[string]any)
	if vctx["order_id"] != "o1" {
		t.Fatalf("verify context = %v", vctx)
	}
}

func TestEnforce_MissingAgentFailClosedBeforeNetwork(t *testing.T) {
	stub := newAPIStub(t)
	h := Enforce(Options{
		Client:     stub.client(),
		PolicyID:   "finance.payment.refund.v1",
		FailClosed: true,
	})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/refunds", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	if out := decodeFailure(t, rec); out["error"] != "missing_agent_id" {
		t.Fatalf("error = %v", out["error"])
	}
	if n := stub.verifyCalls.Load() + stub.passportCalls.Load(); n != 0 {
		t.Fatalf("network calls = %d, want 0", n)
	}
}

func TestEnforce_MissingAgentFailOpenContinues(t *testing.T) {
	stub := newAPIStub(t)
	var handlerCalled bool
	h := Enforce(Options{Client: stub.client()})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlerCalled = true
		if _, ok := AgentFromContext(r.Context()); ok {
			t.Error("no agent should be attached on the unauthenticated path")
		}
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/open", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if !handlerCalled {
		t.Fatal("handler should run when fail-closed is disabled")
	}
}

func TestEnforce_SkipPathAndMethod(t *testing.T) {
	stub := newAPIStub(t)
	var calls int
	h := Enforce(Options{
		Client:     stub.client(),
		FailClosed: true,
		SkipPaths:  []string{"/healthz"},
	})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))

	// skip prefix
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	// OPTIONS skipped by default
	rec2 := httptest.NewRecorder()
	h.ServeHTTP(rec2, httptest.NewRequest(http.MethodOptions, "/api/refunds", nil))

	if calls != 2 {
		t.Fatalf("handler calls = %d, want 2", calls)
	}
	if n := stub.verifyCalls.Load() + stub.passportCalls.Load(); n != 0 {
		t.Fatalf("network calls = %d, want 0", n)
	}
}

func TestEnforce_ExistenceCheckAttachesPassport(t *testing.T) {
	stub := newAPIStub(t)
	var sawAgent string
	h := Enforce(Options{Client: stub.client(), FailClosed: true})(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sawAgent, _ = AgentFromContext(r.Context())
			view, ok := PassportFromContext(r.Context())
			if !ok || view["status"] != "active" {
				t.Errorf("passport view = %v", view)
			}
		}))

	req := httptest.NewRequest(http.MethodGet, "/api/whoami", nil)
	req.Header.Set("X-Agent-Passport-Id", "ap_123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if sawAgent != "ap_123" {
		t.Fatalf("agent in context = %q", sawAgent)
	}
	if stub.passportCalls.Load() != 1 {
		t.Fatalf("passport calls = %d, want 1", stub.passportCalls.Load())
	}
}

func TestEnforce_ExistenceCheckFailureCarriesStatus(t *testing.T) {
	stub := newAPIStub(t)
	h := Enforce(Options{Client: stub.client(), FailClosed: true})(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("handler must not run")
		}))

	req := httptest.NewRequest(http.MethodGet, "/api/whoami", nil)
	req.Header.Set("X-Agent-Passport-Id", "ap_missing")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want original 404", rec.Code)
	}
	out := decodeFailure(t, rec)
	if out["error"] != "agent_verification_failed" {
		t.Fatalf("error = %v", out["error"])
	}
	if out["agent_id"] != "ap_missing" {
		t.Fatalf("agent_id = %v", out["agent_id"])
	}
}

func TestEnforce_IdentityPrecedence(t *testing.T) {
	tests := []struct {
		name     string
		explicit string
		headers  map[string]string
		want     string
	}{
		{
			name:     "explicit beats all headers",
			explicit: "ap_explicit",
			headers:  map[string]string{"X-Agent-Passport-Id": "ap_h1", "X-Agent-ID": "ap_h2"},
			want:     "ap_explicit",
		},
		{
			name:    "passport header beats the rest",
			headers: map[string]string{"X-Agent-Passport-Id": "ap_h1", "X-Agent-ID": "ap_h2", "Authorization": "Bearer ap_h3"},
			want:    "ap_h1",
		},
		{
			name:    "agent id header beats bearer",
			headers: map[string]string{"X-Agent-ID": "ap_h2", "Authorization": "Bearer ap_h3"},
			want:    "ap_h2",
		},
		{
			name:    "bearer token as last resort",
			headers: map[string]string{"Authorization": "Bearer ap_h3"},
			want:    "ap_h3",
		},
		{
			name:    "legacy prefix is stripped",
			headers: map[string]string{"X-Agent-Passport-Id": "agents/ap_legacy"},
			want:    "ap_legacy",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/x", nil)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			if got := extractAgentID(req, tt.explicit); got != tt.want {
				t.Fatalf("extractAgentID = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestEnforce_BodyRestoredForHandler(t *testing.T) {
	stub := newAPIStub(t)
	const body = `{"amount":1000,"currency":"USD"}`

	var sawBody string
	h := Enforce(Options{
		Client:     stub.client(),
		PolicyID:   "finance.payment.refund.v1",
		FailClosed: true,
	})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		sawBody = string(b)
		d, ok := DecisionFromContext(r.Context())
		if !ok || d.DecisionID != "d_ok" {
			t.Errorf("decision in context = %+v", d)
		}
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/refunds", strings.NewReader(body))
	req.Header.Set("X-Agent-Passport-Id", "ap_123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if sawBody != body {
		t.Fatalf("handler body = %q, want the original", sawBody)
	}
}

func TestEnforce_ExplicitContextMergedOverBody(t *testing.T) {
	stub := newAPIStub(t)
	h := Enforce(Options{
		Client:     stub.client(),
		PolicyID:   "finance.payment.refund.v1",
		FailClosed: true,
		Context:    map[string]any{"currency": "EUR", "channel": "api"},
	})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodPost, "/api/refunds",
		strings.NewReader(`{"amount":1000,"currency":"USD"}`))
	req.Header.Set("X-Agent-Passport-Id", "ap_123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	vctx := stub.lastVerifyReq["context"].(map[string]any)
	if vctx["currency"] != "EUR" {
		t.Fatalf("explicit context must win: currency = %v", vctx["currency"])
	}
	if vctx["amount"] != float64(1000) {
		t.Fatalf("body context must survive the merge: amount = %v", vctx["amount"])
	}
	if vctx["channel"] != "api" {
		t.Fatalf("explicit-only keys must be present: channel = %v", vctx["channel"])
	}
}

func TestEnforce_APIErrorPassesThroughTaxonomy(t *testing.T) {
	stub := newAPIStub(t)
	stub.verifyStatus = http.StatusTooManyRequests
	stub.verifyBody = `{"reasons":[{"code":"RATE_LIMITED","message":"slow down"}]}`

	h := Enforce(Options{
		Client:     stub.client(),
		PolicyID:   "finance.payment.refund.v1",
		FailClosed: true,
	})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/refunds", strings.NewReader(`{}`))
	req.Header.Set("X-Agent-Passport-Id", "ap_123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429 passed through", rec.Code)
	}
	out := decodeFailure(t, rec)
	if out["error"] != "api_error" {
		t.Fatalf("error = %v", out["error"])
	}
	reasons := out["reasons"].([]any)
	if reasons[0].(map[string]any)["code"] != "RATE_LIMITED" {
		t.Fatalf("reasons = %v", reasons)
	}
}

func TestRequirePolicy_StaticContextAndDenial(t *testing.T) {
	stub := newAPIStub(t)
	h := RequirePolicy(stub.client(), "data.export.create.v1",
		map[string]any{"contains_pii": true},
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusAccepted)
		}))

	req := httptest.NewRequest(http.MethodPost, "/api/data/export",
		strings.NewReader(`{"rows":50000}`))
	req.Header.Set("X-Agent-Passport-Id", "ap_123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", rec.Code)
	}
	vctx := stub.lastVerifyReq["context"].(map[string]any)
	if vctx["contains_pii"] != true || vctx["rows"] != float64(50000) {
		t.Fatalf("verify context = %v", vctx)
	}

	// and without an identity it refuses up front
	rec2 := httptest.NewRecorder()
	h.ServeHTTP(rec2, httptest.NewRequest(http.MethodPost, "/api/data/export", nil))
	if rec2.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec2.Code)
	}
}
