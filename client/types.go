package client

// AssuranceLevel indicates how strongly an agent's identity has been verified.
type AssuranceLevel string

const (
	AssuranceL0 AssuranceLevel = "L0"
	AssuranceL1 AssuranceLevel = "L1"
	AssuranceL2 AssuranceLevel = "L2"
	AssuranceL3 AssuranceLevel = "L3"
	AssuranceL4 AssuranceLevel = "L4"
)

type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Reason is one entry of a decision's reasons list, preserved verbatim from
// the server response.
type Reason struct {
	Code     string   `json:"code"`
	Message  string   `json:"message"`
	Severity Severity `json:"severity,omitempty"`
}

// Meta carries call metadata that is not part of the decision itself.
type Meta struct {
	ServerTiming string `json:"serverTiming,omitempty"`
}

// Decision is the result of a policy verification call. It is created fresh
// per call and never cached by the client.
type Decision struct {
	DecisionID     string         `json:"decision_id"`
	Allow          bool           `json:"allow"`
	Reasons        []Reason       `json:"reasons,omitempty"`
	AssuranceLevel AssuranceLevel `json:"assurance_level,omitempty"`
	ExpiresIn      int            `json:"expires_in,omitempty"` // decision token mode
	PassportDigest string         `json:"passport_digest,omitempty"`
	Signature      string         `json:"signature,omitempty"`
	CreatedAt      string         `json:"created_at,omitempty"`
	Meta           *Meta          `json:"_meta,omitempty"`
}

// PassportView is the read-only verification summary of an agent, used for
// display and existence checks. The shape is owned by the server; callers
// should treat it as opaque.
type PassportView map[string]any

type verifyRequest struct {
	AgentID        string         `json:"agent_id"`
	Context        map[string]any `json:"context"`
	IdempotencyKey string         `json:"idempotency_key,omitempty"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

type validateRequest struct {
	Token string `json:"token"`
}

type validateResponse struct {
	Decision Decision `json:"decision"`
}

// errorBody is the best-effort parse of a non-2xx response body.
type errorBody struct {
	DecisionID string   `json:"decision_id"`
	Reasons    []Reason `json:"reasons"`
}
