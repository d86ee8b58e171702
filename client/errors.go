package client

import (
	"fmt"
	"strings"
)

// Error codes shared by the client and the enforcement middleware. Transport
// failures are re-classified into these at the client boundary; callers never
// see raw transport errors.
const (
	CodeMissingAgentID          = "missing_agent_id"
	CodeAgentVerificationFailed = "agent_verification_failed"
	CodePolicyViolation         = "policy_violation"
	CodeAPIError                = "api_error"
	CodeTimeout                 = "timeout"
	CodeNetworkError            = "network_error"
	CodeInvalidToken            = "invalid_token"
	CodeJWKSFetchFailed         = "jwks_fetch_failed"
	CodeInternalError           = "internal_error"
)

// Error is the structured failure returned by every client operation.
// Reasons and DecisionID are preserved verbatim from the server when present.
type Error struct {
	Status       int
	Code         string
	Reasons      []Reason
	DecisionID   string
	ServerTiming string
	RawResponse  string
}

func (e *Error) Error() string {
	if len(e.Reasons) == 0 {
		return fmt.Sprintf("aport: request failed: %d", e.Status)
	}
	msgs := make([]string, 0, len(e.Reasons))
	for _, r := range e.Reasons {
		msgs = append(msgs, r.Message)
	}
	return fmt.Sprintf("aport: request failed: %d %s", e.Status, strings.Join(msgs, ", "))
}

// Message returns the first reason message, or a generic one.
func (e *Error) Message() string {
	if len(e.Reasons) > 0 {
		return e.Reasons[0].Message
	}
	return fmt.Sprintf("request failed with status %d", e.Status)
}

func apiError(status int, body errorBody, serverTiming, raw string) *Error {
	return &Error{
		Status:       status,
		Code:         CodeAPIError,
		Reasons:      body.Reasons,
		DecisionID:   body.DecisionID,
		ServerTiming: serverTiming,
		RawResponse:  raw,
	}
}

func timeoutError() *Error {
	return &Error{
		Status:  408,
		Code:    CodeTimeout,
		Reasons: []Reason{{Code: "TIMEOUT", Message: "Request timeout"}},
	}
}

func networkError(err error) *Error {
	return &Error{
		Status:  0,
		Code:    CodeNetworkError,
		Reasons: []Reason{{Code: "NETWORK_ERROR", Message: err.Error()}},
	}
}
