// Package policy binds well-known policy identifiers to the generic verify
// operation. It carries no rule logic; limits and thresholds live entirely
// server-side.
package policy

import (
	"context"

	"github.com/aporthq/aport-go/client"
)

// Well-known policy identifiers. The format is opaque and may evolve
// server-side; these are just the current canonical names.
const (
	RefundV1     = "finance.payment.refund.v1"
	ReleaseV1    = "code.release.publish.v1"
	DataExportV1 = "data.export.create.v1"
	MessagingV1  = "messaging.message.send.v1"
	RepositoryV1 = "code.repository.merge.v1"
)

// Verifier gives callers named entry points per policy domain. Every method
// forwards to VerifyPolicy with a fixed policy id.
type Verifier struct {
	client *client.Client
}

func NewVerifier(c *client.Client) *Verifier {
	return &Verifier{client: c}
}

// RefundContext is the context shape for finance.payment.refund.v1.
type RefundContext struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	OrderID  string `json:"order_id"`
	Region   string `json:"region,omitempty"`
}

// VerifyRefund verifies the finance.payment.refund.v1 policy.
func (v *Verifier) VerifyRefund(ctx context.Context, agentID string, rc RefundContext, idempotencyKey string) (*client.Decision, error) {
	return v.client.VerifyPolicy(ctx, agentID, RefundV1, map[string]any{
		"amount":   rc.Amount,
		"currency": rc.Currency,
		"order_id": rc.OrderID,
		"region":   rc.Region,
	}, idempotencyKey)
}

// ReleaseContext is the context shape for code.release.publish.v1.
type ReleaseContext struct {
	Repository string `json:"repository"`
	Tag        string `json:"tag"`
	Artifact   string `json:"artifact,omitempty"`
}

// VerifyRelease verifies the code.release.publish.v1 policy.
func (v *Verifier) VerifyRelease(ctx context.Context, agentID string, rc ReleaseContext, idempotencyKey string) (*client.Decision, error) {
	return v.client.VerifyPolicy(ctx, agentID, ReleaseV1, map[string]any{
		"repository": rc.Repository,
		"tag":        rc.Tag,
		"artifact":   rc.Artifact,
	}, idempotencyKey)
}

// DataExportContext is the context shape for data.export.create.v1.
type DataExportContext struct {
	Rows        int64  `json:"rows"`
	Format      string `json:"format,omitempty"`
	ContainsPII bool   `json:"contains_pii"`
}

// VerifyDataExport verifies the data.export.create.v1 policy.
func (v *Verifier) VerifyDataExport(ctx context.Context, agentID string, dc DataExportContext, idempotencyKey string) (*client.Decision, error) {
	return v.client.VerifyPolicy(ctx, agentID, DataExportV1, map[string]any{
		"rows":         dc.Rows,
		"format":       dc.Format,
		"contains_pii": dc.ContainsPII,
	}, idempotencyKey)
}

// MessagingContext is the context shape for messaging.message.send.v1.
type MessagingContext struct {
	Channel      string `json:"channel"`
	Recipients   int    `json:"recipients"`
	MessageCount int    `json:"message_count,omitempty"`
}

// VerifyMessaging verifies the messaging.message.send.v1 policy.
func (v *Verifier) VerifyMessaging(ctx context.Context, agentID string, mc MessagingContext, idempotencyKey string) (*client.Decision, error) {
	return v.client.VerifyPolicy(ctx, agentID, MessagingV1, map[string]any{
		"channel":       mc.Channel,
		"recipients":    mc.Recipients,
		"message_count": mc.MessageCount,
	}, idempotencyKey)
}

// RepositoryContext is the context shape for code.repository.merge.v1.
type RepositoryContext struct {
	Repository   string `json:"repository"`
	PRNumber     int    `json:"pr_number"`
	LinesChanged int    `json:"lines_changed,omitempty"`
	BaseBranch   string `json:"base_branch,omitempty"`
}

// VerifyRepository verifies the code.repository.merge.v1 policy.
func (v *Verifier) VerifyRepository(ctx context.Context, agentID string, rc RepositoryContext, idempotencyKey string) (*client.Decision, error) {
	return v.client.VerifyPolicy(ctx, agentID, RepositoryV1, map[string]any{
		"repository":    rc.Repository,
		"pr_number":     rc.PRNumber,
		"lines_changed": rc.LinesChanged,
		"base_branch":   rc.BaseBranch,
	}, idempotencyKey)
}
