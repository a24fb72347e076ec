package models

import "time"

// ActionStatus represents the lifecycle state of a pending action. PENDING
// is the only non-terminal status; every terminal transition is written
// exactly once and later writes are no-ops.
type ActionStatus string

const (
	ActionStatusPending   ActionStatus = "pending"
	ActionStatusSent      ActionStatus = "sent"
	ActionStatusFailed    ActionStatus = "failed"
	ActionStatusSkipped   ActionStatus = "skipped"
	ActionStatusCancelled ActionStatus = "cancelled"
)

// Terminal reports whether the status cannot change anymore.
func (s ActionStatus) Terminal() bool {
	return s != ActionStatusPending
}

// PendingAction is a scheduled, not-yet-resolved instance of one step for
// one recipient. Rows are never deleted; they form the engine's audit and
// idempotency ledger. The core concurrency guarantee is at most one PENDING
// row per (campaign, recipient) pair.
type PendingAction struct {
	ID          string       `json:"id"`
	CampaignID  string       `json:"campaign_id"  validate:"required"`
	StepID      string       `json:"step_id"      validate:"required"`
	TenantID    string       `json:"tenant_id"    validate:"required"`
	RecipientID string       `json:"recipient_id" validate:"required"`
	Status      ActionStatus `json:"status"`
	DueAt       time.Time    `json:"due_at"`
	CreatedAt   time.Time    `json:"created_at"`
	ResolvedAt  *time.Time   `json:"resolved_at,omitempty"`

	// TriggerData is the immutable bag closed over when the workflow
	// started; it survives deferred windows so wait expressions and
	// predicates see the original event payload.
	TriggerData map[string]any `json:"trigger_data,omitempty"`

	// Reason holds the skip reason or the transport error message, kept
	// verbatim for operator visibility.
	Reason    string `json:"reason,omitempty"`
	ErrorCode string `json:"error_code,omitempty"`

	// ExternalID is the transport's message identifier after a send.
	ExternalID string `json:"external_id,omitempty"`
}

// Outcome is the result of resolving one pending action.
type Outcome struct {
	Status     ActionStatus
	Reason     string
	ErrorCode  string
	ExternalID string
}
