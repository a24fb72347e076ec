// Package scheduler owns the pending action ledger. It enforces the
// engine's core concurrency guarantee: at most one PENDING action per
// (campaign, recipient) pair, with idempotent terminal resolution.
package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/careloop/outreach/pkg/models"
)

// ErrAlreadyPending is returned by Enqueue when the (campaign, recipient)
// pair already has a PENDING action. It is a refusal, not a failure; callers
// drop the duplicate and move on.
var ErrAlreadyPending = errors.New("recipient already has a pending action for this campaign")

// Scheduler stores and hands out pending actions. Implementations must keep
// the one-PENDING-per-pair invariant under concurrent Enqueue calls.
type Scheduler interface {
	// Enqueue inserts a new PENDING action. Returns ErrAlreadyPending when
	// the pair already has one.
	Enqueue(ctx context.Context, action *models.PendingAction) error

	// ClaimDue leases up to limit PENDING actions whose due time has
	// passed, oldest due first. A claimed action stays PENDING until
	// resolved; the lease only keeps other workers away for a while, so
	// processing is at-least-once.
	ClaimDue(ctx context.Context, limit int) ([]*models.PendingAction, error)

	// Resolve writes the terminal outcome of an action. Resolving an
	// already-terminal action is a no-op.
	Resolve(ctx context.Context, actionID string, outcome models.Outcome) error

	// HasPending reports whether the pair currently has a PENDING action.
	HasPending(ctx context.Context, campaignID, recipientID string) (bool, error)

	// LastEnqueuedAt returns when the pair last had an action created, or
	// nil when it never had one. Used for recurring-trigger deduplication.
	LastEnqueuedAt(ctx context.Context, campaignID, recipientID string) (*time.Time, error)

	// ActionsByCampaign lists every action of a campaign, newest first.
	ActionsByCampaign(ctx context.Context, campaignID string) ([]*models.PendingAction, error)

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}
