// Package memory provides an in-memory pending action ledger used by tests
// and local development.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/careloop/outreach/pkg/models"
	"github.com/careloop/outreach/pkg/scheduler"
)

// Scheduler keeps pending actions in process memory. Safe for concurrent
// use; the one-PENDING-per-pair invariant is enforced under the mutex.
type Scheduler struct {
	mu      sync.Mutex
	actions map[string]*models.PendingAction
	now     func() time.Time
}

// NewScheduler creates an empty in-memory ledger.
func NewScheduler() *Scheduler {
	return &Scheduler{
		actions: make(map[string]*models.PendingAction),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// SetClock overrides the ledger clock. Tests only.
func (s *Scheduler) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.now = now
}

// Enqueue inserts a new PENDING action, refusing duplicates for the pair.
func (s *Scheduler) Enqueue(ctx context.Context, action *models.PendingAction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.actions {
		if existing.CampaignID == action.CampaignID &&
			existing.RecipientID == action.RecipientID &&
			existing.Status == models.ActionStatusPending {
			return scheduler.ErrAlreadyPending
		}
	}

	if action.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return err
		}

		action.ID = id.String()
	}

	if action.CreatedAt.IsZero() {
		action.CreatedAt = s.now()
	}

	action.Status = models.ActionStatusPending

	stored := *action
	s.actions[action.ID] = &stored

	return nil
}

// ClaimDue returns up to limit due PENDING actions, oldest due first.
func (s *Scheduler) ClaimDue(ctx context.Context, limit int) ([]*models.PendingAction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	due := make([]*models.PendingAction, 0)

	for _, action := range s.actions {
		if action.Status == models.ActionStatusPending && !action.DueAt.After(now) {
			copied := *action
			due = append(due, &copied)
		}
	}

	sort.Slice(due, func(i, j int) bool {
		return due[i].DueAt.Before(due[j].DueAt)
	})

	if len(due) > limit {
		due = due[:limit]
	}

	return due, nil
}

// Resolve writes the terminal outcome of an action. Resolving an
// already-terminal action is a no-op.
func (s *Scheduler) Resolve(ctx context.Context, actionID string, outcome models.Outcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	action, ok := s.actions[actionID]
	if !ok || action.Status.Terminal() {
		return nil
	}

	resolvedAt := s.now()
	action.Status = outcome.Status
	action.Reason = outcome.Reason
	action.ErrorCode = outcome.ErrorCode
	action.ExternalID = outcome.ExternalID
	action.ResolvedAt = &resolvedAt

	return nil
}

// HasPending reports whether the pair currently has a PENDING action.
func (s *Scheduler) HasPending(ctx context.Context, campaignID, recipientID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, action := range s.actions {
		if action.CampaignID == campaignID &&
			action.RecipientID == recipientID &&
			action.Status == models.ActionStatusPending {
			return true, nil
		}
	}

	return false, nil
}

// LastEnqueuedAt returns when the pair last had an action created.
func (s *Scheduler) LastEnqueuedAt(ctx context.Context, campaignID, recipientID string) (*time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var last *time.Time

	for _, action := range s.actions {
		if action.CampaignID != campaignID || action.RecipientID != recipientID {
			continue
		}

		if last == nil || action.CreatedAt.After(*last) {
			t := action.CreatedAt
			last = &t
		}
	}

	return last, nil
}

// ActionsByCampaign lists every action of a campaign, newest first.
func (s *Scheduler) ActionsByCampaign(ctx context.Context, campaignID string) ([]*models.PendingAction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	actions := make([]*models.PendingAction, 0)

	for _, action := range s.actions {
		if action.CampaignID == campaignID {
			copied := *action
			actions = append(actions, &copied)
		}
	}

	sort.Slice(actions, func(i, j int) bool {
		return actions[i].CreatedAt.After(actions[j].CreatedAt)
	})

	return actions, nil
}

// HealthCheck always succeeds.
func (s *Scheduler) HealthCheck(ctx context.Context) error {
	return nil
}

// Close releases all stored actions.
func (s *Scheduler) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.actions = make(map[string]*models.PendingAction)

	return nil
}
