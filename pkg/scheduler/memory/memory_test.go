package memory_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/careloop/outreach/pkg/models"
	"github.com/careloop/outreach/pkg/scheduler"
	"github.com/careloop/outreach/pkg/scheduler/memory"
)

func newAction(campaignID, recipientID string, dueAt time.Time) *models.PendingAction {
	return &models.PendingAction{
		CampaignID:  campaignID,
		StepID:      "step-1",
		TenantID:    "clinic-1",
		RecipientID: recipientID,
		DueAt:       dueAt,
	}
}

func TestEnqueue_RefusesSecondPending(t *testing.T) {
	s := memory.NewScheduler()
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, s.Enqueue(ctx, newAction("c-1", "r-1", now)))

	err := s.Enqueue(ctx, newAction("c-1", "r-1", now.Add(time.Hour)))
	require.ErrorIs(t, err, scheduler.ErrAlreadyPending)

	// Other pairs are unaffected.
	require.NoError(t, s.Enqueue(ctx, newAction("c-1", "r-2", now)))
	require.NoError(t, s.Enqueue(ctx, newAction("c-2", "r-1", now)))
}

func TestEnqueue_AllowedAfterResolution(t *testing.T) {
	s := memory.NewScheduler()
	ctx := context.Background()
	now := time.Now().UTC()

	first := newAction("c-1", "r-1", now)
	require.NoError(t, s.Enqueue(ctx, first))
	require.NoError(t, s.Resolve(ctx, first.ID, models.Outcome{Status: models.ActionStatusSent}))

	require.NoError(t, s.Enqueue(ctx, newAction("c-1", "r-1", now)))
}

func TestEnqueue_ConcurrentDuplicates(t *testing.T) {
	s := memory.NewScheduler()
	ctx := context.Background()
	now := time.Now().UTC()

	const attempts = 50

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
	)

	for range attempts {
		wg.Add(1)

		go func() {
			defer wg.Done()

			err := s.Enqueue(ctx, newAction("c-1", "r-1", now))
			if err == nil {
				mu.Lock()
				accepted++
				mu.Unlock()
			} else {
				require.ErrorIs(t, err, scheduler.ErrAlreadyPending)
			}
		}()
	}

	wg.Wait()
	assert.Equal(t, 1, accepted)
}

func TestClaimDue_OldestFirstAndLimit(t *testing.T) {
	s := memory.NewScheduler()
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, s.Enqueue(ctx, newAction("c-1", "r-late", now.Add(-time.Minute))))
	require.NoError(t, s.Enqueue(ctx, newAction("c-1", "r-early", now.Add(-time.Hour))))
	require.NoError(t, s.Enqueue(ctx, newAction("c-1", "r-future", now.Add(time.Hour))))

	claimed, err := s.ClaimDue(ctx, 1)
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	assert.Equal(t, "r-early", claimed[0].RecipientID)

	claimed, err = s.ClaimDue(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, claimed, 2)
}

func TestResolve_Idempotent(t *testing.T) {
	s := memory.NewScheduler()
	ctx := context.Background()

	action := newAction("c-1", "r-1", time.Now().UTC())
	require.NoError(t, s.Enqueue(ctx, action))

	require.NoError(t, s.Resolve(ctx, action.ID, models.Outcome{Status: models.ActionStatusSent, ExternalID: "msg-1"}))
	require.NoError(t, s.Resolve(ctx, action.ID, models.Outcome{Status: models.ActionStatusFailed, ErrorCode: "late"}))

	actions, err := s.ActionsByCampaign(ctx, "c-1")
	require.NoError(t, err)
	require.Len(t, actions, 1)
	assert.Equal(t, models.ActionStatusSent, actions[0].Status)
	assert.Equal(t, "msg-1", actions[0].ExternalID)
	assert.Empty(t, actions[0].ErrorCode)
}

func TestLastEnqueuedAt(t *testing.T) {
	s := memory.NewScheduler()
	ctx := context.Background()

	last, err := s.LastEnqueuedAt(ctx, "c-1", "r-1")
	require.NoError(t, err)
	assert.Nil(t, last)

	action := newAction("c-1", "r-1", time.Now().UTC())
	require.NoError(t, s.Enqueue(ctx, action))

	last, err = s.LastEnqueuedAt(ctx, "c-1", "r-1")
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.True(t, last.Equal(action.CreatedAt))
}

func TestHasPending(t *testing.T) {
	s := memory.NewScheduler()
	ctx := context.Background()

	action := newAction("c-1", "r-1", time.Now().UTC())
	require.NoError(t, s.Enqueue(ctx, action))

	pending, err := s.HasPending(ctx, "c-1", "r-1")
	require.NoError(t, err)
	assert.True(t, pending)

	require.NoError(t, s.Resolve(ctx, action.ID, models.Outcome{Status: models.ActionStatusSkipped}))

	pending, err = s.HasPending(ctx, "c-1", "r-1")
	require.NoError(t, err)
	assert.False(t, pending)
}
