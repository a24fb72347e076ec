package postgres_test

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/careloop/outreach/pkg/models"
	"github.com/careloop/outreach/pkg/scheduler"
	"github.com/careloop/outreach/pkg/scheduler/postgres"
)

var postgresContainer *tcpostgres.PostgresContainer

func dropTables(ctx context.Context, t *testing.T, databaseURL string) {
	t.Helper()

	db, err := sql.Open("postgres", databaseURL)
	require.NoError(t, err)

	for _, table := range []string{"pending_actions", "schema_migrations"} {
		_, err = db.ExecContext(ctx, "DROP TABLE IF EXISTS "+table+" CASCADE")
		require.NoError(t, err)
	}

	err = db.Close()
	require.NoError(t, err)
}

func setupScheduler(t *testing.T) (*postgres.Scheduler, context.Context) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)

	if postgresContainer == nil || !postgresContainer.IsRunning() {
		var err error

		postgresContainer, err = tcpostgres.Run(ctx,
			"postgres:16-alpine",
			tcpostgres.WithDatabase("outreach_test"),
			tcpostgres.WithUsername("outreach"),
			tcpostgres.WithPassword("outreach"),
			tcpostgres.BasicWaitStrategies(),
		)
		require.NoError(t, err)
	}

	databaseURL, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	dropTables(ctx, t, databaseURL)

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	s, err := postgres.NewScheduler(ctx, logger, databaseURL)
	require.NoError(t, err)

	t.Cleanup(func() {
		dropTables(ctx, t, databaseURL)

		err = s.Close(ctx)
		require.NoError(t, err)

		cancel()
	})

	return s, ctx
}

func newAction(campaignID, recipientID string, dueAt time.Time) *models.PendingAction {
	return &models.PendingAction{
		CampaignID:  campaignID,
		StepID:      "step-1",
		TenantID:    "clinic-1",
		RecipientID: recipientID,
		DueAt:       dueAt,
		TriggerData: map[string]any{"appointment_id": "appt-1"},
	}
}

func TestEnqueue_PartialIndexRefusesDuplicate(t *testing.T) {
	s, ctx := setupScheduler(t)
	now := time.Now().UTC()

	require.NoError(t, s.Enqueue(ctx, newAction("c-1", "r-1", now)))

	err := s.Enqueue(ctx, newAction("c-1", "r-1", now.Add(time.Hour)))
	require.ErrorIs(t, err, scheduler.ErrAlreadyPending)

	pending, err := s.HasPending(ctx, "c-1", "r-1")
	require.NoError(t, err)
	assert.True(t, pending)
}

func TestEnqueue_ConcurrentDuplicates(t *testing.T) {
	s, ctx := setupScheduler(t)
	now := time.Now().UTC()

	const attempts = 20

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
				assert.ErrorIs(t, err, scheduler.ErrAlreadyPending)
			}
		}()
	}

	wg.Wait()
	assert.Equal(t, 1, accepted)
}

func TestClaimDue_RoundTrip(t *testing.T) {
	s, ctx := setupScheduler(t)
	now := time.Now().UTC()

	require.NoError(t, s.Enqueue(ctx, newAction("c-1", "r-early", now.Add(-time.Hour))))
	require.NoError(t, s.Enqueue(ctx, newAction("c-1", "r-late", now.Add(-time.Minute))))
	require.NoError(t, s.Enqueue(ctx, newAction("c-1", "r-future", now.Add(time.Hour))))

	claimed, err := s.ClaimDue(ctx, 10)
	require.NoError(t, err)
	require.Len(t, claimed, 2)
	assert.Equal(t, "r-early", claimed[0].RecipientID)
	assert.Equal(t, "r-late", claimed[1].RecipientID)
	assert.Equal(t, "appt-1", claimed[0].TriggerData["appointment_id"])

	// A second claim within the lease window sees nothing.
	claimed, err = s.ClaimDue(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, claimed)
}

func TestResolve_IdempotentAndReopensPair(t *testing.T) {
	s, ctx := setupScheduler(t)
	now := time.Now().UTC()

	action := newAction("c-1", "r-1", now.Add(-time.Minute))
	require.NoError(t, s.Enqueue(ctx, action))

	require.NoError(t, s.Resolve(ctx, action.ID, models.Outcome{Status: models.ActionStatusSent, ExternalID: "msg-1"}))
	require.NoError(t, s.Resolve(ctx, action.ID, models.Outcome{Status: models.ActionStatusFailed, ErrorCode: "late"}))

	actions, err := s.ActionsByCampaign(ctx, "c-1")
	require.NoError(t, err)
	require.Len(t, actions, 1)
	assert.Equal(t, models.ActionStatusSent, actions[0].Status)
	assert.Equal(t, "msg-1", actions[0].ExternalID)
	assert.NotNil(t, actions[0].ResolvedAt)

	// The pair is free for the next step once resolved.
	require.NoError(t, s.Enqueue(ctx, newAction("c-1", "r-1", now)))
}

func TestResolve_RejectsNonTerminalStatus(t *testing.T) {
	s, ctx := setupScheduler(t)

	action := newAction("c-1", "r-1", time.Now().UTC())
	require.NoError(t, s.Enqueue(ctx, action))

	err := s.Resolve(ctx, action.ID, models.Outcome{Status: models.ActionStatusPending})
	require.Error(t, err)
}

func TestLastEnqueuedAt(t *testing.T) {
	s, ctx := setupScheduler(t)
	now := time.Now().UTC()

	last, err := s.LastEnqueuedAt(ctx, "c-1", "r-1")
	require.NoError(t, err)
	assert.Nil(t, last)

	action := newAction("c-1", "r-1", now)
	require.NoError(t, s.Enqueue(ctx, action))
	require.NoError(t, s.Resolve(ctx, action.ID, models.Outcome{Status: models.ActionStatusSent}))

	second := newAction("c-1", "r-1", now)
	second.CreatedAt = now.Add(time.Minute)
	require.NoError(t, s.Enqueue(ctx, second))

	last, err = s.LastEnqueuedAt(ctx, "c-1", "r-1")
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.WithinDuration(t, second.CreatedAt, *last, time.Second)
}
