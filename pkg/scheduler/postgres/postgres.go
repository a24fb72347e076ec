// Package postgres implements the pending action ledger on PostgreSQL. The
// one-PENDING-per-pair invariant is enforced by a partial unique index, so
// it holds across processes without coordination.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"github.com/careloop/outreach/pkg/models"
	"github.com/careloop/outreach/pkg/persistence/sqlbase"
	"github.com/careloop/outreach/pkg/scheduler"
)

// claimLease is how long a claimed action is hidden from other workers. A
// worker that dies mid-claim loses the lease and the action is redelivered.
const claimLease = 5 * time.Minute

// Scheduler is the PostgreSQL pending action ledger.
type Scheduler struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewScheduler connects to PostgreSQL and runs the ledger migrations.
func NewScheduler(ctx context.Context, logger *slog.Logger, databaseURL string) (*Scheduler, error) {
	database, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL database: %w", err)
	}

	err = database.PingContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	migrationManager := sqlbase.NewMigrationManager(logger, database, schedulerMigrations())

	s := &Scheduler{
		db:     database,
		logger: logger.With("component", "scheduler_postgres"),
	}

	err = migrationManager.RunMigrations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to run scheduler migrations: %w", err)
	}

	return s, nil
}

// Enqueue inserts a new PENDING action. The partial unique index turns a
// concurrent duplicate into a conflict, which surfaces as ErrAlreadyPending.
func (s *Scheduler) Enqueue(ctx context.Context, action *models.PendingAction) error {
	if action.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate action ID: %w", err)
		}

		action.ID = id.String()
	}

	if action.CreatedAt.IsZero() {
		action.CreatedAt = time.Now().UTC()
	}

	action.Status = models.ActionStatusPending

	triggerDataJSON, err := marshalTriggerData(action.TriggerData)
	if err != nil {
		return fmt.Errorf("failed to marshal trigger data: %w", err)
	}

	query := `
		INSERT INTO pending_actions (
			id, campaign_id, step_id, tenant_id, recipient_id, status, due_at, created_at, trigger_data
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (campaign_id, recipient_id) WHERE status = 'pending' DO NOTHING
	`

	result, err := s.db.ExecContext(ctx, query,
		action.ID,
		action.CampaignID,
		action.StepID,
		action.TenantID,
		action.RecipientID,
		action.Status,
		action.DueAt,
		action.CreatedAt,
		triggerDataJSON,
	)
	if err != nil {
		return fmt.Errorf("failed to enqueue action: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return scheduler.ErrAlreadyPending
	}

	return nil
}

// ClaimDue leases due PENDING actions, oldest due first. SKIP LOCKED keeps
// concurrent workers from blocking on the same rows.
func (s *Scheduler) ClaimDue(ctx context.Context, limit int) ([]*models.PendingAction, error) {
	now := time.Now().UTC()

	query := `
		UPDATE pending_actions
		SET claimed_at = $1
		WHERE id IN (
			SELECT id FROM pending_actions
			WHERE status = 'pending'
			  AND due_at <= $1
			  AND (claimed_at IS NULL OR claimed_at <= $2)
			ORDER BY due_at
			LIMIT $3
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, campaign_id, step_id, tenant_id, recipient_id, status, due_at, created_at, resolved_at, trigger_data, reason, error_code, external_id
	`

	rows, err := s.db.QueryContext(ctx, query, now, now.Add(-claimLease), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to claim due actions: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			s.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	actions, err := scanActions(rows)
	if err != nil {
		return nil, err
	}

	s.logger.DebugContext(ctx, "claimed due actions", "count", len(actions))

	return actions, nil
}

// Resolve writes the terminal outcome of an action. The status guard makes
// the write idempotent: a second resolution finds no PENDING row and
// changes nothing.
func (s *Scheduler) Resolve(ctx context.Context, actionID string, outcome models.Outcome) error {
	if !outcome.Status.Terminal() {
		return fmt.Errorf("cannot resolve action %s to non-terminal status %q", actionID, outcome.Status)
	}

	query := `
		UPDATE pending_actions
		SET status = $2, reason = $3, error_code = $4, external_id = $5, resolved_at = $6
		WHERE id = $1 AND status = 'pending'
	`

	_, err := s.db.ExecContext(ctx, query,
		actionID,
		outcome.Status,
		outcome.Reason,
		outcome.ErrorCode,
		outcome.ExternalID,
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to resolve action %s: %w", actionID, err)
	}

	return nil
}

// HasPending reports whether the pair currently has a PENDING action.
func (s *Scheduler) HasPending(ctx context.Context, campaignID, recipientID string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM pending_actions
			WHERE campaign_id = $1 AND recipient_id = $2 AND status = 'pending'
		)
	`

	var exists bool

	err := s.db.QueryRowContext(ctx, query, campaignID, recipientID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check pending action: %w", err)
	}

	return exists, nil
}

// LastEnqueuedAt returns when the pair last had an action created.
func (s *Scheduler) LastEnqueuedAt(ctx context.Context, campaignID, recipientID string) (*time.Time, error) {
	query := `
		SELECT MAX(created_at) FROM pending_actions
		WHERE campaign_id = $1 AND recipient_id = $2
	`

	var last sql.NullTime

	err := s.db.QueryRowContext(ctx, query, campaignID, recipientID).Scan(&last)
	if err != nil {
		return nil, fmt.Errorf("failed to query last enqueued time: %w", err)
	}

	if !last.Valid {
		return nil, nil
	}

	t := last.Time

	return &t, nil
}

// ActionsByCampaign lists every action of a campaign, newest first.
func (s *Scheduler) ActionsByCampaign(ctx context.Context, campaignID string) ([]*models.PendingAction, error) {
	query := `
		SELECT id, campaign_id, step_id, tenant_id, recipient_id, status, due_at, created_at, resolved_at, trigger_data, reason, error_code, external_id
		FROM pending_actions
		WHERE campaign_id = $1
		ORDER BY created_at DESC
	`

	rows, err := s.db.QueryContext(ctx, query, campaignID)
	if err != nil {
		return nil, fmt.Errorf("failed to query campaign actions: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			s.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	return scanActions(rows)
}

// HealthCheck verifies the database connection is healthy.
func (s *Scheduler) HealthCheck(ctx context.Context) error {
	err := s.db.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	return nil
}

// Close closes the database connection.
func (s *Scheduler) Close(ctx context.Context) error {
	if s.db != nil {
		err := s.db.Close()
		if err != nil {
			return fmt.Errorf("failed to close database connection: %w", err)
		}
	}

	return nil
}

func scanActions(rows *sql.Rows) ([]*models.PendingAction, error) {
	actions := make([]*models.PendingAction, 0)

	for rows.Next() {
		var (
			action                        models.PendingAction
			resolvedAt                    sql.NullTime
			triggerDataJSON               []byte
			reason, errorCode, externalID sql.NullString
		)

		err := rows.Scan(
			&action.ID,
			&action.CampaignID,
			&action.StepID,
			&action.TenantID,
			&action.RecipientID,
			&action.Status,
			&action.DueAt,
			&action.CreatedAt,
			&resolvedAt,
			&triggerDataJSON,
			&reason,
			&errorCode,
			&externalID,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan action: %w", err)
		}

		if resolvedAt.Valid {
			t := resolvedAt.Time
			action.ResolvedAt = &t
		}

		if triggerDataJSON != nil {
			err := json.Unmarshal(triggerDataJSON, &action.TriggerData)
			if err != nil {
				return nil, fmt.Errorf("failed to unmarshal trigger data: %w", err)
			}
		}

		action.Reason = reason.String
		action.ErrorCode = errorCode.String
		action.ExternalID = externalID.String

		actions = append(actions, &action)
	}

	err := rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating actions: %w", err)
	}

	return actions, nil
}

func marshalTriggerData(data map[string]any) ([]byte, error) {
	if data == nil {
		return nil, nil
	}

	return json.Marshal(data)
}

func schedulerMigrations() map[int]string {
	return map[int]string{
		2: `
			CREATE TABLE pending_actions (
				id VARCHAR(255) PRIMARY KEY,
				campaign_id VARCHAR(255) NOT NULL,
				step_id VARCHAR(255) NOT NULL,
				tenant_id VARCHAR(255) NOT NULL,
				recipient_id VARCHAR(255) NOT NULL,
				status VARCHAR(32) NOT NULL,
				due_at TIMESTAMP WITH TIME ZONE NOT NULL,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				claimed_at TIMESTAMP WITH TIME ZONE,
				resolved_at TIMESTAMP WITH TIME ZONE,
				trigger_data JSONB,
				reason TEXT,
				error_code VARCHAR(64),
				external_id VARCHAR(255)
			);

			CREATE UNIQUE INDEX idx_pending_actions_one_pending
				ON pending_actions(campaign_id, recipient_id)
				WHERE status = 'pending';

			CREATE INDEX idx_pending_actions_due
				ON pending_actions(due_at)
				WHERE status = 'pending';

			CREATE INDEX idx_pending_actions_campaign
				ON pending_actions(campaign_id, created_at DESC);

			CREATE INDEX idx_pending_actions_pair
				ON pending_actions(campaign_id, recipient_id, created_at DESC);
		`,
	}
}
