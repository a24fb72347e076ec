package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/careloop/outreach/pkg/models"
	"github.com/careloop/outreach/pkg/persistence"
)

// CampaignRepository handles campaign-related database operations.
type CampaignRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewCampaignRepository creates a new campaign repository.
func NewCampaignRepository(db *sql.DB, logger *slog.Logger) *CampaignRepository {
	return &CampaignRepository{db: db, logger: logger}
}

const campaignColumns = `
			id
		  , tenant_id
		  , name
		  , status
		  , trigger_kind
		  , event_name
		  , payload_schema
		  , fire_at
		  , recurrence
		  , include_criteria
		  , exclude_criteria
		  , created_at
		  , updated_at
		  , completed_at
`

// CampaignByID returns a single campaign with its steps loaded.
func (r *CampaignRepository) CampaignByID(ctx context.Context, id string) (*models.Campaign, error) {
	query := `SELECT ` + campaignColumns + ` FROM campaigns WHERE id = $1`

	row := r.db.QueryRowContext(ctx, query, id)

	campaign, err := r.scanCampaignBase(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrCampaignNotFound
		}

		return nil, fmt.Errorf("failed to scan campaign: %w", err)
	}

	err = r.loadSteps(ctx, campaign)
	if err != nil {
		return nil, fmt.Errorf("failed to load campaign steps: %w", err)
	}

	return campaign, nil
}

// ActiveEventCampaigns returns ACTIVE campaigns of the tenant triggered by
// the named business event.
func (r *CampaignRepository) ActiveEventCampaigns(ctx context.Context, tenantID, eventName string) ([]*models.Campaign, error) {
	query := `
		SELECT ` + campaignColumns + `
		FROM campaigns
		WHERE tenant_id = $1 AND trigger_kind = 'event' AND event_name = $2 AND status = 'active'
		ORDER BY created_at
	`

	return r.queryCampaigns(ctx, query, tenantID, eventName)
}

// DueScheduledCampaigns returns ACTIVE scheduled campaigns whose fire time
// has passed.
func (r *CampaignRepository) DueScheduledCampaigns(ctx context.Context, before time.Time) ([]*models.Campaign, error) {
	query := `
		SELECT ` + campaignColumns + `
		FROM campaigns
		WHERE trigger_kind = 'scheduled' AND status = 'active' AND fire_at <= $1
		ORDER BY fire_at
	`

	return r.queryCampaigns(ctx, query, before)
}

// ActiveRecurringCampaigns returns every ACTIVE recurring campaign.
func (r *CampaignRepository) ActiveRecurringCampaigns(ctx context.Context) ([]*models.Campaign, error) {
	query := `
		SELECT ` + campaignColumns + `
		FROM campaigns
		WHERE trigger_kind = 'recurring' AND status = 'active'
		ORDER BY created_at
	`

	return r.queryCampaigns(ctx, query)
}

// Campaigns lists campaigns of a tenant, newest first.
func (r *CampaignRepository) Campaigns(ctx context.Context, tenantID string) ([]*models.Campaign, error) {
	query := `
		SELECT ` + campaignColumns + `
		FROM campaigns
		WHERE tenant_id = $1
		ORDER BY created_at DESC
	`

	return r.queryCampaigns(ctx, query, tenantID)
}

// MarkCompleted transitions an ACTIVE campaign to COMPLETED. A campaign that
// is already completed is left untouched.
func (r *CampaignRepository) MarkCompleted(ctx context.Context, id string, at time.Time) error {
	query := `
		UPDATE campaigns
		SET status = 'completed', completed_at = $2, updated_at = $2
		WHERE id = $1 AND status = 'active'
	`

	_, err := r.db.ExecContext(ctx, query, id, at)
	if err != nil {
		return persistence.NewCampaignError("mark_completed", id, err)
	}

	return nil
}

// SaveCampaign creates or replaces a campaign definition together with its
// steps.
func (r *CampaignRepository) SaveCampaign(ctx context.Context, campaign *models.Campaign) error {
	now := time.Now().UTC()

	if campaign.CreatedAt.IsZero() {
		campaign.CreatedAt = now
	}

	campaign.UpdatedAt = now

	if campaign.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate campaign ID: %w", err)
		}

		campaign.ID = id.String()
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	payloadSchemaJSON, err := marshalNullable(campaign.Trigger.PayloadSchema)
	if err != nil {
		return fmt.Errorf("failed to marshal payload schema: %w", err)
	}

	recurrenceJSON, err := marshalNullable(campaign.Trigger.Recurrence)
	if err != nil {
		return fmt.Errorf("failed to marshal recurrence: %w", err)
	}

	includeJSON, err := json.Marshal(campaign.Include)
	if err != nil {
		return fmt.Errorf("failed to marshal include criteria: %w", err)
	}

	excludeJSON, err := json.Marshal(campaign.Exclude)
	if err != nil {
		return fmt.Errorf("failed to marshal exclude criteria: %w", err)
	}

	campaignQuery := `
		INSERT INTO campaigns (id, tenant_id, name, status, trigger_kind, event_name,
payload_schema, fire_at, recurrence, include_criteria, exclude_criteria, created_at, updated_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (id) DO UPDATE SET
			tenant_id = EXCLUDED.tenant_id,
			name = EXCLUDED.name,
			status = EXCLUDED.status,
			trigger_kind = EXCLUDED.trigger_kind,
			event_name = EXCLUDED.event_name,
			payload_schema = EXCLUDED.payload_schema,
			fire_at = EXCLUDED.fire_at,
			recurrence = EXCLUDED.recurrence,
			include_criteria = EXCLUDED.include_criteria,
			exclude_criteria = EXCLUDED.exclude_criteria,
			updated_at = EXCLUDED.updated_at,
			completed_at = EXCLUDED.completed_at
	`

	_, err = tx.ExecContext(ctx, campaignQuery,
		campaign.ID,
		campaign.TenantID,
		campaign.Name,
		campaign.Status,
		campaign.Trigger.Kind,
		nullString(campaign.Trigger.EventName),
		payloadSchemaJSON,
		campaign.Trigger.FireAt,
		recurrenceJSON,
		includeJSON,
		excludeJSON,
		campaign.CreatedAt,
		campaign.UpdatedAt,
		campaign.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save campaign base: %w", err)
	}

	_, err = tx.ExecContext(ctx, "DELETE FROM campaign_steps WHERE campaign_id = $1", campaign.ID)
	if err != nil {
		return fmt.Errorf("failed to delete existing steps: %w", err)
	}

	err = r.saveSteps(ctx, tx, campaign)
	if err != nil {
		return fmt.Errorf("failed to save campaign steps: %w", err)
	}

	err = tx.Commit()
	if err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

func (r *CampaignRepository) queryCampaigns(ctx context.Context, query string, args ...any) ([]*models.Campaign, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query campaigns: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	campaigns := make([]*models.Campaign, 0)

	for rows.Next() {
		campaign, err := r.scanCampaignBase(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan campaign: %w", err)
		}

		campaigns = append(campaigns, campaign)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating campaigns: %w", err)
	}

	for _, campaign := range campaigns {
		err = r.loadSteps(ctx, campaign)
		if err != nil {
			return nil, fmt.Errorf("failed to load campaign steps: %w", err)
		}
	}

	return campaigns, nil
}

// scanner is implemented by sql.Row and sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func (r *CampaignRepository) scanCampaignBase(row scanner) (*models.Campaign, error) {
	var (
		campaign                          models.Campaign
		eventName                         sql.NullString
		payloadSchemaJSON, recurrenceJSON []byte
		includeJSON, excludeJSON          []byte
		fireAt, completedAt               sql.NullTime
	)

	err := row.Scan(
		&campaign.ID,
		&campaign.TenantID,
		&campaign.Name,
		&campaign.Status,
		&campaign.Trigger.Kind,
		&eventName,
		&payloadSchemaJSON,
		&fireAt,
		&recurrenceJSON,
		&includeJSON,
		&excludeJSON,
		&campaign.CreatedAt,
		&campaign.UpdatedAt,
		&completedAt,
	)
	if err != nil {
		return nil, err
	}

	campaign.Trigger.EventName = eventName.String

	if fireAt.Valid {
		t := fireAt.Time
		campaign.Trigger.FireAt = &t
	}

	if completedAt.Valid {
		t := completedAt.Time
		campaign.CompletedAt = &t
	}

	if payloadSchemaJSON != nil {
		err := json.Unmarshal(payloadSchemaJSON, &campaign.Trigger.PayloadSchema)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal payload schema: %w", err)
		}
	}

	if recurrenceJSON != nil {
		err := json.Unmarshal(recurrenceJSON, &campaign.Trigger.Recurrence)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal recurrence: %w", err)
		}
	}

	if includeJSON != nil {
		err := json.Unmarshal(includeJSON, &campaign.Include)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal include criteria: %w", err)
		}
	}

	if excludeJSON != nil {
		err := json.Unmarshal(excludeJSON, &campaign.Exclude)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal exclude criteria: %w", err)
		}
	}

	return &campaign, nil
}

func (r *CampaignRepository) loadSteps(ctx context.Context, campaign *models.Campaign) error {
	query := `
		SELECT id, position, kind, channel, template_ref, wait_duration_ms, wait_expression, predicate, branches, next_step_id
		FROM campaign_steps
		WHERE campaign_id = $1
		ORDER BY position
	`

	rows, err := r.db.QueryContext(ctx, query, campaign.ID)
	if err != nil {
		return fmt.Errorf("failed to query campaign steps: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	var steps []*models.Step

	for rows.Next() {
		var (
			step                      models.Step
			channel, templateRef      sql.NullString
			waitExpression            sql.NullString
			waitDurationMillis        int64
			predicateJSON, branchJSON []byte
			nextStepID                sql.NullString
		)

		err := rows.Scan(
			&step.ID,
			&step.Position,
			&step.Kind,
			&channel,
			&templateRef,
			&waitDurationMillis,
			&waitExpression,
			&predicateJSON,
			&branchJSON,
			&nextStepID,
		)
		if err != nil {
			return fmt.Errorf("failed to scan step: %w", err)
		}

		step.CampaignID = campaign.ID
		step.Channel = models.Channel(channel.String)
		step.TemplateRef = templateRef.String
		step.WaitDuration = time.Duration(waitDurationMillis) * time.Millisecond
		step.WaitExpression = waitExpression.String

		if nextStepID.Valid {
			id := nextStepID.String
			step.NextStepID = &id
		}

		if predicateJSON != nil {
			err := json.Unmarshal(predicateJSON, &step.Predicate)
			if err != nil {
				return fmt.Errorf("failed to unmarshal step predicate: %w", err)
			}
		}

		if branchJSON != nil {
			err := json.Unmarshal(branchJSON, &step.Branches)
			if err != nil {
				return fmt.Errorf("failed to unmarshal step branches: %w", err)
			}
		}

		steps = append(steps, &step)
	}

	err = rows.Err()
	if err != nil {
		return fmt.Errorf("error iterating steps: %w", err)
	}

	campaign.Steps = steps

	return nil
}

func (r *CampaignRepository) saveSteps(ctx context.Context, tx *sql.Tx, campaign *models.Campaign) error {
	query := `
		INSERT INTO campaign_steps (id, campaign_id, position, kind, channel, template_ref,
wait_duration_ms, wait_expression, predicate, branches, next_step_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	for _, step := range campaign.Steps {
		if step.ID == "" {
			id, err := uuid.NewV7()
			if err != nil {
				return fmt.Errorf("failed to generate step ID: %w", err)
			}

			step.ID = id.String()
		}

		predicateJSON, err := marshalNullable(step.Predicate)
		if err != nil {
			return fmt.Errorf("failed to marshal step predicate: %w", err)
		}

		var branchJSON []byte
		if len(step.Branches) > 0 {
			branchJSON, err = json.Marshal(step.Branches)
			if err != nil {
				return fmt.Errorf("failed to marshal step branches: %w", err)
			}
		}

		var nextStepID any
		if step.NextStepID != nil {
			nextStepID = *step.NextStepID
		}

		_, err = tx.ExecContext(ctx, query,
			step.ID,
			campaign.ID,
			step.Position,
			step.Kind,
			nullString(string(step.Channel)),
			nullString(step.TemplateRef),
			step.WaitDuration.Milliseconds(),
			nullString(step.WaitExpression),
			predicateJSON,
			branchJSON,
			nextStepID,
		)
		if err != nil {
			return fmt.Errorf("failed to insert step %s: %w", step.ID, err)
		}
	}

	return nil
}

// marshalNullable marshals v to JSON, mapping nil values to a SQL NULL.
func marshalNullable(v any) ([]byte, error) {
	switch value := v.(type) {
	case nil:
		return nil, nil
	case map[string]any:
		if value == nil {
			return nil, nil
		}
	case *models.Recurrence:
		if value == nil {
			return nil, nil
		}
	case *models.Predicate:
		if value == nil {
			return nil, nil
		}
	}

	return json.Marshal(v)
}

func nullString(s string) any {
	if s == "" {
		return nil
	}

	return s
}
