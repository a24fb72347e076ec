// Package postgresql provides PostgreSQL persistence for campaigns and the
// recipient/tenant attribute store.
package postgresql

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "github.com/lib/pq"

	"github.com/careloop/outreach/pkg/persistence"
	"github.com/careloop/outreach/pkg/persistence/sqlbase"
)

// Persistence implements the persistence layer for PostgreSQL.
type Persistence struct {
	db            *sql.DB
	logger        *slog.Logger
	campaignRepo  *CampaignRepository
	recipientRepo *RecipientRepository
	tenantRepo    *TenantRepository
}

// NewPersistence creates a new PostgreSQL persistence layer and runs its
// migrations.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (*Persistence, error) {
	database, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL database: %w", err)
	}

	err = database.PingContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	migrationManager := sqlbase.NewMigrationManager(logger, database, migrations())

	postgres := &Persistence{
		db:            database,
		logger:        logger.With("component", "postgres_persistence"),
		campaignRepo:  NewCampaignRepository(database, logger),
		recipientRepo: NewRecipientRepository(database, logger),
		tenantRepo:    NewTenantRepository(database, logger),
	}

	err = migrationManager.RunMigrations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return postgres, nil
}

// Campaigns returns the campaign repository.
func (p *Persistence) Campaigns() persistence.CampaignRepository {
	return p.campaignRepo
}

// Recipients returns the recipient repository.
func (p *Persistence) Recipients() persistence.RecipientRepository {
	return p.recipientRepo
}

// Tenants returns the tenant repository.
func (p *Persistence) Tenants() persistence.TenantRepository {
	return p.tenantRepo
}

// HealthCheck verifies the database connection is healthy.
func (p *Persistence) HealthCheck(ctx context.Context) error {
	err := p.db.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	return nil
}

// Close closes the database connection.
func (p *Persistence) Close(ctx context.Context) error {
	if p.db != nil {
		err := p.db.Close()
		if err != nil {
			return fmt.Errorf("failed to close database connection: %w", err)
		}
	}

	return nil
}

// migrations returns the schema for the campaign and attribute tables.
func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE campaigns (
				id VARCHAR(255) PRIMARY KEY,
				tenant_id VARCHAR(255) NOT NULL,
				name VARCHAR(255) NOT NULL,
				status VARCHAR(32) NOT NULL,
				trigger_kind VARCHAR(32) NOT NULL,
				event_name VARCHAR(255),
				payload_schema JSONB,
				fire_at TIMESTAMP WITH TIME ZONE,
				recurrence JSONB,
				include_criteria JSONB,
				exclude_criteria JSONB,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL,
				completed_at TIMESTAMP WITH TIME ZONE
			);

			CREATE TABLE campaign_steps (
				id VARCHAR(255) PRIMARY KEY,
				campaign_id VARCHAR(255) NOT NULL REFERENCES campaigns(id),
				position INTEGER NOT NULL,
				kind VARCHAR(32) NOT NULL,
				channel VARCHAR(32),
				template_ref VARCHAR(255),
				wait_duration_ms BIGINT NOT NULL DEFAULT 0,
				wait_expression VARCHAR(255),
				predicate JSONB,
				branches JSONB,
				next_step_id VARCHAR(255),
				UNIQUE (campaign_id, position)
			);

			CREATE TABLE tenants (
				id VARCHAR(255) PRIMARY KEY,
				name VARCHAR(255) NOT NULL,
				attributes JSONB
			);

			CREATE TABLE recipients (
				id VARCHAR(255) NOT NULL,
				tenant_id VARCHAR(255) NOT NULL,
				status VARCHAR(32) NOT NULL,
				phone VARCHAR(64),
				email VARCHAR(255),
				push_token VARCHAR(255),
				opted_in BOOLEAN NOT NULL DEFAULT false,
				attributes JSONB,
				PRIMARY KEY (tenant_id, id)
			);

			CREATE INDEX idx_campaigns_tenant_status ON campaigns(tenant_id, status);
			CREATE INDEX idx_campaigns_event ON campaigns(tenant_id, trigger_kind, event_name) WHERE status = 'active';
			CREATE INDEX idx_campaigns_fire_at ON campaigns(fire_at) WHERE status = 'active' AND trigger_kind = 'scheduled';
			CREATE INDEX idx_campaign_steps_campaign ON campaign_steps(campaign_id, position);
			CREATE INDEX idx_recipients_tenant ON recipients(tenant_id);
		`,
	}
}
