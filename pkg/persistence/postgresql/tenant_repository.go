package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/careloop/outreach/pkg/models"
	"github.com/careloop/outreach/pkg/persistence"
)

// TenantRepository handles tenant-related database operations.
type TenantRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewTenantRepository creates a new tenant repository.
func NewTenantRepository(db *sql.DB, logger *slog.Logger) *TenantRepository {
	return &TenantRepository{db: db, logger: logger}
}

// TenantByID returns a single tenant.
func (r *TenantRepository) TenantByID(ctx context.Context, id string) (*models.Tenant, error) {
	query := `SELECT id, name, attributes FROM tenants WHERE id = $1`

	var (
		tenant         models.Tenant
		attributesJSON []byte
	)

	err := r.db.QueryRowContext(ctx, query, id).Scan(&tenant.ID, &tenant.Name, &attributesJSON)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrTenantNotFound
		}

		return nil, fmt.Errorf("failed to scan tenant: %w", err)
	}

	if attributesJSON != nil {
		err := json.Unmarshal(attributesJSON, &tenant.Attributes)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal tenant attributes: %w", err)
		}
	}

	return &tenant, nil
}

// SaveTenant creates or replaces a tenant record.
func (r *TenantRepository) SaveTenant(ctx context.Context, tenant *models.Tenant) error {
	attributesJSON, err := marshalNullable(tenant.Attributes)
	if err != nil {
		return fmt.Errorf("failed to marshal tenant attributes: %w", err)
	}

	query := `
		INSERT INTO tenants (id, name, attributes)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			attributes = EXCLUDED.attributes
	`

	_, err = r.db.ExecContext(ctx, query, tenant.ID, tenant.Name, attributesJSON)
	if err != nil {
		return fmt.Errorf("failed to save tenant: %w", err)
	}

	return nil
}
