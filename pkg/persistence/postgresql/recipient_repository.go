package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/careloop/outreach/pkg/models"
	"github.com/careloop/outreach/pkg/persistence"
)

// RecipientRepository handles recipient-related database operations.
type RecipientRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewRecipientRepository creates a new recipient repository.
func NewRecipientRepository(db *sql.DB, logger *slog.Logger) *RecipientRepository {
	return &RecipientRepository{db: db, logger: logger}
}

const recipientColumns = `
			id
		  , tenant_id
		  , status
		  , phone
		  , email
		  , push_token
		  , opted_in
		  , attributes
`

// RecipientByID returns a single recipient of the tenant.
func (r *RecipientRepository) RecipientByID(ctx context.Context, tenantID, id string) (*models.Recipient, error) {
	query := `SELECT ` + recipientColumns + ` FROM recipients WHERE tenant_id = $1 AND id = $2`

	row := r.db.QueryRowContext(ctx, query, tenantID, id)

	recipient, err := scanRecipient(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrRecipientNotFound
		}

		return nil, fmt.Errorf("failed to scan recipient: %w", err)
	}

	return recipient, nil
}

// RecipientsByTenant returns every recipient of the tenant.
func (r *RecipientRepository) RecipientsByTenant(ctx context.Context, tenantID string) ([]*models.Recipient, error) {
	query := `SELECT ` + recipientColumns + ` FROM recipients WHERE tenant_id = $1 ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to query recipients: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	recipients := make([]*models.Recipient, 0)

	for rows.Next() {
		recipient, err := scanRecipient(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan recipient: %w", err)
		}

		recipients = append(recipients, recipient)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating recipients: %w", err)
	}

	return recipients, nil
}

// SaveRecipient creates or replaces a recipient record.
func (r *RecipientRepository) SaveRecipient(ctx context.Context, recipient *models.Recipient) error {
	if recipient.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate recipient ID: %w", err)
		}

		recipient.ID = id.String()
	}

	attributesJSON, err := marshalNullable(recipient.Attributes)
	if err != nil {
		return fmt.Errorf("failed to marshal recipient attributes: %w", err)
	}

	query := `
		INSERT INTO recipients (id, tenant_id, status, phone, email, push_token, opted_in, attributes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (tenant_id, id) DO UPDATE SET
			status = EXCLUDED.status,
			phone = EXCLUDED.phone,
			email = EXCLUDED.email,
			push_token = EXCLUDED.push_token,
			opted_in = EXCLUDED.opted_in,
			attributes = EXCLUDED.attributes
	`

	_, err = r.db.ExecContext(ctx, query,
		recipient.ID,
		recipient.TenantID,
		recipient.Status,
		nullString(recipient.Phone),
		nullString(recipient.Email),
		nullString(recipient.PushToken),
		recipient.OptedIn,
		attributesJSON,
	)
	if err != nil {
		return fmt.Errorf("failed to save recipient: %w", err)
	}

	return nil
}

func scanRecipient(row scanner) (*models.Recipient, error) {
	var (
		recipient               models.Recipient
		phone, email, pushToken sql.NullString
		attributesJSON          []byte
	)

	err := row.Scan(
		&recipient.ID,
		&recipient.TenantID,
		&recipient.Status,
		&phone,
		&email,
		&pushToken,
		&recipient.OptedIn,
		&attributesJSON,
	)
	if err != nil {
		return nil, err
	}

	recipient.Phone = phone.String
	recipient.Email = email.String
	recipient.PushToken = pushToken.String

	if attributesJSON != nil {
		err := json.Unmarshal(attributesJSON, &recipient.Attributes)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal recipient attributes: %w", err)
		}
	}

	return &recipient, nil
}
