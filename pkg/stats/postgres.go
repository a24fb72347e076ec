package stats

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "github.com/lib/pq"

	"github.com/careloop/outreach/pkg/persistence/sqlbase"
)

// PostgresAggregator keeps counters in a campaign_stats table. The
// additive upsert makes concurrent increments safe without read-modify-write.
type PostgresAggregator struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresAggregator connects to PostgreSQL and runs the stats
// migrations.
func NewPostgresAggregator(ctx context.Context, logger *slog.Logger, databaseURL string) (*PostgresAggregator, error) {
	database, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL database: %w", err)
	}

	err = database.PingContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	migrationManager := sqlbase.NewMigrationManager(logger, database, statsMigrations())

	aggregator := &PostgresAggregator{
		db:     database,
		logger: logger.With("component", "stats_postgres"),
	}

	err = migrationManager.RunMigrations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to run stats migrations: %w", err)
	}

	return aggregator, nil
}

// Increment adds delta to one counter of the campaign.
func (a *PostgresAggregator) Increment(ctx context.Context, campaignID string, counter Counter, delta int64) error {
	query := `
		INSERT INTO campaign_stats (campaign_id, counter, value)
		VALUES ($1, $2, $3)
		ON CONFLICT (campaign_id, counter)
		DO UPDATE SET value = campaign_stats.value + EXCLUDED.value
	`

	_, err := a.db.ExecContext(ctx, query, campaignID, counter, delta)
	if err != nil {
		return fmt.Errorf("failed to increment %s for campaign %s: %w", counter, campaignID, err)
	}

	return nil
}

// Snapshot reads all counters of the campaign.
func (a *PostgresAggregator) Snapshot(ctx context.Context, campaignID string) (Snapshot, error) {
	query := `SELECT counter, value FROM campaign_stats WHERE campaign_id = $1`

	rows, err := a.db.QueryContext(ctx, query, campaignID)
	if err != nil {
		return Snapshot{}, fmt.Errorf("failed to read stats for campaign %s: %w", campaignID, err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			a.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	var snapshot Snapshot

	for rows.Next() {
		var (
			counter Counter
			value   int64
		)

		err := rows.Scan(&counter, &value)
		if err != nil {
			return Snapshot{}, fmt.Errorf("failed to scan stats row: %w", err)
		}

		switch counter {
		case CounterRecipients:
			snapshot.Recipients = value
		case CounterSent:
			snapshot.Sent = value
		case CounterDelivered:
			snapshot.Delivered = value
		case CounterFailed:
			snapshot.Failed = value
		}
	}

	err = rows.Err()
	if err != nil {
		return Snapshot{}, fmt.Errorf("error iterating stats rows: %w", err)
	}

	return snapshot, nil
}

// HealthCheck verifies the database connection is healthy.
func (a *PostgresAggregator) HealthCheck(ctx context.Context) error {
	err := a.db.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	return nil
}

// Close closes the database connection.
func (a *PostgresAggregator) Close(ctx context.Context) error {
	if a.db != nil {
		err := a.db.Close()
		if err != nil {
			return fmt.Errorf("failed to close database connection: %w", err)
		}
	}

	return nil
}

func statsMigrations() map[int]string {
	return map[int]string{
		3: `
			CREATE TABLE campaign_stats (
				campaign_id VARCHAR(255) NOT NULL,
				counter VARCHAR(32) NOT NULL,
				value BIGINT NOT NULL DEFAULT 0,
				PRIMARY KEY (campaign_id, counter)
			);
		`,
	}
}
