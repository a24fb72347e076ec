package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/careloop/outreach/pkg/stats"
)

// NewStats creates the per-campaign counter store based on the URL scheme.
// An empty URL falls back to the in-memory aggregator.
func NewStats(ctx context.Context, logger *slog.Logger, statsURL string) stats.Aggregator {
	if statsURL == "" {
		return stats.NewMemoryAggregator()
	}

	switch parseProvider(statsURL) {
	case "redis", "rediss":
		aggregator, err := stats.NewRedisAggregator(ctx, statsURL)
		if err != nil {
			panic(fmt.Errorf("failed to create redis stats aggregator: %w", err))
		}

		return aggregator
	case "postgres", "postgresql":
		aggregator, err := stats.NewPostgresAggregator(ctx, logger, statsURL)
		if err != nil {
			panic(fmt.Errorf("failed to create postgres stats aggregator: %w", err))
		}

		return aggregator
	case "memory":
		return stats.NewMemoryAggregator()
	default:
		panic("Unsupported stats provider in URL: " + statsURL)
	}
}
