// Package cmd provides common initialization for the outreach binaries.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/careloop/outreach/pkg/persistence"
	"github.com/careloop/outreach/pkg/persistence/memory"
	"github.com/careloop/outreach/pkg/persistence/postgresql"
	"github.com/careloop/outreach/pkg/scheduler"
	schedulermemory "github.com/careloop/outreach/pkg/scheduler/memory"
	schedulerpostgres "github.com/careloop/outreach/pkg/scheduler/postgres"
)

func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) persistence.Persistence {
	switch parseProvider(databaseURL) {
	case "postgres", "postgresql":
		p, err := postgresql.NewPersistence(ctx, logger, databaseURL)
		if err != nil {
			panic(fmt.Errorf("failed to create postgres persistence: %w", err))
		}

		return p
	case "memory":
		return memory.NewPersistence()
	default:
		panic("Unsupported persistence provider in database URL: " + databaseURL)
	}
}

// NewScheduler creates the pending action store based on the URL scheme.
func NewScheduler(ctx context.Context, logger *slog.Logger, databaseURL string) scheduler.Scheduler {
	switch parseProvider(databaseURL) {
	case "postgres", "postgresql":
		s, err := schedulerpostgres.NewScheduler(ctx, logger, databaseURL)
		if err != nil {
			panic(fmt.Errorf("failed to create postgres scheduler: %w", err))
		}

		return s
	case "memory":
		return schedulermemory.NewScheduler()
	default:
		panic("Unsupported scheduler provider in database URL: " + databaseURL)
	}
}

func parseProvider(databaseURL string) string {
	provider, _, found := strings.Cut(databaseURL, "://")
	if !found {
		return ""
	}

	return provider
}
