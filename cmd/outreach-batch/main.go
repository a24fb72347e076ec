package main

import (
	"context"
	"os"

	"github.com/google/uuid"
	cli "github.com/urfave/cli/v3"

	"github.com/careloop/outreach/pkg/batch"
	"github.com/careloop/outreach/pkg/cmd"
	"github.com/careloop/outreach/pkg/config"
	"github.com/careloop/outreach/pkg/log"
)

func main() {
	command := &cli.Command{
		Name:                  "outreach-batch",
		EnableShellCompletion: true,
		Usage:                 "Fire due scheduled and recurring campaigns",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "runner-id",
				Aliases: []string{"id"},
				Usage:   "Custom runner ID (auto-generated if not provided)",
				Value:   "",
				Sources: cli.EnvVars("RUNNER_ID"),
			},
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for persistence and the action ledger",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:     "event-bus",
				Usage:    "Event bus type (kafka, gochannel)",
				Required: true,
				Sources:  cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringFlag{
				Name:    "stats-url",
				Usage:   "Stats store URL (redis://, postgres:// or memory://)",
				Value:   "",
				Sources: cli.EnvVars("STATS_URL"),
			},
			&cli.StringFlag{
				Name:    "config",
				Usage:   "Path to the engine YAML config file",
				Value:   "./engine.yaml",
				Sources: cli.EnvVars("ENGINE_CONFIG"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			runnerID := command.String("runner-id")
			if runnerID == "" {
				runnerID = "batch-" + uuid.New().String()[:8]
			}

			logger := log.WithWorker("outreach-batch", runnerID)

			logger.InfoContext(ctx, "Initializing outreach batch runner")

			engineConfig := config.LoadEngineConfigOrDefault(command.String("config"))

			persistence := cmd.NewPersistence(ctx, logger, command.String("database-url"))
			defer func() {
				err := persistence.Close(ctx)
				if err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			scheduler := cmd.NewScheduler(ctx, logger, command.String("database-url"))
			defer func() {
				err := scheduler.Close(ctx)
				if err != nil {
					logger.ErrorContext(ctx, "Failed to close scheduler", "error", err)
				}
			}()

			aggregator := cmd.NewStats(ctx, logger, command.String("stats-url"))

			engineBus := cmd.NewEventBus(command.String("event-bus"), "outreach-batch", logger)
			defer func() {
				err := engineBus.Close()
				if err != nil {
					logger.ErrorContext(ctx, "Failed to close engine event bus", "error", err)
				}
			}()

			runner := batch.New(persistence, scheduler, aggregator, engineBus, logger)
			runner.SetTolerance(engineConfig.BatchTolerance)

			poller := NewPoller(runnerID, runner, engineConfig, logger)
			poller.Start(ctx)

			return nil
		},
	}

	err := command.Run(context.Background(), os.Args)
	if err != nil {
		panic(err)
	}
}
