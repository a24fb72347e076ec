package main

import (
	"context"
	"os"

	cli "github.com/urfave/cli/v3"

	"github.com/careloop/outreach/pkg/cmd"
	"github.com/careloop/outreach/pkg/log"
)

const defaultPort = 9091

func main() {
	logger := log.WithModule("api")

	command := &cli.Command{
		Name:                  "outreach-api",
		Usage:                 "Operational API for campaign visibility and event injection",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to run the API server on",
				Value:   defaultPort,
				Sources: cli.EnvVars("PORT"),
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
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			logger.InfoContext(ctx, "Initializing outreach API")

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

			businessBus := cmd.NewBusinessEventBus(command.String("event-bus"), "outreach-api", logger)
			defer func() {
				err := businessBus.Close()
				if err != nil {
					logger.ErrorContext(ctx, "Failed to close business event bus", "error", err)
				}
			}()

			api := NewAPI(
				logger,
				persistence,
				scheduler,
				aggregator,
				businessBus,
			)

			err := api.Start(command.Int("port"))
			if err != nil {
				logger.ErrorContext(ctx, "Failed to start API server", "error", err)
			}

			return nil
		},
	}

	err := command.Run(context.Background(), os.Args)
	if err != nil {
		panic(err)
	}
}
