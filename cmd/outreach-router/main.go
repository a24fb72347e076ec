package main

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
	cli "github.com/urfave/cli/v3"

	"github.com/careloop/outreach/pkg/cmd"
	"github.com/careloop/outreach/pkg/log"
	"github.com/careloop/outreach/pkg/otelhelper"
	"github.com/careloop/outreach/pkg/router"
)

func main() {
	command := &cli.Command{
		Name:                  "outreach-router",
		EnableShellCompletion: true,
		Usage:                 "Start dynamic campaigns from inbound business events",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "router-id",
				Aliases: []string{"id"},
				Usage:   "Custom router ID (auto-generated if not provided)",
				Value:   "",
				Sources: cli.EnvVars("ROUTER_ID"),
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

			routerID := command.String("router-id")
			if routerID == "" {
				routerID = "router-" + uuid.New().String()[:8]
			}

			logger := log.WithWorker("outreach-router", routerID)

			logger.InfoContext(ctx, "Initializing outreach router")

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

			businessBus := cmd.NewBusinessEventBus(command.String("event-bus"), "outreach-router", logger)
			defer func() {
				err := businessBus.Close()
				if err != nil {
					logger.ErrorContext(ctx, "Failed to close business event bus", "error", err)
				}
			}()

			engineBus := cmd.NewEventBus(command.String("event-bus"), "outreach-router", logger)
			defer func() {
				err := engineBus.Close()
				if err != nil {
					logger.ErrorContext(ctx, "Failed to close engine event bus", "error", err)
				}
			}()

			tracer, err := otelhelper.NewTracer(ctx, "outreach-router")
			if err != nil {
				return fmt.Errorf("failed to initialize tracer: %w", err)
			}

			service := NewService(
				routerID,
				router.New(persistence, scheduler, aggregator, engineBus, logger),
				businessBus,
				tracer,
				logger,
			)

			service.Start(ctx)

			return nil
		},
	}

	err := command.Run(context.Background(), os.Args)
	if err != nil {
		panic(err)
	}
}
