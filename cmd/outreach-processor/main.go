package main

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
	cli "github.com/urfave/cli/v3"

	"github.com/careloop/outreach/pkg/cmd"
	"github.com/careloop/outreach/pkg/config"
	"github.com/careloop/outreach/pkg/interpreter"
	"github.com/careloop/outreach/pkg/log"
	"github.com/careloop/outreach/pkg/otelhelper"
	"github.com/careloop/outreach/pkg/processor"
	"github.com/careloop/outreach/pkg/sender"
	"github.com/careloop/outreach/pkg/template"
)

func main() {
	command := &cli.Command{
		Name:                  "outreach-processor",
		EnableShellCompletion: true,
		Usage:                 "Drain due campaign actions and execute their steps",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "worker-id",
				Aliases: []string{"id"},
				Usage:   "Custom worker ID (auto-generated if not provided)",
				Value:   "",
				Sources: cli.EnvVars("WORKER_ID"),
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
				Name:    "templates-path",
				Usage:   "Path to the message template directory",
				Value:   "./templates",
				Sources: cli.EnvVars("TEMPLATES_PATH"),
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

			workerID := command.String("worker-id")
			if workerID == "" {
				workerID = "worker-" + uuid.New().String()[:8]
			}

			logger := log.WithWorker("outreach-processor", workerID)

			logger.InfoContext(ctx, "Initializing outreach processor")

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

			engineBus := cmd.NewEventBus(command.String("event-bus"), "outreach-processor", logger)
			defer func() {
				err := engineBus.Close()
				if err != nil {
					logger.ErrorContext(ctx, "Failed to close engine event bus", "error", err)
				}
			}()

			dispatcher := sender.NewDispatcher()
			for _, channel := range engineConfig.Channels {
				dispatcher.Register(channel, sender.NewMock())
			}

			logger.WarnContext(ctx, "No real message transports configured, sends are recorded only",
				"channels", len(engineConfig.Channels))

			templates := template.NewDirectorySource(command.String("templates-path"))
			interp := interpreter.New(dispatcher, templates, logger)

			tracer, err := otelhelper.NewTracer(ctx, "outreach-processor")
			if err != nil {
				return fmt.Errorf("failed to initialize tracer: %w", err)
			}

			worker := NewWorker(
				workerID,
				processor.New(persistence, scheduler, aggregator, interp, engineBus, logger),
				engineConfig,
				tracer,
				logger,
			)

			worker.Start(ctx)

			return nil
		},
	}

	err := command.Run(context.Background(), os.Args)
	if err != nil {
		panic(err)
	}
}
