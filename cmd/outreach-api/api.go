// Package main provides the outreach operational API server.
package main

import (
	"log/slog"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	fiberlogger "github.com/gofiber/fiber/v3/middleware/logger"

	"github.com/careloop/outreach/pkg/eventbus"
	"github.com/careloop/outreach/pkg/persistence"
	"github.com/careloop/outreach/pkg/scheduler"
	"github.com/careloop/outreach/pkg/stats"
	"github.com/careloop/outreach/pkg/web"
)

type API struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	scheduler   scheduler.Scheduler
	stats       stats.Aggregator
	businessBus eventbus.BusinessEventBus
	validate    *validator.Validate
}

func NewAPI(
	logger *slog.Logger,
	persistence persistence.Persistence,
	scheduler scheduler.Scheduler,
	aggregator stats.Aggregator,
	businessBus eventbus.BusinessEventBus,
) *API {
	return &API{
		logger:      logger,
		persistence: persistence,
		scheduler:   scheduler,
		stats:       aggregator,
		businessBus: businessBus,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (a *API) App() *fiber.App {
	handlers := web.NewAPIHandlers(a.persistence, a.scheduler, a.stats, a.businessBus, a.validate)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(fiberlogger.New(fiberlogger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Outreach API")
	})

	handlers.Register(app)

	return app
}

func (a *API) Start(port int) error {
	app := a.App()

	err := app.Listen(":" + strconv.Itoa(port))

	return err
}
