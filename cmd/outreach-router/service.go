package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/careloop/outreach/pkg/eventbus"
	"github.com/careloop/outreach/pkg/events"
	"github.com/careloop/outreach/pkg/otelhelper"
	"github.com/careloop/outreach/pkg/router"
)

// Service consumes business events from the bus and feeds them to the
// router core.
type Service struct {
	id           string
	router       *router.Router
	businessBus  eventbus.BusinessEventBus
	tracer       trace.Tracer
	logger       *slog.Logger
	restartCount int
}

// NewService creates a new router Service instance.
func NewService(
	id string,
	r *router.Router,
	businessBus eventbus.BusinessEventBus,
	tracer trace.Tracer,
	logger *slog.Logger,
) *Service {
	return &Service{
		id:          id,
		router:      r,
		businessBus: businessBus,
		tracer:      tracer,
		logger:      logger.With("module", "router-service"),
	}
}

// Start begins consuming business events. It blocks until the context is
// cancelled or a termination signal arrives.
func (s *Service) Start(ctx context.Context) {
	sCtx, cancel := context.WithCancel(ctx)

	s.logger.Info("Starting router service")

	s.handleSignals(sCtx, cancel)
	s.run(sCtx)
}

// handleSignals sets up signal handling for graceful shutdown and restart.
func (s *Service) handleSignals(ctx context.Context, cancel context.CancelFunc) {
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-signals
		s.logger.Info("Received signal", "signal", sig)

		switch sig {
		case syscall.SIGHUP:
			s.logger.Info("Reloading...")
			s.restart(ctx, cancel)
		case syscall.SIGINT, syscall.SIGTERM:
			s.logger.Info("Shutting down gracefully...")
			cancel()
			os.Exit(0)
		default:
			s.logger.Warn("Unhandled signal received", "signal", sig)
		}
	}()
}

// restart handles service restart with backoff.
func (s *Service) restart(ctx context.Context, cancel context.CancelFunc) {
	s.restartCount++
	newCtx := context.WithoutCancel(ctx)

	cancel()

	if s.restartCount > 5 {
		s.logger.Error("Restart limit reached, exiting...")
		os.Exit(1)
	}

	backoff := time.Duration(s.restartCount) * time.Second
	s.logger.Info("Restarting router service...", "backoff", backoff)
	time.Sleep(backoff)

	s.Start(newCtx)
}

// run subscribes to business events and blocks until cancellation.
func (s *Service) run(ctx context.Context) {
	s.businessBus.HandleBusinessEvents(func(ctx context.Context, event *events.BusinessEvent) error {
		ctx, span := otelhelper.StartSpan(ctx, s.tracer, "route_business_event",
			attribute.String(otelhelper.TenantIDKey, event.TenantID),
			attribute.String(otelhelper.RecipientIDKey, event.RecipientID),
			attribute.String(otelhelper.EventNameKey, event.EventName),
		)
		defer span.End()

		s.logger.Info("Received business event",
			"event_name", event.EventName,
			"tenant_id", event.TenantID,
			"recipient_id", event.RecipientID)

		err := s.router.Route(ctx, event)
		if err != nil {
			otelhelper.SetError(span, err)
		}

		return err
	})

	err := s.businessBus.SubscribeToBusinessEvents(ctx)
	if err != nil {
		s.logger.Error("Failed to subscribe to business events", "error", err)

		return
	}

	s.logger.Info("Subscribed to business events, waiting...")

	<-ctx.Done()
	s.logger.Info("Router service context cancelled, stopping...")
}
