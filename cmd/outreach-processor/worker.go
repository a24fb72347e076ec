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

	"github.com/careloop/outreach/pkg/config"
	"github.com/careloop/outreach/pkg/otelhelper"
	"github.com/careloop/outreach/pkg/processor"
)

// Worker polls the action ledger and drains due actions on an interval.
type Worker struct {
	id        string
	processor *processor.Processor
	config    config.EngineConfig
	tracer    trace.Tracer
	logger    *slog.Logger
}

// NewWorker creates a drain worker.
func NewWorker(
	id string,
	p *processor.Processor,
	engineConfig config.EngineConfig,
	tracer trace.Tracer,
	logger *slog.Logger,
) *Worker {
	return &Worker{
		id:        id,
		processor: p,
		config:    engineConfig,
		tracer:    tracer,
		logger:    logger.With("module", "drain-worker"),
	}
}

// Start runs the drain loop. It blocks until the context is cancelled or a
// termination signal arrives.
func (w *Worker) Start(ctx context.Context) {
	wCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	w.handleSignals(cancel)

	w.logger.Info("Starting drain loop",
		"poll_interval", w.config.ProcessorPollInterval,
		"claim_limit", w.config.ProcessorClaimLimit)

	ticker := time.NewTicker(w.config.ProcessorPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-wCtx.Done():
			w.logger.Info("Drain loop stopped")

			return
		case <-ticker.C:
			w.drain(wCtx)
		}
	}
}

func (w *Worker) handleSignals(cancel context.CancelFunc) {
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-signals
		w.logger.Info("Received signal, shutting down gracefully...", "signal", sig)
		cancel()
	}()
}

// drain keeps claiming until a pass comes back empty, so a backlog clears
// faster than one batch per tick.
func (w *Worker) drain(ctx context.Context) {
	ctx, span := otelhelper.StartSpan(ctx, w.tracer, "drain_due_actions",
		attribute.String(otelhelper.WorkerIDKey, w.id),
	)
	defer span.End()

	for {
		result, err := w.processor.Drain(ctx, w.config.ProcessorClaimLimit)
		if err != nil {
			otelhelper.SetError(span, err)
			w.logger.ErrorContext(ctx, "Drain pass failed", "error", err)

			return
		}

		if result.Processed > 0 {
			w.logger.InfoContext(ctx, "Drained due actions",
				"processed", result.Processed,
				"sent", result.Sent,
				"failed", result.Failed)
		}

		if result.Processed < w.config.ProcessorClaimLimit {
			return
		}
	}
}
