package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/careloop/outreach/pkg/batch"
	"github.com/careloop/outreach/pkg/config"
)

// Poller runs the scheduled and recurring campaign passes on an interval.
type Poller struct {
	id     string
	runner *batch.Runner
	config config.EngineConfig
	logger *slog.Logger
}

// NewPoller creates a batch poller.
func NewPoller(
	id string,
	runner *batch.Runner,
	engineConfig config.EngineConfig,
	logger *slog.Logger,
) *Poller {
	return &Poller{
		id:     id,
		runner: runner,
		config: engineConfig,
		logger: logger.With("module", "batch-poller"),
	}
}

// Start runs the poll loop. A pass runs immediately on startup so a
// restarted poller catches up without waiting a full interval.
func (p *Poller) Start(ctx context.Context) {
	pCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	p.handleSignals(cancel)

	p.logger.Info("Starting batch poll loop",
		"poll_interval", p.config.BatchPollInterval,
		"tolerance", p.config.BatchTolerance)

	p.pass(pCtx)

	ticker := time.NewTicker(p.config.BatchPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-pCtx.Done():
			p.logger.Info("Batch poll loop stopped")

			return
		case <-ticker.C:
			p.pass(pCtx)
		}
	}
}

func (p *Poller) handleSignals(cancel context.CancelFunc) {
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-signals
		p.logger.Info("Received signal, shutting down gracefully...", "signal", sig)
		cancel()
	}()
}

// pass fires due one-shot campaigns, then evaluates recurring ones. Each
// half fails independently so a broken recurrence rule cannot starve
// scheduled fires.
func (p *Poller) pass(ctx context.Context) {
	now := time.Now().UTC()

	if err := p.runner.RunScheduled(ctx, now); err != nil {
		p.logger.ErrorContext(ctx, "Scheduled campaign pass failed", "error", err)
	}

	if err := p.runner.RunRecurring(ctx, now); err != nil {
		p.logger.ErrorContext(ctx, "Recurring campaign pass failed", "error", err)
	}
}
