// Package processor drains due pending actions: it executes the step each
// action points at, resolves the action, and schedules the successor.
package processor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/careloop/outreach/pkg/eventbus"
	engineevents "github.com/careloop/outreach/pkg/events"
	"github.com/careloop/outreach/pkg/interpreter"
	"github.com/careloop/outreach/pkg/models"
	"github.com/careloop/outreach/pkg/persistence"
	"github.com/careloop/outreach/pkg/scheduler"
	"github.com/careloop/outreach/pkg/stats"
)

// Processor executes claimed pending actions. Claiming is at-least-once;
// the terminal resolve is idempotent, so a redelivered action that was
// already resolved becomes a no-op.
type Processor struct {
	persistence persistence.Persistence
	scheduler   scheduler.Scheduler
	stats       stats.Aggregator
	interpreter *interpreter.Interpreter
	publisher   eventbus.EventPublisher
	logger      *slog.Logger
}

// New creates a processor. The publisher may be nil when engine event
// notifications are not wanted.
func New(
	p persistence.Persistence,
	s scheduler.Scheduler,
	aggregator stats.Aggregator,
	interp *interpreter.Interpreter,
	publisher eventbus.EventPublisher,
	logger *slog.Logger,
) *Processor {
	return &Processor{
		persistence: p,
		scheduler:   s,
		stats:       aggregator,
		interpreter: interp,
		publisher:   publisher,
		logger:      logger.With("module", "processor"),
	}
}

// DrainResult tallies a single drain pass. Processed counts every action
// that reached a terminal outcome; Sent and Failed count deliveries on send
// steps, so condition and branch hops never inflate them.
type DrainResult struct {
	Processed int
	Sent      int
	Failed    int
}

// Drain claims up to limit due actions and processes each one. Per-action
// failures are logged and left for redelivery; Drain only returns an error
// when claiming itself fails.
func (p *Processor) Drain(ctx context.Context, limit int) (DrainResult, error) {
	var result DrainResult

	actions, err := p.scheduler.ClaimDue(ctx, limit)
	if err != nil {
		return result, fmt.Errorf("failed to claim due actions: %w", err)
	}

	for _, action := range actions {
		err := p.process(ctx, action, &result)
		if err != nil {
			p.logger.ErrorContext(ctx, "failed to process action, leaving for redelivery",
				"action_id", action.ID,
				"campaign_id", action.CampaignID,
				"error", err)

			continue
		}

		result.Processed++
	}

	return result, nil
}

func (p *Processor) process(ctx context.Context, action *models.PendingAction, tally *DrainResult) error {
	logger := p.logger.With(
		"action_id", action.ID,
		"campaign_id", action.CampaignID,
		"recipient_id", action.RecipientID,
		"step_id", action.StepID,
	)

	campaign, err := p.persistence.Campaigns().CampaignByID(ctx, action.CampaignID)
	if err != nil {
		if errors.Is(err, persistence.ErrCampaignNotFound) {
			logger.WarnContext(ctx, "campaign gone, cancelling action")

			return p.resolve(ctx, logger, action, nil, models.Outcome{
				Status: models.ActionStatusCancelled,
				Reason: "campaign no longer exists",
			})
		}

		return fmt.Errorf("failed to load campaign: %w", err)
	}

	// A pause or completion between scheduling and draining cancels the
	// claimed work instead of sending on a stopped campaign.
	if campaign.Status != models.CampaignStatusActive {
		logger.InfoContext(ctx, "campaign not active, cancelling action", "campaign_status", campaign.Status)

		return p.resolve(ctx, logger, action, nil, models.Outcome{
			Status: models.ActionStatusCancelled,
			Reason: fmt.Sprintf("campaign is %s", campaign.Status),
		})
	}

	step, ok := campaign.StepByID(action.StepID)
	if !ok {
		logger.WarnContext(ctx, "step gone from campaign, cancelling action")

		return p.resolve(ctx, logger, action, nil, models.Outcome{
			Status: models.ActionStatusCancelled,
			Reason: "step no longer exists",
		})
	}

	recipient, err := p.persistence.Recipients().RecipientByID(ctx, action.TenantID, action.RecipientID)
	if err != nil {
		if errors.Is(err, persistence.ErrRecipientNotFound) {
			logger.WarnContext(ctx, "recipient gone, skipping action")

			return p.resolve(ctx, logger, action, step, models.Outcome{
				Status: models.ActionStatusSkipped,
				Reason: "recipient no longer exists",
			})
		}

		return fmt.Errorf("failed to load recipient: %w", err)
	}

	tenant, err := p.persistence.Tenants().TenantByID(ctx, action.TenantID)
	if err != nil {
		if !errors.Is(err, persistence.ErrTenantNotFound) {
			return fmt.Errorf("failed to load tenant: %w", err)
		}

		tenant = &models.Tenant{ID: action.TenantID}
	}

	execCtx := models.NewExecutionContext(campaign, recipient, tenant, step.ID, action.TriggerData)
	result := p.interpreter.Execute(ctx, step, execCtx)

	err = p.resolve(ctx, logger, action, step, models.Outcome{
		Status:     result.Status,
		Reason:     result.Reason,
		ErrorCode:  result.ErrorCode,
		ExternalID: result.ExternalID,
	})
	if err != nil {
		return err
	}

	if step.Kind == models.StepKindSend && result.Status == models.ActionStatusSent {
		tally.Sent++
	}

	if result.Status == models.ActionStatusFailed {
		tally.Failed++
	}

	if result.Status == models.ActionStatusSent && result.AdvanceTo != nil {
		return p.advance(ctx, logger, campaign, action, *result.AdvanceTo)
	}

	return nil
}

// resolve writes the terminal outcome, updates counters, and publishes the
// resolution. step is nil when the action was cancelled without executing.
func (p *Processor) resolve(
	ctx context.Context,
	logger *slog.Logger,
	action *models.PendingAction,
	step *models.Step,
	outcome models.Outcome,
) error {
	err := p.scheduler.Resolve(ctx, action.ID, outcome)
	if err != nil {
		return fmt.Errorf("failed to resolve action: %w", err)
	}

	if step != nil && step.Kind == models.StepKindSend && outcome.Status == models.ActionStatusSent {
		err := p.stats.Increment(ctx, action.CampaignID, stats.CounterSent, 1)
		if err != nil {
			logger.ErrorContext(ctx, "failed to increment sent counter", "error", err)
		}
	}

	if outcome.Status == models.ActionStatusFailed {
		err := p.stats.Increment(ctx, action.CampaignID, stats.CounterFailed, 1)
		if err != nil {
			logger.ErrorContext(ctx, "failed to increment failed counter", "error", err)
		}
	}

	p.publishResolved(ctx, logger, action, outcome)

	logger.InfoContext(ctx, "action resolved",
		"status", outcome.Status,
		"reason", outcome.Reason,
		"error_code", outcome.ErrorCode)

	return nil
}

// advance schedules the successor step, folding any waits into its due
// time. The current action is already terminal, so the pair is free for the
// new PENDING row.
func (p *Processor) advance(
	ctx context.Context,
	logger *slog.Logger,
	campaign *models.Campaign,
	action *models.PendingAction,
	nextStepID string,
) error {
	next, ok := campaign.StepByID(nextStepID)
	if !ok {
		logger.WarnContext(ctx, "successor step not in campaign, ending workflow", "next_step_id", nextStepID)

		return nil
	}

	now := time.Now().UTC()

	target, dueAt, advisory := models.PlanAdvance(campaign, next, now, action.TriggerData)
	if advisory != nil {
		logger.WarnContext(ctx, "wait resolution degraded", "error", advisory)
	}

	if target == nil {
		logger.InfoContext(ctx, "workflow completed for recipient")

		return nil
	}

	successor := &models.PendingAction{
		CampaignID:  action.CampaignID,
		StepID:      target.ID,
		TenantID:    action.TenantID,
		RecipientID: action.RecipientID,
		DueAt:       dueAt,
		TriggerData: action.TriggerData,
	}

	err := p.scheduler.Enqueue(ctx, successor)
	if err != nil {
		if errors.Is(err, scheduler.ErrAlreadyPending) {
			logger.WarnContext(ctx, "pair already pending while advancing, dropping successor")

			return nil
		}

		return fmt.Errorf("failed to enqueue successor: %w", err)
	}

	p.publishEnqueued(ctx, logger, action, successor)

	logger.InfoContext(ctx, "advanced to next step", "next_step_id", target.ID, "due_at", dueAt)

	return nil
}

func (p *Processor) publishResolved(ctx context.Context, logger *slog.Logger, action *models.PendingAction, outcome models.Outcome) {
	if p.publisher == nil {
		return
	}

	event := engineevents.ActionResolved{
		BaseEvent:   engineevents.NewBaseEvent(engineevents.ActionResolvedEvent, action.TenantID, action.CampaignID),
		ActionID:    action.ID,
		StepID:      action.StepID,
		RecipientID: action.RecipientID,
		Status:      string(outcome.Status),
		Reason:      outcome.Reason,
		ErrorCode:   outcome.ErrorCode,
	}

	err := p.publisher.Publish(ctx, action.CampaignID, event)
	if err != nil {
		logger.ErrorContext(ctx, "failed to publish action resolved event", "error", err)
	}
}

func (p *Processor) publishEnqueued(ctx context.Context, logger *slog.Logger, action, successor *models.PendingAction) {
	if p.publisher == nil {
		return
	}

	event := engineevents.ActionEnqueued{
		BaseEvent:   engineevents.NewBaseEvent(engineevents.ActionEnqueuedEvent, action.TenantID, action.CampaignID),
		ActionID:    successor.ID,
		StepID:      successor.StepID,
		RecipientID: successor.RecipientID,
		DueAt:       successor.DueAt,
	}

	err := p.publisher.Publish(ctx, action.CampaignID, event)
	if err != nil {
		logger.ErrorContext(ctx, "failed to publish action enqueued event", "error", err)
	}
}
