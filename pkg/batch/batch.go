// Package batch fires scheduled and recurring campaigns across their whole
// audience. It is run periodically by the batch binary.
package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/careloop/outreach/pkg/audience"
	"github.com/careloop/outreach/pkg/eventbus"
	engineevents "github.com/careloop/outreach/pkg/events"
	"github.com/careloop/outreach/pkg/models"
	"github.com/careloop/outreach/pkg/persistence"
	"github.com/careloop/outreach/pkg/scheduler"
	"github.com/careloop/outreach/pkg/stats"
)

// DefaultTolerance is how far past its fire time a recurring campaign may
// still fire. Ticks are not exact; a run a few minutes late should not skip
// the day.
const DefaultTolerance = 5 * time.Minute

// Runner fires due scheduled and recurring campaigns.
type Runner struct {
	persistence persistence.Persistence
	scheduler   scheduler.Scheduler
	stats       stats.Aggregator
	publisher   eventbus.EventPublisher
	tolerance   time.Duration
	logger      *slog.Logger
}

// New creates a batch runner. The publisher may be nil when engine event
// notifications are not wanted.
func New(
	p persistence.Persistence,
	s scheduler.Scheduler,
	aggregator stats.Aggregator,
	publisher eventbus.EventPublisher,
	logger *slog.Logger,
) *Runner {
	return &Runner{
		persistence: p,
		scheduler:   s,
		stats:       aggregator,
		publisher:   publisher,
		tolerance:   DefaultTolerance,
		logger:      logger.With("module", "batch"),
	}
}

// SetTolerance overrides the recurring fire tolerance.
func (r *Runner) SetTolerance(tolerance time.Duration) {
	r.tolerance = tolerance
}

// RunScheduled fires every due one-shot campaign: the whole audience is
// enqueued and the campaign transitions to COMPLETED. The transition makes
// the fire exactly-once; a crashed run resumes where the enqueue refusals
// left off.
func (r *Runner) RunScheduled(ctx context.Context, now time.Time) error {
	campaigns, err := r.persistence.Campaigns().DueScheduledCampaigns(ctx, now)
	if err != nil {
		return fmt.Errorf("failed to find due scheduled campaigns: %w", err)
	}

	for _, campaign := range campaigns {
		logger := r.logger.With("campaign_id", campaign.ID, "tenant_id", campaign.TenantID)
		logger.InfoContext(ctx, "firing scheduled campaign")

		triggerData := map[string]any{"fired_at": now.UTC().Format(time.RFC3339)}

		started, err := r.startForAudience(ctx, logger, campaign, now, triggerData, false)
		if err != nil {
			return err
		}

		err = r.persistence.Campaigns().MarkCompleted(ctx, campaign.ID, now)
		if err != nil {
			return fmt.Errorf("failed to complete campaign %s: %w", campaign.ID, err)
		}

		r.publishCompleted(ctx, logger, campaign, now)

		logger.InfoContext(ctx, "scheduled campaign fired", "recipients_started", started)
	}

	return nil
}

// RunRecurring fires every recurring campaign whose rule is due within the
// tolerance window. A recipient already started in the current calendar
// period is skipped, so a late or repeated run never double-fires.
func (r *Runner) RunRecurring(ctx context.Context, now time.Time) error {
	campaigns, err := r.persistence.Campaigns().ActiveRecurringCampaigns(ctx)
	if err != nil {
		return fmt.Errorf("failed to find recurring campaigns: %w", err)
	}

	for _, campaign := range campaigns {
		logger := r.logger.With("campaign_id", campaign.ID, "tenant_id", campaign.TenantID)

		recurrence := campaign.Trigger.Recurrence
		if recurrence == nil {
			logger.WarnContext(ctx, "recurring campaign has no recurrence rule")

			continue
		}

		due, err := recurrence.DueWithin(now, r.tolerance)
		if err != nil {
			logger.ErrorContext(ctx, "failed to evaluate recurrence rule", "error", err)

			continue
		}

		if !due {
			continue
		}

		logger.InfoContext(ctx, "firing recurring campaign")

		triggerData := map[string]any{"fired_at": now.UTC().Format(time.RFC3339)}

		started, err := r.startForAudience(ctx, logger, campaign, now, triggerData, true)
		if err != nil {
			return err
		}

		logger.InfoContext(ctx, "recurring campaign fired", "recipients_started", started)
	}

	return nil
}

// startForAudience enqueues the campaign's entry action for every matching
// recipient. Returns how many recipients were actually started.
func (r *Runner) startForAudience(
	ctx context.Context,
	logger *slog.Logger,
	campaign *models.Campaign,
	now time.Time,
	triggerData map[string]any,
	dedupePeriod bool,
) (int, error) {
	entry := campaign.FirstStep()
	if entry == nil {
		logger.WarnContext(ctx, "campaign has no steps")

		return 0, nil
	}

	recipients, err := r.persistence.Recipients().RecipientsByTenant(ctx, campaign.TenantID)
	if err != nil {
		return 0, fmt.Errorf("failed to load audience for campaign %s: %w", campaign.ID, err)
	}

	started := 0

	for _, recipient := range recipients {
		if !audience.Matches(recipient, campaign.Include, campaign.Exclude) {
			continue
		}

		if dedupePeriod {
			skip, err := r.firedThisPeriod(ctx, campaign, recipient.ID, now)
			if err != nil {
				return started, err
			}

			if skip {
				continue
			}
		}

		target, dueAt, advisory := models.PlanAdvance(campaign, entry, now, triggerData)
		if advisory != nil {
			logger.WarnContext(ctx, "wait resolution degraded", "recipient_id", recipient.ID, "error", advisory)
		}

		if target == nil {
			continue
		}

		action := &models.PendingAction{
			CampaignID:  campaign.ID,
			StepID:      target.ID,
			TenantID:    campaign.TenantID,
			RecipientID: recipient.ID,
			DueAt:       dueAt,
			TriggerData: triggerData,
		}

		err = r.scheduler.Enqueue(ctx, action)
		if err != nil {
			if errors.Is(err, scheduler.ErrAlreadyPending) {
				continue
			}

			return started, fmt.Errorf("failed to enqueue action for campaign %s: %w", campaign.ID, err)
		}

		err = r.stats.Increment(ctx, campaign.ID, stats.CounterRecipients, 1)
		if err != nil {
			logger.ErrorContext(ctx, "failed to increment recipients counter", "error", err)
		}

		r.publishEnqueued(ctx, logger, campaign, action)

		started++
	}

	return started, nil
}

// firedThisPeriod reports whether the recipient already entered the
// campaign in the current calendar period of its recurrence rule.
func (r *Runner) firedThisPeriod(ctx context.Context, campaign *models.Campaign, recipientID string, now time.Time) (bool, error) {
	last, err := r.scheduler.LastEnqueuedAt(ctx, campaign.ID, recipientID)
	if err != nil {
		return false, fmt.Errorf("failed to check last enqueue for campaign %s: %w", campaign.ID, err)
	}

	if last == nil {
		return false, nil
	}

	return campaign.Trigger.Recurrence.SamePeriod(*last, now), nil
}

func (r *Runner) publishEnqueued(ctx context.Context, logger *slog.Logger, campaign *models.Campaign, action *models.PendingAction) {
	if r.publisher == nil {
		return
	}

	event := engineevents.ActionEnqueued{
		BaseEvent:   engineevents.NewBaseEvent(engineevents.ActionEnqueuedEvent, campaign.TenantID, campaign.ID),
		ActionID:    action.ID,
		StepID:      action.StepID,
		RecipientID: action.RecipientID,
		DueAt:       action.DueAt,
	}

	err := r.publisher.Publish(ctx, campaign.ID, event)
	if err != nil {
		logger.ErrorContext(ctx, "failed to publish action enqueued event", "error", err)
	}
}

func (r *Runner) publishCompleted(ctx context.Context, logger *slog.Logger, campaign *models.Campaign, at time.Time) {
	if r.publisher == nil {
		return
	}

	event := engineevents.CampaignCompleted{
		BaseEvent:   engineevents.NewBaseEvent(engineevents.CampaignCompletedEvent, campaign.TenantID, campaign.ID),
		CompletedAt: at,
	}

	err := r.publisher.Publish(ctx, campaign.ID, event)
	if err != nil {
		logger.ErrorContext(ctx, "failed to publish campaign completed event", "error", err)
	}
}
