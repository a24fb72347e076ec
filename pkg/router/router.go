// Package router matches inbound business events against active campaigns
// and starts workflows for eligible recipients.
package router

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/xeipuuv/gojsonschema"

	"github.com/careloop/outreach/pkg/audience"
	"github.com/careloop/outreach/pkg/eventbus"
	engineevents "github.com/careloop/outreach/pkg/events"
	"github.com/careloop/outreach/pkg/models"
	"github.com/careloop/outreach/pkg/persistence"
	"github.com/careloop/outreach/pkg/scheduler"
	"github.com/careloop/outreach/pkg/stats"
)

// Router routes one business event to zero or more campaign starts. Routing
// is idempotent: redelivered events find the PENDING action of the first
// delivery and are refused by the scheduler.
type Router struct {
	persistence persistence.Persistence
	scheduler   scheduler.Scheduler
	stats       stats.Aggregator
	publisher   eventbus.EventPublisher
	logger      *slog.Logger
}

// New creates a router. The publisher may be nil when engine event
// notifications are not wanted.
func New(
	p persistence.Persistence,
	s scheduler.Scheduler,
	aggregator stats.Aggregator,
	publisher eventbus.EventPublisher,
	logger *slog.Logger,
) *Router {
	return &Router{
		persistence: p,
		scheduler:   s,
		stats:       aggregator,
		publisher:   publisher,
		logger:      logger.With("module", "router"),
	}
}

// Route matches the event against the tenant's active event campaigns and
// enqueues the first action of each eligible one. Per-campaign refusals
// (audience mismatch, schema failure, existing pending action) are logged
// and skipped; only infrastructure failures return an error, so the bus
// redelivers.
func (r *Router) Route(ctx context.Context, event *engineevents.BusinessEvent) error {
	err := event.Validate()
	if err != nil {
		r.logger.WarnContext(ctx, "dropping invalid business event", "error", err)

		return nil
	}

	logger := r.logger.With(
		"tenant_id", event.TenantID,
		"event_name", event.EventName,
		"recipient_id", event.RecipientID,
	)

	campaigns, err := r.persistence.Campaigns().ActiveEventCampaigns(ctx, event.TenantID, event.EventName)
	if err != nil {
		return fmt.Errorf("failed to find matching campaigns: %w", err)
	}

	if len(campaigns) == 0 {
		logger.DebugContext(ctx, "no campaigns match event")

		return nil
	}

	recipient, err := r.persistence.Recipients().RecipientByID(ctx, event.TenantID, event.RecipientID)
	if err != nil {
		if errors.Is(err, persistence.ErrRecipientNotFound) {
			logger.WarnContext(ctx, "dropping event for unknown recipient")

			return nil
		}

		return fmt.Errorf("failed to load recipient: %w", err)
	}

	for _, campaign := range campaigns {
		err := r.routeToCampaign(ctx, logger, campaign, recipient, event)
		if err != nil {
			return err
		}
	}

	return nil
}

func (r *Router) routeToCampaign(
	ctx context.Context,
	logger *slog.Logger,
	campaign *models.Campaign,
	recipient *models.Recipient,
	event *engineevents.BusinessEvent,
) error {
	logger = logger.With("campaign_id", campaign.ID)

	if campaign.Trigger.PayloadSchema != nil {
		err := validatePayload(event.Payload, campaign.Trigger.PayloadSchema)
		if err != nil {
			logger.WarnContext(ctx, "event payload failed schema validation", "error", err)

			return nil
		}
	}

	if !audience.Matches(recipient, campaign.Include, campaign.Exclude) {
		logger.DebugContext(ctx, "recipient outside campaign audience")

		return nil
	}

	entry := campaign.FirstStep()
	if entry == nil {
		logger.WarnContext(ctx, "campaign has no steps")

		return nil
	}

	now := time.Now().UTC()

	target, dueAt, advisory := models.PlanAdvance(campaign, entry, now, event.Payload)
	if advisory != nil {
		logger.WarnContext(ctx, "wait resolution degraded", "error", advisory)
	}

	if target == nil {
		logger.WarnContext(ctx, "campaign entry resolves to no runnable step")

		return nil
	}

	action := &models.PendingAction{
		CampaignID:  campaign.ID,
		StepID:      target.ID,
		TenantID:    campaign.TenantID,
		RecipientID: recipient.ID,
		DueAt:       dueAt,
		TriggerData: event.Payload,
	}

	err := r.scheduler.Enqueue(ctx, action)
	if err != nil {
		if errors.Is(err, scheduler.ErrAlreadyPending) {
			logger.DebugContext(ctx, "recipient already has a pending action, refusing duplicate")

			return nil
		}

		return fmt.Errorf("failed to enqueue action for campaign %s: %w", campaign.ID, err)
	}

	err = r.stats.Increment(ctx, campaign.ID, stats.CounterRecipients, 1)
	if err != nil {
		logger.ErrorContext(ctx, "failed to increment recipients counter", "error", err)
	}

	r.publishEnqueued(ctx, logger, campaign, action)

	logger.InfoContext(ctx, "workflow started",
		"action_id", action.ID,
		"step_id", target.ID,
		"due_at", dueAt)

	return nil
}

func (r *Router) publishEnqueued(ctx context.Context, logger *slog.Logger, campaign *models.Campaign, action *models.PendingAction) {
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

// validatePayload checks the event payload against the campaign's JSON
// schema.
func validatePayload(payload map[string]any, schema map[string]any) error {
	schemaLoader := gojsonschema.NewGoLoader(schema)
	dataLoader := gojsonschema.NewGoLoader(payload)

	result, err := gojsonschema.Validate(schemaLoader, dataLoader)
	if err != nil {
		return err
	}

	if !result.Valid() {
		details := make([]string, 0, len(result.Errors()))
		for _, resultError := range result.Errors() {
			details = append(details, resultError.String())
		}

		return fmt.Errorf("payload schema validation failed: %s", strings.Join(details, "; "))
	}

	return nil
}
