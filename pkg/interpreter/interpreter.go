// Package interpreter executes single campaign steps against an execution
// context. It owns the closed dispatch over step kinds; everything it
// touches beyond the step is injected at construction.
package interpreter

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/careloop/outreach/pkg/models"
	"github.com/careloop/outreach/pkg/sender"
	"github.com/careloop/outreach/pkg/template"
)

// TemplateSource resolves a step's template reference to raw content for a
// channel. An empty string means no content exists for that channel.
type TemplateSource interface {
	Content(ctx context.Context, tenantID, ref string, channel models.Channel) (string, error)
}

// Result is the interpreter's verdict on one step execution.
//
// Status carries double duty: SENT means "completed, advance if AdvanceTo is
// set" for every step kind, not only sends. The processor increments the
// sent counter for send steps only.
type Result struct {
	AdvanceTo  *string
	Status     models.ActionStatus
	Reason     string
	ErrorCode  string
	ExternalID string
}

// Interpreter executes steps. It holds no per-run state and is safe for
// concurrent use by many workers.
type Interpreter struct {
	sender    sender.Sender
	templates TemplateSource
	logger    *slog.Logger
}

// New creates an Interpreter.
func New(s sender.Sender, templates TemplateSource, logger *slog.Logger) *Interpreter {
	return &Interpreter{
		sender:    s,
		templates: templates,
		logger:    logger.With("module", "interpreter"),
	}
}

// Execute runs one step. Errors local to the recipient's run come back as
// SKIPPED or FAILED results; Execute itself only fails on programmer error.
func (i *Interpreter) Execute(ctx context.Context, step *models.Step, execCtx *models.ExecutionContext) Result {
	switch step.Kind {
	case models.StepKindSend:
		return i.executeSend(ctx, step, execCtx)
	case models.StepKindCondition:
		return i.executeCondition(ctx, step, execCtx)
	case models.StepKindBranch:
		return i.executeBranch(ctx, step, execCtx)
	case models.StepKindWait:
		// Waits are resolved at scheduling time; one reaching the
		// interpreter advances straight through.
		i.logger.WarnContext(ctx, "Wait step reached the interpreter, advancing",
			"campaign_id", execCtx.CampaignID, "step_id", step.ID)

		return Result{Status: models.ActionStatusSent, AdvanceTo: step.NextStepID}
	default:
		return Result{
			Status: models.ActionStatusSkipped,
			Reason: fmt.Sprintf("unknown step kind %q", step.Kind),
		}
	}
}

func (i *Interpreter) executeSend(ctx context.Context, step *models.Step, execCtx *models.ExecutionContext) Result {
	recipient := execCtx.Recipient()

	if !step.Channel.Valid() {
		return Result{
			Status: models.ActionStatusSkipped,
			Reason: fmt.Sprintf("step %s has invalid channel %q", step.ID, step.Channel),
		}
	}

	if !recipient.HasChannel(step.Channel) {
		return Result{
			Status: models.ActionStatusSkipped,
			Reason: fmt.Sprintf("recipient has no %s contact method", step.Channel),
		}
	}

	raw, err := i.templates.Content(ctx, execCtx.TenantID, step.TemplateRef, step.Channel)
	if err != nil {
		return Result{
			Status: models.ActionStatusSkipped,
			Reason: fmt.Sprintf("template %q lookup failed: %v", step.TemplateRef, err),
		}
	}

	if raw == "" {
		return Result{
			Status: models.ActionStatusSkipped,
			Reason: fmt.Sprintf("template %q has no content for channel %s", step.TemplateRef, step.Channel),
		}
	}

	content, err := template.RenderWithContext(raw, execCtx)
	if err != nil {
		return Result{
			Status: models.ActionStatusSkipped,
			Reason: fmt.Sprintf("template %q render failed: %v", step.TemplateRef, err),
		}
	}

	if content == "" {
		return Result{
			Status: models.ActionStatusSkipped,
			Reason: fmt.Sprintf("template %q rendered empty content for channel %s", step.TemplateRef, step.Channel),
		}
	}

	correlation := fmt.Sprintf("%s:%s:%s", execCtx.CampaignID, step.ID, execCtx.RecipientID)

	result, err := i.sender.Send(ctx, execCtx.TenantID, execCtx.RecipientID, step.Channel, content, correlation)
	if err != nil {
		return Result{
			Status:    models.ActionStatusFailed,
			ErrorCode: "transport_error",
			Reason:    err.Error(),
		}
	}

	if !result.Success {
		return Result{
			Status:    models.ActionStatusFailed,
			ErrorCode: result.ErrorCode,
			Reason:    result.ErrorMessage,
		}
	}

	return Result{
		Status:     models.ActionStatusSent,
		AdvanceTo:  step.NextStepID,
		ExternalID: result.ExternalID,
	}
}

// executeCondition gates the workflow on one predicate. A false predicate
// drops the recipient out of the funnel: skipped, no successor, no failure.
func (i *Interpreter) executeCondition(ctx context.Context, step *models.Step, execCtx *models.ExecutionContext) Result {
	ok, err := step.Predicate.Evaluate(execCtx.Variables())
	if err != nil {
		i.logger.WarnContext(ctx, "Condition predicate failed to evaluate",
			"campaign_id", execCtx.CampaignID, "step_id", step.ID, "error", err)

		return Result{
			Status: models.ActionStatusSkipped,
			Reason: fmt.Sprintf("condition evaluation failed: %v", err),
		}
	}

	if !ok {
		return Result{
			Status: models.ActionStatusSkipped,
			Reason: "condition not met",
		}
	}

	return Result{Status: models.ActionStatusSent, AdvanceTo: step.NextStepID}
}

// executeBranch routes to the first satisfied (predicate, target) pair, or
// to the default successor when none match. A rule whose predicate errors is
// treated as unsatisfied so one bad rule cannot strand the whole branch.
func (i *Interpreter) executeBranch(ctx context.Context, step *models.Step, execCtx *models.ExecutionContext) Result {
	vars := execCtx.Variables()

	for idx, rule := range step.Branches {
		ok, err := rule.Predicate.Evaluate(vars)
		if err != nil {
			i.logger.WarnContext(ctx, "Branch predicate failed to evaluate, treating as unmatched",
				"campaign_id", execCtx.CampaignID, "step_id", step.ID, "rule", idx, "error", err)

			continue
		}

		if ok {
			target := rule.TargetID

			return Result{Status: models.ActionStatusSent, AdvanceTo: &target}
		}
	}

	return Result{Status: models.ActionStatusSent, AdvanceTo: step.NextStepID}
}
