package models

import (
	"errors"
	"fmt"
	"time"
)

// StepKind identifies the closed set of workflow step variants. Dispatch on
// step kind is exhaustive; adding a kind means updating every switch.
type StepKind string

const (
	StepKindSend      StepKind = "send"      // Deliver a message over a channel
	StepKindWait      StepKind = "wait"      // Defer the successor step
	StepKindCondition StepKind = "condition" // Continue only if a predicate holds
	StepKindBranch    StepKind = "branch"    // Route to the first matching target
)

// BranchRule is one (predicate, target) pair of a branch step, evaluated in
// declaration order.
type BranchRule struct {
	Predicate Predicate `json:"predicate"`
	TargetID  string    `json:"target_id" validate:"required"`
}

// Step is one unit of work in a campaign graph. Kind selects which of the
// variant fields are meaningful; the rest are zero.
type Step struct {
	ID         string   `json:"id"`
	CampaignID string   `json:"campaign_id"`
	Position   int      `json:"position"`
	Kind       StepKind `json:"kind" validate:"required,oneof=send wait condition branch"`

	// Send fields.
	Channel     Channel `json:"channel,omitempty"`
	TemplateRef string  `json:"template_ref,omitempty"`

	// Wait fields: a fixed duration or a deferred expression such as
	// "2 days before appointment_date". Expression wins when both are set.
	WaitDuration   time.Duration `json:"wait_duration,omitempty"`
	WaitExpression string        `json:"wait_expression,omitempty"`

	// Condition field.
	Predicate *Predicate `json:"predicate,omitempty"`

	// Branch fields.
	Branches []BranchRule `json:"branches,omitempty"`

	// NextStepID is the default successor. Nil terminates the workflow.
	NextStepID *string `json:"next_step_id,omitempty"`
}

// ErrInvalidStep is returned when step validation fails.
var ErrInvalidStep = errors.New("invalid step configuration")

// Validate checks kind-specific required fields.
func (s *Step) Validate() error {
	if s.ID == "" {
		return ErrInvalidStep
	}

	switch s.Kind {
	case StepKindSend:
		if !s.Channel.Valid() {
			return fmt.Errorf("%w: send step %s has invalid channel %q", ErrInvalidStep, s.ID, s.Channel)
		}

		if s.TemplateRef == "" {
			return fmt.Errorf("%w: send step %s has no template reference", ErrInvalidStep, s.ID)
		}
	case StepKindWait:
		if s.WaitDuration <= 0 && s.WaitExpression == "" {
			return fmt.Errorf("%w: wait step %s has neither duration nor expression", ErrInvalidStep, s.ID)
		}
	case StepKindCondition:
		if s.Predicate == nil {
			return fmt.Errorf("%w: condition step %s has no predicate", ErrInvalidStep, s.ID)
		}
	case StepKindBranch:
		for i, rule := range s.Branches {
			if rule.TargetID == "" {
				return fmt.Errorf("%w: branch step %s rule %d has no target", ErrInvalidStep, s.ID, i)
			}
		}
	default:
		return fmt.Errorf("%w: unknown step kind %q", ErrInvalidStep, s.Kind)
	}

	return nil
}
