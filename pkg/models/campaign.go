// Package models defines the core domain models for campaign execution.
package models

import (
	"errors"
	"fmt"
	"time"
)

// CampaignStatus represents the lifecycle state of a campaign.
type CampaignStatus string

const (
	CampaignStatusDraft     CampaignStatus = "draft"     // Editable, never executed
	CampaignStatusActive    CampaignStatus = "active"    // Eligible for triggering and processing
	CampaignStatusPaused    CampaignStatus = "paused"    // Temporarily stopped, claimed actions are cancelled
	CampaignStatusCompleted CampaignStatus = "completed" // Terminal, set once for scheduled campaigns
)

// TriggerKind identifies how a campaign starts.
type TriggerKind string

const (
	TriggerKindEvent     TriggerKind = "event"     // Started by a business event
	TriggerKindScheduled TriggerKind = "scheduled" // Fires once at a fixed time
	TriggerKindRecurring TriggerKind = "recurring" // Fires on a recurrence rule
)

// Trigger describes the condition that starts a campaign for a recipient.
// Exactly one of the kind-specific fields is meaningful for a given Kind.
type Trigger struct {
	Kind TriggerKind `json:"kind" validate:"required,oneof=event scheduled recurring"`

	// EventName matches incoming business events (Kind == event).
	EventName string `json:"event_name,omitempty"`

	// PayloadSchema optionally validates the event payload (JSON Schema).
	// Events failing validation do not start the campaign.
	PayloadSchema map[string]any `json:"payload_schema,omitempty"`

	// FireAt is the single fire time (Kind == scheduled).
	FireAt *time.Time `json:"fire_at,omitempty"`

	// Recurrence is the recurrence rule (Kind == recurring).
	Recurrence *Recurrence `json:"recurrence,omitempty"`
}

// Campaign represents a declarative multi-step outreach workflow. Campaigns
// are authored elsewhere and are read-only to the engine, except for the
// single ACTIVE -> COMPLETED transition of scheduled campaigns.
type Campaign struct {
	ID          string           `json:"id"`
	TenantID    string           `json:"tenant_id"   validate:"required"`
	Name        string           `json:"name"        validate:"required,min=3"`
	Status      CampaignStatus   `json:"status"      validate:"required"`
	Trigger     Trigger          `json:"trigger"`
	Include     AudienceCriteria `json:"include"`
	Exclude     AudienceCriteria `json:"exclude"`
	Steps       []*Step          `json:"steps"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
	CompletedAt *time.Time       `json:"completed_at,omitempty"`
}

var (
	// ErrInvalidCampaign is returned when campaign validation fails.
	ErrInvalidCampaign = errors.New("invalid campaign configuration")

	// ErrNoSteps indicates a campaign with an empty step list was asked to start.
	ErrNoSteps = errors.New("campaign has no steps")
)

// FirstStep returns the entry step of the campaign graph, or nil when the
// campaign has no steps.
func (c *Campaign) FirstStep() *Step {
	if len(c.Steps) == 0 {
		return nil
	}

	first := c.Steps[0]
	for _, step := range c.Steps[1:] {
		if step.Position < first.Position {
			first = step
		}
	}

	return first
}

// StepByID looks up a step in the campaign graph.
func (c *Campaign) StepByID(id string) (*Step, bool) {
	for _, step := range c.Steps {
		if step.ID == id {
			return step, true
		}
	}

	return nil, false
}

// Validate checks the structural invariants the engine relies on: unique,
// totally ordered step positions, kind-specific step fields, and a trigger
// descriptor matching its kind.
func (c *Campaign) Validate() error {
	if c.ID == "" || c.TenantID == "" {
		return ErrInvalidCampaign
	}

	switch c.Trigger.Kind {
	case TriggerKindEvent:
		if c.Trigger.EventName == "" {
			return fmt.Errorf("%w: event trigger requires an event name", ErrInvalidCampaign)
		}
	case TriggerKindScheduled:
		if c.Trigger.FireAt == nil {
			return fmt.Errorf("%w: scheduled trigger requires fire_at", ErrInvalidCampaign)
		}
	case TriggerKindRecurring:
		if c.Trigger.Recurrence == nil {
			return fmt.Errorf("%w: recurring trigger requires a recurrence rule", ErrInvalidCampaign)
		}

		if err := c.Trigger.Recurrence.Validate(); err != nil {
			return err
		}
	default:
		return fmt.Errorf("%w: unknown trigger kind %q", ErrInvalidCampaign, c.Trigger.Kind)
	}

	positions := make(map[int]string, len(c.Steps))

	for _, step := range c.Steps {
		if other, dup := positions[step.Position]; dup {
			return fmt.Errorf("%w: steps %s and %s share position %d", ErrInvalidCampaign, other, step.ID, step.Position)
		}

		positions[step.Position] = step.ID

		if err := step.Validate(); err != nil {
			return err
		}

		if step.Kind == StepKindWait && step.NextStepID == nil {
			return fmt.Errorf("%w: wait step %s has no successor", ErrInvalidCampaign, step.ID)
		}
	}

	return nil
}
