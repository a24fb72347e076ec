// Package events defines the wire events the engine consumes and emits.
package events

import (
	"time"

	"github.com/google/uuid"
)

type EventType string

// Kafka topics.
const BusinessEventTopic = "outreach.business.events" // Inbound clinic events consumed by the router
const EngineEventTopic = "outreach.engine.events"     // Outbound engine lifecycle notifications

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	ActionEnqueuedEvent    EventType = "action.enqueued"
	ActionResolvedEvent    EventType = "action.resolved"
	CampaignCompletedEvent EventType = "campaign.completed"
)

// BaseEvent carries the fields shared by every engine event.
type BaseEvent struct {
	ID         string    `json:"id"`
	Type       EventType `json:"type"`
	Timestamp  time.Time `json:"timestamp"`
	TenantID   string    `json:"tenant_id"`
	CampaignID string    `json:"campaign_id"`
}

// NewBaseEvent fills in identity and timestamp for an engine event.
func NewBaseEvent(eventType EventType, tenantID, campaignID string) BaseEvent {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}

	return BaseEvent{
		ID:         id.String(),
		Type:       eventType,
		Timestamp:  time.Now().UTC(),
		TenantID:   tenantID,
		CampaignID: campaignID,
	}
}

// ActionEnqueued is emitted when a recipient enters a campaign or advances
// to a new step.
type ActionEnqueued struct {
	BaseEvent

	ActionID    string    `json:"action_id"`
	StepID      string    `json:"step_id"`
	RecipientID string    `json:"recipient_id"`
	DueAt       time.Time `json:"due_at"`
}

func (e ActionEnqueued) GetType() EventType {
	return ActionEnqueuedEvent
}

// ActionResolved is emitted when a pending action reaches a terminal status.
type ActionResolved struct {
	BaseEvent

	ActionID    string `json:"action_id"`
	StepID      string `json:"step_id"`
	RecipientID string `json:"recipient_id"`
	Status      string `json:"status"`
	Reason      string `json:"reason,omitempty"`
	ErrorCode   string `json:"error_code,omitempty"`
}

func (e ActionResolved) GetType() EventType {
	return ActionResolvedEvent
}

// CampaignCompleted is emitted when a scheduled campaign fires and
// transitions to COMPLETED.
type CampaignCompleted struct {
	BaseEvent

	CompletedAt time.Time `json:"completed_at"`
}

func (e CampaignCompleted) GetType() EventType {
	return CampaignCompletedEvent
}
