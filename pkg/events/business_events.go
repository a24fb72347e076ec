package events

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrInvalidBusinessEvent is returned when an inbound event is missing
// required fields.
var ErrInvalidBusinessEvent = errors.New("invalid business event")

// BusinessEvent is an inbound clinic occurrence consumed by the router.
// Events are published by the tenant's systems (booking, billing, EHR
// integrations) and matched against event-triggered campaigns by name.
type BusinessEvent struct {
	// ID identifies this delivery. Routing does not depend on it; it
	// exists for correlation in logs and API responses.
	ID string `json:"id"`

	// EventName is the trigger match key, e.g. "appointment.booked".
	EventName string `json:"event_name" validate:"required"`

	// TenantID scopes the event; only campaigns of this tenant can match.
	TenantID string `json:"tenant_id" validate:"required"`

	// RecipientID is the patient this event is about.
	RecipientID string `json:"recipient_id" validate:"required"`

	// Timestamp is when the occurrence happened in the source system.
	Timestamp time.Time `json:"timestamp"`

	// Payload is arbitrary event data. It is validated against the
	// campaign's payload schema when one is configured, and becomes the
	// trigger data of started workflows.
	Payload map[string]any `json:"payload"`
}

// NewBusinessEvent creates a business event stamped with an id and the
// current time.
func NewBusinessEvent(eventName, tenantID, recipientID string, payload map[string]any) *BusinessEvent {
	if payload == nil {
		payload = make(map[string]any)
	}

	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}

	return &BusinessEvent{
		ID:          id.String(),
		EventName:   eventName,
		TenantID:    tenantID,
		RecipientID: recipientID,
		Timestamp:   time.Now().UTC(),
		Payload:     payload,
	}
}

// Validate checks the event carries the fields routing depends on.
func (e *BusinessEvent) Validate() error {
	if e.EventName == "" {
		return errors.Join(ErrInvalidBusinessEvent, errors.New("event_name is required"))
	}

	if e.TenantID == "" {
		return errors.Join(ErrInvalidBusinessEvent, errors.New("tenant_id is required"))
	}

	if e.RecipientID == "" {
		return errors.Join(ErrInvalidBusinessEvent, errors.New("recipient_id is required"))
	}

	return nil
}

// PayloadString safely extracts a string value from the payload.
func (e *BusinessEvent) PayloadString(key string) (string, bool) {
	value, exists := e.Payload[key]
	if !exists {
		return "", false
	}

	str, ok := value.(string)

	return str, ok
}
