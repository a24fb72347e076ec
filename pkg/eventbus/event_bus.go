// Package eventbus provides event-driven communication between the engine
// binaries.
package eventbus

import (
	"context"

	"github.com/careloop/outreach/pkg/events"
)

// Event is any engine lifecycle event.
type Event interface {
	GetType() events.EventType
}

// EventPublisher publishes engine events.
type EventPublisher interface {
	Publish(ctx context.Context, key string, event Event) error
}

// EventSubscriber dispatches engine events to registered handlers.
type EventSubscriber interface {
	Handle(eventType events.EventType, handler EventHandler) error
	Subscribe(ctx context.Context) error
}

// EventHandler processes one decoded engine event.
type EventHandler func(ctx context.Context, event any) error

// EventBus combines publishing and subscribing for engine events.
type EventBus interface {
	EventPublisher
	EventSubscriber
	Close() error
	GenerateID() string
}
