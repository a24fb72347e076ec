package eventbus

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/careloop/outreach/pkg/events"
)

// BusinessEventHandler is called for each inbound business event.
type BusinessEventHandler func(ctx context.Context, event *events.BusinessEvent) error

// BusinessEventPublisher publishes business events.
type BusinessEventPublisher interface {
	PublishBusinessEvent(ctx context.Context, event *events.BusinessEvent) error
}

// BusinessEventSubscriber subscribes to business events.
type BusinessEventSubscriber interface {
	HandleBusinessEvents(handler BusinessEventHandler)
	SubscribeToBusinessEvents(ctx context.Context) error
}

// BusinessEventBus combines publishing and subscribing for business events.
type BusinessEventBus interface {
	BusinessEventPublisher
	BusinessEventSubscriber
	Close() error
}

// watermillBusinessEventBus carries business events over any watermill
// channel.
type watermillBusinessEventBus struct {
	publisher  message.Publisher
	subscriber message.Subscriber
	handlers   []BusinessEventHandler
	logger     *slog.Logger
}

// NewBusinessEventBus creates a business event bus over the given channel.
func NewBusinessEventBus(pub message.Publisher, sub message.Subscriber, logger *slog.Logger) BusinessEventBus {
	return &watermillBusinessEventBus{
		publisher:  pub,
		subscriber: sub,
		handlers:   make([]BusinessEventHandler, 0),
		logger:     logger.With("module", "business-event-bus"),
	}
}

// PublishBusinessEvent validates and publishes a business event. The
// recipient is the partition key, so events of one patient stay ordered.
func (b *watermillBusinessEventBus) PublishBusinessEvent(ctx context.Context, event *events.BusinessEvent) error {
	err := event.Validate()
	if err != nil {
		return err
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.Metadata.Set(events.EventMetadataKey, event.TenantID+":"+event.RecipientID)
	msg.Metadata.Set("tenant_id", event.TenantID)
	msg.Metadata.Set("event_name", event.EventName)

	err = b.publisher.Publish(events.BusinessEventTopic, msg)
	if err != nil {
		b.logger.ErrorContext(ctx, "failed to publish business event", "event_name", event.EventName, "error", err)

		return err
	}

	b.logger.DebugContext(ctx, "published business event",
		"event_name", event.EventName,
		"tenant_id", event.TenantID,
		"recipient_id", event.RecipientID)

	return nil
}

// HandleBusinessEvents registers a handler for inbound business events.
func (b *watermillBusinessEventBus) HandleBusinessEvents(handler BusinessEventHandler) {
	b.handlers = append(b.handlers, handler)
}

// SubscribeToBusinessEvents starts consuming business events. Handler
// failures nack the message for redelivery; malformed events are acked and
// dropped after logging.
func (b *watermillBusinessEventBus) SubscribeToBusinessEvents(ctx context.Context) error {
	if len(b.handlers) == 0 {
		b.logger.WarnContext(ctx, "no handlers registered for business events")

		return nil
	}

	messages, err := b.subscriber.Subscribe(ctx, events.BusinessEventTopic)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			var event events.BusinessEvent

			err := json.Unmarshal(msg.Payload, &event)
			if err != nil {
				b.logger.Error("failed to unmarshal business event", "error", err)
				msg.Ack()

				continue
			}

			if err := event.Validate(); err != nil {
				b.logger.Error("dropping invalid business event", "error", err)
				msg.Ack()

				continue
			}

			failed := false

			for _, handler := range b.handlers {
				err := handler(ctx, &event)
				if err != nil {
					b.logger.Error("business event handler failed",
						"event_name", event.EventName,
						"tenant_id", event.TenantID,
						"error", err)

					failed = true

					break
				}
			}

			if failed {
				msg.Nack()

				continue
			}

			msg.Ack()
		}
	}()

	return nil
}

func (b *watermillBusinessEventBus) Close() error {
	err := b.publisher.Close()
	if err != nil {
		return err
	}

	return b.subscriber.Close()
}
