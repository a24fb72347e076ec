package eventbus_test

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/careloop/outreach/pkg/channels/gochannel"
	"github.com/careloop/outreach/pkg/eventbus"
	"github.com/careloop/outreach/pkg/events"
)

func newTestBus(t *testing.T) eventbus.EventBus {
	t.Helper()

	pub, sub, err := gochannel.CreateTestChannel(watermill.NopLogger{})
	require.NoError(t, err)

	return eventbus.NewWatermillEventBus(pub, sub)
}

func TestWatermillEventBus_PublishAndHandle(t *testing.T) {
	bus := newTestBus(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	received := make(chan *events.ActionResolved, 1)

	err := bus.Handle(events.ActionResolvedEvent, func(ctx context.Context, event any) error {
		resolved, ok := event.(*events.ActionResolved)
		require.True(t, ok)
		received <- resolved

		return nil
	})
	require.NoError(t, err)

	require.NoError(t, bus.Subscribe(ctx))

	sent := events.ActionResolved{
		BaseEvent:   events.NewBaseEvent(events.ActionResolvedEvent, "clinic-1", "c-1"),
		ActionID:    "a-1",
		StepID:      "s-1",
		RecipientID: "r-1",
		Status:      "sent",
	}
	require.NoError(t, bus.Publish(ctx, "c-1", sent))

	select {
	case got := <-received:
		assert.Equal(t, "a-1", got.ActionID)
		assert.Equal(t, "sent", got.Status)
		assert.Equal(t, "clinic-1", got.TenantID)
	case <-ctx.Done():
		t.Fatal("timed out waiting for event")
	}
}

func TestBusinessEventBus_RoundTrip(t *testing.T) {
	pub, sub, err := gochannel.CreateTestChannel(watermill.NopLogger{})
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	bus := eventbus.NewBusinessEventBus(pub, sub, logger)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	received := make(chan *events.BusinessEvent, 1)

	bus.HandleBusinessEvents(func(ctx context.Context, event *events.BusinessEvent) error {
		received <- event

		return nil
	})

	require.NoError(t, bus.SubscribeToBusinessEvents(ctx))

	event := events.NewBusinessEvent("appointment.booked", "clinic-1", "rcpt-1", map[string]any{
		"appointment_id": "appt-1",
	})
	require.NoError(t, bus.PublishBusinessEvent(ctx, event))

	select {
	case got := <-received:
		assert.Equal(t, "appointment.booked", got.EventName)
		assert.Equal(t, "appt-1", got.Payload["appointment_id"])
	case <-ctx.Done():
		t.Fatal("timed out waiting for business event")
	}
}

func TestBusinessEventBus_RejectsInvalidEvent(t *testing.T) {
	pub, sub, err := gochannel.CreateTestChannel(watermill.NopLogger{})
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	bus := eventbus.NewBusinessEventBus(pub, sub, logger)

	event := events.NewBusinessEvent("", "clinic-1", "rcpt-1", nil)
	err = bus.PublishBusinessEvent(context.Background(), event)
	require.ErrorIs(t, err, events.ErrInvalidBusinessEvent)
}
