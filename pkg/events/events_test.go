package events_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/careloop/outreach/pkg/events"
)

func TestNewBusinessEvent_Defaults(t *testing.T) {
	event := events.NewBusinessEvent("appointment.booked", "clinic-1", "rcpt-1", nil)

	assert.NotEmpty(t, event.ID)
	assert.NotNil(t, event.Payload)
	assert.False(t, event.Timestamp.IsZero())
	require.NoError(t, event.Validate())
}

func TestBusinessEvent_Validate(t *testing.T) {
	tests := []struct {
		name  string
		event *events.BusinessEvent
		valid bool
	}{
		{
			name:  "complete event",
			event: events.NewBusinessEvent("appointment.booked", "clinic-1", "rcpt-1", map[string]any{"k": "v"}),
			valid: true,
		},
		{
			name:  "missing event name",
			event: events.NewBusinessEvent("", "clinic-1", "rcpt-1", nil),
			valid: false,
		},
		{
			name:  "missing tenant",
			event: events.NewBusinessEvent("appointment.booked", "", "rcpt-1", nil),
			valid: false,
		},
		{
			name:  "missing recipient",
			event: events.NewBusinessEvent("appointment.booked", "clinic-1", "", nil),
			valid: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.event.Validate()
			if tt.valid {
				require.NoError(t, err)
			} else {
				require.ErrorIs(t, err, events.ErrInvalidBusinessEvent)
			}
		})
	}
}

func TestBusinessEvent_PayloadString(t *testing.T) {
	event := events.NewBusinessEvent("appointment.booked", "clinic-1", "rcpt-1", map[string]any{
		"appointment_id": "appt-1",
		"count":          3,
	})

	v, ok := event.PayloadString("appointment_id")
	assert.True(t, ok)
	assert.Equal(t, "appt-1", v)

	_, ok = event.PayloadString("count")
	assert.False(t, ok)

	_, ok = event.PayloadString("missing")
	assert.False(t, ok)
}

func TestNewBaseEvent(t *testing.T) {
	base := events.NewBaseEvent(events.ActionEnqueuedEvent, "clinic-1", "c-1")

	assert.NotEmpty(t, base.ID)
	assert.Equal(t, events.ActionEnqueuedEvent, base.Type)
	assert.Equal(t, "clinic-1", base.TenantID)
	assert.Equal(t, "c-1", base.CampaignID)
	assert.False(t, base.Timestamp.IsZero())
}
