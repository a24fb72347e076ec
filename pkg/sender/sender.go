// Package sender defines the message transport collaborator interface. The
// engine never talks to SMS/email/push gateways directly; it hands rendered
// content to a Sender and maps the result onto the action ledger.
package sender

import (
	"context"
	"fmt"

	"github.com/careloop/outreach/pkg/models"
)

// Result is the transport's verdict on one delivery attempt. ErrorCode and
// ErrorMessage are preserved verbatim on the action row for operators.
type Result struct {
	Success      bool
	ExternalID   string
	ErrorCode    string
	ErrorMessage string
}

// Sender delivers one rendered message. Implementations enforce their own
// timeouts and report failure through the Result rather than hanging.
type Sender interface {
	Send(ctx context.Context, tenantID, recipientID string, channel models.Channel, content, correlationID string) (Result, error)
}

// Dispatcher routes sends to the Sender registered for each channel. It is
// itself a Sender, so the interpreter only ever sees one interface.
type Dispatcher struct {
	senders map[models.Channel]Sender
}

// NewDispatcher creates an empty dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{senders: make(map[models.Channel]Sender)}
}

// Register wires a Sender for a channel, replacing any previous one.
func (d *Dispatcher) Register(channel models.Channel, s Sender) {
	d.senders[channel] = s
}

// Send dispatches to the channel's registered Sender. An unregistered
// channel is a configuration failure, reported through the Result so the
// processor records FAILED rather than crashing the worker loop.
func (d *Dispatcher) Send(ctx context.Context, tenantID, recipientID string, channel models.Channel, content, correlationID string) (Result, error) {
	s, ok := d.senders[channel]
	if !ok {
		return Result{
			Success:      false,
			ErrorCode:    "channel_unavailable",
			ErrorMessage: fmt.Sprintf("no sender registered for channel %q", channel),
		}, nil
	}

	return s.Send(ctx, tenantID, recipientID, channel, content, correlationID)
}
