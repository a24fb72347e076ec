package sender

import (
	"context"
	"sync"

	"github.com/careloop/outreach/pkg/models"
)

// SentMessage records one Send call observed by a Mock.
type SentMessage struct {
	TenantID      string
	RecipientID   string
	Channel       models.Channel
	Content       string
	CorrelationID string
}

// Mock is a recording Sender for tests and local development. It is safe
// for concurrent use.
type Mock struct {
	mu sync.Mutex

	// Next controls the result of subsequent Send calls.
	Next Result

	sent []SentMessage
}

// NewMock returns a Mock that reports success with a fixed external id.
func NewMock() *Mock {
	return &Mock{Next: Result{Success: true, ExternalID: "mock-msg-1"}}
}

// Send records the call and returns the configured result.
func (m *Mock) Send(_ context.Context, tenantID, recipientID string, channel models.Channel, content, correlationID string) (Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sent = append(m.sent, SentMessage{
		TenantID:      tenantID,
		RecipientID:   recipientID,
		Channel:       channel,
		Content:       content,
		CorrelationID: correlationID,
	})

	return m.Next, nil
}

// Sent returns a copy of the recorded calls.
func (m *Mock) Sent() []SentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]SentMessage, len(m.sent))
	copy(out, m.sent)

	return out
}
