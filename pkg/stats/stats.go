// Package stats aggregates per-campaign delivery counters. Counters are
// monotonic; the engine only ever adds.
package stats

import "context"

// Counter names one per-campaign statistic.
type Counter string

const (
	// CounterRecipients counts workflow starts, once per successful enqueue
	// of a campaign's first action.
	CounterRecipients Counter = "recipients"

	// CounterSent counts successful sends of message steps.
	CounterSent Counter = "sent"

	// CounterDelivered counts transport delivery confirmations.
	CounterDelivered Counter = "delivered"

	// CounterFailed counts failed sends.
	CounterFailed Counter = "failed"
)

// Snapshot is a point-in-time read of a campaign's counters.
type Snapshot struct {
	Recipients int64 `json:"recipients"`
	Sent       int64 `json:"sent"`
	Delivered  int64 `json:"delivered"`
	Failed     int64 `json:"failed"`
}

// Aggregator stores per-campaign counters.
type Aggregator interface {
	// Increment adds delta to one counter of the campaign.
	Increment(ctx context.Context, campaignID string, counter Counter, delta int64) error

	// Snapshot reads all counters of the campaign. Unknown campaigns
	// return a zero snapshot.
	Snapshot(ctx context.Context, campaignID string) (Snapshot, error)

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}
