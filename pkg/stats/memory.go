package stats

import (
	"context"
	"sync"
)

// MemoryAggregator keeps counters in process memory. Safe for concurrent
// use; intended for tests and local development.
type MemoryAggregator struct {
	mu       sync.RWMutex
	counters map[string]map[Counter]int64
}

// NewMemoryAggregator creates an empty in-memory aggregator.
func NewMemoryAggregator() *MemoryAggregator {
	return &MemoryAggregator{
		counters: make(map[string]map[Counter]int64),
	}
}

// Increment adds delta to one counter of the campaign.
func (a *MemoryAggregator) Increment(ctx context.Context, campaignID string, counter Counter, delta int64) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.counters[campaignID] == nil {
		a.counters[campaignID] = make(map[Counter]int64)
	}

	a.counters[campaignID][counter] += delta

	return nil
}

// Snapshot reads all counters of the campaign.
func (a *MemoryAggregator) Snapshot(ctx context.Context, campaignID string) (Snapshot, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	counters := a.counters[campaignID]

	return Snapshot{
		Recipients: counters[CounterRecipients],
		Sent:       counters[CounterSent],
		Delivered:  counters[CounterDelivered],
		Failed:     counters[CounterFailed],
	}, nil
}

// HealthCheck always succeeds.
func (a *MemoryAggregator) HealthCheck(ctx context.Context) error {
	return nil
}

// Close releases all counters.
func (a *MemoryAggregator) Close(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.counters = make(map[string]map[Counter]int64)

	return nil
}
