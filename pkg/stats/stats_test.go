package stats_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/careloop/outreach/pkg/stats"
)

func TestMemoryAggregator_IncrementAndSnapshot(t *testing.T) {
	a := stats.NewMemoryAggregator()
	ctx := context.Background()

	require.NoError(t, a.Increment(ctx, "c-1", stats.CounterRecipients, 1))
	require.NoError(t, a.Increment(ctx, "c-1", stats.CounterSent, 1))
	require.NoError(t, a.Increment(ctx, "c-1", stats.CounterSent, 1))
	require.NoError(t, a.Increment(ctx, "c-1", stats.CounterFailed, 1))
	require.NoError(t, a.Increment(ctx, "c-2", stats.CounterSent, 5))

	snapshot, err := a.Snapshot(ctx, "c-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), snapshot.Recipients)
	assert.Equal(t, int64(2), snapshot.Sent)
	assert.Equal(t, int64(0), snapshot.Delivered)
	assert.Equal(t, int64(1), snapshot.Failed)

	other, err := a.Snapshot(ctx, "c-2")
	require.NoError(t, err)
	assert.Equal(t, int64(5), other.Sent)
}

func TestMemoryAggregator_UnknownCampaignIsZero(t *testing.T) {
	a := stats.NewMemoryAggregator()

	snapshot, err := a.Snapshot(context.Background(), "missing")
	require.NoError(t, err)
	assert.Equal(t, stats.Snapshot{}, snapshot)
}

func TestMemoryAggregator_ConcurrentIncrements(t *testing.T) {
	a := stats.NewMemoryAggregator()
	ctx := context.Background()

	const workers = 20

	var wg sync.WaitGroup

	for range workers {
		wg.Add(1)

		go func() {
			defer wg.Done()

			for range 10 {
				require.NoError(t, a.Increment(ctx, "c-1", stats.CounterSent, 1))
			}
		}()
	}

	wg.Wait()

	snapshot, err := a.Snapshot(ctx, "c-1")
	require.NoError(t, err)
	assert.Equal(t, int64(workers*10), snapshot.Sent)
}
