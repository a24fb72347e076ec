package stats

import (
	"context"
	"fmt"
	"strconv"

	redis "github.com/redis/go-redis/v9"
)

// RedisAggregator keeps counters in a Redis hash per campaign. Increments
// use HINCRBY, so concurrent workers never lose updates.
type RedisAggregator struct {
	client redis.UniversalClient
}

// NewRedisAggregator connects to Redis using a URL such as
// redis://localhost:6379/0.
func NewRedisAggregator(ctx context.Context, redisURL string) (*RedisAggregator, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	err = client.Ping(ctx).Err()
	if err != nil {
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return &RedisAggregator{client: client}, nil
}

func statsKey(campaignID string) string {
	return "outreach:stats:" + campaignID
}

// Increment adds delta to one counter of the campaign.
func (a *RedisAggregator) Increment(ctx context.Context, campaignID string, counter Counter, delta int64) error {
	err := a.client.HIncrBy(ctx, statsKey(campaignID), string(counter), delta).Err()
	if err != nil {
		return fmt.Errorf("failed to increment %s for campaign %s: %w", counter, campaignID, err)
	}

	return nil
}

// Snapshot reads all counters of the campaign.
func (a *RedisAggregator) Snapshot(ctx context.Context, campaignID string) (Snapshot, error) {
	values, err := a.client.HGetAll(ctx, statsKey(campaignID)).Result()
	if err != nil {
		return Snapshot{}, fmt.Errorf("failed to read stats for campaign %s: %w", campaignID, err)
	}

	parse := func(counter Counter) int64 {
		v, err := strconv.ParseInt(values[string(counter)], 10, 64)
		if err != nil {
			return 0
		}

		return v
	}

	return Snapshot{
		Recipients: parse(CounterRecipients),
		Sent:       parse(CounterSent),
		Delivered:  parse(CounterDelivered),
		Failed:     parse(CounterFailed),
	}, nil
}

// HealthCheck verifies the Redis connection is healthy.
func (a *RedisAggregator) HealthCheck(ctx context.Context) error {
	err := a.client.Ping(ctx).Err()
	if err != nil {
		return fmt.Errorf("failed to ping redis: %w", err)
	}

	return nil
}

// Close closes the Redis connection.
func (a *RedisAggregator) Close(ctx context.Context) error {
	err := a.client.Close()
	if err != nil {
		return fmt.Errorf("failed to close redis connection: %w", err)
	}

	return nil
}
