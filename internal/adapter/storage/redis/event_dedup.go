package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// EventDedupCache implements ports.EventDedupCache using Redis SET NX.
// It is a fast-path filter in front of the durable processed_events table:
// a Redis flush only costs the shortcut, never correctness.
type EventDedupCache struct {
	client *goredis.Client
	prefix string
}

// NewEventDedupCache creates a new Redis-backed event dedup cache.
func NewEventDedupCache(client *goredis.Client) *EventDedupCache {
	return &EventDedupCache{
		client: client,
		prefix: "webhook:event:",
	}
}

// MarkSeen atomically records the event ID if it is new.
// Returns true if the event was not seen before, false on a replay.
func (c *EventDedupCache) MarkSeen(ctx context.Context, eventID string, ttl time.Duration) (bool, error) {
	key := c.prefix + eventID
	result, err := c.client.SetArgs(ctx, key, 1, goredis.SetArgs{
		Mode: "NX",
		TTL:  ttl,
	}).Result()
	if err != nil {
		if err == goredis.Nil {
			// Key already exists, the event was already delivered
			return false, nil
		}
		return false, fmt.Errorf("redis event dedup: %w", err)
	}
	return result == "OK", nil
}
