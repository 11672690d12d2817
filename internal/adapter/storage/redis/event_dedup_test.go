package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventDedupCache_MarkSeen_NewEvent(t *testing.T) {
	s := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: s.Addr()})
	cache := NewEventDedupCache(client)
	ctx := context.Background()

	ok, err := cache.MarkSeen(ctx, "evt_abc", 24*time.Hour)
	require.NoError(t, err)
	assert.True(t, ok, "first delivery should return true")
}

func TestEventDedupCache_MarkSeen_Replay(t *testing.T) {
	s := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: s.Addr()})
	cache := NewEventDedupCache(client)
	ctx := context.Background()

	// First delivery
	ok, err := cache.MarkSeen(ctx, "evt_xyz", 24*time.Hour)
	require.NoError(t, err)
	assert.True(t, ok)

	// Replay
	ok, err = cache.MarkSeen(ctx, "evt_xyz", 24*time.Hour)
	require.NoError(t, err)
	assert.False(t, ok, "replayed event should return false")
}

func TestEventDedupCache_MarkSeen_DifferentEvents(t *testing.T) {
	s := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: s.Addr()})
	cache := NewEventDedupCache(client)
	ctx := context.Background()

	ok1, err := cache.MarkSeen(ctx, "evt_1", 24*time.Hour)
	require.NoError(t, err)
	assert.True(t, ok1)

	ok2, err := cache.MarkSeen(ctx, "evt_2", 24*time.Hour)
	require.NoError(t, err)
	assert.True(t, ok2, "distinct events should not collide")
}

func TestEventDedupCache_MarkSeen_Expired(t *testing.T) {
	s := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: s.Addr()})
	cache := NewEventDedupCache(client)
	ctx := context.Background()

	ok, err := cache.MarkSeen(ctx, "evt_expire", 1*time.Second)
	require.NoError(t, err)
	assert.True(t, ok)

	// Fast-forward past TTL; the durable table still catches the replay.
	s.FastForward(2 * time.Second)

	ok, err = cache.MarkSeen(ctx, "evt_expire", 1*time.Second)
	require.NoError(t, err)
	assert.True(t, ok, "cache forgets after TTL")
}
