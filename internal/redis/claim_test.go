package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMiniRedis(t *testing.T) (*Redis, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedis(client, time.Hour), mr
}

func TestRedisMarkAndSeen(t *testing.T) {
	ctx := context.Background()
	r, mr := newMiniRedis(t)

	seen, err := r.Seen(ctx, "1089250", "COMPLETE")
	require.NoError(t, err)
	assert.False(t, seen)

	require.NoError(t, r.Mark(ctx, "1089250", "COMPLETE"))

	seen, err = r.Seen(ctx, "1089250", "COMPLETE")
	require.NoError(t, err)
	assert.True(t, seen)

	seen, err = r.Seen(ctx, "1089250", "CANCELLED")
	require.NoError(t, err)
	assert.False(t, seen, "a different status is a different transition")

	assert.True(t, mr.Exists("ipn:1089250:COMPLETE"))
	assert.Equal(t, time.Hour, mr.TTL("ipn:1089250:COMPLETE"))
}

func TestRedisMarkIsIdempotent(t *testing.T) {
	ctx := context.Background()
	r, mr := newMiniRedis(t)

	require.NoError(t, r.Mark(ctx, "1", "COMPLETE"))
	require.NoError(t, r.Mark(ctx, "1", "COMPLETE"))

	assert.Len(t, mr.Keys(), 1)
}

func TestRedisMarkExpires(t *testing.T) {
	ctx := context.Background()
	r, mr := newMiniRedis(t)

	require.NoError(t, r.Mark(ctx, "1", "COMPLETE"))
	mr.FastForward(2 * time.Hour)

	seen, err := r.Seen(ctx, "1", "COMPLETE")
	require.NoError(t, err)
	assert.False(t, seen)
}

func TestRedisUnavailable(t *testing.T) {
	r, mr := newMiniRedis(t)
	mr.Close()

	_, err := r.Seen(context.Background(), "1", "COMPLETE")
	assert.Error(t, err)
	assert.Error(t, r.Mark(context.Background(), "1", "COMPLETE"))
	assert.Error(t, r.Ping(context.Background()))
}

func TestMemoryClaims(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC)
	m := NewMemoryClaims(time.Minute)
	m.now = func() time.Time { return now }

	seen, _ := m.Seen(ctx, "1", "COMPLETE")
	assert.False(t, seen)

	require.NoError(t, m.Mark(ctx, "1", "COMPLETE"))
	seen, _ = m.Seen(ctx, "1", "COMPLETE")
	assert.True(t, seen)

	now = now.Add(2 * time.Minute)
	seen, _ = m.Seen(ctx, "1", "COMPLETE")
	assert.False(t, seen, "expired markers are forgotten")
	assert.NoError(t, m.Ping(ctx))
}
