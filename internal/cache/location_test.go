package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atinyakov/CovertKeeper/internal/models"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *RedisLocationCache) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, NewRedisLocationCache(client, time.Minute)
}

func TestRedisLocationCache_RoundTrip(t *testing.T) {
	mr, c := setupTestRedis(t)
	ctx := context.Background()

	_, err := c.Get(ctx, "dev1")
	assert.ErrorIs(t, err, ErrMiss)

	loc := models.ResolvedLocation{
		DisplayAddress:  "Main St, Springfield",
		DetailedAddress: "123, Main St, Springfield, IL, 62701",
		Available:       true,
		ResolvedAt:      time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, c.Set(ctx, "dev1", loc))

	got, err := c.Get(ctx, "dev1")
	require.NoError(t, err)
	assert.Equal(t, loc.DetailedAddress, got.DetailedAddress)
	assert.True(t, got.ResolvedAt.Equal(loc.ResolvedAt))

	assert.True(t, mr.Exists("covert:location:dev1"))
	assert.Equal(t, time.Minute, mr.TTL("covert:location:dev1"))

	mr.FastForward(2 * time.Minute)
	_, err = c.Get(ctx, "dev1")
	assert.ErrorIs(t, err, ErrMiss)
}

func TestRedisLocationCache_LastWriteWins(t *testing.T) {
	_, c := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "dev1", models.ResolvedLocation{DisplayAddress: "old"}))
	require.NoError(t, c.Set(ctx, "dev1", models.ResolvedLocation{DisplayAddress: "new"}))

	got, err := c.Get(ctx, "dev1")
	require.NoError(t, err)
	assert.Equal(t, "new", got.DisplayAddress)
}

func TestRedisLocationCache_ServerDown(t *testing.T) {
	mr, c := setupTestRedis(t)
	mr.Close()

	_, err := c.Get(context.Background(), "dev1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrMiss)
}

func TestMemoryLocationCache_Expiry(t *testing.T) {
	c := NewMemoryLocationCache(5 * time.Minute)
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "dev1", models.ResolvedLocation{DisplayAddress: "here", ResolvedAt: now}))

	got, err := c.Get(ctx, "dev1")
	require.NoError(t, err)
	assert.Equal(t, "here", got.DisplayAddress)

	now = now.Add(6 * time.Minute)
	_, err = c.Get(ctx, "dev1")
	assert.ErrorIs(t, err, ErrMiss)
}
