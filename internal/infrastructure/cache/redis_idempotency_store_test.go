package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRedisStore(t *testing.T) (*RedisIdempotencyStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisIdempotencyStoreWithClient(client, ""), mr
}

func TestRedisIdempotencyStore_MarkProcessed(t *testing.T) {
	store, _ := setupRedisStore(t)
	ctx := context.Background()

	t.Run("first mark wins, second is a duplicate", func(t *testing.T) {
		first, err := store.MarkProcessed(ctx, "call:CA123", time.Hour)
		require.NoError(t, err)
		assert.True(t, first)

		second, err := store.MarkProcessed(ctx, "call:CA123", time.Hour)
		require.NoError(t, err)
		assert.False(t, second)
	})

	t.Run("distinct keys are independent", func(t *testing.T) {
		ok, err := store.MarkProcessed(ctx, "stripe:evt_1", time.Hour)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = store.MarkProcessed(ctx, "stripe:evt_2", time.Hour)
		require.NoError(t, err)
		assert.True(t, ok)
	})
}

func TestRedisIdempotencyStore_IsProcessed(t *testing.T) {
	store, _ := setupRedisStore(t)
	ctx := context.Background()

	processed, err := store.IsProcessed(ctx, "call:CA999")
	require.NoError(t, err)
	assert.False(t, processed)

	_, err = store.MarkProcessed(ctx, "call:CA999", time.Hour)
	require.NoError(t, err)

	processed, err = store.IsProcessed(ctx, "call:CA999")
	require.NoError(t, err)
	assert.True(t, processed)
}

func TestRedisIdempotencyStore_Release(t *testing.T) {
	store, _ := setupRedisStore(t)
	ctx := context.Background()

	first, err := store.MarkProcessed(ctx, "call:CA555", time.Hour)
	require.NoError(t, err)
	require.True(t, first)

	require.NoError(t, store.Release(ctx, "call:CA555"))

	// The claim is gone, so the same event can be processed again
	again, err := store.MarkProcessed(ctx, "call:CA555", time.Hour)
	require.NoError(t, err)
	assert.True(t, again)

	// Releasing an unknown event is a no-op
	assert.NoError(t, store.Release(ctx, "call:never-claimed"))
}

func TestRedisIdempotencyStore_TTLExpiry(t *testing.T) {
	store, mr := setupRedisStore(t)
	ctx := context.Background()

	_, err := store.MarkProcessed(ctx, "call:CA777", time.Minute)
	require.NoError(t, err)

	mr.FastForward(2 * time.Minute)

	processed, err := store.IsProcessed(ctx, "call:CA777")
	require.NoError(t, err)
	assert.False(t, processed)

	ok, err := store.MarkProcessed(ctx, "call:CA777", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}
