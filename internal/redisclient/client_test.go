package redisclient

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func getClient(t *testing.T) *Client {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}

	rdb := redis.NewClient(&redis.Options{Addr: addr})
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available: %v", err)
	}
	t.Cleanup(func() { _ = rdb.Close() })
	return NewWithRedis(rdb)
}

func TestSoldCounter(t *testing.T) {
	c := getClient(t)
	ctx := context.Background()
	c.rdb.Del(ctx, soldKey(9001))

	sold, err := c.GetSold(ctx, 9001)
	require.NoError(t, err)
	assert.Zero(t, sold)

	require.NoError(t, c.SetSold(ctx, 9001, 5))
	require.NoError(t, c.IncrementSold(ctx, 9001, 2))

	sold, err = c.GetSold(ctx, 9001)
	require.NoError(t, err)
	assert.Equal(t, int64(7), sold)
}

func TestLockOwnership(t *testing.T) {
	c := getClient(t)
	ctx := context.Background()
	c.rdb.Del(ctx, "lock:test-sweep")

	token, err := c.AcquireLock(ctx, "test-sweep", time.Minute)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	other, err := c.AcquireLock(ctx, "test-sweep", time.Minute)
	require.NoError(t, err)
	assert.Empty(t, other, "lock must not be granted twice")

	require.NoError(t, c.ReleaseLock(ctx, "test-sweep", "not-the-owner"))
	exists, _ := c.rdb.Exists(ctx, "lock:test-sweep").Result()
	assert.Equal(t, int64(1), exists, "foreign token must not release the lock")

	require.NoError(t, c.ReleaseLock(ctx, "test-sweep", token))
	exists, _ = c.rdb.Exists(ctx, "lock:test-sweep").Result()
	assert.Zero(t, exists)
}
