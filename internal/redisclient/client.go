package redisclient

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

//go:embed scripts/release_lock.lua
var releaseLockScript string

type Client struct {
	rdb           *redis.Client
	releaseScript *redis.Script
}

// NewClient creates a new Redis client and verifies the connection.
func NewClient(addr, password string, db int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return NewWithRedis(rdb), nil
}

// NewWithRedis wraps an existing go-redis client.
func NewWithRedis(rdb *redis.Client) *Client {
	return &Client{
		rdb:           rdb,
		releaseScript: redis.NewScript(releaseLockScript),
	}
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping checks the connection; used by the readiness probe.
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

func soldKey(productID int64) string {
	return fmt.Sprintf("product:%d:stats", productID)
}

// IncrementSold adds quantity to the cached sold counter of a product.
func (c *Client) IncrementSold(ctx context.Context, productID int64, quantity int) error {
	if err := c.rdb.HIncrBy(ctx, soldKey(productID), "sold", int64(quantity)).Err(); err != nil {
		return fmt.Errorf("increment sold counter: %w", err)
	}
	return nil
}

// SetSold overwrites the cached sold counter of a product.
func (c *Client) SetSold(ctx context.Context, productID int64, sold int64) error {
	return c.rdb.HSet(ctx, soldKey(productID), "sold", sold).Err()
}

// GetSold retrieves the cached sold counter; zero when the product is not cached.
func (c *Client) GetSold(ctx context.Context, productID int64) (int64, error) {
	val, err := c.rdb.HGet(ctx, soldKey(productID), "sold").Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(val, 10, 64)
}

// AcquireLock tries to take a distributed lock. It returns the owner token
// needed by ReleaseLock, or an empty token when the lock is held elsewhere.
func (c *Client) AcquireLock(ctx context.Context, lockKey string, ttl time.Duration) (string, error) {
	token := uuid.NewString()
	ok, err := c.rdb.SetNX(ctx, "lock:"+lockKey, token, ttl).Result()
	if err != nil {
		return "", err
	}
	if !ok {
		return "", nil
	}
	return token, nil
}

// ReleaseLock releases a lock only if it is still owned by token.
func (c *Client) ReleaseLock(ctx context.Context, lockKey, token string) error {
	_, err := c.releaseScript.Run(ctx, c.rdb, []string{"lock:" + lockKey}, token).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release lock script failed: %w", err)
	}
	return nil
}
