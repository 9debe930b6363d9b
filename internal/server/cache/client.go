// Package cache implements the volatile key/value client backed by Redis.
// It masks transient unavailability from callers: while the connection is
// down, operations fail fast with common.ErrCacheUnavailable instead of
// queueing, and reconnection happens in the background.
package cache

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/dmitrijs2005/taskkeeper/internal/common"
	"github.com/dmitrijs2005/taskkeeper/internal/logging"
	"github.com/redis/go-redis/v9"
	"github.com/sethvargo/go-retry"
)

const (
	// Connection retry settings: a fixed delay and a bounded attempt count.
	connectAttempts = 5
	connectDelay    = 5 * time.Second
	pingTimeout     = 2 * time.Second
)

// Client is a reconnecting Redis client with expiry support.
// The connection is a process-wide shared resource; no caller holds it
// exclusively.
type Client struct {
	rdb          *redis.Client
	logger       logging.Logger
	connected    atomic.Bool
	reconnecting atomic.Bool
}

// New creates a client and starts connecting in the background. Connection
// failure is not fatal to the host process: the client simply stays
// unavailable and callers decide how to degrade.
func New(addr string, password string, logger logging.Logger) *Client {
	c := &Client{
		rdb: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
			DB:       0,
		}),
		logger: logger.With("module", "cache"),
	}

	go c.connectWithRetry(context.Background())

	return c
}

// connectWithRetry pings the server with a fixed delay up to the bounded
// attempt count. On success the client becomes available; on exhaustion it
// stays unavailable and stops retrying.
func (c *Client) connectWithRetry(ctx context.Context) {
	backoff := retry.WithMaxRetries(connectAttempts-1, retry.NewConstant(connectDelay))

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
		defer cancel()

		if err := c.rdb.Ping(pingCtx).Err(); err != nil {
			c.logger.Warn(ctx, "cache connection attempt failed", "error", err)
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		c.logger.Error(ctx, "cache unavailable after repeated connection attempts", "error", err)
		return
	}

	c.connected.Store(true)
	c.logger.Info(ctx, "connected to cache")
}

// markDisconnected flips the client to unavailable and triggers a single
// background reconnect cycle. Concurrent failures collapse into one cycle.
func (c *Client) markDisconnected(ctx context.Context, err error) {
	if c.connected.CompareAndSwap(true, false) {
		c.logger.Error(ctx, "cache connection lost", "error", err)
	}

	if c.reconnecting.CompareAndSwap(false, true) {
		go func() {
			defer c.reconnecting.Store(false)
			c.connectWithRetry(context.Background())
		}()
	}
}

// opError translates a failed Redis command into the client's error model.
// Context cancellation is the caller abandoning interest, not a connection
// loss, so it does not flip the connection state.
func (c *Client) opError(ctx context.Context, err error) error {
	if !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		c.markDisconnected(ctx, err)
	}
	return common.ErrCacheUnavailable
}

// Connected reports whether the client currently considers the cache
// reachable.
func (c *Client) Connected() bool {
	return c.connected.Load()
}

// Get returns the value stored at key, common.ErrCacheMiss if the key is
// absent, or common.ErrCacheUnavailable if the connection is down.
func (c *Client) Get(ctx context.Context, key string) (string, error) {
	if !c.connected.Load() {
		return "", common.ErrCacheUnavailable
	}

	val, err := c.rdb.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", common.ErrCacheMiss
		}
		return "", c.opError(ctx, err)
	}

	return val, nil
}

// Set stores value at key with the given TTL.
func (c *Client) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	if !c.connected.Load() {
		return common.ErrCacheUnavailable
	}

	if err := c.rdb.Set(ctx, key, value, ttl).Err(); err != nil {
		return c.opError(ctx, err)
	}

	return nil
}

// Delete removes key. Deleting an absent key is not an error.
func (c *Client) Delete(ctx context.Context, key string) error {
	if !c.connected.Load() {
		return common.ErrCacheUnavailable
	}

	if err := c.rdb.Del(ctx, key).Err(); err != nil {
		return c.opError(ctx, err)
	}

	return nil
}

// Close releases the underlying connection pool.
func (c *Client) Close() error {
	return c.rdb.Close()
}
