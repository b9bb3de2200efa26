// Package cache implements the read-optimized cache-aside layer over Redis.
// The cache is never a source of truth: every value in it can be rebuilt from
// the store, and an unreachable Redis only degrades reads to the store, never
// fails them.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// DefaultLockTTL bounds how long a crashed populator can block others.
	DefaultLockTTL = 10 * time.Second
	// DefaultLockRetry is the single fixed wait a caller performs when
	// another populator holds the repopulation lock.
	DefaultLockRetry = 100 * time.Millisecond

	lockSuffix = ":lock"
)

// Options tunes the repopulation lock behavior.
type Options struct {
	LockTTL   time.Duration
	LockRetry time.Duration
}

// Cache wraps a Redis client with typed JSON accessors, prefix invalidation
// and a short-lived per-key mutex used only to guard cache repopulation.
type Cache struct {
	client    *redis.Client
	logger    *slog.Logger
	lockTTL   time.Duration
	lockRetry time.Duration
}

// New builds a cache layer. The client is shared by reference; the caller
// owns its lifecycle.
func New(client *redis.Client, logger *slog.Logger, opts Options) *Cache {
	if opts.LockTTL <= 0 {
		opts.LockTTL = DefaultLockTTL
	}
	if opts.LockRetry <= 0 {
		opts.LockRetry = DefaultLockRetry
	}
	return &Cache{client: client, logger: logger, lockTTL: opts.LockTTL, lockRetry: opts.LockRetry}
}

// Get loads key into dest. It returns false when the key is absent.
func (c *Cache) Get(ctx context.Context, key string, dest any) (bool, error) {
	val, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(val, dest); err != nil {
		return false, err
	}
	return true, nil
}

// Set stores value under key as JSON. A zero ttl stores without expiry.
func (c *Cache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, payload, ttl).Err()
}

// Delete removes the given keys.
func (c *Cache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return c.client.Del(ctx, keys...).Err()
}

// DeleteByPrefix removes every key starting with prefix.
func (c *Cache) DeleteByPrefix(ctx context.Context, prefix string) error {
	iter := c.client.Scan(ctx, 0, prefix+"*", 100).Iterator()
	batch := make([]string, 0, 100)
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == cap(batch) {
			if err := c.client.Del(ctx, batch...).Err(); err != nil {
				return err
			}
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(batch) > 0 {
		return c.client.Del(ctx, batch...).Err()
	}
	return nil
}

// TryLock attempts to acquire the repopulation mutex for key. It reports
// true when the caller is the sole populator. The lock expires on its own
// after the configured TTL, so a crashed holder cannot wedge the key.
func (c *Cache) TryLock(ctx context.Context, key string) (bool, error) {
	return c.client.SetNX(ctx, key+lockSuffix, 1, c.lockTTL).Result()
}

// Unlock releases the repopulation mutex for key. Best effort: the TTL is
// the backstop if the release is lost.
func (c *Cache) Unlock(ctx context.Context, key string) {
	if err := c.client.Del(ctx, key+lockSuffix).Err(); err != nil {
		c.logger.Warn("cache unlock failed", slog.String("key", key), slog.Any("error", err))
	}
}

// GetOrFill is the stampede-protected read-through path. On a hit it returns
// the cached value without touching the store. On a miss it elects one
// populator via the per-key mutex: the winner reads from the store, writes
// the cache and releases the lock; losers wait one fixed interval, re-check
// the cache, and fall back to a direct non-populating store read. Any cache
// failure is logged and answered from the store, never surfaced.
func GetOrFill[T any](ctx context.Context, c *Cache, key string, ttl time.Duration, fill func(context.Context) (T, error)) (T, error) {
	var out T

	found, err := c.Get(ctx, key, &out)
	if err != nil {
		c.logger.Warn("cache read failed", slog.String("key", key), slog.Any("error", err))
		return fill(ctx)
	}
	if found {
		return out, nil
	}

	locked, err := c.TryLock(ctx, key)
	if err != nil {
		c.logger.Warn("cache lock failed", slog.String("key", key), slog.Any("error", err))
		return fill(ctx)
	}

	if locked {
		defer c.Unlock(ctx, key)

		out, err = fill(ctx)
		if err != nil {
			return out, err
		}
		if err := c.Set(ctx, key, out, ttl); err != nil {
			c.logger.Warn("cache populate failed", slog.String("key", key), slog.Any("error", err))
		}
		return out, nil
	}

	// Another populator is in flight: wait once, then re-check.
	select {
	case <-time.After(c.lockRetry):
	case <-ctx.Done():
		return out, ctx.Err()
	}

	found, err = c.Get(ctx, key, &out)
	if err != nil {
		c.logger.Warn("cache re-read failed", slog.String("key", key), slog.Any("error", err))
	}
	if found {
		return out, nil
	}
	return fill(ctx)
}
