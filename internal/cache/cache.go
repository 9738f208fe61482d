// Package cache provides an optional Redis-backed cache for WorkerStats
// reads and geo-lookup hints. When OBS_REDIS_URL is absent the cache is
// constructed in disabled mode and every operation becomes a silent no-op,
// so callers never need to branch on whether caching is configured.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache wraps a Redis client, or nil when caching is disabled.
type Cache struct {
	client *redis.Client
}

// NewCache connects to rawURL, or returns a disabled Cache when rawURL is empty.
func NewCache(rawURL string) (*Cache, error) {
	if rawURL == "" {
		return &Cache{client: nil}, nil
	}

	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	opts.PoolSize = 10
	opts.MinIdleConns = 2
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second
	opts.MaxRetries = 3

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return &Cache{client: client}, nil
}

// Close releases the connection pool.
func (c *Cache) Close() error {
	if c.client == nil {
		return nil
	}
	return c.client.Close()
}

// IsEnabled reports whether a Redis connection is configured.
func (c *Cache) IsEnabled() bool { return c.client != nil }

// Get retrieves and unmarshals a value; returns false if absent or disabled.
func (c *Cache) Get(ctx context.Context, key string, target any) (bool, error) {
	if !c.IsEnabled() {
		return false, nil
	}
	val, err := c.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("cache get %s: %w", key, err)
	}
	if err := json.Unmarshal([]byte(val), target); err != nil {
		return false, fmt.Errorf("cache unmarshal %s: %w", key, err)
	}
	return true, nil
}

// Set stores value with the given TTL. A no-op when caching is disabled.
func (c *Cache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	if !c.IsEnabled() {
		return nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache marshal %s: %w", key, err)
	}
	if err := c.client.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("cache set %s: %w", key, err)
	}
	return nil
}

// Delete removes one or more keys. A no-op when caching is disabled.
func (c *Cache) Delete(ctx context.Context, keys ...string) error {
	if !c.IsEnabled() || len(keys) == 0 {
		return nil
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("cache delete: %w", err)
	}
	return nil
}
