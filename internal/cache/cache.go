package cache

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache is an optional Redis-backed read cache. A nil Cache is valid and
// behaves as a permanent miss, so callers never branch on availability.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// New connects to Redis. Returns nil (no cache) when the URL is empty or
// the server is unreachable; the service runs without caching.
func New(ctx context.Context, redisURL string, ttl time.Duration) *Cache {
	if redisURL == "" {
		return nil
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		log.Printf("[Cache] invalid redis url, caching disabled: %v", err)
		return nil
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		log.Printf("[Cache] redis unreachable, caching disabled: %v", err)
		client.Close()
		return nil
	}
	return &Cache{client: client, ttl: ttl}
}

// Get fetches a cached value into dest. Returns false on miss or any error.
func (c *Cache) Get(ctx context.Context, key string, dest interface{}) bool {
	if c == nil {
		return false
	}
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		return false
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return false
	}
	return true
}

// Set stores a value. Errors are logged and swallowed.
func (c *Cache) Set(ctx context.Context, key string, value interface{}) {
	if c == nil {
		return
	}
	data, err := json.Marshal(value)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		log.Printf("[Cache] set %s failed: %v", key, err)
	}
}

// Invalidate removes a key.
func (c *Cache) Invalidate(ctx context.Context, keys ...string) {
	if c == nil || len(keys) == 0 {
		return
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		log.Printf("[Cache] invalidate failed: %v", err)
	}
}

// Ready pings the backing server for readiness checks.
func (c *Cache) Ready(ctx context.Context) error {
	if c == nil {
		return nil
	}
	return c.client.Ping(ctx).Err()
}

// Close releases the connection.
func (c *Cache) Close() error {
	if c == nil {
		return nil
	}
	return c.client.Close()
}
