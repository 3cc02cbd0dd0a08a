package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/saas/controlplane/internal/domain/usage"
)

// incrIfExists bumps a counter only when the key is already present.
// A missing key means the window total must be recomputed from the durable
// store first; blindly INCRBYing would seed the counter from zero and
// undercount.
var incrIfExists = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 1 then
  return redis.call("INCRBY", KEYS[1], ARGV[1])
end
return false
`)

// RedisCounterCache implements usage.CounterCache on Redis, shared across
// control-plane instances
type RedisCounterCache struct {
	client  *redis.Client
	timeout time.Duration
}

// NewRedisCounterCache creates a Redis-backed usage counter cache
func NewRedisCounterCache(client *redis.Client, timeout time.Duration) *RedisCounterCache {
	return &RedisCounterCache{client: client, timeout: timeout}
}

// Get returns the cached total and whether the key was present
func (c *RedisCounterCache) Get(ctx context.Context, key usage.CounterKey) (int64, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	total, err := c.client.Get(ctx, key.String()).Int64()
	if err != nil {
		if err == redis.Nil {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("counter get failed: %w", err)
	}
	return total, true, nil
}

// Set stores a total with the given TTL
func (c *RedisCounterCache) Set(ctx context.Context, key usage.CounterKey, total int64, ttl time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.client.Set(ctx, key.String(), total, ttl).Err(); err != nil {
		return fmt.Errorf("counter set failed: %w", err)
	}
	return nil
}

// Increment adds delta to an existing entry and returns the new total.
// Returns ok=false when the key is absent.
func (c *RedisCounterCache) Increment(ctx context.Context, key usage.CounterKey, delta int64) (int64, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	result, err := incrIfExists.Run(ctx, c.client, []string{key.String()}, delta).Result()
	if err != nil {
		if err == redis.Nil {
			// Script returned false: key absent
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("counter increment failed: %w", err)
	}

	total, ok := result.(int64)
	if !ok {
		return 0, false, nil
	}
	return total, true, nil
}

// Invalidate removes a cached total
func (c *RedisCounterCache) Invalidate(ctx context.Context, key usage.CounterKey) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.client.Del(ctx, key.String()).Err(); err != nil {
		return fmt.Errorf("counter invalidate failed: %w", err)
	}
	return nil
}

// InMemoryCounterCache implements usage.CounterCache in process memory.
// Suitable for single-instance deployments and tests.
type InMemoryCounterCache struct {
	mu      sync.Mutex
	entries map[string]counterEntry
}

type counterEntry struct {
	total     int64
	expiresAt time.Time
}

// NewInMemoryCounterCache creates an in-memory usage counter cache
func NewInMemoryCounterCache() *InMemoryCounterCache {
	return &InMemoryCounterCache{entries: make(map[string]counterEntry)}
}

// Get returns the cached total and whether the key was present
func (c *InMemoryCounterCache) Get(ctx context.Context, key usage.CounterKey) (int64, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key.String()]
	if !ok || time.Now().After(entry.expiresAt) {
		delete(c.entries, key.String())
		return 0, false, nil
	}
	return entry.total, true, nil
}

// Set stores a total with the given TTL
func (c *InMemoryCounterCache) Set(ctx context.Context, key usage.CounterKey, total int64, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key.String()] = counterEntry{total: total, expiresAt: time.Now().Add(ttl)}
	return nil
}

// Increment adds delta to an existing entry and returns the new total
func (c *InMemoryCounterCache) Increment(ctx context.Context, key usage.CounterKey, delta int64) (int64, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key.String()]
	if !ok || time.Now().After(entry.expiresAt) {
		delete(c.entries, key.String())
		return 0, false, nil
	}

	entry.total += delta
	c.entries[key.String()] = entry
	return entry.total, true, nil
}

// Invalidate removes a cached total
func (c *InMemoryCounterCache) Invalidate(ctx context.Context, key usage.CounterKey) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, key.String())
	return nil
}
