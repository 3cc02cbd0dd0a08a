package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/saas/controlplane/internal/domain/tenant"
)

// RedisTenantCache is the distributed L2 tier of the tenant lookup cache,
// shared across control-plane instances. Every call is bounded by a short
// timeout so a slow Redis degrades lookups to the metadata store instead
// of stalling them.
type RedisTenantCache struct {
	client  *redis.Client
	ttl     time.Duration
	timeout time.Duration
}

// NewRedisTenantCache creates a Redis-backed tenant cache
func NewRedisTenantCache(client *redis.Client, ttl, timeout time.Duration) *RedisTenantCache {
	return &RedisTenantCache{client: client, ttl: ttl, timeout: timeout}
}

func tenantKey(subdomain string) string {
	return "tenant:subdomain:" + strings.ToLower(subdomain)
}

// Get returns the cached tenant for a subdomain, or nil on miss
func (c *RedisTenantCache) Get(ctx context.Context, subdomain string) (*tenant.Tenant, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	data, err := c.client.Get(ctx, tenantKey(subdomain)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis tenant lookup failed: %w", err)
	}

	var t tenant.Tenant
	if err := json.Unmarshal(data, &t); err != nil {
		// A corrupt entry is a miss, not an outage
		return nil, nil
	}
	return &t, nil
}

// Set stores the tenant under its subdomain key
func (c *RedisTenantCache) Set(ctx context.Context, t *tenant.Tenant) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("failed to marshal tenant: %w", err)
	}

	if err := c.client.Set(ctx, tenantKey(t.Subdomain), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis tenant set failed: %w", err)
	}
	return nil
}

// Invalidate removes the cache entry for a subdomain
func (c *RedisTenantCache) Invalidate(ctx context.Context, subdomain string) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.client.Del(ctx, tenantKey(subdomain)).Err(); err != nil {
		return fmt.Errorf("redis tenant invalidate failed: %w", err)
	}
	return nil
}
