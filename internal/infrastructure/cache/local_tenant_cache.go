package cache

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/saas/controlplane/internal/domain/tenant"
)

// LocalTenantCache is the in-process L1 tier of the tenant lookup cache.
// Entries expire on a short TTL; cross-instance coherence comes from the
// TTL, not from invalidation fan-out.
type LocalTenantCache struct {
	ttl time.Duration

	mu      sync.RWMutex
	entries map[string]localEntry
}

type localEntry struct {
	tenant    tenant.Tenant
	expiresAt time.Time
}

// NewLocalTenantCache creates an in-memory tenant cache with the given TTL
func NewLocalTenantCache(ttl time.Duration) *LocalTenantCache {
	return &LocalTenantCache{
		ttl:     ttl,
		entries: make(map[string]localEntry),
	}
}

// Get returns the cached tenant for a subdomain, or nil on miss
func (c *LocalTenantCache) Get(ctx context.Context, subdomain string) (*tenant.Tenant, error) {
	c.mu.RLock()
	entry, ok := c.entries[strings.ToLower(subdomain)]
	c.mu.RUnlock()

	if !ok || time.Now().After(entry.expiresAt) {
		return nil, nil
	}

	// Copy so callers cannot mutate the cached value
	t := entry.tenant
	return &t, nil
}

// Set stores the tenant under its subdomain key
func (c *LocalTenantCache) Set(ctx context.Context, t *tenant.Tenant) error {
	c.mu.Lock()
	c.entries[strings.ToLower(t.Subdomain)] = localEntry{
		tenant:    *t,
		expiresAt: time.Now().Add(c.ttl),
	}
	c.mu.Unlock()
	return nil
}

// Invalidate removes the cache entry for a subdomain
func (c *LocalTenantCache) Invalidate(ctx context.Context, subdomain string) error {
	c.mu.Lock()
	delete(c.entries, strings.ToLower(subdomain))
	c.mu.Unlock()
	return nil
}

// Purge drops expired entries. Called periodically by the owner; reads
// already treat expired entries as misses, so this only reclaims memory.
func (c *LocalTenantCache) Purge() int {
	now := time.Now()
	removed := 0

	c.mu.Lock()
	for key, entry := range c.entries {
		if now.After(entry.expiresAt) {
			delete(c.entries, key)
			removed++
		}
	}
	c.mu.Unlock()
	return removed
}

// Len returns the number of entries including not-yet-purged expired ones
func (c *LocalTenantCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
