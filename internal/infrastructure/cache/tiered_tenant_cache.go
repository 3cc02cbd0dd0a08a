package cache

import (
	"context"
	"sync/atomic"

	"github.com/saas/controlplane/internal/domain/tenant"
	"go.uber.org/zap"
)

// TieredTenantCache implements tenant.Cache over two tiers:
// L1 is the per-instance in-memory cache, L2 is Redis shared across
// instances. L2 failures are soft: they log, count as a miss, and let the
// caller fall through to the metadata store.
type TieredTenantCache struct {
	l1     tenant.Cache
	l2     tenant.Cache
	logger *zap.Logger

	l1Hits   atomic.Int64
	l2Hits   atomic.Int64
	misses   atomic.Int64
	l2Errors atomic.Int64
}

// NewTieredTenantCache composes an L1 and L2 tenant cache. A nil L2 runs
// the cache in single-tier mode, used when Redis is unreachable.
func NewTieredTenantCache(l1, l2 tenant.Cache, logger *zap.Logger) *TieredTenantCache {
	return &TieredTenantCache{l1: l1, l2: l2, logger: logger.Named("tenant-cache")}
}

// Get checks L1 then L2, backfilling L1 on an L2 hit
func (c *TieredTenantCache) Get(ctx context.Context, subdomain string) (*tenant.Tenant, error) {
	if t, err := c.l1.Get(ctx, subdomain); err == nil && t != nil {
		c.l1Hits.Add(1)
		return t, nil
	}

	if c.l2 == nil {
		c.misses.Add(1)
		return nil, nil
	}

	t, err := c.l2.Get(ctx, subdomain)
	if err != nil {
		c.l2Errors.Add(1)
		c.misses.Add(1)
		c.logger.Warn("L2 cache lookup failed, treating as miss",
			zap.String("subdomain", subdomain), zap.Error(err))
		return nil, nil
	}
	if t == nil {
		c.misses.Add(1)
		return nil, nil
	}

	c.l2Hits.Add(1)
	if err := c.l1.Set(ctx, t); err != nil {
		c.logger.Warn("L1 backfill failed", zap.String("subdomain", subdomain), zap.Error(err))
	}
	return t, nil
}

// Set writes through both tiers. An L2 write failure is soft; the entry
// expires out of other instances' L1 on its own TTL.
func (c *TieredTenantCache) Set(ctx context.Context, t *tenant.Tenant) error {
	if err := c.l1.Set(ctx, t); err != nil {
		return err
	}
	if c.l2 == nil {
		return nil
	}
	if err := c.l2.Set(ctx, t); err != nil {
		c.l2Errors.Add(1)
		c.logger.Warn("L2 cache set failed", zap.String("subdomain", t.Subdomain), zap.Error(err))
	}
	return nil
}

// Invalidate removes the entry from both tiers. The L2 delete must
// succeed or the caller needs to know: a stale shared entry outlives this
// instance's restart.
func (c *TieredTenantCache) Invalidate(ctx context.Context, subdomain string) error {
	if err := c.l1.Invalidate(ctx, subdomain); err != nil {
		return err
	}
	if c.l2 == nil {
		return nil
	}
	if err := c.l2.Invalidate(ctx, subdomain); err != nil {
		c.l2Errors.Add(1)
		return err
	}
	return nil
}

// Stats returns hit/miss counters for monitoring
func (c *TieredTenantCache) Stats() TenantCacheStats {
	return TenantCacheStats{
		L1Hits:   c.l1Hits.Load(),
		L2Hits:   c.l2Hits.Load(),
		Misses:   c.misses.Load(),
		L2Errors: c.l2Errors.Load(),
	}
}

// TenantCacheStats holds cache effectiveness counters
type TenantCacheStats struct {
	L1Hits   int64 `json:"l1_hits"`
	L2Hits   int64 `json:"l2_hits"`
	Misses   int64 `json:"misses"`
	L2Errors int64 `json:"l2_errors"`
}
