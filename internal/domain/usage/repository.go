package usage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// RecordRepository defines the interface for persisting and aggregating
// usage records. The durable sum is the source of truth for running totals;
// the counter cache is a bounded-staleness view over it.
type RecordRepository interface {
	// Save appends a usage record
	Save(ctx context.Context, r *Record) error

	// SumByTenantAndMetric sums quantities for a tenant and metric within
	// a time window
	SumByTenantAndMetric(ctx context.Context, tenantID uuid.UUID, metric string, start, end time.Time) (int64, error)

	// FindByTenant returns records for a tenant within a time window,
	// newest first
	FindByTenant(ctx context.Context, tenantID uuid.UUID, start, end time.Time, limit int) ([]Record, error)

	// DistinctMetrics returns the metric names a tenant has recorded
	// within a time window
	DistinctMetrics(ctx context.Context, tenantID uuid.UUID, start, end time.Time) ([]string, error)
}

// CounterKey identifies one cached running total
type CounterKey struct {
	TenantID    uuid.UUID
	Metric      string
	Period      Period
	WindowStart time.Time
}

// String renders the key in cache-key form
func (k CounterKey) String() string {
	return fmt.Sprintf("usage:%s:%s:%s:%d", k.TenantID, k.Metric, k.Period, k.WindowStart.Unix())
}

// KeyFor builds the counter key for a tenant/metric/period at time t
func KeyFor(tenantID uuid.UUID, metric string, period Period, t time.Time) CounterKey {
	start, _ := period.WindowAt(t)
	return CounterKey{TenantID: tenantID, Metric: metric, Period: period, WindowStart: start}
}

// CounterCache caches running usage totals with a bounded TTL. Increment
// only bumps an existing entry so a missed window is recomputed from the
// durable store rather than drifting from a partial count.
type CounterCache interface {
	// Get returns the cached total and whether the key was present
	Get(ctx context.Context, key CounterKey) (int64, bool, error)

	// Set stores a total with the given TTL
	Set(ctx context.Context, key CounterKey, total int64, ttl time.Duration) error

	// Increment adds delta to an existing entry and returns the new total.
	// Returns ok=false when the key is absent (caller refreshes from the
	// durable store instead).
	Increment(ctx context.Context, key CounterKey, delta int64) (int64, bool, error)

	// Invalidate removes a cached total
	Invalidate(ctx context.Context, key CounterKey) error
}

// LimitCheck is the answer to an admit/deny question
type LimitCheck struct {
	Allowed   bool   `json:"allowed"`
	Reason    string `json:"reason,omitempty"`
	Metric    string `json:"metric"`
	Current   int64  `json:"current"`
	Requested int64  `json:"requested"`
	Limit     int64  `json:"limit"` // -1 = unlimited
}

// Unlimited reports whether the effective limit carries no ceiling
func (c LimitCheck) Unlimited() bool {
	return c.Limit == -1
}
