package usage

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/saas/controlplane/internal/domain/shared"
	"github.com/saas/controlplane/internal/domain/tenant"
	"github.com/saas/controlplane/internal/domain/usage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeTenantFinder struct {
	tenants map[uuid.UUID]*tenant.Tenant
}

func (f *fakeTenantFinder) FindByID(_ context.Context, id uuid.UUID) (*tenant.Tenant, error) {
	t, ok := f.tenants[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return t, nil
}

type fakeSubscriptionFinder struct {
	subs map[uuid.UUID]*tenant.Subscription
}

func (f *fakeSubscriptionFinder) FindActiveByTenant(_ context.Context, tenantID uuid.UUID) (*tenant.Subscription, error) {
	s, ok := f.subs[tenantID]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return s, nil
}

type fakeRecordRepo struct {
	mu       sync.Mutex
	records  []usage.Record
	sums     int
	failSave error
}

func (r *fakeRecordRepo) Save(_ context.Context, rec *usage.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failSave != nil {
		return r.failSave
	}
	r.records = append(r.records, *rec)
	return nil
}

func (r *fakeRecordRepo) SumByTenantAndMetric(_ context.Context, tenantID uuid.UUID, metric string, start, end time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sums++
	var total int64
	for _, rec := range r.records {
		if rec.TenantID == tenantID && rec.Metric == metric &&
			!rec.RecordedAt.Before(start) && !rec.RecordedAt.After(end) {
			total += rec.Quantity
		}
	}
	return total, nil
}

func (r *fakeRecordRepo) FindByTenant(_ context.Context, tenantID uuid.UUID, start, end time.Time, limit int) ([]usage.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []usage.Record
	for i := len(r.records) - 1; i >= 0; i-- {
		rec := r.records[i]
		if rec.TenantID == tenantID && !rec.RecordedAt.Before(start) && !rec.RecordedAt.After(end) {
			out = append(out, rec)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

func (r *fakeRecordRepo) DistinctMetrics(_ context.Context, tenantID uuid.UUID, start, end time.Time) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	seen := map[string]bool{}
	var out []string
	for _, rec := range r.records {
		if rec.TenantID == tenantID && !rec.RecordedAt.Before(start) && !rec.RecordedAt.After(end) && !seen[rec.Metric] {
			seen[rec.Metric] = true
			out = append(out, rec.Metric)
		}
	}
	return out, nil
}

// fakeCounterCache mimics the increment-only-if-present contract of the
// Redis counter cache
type fakeCounterCache struct {
	mu      sync.Mutex
	totals  map[string]int64
	failAll error
}

func newFakeCounterCache() *fakeCounterCache {
	return &fakeCounterCache{totals: make(map[string]int64)}
}

func (c *fakeCounterCache) Get(_ context.Context, key usage.CounterKey) (int64, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failAll != nil {
		return 0, false, c.failAll
	}
	total, ok := c.totals[key.String()]
	return total, ok, nil
}

func (c *fakeCounterCache) Set(_ context.Context, key usage.CounterKey, total int64, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failAll != nil {
		return c.failAll
	}
	c.totals[key.String()] = total
	return nil
}

func (c *fakeCounterCache) Increment(_ context.Context, key usage.CounterKey, delta int64) (int64, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failAll != nil {
		return 0, false, c.failAll
	}
	if _, ok := c.totals[key.String()]; !ok {
		return 0, false, nil
	}
	c.totals[key.String()] += delta
	return c.totals[key.String()], true, nil
}

func (c *fakeCounterCache) Invalidate(_ context.Context, key usage.CounterKey) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.totals, key.String())
	return nil
}

type eventCollector struct {
	mu     sync.Mutex
	events []shared.DomainEvent
}

func (c *eventCollector) Publish(_ context.Context, events ...shared.DomainEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, events...)
	return nil
}

type meteringFixture struct {
	svc      *MeteringService
	tenantID uuid.UUID
	tenants  *fakeTenantFinder
	subs     *fakeSubscriptionFinder
	records  *fakeRecordRepo
	counters *fakeCounterCache
	events   *eventCollector
}

func newMeteringFixture(t *testing.T, plan tenant.PlanName) *meteringFixture {
	t.Helper()

	tn, err := tenant.NewTenant("Acme", "acme", plan, "", 0)
	require.NoError(t, err)
	tn.State = tenant.StateActive
	sub, err := tenant.NewSubscription(tn.ID, plan)
	require.NoError(t, err)

	f := &meteringFixture{
		tenantID: tn.ID,
		tenants:  &fakeTenantFinder{tenants: map[uuid.UUID]*tenant.Tenant{tn.ID: tn}},
		subs:     &fakeSubscriptionFinder{subs: map[uuid.UUID]*tenant.Subscription{tn.ID: sub}},
		records:  &fakeRecordRepo{},
		counters: newFakeCounterCache(),
		events:   &eventCollector{},
	}
	f.svc = NewMeteringService(
		f.tenants, f.subs, f.records, f.counters, f.events,
		zap.NewNop(),
		MeteringServiceConfig{DefaultPeriod: usage.PeriodMonthly, CounterTTL: time.Minute},
	)
	return f
}

func (f *meteringFixture) record(t *testing.T, metric string, quantity int64) *RecordDTO {
	t.Helper()
	dto, err := f.svc.RecordUsage(context.Background(), f.tenantID, RecordUsageInput{
		Metric:   metric,
		Quantity: quantity,
	})
	require.NoError(t, err)
	return dto
}

func TestMeteringService_RecordUsage(t *testing.T) {
	t.Run("appends a record and seeds the counter from the durable sum", func(t *testing.T) {
		f := newMeteringFixture(t, tenant.PlanFree)

		dto := f.record(t, "api_calls", 5)
		assert.Equal(t, int64(5), dto.Total)
		assert.Equal(t, "count", dto.Unit)
		assert.Equal(t, "monthly", dto.Period)

		// second record hits the live counter, no second sum needed
		sumsBefore := f.records.sums
		dto = f.record(t, "api_calls", 3)
		assert.Equal(t, int64(8), dto.Total)
		assert.Equal(t, sumsBefore, f.records.sums)

		require.Len(t, f.events.events, 2)
		assert.Equal(t, usage.EventTypeUsageRecorded, f.events.events[0].EventType())
		assert.Equal(t, f.tenantID, f.events.events[0].TenantID())
	})

	t.Run("counter outage degrades to the durable sum", func(t *testing.T) {
		f := newMeteringFixture(t, tenant.PlanFree)
		f.counters.failAll = errors.New("redis down")

		dto := f.record(t, "api_calls", 5)
		assert.Equal(t, int64(5), dto.Total)
		dto = f.record(t, "api_calls", 3)
		assert.Equal(t, int64(8), dto.Total)
	})

	t.Run("rejects invalid measurements", func(t *testing.T) {
		f := newMeteringFixture(t, tenant.PlanFree)

		_, err := f.svc.RecordUsage(context.Background(), f.tenantID, RecordUsageInput{Metric: "api_calls", Quantity: 0})
		require.Error(t, err)
		_, err = f.svc.RecordUsage(context.Background(), f.tenantID, RecordUsageInput{Metric: "", Quantity: 1})
		require.Error(t, err)
		assert.Empty(t, f.records.records)
	})

	t.Run("unknown tenant returns not found", func(t *testing.T) {
		f := newMeteringFixture(t, tenant.PlanFree)
		_, err := f.svc.RecordUsage(context.Background(), uuid.New(), RecordUsageInput{Metric: "api_calls", Quantity: 1})
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("failed tenant cannot record usage", func(t *testing.T) {
		f := newMeteringFixture(t, tenant.PlanFree)
		f.tenants.tenants[f.tenantID].State = tenant.StateFailed

		_, err := f.svc.RecordUsage(context.Background(), f.tenantID, RecordUsageInput{Metric: "api_calls", Quantity: 1})
		assert.ErrorIs(t, err, shared.ErrTenantUnavailable)
	})

	t.Run("suspended tenant is still metered", func(t *testing.T) {
		f := newMeteringFixture(t, tenant.PlanFree)
		f.tenants.tenants[f.tenantID].State = tenant.StateSuspended

		dto := f.record(t, "api_calls", 2)
		assert.Equal(t, int64(2), dto.Total)
	})
}

func TestMeteringService_CheckLimit(t *testing.T) {
	t.Run("allows under the plan ceiling and denies over it", func(t *testing.T) {
		f := newMeteringFixture(t, tenant.PlanFree) // 1000 api_calls
		f.record(t, "api_calls", 990)

		check, err := f.svc.CheckLimit(context.Background(), f.tenantID, "api_calls", 10)
		require.NoError(t, err)
		assert.True(t, check.Allowed)
		assert.Equal(t, int64(990), check.Current)
		assert.Equal(t, int64(1000), check.Limit)

		check, err = f.svc.CheckLimit(context.Background(), f.tenantID, "api_calls", 11)
		require.NoError(t, err)
		assert.False(t, check.Allowed)
		assert.Equal(t, "quota exceeded", check.Reason)
	})

	t.Run("subscription override beats the plan catalog", func(t *testing.T) {
		f := newMeteringFixture(t, tenant.PlanFree)
		require.NoError(t, f.subs.subs[f.tenantID].SetOverride("api_calls", 5))
		f.record(t, "api_calls", 5)

		check, err := f.svc.CheckLimit(context.Background(), f.tenantID, "api_calls", 1)
		require.NoError(t, err)
		assert.False(t, check.Allowed)
		assert.Equal(t, int64(5), check.Limit)
	})

	t.Run("unlimited metrics skip the usage read entirely", func(t *testing.T) {
		f := newMeteringFixture(t, tenant.PlanEnterprise)

		check, err := f.svc.CheckLimit(context.Background(), f.tenantID, "api_calls", 1<<40)
		require.NoError(t, err)
		assert.True(t, check.Allowed)
		assert.True(t, check.Unlimited())
		assert.Equal(t, 0, f.records.sums)
	})

	t.Run("uncataloged metrics are unlimited", func(t *testing.T) {
		f := newMeteringFixture(t, tenant.PlanFree)

		check, err := f.svc.CheckLimit(context.Background(), f.tenantID, "custom_widget_renders", 1)
		require.NoError(t, err)
		assert.True(t, check.Allowed)
		assert.True(t, check.Unlimited())
	})
}

func TestMeteringService_EnforceLimit(t *testing.T) {
	f := newMeteringFixture(t, tenant.PlanFree)
	f.record(t, "seats", 3) // free plan seat limit

	err := f.svc.EnforceLimit(context.Background(), f.tenantID, "seats", 1)
	require.Error(t, err)
	var quotaErr *shared.QuotaExceededError
	require.ErrorAs(t, err, &quotaErr)
	assert.Equal(t, "seats", quotaErr.Metric)
	assert.Equal(t, int64(3), quotaErr.Current)
	assert.Equal(t, int64(3), quotaErr.Limit)
}

func TestMeteringService_CurrentUsage(t *testing.T) {
	t.Run("miss recomputes from the store and seeds the cache", func(t *testing.T) {
		f := newMeteringFixture(t, tenant.PlanFree)
		f.record(t, "api_calls", 7)
		key := usage.KeyFor(f.tenantID, "api_calls", usage.PeriodMonthly, time.Now())
		require.NoError(t, f.counters.Invalidate(context.Background(), key))

		total, err := f.svc.CurrentUsage(context.Background(), f.tenantID, "api_calls")
		require.NoError(t, err)
		assert.Equal(t, int64(7), total)

		// seeded: the next read is a cache hit
		sumsBefore := f.records.sums
		total, err = f.svc.CurrentUsage(context.Background(), f.tenantID, "api_calls")
		require.NoError(t, err)
		assert.Equal(t, int64(7), total)
		assert.Equal(t, sumsBefore, f.records.sums)
	})

	t.Run("metric with no records reads zero", func(t *testing.T) {
		f := newMeteringFixture(t, tenant.PlanFree)
		total, err := f.svc.CurrentUsage(context.Background(), f.tenantID, "storage_bytes")
		require.NoError(t, err)
		assert.Equal(t, int64(0), total)
	})
}

func TestMeteringService_Summary(t *testing.T) {
	f := newMeteringFixture(t, tenant.PlanFree)
	f.record(t, "api_calls", 400)
	f.record(t, "api_calls", 100)
	f.record(t, "seats", 2)
	require.NoError(t, f.subs.subs[f.tenantID].SetOverride("seats", tenant.Unlimited))

	summary, err := f.svc.Summary(context.Background(), f.tenantID)
	require.NoError(t, err)
	assert.Equal(t, "monthly", summary.Period)
	require.Len(t, summary.Metrics, 2)

	byMetric := map[string]MetricSummary{}
	for _, m := range summary.Metrics {
		byMetric[m.Metric] = m
	}
	assert.Equal(t, int64(500), byMetric["api_calls"].Used)
	assert.Equal(t, int64(1000), byMetric["api_calls"].Limit)
	assert.Equal(t, int64(500), byMetric["api_calls"].Remaining)
	assert.True(t, byMetric["seats"].Unlimited)
}

func TestMeteringService_ListRecords(t *testing.T) {
	f := newMeteringFixture(t, tenant.PlanFree)
	f.record(t, "api_calls", 1)
	f.record(t, "api_calls", 2)
	f.record(t, "seats", 1)

	records, err := f.svc.ListRecords(context.Background(), f.tenantID, 2)
	require.NoError(t, err)
	require.Len(t, records, 2)
	// newest first
	assert.Equal(t, "seats", records[0].Metric)
	assert.Equal(t, int64(2), records[1].Quantity)
}

func TestMeteringService_InvalidateCounter(t *testing.T) {
	f := newMeteringFixture(t, tenant.PlanFree)
	f.record(t, "api_calls", 9)

	require.NoError(t, f.svc.InvalidateCounter(context.Background(), f.tenantID, "api_calls"))
	key := usage.KeyFor(f.tenantID, "api_calls", usage.PeriodMonthly, time.Now())
	_, hit, err := f.counters.Get(context.Background(), key)
	require.NoError(t, err)
	assert.False(t, hit)
}
