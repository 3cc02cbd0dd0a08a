package usage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/saas/controlplane/internal/domain/shared"
	"github.com/saas/controlplane/internal/domain/tenant"
	"github.com/saas/controlplane/internal/domain/usage"
	"go.uber.org/zap"
)

// TenantFinder is the slice of the tenant repository metering needs.
// Satisfied by tenant.Repository.
type TenantFinder interface {
	FindByID(ctx context.Context, id uuid.UUID) (*tenant.Tenant, error)
}

// SubscriptionFinder resolves the active subscription carrying limit
// overrides. Satisfied by tenant.SubscriptionRepository.
type SubscriptionFinder interface {
	FindActiveByTenant(ctx context.Context, tenantID uuid.UUID) (*tenant.Subscription, error)
}

// MeteringServiceConfig contains configuration for the metering service
type MeteringServiceConfig struct {
	// DefaultPeriod is the aggregation window for recorded usage
	DefaultPeriod usage.Period
	// CounterTTL bounds how long a cached running total may serve before
	// it is recomputed from the durable store
	CounterTTL time.Duration
}

// MeteringService records usage measurements and answers quota questions.
// The durable record sum is the source of truth; the counter cache is a
// bounded-staleness view refreshed on miss. Check-then-record is not
// atomic, so concurrent requests near a limit can overshoot by roughly
// in-flight concurrency; that overshoot is accepted.
type MeteringService struct {
	tenants       TenantFinder
	subscriptions SubscriptionFinder
	records       usage.RecordRepository
	counters      usage.CounterCache
	events        shared.EventPublisher
	logger        *zap.Logger
	cfg           MeteringServiceConfig
}

// NewMeteringService creates a usage metering service
func NewMeteringService(
	tenants TenantFinder,
	subscriptions SubscriptionFinder,
	records usage.RecordRepository,
	counters usage.CounterCache,
	events shared.EventPublisher,
	logger *zap.Logger,
	cfg MeteringServiceConfig,
) *MeteringService {
	if !cfg.DefaultPeriod.IsValid() {
		cfg.DefaultPeriod = usage.PeriodMonthly
	}
	if cfg.CounterTTL <= 0 {
		cfg.CounterTTL = time.Minute
	}
	return &MeteringService{
		tenants:       tenants,
		subscriptions: subscriptions,
		records:       records,
		counters:      counters,
		events:        events,
		logger:        logger.Named("usage-metering"),
		cfg:           cfg,
	}
}

// CheckLimit answers whether requested more units of a metric fit under the
// tenant's effective limit. A deny is a normal answer, not an error.
func (s *MeteringService) CheckLimit(ctx context.Context, tenantID uuid.UUID, metric string, requested int64) (usage.LimitCheck, error) {
	t, err := s.servableTenant(ctx, tenantID)
	if err != nil {
		return usage.LimitCheck{}, err
	}

	limit, err := s.effectiveLimit(ctx, t, metric)
	if err != nil {
		return usage.LimitCheck{}, err
	}

	check := usage.LimitCheck{Metric: metric, Requested: requested, Limit: limit}
	if limit == tenant.Unlimited {
		check.Allowed = true
		return check, nil
	}

	current, err := s.currentTotal(ctx, tenantID, metric, time.Now())
	if err != nil {
		return usage.LimitCheck{}, err
	}
	check.Current = current
	check.Allowed = current+requested <= limit
	if !check.Allowed {
		check.Reason = "quota exceeded"
	}
	return check, nil
}

// EnforceLimit is CheckLimit for callers that want a deny as an error
func (s *MeteringService) EnforceLimit(ctx context.Context, tenantID uuid.UUID, metric string, requested int64) error {
	check, err := s.CheckLimit(ctx, tenantID, metric, requested)
	if err != nil {
		return err
	}
	if !check.Allowed {
		return shared.NewQuotaExceededError(metric, check.Current, requested, check.Limit)
	}
	return nil
}

// RecordUsage appends an immutable usage record, bumps the cached running
// total, and publishes usage_recorded. Recording never consults the limit;
// enforcement is the caller's decision via CheckLimit.
func (s *MeteringService) RecordUsage(ctx context.Context, tenantID uuid.UUID, in RecordUsageInput) (*RecordDTO, error) {
	if _, err := s.servableTenant(ctx, tenantID); err != nil {
		return nil, err
	}

	record, err := usage.NewRecord(tenantID, in.Metric, in.Quantity, in.Unit, s.cfg.DefaultPeriod)
	if err != nil {
		return nil, err
	}
	if err := s.records.Save(ctx, record); err != nil {
		return nil, err
	}

	total := s.bumpCounter(ctx, record)

	if err := s.events.Publish(ctx, usage.NewUsageRecordedEvent(record, total)); err != nil {
		s.logger.Warn("Failed to publish usage_recorded",
			zap.String("tenant_id", tenantID.String()),
			zap.String("metric", in.Metric),
			zap.Error(err))
	}

	dto := ToRecordDTO(record, total)
	return &dto, nil
}

// bumpCounter increments the cached running total for the record's window,
// refreshing from the durable sum when the cache has no entry. Increment
// declines on absent keys so a missed window never drifts from a partial
// count. Cache failures degrade to the durable sum.
func (s *MeteringService) bumpCounter(ctx context.Context, record *usage.Record) int64 {
	key := usage.KeyFor(record.TenantID, record.Metric, record.Period, record.RecordedAt)

	total, ok, err := s.counters.Increment(ctx, key, record.Quantity)
	if err == nil && ok {
		return total
	}
	if err != nil {
		s.logger.Warn("Counter increment failed, falling back to durable sum",
			zap.String("key", key.String()), zap.Error(err))
	}

	start, end := record.Window()
	total, sumErr := s.records.SumByTenantAndMetric(ctx, record.TenantID, record.Metric, start, end)
	if sumErr != nil {
		s.logger.Error("Failed to compute usage total",
			zap.String("key", key.String()), zap.Error(sumErr))
		return record.Quantity
	}

	if err := s.counters.Set(ctx, key, total, s.cfg.CounterTTL); err != nil {
		s.logger.Warn("Failed to seed usage counter",
			zap.String("key", key.String()), zap.Error(err))
	}
	return total
}

// CurrentUsage returns the running total for a metric in the current window
func (s *MeteringService) CurrentUsage(ctx context.Context, tenantID uuid.UUID, metric string) (int64, error) {
	if _, err := s.servableTenant(ctx, tenantID); err != nil {
		return 0, err
	}
	return s.currentTotal(ctx, tenantID, metric, time.Now())
}

// currentTotal reads the cached running total, recomputing from the durable
// store and reseeding the cache on a miss
func (s *MeteringService) currentTotal(ctx context.Context, tenantID uuid.UUID, metric string, now time.Time) (int64, error) {
	key := usage.KeyFor(tenantID, metric, s.cfg.DefaultPeriod, now)

	cached, hit, err := s.counters.Get(ctx, key)
	if err != nil {
		s.logger.Warn("Counter read failed, falling back to durable sum",
			zap.String("key", key.String()), zap.Error(err))
	} else if hit {
		return cached, nil
	}

	start, end := s.cfg.DefaultPeriod.WindowAt(now)
	total, err := s.records.SumByTenantAndMetric(ctx, tenantID, metric, start, end)
	if err != nil {
		return 0, err
	}

	if err := s.counters.Set(ctx, key, total, s.cfg.CounterTTL); err != nil {
		s.logger.Warn("Failed to seed usage counter",
			zap.String("key", key.String()), zap.Error(err))
	}
	return total, nil
}

// Summary reports usage against effective limits for every metric the
// tenant recorded in the current window. Totals come from the durable
// store, not the counter cache.
func (s *MeteringService) Summary(ctx context.Context, tenantID uuid.UUID) (*SummaryDTO, error) {
	t, err := s.servableTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	start, end := s.cfg.DefaultPeriod.WindowAt(now)

	metrics, err := s.records.DistinctMetrics(ctx, tenantID, start, end)
	if err != nil {
		return nil, err
	}

	summary := &SummaryDTO{
		TenantID:    tenantID,
		Period:      s.cfg.DefaultPeriod.String(),
		WindowStart: start,
		WindowEnd:   end,
		Metrics:     make([]MetricSummary, 0, len(metrics)),
	}
	for _, metric := range metrics {
		used, err := s.records.SumByTenantAndMetric(ctx, tenantID, metric, start, end)
		if err != nil {
			return nil, err
		}
		limit, err := s.effectiveLimit(ctx, t, metric)
		if err != nil {
			return nil, err
		}

		row := MetricSummary{Metric: metric, Used: used, Limit: limit}
		if limit == tenant.Unlimited {
			row.Unlimited = true
		} else if remaining := limit - used; remaining > 0 {
			row.Remaining = remaining
		}
		summary.Metrics = append(summary.Metrics, row)
	}
	return summary, nil
}

// ListRecords returns a tenant's raw usage records for the current window,
// newest first
func (s *MeteringService) ListRecords(ctx context.Context, tenantID uuid.UUID, limit int) ([]RecordDTO, error) {
	if _, err := s.servableTenant(ctx, tenantID); err != nil {
		return nil, err
	}

	start, end := s.cfg.DefaultPeriod.WindowAt(time.Now())
	records, err := s.records.FindByTenant(ctx, tenantID, start, end, limit)
	if err != nil {
		return nil, err
	}

	dtos := make([]RecordDTO, len(records))
	for i := range records {
		dtos[i] = ToRecordDTO(&records[i], 0)
	}
	return dtos, nil
}

// InvalidateCounter drops the cached total for a metric's current window.
// Used after backfills or corrections so reads recompute from the store.
func (s *MeteringService) InvalidateCounter(ctx context.Context, tenantID uuid.UUID, metric string) error {
	key := usage.KeyFor(tenantID, metric, s.cfg.DefaultPeriod, time.Now())
	return s.counters.Invalidate(ctx, key)
}

// servableTenant loads the tenant and rejects deleted or failed ones
func (s *MeteringService) servableTenant(ctx context.Context, tenantID uuid.UUID) (*tenant.Tenant, error) {
	t, err := s.tenants.FindByID(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if !t.CanServeUsage() {
		return nil, shared.ErrTenantUnavailable
	}
	return t, nil
}

// effectiveLimit resolves the ceiling for one metric: subscription override
// first, plan catalog otherwise
func (s *MeteringService) effectiveLimit(ctx context.Context, t *tenant.Tenant, metric string) (int64, error) {
	sub, err := s.subscriptions.FindActiveByTenant(ctx, t.ID)
	if err == nil {
		return sub.EffectiveLimit(metric), nil
	}
	if !errors.Is(err, shared.ErrNotFound) {
		return 0, err
	}

	plan, err := tenant.LookupPlan(t.Plan)
	if err != nil {
		return 0, err
	}
	return plan.LimitFor(metric), nil
}
