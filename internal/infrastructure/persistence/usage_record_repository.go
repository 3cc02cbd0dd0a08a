package persistence

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/saas/controlplane/internal/domain/usage"
	"gorm.io/gorm"
)

// GormUsageRecordRepository implements usage.RecordRepository using GORM
type GormUsageRecordRepository struct {
	db *gorm.DB
}

// NewGormUsageRecordRepository creates a new GormUsageRecordRepository
func NewGormUsageRecordRepository(db *gorm.DB) *GormUsageRecordRepository {
	return &GormUsageRecordRepository{db: db}
}

// Save appends a usage record
func (r *GormUsageRecordRepository) Save(ctx context.Context, rec *usage.Record) error {
	return r.db.WithContext(ctx).Create(rec).Error
}

// SumByTenantAndMetric sums quantities for a tenant and metric within a
// time window. COALESCE keeps an empty window at zero instead of NULL.
func (r *GormUsageRecordRepository) SumByTenantAndMetric(ctx context.Context, tenantID uuid.UUID, metric string, start, end time.Time) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).
		Model(&usage.Record{}).
		Select("COALESCE(SUM(quantity), 0)").
		Where("tenant_id = ? AND metric = ? AND recorded_at BETWEEN ? AND ?", tenantID, metric, start, end).
		Scan(&total).Error
	if err != nil {
		return 0, err
	}
	return total, nil
}

// FindByTenant returns records for a tenant within a time window, newest
// first
func (r *GormUsageRecordRepository) FindByTenant(ctx context.Context, tenantID uuid.UUID, start, end time.Time, limit int) ([]usage.Record, error) {
	query := r.db.WithContext(ctx).
		Where("tenant_id = ? AND recorded_at BETWEEN ? AND ?", tenantID, start, end).
		Order("recorded_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var records []usage.Record
	if err := query.Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

// DistinctMetrics returns the metric names a tenant has recorded within a
// time window
func (r *GormUsageRecordRepository) DistinctMetrics(ctx context.Context, tenantID uuid.UUID, start, end time.Time) ([]string, error) {
	var metrics []string
	err := r.db.WithContext(ctx).
		Model(&usage.Record{}).
		Distinct("metric").
		Where("tenant_id = ? AND recorded_at BETWEEN ? AND ?", tenantID, start, end).
		Order("metric").
		Pluck("metric", &metrics).Error
	if err != nil {
		return nil, err
	}
	return metrics, nil
}
