package usage

import (
	"time"

	"github.com/google/uuid"
	"github.com/saas/controlplane/internal/domain/shared"
)

// Period tags the aggregation window a usage record belongs to
type Period string

const (
	PeriodDaily   Period = "daily"
	PeriodWeekly  Period = "weekly"
	PeriodMonthly Period = "monthly"
)

// IsValid returns true if the period is a known aggregation tag
func (p Period) IsValid() bool {
	switch p {
	case PeriodDaily, PeriodWeekly, PeriodMonthly:
		return true
	}
	return false
}

// String returns the string representation of the period
func (p Period) String() string {
	return string(p)
}

// WindowAt returns the period's window boundaries containing t.
// Weekly windows start on Monday.
func (p Period) WindowAt(t time.Time) (time.Time, time.Time) {
	switch p {
	case PeriodDaily:
		start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
		return start, start.AddDate(0, 0, 1).Add(-time.Nanosecond)

	case PeriodWeekly:
		weekday := int(t.Weekday())
		if weekday == 0 {
			weekday = 7 // Sunday
		}
		start := time.Date(t.Year(), t.Month(), t.Day()-(weekday-1), 0, 0, 0, 0, t.Location())
		return start, start.AddDate(0, 0, 7).Add(-time.Nanosecond)

	default: // monthly
		start := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
		return start, start.AddDate(0, 1, 0).Add(-time.Nanosecond)
	}
}

// Record is an immutable measurement of a metric for a tenant. Records are
// append-only; the running total per (tenant, metric, period) is a derived
// aggregate, never stored directly.
type Record struct {
	shared.BaseEntity
	TenantID   uuid.UUID `gorm:"type:uuid;not null;index"`
	Metric     string    `gorm:"type:varchar(100);not null;index:idx_usage_metric_recorded"`
	Quantity   int64     `gorm:"not null"`
	Unit       string    `gorm:"type:varchar(20);not null;default:'count'"`
	Period     Period    `gorm:"type:varchar(10);not null"`
	RecordedAt time.Time `gorm:"not null;index:idx_usage_metric_recorded"`
}

// TableName returns the table name for GORM
func (Record) TableName() string {
	return "usage_records"
}

// NewRecord creates a usage record with validation
func NewRecord(tenantID uuid.UUID, metric string, quantity int64, unit string, period Period) (*Record, error) {
	if tenantID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_TENANT", "Tenant ID cannot be empty")
	}
	if metric == "" {
		return nil, shared.NewDomainError("INVALID_METRIC", "Metric name cannot be empty")
	}
	if quantity <= 0 {
		return nil, shared.NewDomainError("INVALID_QUANTITY", "Quantity must be positive")
	}
	if !period.IsValid() {
		return nil, shared.NewDomainError("INVALID_PERIOD", "Invalid aggregation period")
	}
	if unit == "" {
		unit = "count"
	}

	return &Record{
		BaseEntity: shared.NewBaseEntity(),
		TenantID:   tenantID,
		Metric:     metric,
		Quantity:   quantity,
		Unit:       unit,
		Period:     period,
		RecordedAt: time.Now(),
	}, nil
}

// Window returns the record's own aggregation window
func (r *Record) Window() (time.Time, time.Time) {
	return r.Period.WindowAt(r.RecordedAt)
}
