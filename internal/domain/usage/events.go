package usage

import (
	"time"

	"github.com/saas/controlplane/internal/domain/shared"
)

// Aggregate type constant
const AggregateTypeUsage = "UsageRecord"

// EventTypeUsageRecorded is published for every accepted usage event
const EventTypeUsageRecorded = "usage_recorded"

// UsageRecordedEvent carries the recorded measurement snapshot
type UsageRecordedEvent struct {
	shared.BaseDomainEvent
	Metric     string    `json:"metric"`
	Quantity   int64     `json:"quantity"`
	Unit       string    `json:"unit"`
	Period     Period    `json:"period"`
	RecordedAt time.Time `json:"recorded_at"`
	Total      int64     `json:"total"` // running total after this record
}

// NewUsageRecordedEvent creates a new UsageRecordedEvent
func NewUsageRecordedEvent(r *Record, total int64) *UsageRecordedEvent {
	return &UsageRecordedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeUsageRecorded, AggregateTypeUsage, r.ID, r.TenantID),
		Metric:          r.Metric,
		Quantity:        r.Quantity,
		Unit:            r.Unit,
		Period:          r.Period,
		RecordedAt:      r.RecordedAt,
		Total:           total,
	}
}

var _ shared.DomainEvent = (*UsageRecordedEvent)(nil)
