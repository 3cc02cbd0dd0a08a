package usage

import (
	"time"

	"github.com/google/uuid"
	"github.com/saas/controlplane/internal/domain/usage"
)

// RecordUsageInput contains input for recording a usage measurement
type RecordUsageInput struct {
	Metric   string
	Quantity int64
	Unit     string
}

// RecordDTO is the API representation of a usage record
type RecordDTO struct {
	ID         uuid.UUID `json:"id"`
	TenantID   uuid.UUID `json:"tenant_id"`
	Metric     string    `json:"metric"`
	Quantity   int64     `json:"quantity"`
	Unit       string    `json:"unit"`
	Period     string    `json:"period"`
	RecordedAt time.Time `json:"recorded_at"`
	Total      int64     `json:"total"`
}

// ToRecordDTO converts a domain record plus its running total
func ToRecordDTO(r *usage.Record, total int64) RecordDTO {
	return RecordDTO{
		ID:         r.ID,
		TenantID:   r.TenantID,
		Metric:     r.Metric,
		Quantity:   r.Quantity,
		Unit:       r.Unit,
		Period:     string(r.Period),
		RecordedAt: r.RecordedAt,
		Total:      total,
	}
}

// MetricSummary is one row of a tenant's usage summary for the current
// window
type MetricSummary struct {
	Metric    string `json:"metric"`
	Used      int64  `json:"used"`
	Limit     int64  `json:"limit"` // -1 = unlimited
	Remaining int64  `json:"remaining,omitempty"`
	Unlimited bool   `json:"unlimited"`
}

// SummaryDTO is a tenant's usage across all recorded metrics for the
// current aggregation window
type SummaryDTO struct {
	TenantID    uuid.UUID       `json:"tenant_id"`
	Period      string          `json:"period"`
	WindowStart time.Time       `json:"window_start"`
	WindowEnd   time.Time       `json:"window_end"`
	Metrics     []MetricSummary `json:"metrics"`
}
