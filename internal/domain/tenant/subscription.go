package tenant

import (
	"time"

	"github.com/google/uuid"
	"github.com/saas/controlplane/internal/domain/shared"
)

// SubscriptionStatus represents the billing status of a subscription
type SubscriptionStatus string

const (
	SubscriptionStatusActive   SubscriptionStatus = "active"
	SubscriptionStatusCanceled SubscriptionStatus = "canceled"
)

// Subscription records a tenant's plan, billing window, and any
// tenant-specific limit overrides. At most one subscription per tenant is
// active; the store enforces that.
type Subscription struct {
	shared.BaseEntity
	TenantID           uuid.UUID          `gorm:"type:uuid;not null;index"`
	Plan               PlanName           `gorm:"type:varchar(20);not null"`
	Status             SubscriptionStatus `gorm:"type:varchar(20);not null;default:'active'"`
	LimitOverrides     LimitMap           `gorm:"type:jsonb;serializer:json"`
	CurrentPeriodStart time.Time          `gorm:"not null"`
	CurrentPeriodEnd   time.Time          `gorm:"not null"`
}

// LimitMap maps metric name to a numeric ceiling (-1 = unlimited)
type LimitMap map[string]int64

// TableName returns the table name for GORM
func (Subscription) TableName() string {
	return "subscriptions"
}

// NewSubscription creates an active subscription on the given plan with a
// monthly billing window anchored at now
func NewSubscription(tenantID uuid.UUID, plan PlanName) (*Subscription, error) {
	if tenantID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_TENANT", "Tenant ID cannot be empty")
	}
	if !plan.IsValid() {
		return nil, shared.NewDomainError("INVALID_PLAN", "Unknown subscription plan: "+string(plan))
	}

	now := time.Now()
	periodStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	periodEnd := periodStart.AddDate(0, 1, 0).Add(-time.Nanosecond)

	return &Subscription{
		BaseEntity:         shared.NewBaseEntity(),
		TenantID:           tenantID,
		Plan:               plan,
		Status:             SubscriptionStatusActive,
		LimitOverrides:     LimitMap{},
		CurrentPeriodStart: periodStart,
		CurrentPeriodEnd:   periodEnd,
	}, nil
}

// IsActive returns true if the subscription is active
func (s *Subscription) IsActive() bool {
	return s.Status == SubscriptionStatusActive
}

// Cancel marks the subscription canceled
func (s *Subscription) Cancel() {
	s.Status = SubscriptionStatusCanceled
	s.Touch()
}

// SetOverride records a tenant-specific limit for a metric, overriding the
// plan catalog default
func (s *Subscription) SetOverride(metric string, limit int64) error {
	if limit < Unlimited {
		return shared.NewDomainError("INVALID_LIMIT", "Limit must be -1 (unlimited) or non-negative")
	}
	if s.LimitOverrides == nil {
		s.LimitOverrides = LimitMap{}
	}
	s.LimitOverrides[metric] = limit
	s.Touch()
	return nil
}

// EffectiveLimit resolves the ceiling for a metric: the tenant-specific
// override when present, otherwise the plan catalog default.
func (s *Subscription) EffectiveLimit(metric string) int64 {
	if limit, ok := s.LimitOverrides[metric]; ok {
		return limit
	}
	plan, err := LookupPlan(s.Plan)
	if err != nil {
		return Unlimited
	}
	return plan.LimitFor(metric)
}

// AdvancePeriod rolls the billing window forward one month if now falls
// past the current period end
func (s *Subscription) AdvancePeriod(now time.Time) bool {
	if !now.After(s.CurrentPeriodEnd) {
		return false
	}
	periodStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	s.CurrentPeriodStart = periodStart
	s.CurrentPeriodEnd = periodStart.AddDate(0, 1, 0).Add(-time.Nanosecond)
	s.Touch()
	return true
}
