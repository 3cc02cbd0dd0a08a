package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/saas/controlplane/internal/domain/shared"
	"github.com/saas/controlplane/internal/domain/tenant"
	"gorm.io/gorm"
)

// GormSubscriptionRepository implements tenant.SubscriptionRepository
// using GORM
type GormSubscriptionRepository struct {
	db *gorm.DB
}

// NewGormSubscriptionRepository creates a new GormSubscriptionRepository
func NewGormSubscriptionRepository(db *gorm.DB) *GormSubscriptionRepository {
	return &GormSubscriptionRepository{db: db}
}

// Save creates or updates a subscription. Inserting a second active
// subscription for the same tenant violates the partial unique index and
// surfaces as shared.ErrConflict; the index is the arbiter under races.
func (r *GormSubscriptionRepository) Save(ctx context.Context, s *tenant.Subscription) error {
	if err := r.db.WithContext(ctx).Save(s).Error; err != nil {
		if isUniqueViolation(err) {
			return shared.ErrConflict
		}
		return err
	}
	return nil
}

// FindActiveByTenant returns the tenant's single active subscription
func (r *GormSubscriptionRepository) FindActiveByTenant(ctx context.Context, tenantID uuid.UUID) (*tenant.Subscription, error) {
	var s tenant.Subscription
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND status = ?", tenantID, tenant.SubscriptionStatusActive).
		Order("created_at DESC").
		First(&s).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &s, nil
}

// DeleteByTenant removes all subscriptions for a tenant
func (r *GormSubscriptionRepository) DeleteByTenant(ctx context.Context, tenantID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Delete(&tenant.Subscription{}, "tenant_id = ?", tenantID).Error
}
