package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/saas/controlplane/internal/domain/shared"
	"github.com/saas/controlplane/internal/domain/tenant"
	"gorm.io/gorm"
)

// GormBindingRepository implements tenant.BindingRepository using GORM
type GormBindingRepository struct {
	db *gorm.DB
}

// NewGormBindingRepository creates a new GormBindingRepository
func NewGormBindingRepository(db *gorm.DB) *GormBindingRepository {
	return &GormBindingRepository{db: db}
}

// Save creates or updates a binding
func (r *GormBindingRepository) Save(ctx context.Context, b *tenant.StorageBinding) error {
	return r.db.WithContext(ctx).Save(b).Error
}

// FindPrimary returns the primary binding for a tenant
func (r *GormBindingRepository) FindPrimary(ctx context.Context, tenantID uuid.UUID) (*tenant.StorageBinding, error) {
	var b tenant.StorageBinding
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND is_primary = ?", tenantID, true).
		First(&b).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &b, nil
}

// FindByTenant returns all bindings for a tenant
func (r *GormBindingRepository) FindByTenant(ctx context.Context, tenantID uuid.UUID) ([]tenant.StorageBinding, error) {
	var bindings []tenant.StorageBinding
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Find(&bindings).Error; err != nil {
		return nil, err
	}
	return bindings, nil
}

// DeleteByTenant removes all bindings for a tenant
func (r *GormBindingRepository) DeleteByTenant(ctx context.Context, tenantID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Delete(&tenant.StorageBinding{}, "tenant_id = ?", tenantID).Error
}
