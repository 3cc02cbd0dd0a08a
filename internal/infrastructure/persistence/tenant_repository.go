package persistence

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/saas/controlplane/internal/domain/shared"
	"github.com/saas/controlplane/internal/domain/tenant"
	"gorm.io/gorm"
)

// GormTenantRepository implements tenant.Repository using GORM
type GormTenantRepository struct {
	db *gorm.DB
}

// NewGormTenantRepository creates a new GormTenantRepository
func NewGormTenantRepository(db *gorm.DB) *GormTenantRepository {
	return &GormTenantRepository{db: db}
}

// Create inserts a new tenant row. Duplicate subdomains surface as
// shared.ErrConflict; the unique index is the arbiter under races.
func (r *GormTenantRepository) Create(ctx context.Context, t *tenant.Tenant) error {
	if err := r.db.WithContext(ctx).Create(t).Error; err != nil {
		if isUniqueViolation(err) {
			return shared.ErrConflict
		}
		return err
	}
	return nil
}

// FindByID finds a tenant by its ID
func (r *GormTenantRepository) FindByID(ctx context.Context, id uuid.UUID) (*tenant.Tenant, error) {
	var t tenant.Tenant
	if err := r.db.WithContext(ctx).First(&t, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &t, nil
}

// FindBySubdomain finds a tenant by its unique subdomain
func (r *GormTenantRepository) FindBySubdomain(ctx context.Context, subdomain string) (*tenant.Tenant, error) {
	var t tenant.Tenant
	if err := r.db.WithContext(ctx).
		Where("subdomain = ?", strings.ToLower(subdomain)).
		First(&t).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &t, nil
}

// FindByCustomDomain finds a tenant by its custom domain
func (r *GormTenantRepository) FindByCustomDomain(ctx context.Context, domain string) (*tenant.Tenant, error) {
	if domain == "" {
		return nil, shared.ErrNotFound
	}
	var t tenant.Tenant
	if err := r.db.WithContext(ctx).
		Where("custom_domain = ?", strings.ToLower(domain)).
		First(&t).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &t, nil
}

// Save persists changes to an existing tenant
func (r *GormTenantRepository) Save(ctx context.Context, t *tenant.Tenant) error {
	if err := r.db.WithContext(ctx).Save(t).Error; err != nil {
		if isUniqueViolation(err) {
			return shared.ErrConflict
		}
		return err
	}
	return nil
}

// UpdateState performs a compare-and-set on the tenant's state column.
// The WHERE clause carries the expected state; zero rows affected means
// some other worker got there first.
func (r *GormTenantRepository) UpdateState(ctx context.Context, id uuid.UUID, from, to tenant.State) error {
	result := r.db.WithContext(ctx).
		Model(&tenant.Tenant{}).
		Where("id = ? AND state = ?", id, from).
		Updates(map[string]any{
			"state":      to,
			"updated_at": time.Now(),
			"version":    gorm.Expr("version + 1"),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		// Distinguish "gone" from "state moved" for callers
		var count int64
		if err := r.db.WithContext(ctx).
			Model(&tenant.Tenant{}).
			Where("id = ?", id).
			Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return shared.ErrNotFound
		}
		return shared.ErrConflict
	}
	return nil
}

// Delete removes the tenant row
func (r *GormTenantRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Delete(&tenant.Tenant{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// List returns tenants filtered by state, newest first
func (r *GormTenantRepository) List(ctx context.Context, state tenant.State, limit, offset int) ([]tenant.Tenant, error) {
	query := r.db.WithContext(ctx).Model(&tenant.Tenant{})
	if state != "" {
		query = query.Where("state = ?", state)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}

	var tenants []tenant.Tenant
	if err := query.Offset(offset).Order("created_at DESC").Find(&tenants).Error; err != nil {
		return nil, err
	}
	return tenants, nil
}

// CountByState counts tenants in a given state
func (r *GormTenantRepository) CountByState(ctx context.Context, state tenant.State) (int64, error) {
	var count int64
	query := r.db.WithContext(ctx).Model(&tenant.Tenant{})
	if state != "" {
		query = query.Where("state = ?", state)
	}
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// isUniqueViolation reports whether err is a unique constraint violation.
// Matches both GORM's translated error and the raw postgres/sqlite text so
// tests on sqlite behave the same way.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "UNIQUE constraint failed")
}
