package tenant

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines the interface for tenant persistence. The metadata
// store is the sole adjudicator of uniqueness constraints: Create returns
// shared.ErrConflict on a duplicate subdomain.
type Repository interface {
	// Create inserts a new tenant row
	Create(ctx context.Context, t *Tenant) error

	// FindByID finds a tenant by its ID
	FindByID(ctx context.Context, id uuid.UUID) (*Tenant, error)

	// FindBySubdomain finds a tenant by its unique subdomain
	FindBySubdomain(ctx context.Context, subdomain string) (*Tenant, error)

	// FindByCustomDomain finds a tenant by its custom domain
	FindByCustomDomain(ctx context.Context, domain string) (*Tenant, error)

	// Save persists changes to an existing tenant
	Save(ctx context.Context, t *Tenant) error

	// UpdateState transitions a tenant's state only if the stored state
	// still matches from. Returns shared.ErrConflict when the compare
	// fails; this is what serializes create/delete per tenant without a
	// global lock.
	UpdateState(ctx context.Context, id uuid.UUID, from, to State) error

	// Delete removes the tenant row. Only legal once the tenant's storage
	// has been torn down.
	Delete(ctx context.Context, id uuid.UUID) error

	// List returns tenants filtered by state (empty state = all)
	List(ctx context.Context, state State, limit, offset int) ([]Tenant, error)

	// CountByState counts tenants in a given state
	CountByState(ctx context.Context, state State) (int64, error)
}

// BindingRepository defines the interface for storage binding persistence
type BindingRepository interface {
	// Save creates or updates a binding
	Save(ctx context.Context, b *StorageBinding) error

	// FindPrimary returns the primary binding for a tenant
	FindPrimary(ctx context.Context, tenantID uuid.UUID) (*StorageBinding, error)

	// FindByTenant returns all bindings for a tenant
	FindByTenant(ctx context.Context, tenantID uuid.UUID) ([]StorageBinding, error)

	// DeleteByTenant removes all bindings for a tenant
	DeleteByTenant(ctx context.Context, tenantID uuid.UUID) error
}

// SubscriptionRepository defines the interface for subscription persistence.
// The store enforces "at most one active subscription per tenant".
type SubscriptionRepository interface {
	// Save creates or updates a subscription
	Save(ctx context.Context, s *Subscription) error

	// FindActiveByTenant returns the tenant's single active subscription
	FindActiveByTenant(ctx context.Context, tenantID uuid.UUID) (*Subscription, error)

	// DeleteByTenant removes all subscriptions for a tenant
	DeleteByTenant(ctx context.Context, tenantID uuid.UUID) error
}

// StorageProvisioner creates and destroys isolated per-tenant storage.
// Implementations treat "create database + principal + grant" as an
// atomic-enough primitive with explicit compensating cleanup on partial
// failure, and Deprovision is idempotent to support retried deletes.
type StorageProvisioner interface {
	// Provision creates an isolated storage instance, a dedicated
	// principal, grants, and the baseline schema for the tenant
	Provision(ctx context.Context, tenantID uuid.UUID) (StorageLocation, error)

	// Deprovision drops the instance and principal; tolerant of
	// already-gone resources
	Deprovision(ctx context.Context, binding *StorageBinding) error
}

// Cache is the read-through tenant lookup cache keyed by subdomain.
// A nil result with nil error is a miss; errors from the distributed tier
// are soft (callers fall through to the store).
type Cache interface {
	// Get returns the cached tenant for a subdomain, or nil on miss
	Get(ctx context.Context, subdomain string) (*Tenant, error)

	// Set stores the tenant under its subdomain key
	Set(ctx context.Context, t *Tenant) error

	// Invalidate removes the cache entry for a subdomain
	Invalidate(ctx context.Context, subdomain string) error
}
