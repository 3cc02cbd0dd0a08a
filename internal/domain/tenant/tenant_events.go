package tenant

import (
	"time"

	"github.com/google/uuid"
	"github.com/saas/controlplane/internal/domain/shared"
)

// Aggregate type constant
const AggregateTypeTenant = "Tenant"

// Event type constants. These are the wire names consumed by notification
// and billing collaborators.
const (
	EventTypeTenantCreated = "tenant_created"
	EventTypeTenantUpdated = "tenant_updated"
	EventTypeTenantDeleted = "tenant_deleted"
)

// Snapshot is the tenant state carried on lifecycle events
type Snapshot struct {
	ID           uuid.UUID  `json:"id"`
	Name         string     `json:"name"`
	Subdomain    string     `json:"subdomain"`
	CustomDomain string     `json:"custom_domain,omitempty"`
	Plan         PlanName   `json:"plan"`
	State        State      `json:"state"`
	TrialEndsAt  *time.Time `json:"trial_ends_at,omitempty"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
}

// SnapshotOf captures the event-visible state of a tenant
func SnapshotOf(t *Tenant) Snapshot {
	return Snapshot{
		ID:           t.ID,
		Name:         t.Name,
		Subdomain:    t.Subdomain,
		CustomDomain: t.CustomDomain,
		Plan:         t.Plan,
		State:        t.State,
		TrialEndsAt:  t.TrialEndsAt,
		ExpiresAt:    t.ExpiresAt,
	}
}

// TenantCreatedEvent is published once a tenant is fully provisioned
type TenantCreatedEvent struct {
	shared.BaseDomainEvent
	Tenant Snapshot `json:"tenant"`
}

// NewTenantCreatedEvent creates a new TenantCreatedEvent
func NewTenantCreatedEvent(t *Tenant) *TenantCreatedEvent {
	return &TenantCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeTenantCreated, AggregateTypeTenant, t.ID, t.ID),
		Tenant:          SnapshotOf(t),
	}
}

// TenantUpdatedEvent is published when a tenant's profile, plan, or
// suspension state changes
type TenantUpdatedEvent struct {
	shared.BaseDomainEvent
	Tenant Snapshot `json:"tenant"`
}

// NewTenantUpdatedEvent creates a new TenantUpdatedEvent
func NewTenantUpdatedEvent(t *Tenant) *TenantUpdatedEvent {
	return &TenantUpdatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeTenantUpdated, AggregateTypeTenant, t.ID, t.ID),
		Tenant:          SnapshotOf(t),
	}
}

// TenantDeletedEvent is published after storage teardown and row removal
type TenantDeletedEvent struct {
	shared.BaseDomainEvent
	Tenant Snapshot `json:"tenant"`
}

// NewTenantDeletedEvent creates a new TenantDeletedEvent
func NewTenantDeletedEvent(t *Tenant) *TenantDeletedEvent {
	return &TenantDeletedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeTenantDeleted, AggregateTypeTenant, t.ID, t.ID),
		Tenant:          SnapshotOf(t),
	}
}
