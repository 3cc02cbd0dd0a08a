package tenant

import (
	"fmt"
	"net/url"

	"github.com/google/uuid"
	"github.com/saas/controlplane/internal/domain/shared"
)

// BindingState represents the lifecycle state of a storage binding
type BindingState string

const (
	BindingStateActive   BindingState = "active"
	BindingStateInactive BindingState = "inactive"
)

// StorageLocation describes where a tenant's isolated storage lives and how
// to reach it. Credentials belong to the tenant's dedicated principal, not
// to the control plane's admin account.
type StorageLocation struct {
	Host     string `gorm:"type:varchar(255);not null"`
	Port     int    `gorm:"not null"`
	Database string `gorm:"type:varchar(63);not null"`
	User     string `gorm:"type:varchar(63);not null"`
	Password string `gorm:"type:varchar(255);not null"`
}

// DSN returns the connection string for the location with escaped values
func (l StorageLocation) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(l.User, l.Password),
		Host:   fmt.Sprintf("%s:%d", l.Host, l.Port),
		Path:   l.Database,
	}
	q := u.Query()
	q.Set("sslmode", "disable")
	u.RawQuery = q.Encode()
	return u.String()
}

// StorageBinding links a tenant to one provisioned storage instance.
// Exactly one binding per tenant is primary and active after a successful
// provision; the model allows additional bindings for future replicas.
type StorageBinding struct {
	shared.BaseEntity
	TenantID  uuid.UUID       `gorm:"type:uuid;not null;index"`
	Location  StorageLocation `gorm:"embedded;embeddedPrefix:storage_"`
	IsPrimary bool            `gorm:"not null;default:false"`
	State     BindingState    `gorm:"type:varchar(20);not null;default:'active'"`
}

// TableName returns the table name for GORM
func (StorageBinding) TableName() string {
	return "tenant_storage_bindings"
}

// NewPrimaryBinding creates the primary, active binding for a tenant's
// freshly provisioned storage
func NewPrimaryBinding(tenantID uuid.UUID, location StorageLocation) (*StorageBinding, error) {
	if tenantID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_TENANT", "Tenant ID cannot be empty")
	}
	if location.Host == "" || location.Database == "" || location.User == "" {
		return nil, shared.NewDomainError("INVALID_LOCATION", "Storage location is incomplete")
	}
	return &StorageBinding{
		BaseEntity: shared.NewBaseEntity(),
		TenantID:   tenantID,
		Location:   location,
		IsPrimary:  true,
		State:      BindingStateActive,
	}, nil
}

// Deactivate marks the binding unusable; called after storage teardown
func (b *StorageBinding) Deactivate() {
	b.State = BindingStateInactive
	b.Touch()
}

// IsUsable returns true if the binding can back a connection pool
func (b *StorageBinding) IsUsable() bool {
	return b.State == BindingStateActive
}
