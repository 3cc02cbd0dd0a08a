package tenant

import (
	"time"

	"github.com/google/uuid"
	"github.com/saas/controlplane/internal/domain/tenant"
	"gorm.io/gorm"
)

// CreateTenantInput contains input for creating a tenant
type CreateTenantInput struct {
	Name      string
	Subdomain string
	Plan      string
	Settings  string
	TrialDays *int // nil = configured default, 0 = no trial
}

// UpdateTenantInput contains partial updates; nil fields are untouched
type UpdateTenantInput struct {
	Name         *string
	CustomDomain *string
	Settings     *string
	BillingMeta  *string
}

// TenantDTO is the API representation of a tenant
type TenantDTO struct {
	ID           uuid.UUID  `json:"id"`
	Name         string     `json:"name"`
	Subdomain    string     `json:"subdomain"`
	CustomDomain string     `json:"custom_domain,omitempty"`
	Plan         string     `json:"plan"`
	State        string     `json:"state"`
	Settings     string     `json:"settings"`
	TrialEndsAt  *time.Time `json:"trial_ends_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// ToTenantDTO converts a domain tenant to its API representation
func ToTenantDTO(t *tenant.Tenant) TenantDTO {
	return TenantDTO{
		ID:           t.ID,
		Name:         t.Name,
		Subdomain:    t.Subdomain,
		CustomDomain: t.CustomDomain,
		Plan:         string(t.Plan),
		State:        string(t.State),
		Settings:     t.Settings,
		TrialEndsAt:  t.TrialEndsAt,
		CreatedAt:    t.CreatedAt,
		UpdatedAt:    t.UpdatedAt,
	}
}

// TenantContext is what request routing needs to serve one tenant request:
// the resolved tenant, its effective limits, and its storage pool handle.
type TenantContext struct {
	Tenant *tenant.Tenant
	Limits map[string]int64
	DB     *gorm.DB
}
