package tenant

import (
	"strings"
	"time"

	"github.com/saas/controlplane/internal/domain/shared"
)

// State represents the lifecycle state of a tenant
type State string

const (
	// StateProvisioning is the initial state while storage is being created
	StateProvisioning State = "provisioning"
	// StateActive means the tenant is fully provisioned and serving
	StateActive State = "active"
	// StateSuspended means the tenant is blocked for quota/billing reasons
	StateSuspended State = "suspended"
	// StateDeleted is terminal; storage has been torn down
	StateDeleted State = "deleted"
	// StateFailed is terminal; provisioning did not complete
	StateFailed State = "failed"
)

// transitions enumerates the legal lifecycle moves. failed is reachable only
// from provisioning; deleted and failed are terminal.
var transitions = map[State][]State{
	StateProvisioning: {StateActive, StateFailed},
	StateActive:       {StateSuspended, StateDeleted},
	StateSuspended:    {StateActive, StateDeleted},
}

// CanTransition reports whether moving from one state to another is legal
func CanTransition(from, to State) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal returns true for states that permit no further transitions
func (s State) IsTerminal() bool {
	return s == StateDeleted || s == StateFailed
}

// Tenant represents an isolated customer account in the control plane.
// It is the aggregate root for lifecycle operations; the row is never
// removed until the isolated storage has been torn down.
type Tenant struct {
	shared.BaseAggregateRoot
	Name         string   `gorm:"type:varchar(200);not null"`
	Subdomain    string   `gorm:"type:varchar(63);not null;uniqueIndex"`
	CustomDomain string   `gorm:"type:varchar(255)"`
	Plan         PlanName `gorm:"type:varchar(20);not null;default:'free'"`
	State        State    `gorm:"type:varchar(20);not null;default:'provisioning'"`
	Settings     string   `gorm:"type:jsonb;default:'{}'"`
	BillingMeta  string   `gorm:"type:jsonb;default:'{}'"`
	TrialEndsAt  *time.Time
	ExpiresAt    *time.Time `gorm:"index"`
}

// TableName returns the table name for GORM
func (Tenant) TableName() string {
	return "tenants"
}

// NewTenant creates a tenant in the provisioning state. The caller has
// already validated the subdomain as a legal host label; validation here is
// a defense against programmatic misuse, not user input handling.
func NewTenant(name, subdomain string, plan PlanName, settings string, trialDays int) (*Tenant, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}
	if err := ValidateSubdomain(subdomain); err != nil {
		return nil, err
	}
	if !plan.IsValid() {
		return nil, shared.NewDomainError("INVALID_PLAN", "Unknown subscription plan: "+string(plan))
	}
	if settings == "" {
		settings = "{}"
	}

	t := &Tenant{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Name:              name,
		Subdomain:         strings.ToLower(subdomain),
		Plan:              plan,
		State:             StateProvisioning,
		Settings:          settings,
		BillingMeta:       "{}",
	}

	if trialDays > 0 {
		trialEnds := time.Now().AddDate(0, 0, trialDays)
		t.TrialEndsAt = &trialEnds
	}

	return t, nil
}

// Activate flips the tenant to active. Valid from provisioning (initial
// bring-up) and suspended (reinstatement).
func (t *Tenant) Activate() error {
	if !CanTransition(t.State, StateActive) {
		return shared.NewDomainError("INVALID_STATE", "Tenant cannot be activated from state "+string(t.State))
	}
	t.State = StateActive
	t.touch()
	return nil
}

// Suspend blocks the tenant for quota or billing reasons
func (t *Tenant) Suspend() error {
	if !CanTransition(t.State, StateSuspended) {
		return shared.NewDomainError("INVALID_STATE", "Tenant cannot be suspended from state "+string(t.State))
	}
	t.State = StateSuspended
	t.touch()
	t.AddDomainEvent(NewTenantUpdatedEvent(t))
	return nil
}

// MarkFailed records a provisioning failure. Only reachable from
// provisioning so a half-created tenant is never left in limbo.
func (t *Tenant) MarkFailed() error {
	if !CanTransition(t.State, StateFailed) {
		return shared.NewDomainError("INVALID_STATE", "Tenant cannot be failed from state "+string(t.State))
	}
	t.State = StateFailed
	t.touch()
	return nil
}

// MarkDeleted moves the tenant to the terminal deleted state. Storage must
// already be torn down when this is called.
func (t *Tenant) MarkDeleted() error {
	if !CanTransition(t.State, StateDeleted) {
		return shared.NewDomainError("INVALID_STATE", "Tenant cannot be deleted from state "+string(t.State))
	}
	t.State = StateDeleted
	t.touch()
	return nil
}

// Update applies last-write-wins changes to the mutable profile fields.
// Terminal tenants reject updates.
func (t *Tenant) Update(name, customDomain, settings, billingMeta *string) error {
	if t.State.IsTerminal() {
		return shared.ErrTenantUnavailable
	}
	if name != nil {
		if err := validateName(*name); err != nil {
			return err
		}
		t.Name = *name
	}
	if customDomain != nil {
		t.CustomDomain = strings.ToLower(strings.TrimSpace(*customDomain))
	}
	if settings != nil {
		t.Settings = *settings
	}
	if billingMeta != nil {
		t.BillingMeta = *billingMeta
	}
	t.touch()
	t.AddDomainEvent(NewTenantUpdatedEvent(t))
	return nil
}

// ChangePlan switches the subscription plan recorded on the tenant
func (t *Tenant) ChangePlan(plan PlanName) error {
	if t.State.IsTerminal() {
		return shared.ErrTenantUnavailable
	}
	if !plan.IsValid() {
		return shared.NewDomainError("INVALID_PLAN", "Unknown subscription plan: "+string(plan))
	}
	t.Plan = plan
	t.touch()
	t.AddDomainEvent(NewTenantUpdatedEvent(t))
	return nil
}

// SetExpiration sets the hard-expiry timestamp
func (t *Tenant) SetExpiration(expiresAt time.Time) {
	t.ExpiresAt = &expiresAt
	t.touch()
}

// IsActive returns true if the tenant is active
func (t *Tenant) IsActive() bool {
	return t.State == StateActive
}

// CanServeUsage reports whether usage may be recorded or quota checked.
// Deleted/failed tenants must reject such calls.
func (t *Tenant) CanServeUsage() bool {
	return t.State == StateActive || t.State == StateSuspended
}

// IsTrialExpired returns true if the trial window has lapsed
func (t *Tenant) IsTrialExpired() bool {
	return t.TrialEndsAt != nil && time.Now().After(*t.TrialEndsAt)
}

func (t *Tenant) touch() {
	t.Touch()
	t.IncrementVersion()
}

func validateName(name string) error {
	if name == "" {
		return shared.NewDomainError("INVALID_NAME", "Tenant name cannot be empty")
	}
	if len(name) > 200 {
		return shared.NewDomainError("INVALID_NAME", "Tenant name cannot exceed 200 characters")
	}
	return nil
}

// ValidateSubdomain checks that a subdomain is a legal DNS host label:
// 1-63 chars, lowercase alphanumerics and hyphens, no leading or trailing
// hyphen.
func ValidateSubdomain(subdomain string) error {
	s := strings.ToLower(subdomain)
	if s == "" || len(s) > 63 {
		return shared.NewDomainError("INVALID_SUBDOMAIN", "Subdomain must be 1-63 characters")
	}
	if s[0] == '-' || s[len(s)-1] == '-' {
		return shared.NewDomainError("INVALID_SUBDOMAIN", "Subdomain cannot start or end with a hyphen")
	}
	for _, r := range s {
		if !((r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-') {
			return shared.NewDomainError("INVALID_SUBDOMAIN", "Subdomain can only contain lowercase letters, digits, and hyphens")
		}
	}
	return nil
}
