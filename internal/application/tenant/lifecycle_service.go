package tenant

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/saas/controlplane/internal/domain/shared"
	"github.com/saas/controlplane/internal/domain/tenant"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// PoolProvider hands out per-tenant storage pools. Satisfied by the pool
// manager; narrowed to an interface here so service tests can fake it.
type PoolProvider interface {
	Get(ctx context.Context, tenantID uuid.UUID, location tenant.StorageLocation) (*gorm.DB, error)
	Retire(tenantID uuid.UUID)
}

// LifecycleServiceConfig contains configuration for the lifecycle service
type LifecycleServiceConfig struct {
	// DefaultTrialDays applies when a create request does not specify a
	// trial length
	DefaultTrialDays int
	// BaseDomain is the apex domain tenant subdomains hang off. Hosts not
	// under it resolve as custom domains.
	BaseDomain string
}

// LifecycleService drives tenants through provisioning, serving, and
// teardown. Per-tenant create/delete serialization comes from conditional
// state updates in the store, not from locks held here.
type LifecycleService struct {
	tenants       tenant.Repository
	bindings      tenant.BindingRepository
	subscriptions tenant.SubscriptionRepository
	provisioner   tenant.StorageProvisioner
	cache         tenant.Cache
	pools         PoolProvider
	events        shared.EventPublisher
	logger        *zap.Logger
	cfg           LifecycleServiceConfig
}

// NewLifecycleService creates a tenant lifecycle service
func NewLifecycleService(
	tenants tenant.Repository,
	bindings tenant.BindingRepository,
	subscriptions tenant.SubscriptionRepository,
	provisioner tenant.StorageProvisioner,
	cache tenant.Cache,
	pools PoolProvider,
	events shared.EventPublisher,
	logger *zap.Logger,
	cfg LifecycleServiceConfig,
) *LifecycleService {
	return &LifecycleService{
		tenants:       tenants,
		bindings:      bindings,
		subscriptions: subscriptions,
		provisioner:   provisioner,
		cache:         cache,
		pools:         pools,
		events:        events,
		logger:        logger.Named("tenant-lifecycle"),
		cfg:           cfg,
	}
}

// CreateTenant inserts the tenant in the provisioning state, provisions
// isolated storage, then flips the row to active with a compare-and-set.
// Any failure after the insert CAS-flips the row to terminal failed so a
// half-created tenant is never left serving.
func (s *LifecycleService) CreateTenant(ctx context.Context, in CreateTenantInput) (*TenantDTO, error) {
	trialDays := s.cfg.DefaultTrialDays
	if in.TrialDays != nil {
		trialDays = *in.TrialDays
	}

	t, err := tenant.NewTenant(in.Name, in.Subdomain, tenant.PlanName(in.Plan), in.Settings, trialDays)
	if err != nil {
		return nil, err
	}

	if err := s.tenants.Create(ctx, t); err != nil {
		return nil, err
	}

	log := s.logger.With(zap.String("tenant_id", t.ID.String()), zap.String("subdomain", t.Subdomain))
	log.Info("Tenant created, provisioning storage")

	location, err := s.provisioner.Provision(ctx, t.ID)
	if err != nil {
		return nil, s.failProvisioning(ctx, t, err)
	}

	binding, err := tenant.NewPrimaryBinding(t.ID, location)
	if err == nil {
		err = s.bindings.Save(ctx, binding)
	}
	if err != nil {
		// Storage exists but the control plane cannot record it; tear the
		// orphan down before failing the tenant
		if binding == nil {
			binding = &tenant.StorageBinding{TenantID: t.ID, Location: location}
		}
		if dErr := s.provisioner.Deprovision(ctx, binding); dErr != nil {
			log.Error("Failed to tear down orphaned storage", zap.Error(dErr))
		}
		return nil, s.failProvisioning(ctx, t, err)
	}

	// The subscription lands last; a failed tenant must not keep an
	// active subscription behind
	sub, err := tenant.NewSubscription(t.ID, t.Plan)
	if err == nil {
		err = s.subscriptions.Save(ctx, sub)
	}
	if err != nil {
		if dErr := s.provisioner.Deprovision(ctx, binding); dErr != nil {
			log.Error("Failed to tear down storage after subscription failure", zap.Error(dErr))
		}
		if dErr := s.bindings.DeleteByTenant(ctx, t.ID); dErr != nil {
			log.Error("Failed to remove binding after subscription failure", zap.Error(dErr))
		}
		return nil, s.failProvisioning(ctx, t, err)
	}

	if err := s.tenants.UpdateState(ctx, t.ID, tenant.StateProvisioning, tenant.StateActive); err != nil {
		return nil, err
	}
	if err := t.Activate(); err != nil {
		return nil, err
	}

	if err := s.cache.Set(ctx, t); err != nil {
		log.Warn("Failed to prime tenant cache", zap.Error(err))
	}

	if err := s.events.Publish(ctx, tenant.NewTenantCreatedEvent(t)); err != nil {
		log.Warn("Failed to publish tenant_created", zap.Error(err))
	}

	log.Info("Tenant active", zap.String("database", location.Database))
	dto := ToTenantDTO(t)
	return &dto, nil
}

// failProvisioning CAS-flips a half-created tenant to failed and returns
// the original cause
func (s *LifecycleService) failProvisioning(ctx context.Context, t *tenant.Tenant, cause error) error {
	if err := s.tenants.UpdateState(ctx, t.ID, tenant.StateProvisioning, tenant.StateFailed); err != nil {
		s.logger.Error("Failed to mark tenant failed",
			zap.String("tenant_id", t.ID.String()), zap.Error(err))
	}
	return cause
}

// GetTenant returns a tenant by ID straight from the store
func (s *LifecycleService) GetTenant(ctx context.Context, id uuid.UUID) (*TenantDTO, error) {
	t, err := s.tenants.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	dto := ToTenantDTO(t)
	return &dto, nil
}

// GetBySubdomain is the hot read path: cache first, metadata store on a
// miss, populating the cache on the way back
func (s *LifecycleService) GetBySubdomain(ctx context.Context, subdomain string) (*tenant.Tenant, error) {
	if t, err := s.cache.Get(ctx, subdomain); err == nil && t != nil {
		return t, nil
	}

	t, err := s.tenants.FindBySubdomain(ctx, subdomain)
	if err != nil {
		return nil, err
	}

	if t.CanServeUsage() {
		if err := s.cache.Set(ctx, t); err != nil {
			s.logger.Warn("Failed to populate tenant cache",
				zap.String("subdomain", subdomain), zap.Error(err))
		}
	}
	return t, nil
}

// ListTenants returns tenants filtered by state (empty = all)
func (s *LifecycleService) ListTenants(ctx context.Context, state string, limit, offset int) ([]TenantDTO, error) {
	tenants, err := s.tenants.List(ctx, tenant.State(state), limit, offset)
	if err != nil {
		return nil, err
	}

	dtos := make([]TenantDTO, len(tenants))
	for i := range tenants {
		dtos[i] = ToTenantDTO(&tenants[i])
	}
	return dtos, nil
}

// UpdateTenant applies last-write-wins profile changes and refreshes the
// cache write-through
func (s *LifecycleService) UpdateTenant(ctx context.Context, id uuid.UUID, in UpdateTenantInput) (*TenantDTO, error) {
	t, err := s.tenants.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := t.Update(in.Name, in.CustomDomain, in.Settings, in.BillingMeta); err != nil {
		return nil, err
	}
	if err := s.tenants.Save(ctx, t); err != nil {
		return nil, err
	}

	if err := s.cache.Set(ctx, t); err != nil {
		s.logger.Warn("Failed to refresh tenant cache",
			zap.String("subdomain", t.Subdomain), zap.Error(err))
	}

	s.publishAggregateEvents(ctx, t)
	dto := ToTenantDTO(t)
	return &dto, nil
}

// ChangePlan switches a tenant to a different plan. The previous
// subscription is canceled and replaced; limit overrides are carried over
// so negotiated ceilings survive plan changes.
func (s *LifecycleService) ChangePlan(ctx context.Context, id uuid.UUID, plan string) (*TenantDTO, error) {
	t, err := s.tenants.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := t.ChangePlan(tenant.PlanName(plan)); err != nil {
		return nil, err
	}
	if err := s.tenants.Save(ctx, t); err != nil {
		return nil, err
	}

	var overrides tenant.LimitMap
	if prev, err := s.subscriptions.FindActiveByTenant(ctx, id); err == nil {
		overrides = prev.LimitOverrides
		prev.Cancel()
		if err := s.subscriptions.Save(ctx, prev); err != nil {
			return nil, err
		}
	} else if !errors.Is(err, shared.ErrNotFound) {
		return nil, err
	}

	sub, err := tenant.NewSubscription(id, t.Plan)
	if err != nil {
		return nil, err
	}
	if len(overrides) > 0 {
		sub.LimitOverrides = overrides
	}
	if err := s.subscriptions.Save(ctx, sub); err != nil {
		return nil, err
	}

	if err := s.cache.Set(ctx, t); err != nil {
		s.logger.Warn("Failed to refresh tenant cache",
			zap.String("subdomain", t.Subdomain), zap.Error(err))
	}

	s.publishAggregateEvents(ctx, t)
	dto := ToTenantDTO(t)
	return &dto, nil
}

// SetLimitOverride records a tenant-specific ceiling for a metric on the
// active subscription
func (s *LifecycleService) SetLimitOverride(ctx context.Context, id uuid.UUID, metric string, limit int64) error {
	sub, err := s.subscriptions.FindActiveByTenant(ctx, id)
	if err != nil {
		return err
	}
	if err := sub.SetOverride(metric, limit); err != nil {
		return err
	}
	return s.subscriptions.Save(ctx, sub)
}

// Suspend blocks a tenant from serving writes without tearing anything
// down. The pool stays open: suspended tenants are still metered.
func (s *LifecycleService) Suspend(ctx context.Context, id uuid.UUID) error {
	return s.transition(ctx, id, tenant.StateActive, tenant.StateSuspended)
}

// Activate reinstates a suspended tenant
func (s *LifecycleService) Activate(ctx context.Context, id uuid.UUID) error {
	return s.transition(ctx, id, tenant.StateSuspended, tenant.StateActive)
}

func (s *LifecycleService) transition(ctx context.Context, id uuid.UUID, from, to tenant.State) error {
	if err := s.tenants.UpdateState(ctx, id, from, to); err != nil {
		return err
	}

	t, err := s.tenants.FindByID(ctx, id)
	if err != nil {
		return err
	}

	if err := s.cache.Invalidate(ctx, t.Subdomain); err != nil {
		s.logger.Warn("Failed to invalidate tenant cache",
			zap.String("subdomain", t.Subdomain), zap.Error(err))
	}

	if err := s.events.Publish(ctx, tenant.NewTenantUpdatedEvent(t)); err != nil {
		s.logger.Warn("Failed to publish tenant_updated", zap.Error(err))
	}
	return nil
}

// DeleteTenant tears a tenant down: deprovision storage, retire the pool,
// then remove the rows. The deleted-state flip up front serializes
// concurrent deletes; a teardown failure leaves the flipped row in place
// so the delete can be retried (Deprovision is idempotent).
func (s *LifecycleService) DeleteTenant(ctx context.Context, id uuid.UUID) error {
	t, err := s.tenants.FindByID(ctx, id)
	if err != nil {
		return err
	}

	switch t.State {
	case tenant.StateActive, tenant.StateSuspended:
		if err := s.tenants.UpdateState(ctx, id, t.State, tenant.StateDeleted); err != nil {
			return err
		}
	case tenant.StateDeleted, tenant.StateFailed:
		// Retry of an interrupted teardown, or purge of a failed create
	default:
		return shared.NewDomainError("INVALID_STATE", "Tenant cannot be deleted while provisioning")
	}

	log := s.logger.With(zap.String("tenant_id", id.String()), zap.String("subdomain", t.Subdomain))

	if err := s.cache.Invalidate(ctx, t.Subdomain); err != nil {
		log.Warn("Failed to invalidate tenant cache", zap.Error(err))
	}

	binding, err := s.bindings.FindPrimary(ctx, id)
	if err != nil && !errors.Is(err, shared.ErrNotFound) {
		return err
	}
	if binding != nil {
		if err := s.provisioner.Deprovision(ctx, binding); err != nil {
			log.Error("Storage teardown failed, tenant row kept for retry", zap.Error(err))
			return err
		}
	}

	s.pools.Retire(id)

	if err := s.bindings.DeleteByTenant(ctx, id); err != nil {
		return err
	}
	if err := s.subscriptions.DeleteByTenant(ctx, id); err != nil {
		return err
	}
	if err := s.tenants.Delete(ctx, id); err != nil {
		return err
	}

	if err := s.events.Publish(ctx, tenant.NewTenantDeletedEvent(t)); err != nil {
		log.Warn("Failed to publish tenant_deleted", zap.Error(err))
	}

	log.Info("Tenant deleted")
	return nil
}

// ResolveTenant maps a request host to a serving tenant, its effective
// limits, and its storage pool. Deleted and failed tenants resolve to
// TenantUnavailable.
func (s *LifecycleService) ResolveTenant(ctx context.Context, hostKey string) (*TenantContext, error) {
	host := normalizeHost(hostKey)

	var t *tenant.Tenant
	var err error
	if sub, ok := s.subdomainOf(host); ok {
		t, err = s.GetBySubdomain(ctx, sub)
	} else {
		t, err = s.tenants.FindByCustomDomain(ctx, host)
	}
	if err != nil {
		return nil, err
	}

	if !t.CanServeUsage() {
		return nil, shared.ErrTenantUnavailable
	}

	limits, err := s.effectiveLimits(ctx, t)
	if err != nil {
		return nil, err
	}

	binding, err := s.bindings.FindPrimary(ctx, t.ID)
	if err != nil {
		return nil, err
	}
	db, err := s.pools.Get(ctx, t.ID, binding.Location)
	if err != nil {
		return nil, err
	}

	return &TenantContext{Tenant: t, Limits: limits, DB: db}, nil
}

// EffectiveLimits resolves the merged plan and override ceilings for a
// tenant
func (s *LifecycleService) EffectiveLimits(ctx context.Context, id uuid.UUID) (map[string]int64, error) {
	t, err := s.tenants.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.effectiveLimits(ctx, t)
}

func (s *LifecycleService) effectiveLimits(ctx context.Context, t *tenant.Tenant) (map[string]int64, error) {
	plan, err := tenant.LookupPlan(t.Plan)
	if err != nil {
		return nil, err
	}

	sub, err := s.subscriptions.FindActiveByTenant(ctx, t.ID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return tenant.MergeLimits(plan, nil), nil
		}
		return nil, err
	}
	return tenant.MergeLimits(plan, sub.LimitOverrides), nil
}

// normalizeHost lowercases and strips any port from a request host
func normalizeHost(host string) string {
	host = strings.ToLower(strings.TrimSpace(host))
	if i := strings.LastIndex(host, ":"); i >= 0 && !strings.Contains(host[i:], "]") {
		host = host[:i]
	}
	return host
}

// subdomainOf extracts the tenant label when host sits directly under the
// configured base domain
func (s *LifecycleService) subdomainOf(host string) (string, bool) {
	if s.cfg.BaseDomain == "" {
		return "", false
	}
	suffix := "." + strings.ToLower(s.cfg.BaseDomain)
	if !strings.HasSuffix(host, suffix) {
		return "", false
	}
	label := strings.TrimSuffix(host, suffix)
	if label == "" || strings.Contains(label, ".") {
		return "", false
	}
	return label, true
}

// publishAggregateEvents drains and publishes the events an aggregate
// collected during a mutation
func (s *LifecycleService) publishAggregateEvents(ctx context.Context, t *tenant.Tenant) {
	events := t.GetDomainEvents()
	if len(events) == 0 {
		return
	}
	t.ClearDomainEvents()

	if err := s.events.Publish(ctx, events...); err != nil {
		s.logger.Warn("Failed to publish tenant events",
			zap.String("tenant_id", t.ID.String()), zap.Error(err))
	}
}
