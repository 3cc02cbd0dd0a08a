package persistence

import (
	"context"
	"testing"

	"github.com/saas/controlplane/internal/domain/shared"
	"github.com/saas/controlplane/internal/domain/tenant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGormSubscriptionRepository_SaveAndFindActive(t *testing.T) {
	db := setupTenantTestDB(t)
	repo := NewGormSubscriptionRepository(db)
	ctx := context.Background()

	tn := mustTenant(t, "acme")
	sub, err := tenant.NewSubscription(tn.ID, tenant.PlanBasic)
	require.NoError(t, err)
	require.NoError(t, repo.Save(ctx, sub))

	found, err := repo.FindActiveByTenant(ctx, tn.ID)
	require.NoError(t, err)
	assert.Equal(t, sub.ID, found.ID)
	assert.Equal(t, tenant.PlanBasic, found.Plan)

	t.Run("no active subscription is not found", func(t *testing.T) {
		other := mustTenant(t, "other")
		_, err := repo.FindActiveByTenant(ctx, other.ID)
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})
}

func TestGormSubscriptionRepository_SingleActivePerTenant(t *testing.T) {
	db := setupTenantTestDB(t)
	repo := NewGormSubscriptionRepository(db)
	ctx := context.Background()

	tn := mustTenant(t, "acme")
	first, err := tenant.NewSubscription(tn.ID, tenant.PlanBasic)
	require.NoError(t, err)
	require.NoError(t, repo.Save(ctx, first))

	// A second active row for the same tenant must be rejected by the
	// store, not silently shadow the first
	second, err := tenant.NewSubscription(tn.ID, tenant.PlanPro)
	require.NoError(t, err)
	err = repo.Save(ctx, second)
	assert.ErrorIs(t, err, shared.ErrConflict)

	var active int64
	require.NoError(t, db.Model(&tenant.Subscription{}).
		Where("tenant_id = ? AND status = ?", tn.ID, tenant.SubscriptionStatusActive).
		Count(&active).Error)
	assert.Equal(t, int64(1), active)

	t.Run("canceling the first admits a replacement", func(t *testing.T) {
		first.Cancel()
		require.NoError(t, repo.Save(ctx, first))
		require.NoError(t, repo.Save(ctx, second))

		found, err := repo.FindActiveByTenant(ctx, tn.ID)
		require.NoError(t, err)
		assert.Equal(t, second.ID, found.ID)
		assert.Equal(t, tenant.PlanPro, found.Plan)
	})

	t.Run("different tenants are independent", func(t *testing.T) {
		other := mustTenant(t, "other")
		sub, err := tenant.NewSubscription(other.ID, tenant.PlanFree)
		require.NoError(t, err)
		assert.NoError(t, repo.Save(ctx, sub))
	})
}

func TestGormSubscriptionRepository_DeleteByTenant(t *testing.T) {
	db := setupTenantTestDB(t)
	repo := NewGormSubscriptionRepository(db)
	ctx := context.Background()

	tn := mustTenant(t, "acme")
	sub, err := tenant.NewSubscription(tn.ID, tenant.PlanBasic)
	require.NoError(t, err)
	require.NoError(t, repo.Save(ctx, sub))

	require.NoError(t, repo.DeleteByTenant(ctx, tn.ID))
	_, err = repo.FindActiveByTenant(ctx, tn.ID)
	assert.ErrorIs(t, err, shared.ErrNotFound)
}
