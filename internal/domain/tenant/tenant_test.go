package tenant

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTenant(t *testing.T) {
	t.Run("creates tenant in provisioning state", func(t *testing.T) {
		tn, err := NewTenant("Acme Corp", "acme", PlanPro, "", 0)

		require.NoError(t, err)
		assert.Equal(t, "Acme Corp", tn.Name)
		assert.Equal(t, "acme", tn.Subdomain)
		assert.Equal(t, PlanPro, tn.Plan)
		assert.Equal(t, StateProvisioning, tn.State)
		assert.Equal(t, "{}", tn.Settings)
		assert.Nil(t, tn.TrialEndsAt)
	})

	t.Run("lowercases subdomain", func(t *testing.T) {
		tn, err := NewTenant("Acme", "AcMe", PlanFree, "", 0)

		require.NoError(t, err)
		assert.Equal(t, "acme", tn.Subdomain)
	})

	t.Run("sets trial expiry when trial days given", func(t *testing.T) {
		tn, err := NewTenant("Acme", "acme", PlanBasic, "", 14)

		require.NoError(t, err)
		require.NotNil(t, tn.TrialEndsAt)
		assert.WithinDuration(t, time.Now().AddDate(0, 0, 14), *tn.TrialEndsAt, time.Minute)
	})

	t.Run("fails with empty name", func(t *testing.T) {
		tn, err := NewTenant("", "acme", PlanFree, "", 0)

		assert.Error(t, err)
		assert.Nil(t, tn)
	})

	t.Run("fails with unknown plan", func(t *testing.T) {
		tn, err := NewTenant("Acme", "acme", PlanName("platinum"), "", 0)

		assert.Error(t, err)
		assert.Nil(t, tn)
	})
}

func TestValidateSubdomain(t *testing.T) {
	valid := []string{"acme", "a", "acme-corp", "acme42", "42acme"}
	for _, s := range valid {
		assert.NoError(t, ValidateSubdomain(s), s)
	}

	invalid := []string{"", "-acme", "acme-", "ac_me", "ac.me", "ACME!", "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"}
	for _, s := range invalid {
		assert.Error(t, ValidateSubdomain(s), s)
	}
}

func TestLifecycleTransitions(t *testing.T) {
	newProvisioning := func() *Tenant {
		tn, err := NewTenant("Acme", "acme", PlanBasic, "", 0)
		require.NoError(t, err)
		return tn
	}

	t.Run("provisioning to active", func(t *testing.T) {
		tn := newProvisioning()
		require.NoError(t, tn.Activate())
		assert.Equal(t, StateActive, tn.State)
	})

	t.Run("provisioning to failed", func(t *testing.T) {
		tn := newProvisioning()
		require.NoError(t, tn.MarkFailed())
		assert.Equal(t, StateFailed, tn.State)
		assert.True(t, tn.State.IsTerminal())
	})

	t.Run("active to suspended and back", func(t *testing.T) {
		tn := newProvisioning()
		require.NoError(t, tn.Activate())
		require.NoError(t, tn.Suspend())
		assert.Equal(t, StateSuspended, tn.State)
		require.NoError(t, tn.Activate())
		assert.Equal(t, StateActive, tn.State)
	})

	t.Run("suspended to deleted", func(t *testing.T) {
		tn := newProvisioning()
		require.NoError(t, tn.Activate())
		require.NoError(t, tn.Suspend())
		require.NoError(t, tn.MarkDeleted())
		assert.True(t, tn.State.IsTerminal())
	})

	t.Run("failed only reachable from provisioning", func(t *testing.T) {
		tn := newProvisioning()
		require.NoError(t, tn.Activate())
		assert.Error(t, tn.MarkFailed())
	})

	t.Run("provisioning cannot be deleted directly", func(t *testing.T) {
		tn := newProvisioning()
		assert.Error(t, tn.MarkDeleted())
	})

	t.Run("terminal states reject everything", func(t *testing.T) {
		tn := newProvisioning()
		require.NoError(t, tn.MarkFailed())
		assert.Error(t, tn.Activate())
		assert.Error(t, tn.Suspend())
		assert.Error(t, tn.MarkDeleted())
	})
}

func TestTenant_Update(t *testing.T) {
	t.Run("applies partial fields", func(t *testing.T) {
		tn, err := NewTenant("Acme", "acme", PlanBasic, "", 0)
		require.NoError(t, err)
		require.NoError(t, tn.Activate())

		name := "Acme Inc"
		domain := "App.Acme.COM"
		require.NoError(t, tn.Update(&name, &domain, nil, nil))

		assert.Equal(t, "Acme Inc", tn.Name)
		assert.Equal(t, "app.acme.com", tn.CustomDomain)
	})

	t.Run("rejects updates on terminal tenants", func(t *testing.T) {
		tn, err := NewTenant("Acme", "acme", PlanBasic, "", 0)
		require.NoError(t, err)
		require.NoError(t, tn.MarkFailed())

		name := "Acme Inc"
		assert.Error(t, tn.Update(&name, nil, nil, nil))
	})
}

func TestTenant_CanServeUsage(t *testing.T) {
	tn, err := NewTenant("Acme", "acme", PlanBasic, "", 0)
	require.NoError(t, err)
	assert.False(t, tn.CanServeUsage())

	require.NoError(t, tn.Activate())
	assert.True(t, tn.CanServeUsage())

	require.NoError(t, tn.Suspend())
	assert.True(t, tn.CanServeUsage())

	require.NoError(t, tn.MarkDeleted())
	assert.False(t, tn.CanServeUsage())
}
