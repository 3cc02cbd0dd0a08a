package tenant

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSubscription(t *testing.T) {
	t.Run("creates active monthly subscription", func(t *testing.T) {
		sub, err := NewSubscription(uuid.New(), PlanPro)

		require.NoError(t, err)
		assert.Equal(t, PlanPro, sub.Plan)
		assert.True(t, sub.IsActive())
		assert.Equal(t, 1, sub.CurrentPeriodStart.Day())
		assert.True(t, sub.CurrentPeriodEnd.After(sub.CurrentPeriodStart))
	})

	t.Run("fails with nil tenant id", func(t *testing.T) {
		_, err := NewSubscription(uuid.Nil, PlanPro)
		assert.Error(t, err)
	})

	t.Run("fails with unknown plan", func(t *testing.T) {
		_, err := NewSubscription(uuid.New(), PlanName("platinum"))
		assert.Error(t, err)
	})
}

func TestSubscription_EffectiveLimit(t *testing.T) {
	sub, err := NewSubscription(uuid.New(), PlanBasic)
	require.NoError(t, err)

	t.Run("falls back to plan catalog without overrides", func(t *testing.T) {
		basic, err := LookupPlan(PlanBasic)
		require.NoError(t, err)
		assert.Equal(t, basic.LimitFor(MetricSeats), sub.EffectiveLimit(MetricSeats))
	})

	t.Run("override wins over catalog", func(t *testing.T) {
		require.NoError(t, sub.SetOverride(MetricSeats, 42))
		assert.Equal(t, int64(42), sub.EffectiveLimit(MetricSeats))
	})

	t.Run("override can grant unlimited", func(t *testing.T) {
		require.NoError(t, sub.SetOverride(MetricAPICalls, Unlimited))
		assert.Equal(t, Unlimited, sub.EffectiveLimit(MetricAPICalls))
	})

	t.Run("rejects limits below -1", func(t *testing.T) {
		assert.Error(t, sub.SetOverride(MetricSeats, -2))
	})
}

func TestSubscription_AdvancePeriod(t *testing.T) {
	sub, err := NewSubscription(uuid.New(), PlanFree)
	require.NoError(t, err)

	t.Run("no-op inside the current window", func(t *testing.T) {
		assert.False(t, sub.AdvancePeriod(sub.CurrentPeriodStart.AddDate(0, 0, 10)))
	})

	t.Run("rolls forward past the window end", func(t *testing.T) {
		next := sub.CurrentPeriodEnd.Add(time.Hour)
		require.True(t, sub.AdvancePeriod(next))
		assert.Equal(t, next.Month(), sub.CurrentPeriodStart.Month())
		assert.Equal(t, 1, sub.CurrentPeriodStart.Day())
	})
}

func TestSubscription_Cancel(t *testing.T) {
	sub, err := NewSubscription(uuid.New(), PlanFree)
	require.NoError(t, err)

	sub.Cancel()
	assert.False(t, sub.IsActive())
}
