package event

import (
	"context"
	"errors"
	"testing"

	"github.com/saas/controlplane/internal/domain/shared"
	"github.com/saas/controlplane/internal/domain/tenant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// recordingHandler collects the events it receives
type recordingHandler struct {
	types    []string
	received []shared.DomainEvent
	fail     bool
	panic    bool
}

func (h *recordingHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	if h.panic {
		panic("handler exploded")
	}
	h.received = append(h.received, event)
	if h.fail {
		return errors.New("handler failed")
	}
	return nil
}

func (h *recordingHandler) EventTypes() []string {
	return h.types
}

func newCreatedEvent(t *testing.T) shared.DomainEvent {
	tn, err := tenant.NewTenant("Acme", "acme", tenant.PlanFree, "", 0)
	require.NoError(t, err)
	return tenant.NewTenantCreatedEvent(tn)
}

func TestInMemoryEventBus_Publish(t *testing.T) {
	ctx := context.Background()

	t.Run("delivers to matching handlers", func(t *testing.T) {
		bus := NewInMemoryEventBus(zap.NewNop())
		h := &recordingHandler{types: []string{tenant.EventTypeTenantCreated}}
		bus.Subscribe(h)

		require.NoError(t, bus.Publish(ctx, newCreatedEvent(t)))
		assert.Len(t, h.received, 1)
		assert.Equal(t, tenant.EventTypeTenantCreated, h.received[0].EventType())
	})

	t.Run("skips non-matching handlers", func(t *testing.T) {
		bus := NewInMemoryEventBus(zap.NewNop())
		h := &recordingHandler{types: []string{tenant.EventTypeTenantDeleted}}
		bus.Subscribe(h)

		require.NoError(t, bus.Publish(ctx, newCreatedEvent(t)))
		assert.Empty(t, h.received)
	})

	t.Run("wildcard handler receives everything", func(t *testing.T) {
		bus := NewInMemoryEventBus(zap.NewNop())
		h := &recordingHandler{}
		bus.Subscribe(h)

		require.NoError(t, bus.Publish(ctx, newCreatedEvent(t), newCreatedEvent(t)))
		assert.Len(t, h.received, 2)
	})

	t.Run("failing handler does not block others", func(t *testing.T) {
		bus := NewInMemoryEventBus(zap.NewNop())
		failing := &recordingHandler{types: []string{tenant.EventTypeTenantCreated}, fail: true}
		healthy := &recordingHandler{types: []string{tenant.EventTypeTenantCreated}}
		bus.Subscribe(failing)
		bus.Subscribe(healthy)

		require.NoError(t, bus.Publish(ctx, newCreatedEvent(t)))
		assert.Len(t, healthy.received, 1)
	})

	t.Run("panicking handler does not block others", func(t *testing.T) {
		bus := NewInMemoryEventBus(zap.NewNop())
		panicking := &recordingHandler{types: []string{tenant.EventTypeTenantCreated}, panic: true}
		healthy := &recordingHandler{types: []string{tenant.EventTypeTenantCreated}}
		bus.Subscribe(panicking)
		bus.Subscribe(healthy)

		require.NoError(t, bus.Publish(ctx, newCreatedEvent(t)))
		assert.Len(t, healthy.received, 1)
	})

	t.Run("unsubscribed handler receives nothing", func(t *testing.T) {
		bus := NewInMemoryEventBus(zap.NewNop())
		h := &recordingHandler{types: []string{tenant.EventTypeTenantCreated}}
		bus.Subscribe(h)
		bus.Unsubscribe(h)

		require.NoError(t, bus.Publish(ctx, newCreatedEvent(t)))
		assert.Empty(t, h.received)
	})
}

func TestInMemoryEventBus_Lifecycle(t *testing.T) {
	bus := NewInMemoryEventBus(zap.NewNop())
	ctx := context.Background()

	require.NoError(t, bus.Start(ctx))
	require.NoError(t, bus.Stop(ctx))
}

func TestHandlerRegistry_GetHandlers(t *testing.T) {
	r := NewHandlerRegistry()
	specific := &recordingHandler{}
	wildcard := &recordingHandler{}

	r.Register(specific, "tenant_created")
	r.Register(wildcard)

	handlers := r.GetHandlers("tenant_created")
	assert.Len(t, handlers, 2)

	handlers = r.GetHandlers("usage_recorded")
	assert.Len(t, handlers, 1)
}
