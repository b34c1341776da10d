package event

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/frontdesk/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type billingEvent struct {
	shared.BaseDomainEvent
	SourceID string
}

func newBillingEvent(eventType, sourceID string) *billingEvent {
	tenantID := uuid.New()
	return &billingEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(eventType, "StripeMetering", tenantID, tenantID),
		SourceID:        sourceID,
	}
}

type recordingHandler struct {
	mu       sync.Mutex
	types    []string
	received []shared.DomainEvent
	err      error
	panics   bool
}

func (h *recordingHandler) Handle(_ context.Context, evt shared.DomainEvent) error {
	if h.panics {
		panic("handler blew up")
	}
	h.mu.Lock()
	h.received = append(h.received, evt)
	h.mu.Unlock()
	return h.err
}

func (h *recordingHandler) EventTypes() []string { return h.types }

func (h *recordingHandler) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.received)
}

func TestInMemoryEventBus_Publish(t *testing.T) {
	ctx := context.Background()

	t.Run("delivers to the handler subscribed for the type", func(t *testing.T) {
		bus := NewInMemoryEventBus(zap.NewNop())
		handler := &recordingHandler{types: []string{"PaymentFailed"}}
		bus.Subscribe(handler)

		err := bus.Publish(ctx, newBillingEvent("PaymentFailed", "in_123"))

		require.NoError(t, err)
		require.Equal(t, 1, handler.count())
		assert.Equal(t, "PaymentFailed", handler.received[0].EventType())
	})

	t.Run("skips handlers for other types", func(t *testing.T) {
		bus := NewInMemoryEventBus(zap.NewNop())
		handler := &recordingHandler{types: []string{"TopupApplied"}}
		bus.Subscribe(handler)

		require.NoError(t, bus.Publish(ctx, newBillingEvent("PaymentFailed", "in_123")))

		assert.Zero(t, handler.count())
	})

	t.Run("catch-all handler sees every event", func(t *testing.T) {
		bus := NewInMemoryEventBus(zap.NewNop())
		audit := &recordingHandler{}
		bus.Subscribe(audit)

		require.NoError(t, bus.Publish(ctx,
			newBillingEvent("PaymentFailed", "in_123"),
			newBillingEvent("SubscriptionSynced", "sub_456"),
		))

		assert.Equal(t, 2, audit.count())
	})

	t.Run("explicit types override the handler's own list", func(t *testing.T) {
		bus := NewInMemoryEventBus(zap.NewNop())
		handler := &recordingHandler{types: []string{"TopupApplied"}}
		bus.Subscribe(handler, "InvoicePaid")

		require.NoError(t, bus.Publish(ctx, newBillingEvent("TopupApplied", "cs_1")))
		assert.Zero(t, handler.count())

		require.NoError(t, bus.Publish(ctx, newBillingEvent("InvoicePaid", "in_2")))
		assert.Equal(t, 1, handler.count())
	})

	t.Run("one failing handler does not block the rest", func(t *testing.T) {
		bus := NewInMemoryEventBus(zap.NewNop())
		failing := &recordingHandler{types: []string{"PaymentFailed"}, err: errors.New("audit store down")}
		healthy := &recordingHandler{types: []string{"PaymentFailed"}}
		bus.Subscribe(failing)
		bus.Subscribe(healthy)

		require.NoError(t, bus.Publish(ctx, newBillingEvent("PaymentFailed", "in_123")))

		assert.Equal(t, 1, healthy.count())
	})

	t.Run("a panicking handler is contained", func(t *testing.T) {
		bus := NewInMemoryEventBus(zap.NewNop())
		panicking := &recordingHandler{types: []string{"PaymentFailed"}, panics: true}
		healthy := &recordingHandler{types: []string{"PaymentFailed"}}
		bus.Subscribe(panicking)
		bus.Subscribe(healthy)

		require.NotPanics(t, func() {
			require.NoError(t, bus.Publish(ctx, newBillingEvent("PaymentFailed", "in_123")))
		})
		assert.Equal(t, 1, healthy.count())
	})
}

func TestInMemoryEventBus_Unsubscribe(t *testing.T) {
	ctx := context.Background()
	bus := NewInMemoryEventBus(zap.NewNop())

	typed := &recordingHandler{types: []string{"PaymentFailed"}}
	catchAll := &recordingHandler{}
	bus.Subscribe(typed)
	bus.Subscribe(catchAll)

	bus.Unsubscribe(typed)
	bus.Unsubscribe(catchAll)

	require.NoError(t, bus.Publish(ctx, newBillingEvent("PaymentFailed", "in_123")))

	assert.Zero(t, typed.count())
	assert.Zero(t, catchAll.count())
}

func TestInMemoryEventBus_StartStop(t *testing.T) {
	ctx := context.Background()
	bus := NewInMemoryEventBus(zap.NewNop())

	require.NoError(t, bus.Start(ctx))
	require.NoError(t, bus.Stop(ctx))
}

func TestInMemoryEventBus_ConcurrentPublish(t *testing.T) {
	ctx := context.Background()
	bus := NewInMemoryEventBus(zap.NewNop())
	handler := &recordingHandler{types: []string{"TopupApplied"}}
	bus.Subscribe(handler)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = bus.Publish(ctx, newBillingEvent("TopupApplied", "cs_x"))
		}()
	}
	wg.Wait()

	assert.Equal(t, 20, handler.count())
}
