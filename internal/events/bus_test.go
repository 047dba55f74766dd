package events

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventBus_PublishFansOut(t *testing.T) {
	bus := NewEventBus(nil)

	var mu sync.Mutex
	var got []string
	for _, name := range []string{"a", "b"} {
		bus.Subscribe(TopicSaleNavigate, func(ctx context.Context, e Event) error {
			mu.Lock()
			defer mu.Unlock()
			got = append(got, name)
			return nil
		})
	}

	require.NoError(t, bus.Publish(context.Background(), NewEvent(TopicSaleNavigate, SaleNavigateEvent{SaleID: 4})))
	bus.Wait()

	assert.ElementsMatch(t, []string{"a", "b"}, got)
}

func TestEventBus_PublishWithoutHandlers(t *testing.T) {
	bus := NewEventBus(nil)
	assert.NoError(t, bus.Publish(context.Background(), NewEvent("nobody.listens", nil)))
	assert.NoError(t, bus.PublishSync(context.Background(), NewEvent("nobody.listens", nil)))
}

func TestEventBus_PublishSyncStopsAtFirstError(t *testing.T) {
	bus := NewEventBus(nil)
	boom := errors.New("boom")
	calls := 0
	bus.Subscribe(TopicRequestDecided, func(ctx context.Context, e Event) error {
		calls++
		return boom
	})
	bus.Subscribe(TopicRequestDecided, func(ctx context.Context, e Event) error {
		calls++
		return nil
	})

	err := bus.PublishSync(context.Background(), NewEvent(TopicRequestDecided, RequestEvent{ID: 1}))
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
}

func TestNewEvent(t *testing.T) {
	e := NewEvent(TopicSaleRecorded, SaleEvent{SaleID: 9})
	assert.NotEmpty(t, e.EventID())
	assert.Equal(t, TopicSaleRecorded, e.EventType())
	assert.False(t, e.OccurredAt().IsZero())
	assert.Equal(t, SaleEvent{SaleID: 9}, e.Payload())
}
