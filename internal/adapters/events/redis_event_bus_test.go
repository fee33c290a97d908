package events_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/persianhub/backend/internal/adapters/events"
	"github.com/persianhub/backend/internal/domain/entities"
	"github.com/persianhub/backend/internal/domain/providers"
	redisclient "github.com/persianhub/backend/internal/infrastructure/clients/redis"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBus(t *testing.T) providers.EventBus {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	bus := events.NewRedisEventBus(redisclient.NewClientFromRedis(rdb))
	t.Cleanup(func() {
		bus.Close()
		rdb.Close()
	})
	return bus
}

func TestRedisEventBus_PublishSubscribe(t *testing.T) {
	bus := newTestBus(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := bus.Subscribe(ctx, providers.EventChannelDirectory)
	require.NoError(t, err)

	event := entities.NewDirectoryEvent(entities.EventCategoryApproved, "cat-1", map[string]interface{}{"name": "Car Detailing"})
	require.NoError(t, bus.Publish(ctx, providers.EventChannelDirectory, event))

	select {
	case got := <-ch:
		require.NotNil(t, got)
		assert.Equal(t, event.ID, got.ID)
		assert.Equal(t, entities.EventCategoryApproved, got.Type)
		assert.Equal(t, "cat-1", got.EntityID)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestRedisEventBus_ChannelClosedWhenContextDone(t *testing.T) {
	bus := newTestBus(t)
	ctx, cancel := context.WithCancel(context.Background())

	ch, err := bus.Subscribe(ctx, providers.EventChannelDirectory)
	require.NoError(t, err)

	cancel()

	select {
	case _, ok := <-ch:
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("subscriber channel was not closed")
	}
}

func TestRedisEventBus_SubscribeAfterClose(t *testing.T) {
	bus := newTestBus(t)
	require.NoError(t, bus.Close())

	_, err := bus.Subscribe(context.Background(), providers.EventChannelDirectory)

	assert.Error(t, err)
}
