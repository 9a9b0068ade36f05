package realtime

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalBusDeliversToBattleSubscribersOnly(t *testing.T) {
	bus := NewLocalBus()
	ctx := context.Background()
	watched, other := uuid.New(), uuid.New()

	var hits atomic.Int32
	unsubscribe, err := bus.Subscribe(ctx, watched, func() { hits.Add(1) })
	require.NoError(t, err)

	require.NoError(t, bus.Publish(ctx, other))
	require.NoError(t, bus.Publish(ctx, watched))
	require.Eventually(t, func() bool { return hits.Load() == 1 }, time.Second, 5*time.Millisecond)

	unsubscribe()
	unsubscribe()
	assert.Equal(t, 0, bus.Subscribers(watched))

	require.NoError(t, bus.Publish(ctx, watched))
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(1), hits.Load())
}

func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return rdb
}

func TestRedisBusRoundTrip(t *testing.T) {
	rdb := newTestRedis(t)
	bus := NewRedisBus(rdb, "test", logrus.New())
	ctx := context.Background()
	battleID := uuid.New()

	var hits atomic.Int32
	unsubscribe, err := bus.Subscribe(ctx, battleID, func() { hits.Add(1) })
	require.NoError(t, err)

	require.NoError(t, bus.Publish(ctx, battleID))
	require.NoError(t, bus.Publish(ctx, uuid.New()))
	require.Eventually(t, func() bool { return hits.Load() == 1 }, 2*time.Second, 10*time.Millisecond)

	unsubscribe()
	require.NoError(t, bus.Publish(ctx, battleID))
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(1), hits.Load())
}

func TestRedisBusChannelName(t *testing.T) {
	bus := NewRedisBus(nil, "", logrus.New())
	id := uuid.MustParse("7d0b5a8e-4b1a-4a52-9c1e-0a5d7b2f3c11")
	assert.Equal(t, "codeduel:battle:7d0b5a8e-4b1a-4a52-9c1e-0a5d7b2f3c11:changed", bus.channel(id))
}
