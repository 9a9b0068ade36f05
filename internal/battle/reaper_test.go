package battle

import (
	"context"
	"testing"
	"time"

	"github.com/jason-s-yu/codeduel/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReaperCancelsOnlyStaleRooms(t *testing.T) {
	env := setupEngine(t, nil)
	ctx := context.Background()
	reaper := NewReaper(env.engine, 10*time.Minute, time.Minute)

	stale := env.createHuman(t, 1)
	started := env.startHuman(t, 1)
	env.clock.advance(11 * time.Minute)
	fresh := env.createHuman(t, 1)

	n, err := reaper.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got := env.get(t, stale.ID)
	assert.Equal(t, models.StatusCancelled, got.Status)
	assert.Empty(t, got.RoomCode)
	assert.Equal(t, models.StatusInProgress, env.get(t, started.ID).Status)
	assert.Equal(t, models.StatusWaiting, env.get(t, fresh.ID).Status)

	n, err = reaper.Sweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestReaperRunStopsWithContext(t *testing.T) {
	env := setupEngine(t, nil)
	reaper := NewReaper(env.engine, time.Minute, 5*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		reaper.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("reaper did not stop")
	}
}
