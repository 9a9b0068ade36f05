package battle

import (
	"context"
	"testing"
	"time"

	"github.com/jason-s-yu/codeduel/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetCurrentRound(t *testing.T) {
	env := setupEngine(t, nil)
	ctx := context.Background()
	b := env.startBot(t, 3)

	r, err := env.engine.GetCurrentRound(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, r.Index)
	assert.Equal(t, 3, r.Total)
	assert.Equal(t, 180, r.TimeLimitSec)
	require.NotNil(t, r.Problem)
	assert.Equal(t, b.ProblemIDs[0], r.Problem.ID)

	waiting := env.createHuman(t, 1)
	_, err = env.engine.GetCurrentRound(ctx, waiting.ID)
	assert.ErrorIs(t, err, ErrBattleNotActive)
}

func TestAdvanceRoundResetsSubmittedFlags(t *testing.T) {
	env := setupEngine(t, nil)
	ctx := context.Background()
	b := env.startBot(t, 3)
	require.NoError(t, env.store.AddScore(ctx, b.ID, models.SlotOne, 0, 100, env.clock.now()))

	advanced, err := env.engine.AdvanceRound(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, advanced.CurrentRound)
	assert.False(t, advanced.PlayerOneSubmitted)
	assert.False(t, advanced.PlayerTwoSubmitted)
	assert.Equal(t, 100, advanced.PlayerOneScore, "scores carry over between rounds")
	assert.Equal(t, models.StatusInProgress, advanced.Status)

	r, err := env.engine.GetCurrentRound(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, b.ProblemIDs[1], r.Problem.ID)
}

func TestAdvancePastLastRoundCompletes(t *testing.T) {
	cases := []struct {
		name     string
		one, two int
		winner   func(b *models.Battle) interface{}
	}{
		{"player one ahead", 150, 100, func(b *models.Battle) interface{} { return b.PlayerOneID }},
		{"player two ahead", 0, 125, func(b *models.Battle) interface{} { return b.PlayerTwoID }},
		{"tie is a draw", 100, 100, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			env := setupEngine(t, nil)
			ctx := context.Background()
			b := env.startHuman(t, 2)

			_, err := env.engine.AdvanceRound(ctx, b.ID)
			require.NoError(t, err)
			require.NoError(t, env.store.AddScore(ctx, b.ID, models.SlotOne, 1, tc.one, env.clock.now()))
			require.NoError(t, env.store.AddScore(ctx, b.ID, models.SlotTwo, 1, tc.two, env.clock.now()))

			done, err := env.engine.AdvanceRound(ctx, b.ID)
			require.NoError(t, err)
			assert.Equal(t, models.StatusCompleted, done.Status)
			assert.Equal(t, 1, done.CurrentRound, "index stays on the last round")
			require.NotNil(t, done.EndedAt)
			if tc.winner == nil {
				assert.Nil(t, done.WinnerID)
			} else {
				require.NotNil(t, done.WinnerID)
				assert.Equal(t, tc.winner(done), *done.WinnerID)
			}
		})
	}
}

func TestCompleteBattleIsIdempotent(t *testing.T) {
	env := setupEngine(t, nil)
	ctx := context.Background()
	b := env.startHuman(t, 1)
	require.NoError(t, env.store.AddScore(ctx, b.ID, models.SlotTwo, 0, 125, env.clock.now()))

	first, err := env.engine.CompleteBattle(ctx, b.ID)
	require.NoError(t, err)
	require.NotNil(t, first.WinnerID)

	env.clock.advance(time.Minute)
	second, err := env.engine.CompleteBattle(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestAdvanceRoundFromStaleRoundIsNoop(t *testing.T) {
	env := setupEngine(t, nil)
	ctx := context.Background()
	b := env.startBot(t, 3)

	_, err := env.engine.AdvanceRoundFrom(ctx, b.ID, 0)
	require.NoError(t, err)

	// a second client still looking at round 0 must not skip round 1
	again, err := env.engine.AdvanceRoundFrom(ctx, b.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, again.CurrentRound)
}

func TestAdvanceRoundOnWaitingOrFinishedBattle(t *testing.T) {
	env := setupEngine(t, nil)
	ctx := context.Background()

	waiting := env.createHuman(t, 2)
	_, err := env.engine.AdvanceRound(ctx, waiting.ID)
	assert.ErrorIs(t, err, ErrBattleNotActive)

	b := env.startBot(t, 2)
	_, err = env.engine.CancelBattle(ctx, b.ID)
	require.NoError(t, err)
	after, err := env.engine.AdvanceRound(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, after.Status)
	assert.Equal(t, 0, after.CurrentRound)
}

func TestRoundIndexStaysInRangeUnderConcurrentAdvance(t *testing.T) {
	env := setupEngine(t, nil)
	ctx := context.Background()
	b := env.startBot(t, 3)

	done := make(chan struct{})
	for i := 0; i < 8; i++ {
		go func() {
			defer func() { done <- struct{}{} }()
			for j := 0; j < 5; j++ {
				_, _ = env.engine.AdvanceRound(ctx, b.ID)
			}
		}()
	}
	for i := 0; i < 8; i++ {
		<-done
	}

	final := env.get(t, b.ID)
	assert.Equal(t, models.StatusCompleted, final.Status)
	assert.Equal(t, 2, final.CurrentRound)
}
