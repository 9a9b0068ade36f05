package battle

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/codeduel/internal/executor"
	"github.com/jason-s-yu/codeduel/internal/models"
	"github.com/jason-s-yu/codeduel/internal/realtime"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

const (
	correctCode = "print(solve(input()))"
	wrongCode   = "print('nope')"
)

// fakeExecutor answers like a sandbox running either correctCode or wrongCode, and records
// every request in order.
type fakeExecutor struct {
	mu    sync.Mutex
	calls []executor.Request
	// fail makes the sandbox itself error for matching stdin payloads
	fail   func(stdin string) bool
	stderr string
}

func (f *fakeExecutor) Execute(_ context.Context, req executor.Request) (executor.Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	f.mu.Unlock()

	if f.fail != nil && f.fail(req.Stdin) {
		return executor.Result{}, errors.New("sandbox unreachable")
	}
	if f.stderr != "" {
		return executor.Result{Stderr: f.stderr}, nil
	}
	if req.Source == correctCode {
		return executor.Result{Stdout: expectedFor(req.Stdin) + "\n"}, nil
	}
	return executor.Result{Stdout: "nope\n"}, nil
}

func (f *fakeExecutor) stdins() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.calls))
	for _, c := range f.calls {
		out = append(out, c.Stdin)
	}
	return out
}

func expectedFor(input string) string {
	return "out-" + strings.TrimSpace(input)
}

func testProblems() []models.Problem {
	var problems []models.Problem
	for i := 1; i <= 5; i++ {
		id := fmt.Sprintf("m%d", i)
		problems = append(problems, models.Problem{
			ID:         id,
			Title:      "medium " + id,
			Language:   "python",
			Difficulty: models.DifficultyMedium,
			TestCases: []models.TestCase{
				{Input: id + "-a", ExpectedOutput: expectedFor(id + "-a")},
				{Input: id + "-b", ExpectedOutput: "  " + expectedFor(id+"-b") + "\n"},
			},
		})
	}
	problems = append(problems, models.Problem{
		ID:         "e-empty",
		Language:   "python",
		Difficulty: models.DifficultyEasy,
	})
	return problems
}

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func newTestClock() *testClock {
	return &testClock{t: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type testEnv struct {
	engine *Engine
	store  *MemoryStore
	bus    *realtime.LocalBus
	exec   *fakeExecutor
	clock  *testClock
}

// setupEngine builds an engine over in-memory collaborators. The bot is parked far in the
// future unless a test tunes its profiles through mutate.
func setupEngine(t *testing.T, mutate func(*Options)) *testEnv {
	t.Helper()
	env := &testEnv{
		store: NewMemoryStore(),
		bus:   realtime.NewLocalBus(),
		exec:  &fakeExecutor{},
		clock: newTestClock(),
	}

	opts := DefaultOptions()
	opts.Now = env.clock.now
	opts.Seed = 42
	opts.BotProfiles.MinDelayMs = uint(time.Hour / time.Millisecond)
	opts.BotProfiles.JitterMs = 0
	if mutate != nil {
		mutate(&opts)
	}

	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)

	env.engine = NewEngine(env.store, NewStaticPool(testProblems()), env.exec, env.bus, logger, opts)
	t.Cleanup(env.engine.Close)
	return env
}

func (env *testEnv) createHuman(t *testing.T, rounds int) *models.Battle {
	t.Helper()
	b, err := env.engine.CreateBattle(context.Background(), CreateParams{
		CreatorID:         uuid.New(),
		Language:          "python",
		Difficulty:        models.DifficultyMedium,
		TotalRounds:       rounds,
		RoundTimeLimitSec: 180,
		Opponent:          models.OpponentHuman,
	})
	require.NoError(t, err)
	return b
}

// startHuman creates a human battle and seats a second player.
func (env *testEnv) startHuman(t *testing.T, rounds int) *models.Battle {
	t.Helper()
	b := env.createHuman(t, rounds)
	joined, err := env.engine.JoinByRoomCode(context.Background(), b.RoomCode, uuid.New())
	require.NoError(t, err)
	return joined
}

func (env *testEnv) startBot(t *testing.T, rounds int) *models.Battle {
	t.Helper()
	b, err := env.engine.CreateBattle(context.Background(), CreateParams{
		CreatorID:         uuid.New(),
		Language:          "python",
		Difficulty:        models.DifficultyMedium,
		TotalRounds:       rounds,
		RoundTimeLimitSec: 180,
		Opponent:          models.OpponentBot,
	})
	require.NoError(t, err)
	return b
}

func (env *testEnv) get(t *testing.T, id uuid.UUID) *models.Battle {
	t.Helper()
	b, err := env.store.GetBattle(context.Background(), id)
	require.NoError(t, err)
	return b
}
