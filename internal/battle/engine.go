// internal/battle/engine.go
package battle

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/codeduel/internal/executor"
	"github.com/jason-s-yu/codeduel/internal/realtime"
	"github.com/sirupsen/logrus"
)

// FirstCorrectMode selects what happens when a player is the first to solve a round
// of a human-vs-human battle.
type FirstCorrectMode string

const (
	// FirstCorrectInformational only stamps the marker for clients to display.
	FirstCorrectInformational FirstCorrectMode = "informational"
	// FirstCorrectEndsRound stamps the marker and advances the round straight away.
	FirstCorrectEndsRound FirstCorrectMode = "end_round"
)

func (m FirstCorrectMode) Valid() bool {
	return m == FirstCorrectInformational || m == FirstCorrectEndsRound
}

type Options struct {
	FirstCorrectMode FirstCorrectMode
	// AutoAdvance moves to the next round once both players have submitted.
	AutoAdvance bool
	BotProfiles BotProfiles
	// RoomCodeRetries bounds how often a colliding room code is regenerated.
	RoomCodeRetries int
	// Now and Seed make the engine deterministic under test.
	Now  func() time.Time
	Seed int64
}

func DefaultOptions() Options {
	return Options{
		FirstCorrectMode: FirstCorrectInformational,
		AutoAdvance:      true,
		BotProfiles:      DefaultBotProfiles(),
		RoomCodeRetries:  5,
	}
}

// Engine runs battles: lifecycle, rounds, submissions and the simulated opponent.
// It keeps no battle state of its own; every operation re-reads the battle from the store.
type Engine struct {
	store    Store
	problems ProblemPool
	exec     executor.Executor
	bus      realtime.Bus
	logger   logrus.FieldLogger
	opts     Options

	rngMu sync.Mutex
	rng   *rand.Rand

	sim *Simulator
}

func NewEngine(store Store, problems ProblemPool, exec executor.Executor, bus realtime.Bus, logger logrus.FieldLogger, opts Options) *Engine {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Seed == 0 {
		opts.Seed = time.Now().UnixNano()
	}
	if !opts.FirstCorrectMode.Valid() {
		opts.FirstCorrectMode = FirstCorrectInformational
	}
	if opts.RoomCodeRetries <= 0 {
		opts.RoomCodeRetries = 5
	}
	if opts.BotProfiles.Difficulty == nil {
		opts.BotProfiles = DefaultBotProfiles()
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	e := &Engine{
		store:    store,
		problems: problems,
		exec:     exec,
		bus:      bus,
		logger:   logger,
		opts:     opts,
		rng:      rand.New(rand.NewSource(opts.Seed)),
	}
	e.sim = newSimulator(e, opts.BotProfiles, rand.New(rand.NewSource(opts.Seed+1)))
	return e
}

// Close stops pending simulator timers.
func (e *Engine) Close() {
	e.sim.Stop()
}

// Simulator exposes the bot scheduler, mainly for inspection in tests.
func (e *Engine) Simulator() *Simulator {
	return e.sim
}

func (e *Engine) now() time.Time {
	return e.opts.Now().UTC()
}

// intn is a goroutine-safe rand.Intn.
func (e *Engine) intn(n int) int {
	e.rngMu.Lock()
	defer e.rngMu.Unlock()
	return e.rng.Intn(n)
}

// notify tells subscribers that a battle changed. Failures only cost a push; clients
// poll on attach, so they are logged and dropped.
func (e *Engine) notify(ctx context.Context, battleID uuid.UUID) {
	if e.bus == nil {
		return
	}
	if err := e.bus.Publish(ctx, battleID); err != nil {
		e.logger.WithError(err).WithField("battle_id", battleID).Warn("failed to publish battle change")
	}
}
