// internal/battle/simulator.go
package battle

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/codeduel/internal/models"
	"github.com/sirupsen/logrus"
)

type shotKey struct {
	battleID uuid.UUID
	round    int
}

// Simulator plays the bot side of a battle. It never runs code: after a randomized
// "thinking" delay it draws an outcome from the difficulty's profile and reports it
// through Engine.RecordScore, exactly like a human submission.
type Simulator struct {
	engine   *Engine
	profiles BotProfiles

	mu      sync.Mutex
	rng     *rand.Rand
	timers  map[shotKey]*time.Timer
	stopped bool
}

func newSimulator(e *Engine, profiles BotProfiles, rng *rand.Rand) *Simulator {
	return &Simulator{
		engine:   e,
		profiles: profiles,
		rng:      rng,
		timers:   make(map[shotKey]*time.Timer),
	}
}

// Schedule arms the bot's answer for the battle's current round, as seen in b. Only the
// first call per battle and round arms a timer; it reports whether this call did. Timers
// for rounds before b's current round are dropped.
func (s *Simulator) Schedule(b *models.Battle) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped || b.Status != models.StatusInProgress || b.PlayerTwoSubmitted {
		return false
	}
	battleID, round, difficulty := b.ID, b.CurrentRound, b.Difficulty
	key := shotKey{battleID: battleID, round: round}
	if _, armed := s.timers[key]; armed {
		return false
	}
	for k, t := range s.timers {
		if k.battleID == battleID && k.round < round {
			t.Stop()
			delete(s.timers, k)
		}
	}

	delay := s.profiles.MinDelay()
	if j := s.profiles.Jitter(); j > 0 {
		delay += time.Duration(s.rng.Int63n(int64(j)))
	}
	s.timers[key] = time.AfterFunc(delay, func() { s.fire(key, difficulty) })

	s.engine.logger.WithFields(logrus.Fields{
		"battle_id": battleID,
		"round":     round,
		"delay":     delay,
	}).Debug("bot answer scheduled")
	return true
}

// outcome draws whether the bot solves the round and, if so, its synthetic score.
func (s *Simulator) outcome(d models.Difficulty) (bool, int) {
	prof := s.profiles.For(d)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rng.Float64() >= prof.SolveProbability {
		return false, 0
	}
	return true, prof.MinPoints + s.rng.Intn(prof.MaxPoints-prof.MinPoints+1)
}

func (s *Simulator) fire(key shotKey, d models.Difficulty) {
	defer func() {
		s.mu.Lock()
		delete(s.timers, key)
		s.mu.Unlock()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	log := s.engine.logger.WithFields(logrus.Fields{"battle_id": key.battleID, "round": key.round})

	b, err := s.engine.store.GetBattle(ctx, key.battleID)
	if err != nil {
		log.WithError(err).Warn("bot could not load battle")
		return
	}
	// the round may have moved on, or the battle ended, while the timer was pending
	if b.Status != models.StatusInProgress || b.CurrentRound != key.round || b.PlayerTwoSubmitted {
		log.Debug("stale bot timer, skipping")
		return
	}

	solved, points := s.outcome(d)
	if _, err := s.engine.RecordScore(ctx, ScoreUpdate{
		BattleID: key.battleID,
		PlayerID: models.BotPlayerID,
		Round:    key.round,
		Points:   points,
		Correct:  solved,
	}); err != nil {
		log.WithError(err).Warn("bot score update failed")
		return
	}
	log.WithFields(logrus.Fields{"solved": solved, "points": points}).Info("bot answered")
}

// Pending reports how many bot timers are tracked for battleID.
func (s *Simulator) Pending(battleID uuid.UUID) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for k := range s.timers {
		if k.battleID == battleID {
			n++
		}
	}
	return n
}

// Forget drops and stops every timer of a finished battle.
func (s *Simulator) Forget(battleID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, t := range s.timers {
		if k.battleID == battleID {
			t.Stop()
			delete(s.timers, k)
		}
	}
}

// Stop cancels all pending timers; later Schedule calls are ignored.
func (s *Simulator) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	for k, t := range s.timers {
		t.Stop()
		delete(s.timers, k)
	}
}
