// internal/battle/lifecycle.go
package battle

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jason-s-yu/codeduel/internal/models"
	"github.com/sirupsen/logrus"
)

// CreateParams describes a new battle.
type CreateParams struct {
	CreatorID         uuid.UUID
	Language          string
	Difficulty        models.Difficulty
	TotalRounds       int
	RoundTimeLimitSec int
	Opponent          models.OpponentKind
}

func (p CreateParams) validate() error {
	switch {
	case p.CreatorID == uuid.Nil:
		return ErrInvalidBattleConfig.Withf("creator is required")
	case !p.Difficulty.Valid():
		return ErrInvalidBattleConfig.Withf("unknown difficulty %q", p.Difficulty)
	case !p.Opponent.Valid():
		return ErrInvalidBattleConfig.Withf("unknown opponent kind %q", p.Opponent)
	case p.TotalRounds < 1:
		return ErrInvalidBattleConfig.Withf("a battle needs at least one round")
	case p.RoundTimeLimitSec < 1:
		return ErrInvalidBattleConfig.Withf("round time limit must be positive")
	}
	return nil
}

// CreateBattle picks the round problems and persists a new battle. Human battles wait
// for a second player behind a room code; bot battles start immediately.
func (e *Engine) CreateBattle(ctx context.Context, p CreateParams) (*models.Battle, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}

	pool, err := e.problems.EligibleProblems(ctx, p.Language, p.Difficulty)
	if err != nil {
		return nil, fmt.Errorf("load eligible problems: %w", err)
	}
	ids := distinctProblemIDs(pool)
	if len(ids) == 0 {
		return nil, ErrNoEligibleProblems.Withf("no eligible problems for %s/%s", p.Language, p.Difficulty)
	}
	if len(ids) < p.TotalRounds {
		return nil, ErrNoEligibleProblems.Withf("only %d eligible problems for %d rounds", len(ids), p.TotalRounds)
	}

	now := e.now()
	b := &models.Battle{
		ID:                uuid.New(),
		Mode:              models.ModeOneVsOne,
		Language:          p.Language,
		Difficulty:        p.Difficulty,
		ProblemIDs:        e.sampleProblems(ids, p.TotalRounds),
		RoundTimeLimitSec: p.RoundTimeLimitSec,
		OpponentKind:      p.Opponent,
		PlayerOneID:       p.CreatorID,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	if p.Opponent == models.OpponentBot {
		b.Status = models.StatusInProgress
		b.PlayerTwoID = models.BotPlayerID
		b.StartedAt = &now
		if err := e.store.InsertBattle(ctx, b); err != nil {
			return nil, fmt.Errorf("insert battle: %w", err)
		}
	} else {
		b.Status = models.StatusWaiting
		if err := e.insertWithRoomCode(ctx, b); err != nil {
			return nil, err
		}
	}

	e.logger.WithFields(logrus.Fields{
		"battle_id": b.ID,
		"creator":   p.CreatorID,
		"opponent":  p.Opponent,
		"rounds":    p.TotalRounds,
	}).Info("battle created")
	e.notify(ctx, b.ID)
	return b, nil
}

func (e *Engine) insertWithRoomCode(ctx context.Context, b *models.Battle) error {
	for i := 0; i < e.opts.RoomCodeRetries; i++ {
		code, err := NewRoomCode()
		if err != nil {
			return err
		}
		b.RoomCode = code
		err = e.store.InsertBattle(ctx, b)
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrRoomCodeTaken) {
			return fmt.Errorf("insert battle: %w", err)
		}
		e.logger.WithField("room_code", code).Debug("room code collision, regenerating")
	}
	return ErrRoomCodeTaken.Withf("could not allocate a free room code after %d tries", e.opts.RoomCodeRetries)
}

// distinctProblemIDs drops repeated ids so a battle never plays the same problem twice.
func distinctProblemIDs(pool []models.Problem) []string {
	seen := make(map[string]struct{}, len(pool))
	ids := make([]string, 0, len(pool))
	for _, p := range pool {
		if p.ID == "" {
			continue
		}
		if _, dup := seen[p.ID]; dup {
			continue
		}
		seen[p.ID] = struct{}{}
		ids = append(ids, p.ID)
	}
	return ids
}

// sampleProblems draws n ids uniformly without replacement (partial Fisher-Yates).
func (e *Engine) sampleProblems(ids []string, n int) []string {
	work := append([]string(nil), ids...)
	for i := 0; i < n; i++ {
		j := i + e.intn(len(work)-i)
		work[i], work[j] = work[j], work[i]
	}
	return work[:n:n]
}

// JoinByRoomCode seats joiner as player two of the waiting battle behind code. The claim
// is a conditional update, so of two concurrent joiners exactly one wins.
func (e *Engine) JoinByRoomCode(ctx context.Context, code string, joiner uuid.UUID) (*models.Battle, error) {
	code = NormalizeRoomCode(code)
	if code == "" || joiner == uuid.Nil {
		return nil, ErrRoomNotFound
	}

	b, err := e.store.FindWaitingByRoomCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if b.PlayerOneID == joiner {
		return nil, ErrSelfJoin
	}

	claimed, err := e.store.ClaimRoom(ctx, b.ID, joiner, e.now())
	if err != nil {
		return nil, fmt.Errorf("claim room %s: %w", code, err)
	}
	if !claimed {
		return nil, ErrJoinRaceLost
	}

	e.logger.WithFields(logrus.Fields{"battle_id": b.ID, "player_id": joiner}).Info("player joined battle")
	e.notify(ctx, b.ID)
	return e.store.GetBattle(ctx, b.ID)
}

// CancelBattle moves a non-terminal battle to CANCELLED. Cancelling a finished battle
// returns it unchanged.
func (e *Engine) CancelBattle(ctx context.Context, id uuid.UUID) (*models.Battle, error) {
	cancelled, err := e.store.CancelBattle(ctx, id, e.now())
	if err != nil {
		return nil, err
	}
	if cancelled {
		e.sim.Forget(id)
		e.logger.WithField("battle_id", id).Info("battle cancelled")
		e.notify(ctx, id)
	}
	return e.store.GetBattle(ctx, id)
}

func (e *Engine) GetBattle(ctx context.Context, id uuid.UUID) (*models.Battle, error) {
	return e.store.GetBattle(ctx, id)
}

// ListAttempts returns the battle's submission log, oldest first.
func (e *Engine) ListAttempts(ctx context.Context, id uuid.UUID) ([]models.Attempt, error) {
	if _, err := e.store.GetBattle(ctx, id); err != nil {
		return nil, err
	}
	return e.store.ListAttempts(ctx, id)
}
