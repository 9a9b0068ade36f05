// internal/battle/rounds.go
package battle

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jason-s-yu/codeduel/internal/models"
	"github.com/sirupsen/logrus"
)

// Round is the view of the active round handed to clients.
type Round struct {
	Problem      *models.Problem `json:"problem"`
	Index        int             `json:"index"`
	Total        int             `json:"total"`
	TimeLimitSec int             `json:"timeLimitSec"`
}

// GetCurrentRound indexes the battle's fixed problem sequence with its current round.
func (e *Engine) GetCurrentRound(ctx context.Context, id uuid.UUID) (*Round, error) {
	b, err := e.store.GetBattle(ctx, id)
	if err != nil {
		return nil, err
	}
	if b.Status != models.StatusInProgress {
		return nil, ErrBattleNotActive.Withf("battle is %s", b.Status)
	}
	if b.CurrentRound < 0 || b.CurrentRound >= b.TotalRounds() {
		return nil, fmt.Errorf("battle %s: round %d out of range [0,%d)", b.ID, b.CurrentRound, b.TotalRounds())
	}

	p, err := e.problems.GetProblem(ctx, b.ProblemIDs[b.CurrentRound])
	if err != nil {
		return nil, err
	}
	return &Round{
		Problem:      p,
		Index:        b.CurrentRound,
		Total:        b.TotalRounds(),
		TimeLimitSec: b.RoundTimeLimitSec,
	}, nil
}

// AdvanceRound moves the battle past its current round, completing it after the last one.
func (e *Engine) AdvanceRound(ctx context.Context, id uuid.UUID) (*models.Battle, error) {
	b, err := e.store.GetBattle(ctx, id)
	if err != nil {
		return nil, err
	}
	return e.advance(ctx, b, b.CurrentRound)
}

// AdvanceRoundFrom advances only if the battle is still on round from. Clients pass the
// round they were looking at so a repeated request cannot skip a round.
func (e *Engine) AdvanceRoundFrom(ctx context.Context, id uuid.UUID, from int) (*models.Battle, error) {
	b, err := e.store.GetBattle(ctx, id)
	if err != nil {
		return nil, err
	}
	return e.advance(ctx, b, from)
}

func (e *Engine) advance(ctx context.Context, b *models.Battle, from int) (*models.Battle, error) {
	switch {
	case b.IsTerminal():
		return b, nil
	case b.Status == models.StatusWaiting:
		return nil, ErrBattleNotActive.Withf("battle has not started")
	case from != b.CurrentRound:
		return b, nil
	}

	if from+1 >= b.TotalRounds() {
		return e.CompleteBattle(ctx, b.ID)
	}

	moved, err := e.store.AdvanceRound(ctx, b.ID, from, e.now())
	if err != nil {
		return nil, fmt.Errorf("advance battle %s: %w", b.ID, err)
	}
	if moved {
		e.logger.WithFields(logrus.Fields{"battle_id": b.ID, "round": from + 1}).Info("round advanced")
		e.notify(ctx, b.ID)
	}
	return e.store.GetBattle(ctx, b.ID)
}

// CompleteBattle finishes an in-progress battle. The winner is the strictly higher score,
// or nobody on a tie. Completing a finished battle returns it unchanged.
func (e *Engine) CompleteBattle(ctx context.Context, id uuid.UUID) (*models.Battle, error) {
	b, err := e.store.GetBattle(ctx, id)
	if err != nil {
		return nil, err
	}
	switch b.Status {
	case models.StatusCompleted, models.StatusCancelled:
		return b, nil
	case models.StatusWaiting:
		return nil, ErrBattleNotActive.Withf("battle has not started")
	}

	done, err := e.store.CompleteBattle(ctx, id, e.now())
	if err != nil {
		return nil, fmt.Errorf("complete battle %s: %w", id, err)
	}
	fresh, err := e.store.GetBattle(ctx, id)
	if err != nil {
		return nil, err
	}
	if done {
		e.sim.Forget(id)
		fields := logrus.Fields{
			"battle_id": id,
			"score_one": fresh.PlayerOneScore,
			"score_two": fresh.PlayerTwoScore,
		}
		if fresh.WinnerID != nil {
			fields["winner"] = *fresh.WinnerID
		}
		e.logger.WithFields(fields).Info("battle completed")
		e.notify(ctx, id)
	}
	return fresh, nil
}
