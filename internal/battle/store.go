// internal/battle/store.go
package battle

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/codeduel/internal/models"
)

// Store persists battles and attempts. Every method touches a single row, and no caller
// relies on multi-row transactions. The conditional methods report whether their guard
// held; false means another writer got there first, not a failure.
type Store interface {
	// InsertBattle fails with ErrRoomCodeTaken when a waiting battle already uses the room code.
	InsertBattle(ctx context.Context, b *models.Battle) error
	GetBattle(ctx context.Context, id uuid.UUID) (*models.Battle, error)
	FindWaitingByRoomCode(ctx context.Context, code string) (*models.Battle, error)

	// ClaimRoom seats playerTwo and starts the battle only while it is still WAITING.
	ClaimRoom(ctx context.Context, id, playerTwo uuid.UUID, at time.Time) (bool, error)
	// AddScore increments the slot's score, leaving the other seat untouched. The slot's
	// submitted flag is set only while the battle is still on round.
	AddScore(ctx context.Context, id uuid.UUID, slot models.Slot, round, points int, at time.Time) error
	// SetFirstCorrect overwrites the marker unconditionally.
	SetFirstCorrect(ctx context.Context, id uuid.UUID, fc models.FirstCorrect) error
	// AdvanceRound moves from round `from` to from+1 and clears both submitted flags,
	// only while IN_PROGRESS, on round `from`, and not on the last round.
	AdvanceRound(ctx context.Context, id uuid.UUID, from int, at time.Time) (bool, error)
	// CompleteBattle finishes an IN_PROGRESS battle and derives the winner from the stored scores.
	CompleteBattle(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
	// CancelBattle moves a non-terminal battle to CANCELLED and clears its room code.
	CancelBattle(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
	// ExpireRoom cancels a battle only while it is still WAITING.
	ExpireRoom(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
	// ListStaleWaiting returns WAITING battles created before the cutoff.
	ListStaleWaiting(ctx context.Context, createdBefore time.Time) ([]uuid.UUID, error)

	InsertAttempt(ctx context.Context, a *models.Attempt) error
	ListAttempts(ctx context.Context, battleID uuid.UUID) ([]models.Attempt, error)
}

// ProblemPool supplies round problems. It is owned by the problem bank, not the engine.
type ProblemPool interface {
	EligibleProblems(ctx context.Context, language string, difficulty models.Difficulty) ([]models.Problem, error)
	// GetProblem fails with ErrProblemNotFound for unknown ids.
	GetProblem(ctx context.Context, id string) (*models.Problem, error)
}
