package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jason-s-yu/codeduel/internal/battle"
	"github.com/jason-s-yu/codeduel/internal/models"
)

const uniqueViolation = "23505"

const battleColumns = `id, mode, language, difficulty, problem_ids, round_time_limit_sec, current_round, opponent_kind,
	player_one_id, player_two_id, player_one_score, player_two_score, player_one_submitted, player_two_submitted,
	status, room_code, winner_id, first_correct_player_id, first_correct_round, first_correct_at,
	created_at, updated_at, started_at, ended_at`

// BattleRepository is the Postgres battle.Store. Each method is a single statement against one row;
// the conditional transitions put their guard in the WHERE clause and read RowsAffected.
type BattleRepository struct {
	db DBTX
}

var _ battle.Store = (*BattleRepository)(nil)

func NewBattleRepository(db DBTX) *BattleRepository {
	return &BattleRepository{db: db}
}

func (r *BattleRepository) InsertBattle(ctx context.Context, b *models.Battle) error {
	q := `
		INSERT INTO battles (` + battleColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
		        $15, $16, $17, $18, $19, $20, $21, $22, $23, $24)
	`
	var fcPlayer *uuid.UUID
	var fcRound *int
	var fcAt *time.Time
	if fc := b.FirstCorrect; fc != nil {
		fcPlayer, fcRound, fcAt = &fc.PlayerID, &fc.Round, &fc.At
	}

	_, err := r.db.Exec(ctx, q,
		b.ID, b.Mode, b.Language, string(b.Difficulty), b.ProblemIDs, b.RoundTimeLimitSec, b.CurrentRound, string(b.OpponentKind),
		b.PlayerOneID, nullUUID(b.PlayerTwoID), b.PlayerOneScore, b.PlayerTwoScore, b.PlayerOneSubmitted, b.PlayerTwoSubmitted,
		string(b.Status), nullString(b.RoomCode), b.WinnerID, fcPlayer, fcRound, fcAt,
		b.CreatedAt, b.UpdatedAt, b.StartedAt, b.EndedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return battle.ErrRoomCodeTaken
		}
		return fmt.Errorf("insert battle: %w", err)
	}
	return nil
}

func (r *BattleRepository) GetBattle(ctx context.Context, id uuid.UUID) (*models.Battle, error) {
	row := r.db.QueryRow(ctx, `SELECT `+battleColumns+` FROM battles WHERE id = $1`, id)
	b, err := scanBattle(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, battle.ErrBattleNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get battle: %w", err)
	}
	return b, nil
}

func (r *BattleRepository) FindWaitingByRoomCode(ctx context.Context, code string) (*models.Battle, error) {
	row := r.db.QueryRow(ctx, `SELECT `+battleColumns+` FROM battles WHERE room_code = $1 AND status = 'WAITING'`, code)
	b, err := scanBattle(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, battle.ErrRoomNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find room: %w", err)
	}
	return b, nil
}

func (r *BattleRepository) ClaimRoom(ctx context.Context, id, playerTwo uuid.UUID, at time.Time) (bool, error) {
	q := `
		UPDATE battles
		SET player_two_id = $2, status = 'IN_PROGRESS', room_code = NULL, started_at = $3, updated_at = $3
		WHERE id = $1 AND status = 'WAITING'
	`
	return r.conditional(ctx, "claim room", id, q, id, playerTwo, at)
}

func (r *BattleRepository) AddScore(ctx context.Context, id uuid.UUID, slot models.Slot, round, points int, at time.Time) error {
	q := `
		UPDATE battles
		SET player_one_score = player_one_score + $2,
			player_one_submitted = player_one_submitted OR current_round = $4,
			updated_at = $3
		WHERE id = $1
	`
	if slot == models.SlotTwo {
		q = `
			UPDATE battles
			SET player_two_score = player_two_score + $2,
				player_two_submitted = player_two_submitted OR current_round = $4,
				updated_at = $3
			WHERE id = $1
		`
	}
	tag, err := r.db.Exec(ctx, q, id, points, at, round)
	if err != nil {
		return fmt.Errorf("add score: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return battle.ErrBattleNotFound
	}
	return nil
}

func (r *BattleRepository) SetFirstCorrect(ctx context.Context, id uuid.UUID, fc models.FirstCorrect) error {
	q := `
		UPDATE battles
		SET first_correct_player_id = $2, first_correct_round = $3, first_correct_at = $4, updated_at = $4
		WHERE id = $1
	`
	tag, err := r.db.Exec(ctx, q, id, fc.PlayerID, fc.Round, fc.At)
	if err != nil {
		return fmt.Errorf("set first correct: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return battle.ErrBattleNotFound
	}
	return nil
}

func (r *BattleRepository) AdvanceRound(ctx context.Context, id uuid.UUID, from int, at time.Time) (bool, error) {
	q := `
		UPDATE battles
		SET current_round = current_round + 1, player_one_submitted = false, player_two_submitted = false, updated_at = $3
		WHERE id = $1 AND status = 'IN_PROGRESS' AND current_round = $2 AND $2 + 1 < cardinality(problem_ids)
	`
	return r.conditional(ctx, "advance round", id, q, id, from, at)
}

func (r *BattleRepository) CompleteBattle(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	q := `
		UPDATE battles
		SET status = 'COMPLETED',
		    winner_id = CASE
		        WHEN player_one_score > player_two_score THEN player_one_id
		        WHEN player_two_score > player_one_score THEN player_two_id
		    END,
		    ended_at = $2, updated_at = $2
		WHERE id = $1 AND status = 'IN_PROGRESS'
	`
	return r.conditional(ctx, "complete battle", id, q, id, at)
}

func (r *BattleRepository) CancelBattle(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	q := `
		UPDATE battles
		SET status = 'CANCELLED', room_code = NULL, ended_at = $2, updated_at = $2
		WHERE id = $1 AND status IN ('WAITING', 'IN_PROGRESS')
	`
	return r.conditional(ctx, "cancel battle", id, q, id, at)
}

func (r *BattleRepository) ExpireRoom(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	q := `
		UPDATE battles
		SET status = 'CANCELLED', room_code = NULL, ended_at = $2, updated_at = $2
		WHERE id = $1 AND status = 'WAITING'
	`
	return r.conditional(ctx, "expire room", id, q, id, at)
}

func (r *BattleRepository) ListStaleWaiting(ctx context.Context, createdBefore time.Time) ([]uuid.UUID, error) {
	rows, err := r.db.Query(ctx, `SELECT id FROM battles WHERE status = 'WAITING' AND created_at < $1`, createdBefore)
	if err != nil {
		return nil, fmt.Errorf("list stale rooms: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
	if err != nil {
		return nil, fmt.Errorf("scan stale rooms: %w", err)
	}
	return ids, nil
}

func (r *BattleRepository) InsertAttempt(ctx context.Context, a *models.Attempt) error {
	results, err := json.Marshal(a.Results)
	if err != nil {
		return fmt.Errorf("encode attempt results: %w", err)
	}
	q := `
		INSERT INTO battle_attempts (id, battle_id, problem_id, player_id, round, language, code, results,
			passed, total, correct, time_taken_ms, base_points, bonus_points, points_earned, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`
	_, err = r.db.Exec(ctx, q, a.ID, a.BattleID, a.ProblemID, a.PlayerID, a.Round, a.Language, a.Code, results,
		a.Passed, a.Total, a.Correct, a.TimeTakenMs, a.BasePoints, a.BonusPoints, a.PointsEarned, a.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert attempt: %w", err)
	}
	return nil
}

func (r *BattleRepository) ListAttempts(ctx context.Context, battleID uuid.UUID) ([]models.Attempt, error) {
	q := `
		SELECT id, battle_id, problem_id, player_id, round, language, code, results,
			passed, total, correct, time_taken_ms, base_points, bonus_points, points_earned, created_at
		FROM battle_attempts
		WHERE battle_id = $1
		ORDER BY created_at
	`
	rows, err := r.db.Query(ctx, q, battleID)
	if err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}
	defer rows.Close()

	var out []models.Attempt
	for rows.Next() {
		var a models.Attempt
		var results []byte
		if err := rows.Scan(&a.ID, &a.BattleID, &a.ProblemID, &a.PlayerID, &a.Round, &a.Language, &a.Code, &results,
			&a.Passed, &a.Total, &a.Correct, &a.TimeTakenMs, &a.BasePoints, &a.BonusPoints, &a.PointsEarned, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan attempt: %w", err)
		}
		if err := json.Unmarshal(results, &a.Results); err != nil {
			return nil, fmt.Errorf("decode attempt results: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// conditional runs a guarded update. Zero affected rows is a lost guard unless the battle
// does not exist at all.
func (r *BattleRepository) conditional(ctx context.Context, op string, id uuid.UUID, q string, args ...any) (bool, error) {
	tag, err := r.db.Exec(ctx, q, args...)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	if tag.RowsAffected() > 0 {
		return true, nil
	}

	var exists bool
	if err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM battles WHERE id = $1)`, id).Scan(&exists); err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	if !exists {
		return false, battle.ErrBattleNotFound
	}
	return false, nil
}

func scanBattle(row pgx.Row) (*models.Battle, error) {
	var (
		b                        models.Battle
		difficulty, kind, status string
		playerTwo, fcPlayer      *uuid.UUID
		roomCode                 *string
		fcRound                  *int
		fcAt                     *time.Time
	)
	err := row.Scan(
		&b.ID, &b.Mode, &b.Language, &difficulty, &b.ProblemIDs, &b.RoundTimeLimitSec, &b.CurrentRound, &kind,
		&b.PlayerOneID, &playerTwo, &b.PlayerOneScore, &b.PlayerTwoScore, &b.PlayerOneSubmitted, &b.PlayerTwoSubmitted,
		&status, &roomCode, &b.WinnerID, &fcPlayer, &fcRound, &fcAt,
		&b.CreatedAt, &b.UpdatedAt, &b.StartedAt, &b.EndedAt,
	)
	if err != nil {
		return nil, err
	}

	b.Difficulty = models.Difficulty(difficulty)
	b.OpponentKind = models.OpponentKind(kind)
	b.Status = models.BattleStatus(status)
	if playerTwo != nil {
		b.PlayerTwoID = *playerTwo
	}
	if roomCode != nil {
		b.RoomCode = *roomCode
	}
	if fcPlayer != nil && fcRound != nil && fcAt != nil {
		b.FirstCorrect = &models.FirstCorrect{PlayerID: *fcPlayer, Round: *fcRound, At: *fcAt}
	}
	return &b, nil
}

func nullUUID(id uuid.UUID) *uuid.UUID {
	if id == uuid.Nil {
		return nil
	}
	return &id
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
