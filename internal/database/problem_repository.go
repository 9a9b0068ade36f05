package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jason-s-yu/codeduel/internal/battle"
	"github.com/jason-s-yu/codeduel/internal/models"
)

// ProblemRepository serves the problem bank out of the battle_problems table.
type ProblemRepository struct {
	db DBTX
}

var _ battle.ProblemPool = (*ProblemRepository)(nil)

func NewProblemRepository(db DBTX) *ProblemRepository {
	return &ProblemRepository{db: db}
}

// EligibleProblems matches language case-insensitively; an empty language matches every problem.
func (r *ProblemRepository) EligibleProblems(ctx context.Context, language string, difficulty models.Difficulty) ([]models.Problem, error) {
	q := `
		SELECT id, title, language, difficulty, test_cases
		FROM battle_problems
		WHERE ($1 = '' OR lower(language) = lower($1)) AND difficulty = $2
		ORDER BY id
	`
	rows, err := r.db.Query(ctx, q, language, string(difficulty))
	if err != nil {
		return nil, fmt.Errorf("query eligible problems: %w", err)
	}
	defer rows.Close()

	var out []models.Problem
	for rows.Next() {
		p, err := scanProblem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func (r *ProblemRepository) GetProblem(ctx context.Context, id string) (*models.Problem, error) {
	row := r.db.QueryRow(ctx, `SELECT id, title, language, difficulty, test_cases FROM battle_problems WHERE id = $1`, id)
	p, err := scanProblem(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, battle.ErrProblemNotFound
	}
	return p, err
}

// UpsertProblems seeds or refreshes the bank, one statement per problem.
func (r *ProblemRepository) UpsertProblems(ctx context.Context, problems []models.Problem) error {
	q := `
		INSERT INTO battle_problems (id, title, language, difficulty, test_cases)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE
		SET title = EXCLUDED.title, language = EXCLUDED.language,
		    difficulty = EXCLUDED.difficulty, test_cases = EXCLUDED.test_cases
	`
	for _, p := range problems {
		cases, err := json.Marshal(p.TestCases)
		if err != nil {
			return fmt.Errorf("encode test cases for %s: %w", p.ID, err)
		}
		if _, err := r.db.Exec(ctx, q, p.ID, p.Title, p.Language, string(p.Difficulty), cases); err != nil {
			return fmt.Errorf("upsert problem %s: %w", p.ID, err)
		}
	}
	return nil
}

func scanProblem(row pgx.Row) (*models.Problem, error) {
	var p models.Problem
	var difficulty string
	var cases []byte
	if err := row.Scan(&p.ID, &p.Title, &p.Language, &difficulty, &cases); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan problem: %w", err)
	}
	p.Difficulty = models.Difficulty(difficulty)
	// stored rows may carry any of the historical expected-output keys
	if len(cases) > 0 {
		if err := json.Unmarshal(cases, &p.TestCases); err != nil {
			return nil, fmt.Errorf("decode test cases for %s: %w", p.ID, err)
		}
	}
	return &p, nil
}
