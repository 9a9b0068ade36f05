// internal/models/attempt.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// TestResult is the outcome of running a submission against one test case.
type TestResult struct {
	Index    int    `json:"index"`
	Input    string `json:"input"`
	Expected string `json:"expected"`
	Actual   string `json:"actual"`
	Stderr   string `json:"stderr,omitempty"`
	// Error carries the executor failure text when the sandbox itself could not run the case.
	Error  string `json:"error,omitempty"`
	Passed bool   `json:"passed"`
}

// Attempt is the append-only record of one submission. It is written once and never updated.
type Attempt struct {
	ID           uuid.UUID    `json:"id"`
	BattleID     uuid.UUID    `json:"battleId"`
	ProblemID    string       `json:"problemId"`
	PlayerID     uuid.UUID    `json:"playerId"`
	Round        int          `json:"round"`
	Language     string       `json:"language"`
	Code         string       `json:"code"`
	Results      []TestResult `json:"results"`
	Passed       int          `json:"passed"`
	Total        int          `json:"total"`
	Correct      bool         `json:"correct"`
	TimeTakenMs  int64        `json:"timeTakenMs"`
	BasePoints   int          `json:"basePoints"`
	BonusPoints  int          `json:"bonusPoints"`
	PointsEarned int          `json:"pointsEarned"`
	CreatedAt    time.Time    `json:"createdAt"`
}
