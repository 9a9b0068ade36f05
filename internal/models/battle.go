// internal/models/battle.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// BattleStatus is the lifecycle state of a Battle. Transitions only move forward:
// WAITING -> IN_PROGRESS -> COMPLETED, with CANCELLED reachable from either non-terminal state.
type BattleStatus string

const (
	StatusWaiting    BattleStatus = "WAITING"
	StatusInProgress BattleStatus = "IN_PROGRESS"
	StatusCompleted  BattleStatus = "COMPLETED"
	StatusCancelled  BattleStatus = "CANCELLED"
)

// Terminal reports whether no further transitions are possible.
func (s BattleStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// OpponentKind selects whether player two is a person or the simulator.
type OpponentKind string

const (
	OpponentHuman OpponentKind = "human"
	OpponentBot   OpponentKind = "bot"
)

func (k OpponentKind) Valid() bool {
	return k == OpponentHuman || k == OpponentBot
}

// Difficulty buckets problems and keys the bot's solve probability.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "EASY"
	DifficultyMedium Difficulty = "MEDIUM"
	DifficultyHard   Difficulty = "HARD"
)

func (d Difficulty) Valid() bool {
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return true
	}
	return false
}

// ModeOneVsOne is the only battle mode currently offered.
const ModeOneVsOne = "1v1"

// BotPlayerID is the opaque identity bound as player two of every bot battle.
var BotPlayerID = uuid.MustParse("00000000-0000-4000-8000-000000000b07")

// Slot identifies one of the two seats in a battle.
type Slot int

const (
	SlotOne Slot = 1
	SlotTwo Slot = 2
)

// FirstCorrect marks which player first solved the current round.
type FirstCorrect struct {
	PlayerID uuid.UUID `json:"playerId"`
	Round    int       `json:"round"`
	At       time.Time `json:"at"`
}

// Battle is one match instance. It is always re-read by ID before an operation;
// nothing holds on to a copy across calls.
type Battle struct {
	ID                uuid.UUID    `json:"id"`
	Mode              string       `json:"mode"`
	Language          string       `json:"language"`
	Difficulty        Difficulty   `json:"difficulty"`
	ProblemIDs        []string     `json:"problemIds"`
	RoundTimeLimitSec int          `json:"roundTimeLimitSec"`
	CurrentRound      int          `json:"currentRound"`
	OpponentKind      OpponentKind `json:"opponentKind"`

	PlayerOneID        uuid.UUID `json:"playerOneId"`
	PlayerTwoID        uuid.UUID `json:"playerTwoId"`
	PlayerOneScore     int       `json:"playerOneScore"`
	PlayerTwoScore     int       `json:"playerTwoScore"`
	PlayerOneSubmitted bool      `json:"playerOneSubmitted"`
	PlayerTwoSubmitted bool      `json:"playerTwoSubmitted"`

	Status       BattleStatus  `json:"status"`
	RoomCode     string        `json:"roomCode,omitempty"`
	WinnerID     *uuid.UUID    `json:"winnerId,omitempty"`
	FirstCorrect *FirstCorrect `json:"firstCorrect,omitempty"`

	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
	StartedAt *time.Time `json:"startedAt,omitempty"`
	EndedAt   *time.Time `json:"endedAt,omitempty"`
}

func (b *Battle) TotalRounds() int {
	return len(b.ProblemIDs)
}

func (b *Battle) IsTerminal() bool {
	return b.Status.Terminal()
}

// SlotOf returns the seat held by playerID, if any.
func (b *Battle) SlotOf(playerID uuid.UUID) (Slot, bool) {
	switch {
	case playerID == uuid.Nil:
		return 0, false
	case playerID == b.PlayerOneID:
		return SlotOne, true
	case playerID == b.PlayerTwoID:
		return SlotTwo, true
	}
	return 0, false
}

// PlayerIn returns the player seated at slot.
func (b *Battle) PlayerIn(s Slot) uuid.UUID {
	if s == SlotTwo {
		return b.PlayerTwoID
	}
	return b.PlayerOneID
}

func (b *Battle) ScoreOf(s Slot) int {
	if s == SlotTwo {
		return b.PlayerTwoScore
	}
	return b.PlayerOneScore
}

func (b *Battle) SubmittedOf(s Slot) bool {
	if s == SlotTwo {
		return b.PlayerTwoSubmitted
	}
	return b.PlayerOneSubmitted
}

func (b *Battle) BothSubmitted() bool {
	return b.PlayerOneSubmitted && b.PlayerTwoSubmitted
}

// OpponentIsHuman is false for bot battles, where player two never submits code.
func (b *Battle) OpponentIsHuman() bool {
	return b.OpponentKind == OpponentHuman
}

// ProblemIndex returns the round index of problemID within this battle, or -1.
func (b *Battle) ProblemIndex(problemID string) int {
	for i, id := range b.ProblemIDs {
		if id == problemID {
			return i
		}
	}
	return -1
}

// Winner computes the result of a finished battle: the strictly higher score wins, a tie is a draw.
func (b *Battle) Winner() *uuid.UUID {
	switch {
	case b.PlayerOneScore > b.PlayerTwoScore:
		id := b.PlayerOneID
		return &id
	case b.PlayerTwoScore > b.PlayerOneScore:
		id := b.PlayerTwoID
		return &id
	}
	return nil
}

// Clone returns a deep copy so callers can never mutate a store's record.
func (b *Battle) Clone() *Battle {
	c := *b
	c.ProblemIDs = append([]string(nil), b.ProblemIDs...)
	if b.WinnerID != nil {
		w := *b.WinnerID
		c.WinnerID = &w
	}
	if b.FirstCorrect != nil {
		fc := *b.FirstCorrect
		c.FirstCorrect = &fc
	}
	if b.StartedAt != nil {
		t := *b.StartedAt
		c.StartedAt = &t
	}
	if b.EndedAt != nil {
		t := *b.EndedAt
		c.EndedAt = &t
	}
	return &c
}
