// internal/battle/arbiter.go
package battle

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/codeduel/internal/executor"
	"github.com/jason-s-yu/codeduel/internal/models"
	"github.com/sirupsen/logrus"
)

// Submission is a player's answer for the battle's current round. ProblemID is optional;
// when set it must name the current round's problem.
type Submission struct {
	BattleID  uuid.UUID
	PlayerID  uuid.UUID
	ProblemID string
	Code      string
	TimeTaken time.Duration
}

type SubmitResult struct {
	Attempt *models.Attempt `json:"attempt"`
	Battle  *models.Battle  `json:"battle"`
}

// ScoreUpdate is what both human submissions and the simulator feed into RecordScore.
type ScoreUpdate struct {
	BattleID uuid.UUID
	PlayerID uuid.UUID
	Round    int
	Points   int
	Correct  bool
}

// SubmitAnswer runs the code against every test case of the round's problem, records an
// Attempt and credits the score. Sandbox failures fail the affected test case; they never
// fail the submission.
func (e *Engine) SubmitAnswer(ctx context.Context, sub Submission) (*SubmitResult, error) {
	if strings.TrimSpace(sub.Code) == "" {
		return nil, ErrInvalidSubmission.Withf("code is empty")
	}
	if sub.TimeTaken < 0 {
		return nil, ErrInvalidSubmission.Withf("time taken cannot be negative")
	}

	b, err := e.store.GetBattle(ctx, sub.BattleID)
	if err != nil {
		return nil, err
	}
	slot, ok := b.SlotOf(sub.PlayerID)
	if !ok || (slot == models.SlotTwo && !b.OpponentIsHuman()) {
		return nil, ErrNotParticipant
	}
	if b.Status != models.StatusInProgress {
		return nil, ErrBattleNotActive.Withf("battle is %s", b.Status)
	}

	round := b.CurrentRound
	problemID := b.ProblemIDs[round]
	if sub.ProblemID != "" && sub.ProblemID != problemID {
		if b.ProblemIndex(sub.ProblemID) < 0 {
			return nil, ErrInvalidSubmission.Withf("problem %s is not part of this battle", sub.ProblemID)
		}
		return nil, ErrInvalidSubmission.Withf("problem %s is not the problem of round %d", sub.ProblemID, round)
	}

	problem, err := e.problems.GetProblem(ctx, problemID)
	if err != nil {
		return nil, err
	}

	log := e.logger.WithFields(logrus.Fields{
		"battle_id": b.ID,
		"player_id": sub.PlayerID,
		"round":     round,
		"problem":   problemID,
	})

	results, passed := e.evaluate(ctx, log, b.Language, problem, sub.Code)
	correct := len(results) > 0 && passed == len(results)
	base, bonus := ScorePoints(correct, sub.TimeTaken, b.RoundTimeLimitSec)

	attempt := &models.Attempt{
		ID:           uuid.New(),
		BattleID:     b.ID,
		ProblemID:    problemID,
		PlayerID:     sub.PlayerID,
		Round:        round,
		Language:     b.Language,
		Code:         sub.Code,
		Results:      results,
		Passed:       passed,
		Total:        len(results),
		Correct:      correct,
		TimeTakenMs:  sub.TimeTaken.Milliseconds(),
		BasePoints:   base,
		BonusPoints:  bonus,
		PointsEarned: base + bonus,
		CreatedAt:    e.now(),
	}
	if err := e.store.InsertAttempt(ctx, attempt); err != nil {
		return nil, fmt.Errorf("insert attempt: %w", err)
	}
	log.WithFields(logrus.Fields{
		"passed": passed,
		"total":  len(results),
		"points": attempt.PointsEarned,
	}).Info("submission scored")

	fresh, err := e.RecordScore(ctx, ScoreUpdate{
		BattleID: b.ID,
		PlayerID: sub.PlayerID,
		Round:    round,
		Points:   attempt.PointsEarned,
		Correct:  correct,
	})
	if err != nil {
		return nil, err
	}

	// the bot answers the round the human just played, never one the battle has left
	if !b.OpponentIsHuman() && fresh.CurrentRound == round {
		e.sim.Schedule(fresh)
	}
	return &SubmitResult{Attempt: attempt, Battle: fresh}, nil
}

// evaluate runs the test cases one after another and returns the per-case results and
// how many passed. A problem without test cases is run once on empty input and passes
// when nothing is written to stderr.
func (e *Engine) evaluate(ctx context.Context, log logrus.FieldLogger, language string, p *models.Problem, code string) ([]models.TestResult, int) {
	cases := p.TestCases
	if len(cases) == 0 {
		r := e.runCase(ctx, log, language, code, 0, "")
		r.Passed = r.Error == "" && strings.TrimSpace(r.Stderr) == ""
		if r.Passed {
			return []models.TestResult{r}, 1
		}
		return []models.TestResult{r}, 0
	}

	results := make([]models.TestResult, 0, len(cases))
	passed := 0
	for i, tc := range cases {
		r := e.runCase(ctx, log, language, code, i, tc.Input)
		r.Expected = tc.ExpectedOutput
		r.Passed = r.Error == "" &&
			strings.TrimSpace(r.Stderr) == "" &&
			strings.TrimSpace(r.Actual) == strings.TrimSpace(tc.ExpectedOutput)
		if r.Passed {
			passed++
		}
		results = append(results, r)
	}
	return results, passed
}

func (e *Engine) runCase(ctx context.Context, log logrus.FieldLogger, language, code string, index int, input string) models.TestResult {
	r := models.TestResult{Index: index, Input: input}
	res, err := e.exec.Execute(ctx, executor.Request{Language: language, Source: code, Stdin: input})
	if err != nil {
		log.WithError(err).WithField("case", index).Warn("executor failed, recording test as failed")
		r.Error = ErrExecution.Wrap(err).Error()
		return r
	}
	r.Actual = res.Stdout
	r.Stderr = res.Stderr
	return r
}

// RecordScore is the single path that credits points to a player, used by human
// submissions and the simulator alike. Points always post; the submitted flag and the
// first-correct marker only apply while the battle is still on u.Round. It moves the
// round on when it is over.
func (e *Engine) RecordScore(ctx context.Context, u ScoreUpdate) (*models.Battle, error) {
	if u.Points < 0 {
		return nil, ErrInvalidSubmission.Withf("points cannot be negative")
	}
	b, err := e.store.GetBattle(ctx, u.BattleID)
	if err != nil {
		return nil, err
	}
	slot, ok := b.SlotOf(u.PlayerID)
	if !ok {
		return nil, ErrNotParticipant
	}

	now := e.now()
	if err := e.store.AddScore(ctx, b.ID, slot, u.Round, u.Points, now); err != nil {
		return nil, fmt.Errorf("add score: %w", err)
	}

	// Read-then-write with no guard: two correct answers racing in the same round may
	// both stamp the marker, and the later write wins.
	stamped := false
	if u.Correct && b.OpponentIsHuman() && b.CurrentRound == u.Round && (b.FirstCorrect == nil || b.FirstCorrect.Round != u.Round) {
		fc := models.FirstCorrect{PlayerID: u.PlayerID, Round: u.Round, At: now}
		if err := e.store.SetFirstCorrect(ctx, b.ID, fc); err != nil {
			return nil, fmt.Errorf("set first correct: %w", err)
		}
		stamped = true
	}
	e.notify(ctx, b.ID)

	if stamped && e.opts.FirstCorrectMode == FirstCorrectEndsRound {
		return e.AdvanceRoundFrom(ctx, b.ID, u.Round)
	}

	fresh, err := e.store.GetBattle(ctx, b.ID)
	if err != nil {
		return nil, err
	}
	if e.opts.AutoAdvance && fresh.Status == models.StatusInProgress &&
		fresh.CurrentRound == u.Round && fresh.BothSubmitted() {
		return e.advance(ctx, fresh, u.Round)
	}
	return fresh, nil
}
