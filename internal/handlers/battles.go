// internal/handlers/battles.go
package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/codeduel/internal/auth"
	"github.com/jason-s-yu/codeduel/internal/battle"
	"github.com/jason-s-yu/codeduel/internal/models"
)

type createBattleRequest struct {
	Language          string              `json:"language"`
	Difficulty        models.Difficulty   `json:"difficulty"`
	TotalRounds       int                 `json:"totalRounds"`
	RoundTimeLimitSec int                 `json:"roundTimeLimitSec"`
	Opponent          models.OpponentKind `json:"opponent"`
}

type joinBattleRequest struct {
	RoomCode string `json:"roomCode"`
}

type advanceRequest struct {
	// FromRound, when set, only advances a battle still on that round.
	FromRound *int `json:"fromRound"`
}

type submitRequest struct {
	ProblemID   string `json:"problemId"`
	Code        string `json:"code"`
	TimeTakenMs int64  `json:"timeTakenMs"`
}

// problemView is what players see of a problem: the test inputs, never the expected outputs.
type problemView struct {
	ID         string            `json:"id"`
	Title      string            `json:"title"`
	Language   string            `json:"language"`
	Difficulty models.Difficulty `json:"difficulty"`
	Inputs     []string          `json:"inputs"`
}

type roundResponse struct {
	Problem      problemView `json:"problem"`
	Index        int         `json:"index"`
	Total        int         `json:"total"`
	TimeLimitSec int         `json:"timeLimitSec"`
}

func (s *Server) CreateBattleHandler(w http.ResponseWriter, r *http.Request) {
	player, _ := auth.PlayerFrom(r.Context())

	req := createBattleRequest{TotalRounds: 3, RoundTimeLimitSec: 300, Opponent: models.OpponentHuman}
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	b, err := s.Engine.CreateBattle(r.Context(), battle.CreateParams{
		CreatorID:         player,
		Language:          req.Language,
		Difficulty:        req.Difficulty,
		TotalRounds:       req.TotalRounds,
		RoundTimeLimitSec: req.RoundTimeLimitSec,
		Opponent:          req.Opponent,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, b)
}

func (s *Server) JoinBattleHandler(w http.ResponseWriter, r *http.Request) {
	player, _ := auth.PlayerFrom(r.Context())

	var req joinBattleRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	b, err := s.Engine.JoinByRoomCode(r.Context(), req.RoomCode, player)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (s *Server) GetBattleHandler(w http.ResponseWriter, r *http.Request) {
	id, err := battleIDParam(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	b, err := s.Engine.GetBattle(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (s *Server) CancelBattleHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := s.participantBattle(w, r)
	if !ok {
		return
	}
	b, err := s.Engine.CancelBattle(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (s *Server) CurrentRoundHandler(w http.ResponseWriter, r *http.Request) {
	id, err := battleIDParam(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	round, err := s.Engine.GetCurrentRound(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	view := problemView{
		ID:         round.Problem.ID,
		Title:      round.Problem.Title,
		Language:   round.Problem.Language,
		Difficulty: round.Problem.Difficulty,
		Inputs:     make([]string, 0, len(round.Problem.TestCases)),
	}
	for _, tc := range round.Problem.TestCases {
		view.Inputs = append(view.Inputs, tc.Input)
	}
	writeJSON(w, http.StatusOK, roundResponse{
		Problem:      view,
		Index:        round.Index,
		Total:        round.Total,
		TimeLimitSec: round.TimeLimitSec,
	})
}

func (s *Server) AdvanceRoundHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := s.participantBattle(w, r)
	if !ok {
		return
	}
	var req advanceRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	var b *models.Battle
	var err error
	if req.FromRound != nil {
		b, err = s.Engine.AdvanceRoundFrom(r.Context(), id, *req.FromRound)
	} else {
		b, err = s.Engine.AdvanceRound(r.Context(), id)
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (s *Server) SubmitHandler(w http.ResponseWriter, r *http.Request) {
	player, _ := auth.PlayerFrom(r.Context())
	id, err := battleIDParam(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req submitRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	// a submission runs to completion even if the client goes away
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), s.submitTimeout())
	defer cancel()

	res, err := s.Engine.SubmitAnswer(ctx, battle.Submission{
		BattleID:  id,
		PlayerID:  player,
		ProblemID: req.ProblemID,
		Code:      req.Code,
		TimeTaken: time.Duration(req.TimeTakenMs) * time.Millisecond,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) ListAttemptsHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := s.participantBattle(w, r)
	if !ok {
		return
	}
	attempts, err := s.Engine.ListAttempts(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if attempts == nil {
		attempts = []models.Attempt{}
	}
	writeJSON(w, http.StatusOK, attempts)
}

// participantBattle resolves the path battle and checks the caller plays in it.
// It writes the error response itself and reports whether the handler may continue.
func (s *Server) participantBattle(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	player, _ := auth.PlayerFrom(r.Context())
	id, err := battleIDParam(r)
	if err != nil {
		s.writeError(w, r, err)
		return uuid.Nil, false
	}
	b, err := s.Engine.GetBattle(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return uuid.Nil, false
	}
	if _, ok := b.SlotOf(player); !ok {
		s.writeError(w, r, battle.ErrNotParticipant)
		return uuid.Nil, false
	}
	return id, true
}

func (s *Server) submitTimeout() time.Duration {
	if s.SubmitTimeout > 0 {
		return s.SubmitTimeout
	}
	return 2 * time.Minute
}
