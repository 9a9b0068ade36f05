// internal/battle/memory_store.go
package battle

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/codeduel/internal/models"
)

// MemoryStore is a mutex-guarded Store used when no database is configured and in tests.
// It hands out clones so callers never share a record with the store.
type MemoryStore struct {
	mu       sync.Mutex
	battles  map[uuid.UUID]*models.Battle
	attempts map[uuid.UUID][]models.Attempt
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		battles:  make(map[uuid.UUID]*models.Battle),
		attempts: make(map[uuid.UUID][]models.Attempt),
	}
}

func (s *MemoryStore) InsertBattle(_ context.Context, b *models.Battle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b.RoomCode != "" {
		for _, other := range s.battles {
			if other.RoomCode == b.RoomCode && other.Status == models.StatusWaiting {
				return ErrRoomCodeTaken
			}
		}
	}
	s.battles[b.ID] = b.Clone()
	return nil
}

func (s *MemoryStore) GetBattle(_ context.Context, id uuid.UUID) (*models.Battle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.battles[id]
	if !ok {
		return nil, ErrBattleNotFound
	}
	return b.Clone(), nil
}

func (s *MemoryStore) FindWaitingByRoomCode(_ context.Context, code string) (*models.Battle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range s.battles {
		if b.RoomCode == code && b.Status == models.StatusWaiting {
			return b.Clone(), nil
		}
	}
	return nil, ErrRoomNotFound
}

func (s *MemoryStore) ClaimRoom(_ context.Context, id, playerTwo uuid.UUID, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.battles[id]
	if !ok {
		return false, ErrBattleNotFound
	}
	if b.Status != models.StatusWaiting {
		return false, nil
	}
	b.PlayerTwoID = playerTwo
	b.Status = models.StatusInProgress
	b.RoomCode = ""
	b.StartedAt = &at
	b.UpdatedAt = at
	return true, nil
}

func (s *MemoryStore) AddScore(_ context.Context, id uuid.UUID, slot models.Slot, round, points int, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.battles[id]
	if !ok {
		return ErrBattleNotFound
	}
	onRound := b.CurrentRound == round
	if slot == models.SlotTwo {
		b.PlayerTwoScore += points
		b.PlayerTwoSubmitted = b.PlayerTwoSubmitted || onRound
	} else {
		b.PlayerOneScore += points
		b.PlayerOneSubmitted = b.PlayerOneSubmitted || onRound
	}
	b.UpdatedAt = at
	return nil
}

func (s *MemoryStore) SetFirstCorrect(_ context.Context, id uuid.UUID, fc models.FirstCorrect) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.battles[id]
	if !ok {
		return ErrBattleNotFound
	}
	b.FirstCorrect = &fc
	b.UpdatedAt = fc.At
	return nil
}

func (s *MemoryStore) AdvanceRound(_ context.Context, id uuid.UUID, from int, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.battles[id]
	if !ok {
		return false, ErrBattleNotFound
	}
	if b.Status != models.StatusInProgress || b.CurrentRound != from || from+1 >= b.TotalRounds() {
		return false, nil
	}
	b.CurrentRound++
	b.PlayerOneSubmitted = false
	b.PlayerTwoSubmitted = false
	b.UpdatedAt = at
	return true, nil
}

func (s *MemoryStore) CompleteBattle(_ context.Context, id uuid.UUID, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.battles[id]
	if !ok {
		return false, ErrBattleNotFound
	}
	if b.Status != models.StatusInProgress {
		return false, nil
	}
	b.Status = models.StatusCompleted
	b.WinnerID = b.Winner()
	b.EndedAt = &at
	b.UpdatedAt = at
	return true, nil
}

func (s *MemoryStore) CancelBattle(_ context.Context, id uuid.UUID, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.battles[id]
	if !ok {
		return false, ErrBattleNotFound
	}
	if b.IsTerminal() {
		return false, nil
	}
	b.Status = models.StatusCancelled
	b.RoomCode = ""
	b.EndedAt = &at
	b.UpdatedAt = at
	return true, nil
}

func (s *MemoryStore) ExpireRoom(_ context.Context, id uuid.UUID, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.battles[id]
	if !ok {
		return false, ErrBattleNotFound
	}
	if b.Status != models.StatusWaiting {
		return false, nil
	}
	b.Status = models.StatusCancelled
	b.RoomCode = ""
	b.EndedAt = &at
	b.UpdatedAt = at
	return true, nil
}

func (s *MemoryStore) ListStaleWaiting(_ context.Context, createdBefore time.Time) ([]uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []uuid.UUID
	for id, b := range s.battles {
		if b.Status == models.StatusWaiting && b.CreatedAt.Before(createdBefore) {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (s *MemoryStore) InsertAttempt(_ context.Context, a *models.Attempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *a
	cp.Results = append([]models.TestResult(nil), a.Results...)
	s.attempts[a.BattleID] = append(s.attempts[a.BattleID], cp)
	return nil
}

func (s *MemoryStore) ListAttempts(_ context.Context, battleID uuid.UUID) ([]models.Attempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := append([]models.Attempt(nil), s.attempts[battleID]...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}
