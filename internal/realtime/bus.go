// internal/realtime/bus.go
package realtime

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Bus pushes "battle changed" notifications. Delivery is at-least-once and unordered, and a
// notification carries nothing a subscriber should trust: handlers re-read the battle.
type Bus interface {
	Publish(ctx context.Context, battleID uuid.UUID) error
	// Subscribe registers onChange for battleID. The returned func removes the
	// subscription and is safe to call more than once.
	Subscribe(ctx context.Context, battleID uuid.UUID, onChange func()) (unsubscribe func(), err error)
}

type subscription struct {
	onChange func()
}

// LocalBus is an in-process Bus for single-instance deployments and tests.
type LocalBus struct {
	mu   sync.Mutex
	subs map[uuid.UUID]map[*subscription]struct{}
}

func NewLocalBus() *LocalBus {
	return &LocalBus{subs: make(map[uuid.UUID]map[*subscription]struct{})}
}

// Publish notifies every subscriber of battleID on its own goroutine, so a slow
// handler never blocks the writer that triggered the change.
func (b *LocalBus) Publish(_ context.Context, battleID uuid.UUID) error {
	b.mu.Lock()
	targets := make([]*subscription, 0, len(b.subs[battleID]))
	for s := range b.subs[battleID] {
		targets = append(targets, s)
	}
	b.mu.Unlock()

	for _, s := range targets {
		go s.onChange()
	}
	return nil
}

func (b *LocalBus) Subscribe(_ context.Context, battleID uuid.UUID, onChange func()) (func(), error) {
	s := &subscription{onChange: onChange}

	b.mu.Lock()
	if b.subs[battleID] == nil {
		b.subs[battleID] = make(map[*subscription]struct{})
	}
	b.subs[battleID][s] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.subs[battleID], s)
			if len(b.subs[battleID]) == 0 {
				delete(b.subs, battleID)
			}
		})
	}, nil
}

// Subscribers reports how many handlers are registered for battleID.
func (b *LocalBus) Subscribers(battleID uuid.UUID) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[battleID])
}
