// internal/battle/sync.go
package battle

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/codeduel/internal/models"
)

// Watch calls onBattle with the authoritative battle once right away and again after
// every change notification. Notifications are only a hint: each one triggers a fresh
// read, so duplicates and drops are harmless. Calls to onBattle never overlap, and a
// snapshot older than one already delivered is dropped.
func (e *Engine) Watch(ctx context.Context, battleID uuid.UUID, onBattle func(*models.Battle)) (func(), error) {
	if e.bus == nil {
		return nil, fmt.Errorf("watch battle %s: no notification bus configured", battleID)
	}

	var (
		mu   sync.Mutex
		last time.Time
	)
	deliver := func(b *models.Battle) {
		mu.Lock()
		defer mu.Unlock()
		// overlapping refreshes can finish out of order; never go back in time
		if b.UpdatedAt.Before(last) {
			return
		}
		last = b.UpdatedAt
		onBattle(b)
	}
	refresh := func() {
		b, err := e.store.GetBattle(ctx, battleID)
		if err != nil {
			if ctx.Err() == nil {
				e.logger.WithError(err).WithField("battle_id", battleID).Warn("refresh after notification failed")
			}
			return
		}
		deliver(b)
	}

	unsubscribe, err := e.bus.Subscribe(ctx, battleID, refresh)
	if err != nil {
		return nil, err
	}

	// subscribe first, then poll, so a change between the two is never lost
	b, err := e.store.GetBattle(ctx, battleID)
	if err != nil {
		unsubscribe()
		return nil, err
	}
	deliver(b)

	return unsubscribe, nil
}
