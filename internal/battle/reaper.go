// internal/battle/reaper.go
package battle

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// Reaper cancels rooms nobody joined. A WAITING battle older than TTL is cancelled on
// the next sweep, which also releases its room code.
type Reaper struct {
	engine   *Engine
	ttl      time.Duration
	interval time.Duration
}

func NewReaper(e *Engine, ttl, interval time.Duration) *Reaper {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Reaper{engine: e, ttl: ttl, interval: interval}
}

// Run sweeps every interval until ctx is done.
func (r *Reaper) Run(ctx context.Context) {
	if r.ttl <= 0 {
		r.engine.logger.Info("room reaper disabled")
		return
	}
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := r.Sweep(ctx); err != nil && ctx.Err() == nil {
				r.engine.logger.WithError(err).Warn("room sweep failed")
			}
		}
	}
}

// Sweep cancels every stale waiting battle once and returns how many it cancelled.
func (r *Reaper) Sweep(ctx context.Context) (int, error) {
	cutoff := r.engine.now().Add(-r.ttl)
	ids, err := r.engine.store.ListStaleWaiting(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	n := 0
	for _, id := range ids {
		// a player may have joined since the listing; ExpireRoom leaves that battle alone
		expired, err := r.engine.store.ExpireRoom(ctx, id, r.engine.now())
		if err != nil {
			r.engine.logger.WithError(err).WithField("battle_id", id).Warn("could not cancel stale room")
			continue
		}
		if expired {
			n++
			r.engine.notify(ctx, id)
		}
	}
	if n > 0 {
		r.engine.logger.WithFields(logrus.Fields{"cancelled": n, "cutoff": cutoff}).Info("stale rooms cancelled")
	}
	return n, nil
}
