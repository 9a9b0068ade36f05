// internal/realtime/redis_bus.go
package realtime

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// DefaultChannelPrefix namespaces battle notification channels.
const DefaultChannelPrefix = "codeduel"

// RedisBus fans notifications out across server instances over Redis pub/sub.
type RedisBus struct {
	rdb    *redis.Client
	prefix string
	logger logrus.FieldLogger
}

func NewRedisBus(rdb *redis.Client, prefix string, logger logrus.FieldLogger) *RedisBus {
	if prefix == "" {
		prefix = DefaultChannelPrefix
	}
	return &RedisBus{rdb: rdb, prefix: prefix, logger: logger}
}

func (b *RedisBus) channel(battleID uuid.UUID) string {
	return fmt.Sprintf("%s:battle:%s:changed", b.prefix, battleID)
}

func (b *RedisBus) Publish(ctx context.Context, battleID uuid.UUID) error {
	if err := b.rdb.Publish(ctx, b.channel(battleID), battleID.String()).Err(); err != nil {
		return fmt.Errorf("publish battle %s change: %w", battleID, err)
	}
	return nil
}

// Subscribe blocks until Redis confirms the subscription, then delivers messages on a
// background goroutine until unsubscribe is called.
func (b *RedisBus) Subscribe(ctx context.Context, battleID uuid.UUID, onChange func()) (func(), error) {
	ps := b.rdb.Subscribe(ctx, b.channel(battleID))
	if _, err := ps.Receive(ctx); err != nil {
		ps.Close()
		return nil, fmt.Errorf("subscribe battle %s: %w", battleID, err)
	}

	msgs := ps.Channel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		for range msgs {
			onChange()
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			if err := ps.Close(); err != nil {
				b.logger.WithError(err).WithField("battle_id", battleID).Warn("closing battle subscription")
			}
			<-done
		})
	}, nil
}
