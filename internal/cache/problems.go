package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jason-s-yu/codeduel/internal/battle"
	"github.com/jason-s-yu/codeduel/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// ProblemCache is a read-through Redis cache in front of a slower ProblemPool.
// Cache failures are logged and fall through to the inner pool.
type ProblemCache struct {
	inner  battle.ProblemPool
	rdb    redis.Cmdable
	prefix string
	ttl    time.Duration
	logger logrus.FieldLogger
}

var _ battle.ProblemPool = (*ProblemCache)(nil)

func NewProblemCache(inner battle.ProblemPool, rdb redis.Cmdable, prefix string, ttl time.Duration, logger logrus.FieldLogger) *ProblemCache {
	if prefix == "" {
		prefix = "codeduel"
	}
	return &ProblemCache{inner: inner, rdb: rdb, prefix: prefix, ttl: ttl, logger: logger}
}

func (c *ProblemCache) EligibleProblems(ctx context.Context, language string, difficulty models.Difficulty) ([]models.Problem, error) {
	key := fmt.Sprintf("%s:problems:%s:%s", c.prefix, strings.ToLower(language), difficulty)

	var cached []models.Problem
	if c.load(ctx, key, &cached) {
		return cached, nil
	}

	problems, err := c.inner.EligibleProblems(ctx, language, difficulty)
	if err != nil {
		return nil, err
	}
	c.store(ctx, key, problems)
	return problems, nil
}

func (c *ProblemCache) GetProblem(ctx context.Context, id string) (*models.Problem, error) {
	key := fmt.Sprintf("%s:problem:%s", c.prefix, id)

	var cached models.Problem
	if c.load(ctx, key, &cached) {
		return &cached, nil
	}

	p, err := c.inner.GetProblem(ctx, id)
	if err != nil {
		return nil, err
	}
	c.store(ctx, key, p)
	return p, nil
}

// Invalidate drops every cached problem entry under the prefix.
func (c *ProblemCache) Invalidate(ctx context.Context) error {
	iter := c.rdb.Scan(ctx, 0, c.prefix+":problem*", 100).Iterator()
	for iter.Next(ctx) {
		if err := c.rdb.Del(ctx, iter.Val()).Err(); err != nil {
			return fmt.Errorf("invalidate %s: %w", iter.Val(), err)
		}
	}
	return iter.Err()
}

func (c *ProblemCache) load(ctx context.Context, key string, dst any) bool {
	data, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false
	}
	if err != nil {
		c.logger.WithError(err).WithField("key", key).Warn("problem cache read failed")
		return false
	}
	if err := json.Unmarshal(data, dst); err != nil {
		c.logger.WithError(err).WithField("key", key).Warn("dropping unreadable problem cache entry")
		_ = c.rdb.Del(ctx, key).Err()
		return false
	}
	return true
}

func (c *ProblemCache) store(ctx context.Context, key string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		c.logger.WithError(err).WithField("key", key).Warn("problem cache encode failed")
		return
	}
	if err := c.rdb.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.logger.WithError(err).WithField("key", key).Warn("problem cache write failed")
	}
}
