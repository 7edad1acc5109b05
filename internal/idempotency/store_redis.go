package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"giftvault/pkg/platform/sentinel"
)

const recordKeyPrefix = "idem:key:"

// RedisStore is the production idempotency store. Redis key TTL provides the
// retention window natively, so no sweep is needed.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedis constructs a Redis-backed idempotency store.
func NewRedis(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{client: client, ttl: ttl}
}

func (s *RedisStore) Get(ctx context.Context, key string) (*Record, error) {
	raw, err := s.client.Get(ctx, recordKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("idempotency get: %w", err)
	}
	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("idempotency decode: %w", err)
	}
	return &rec, nil
}

// Put uses SET NX so the first writer wins; a losing writer reads back and
// returns the winner's record.
func (s *RedisStore) Put(ctx context.Context, rec Record) (*Record, error) {
	now := time.Now()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	if rec.ExpiresAt.IsZero() {
		rec.ExpiresAt = rec.CreatedAt.Add(s.ttl)
	}
	raw, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("idempotency encode: %w", err)
	}
	set, err := s.client.SetNX(ctx, recordKeyPrefix+rec.Key, raw, s.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("idempotency put: %w", err)
	}
	if set {
		return &rec, nil
	}
	winner, err := s.Get(ctx, rec.Key)
	if errors.Is(err, sentinel.ErrNotFound) {
		// Winner expired between SetNX and Get; retry the write once.
		if setAgain, err := s.client.SetNX(ctx, recordKeyPrefix+rec.Key, raw, s.ttl).Result(); err == nil && setAgain {
			return &rec, nil
		}
		return s.Get(ctx, rec.Key)
	}
	return winner, err
}
