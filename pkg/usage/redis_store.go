package usage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// retentionGrace keeps a month's counter readable for a while after the month ends,
// so that usage history for the previous month stays available.
const retentionGrace = 62 * 24 * time.Hour

// RedisStore implements Store with one Redis string per counter.
// INCR is atomic, so concurrent increments from any number of instances are safe.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

// RedisStoreOption configures a RedisStore.
type RedisStoreOption func(*RedisStore)

// WithKeyPrefix overrides the default "usage" key namespace.
func WithKeyPrefix(prefix string) RedisStoreOption {
	return func(s *RedisStore) {
		if prefix != "" {
			s.prefix = prefix
		}
	}
}

// NewRedisStore creates a Redis-backed counter store.
func NewRedisStore(client redis.UniversalClient, opts ...RedisStoreOption) *RedisStore {
	if client == nil {
		panic("usage: redis client is required")
	}
	s := &RedisStore{client: client, prefix: "usage"}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisStore) key(userID uuid.UUID, monthKey string, action Action) string {
	return fmt.Sprintf("%s:%s:%s:%s", s.prefix, userID, monthKey, action)
}

func (s *RedisStore) Get(ctx context.Context, userID uuid.UUID, monthKey string, action Action) (int64, error) {
	n, err := s.client.Get(ctx, s.key(userID, monthKey, action)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, errors.Join(ErrReadFailed, fmt.Errorf("get usage counter: %w", err))
	}
	return n, nil
}

func (s *RedisStore) Increment(ctx context.Context, userID uuid.UUID, monthKey string, action Action) (int64, error) {
	key := s.key(userID, monthKey, action)
	expireAt := time.Now().UTC().Add(retentionGrace)
	if start, err := time.Parse(monthKeyLayout, monthKey); err == nil {
		expireAt = NextReset(start).Add(retentionGrace)
	}

	var incr *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		pipe.ExpireAt(ctx, key, expireAt)
		return nil
	})
	if err != nil {
		return 0, errors.Join(ErrIncrementFailed, fmt.Errorf("increment usage counter: %w", err))
	}
	return incr.Val(), nil
}
