package ratelimiter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// hitScript applies the fixed window rule atomically inside Redis.
// KEYS[1] window hash, ARGV[1] now in ms, ARGV[2] window length in ms.
// Returns {count, window_start_ms}.
var hitScript = redis.NewScript(`
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local start = tonumber(redis.call('HGET', KEYS[1], 'start'))
local count
if not start or now - start >= window then
	start = now
	count = 1
	redis.call('HSET', KEYS[1], 'start', start, 'count', count)
else
	count = redis.call('HINCRBY', KEYS[1], 'count', 1)
end
local ttl = start + window - now
if ttl < 1 then
	ttl = 1
end
redis.call('PEXPIRE', KEYS[1], ttl)
return {count, start}
`)

// RedisStore implements Store in Redis so that every instance shares one window per key.
// This centralises burst state: the ceiling holds across the whole deployment
// at the cost of one Redis round trip per check.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisStore creates a Redis-backed window store. Keys are namespaced with prefix.
func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	if client == nil {
		panic("ratelimiter: redis client is required")
	}
	if prefix == "" {
		prefix = "burst"
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (rs *RedisStore) key(key string) string {
	return rs.prefix + ":" + key
}

func (rs *RedisStore) Hit(ctx context.Context, key string, config Config, now time.Time) (Window, error) {
	res, err := hitScript.Run(ctx, rs.client, []string{rs.key(key)}, now.UnixMilli(), config.Window.Milliseconds()).Int64Slice()
	if err != nil {
		return Window{}, errors.Join(ErrStoreUnavailable, err)
	}
	if len(res) != 2 {
		return Window{}, fmt.Errorf("%w: unexpected script result length %d", ErrStoreUnavailable, len(res))
	}
	return Window{Count: int(res[0]), WindowStart: time.UnixMilli(res[1])}, nil
}

func (rs *RedisStore) Reset(ctx context.Context, key string) error {
	if err := rs.client.Del(ctx, rs.key(key)).Err(); err != nil {
		return errors.Join(ErrStoreUnavailable, err)
	}
	return nil
}
