// Package redis connects the go-redis client shared by the Redis burst store
// (ratelimiter.RedisStore) and the Redis usage counter store (usage.RedisStore).
//
//	client, err := redis.Connect(ctx, cfg)
//	probe := redis.Healthcheck(client)
package redis
