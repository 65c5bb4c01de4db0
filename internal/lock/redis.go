package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "order-lock:"

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type RedisGuard struct {
	client redis.UniversalClient
	ttl    time.Duration
}

func NewRedisGuard(client redis.UniversalClient, ttl time.Duration) *RedisGuard {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisGuard{
		client: client,
		ttl:    ttl,
	}
}

func (g *RedisGuard) Acquire(ctx context.Context, orderID string) (string, bool, error) {
	token := uuid.NewString()
	ok, err := g.client.SetNX(ctx, redisKeyPrefix+orderID, token, g.ttl).Result()
	if err != nil {
		return "", false, fmt.Errorf("redis setnx for %s: %w", orderID, err)
	}
	if !ok {
		return "", false, nil
	}
	return token, true, nil
}

// Release deletes the key only while it still holds token.
func (g *RedisGuard) Release(ctx context.Context, orderID, token string) error {
	if err := releaseScript.Run(ctx, g.client, []string{redisKeyPrefix + orderID}, token).Err(); err != nil && err != redis.Nil {
		return fmt.Errorf("redis release for %s: %w", orderID, err)
	}
	return nil
}
