package subscription

import (
	"context"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
)

const keyPrefix = "taskboard:completed:"

// RedisCache keeps completed counts in Redis with a TTL so that counts
// changed behind the server's back expire.
type RedisCache struct {
	client redis.Cmdable
	ttl    time.Duration
}

func NewRedisCache(client redis.Cmdable, ttl time.Duration) *RedisCache {
	return &RedisCache{
		client: client,
		ttl:    ttl,
	}
}

func Key(userID string) string {
	return keyPrefix + userID
}

func (c *RedisCache) Get(ctx context.Context, userID string) (int, bool, error) {
	count, err := c.client.Get(ctx, Key(userID)).Int()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return count, true, nil
}

func (c *RedisCache) Set(ctx context.Context, userID string, count int) error {
	return c.client.Set(ctx, Key(userID), count, c.ttl).Err()
}
