package identity

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/redis/go-redis/v9"
)

// RedisCache implements RevocationCache on top of a redis client. TTLs map
// directly to key expirations so revocation entries clean themselves up.
type RedisCache struct {
	client *redis.Client
	logger Logger
}

var _ RevocationCache = (*RedisCache)(nil)

func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{
		client: client,
		logger: defLogger{},
	}
}

func (c *RedisCache) WithLogger(logger Logger) *RedisCache {
	if logger != nil {
		c.logger = logger
	}
	return c
}

func (c *RedisCache) Get(ctx context.Context, key string) (string, error) {
	val, err := c.client.Get(ctx, key).Result()
	if err != nil {
		if goerrors.Is(err, redis.Nil) {
			return "", ErrCacheMiss
		}
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "cache get failed")
	}
	return val, nil
}

func (c *RedisCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := c.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "cache set failed")
	}
	return nil
}

func (c *RedisCache) Delete(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, key).Err(); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "cache delete failed")
	}
	return nil
}
