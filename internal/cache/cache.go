// README: Redis-backed result cache with explicit TTLs and clear.
package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrMiss is returned by Get when the key is absent or expired.
var ErrMiss = errors.New("cache miss")

// Cache is a namespaced key/value cache. Entries expire lazily via redis
// TTLs; Clear drops the whole namespace. One component owns each namespace,
// there is no shared ambient cache.
type Cache struct {
	redis  *redis.Client
	prefix string
}

func New(r *redis.Client, namespace string) *Cache {
	return &Cache{redis: r, prefix: namespace + ":"}
}

func (c *Cache) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := c.redis.Get(ctx, c.prefix+key).Bytes()
	if err == redis.Nil {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, err
	}
	return val, nil
}

func (c *Cache) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return c.redis.Set(ctx, c.prefix+key, value, ttl).Err()
}

// Clear removes every entry in the namespace.
func (c *Cache) Clear(ctx context.Context) error {
	iter := c.redis.Scan(ctx, 0, c.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		if err := c.redis.Del(ctx, iter.Val()).Err(); err != nil {
			return err
		}
	}
	return iter.Err()
}
