package credentials

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisOpTimeout = 2 * time.Second

var _ Backend = (*RedisBackend)(nil)

// RedisBackend persists credentials in Redis so a session survives process
// restarts (CLI invocations, BFF replicas). Every key carries the cookie
// max age as its TTL.
type RedisBackend struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisBackend creates a Redis-backed credential backend. namespace
// separates profiles sharing one Redis instance.
func NewRedisBackend(client *redis.Client, namespace string, ttl time.Duration) *RedisBackend {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &RedisBackend{
		client: client,
		prefix: "credentials:" + namespace + ":",
		ttl:    ttl,
	}
}

func (r *RedisBackend) key(k string) string {
	return r.prefix + k
}

func (r *RedisBackend) Get(key string) (string, bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()

	val, err := r.client.Get(ctx, r.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

func (r *RedisBackend) Set(key, value string) error {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()
	return r.client.Set(ctx, r.key(key), value, r.ttl).Err()
}

func (r *RedisBackend) Remove(key string) error {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()
	return r.client.Del(ctx, r.key(key)).Err()
}
