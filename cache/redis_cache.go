package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// RedisCache shares cached lookups between several instances.
type RedisCache struct {
	client *redis.Client
	prefix string
}

func NewRedisCache(ctx context.Context, options *redis.Options, prefix string) (*RedisCache, error) {
	client := redis.NewClient(options)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}

	log.Info().Str("addr", options.Addr).Int("db", options.DB).Msg("connected to redis cache")

	return &RedisCache{
		client: client,
		prefix: prefix,
	}, nil
}

func (rc *RedisCache) Fetch(ctx context.Context, namespace string, key string) ([]byte, error) {
	value, err := rc.client.Get(ctx, rc.prefix+cacheKey(namespace, key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return value, nil
}

func (rc *RedisCache) Add(ctx context.Context, namespace string, key string, value []byte, ttl time.Duration) error {
	return rc.client.Set(ctx, rc.prefix+cacheKey(namespace, key), value, ttl).Err()
}

func (rc *RedisCache) Shutdown(ctx context.Context) {
	if err := rc.client.Close(); err != nil {
		log.Warn().Err(err).Msg("failed to close redis client")
	}
}
