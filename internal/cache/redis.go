package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis is a small string cache. A nil *Redis never hits.
type Redis struct {
	cli    *redis.Client
	prefix string
}

func NewRedis(cli *redis.Client, prefix string) *Redis {
	if cli == nil {
		return nil
	}
	return &Redis{cli: cli, prefix: prefix}
}

func (r *Redis) Get(ctx context.Context, key string) (string, bool) {
	if r == nil {
		return "", false
	}
	s, err := r.cli.Get(ctx, r.prefix+key).Result()
	if err != nil {
		return "", false
	}
	return s, true
}

func (r *Redis) Set(ctx context.Context, key, val string, ttl time.Duration) error {
	if r == nil {
		return nil
	}
	return r.cli.Set(ctx, r.prefix+key, val, ttl).Err()
}
