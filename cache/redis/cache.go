package redis

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/w-h-a/medimate/cache"
)

type redisCache struct {
	options cache.Options
	rdb     *redis.Client
}

func (c *redisCache) GetJSON(ctx context.Context, key string, dst any) (bool, error) {
	key = c.options.Prefix + key

	s, err := c.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if err := json.Unmarshal([]byte(s), dst); err != nil {
		// corrupt entry counts as a miss
		_ = c.rdb.Del(ctx, key).Err()
		return false, nil
	}

	return true, nil
}

func (c *redisCache) SetJSON(ctx context.Context, key string, val any, ttl time.Duration) error {
	bs, err := json.Marshal(val)
	if err != nil {
		return err
	}

	return c.rdb.Set(ctx, c.options.Prefix+key, bs, ttl).Err()
}

func (c *redisCache) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}

	prefixed := make([]string, 0, len(keys))
	for _, k := range keys {
		prefixed = append(prefixed, c.options.Prefix+k)
	}

	return c.rdb.Del(ctx, prefixed...).Err()
}

func NewCache(opts ...cache.Option) cache.Cache {
	options := cache.NewOptions(opts...)

	var rdb *redis.Client

	if strings.HasPrefix(options.Location, "redis://") || strings.HasPrefix(options.Location, "rediss://") {
		opt, err := redis.ParseURL(options.Location)
		if err != nil {
			detail := "failed to parse location for redis cache"
			slog.ErrorContext(context.Background(), detail, "error", err)
			panic(detail)
		}
		rdb = redis.NewClient(opt)
	} else {
		rdb = redis.NewClient(&redis.Options{Addr: options.Location})
	}

	if err := rdb.Ping(context.Background()).Err(); err != nil {
		detail := "failed to ping with redis cache"
		slog.ErrorContext(context.Background(), detail, "error", err)
		panic(detail)
	}

	return &redisCache{
		options: options,
		rdb:     rdb,
	}
}
