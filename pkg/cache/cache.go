package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"storefront-api/pkg/logger"
)

const keyPrefix = "wc:"

var ErrUnavailable = errors.New("redis client not available")

type Options struct {
	URL string
	DB  int
	TTL time.Duration
}

// RedisCache stores JSON-encoded upstream responses with a fixed TTL.
// A nil *RedisCache is valid and behaves as an always-missing cache.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
	log    *logger.Logger
}

// NewRedisCache connects and pings Redis. Callers usually log the error and
// run without a cache.
func NewRedisCache(ctx context.Context, opts Options) (*RedisCache, error) {
	opt, err := redis.ParseURL(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	opt.DB = opts.DB

	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	c := NewWithClient(client, opts.TTL)
	c.log.Info().Int("db", opts.DB).Dur("ttl", c.ttl).Msg("redis connected")
	return c, nil
}

func NewWithClient(client *redis.Client, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &RedisCache{client: client, ttl: ttl, log: logger.Named("cache")}
}

// Get decodes the value at key into dst. It reports false on a miss.
func (r *RedisCache) Get(ctx context.Context, key string, dst any) (bool, error) {
	if !r.IsAvailable() {
		return false, ErrUnavailable
	}

	val, err := r.client.Get(ctx, keyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("redis get error: %w", err)
	}
	if err := json.Unmarshal(val, dst); err != nil {
		return false, fmt.Errorf("json unmarshal error: %w", err)
	}
	return true, nil
}

func (r *RedisCache) Set(ctx context.Context, key string, v any) error {
	if !r.IsAvailable() {
		return ErrUnavailable
	}

	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("json marshal error: %w", err)
	}
	return r.client.Set(ctx, keyPrefix+key, data, r.ttl).Err()
}

func (r *RedisCache) Close() error {
	if r == nil || r.client == nil {
		return nil
	}
	return r.client.Close()
}

func (r *RedisCache) IsAvailable() bool {
	return r != nil && r.client != nil
}

func (r *RedisCache) GetStats(ctx context.Context) map[string]interface{} {
	if !r.IsAvailable() {
		return map[string]interface{}{
			"status": "unavailable",
		}
	}

	keys := r.GetAllKeys(ctx)
	return map[string]interface{}{
		"status":      "connected",
		"ttl_seconds": int(r.ttl.Seconds()),
		"keys":        len(keys),
	}
}

// GetAllKeys lists cached keys without the internal prefix.
func (r *RedisCache) GetAllKeys(ctx context.Context) []string {
	if !r.IsAvailable() {
		return []string{}
	}
	var keys []string
	iter := r.client.Scan(ctx, 0, keyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val()[len(keyPrefix):])
	}
	if err := iter.Err(); err != nil {
		r.log.Warn().Err(err).Msg("scan keys failed")
		return []string{}
	}
	if keys == nil {
		keys = []string{}
	}
	return keys
}

// FlushCache removes every cached upstream response and reports how many
// keys were deleted. Other data in the same Redis database is left alone.
func (r *RedisCache) FlushCache(ctx context.Context) (int, error) {
	if !r.IsAvailable() {
		return 0, ErrUnavailable
	}
	keys := r.GetAllKeys(ctx)
	if len(keys) == 0 {
		return 0, nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = keyPrefix + k
	}
	n, err := r.client.Del(ctx, full...).Result()
	if err != nil {
		return 0, fmt.Errorf("redis del error: %w", err)
	}
	return int(n), nil
}

func (r *RedisCache) GetKeyTTL(ctx context.Context, key string) time.Duration {
	if !r.IsAvailable() {
		return 0
	}
	ttl, err := r.client.TTL(ctx, keyPrefix+key).Result()
	if err != nil {
		return 0
	}
	return ttl
}
