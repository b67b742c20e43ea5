// Package cache provides a Redis read-through cache for license lookups on
// the hot verify path. Piracy counters and bindings never live here; every
// mutation invalidates the cached copy and the store stays authoritative.
package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/poyrazK/keygate/internal/core/domain"
	"github.com/redis/go-redis/v9"
)

const keyspace = "license:"

type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

func NewRedisCache(addr, password string, db int, ttl time.Duration, logger *slog.Logger) *RedisCache {
	if logger == nil {
		logger = slog.Default()
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &RedisCache{client: rdb, ttl: ttl, logger: logger}
}

func (r *RedisCache) Get(ctx context.Context, key string) (*domain.License, bool) {
	val, err := r.client.Get(ctx, keyspace+key).Bytes()
	if err != nil {
		return nil, false
	}
	var lic domain.License
	if err := json.Unmarshal(val, &lic); err != nil {
		// Corrupt entry; drop it rather than serve garbage.
		r.client.Del(ctx, keyspace+key)
		return nil, false
	}
	return &lic, true
}

func (r *RedisCache) Set(ctx context.Context, lic *domain.License) {
	data, err := json.Marshal(lic)
	if err != nil {
		r.logger.Error("failed to marshal license for cache", "key", lic.Key, "error", err)
		return
	}
	r.client.Set(ctx, keyspace+lic.Key, data, r.ttl)
}

func (r *RedisCache) Invalidate(ctx context.Context, key string) {
	r.client.Del(ctx, keyspace+key)
}

func (r *RedisCache) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
