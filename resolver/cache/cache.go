// Package cache memoizes Suggest results in Redis.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"nutriguide"
)

const keyPrefix = "nutriguide:suggest:"

// DefaultTTL applies when NewSuggestCache is given a non-positive ttl.
const DefaultTTL = time.Hour

type redisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
}

// SuggestCache is a Resolver whose Suggest results are cached by normalized food name.
// Identify and Aggregate pass straight through. Redis failures are logged and bypassed.
type SuggestCache struct {
	nutriguide.Resolver
	rdb redisClient
	ttl time.Duration
}

func NewSuggestCache(next nutriguide.Resolver, rdb redisClient, ttl time.Duration) *SuggestCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &SuggestCache{Resolver: next, rdb: rdb, ttl: ttl}
}

// NewRedisClient connects to addr. An empty addr returns nil.
func NewRedisClient(addr, password string) *redis.Client {
	if addr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	})
}

func (c *SuggestCache) Suggest(ctx context.Context, foodName string) ([]string, error) {
	key := cacheKey(foodName)

	cached, err := c.rdb.Get(ctx, key).Result()
	switch {
	case err == nil:
		var out []string
		if jerr := json.Unmarshal([]byte(cached), &out); jerr == nil {
			slog.Info("RESOLVER: Suggest cache hit", "key", key, "suggestions", len(out))
			return out, nil
		}
		slog.Warn("RESOLVER: Discarding corrupt cache entry", "key", key)
	case errors.Is(err, redis.Nil):
	default:
		slog.Warn("RESOLVER: Suggest cache unavailable", "error", err)
	}

	out, err := c.Resolver.Suggest(ctx, foodName)
	if err != nil {
		return nil, err
	}

	b, err := json.Marshal(out)
	if err == nil {
		err = c.rdb.Set(ctx, key, b, c.ttl).Err()
	}
	if err != nil {
		slog.Warn("RESOLVER: Failed to cache suggestions", "key", key, "error", err)
	}
	return out, nil
}

func cacheKey(foodName string) string {
	name := strings.ToLower(strings.ReplaceAll(foodName, "_", " "))
	return keyPrefix + strings.Join(strings.Fields(name), " ")
}
