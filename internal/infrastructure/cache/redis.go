package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/boodschap/backend/internal/domain"
)

const keyPrefix = "boodschap:"

// RedisCache is a search result cache shared between server instances.
// Entries are JSON encoded and expire through the redis TTL.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache creates a new redis-backed search cache
func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

// Get retrieves a cached result
func (c *RedisCache) Get(ctx context.Context, key string) (*domain.SearchResult, error) {
	data, err := c.client.Get(ctx, keyPrefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrCacheMiss
		}
		return nil, fmt.Errorf("redis get search result: %w", err)
	}

	var result domain.SearchResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("unmarshal search result: %w", err)
	}
	return &result, nil
}

// Set stores a result with the given TTL, replacing any previous entry atomically
func (c *RedisCache) Set(ctx context.Context, key string, value *domain.SearchResult, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal search result: %w", err)
	}
	if err := c.client.Set(ctx, keyPrefix+key, data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set search result: %w", err)
	}
	return nil
}

// Delete removes a cached result
func (c *RedisCache) Delete(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, keyPrefix+key).Err(); err != nil {
		return fmt.Errorf("redis del search result: %w", err)
	}
	return nil
}
