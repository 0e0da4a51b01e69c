package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/boodschap/backend/internal/domain"
)

const (
	basketKeyPrefix   = "boodschap:basket:"
	templateKeyPrefix = "boodschap:templates:"
)

// MemoryBasketStore keeps baskets in process memory
type MemoryBasketStore struct {
	mu      sync.RWMutex
	baskets map[string]*domain.Basket
}

// NewMemoryBasketStore creates an empty in-memory basket store
func NewMemoryBasketStore() *MemoryBasketStore {
	return &MemoryBasketStore{baskets: make(map[string]*domain.Basket)}
}

// Get returns a copy of the session's basket
func (s *MemoryBasketStore) Get(ctx context.Context, sessionID string) (*domain.Basket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.baskets[sessionID]
	if !ok {
		return nil, domain.ErrBasketNotFound
	}
	return b.Clone(), nil
}

// Put replaces the session's basket
func (s *MemoryBasketStore) Put(ctx context.Context, sessionID string, basket *domain.Basket) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.baskets[sessionID] = basket.Clone()
	return nil
}

// Delete removes the session's basket
func (s *MemoryBasketStore) Delete(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.baskets, sessionID)
	return nil
}

// RedisBasketStore implements domain.BasketStore using Redis
type RedisBasketStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisBasketStore creates a new Redis-backed basket store. A ttl of 0 keeps baskets forever.
func NewRedisBasketStore(client *redis.Client, ttl time.Duration) *RedisBasketStore {
	return &RedisBasketStore{
		client: client,
		ttl:    ttl,
	}
}

// Get retrieves a basket by session ID from Redis
func (s *RedisBasketStore) Get(ctx context.Context, sessionID string) (*domain.Basket, error) {
	data, err := s.client.Get(ctx, basketKeyPrefix+sessionID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrBasketNotFound
		}
		return nil, fmt.Errorf("redis get basket: %w", err)
	}

	var basket domain.Basket
	if err := json.Unmarshal(data, &basket); err != nil {
		return nil, fmt.Errorf("unmarshal basket: %w", err)
	}
	return &basket, nil
}

// Put persists a basket with the configured TTL
func (s *RedisBasketStore) Put(ctx context.Context, sessionID string, basket *domain.Basket) error {
	data, err := json.Marshal(basket)
	if err != nil {
		return fmt.Errorf("marshal basket: %w", err)
	}
	if err := s.client.Set(ctx, basketKeyPrefix+sessionID, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set basket: %w", err)
	}
	return nil
}

// Delete removes a basket from Redis
func (s *RedisBasketStore) Delete(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, basketKeyPrefix+sessionID).Err(); err != nil {
		return fmt.Errorf("redis del basket: %w", err)
	}
	return nil
}
