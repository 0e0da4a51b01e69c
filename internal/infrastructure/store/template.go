package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/boodschap/backend/internal/domain"
)

// MemoryTemplateStore keeps basket templates in process memory
type MemoryTemplateStore struct {
	mu        sync.RWMutex
	templates map[string]map[string]domain.BasketTemplate
}

// NewMemoryTemplateStore creates an empty in-memory template store
func NewMemoryTemplateStore() *MemoryTemplateStore {
	return &MemoryTemplateStore{templates: make(map[string]map[string]domain.BasketTemplate)}
}

// List returns the session's templates, newest first
func (s *MemoryTemplateStore) List(ctx context.Context, sessionID string) ([]domain.BasketTemplate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.BasketTemplate, 0, len(s.templates[sessionID]))
	for _, tpl := range s.templates[sessionID] {
		out = append(out, copyTemplate(tpl))
	}
	sortNewestFirst(out)
	return out, nil
}

// Get returns one template
func (s *MemoryTemplateStore) Get(ctx context.Context, sessionID, templateID string) (*domain.BasketTemplate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tpl, ok := s.templates[sessionID][templateID]
	if !ok {
		return nil, domain.ErrTemplateNotFound
	}
	cp := copyTemplate(tpl)
	return &cp, nil
}

// Save stores or replaces a template
func (s *MemoryTemplateStore) Save(ctx context.Context, sessionID string, tpl *domain.BasketTemplate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.templates[sessionID] == nil {
		s.templates[sessionID] = make(map[string]domain.BasketTemplate)
	}
	s.templates[sessionID][tpl.ID] = copyTemplate(*tpl)
	return nil
}

// Delete removes a template
func (s *MemoryTemplateStore) Delete(ctx context.Context, sessionID, templateID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.templates[sessionID][templateID]; !ok {
		return domain.ErrTemplateNotFound
	}
	delete(s.templates[sessionID], templateID)
	if len(s.templates[sessionID]) == 0 {
		delete(s.templates, sessionID)
	}
	return nil
}

// RedisTemplateStore keeps one hash per session, template id to JSON
type RedisTemplateStore struct {
	client *redis.Client
}

// NewRedisTemplateStore creates a new Redis-backed template store
func NewRedisTemplateStore(client *redis.Client) *RedisTemplateStore {
	return &RedisTemplateStore{client: client}
}

// List returns the session's templates, newest first
func (s *RedisTemplateStore) List(ctx context.Context, sessionID string) ([]domain.BasketTemplate, error) {
	fields, err := s.client.HGetAll(ctx, templateKeyPrefix+sessionID).Result()
	if err != nil {
		return nil, fmt.Errorf("redis hgetall templates: %w", err)
	}

	out := make([]domain.BasketTemplate, 0, len(fields))
	for id, data := range fields {
		var tpl domain.BasketTemplate
		if err := json.Unmarshal([]byte(data), &tpl); err != nil {
			return nil, fmt.Errorf("unmarshal template %s: %w", id, err)
		}
		out = append(out, tpl)
	}
	sortNewestFirst(out)
	return out, nil
}

// Get returns one template
func (s *RedisTemplateStore) Get(ctx context.Context, sessionID, templateID string) (*domain.BasketTemplate, error) {
	data, err := s.client.HGet(ctx, templateKeyPrefix+sessionID, templateID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrTemplateNotFound
		}
		return nil, fmt.Errorf("redis hget template: %w", err)
	}

	var tpl domain.BasketTemplate
	if err := json.Unmarshal(data, &tpl); err != nil {
		return nil, fmt.Errorf("unmarshal template: %w", err)
	}
	return &tpl, nil
}

// Save stores or replaces a template
func (s *RedisTemplateStore) Save(ctx context.Context, sessionID string, tpl *domain.BasketTemplate) error {
	data, err := json.Marshal(tpl)
	if err != nil {
		return fmt.Errorf("marshal template: %w", err)
	}
	if err := s.client.HSet(ctx, templateKeyPrefix+sessionID, tpl.ID, data).Err(); err != nil {
		return fmt.Errorf("redis hset template: %w", err)
	}
	return nil
}

// Delete removes a template
func (s *RedisTemplateStore) Delete(ctx context.Context, sessionID, templateID string) error {
	removed, err := s.client.HDel(ctx, templateKeyPrefix+sessionID, templateID).Result()
	if err != nil {
		return fmt.Errorf("redis hdel template: %w", err)
	}
	if removed == 0 {
		return domain.ErrTemplateNotFound
	}
	return nil
}

func copyTemplate(tpl domain.BasketTemplate) domain.BasketTemplate {
	tpl.Items = append([]domain.CartLineRef(nil), tpl.Items...)
	return tpl
}

func sortNewestFirst(templates []domain.BasketTemplate) {
	sort.Slice(templates, func(i, j int) bool {
		if !templates[i].CreatedAt.Equal(templates[j].CreatedAt) {
			return templates[i].CreatedAt.After(templates[j].CreatedAt)
		}
		return templates[i].ID < templates[j].ID
	})
}
