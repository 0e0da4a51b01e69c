package usecase

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/boodschap/backend/internal/domain"
)

type searchFunc func(ctx context.Context, query string, size int) ([]domain.RawProduct, error)

// MockRegistry is a mock implementation of domain.ConnectorRegistry
type MockRegistry struct {
	mu        sync.Mutex
	searchers map[domain.RetailerID]searchFunc
	slots     map[domain.RetailerID][]domain.DeliverySlot
	calls     map[domain.RetailerID]int
	sizes     map[domain.RetailerID]int
}

func NewMockRegistry() *MockRegistry {
	return &MockRegistry{
		searchers: make(map[domain.RetailerID]searchFunc),
		slots:     make(map[domain.RetailerID][]domain.DeliverySlot),
		calls:     make(map[domain.RetailerID]int),
		sizes:     make(map[domain.RetailerID]int),
	}
}

func (m *MockRegistry) withProducts(retailer domain.RetailerID, raws ...domain.RawProduct) *MockRegistry {
	m.searchers[retailer] = func(context.Context, string, int) ([]domain.RawProduct, error) {
		return raws, nil
	}
	return m
}

func (m *MockRegistry) withError(retailer domain.RetailerID, err error) *MockRegistry {
	m.searchers[retailer] = func(context.Context, string, int) ([]domain.RawProduct, error) {
		return nil, err
	}
	return m
}

func (m *MockRegistry) Retailers() []domain.RetailerID {
	out := make([]domain.RetailerID, 0, len(m.searchers))
	for id := range m.searchers {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (m *MockRegistry) Has(retailer domain.RetailerID) bool {
	_, ok := m.searchers[retailer]
	return ok
}

func (m *MockRegistry) Search(ctx context.Context, retailer domain.RetailerID, query string, size int) ([]domain.RawProduct, error) {
	m.mu.Lock()
	m.calls[retailer]++
	m.sizes[retailer] = size
	fn := m.searchers[retailer]
	m.mu.Unlock()
	return fn(ctx, query, size)
}

func (m *MockRegistry) DeliverySlots(ctx context.Context, retailer domain.RetailerID) ([]domain.DeliverySlot, error) {
	slots, ok := m.slots[retailer]
	if !ok {
		return nil, domain.NewConnectorError(retailer, domain.ConnectorNotSupported, domain.ErrNotSupported)
	}
	return slots, nil
}

func (m *MockRegistry) totalCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		n += c
	}
	return n
}

// MockSearchCache is a mock implementation of domain.SearchCache
type MockSearchCache struct {
	mu       sync.Mutex
	data     map[string]*domain.SearchResult
	getError error
	setCalls int
}

func NewMockSearchCache() *MockSearchCache {
	return &MockSearchCache{data: make(map[string]*domain.SearchResult)}
}

func (m *MockSearchCache) Get(ctx context.Context, key string) (*domain.SearchResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getError != nil {
		return nil, m.getError
	}
	if v, ok := m.data[key]; ok {
		return v.Clone(), nil
	}
	return nil, domain.ErrCacheMiss
}

func (m *MockSearchCache) Set(ctx context.Context, key string, value *domain.SearchResult, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setCalls++
	m.data[key] = value.Clone()
	return nil
}

// RecordingSink collects emitted events
type RecordingSink struct {
	mu     sync.Mutex
	events []domain.Event
}

func (r *RecordingSink) Emit(ctx context.Context, e domain.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *RecordingSink) named(name string) []domain.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Event
	for _, e := range r.events {
		if e.Name == name {
			out = append(out, e)
		}
	}
	return out
}

// MockBasketStore is a mock implementation of domain.BasketStore
type MockBasketStore struct {
	mu       sync.Mutex
	baskets  map[string]*domain.Basket
	putError error
}

func NewMockBasketStore() *MockBasketStore {
	return &MockBasketStore{baskets: make(map[string]*domain.Basket)}
}

func (m *MockBasketStore) Get(ctx context.Context, sessionID string) (*domain.Basket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.baskets[sessionID]
	if !ok {
		return nil, domain.ErrBasketNotFound
	}
	return b.Clone(), nil
}

func (m *MockBasketStore) Put(ctx context.Context, sessionID string, b *domain.Basket) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.putError != nil {
		return m.putError
	}
	m.baskets[sessionID] = b.Clone()
	return nil
}

func (m *MockBasketStore) Delete(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.baskets, sessionID)
	return nil
}

// MockTemplateStore is a mock implementation of domain.TemplateStore
type MockTemplateStore struct {
	mu        sync.Mutex
	templates map[string][]domain.BasketTemplate
}

func NewMockTemplateStore() *MockTemplateStore {
	return &MockTemplateStore{templates: make(map[string][]domain.BasketTemplate)}
}

func (m *MockTemplateStore) List(ctx context.Context, sessionID string) ([]domain.BasketTemplate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := append([]domain.BasketTemplate{}, m.templates[sessionID]...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *MockTemplateStore) Get(ctx context.Context, sessionID, id string) (*domain.BasketTemplate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.templates[sessionID] {
		if t.ID == id {
			tpl := t
			return &tpl, nil
		}
	}
	return nil, domain.ErrTemplateNotFound
}

func (m *MockTemplateStore) Save(ctx context.Context, sessionID string, tpl *domain.BasketTemplate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.templates[sessionID] = append(m.templates[sessionID], *tpl)
	return nil
}

func (m *MockTemplateStore) Delete(ctx context.Context, sessionID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.templates[sessionID]
	for i, t := range list {
		if t.ID == id {
			m.templates[sessionID] = append(list[:i], list[i+1:]...)
			return nil
		}
	}
	return domain.ErrTemplateNotFound
}

func raw(id, name string, price any) domain.RawProduct {
	return domain.RawProduct{"id": id, "name": name, "price_eur": price}
}

func eur(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
