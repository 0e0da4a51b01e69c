package usecase

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/boodschap/backend/internal/domain"
)

const defaultTemplateName = "Unnamed basket"

// BasketService owns the read-modify-write cycle of session baskets.
// Mutations of one session are serialized; different sessions proceed in parallel.
type BasketService struct {
	store     domain.BasketStore
	templates domain.TemplateStore
	events    domain.EventSink
	logger    zerolog.Logger
	locks     *keyedMutex
	now       func() time.Time
}

// NewBasketService creates a new basket service with dependencies
func NewBasketService(
	store domain.BasketStore,
	templates domain.TemplateStore,
	events domain.EventSink,
	logger zerolog.Logger,
) *BasketService {
	return &BasketService{
		store:     store,
		templates: templates,
		events:    events,
		logger:    logger.With().Str("component", "basket").Logger(),
		locks:     newKeyedMutex(),
		now:       time.Now,
	}
}

// Get returns the session's basket, or an empty one when none is stored
func (s *BasketService) Get(ctx context.Context, sessionID string) (*domain.Basket, error) {
	if err := requireSession(sessionID); err != nil {
		return nil, err
	}
	return s.load(ctx, sessionID)
}

func (s *BasketService) load(ctx context.Context, sessionID string) (*domain.Basket, error) {
	b, err := s.store.Get(ctx, sessionID)
	if errors.Is(err, domain.ErrBasketNotFound) {
		return domain.NewBasket(sessionID), nil
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

// AddItem adds a line, accumulating quantity when the product is already present
func (s *BasketService) AddItem(ctx context.Context, sessionID string, line domain.CartLineRef) (*domain.Basket, error) {
	if err := requireSession(sessionID); err != nil {
		return nil, err
	}
	if err := validateLine(&line); err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(sessionID)
	defer unlock()

	b, err := s.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	b.Add(line)
	if err := s.save(ctx, b); err != nil {
		return nil, err
	}

	s.emit(ctx, domain.EventBasketItemAdded, sessionID, map[string]any{
		"retailer":  line.Retailer,
		"productId": line.ProductID,
		"quantity":  line.Quantity,
	})
	return b, nil
}

// RemoveItem decreases a line's quantity and drops it once it reaches zero
func (s *BasketService) RemoveItem(
	ctx context.Context,
	sessionID string,
	retailer domain.RetailerID,
	productID string,
	qty int,
) (*domain.Basket, error) {
	if err := requireSession(sessionID); err != nil {
		return nil, err
	}
	if qty < 0 {
		return nil, domain.NewValidationError("qty", "must not be negative")
	}

	unlock := s.locks.Lock(sessionID)
	defer unlock()

	b, err := s.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := b.Remove(retailer, productID, qty); err != nil {
		return nil, err
	}
	if err := s.save(ctx, b); err != nil {
		return nil, err
	}

	s.emit(ctx, domain.EventBasketItemRemoved, sessionID, map[string]any{
		"retailer":  retailer,
		"productId": productID,
		"quantity":  qty,
	})
	return b, nil
}

// Clear deletes the session's basket
func (s *BasketService) Clear(ctx context.Context, sessionID string) error {
	if err := requireSession(sessionID); err != nil {
		return err
	}
	unlock := s.locks.Lock(sessionID)
	defer unlock()
	return s.store.Delete(ctx, sessionID)
}

// ListTemplates returns the session's templates, newest first
func (s *BasketService) ListTemplates(ctx context.Context, sessionID string) ([]domain.BasketTemplate, error) {
	if err := requireSession(sessionID); err != nil {
		return nil, err
	}
	return s.templates.List(ctx, sessionID)
}

// SaveTemplate snapshots the current basket under a name
func (s *BasketService) SaveTemplate(ctx context.Context, sessionID, name string) (*domain.BasketTemplate, error) {
	if err := requireSession(sessionID); err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(sessionID)
	b, err := s.load(ctx, sessionID)
	unlock()
	if err != nil {
		return nil, err
	}
	if len(b.Items) == 0 {
		return nil, domain.NewValidationError("basket", "cannot save an empty basket")
	}

	name = strings.TrimSpace(name)
	if name == "" {
		name = defaultTemplateName
	}
	tpl := &domain.BasketTemplate{
		ID:        uuid.NewString(),
		Name:      name,
		CreatedAt: s.now().UTC(),
		Items:     append([]domain.CartLineRef(nil), b.Items...),
	}
	if err := s.templates.Save(ctx, sessionID, tpl); err != nil {
		return nil, err
	}

	s.emit(ctx, domain.EventTemplateSaved, sessionID, map[string]any{"templateId": tpl.ID, "itemCount": len(tpl.Items)})
	return tpl, nil
}

// ApplyTemplate replaces the basket contents with the template's lines
func (s *BasketService) ApplyTemplate(ctx context.Context, sessionID, templateID string) (*domain.Basket, error) {
	if err := requireSession(sessionID); err != nil {
		return nil, err
	}
	tpl, err := s.templates.Get(ctx, sessionID, templateID)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(sessionID)
	defer unlock()

	b := domain.NewBasket(sessionID)
	for _, line := range tpl.Items {
		b.Add(line)
	}
	if err := s.save(ctx, b); err != nil {
		return nil, err
	}

	s.emit(ctx, domain.EventTemplateApplied, sessionID, map[string]any{"templateId": tpl.ID, "itemCount": len(b.Items)})
	return b, nil
}

// DeleteTemplate removes a template
func (s *BasketService) DeleteTemplate(ctx context.Context, sessionID, templateID string) error {
	if err := requireSession(sessionID); err != nil {
		return err
	}
	return s.templates.Delete(ctx, sessionID, templateID)
}

func (s *BasketService) save(ctx context.Context, b *domain.Basket) error {
	b.UpdatedAt = s.now().UTC()
	if err := s.store.Put(ctx, b.SessionID, b); err != nil {
		s.logger.Error().Err(err).Str("session", b.SessionID).Msg("basket write failed")
		return err
	}
	return nil
}

func (s *BasketService) emit(ctx context.Context, name, sessionID string, payload map[string]any) {
	if s.events == nil {
		return
	}
	s.events.Emit(ctx, domain.NewEvent(name, sessionID, payload))
}

func requireSession(sessionID string) error {
	if strings.TrimSpace(sessionID) == "" {
		return domain.NewValidationError("sessionId", "required")
	}
	return nil
}

func validateLine(line *domain.CartLineRef) error {
	line.Name = strings.TrimSpace(line.Name)
	switch {
	case line.Retailer == "":
		return domain.NewValidationError("retailer", "required")
	case strings.TrimSpace(line.ProductID) == "":
		return domain.NewValidationError("productId", "required")
	case line.Name == "":
		return domain.NewValidationError("name", "required")
	case line.PriceEUR.IsNegative():
		return domain.NewValidationError("priceEur", "must not be negative")
	case line.Quantity < 0:
		return domain.NewValidationError("quantity", "must not be negative")
	}
	if line.Quantity == 0 {
		line.Quantity = 1
	}
	return nil
}

// keyedMutex hands out one mutex per key and forgets keys nobody holds
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedLock
}

type keyedLock struct {
	mu   sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*keyedLock)}
}

// Lock blocks until key is free and returns its unlock function
func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &keyedLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
