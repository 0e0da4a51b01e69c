package domain

import (
	"context"
	"time"
)

// Connector adapts one retailer's product search API
type Connector interface {
	Retailer() RetailerID
	Search(ctx context.Context, query string, size int) ([]RawProduct, error)
}

// SlotProvider is implemented by connectors that expose delivery slots
type SlotProvider interface {
	DeliverySlots(ctx context.Context) ([]DeliverySlot, error)
}

// ConnectorRegistry resolves configured retailers to connectors and enforces
// per-call timeouts and circuit breaking around them.
type ConnectorRegistry interface {
	Retailers() []RetailerID
	Has(retailer RetailerID) bool
	Search(ctx context.Context, retailer RetailerID, query string, size int) ([]RawProduct, error)
	DeliverySlots(ctx context.Context, retailer RetailerID) ([]DeliverySlot, error)
}

// SearchCache stores search results by cache key
type SearchCache interface {
	Get(ctx context.Context, key string) (*SearchResult, error)
	Set(ctx context.Context, key string, value *SearchResult, ttl time.Duration) error
}

// BasketStore persists one basket per session
type BasketStore interface {
	Get(ctx context.Context, sessionID string) (*Basket, error)
	Put(ctx context.Context, sessionID string, basket *Basket) error
	Delete(ctx context.Context, sessionID string) error
}

// TemplateStore persists named basket templates per session
type TemplateStore interface {
	List(ctx context.Context, sessionID string) ([]BasketTemplate, error)
	Get(ctx context.Context, sessionID, templateID string) (*BasketTemplate, error)
	Save(ctx context.Context, sessionID string, tpl *BasketTemplate) error
	Delete(ctx context.Context, sessionID, templateID string) error
}

// PriceHistoryRepository records observed prices
type PriceHistoryRepository interface {
	Record(ctx context.Context, points []PricePoint) error
	History(ctx context.Context, retailer RetailerID, productID string, limit int) ([]PricePoint, error)
}

// EventSink receives analytics events. Emit must never block the caller on failure.
type EventSink interface {
	Emit(ctx context.Context, event Event)
}
