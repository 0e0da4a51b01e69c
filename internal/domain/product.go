package domain

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// RetailerID identifies one grocery retailer (e.g. "ah", "jumbo", "picnic", "dirk").
// The set of known retailers comes from configuration.
type RetailerID string

func (r RetailerID) String() string { return string(r) }

// HealthTag is the coarse health classification assigned during normalization
type HealthTag string

const (
	HealthHealthy   HealthTag = "healthy"
	HealthNeutral   HealthTag = "neutral"
	HealthUnhealthy HealthTag = "unhealthy"
)

// Rank returns the ordinal used for health deltas: unhealthy=0, neutral=1, healthy=2.
// Unknown tags rank as neutral.
func (h HealthTag) Rank() int {
	switch h {
	case HealthUnhealthy:
		return 0
	case HealthHealthy:
		return 2
	default:
		return 1
	}
}

// ParseHealthTag parses a health tag case-insensitively
func ParseHealthTag(s string) (HealthTag, bool) {
	switch HealthTag(strings.ToLower(strings.TrimSpace(s))) {
	case HealthHealthy:
		return HealthHealthy, true
	case HealthNeutral:
		return HealthNeutral, true
	case HealthUnhealthy:
		return HealthUnhealthy, true
	}
	return "", false
}

// SortBy selects the ordering of search results
type SortBy string

const (
	SortByPrice        SortBy = "price"
	SortByRetailer     SortBy = "retailer"
	SortByHealth       SortBy = "health"
	SortByPricePerUnit SortBy = "price_per_unit"
)

// ParseSortBy maps the accepted sort parameter spellings onto a SortBy.
// An empty value defaults to price.
func ParseSortBy(s string) (SortBy, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "price", "price_asc", "price_low_high":
		return SortByPrice, true
	case "retailer":
		return SortByRetailer, true
	case "health":
		return SortByHealth, true
	case "price_per_unit", "price_per_unit_asc":
		return SortByPricePerUnit, true
	}
	return "", false
}

// RawProduct is an untrusted, retailer-specific record as returned by a connector.
// Field names vary per retailer; the search pipeline owns the mapping to Product.
type RawProduct map[string]any

// Value returns the first non-nil value found under any of the given keys
func (r RawProduct) Value(keys ...string) (any, bool) {
	for _, k := range keys {
		if v, ok := r[k]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

// String returns the first non-empty value under any of the keys, rendered as a string
func (r RawProduct) String(keys ...string) string {
	for _, k := range keys {
		v, ok := r[k]
		if !ok || v == nil {
			continue
		}
		var s string
		switch t := v.(type) {
		case string:
			s = t
		case fmt.Stringer:
			s = t.String()
		case float64:
			s = decimal.NewFromFloat(t).String()
		default:
			s = fmt.Sprint(t)
		}
		if s = strings.TrimSpace(s); s != "" {
			return s
		}
	}
	return ""
}

// Product is the canonical, retailer-agnostic product representation
type Product struct {
	Retailer          RetailerID          `json:"retailer"`
	ProductID         string              `json:"productId"`
	Name              string              `json:"name"`
	Brand             string              `json:"brand,omitempty"`
	Category          string              `json:"category,omitempty"`
	PriceEUR          decimal.Decimal     `json:"priceEur"`
	ImageURL          string              `json:"imageUrl,omitempty"`
	URL               string              `json:"url,omitempty"`
	UnitSize          string              `json:"unitSize,omitempty"`
	Quantity          float64             `json:"quantity,omitempty"`
	QuantityUnit      string              `json:"quantityUnit,omitempty"`
	PricePerUnit      decimal.NullDecimal `json:"pricePerUnit"`
	PricePerUnitBase  string              `json:"pricePerUnitBase,omitempty"`
	IsPromotion       bool                `json:"isPromotion"`
	HealthTag         HealthTag           `json:"healthTag"`
	IsCheapest        bool                `json:"isCheapest"`
	IsCheapestPerUnit bool                `json:"isCheapestPerUnit"`
}

// Key returns the retailer-scoped identity of the product ("retailer:productId")
func (p Product) Key() string {
	return string(p.Retailer) + ":" + p.ProductID
}

// GroupingKey returns the cross-retailer grouping key for this product's name
func (p Product) GroupingKey() string {
	return GroupingKey(p.Name)
}

var whitespaceRun = regexp.MustCompile(`\s+`)

// GroupingKey lowercases a product name and collapses whitespace runs.
// Two products group together only when their keys are exactly equal.
func GroupingKey(name string) string {
	return strings.TrimSpace(whitespaceRun.ReplaceAllString(strings.ToLower(name), " "))
}

// SearchParams are the validated inputs of an aggregated search
type SearchParams struct {
	Query        string       `json:"query" validate:"required"`
	Retailers    []RetailerID `json:"retailers" validate:"required,min=1,dive,required"`
	Size         int          `json:"size" validate:"min=1,max=50"`
	Page         int          `json:"page" validate:"min=0"`
	SortBy       SortBy       `json:"sortBy"`
	HealthFilter HealthTag    `json:"healthFilter,omitempty"`
}

// CacheKey encodes every search parameter deterministically.
// The query is trimmed, lowercased and whitespace-collapsed; retailers are sorted and deduplicated.
func (p SearchParams) CacheKey() string {
	health := string(p.HealthFilter)
	if health == "" {
		health = "all"
	}
	return fmt.Sprintf("search:%s|%s|%d|%d|%s|%s",
		GroupingKey(p.Query),
		strings.Join(retailerStrings(SortedRetailers(p.Retailers)), ","),
		p.Size, p.Page, p.SortBy, health)
}

// SortedRetailers returns a sorted copy of ids without duplicates
func SortedRetailers(ids []RetailerID) []RetailerID {
	seen := make(map[RetailerID]bool, len(ids))
	out := make([]RetailerID, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func retailerStrings(ids []RetailerID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = string(id)
	}
	return out
}

// ConnectorStatus reports how a single retailer contributed to a search
type ConnectorStatus struct {
	Status  string             `json:"status"` // "ok" or "error"
	Kind    ConnectorErrorKind `json:"kind,omitempty"`
	Message string             `json:"message,omitempty"`
	Count   int                `json:"count"`
	Dropped int                `json:"dropped,omitempty"`
}

// SearchResult is the ordered page of products returned by the aggregation pipeline
// and the value stored in the result cache.
type SearchResult struct {
	Items        []Product                      `json:"items"`
	Total        int                            `json:"total"`
	Query        string                         `json:"query"`
	Retailers    []RetailerID                   `json:"retailers"`
	Size         int                            `json:"size"`
	Page         int                            `json:"page"`
	SortBy       SortBy                         `json:"sortBy"`
	HealthFilter HealthTag                      `json:"healthFilter,omitempty"`
	Connectors   map[RetailerID]ConnectorStatus `json:"connectors"`
	AllFailed    bool                           `json:"allFailed"`
	GeneratedAt  time.Time                      `json:"generatedAt"`
}

// Clone returns a deep copy so that callers cannot mutate a cached entry
func (r *SearchResult) Clone() *SearchResult {
	if r == nil {
		return nil
	}
	out := *r
	out.Items = append(make([]Product, 0, len(r.Items)), r.Items...)
	out.Retailers = append([]RetailerID(nil), r.Retailers...)
	if r.Connectors != nil {
		out.Connectors = make(map[RetailerID]ConnectorStatus, len(r.Connectors))
		for k, v := range r.Connectors {
			out.Connectors[k] = v
		}
	}
	return &out
}

// DeliverySlot is one delivery window offered by a retailer
type DeliverySlot struct {
	SlotID          string              `json:"slotId"`
	WindowStart     time.Time           `json:"windowStart"`
	WindowEnd       time.Time           `json:"windowEnd"`
	Available       bool                `json:"available"`
	MinimumOrderEUR decimal.NullDecimal `json:"minimumOrderEur"`
}

// PricePoint is one observed price of a product at a point in time
type PricePoint struct {
	Retailer   RetailerID      `json:"retailer"`
	ProductID  string          `json:"productId"`
	PriceEUR   decimal.Decimal `json:"priceEur"`
	ObservedAt time.Time       `json:"observedAt"`
}
