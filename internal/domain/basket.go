package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// UncategorizedLabel is the spend-by-category bucket for lines without a category
const UncategorizedLabel = "uncategorized"

// CartLineRef is one basket line: a product reference plus the quantity held
type CartLineRef struct {
	Retailer  RetailerID      `json:"retailer" binding:"required"`
	ProductID string          `json:"productId" binding:"required"`
	Name      string          `json:"name" binding:"required"`
	PriceEUR  decimal.Decimal `json:"priceEur"`
	Quantity  int             `json:"quantity"`
	ImageURL  string          `json:"imageUrl,omitempty"`
	HealthTag HealthTag       `json:"healthTag,omitempty"`
	Category  string          `json:"category,omitempty"`
}

// Key returns the retailer-scoped identity of the line ("retailer:productId")
func (l CartLineRef) Key() string {
	return string(l.Retailer) + ":" + l.ProductID
}

// LineTotal returns price times quantity
func (l CartLineRef) LineTotal() decimal.Decimal {
	return l.PriceEUR.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Basket is a session's shopping basket. Items keep insertion order.
type Basket struct {
	SessionID string        `json:"sessionId"`
	Items     []CartLineRef `json:"items"`
	UpdatedAt time.Time     `json:"updatedAt"`
}

// NewBasket returns an empty basket for a session
func NewBasket(sessionID string) *Basket {
	return &Basket{SessionID: sessionID, Items: []CartLineRef{}}
}

func (b *Basket) indexOf(retailer RetailerID, productID string) int {
	for i, it := range b.Items {
		if it.Retailer == retailer && it.ProductID == productID {
			return i
		}
	}
	return -1
}

// Add inserts a line or accumulates its quantity onto an existing line.
// The stored price and metadata follow the most recent add.
func (b *Basket) Add(line CartLineRef) {
	if line.Quantity <= 0 {
		line.Quantity = 1
	}
	if i := b.indexOf(line.Retailer, line.ProductID); i >= 0 {
		line.Quantity += b.Items[i].Quantity
		b.Items[i] = line
		return
	}
	b.Items = append(b.Items, line)
}

// Remove decreases a line's quantity by qty, dropping the line once it reaches zero
func (b *Basket) Remove(retailer RetailerID, productID string, qty int) error {
	i := b.indexOf(retailer, productID)
	if i < 0 {
		return ErrItemNotFound
	}
	if qty <= 0 {
		qty = 1
	}
	b.Items[i].Quantity -= qty
	if b.Items[i].Quantity <= 0 {
		b.Items = append(b.Items[:i], b.Items[i+1:]...)
	}
	return nil
}

// Total is the sum of all line totals
func (b *Basket) Total() decimal.Decimal {
	total := decimal.Zero
	for _, it := range b.Items {
		total = total.Add(it.LineTotal())
	}
	return total
}

// TotalByRetailer sums line totals per retailer
func (b *Basket) TotalByRetailer() map[RetailerID]decimal.Decimal {
	out := make(map[RetailerID]decimal.Decimal)
	for _, it := range b.Items {
		out[it.Retailer] = out[it.Retailer].Add(it.LineTotal())
	}
	return out
}

// SpendByCategory sums line totals per category
func (b *Basket) SpendByCategory() map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal)
	for _, it := range b.Items {
		cat := it.Category
		if cat == "" {
			cat = UncategorizedLabel
		}
		out[cat] = out[cat].Add(it.LineTotal())
	}
	return out
}

// ItemCount is the sum of quantities
func (b *Basket) ItemCount() int {
	n := 0
	for _, it := range b.Items {
		n += it.Quantity
	}
	return n
}

// Clone returns a deep copy of the basket
func (b *Basket) Clone() *Basket {
	if b == nil {
		return nil
	}
	out := *b
	out.Items = append(make([]CartLineRef, 0, len(b.Items)), b.Items...)
	return &out
}

// BasketTemplate is a named, reusable snapshot of basket lines
type BasketTemplate struct {
	ID        string        `json:"id"`
	Name      string        `json:"name"`
	CreatedAt time.Time     `json:"createdAt"`
	Items     []CartLineRef `json:"items"`
}

// BasketSummary is the read view returned for a basket
type BasketSummary struct {
	Basket          *Basket                        `json:"basket"`
	ItemCount       int                            `json:"itemCount"`
	TotalEUR        decimal.Decimal                `json:"totalEur"`
	TotalByRetailer map[RetailerID]decimal.Decimal `json:"totalByRetailer"`
	SpendByCategory map[string]decimal.Decimal     `json:"spendByCategory"`
}

// Summarize builds the read view for a basket
func Summarize(b *Basket) BasketSummary {
	return BasketSummary{
		Basket:          b,
		ItemCount:       b.ItemCount(),
		TotalEUR:        b.Total(),
		TotalByRetailer: b.TotalByRetailer(),
		SpendByCategory: b.SpendByCategory(),
	}
}
