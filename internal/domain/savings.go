package domain

import (
	"github.com/shopspring/decimal"
)

// SuggestionKind tells whether a suggestion saves money or improves health
type SuggestionKind string

const (
	SuggestionCheaper   SuggestionKind = "cheaper"
	SuggestionHealthier SuggestionKind = "healthier"
)

// SavingsSuggestion proposes a substitute for a basket line.
// PriceDeltaEUR and HealthDelta are alternative minus original.
type SavingsSuggestion struct {
	Kind          SuggestionKind  `json:"kind"`
	OriginalItem  CartLineRef     `json:"originalItem"`
	Alternative   Product         `json:"alternative"`
	PriceDeltaEUR decimal.Decimal `json:"priceDeltaEur"`
	HealthDelta   int             `json:"healthDelta"`
}

// Alternatives holds the capped suggestion lists for one basket line
type Alternatives struct {
	Item      CartLineRef         `json:"item"`
	Cheaper   []SavingsSuggestion `json:"cheaper"`
	Healthier []SavingsSuggestion `json:"healthier"`
}

// Empty reports whether no viable alternative was found
func (a Alternatives) Empty() bool {
	return len(a.Cheaper) == 0 && len(a.Healthier) == 0
}

// SuggestionCount is the number of suggestions across both lists
func (a Alternatives) SuggestionCount() int {
	return len(a.Cheaper) + len(a.Healthier)
}

// BasketSavings is the result of scanning every line of a basket
type BasketSavings struct {
	SessionID           string          `json:"sessionId"`
	Items               []Alternatives  `json:"items"`
	PotentialSavingsEUR decimal.Decimal `json:"potentialSavingsEur"`
	SuggestionCount     int             `json:"suggestionCount"`
	SkippedItems        int             `json:"skippedItems"`
}
