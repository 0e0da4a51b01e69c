package usecase

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/boodschap/backend/internal/domain"
)

// ProductSearcher is the part of the aggregation pipeline the savings engine reuses
type ProductSearcher interface {
	Search(ctx context.Context, params domain.SearchParams) (*domain.SearchResult, error)
	Retailers() []domain.RetailerID
}

// SavingsConfig holds configuration for the savings service
type SavingsConfig struct {
	CandidateSize  int
	MaxSuggestions int
	MinPriceDelta  decimal.Decimal
	Concurrency    int
	// CleanQuery strips sizes and house brands from the item name before searching
	CleanQuery bool
}

// SavingsService finds cheaper and healthier substitutes for basket lines
type SavingsService struct {
	searcher       ProductSearcher
	baskets        domain.BasketStore
	classifier     *HealthClassifier
	events         domain.EventSink
	logger         zerolog.Logger
	candidateSize  int
	maxSuggestions int
	minPriceDelta  decimal.Decimal
	concurrency    int
	queries        *QueryPreprocessor
}

// NewSavingsService creates a new savings service with dependencies
func NewSavingsService(
	searcher ProductSearcher,
	baskets domain.BasketStore,
	classifier *HealthClassifier,
	events domain.EventSink,
	logger zerolog.Logger,
	config SavingsConfig,
) *SavingsService {
	if classifier == nil {
		classifier = NewHealthClassifier(nil)
	}
	candidateSize := config.CandidateSize
	if candidateSize <= 0 || candidateSize > 50 {
		candidateSize = 20
	}
	maxSuggestions := config.MaxSuggestions
	if maxSuggestions <= 0 {
		maxSuggestions = 3
	}
	minDelta := config.MinPriceDelta
	if !minDelta.IsPositive() {
		minDelta = decimal.New(1, -2)
	}
	concurrency := config.Concurrency
	if concurrency <= 0 {
		concurrency = 4
	}

	var queries *QueryPreprocessor
	if config.CleanQuery {
		queries = NewQueryPreprocessor()
	}

	return &SavingsService{
		searcher:       searcher,
		baskets:        baskets,
		classifier:     classifier,
		events:         events,
		logger:         logger.With().Str("component", "savings").Logger(),
		candidateSize:  candidateSize,
		maxSuggestions: maxSuggestions,
		minPriceDelta:  minDelta,
		concurrency:    concurrency,
		queries:        queries,
	}
}

// FindAlternatives searches for the item's name across retailers and scores every
// other product against it. No viable alternative yields empty lists, not an error.
func (s *SavingsService) FindAlternatives(
	ctx context.Context,
	item domain.CartLineRef,
	retailers []domain.RetailerID,
) (domain.Alternatives, error) {
	out := domain.Alternatives{Item: item, Cheaper: []domain.SavingsSuggestion{}, Healthier: []domain.SavingsSuggestion{}}

	if strings.TrimSpace(item.Name) == "" {
		return out, domain.NewValidationError("name", "basket item has no name")
	}
	if len(retailers) == 0 {
		retailers = s.searcher.Retailers()
	}

	result, err := s.searcher.Search(ctx, domain.SearchParams{
		Query:     s.searchQuery(item),
		Retailers: retailers,
		Size:      s.candidateSize,
		SortBy:    domain.SortByPrice,
	})
	if err != nil {
		return out, err
	}

	originalHealth := s.originalHealth(item)
	for _, p := range result.Items {
		if p.Retailer == item.Retailer && p.ProductID == item.ProductID {
			continue
		}
		sugg := domain.SavingsSuggestion{
			OriginalItem:  item,
			Alternative:   p,
			PriceDeltaEUR: p.PriceEUR.Sub(item.PriceEUR),
			HealthDelta:   p.HealthTag.Rank() - originalHealth.Rank(),
		}
		if sugg.PriceDeltaEUR.LessThanOrEqual(s.minPriceDelta.Neg()) {
			c := sugg
			c.Kind = domain.SuggestionCheaper
			out.Cheaper = append(out.Cheaper, c)
		}
		if sugg.HealthDelta > 0 {
			h := sugg
			h.Kind = domain.SuggestionHealthier
			out.Healthier = append(out.Healthier, h)
		}
	}

	sort.SliceStable(out.Cheaper, func(i, j int) bool {
		a, b := out.Cheaper[i], out.Cheaper[j]
		if c := a.PriceDeltaEUR.Cmp(b.PriceDeltaEUR); c != 0 {
			return c < 0
		}
		return tieBreak(a.Alternative, b.Alternative)
	})
	// health improvement first, cheapest as tie-break
	sort.SliceStable(out.Healthier, func(i, j int) bool {
		a, b := out.Healthier[i], out.Healthier[j]
		if a.HealthDelta != b.HealthDelta {
			return a.HealthDelta > b.HealthDelta
		}
		if c := a.Alternative.PriceEUR.Cmp(b.Alternative.PriceEUR); c != 0 {
			return c < 0
		}
		return tieBreak(a.Alternative, b.Alternative)
	})

	out.Cheaper = capSuggestions(out.Cheaper, s.maxSuggestions)
	out.Healthier = capSuggestions(out.Healthier, s.maxSuggestions)
	return out, nil
}

// AnalyzeBasket runs FindAlternatives for every basket line with bounded concurrency.
// Lines whose search fails are skipped; lines without suggestions are omitted.
func (s *SavingsService) AnalyzeBasket(
	ctx context.Context,
	sessionID string,
	retailers []domain.RetailerID,
) (*domain.BasketSavings, error) {
	out := &domain.BasketSavings{SessionID: sessionID, Items: []domain.Alternatives{}, PotentialSavingsEUR: decimal.Zero}

	basket, err := s.baskets.Get(ctx, sessionID)
	if errors.Is(err, domain.ErrBasketNotFound) {
		s.emitAnalysis(ctx, out)
		return out, nil
	}
	if err != nil {
		return nil, err
	}

	type lineOutcome struct {
		alts domain.Alternatives
		err  error
	}
	outcomes := make([]lineOutcome, len(basket.Items))

	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for i, item := range basket.Items {
		g.Go(func() error {
			alts, err := s.FindAlternatives(ctx, item, retailers)
			outcomes[i] = lineOutcome{alts: alts, err: err}
			return nil
		})
	}
	_ = g.Wait()

	for i, o := range outcomes {
		if o.err != nil {
			out.SkippedItems++
			s.logger.Warn().Err(o.err).Str("item", basket.Items[i].Key()).Msg("skipping basket item")
			continue
		}
		if o.alts.Empty() {
			continue
		}
		out.Items = append(out.Items, o.alts)
		out.SuggestionCount += o.alts.SuggestionCount()
		if len(o.alts.Cheaper) > 0 {
			best := o.alts.Cheaper[0].PriceDeltaEUR.Abs()
			qty := decimal.NewFromInt(int64(o.alts.Item.Quantity))
			out.PotentialSavingsEUR = out.PotentialSavingsEUR.Add(best.Mul(qty))
		}
	}

	s.emitAnalysis(ctx, out)
	return out, nil
}

// AlternativesForLine looks up a basket line by key and finds its alternatives
func (s *SavingsService) AlternativesForLine(
	ctx context.Context,
	sessionID string,
	retailer domain.RetailerID,
	productID string,
	retailers []domain.RetailerID,
) (domain.Alternatives, error) {
	basket, err := s.baskets.Get(ctx, sessionID)
	if err != nil {
		return domain.Alternatives{}, err
	}
	for _, item := range basket.Items {
		if item.Retailer == retailer && item.ProductID == productID {
			return s.FindAlternatives(ctx, item, retailers)
		}
	}
	return domain.Alternatives{}, domain.ErrItemNotFound
}

// searchQuery is the item name, optionally cleaned for cross-retailer matching
func (s *SavingsService) searchQuery(item domain.CartLineRef) string {
	if s.queries == nil {
		return item.Name
	}
	return s.queries.PreprocessQuery(item.Name)
}

func (s *SavingsService) originalHealth(item domain.CartLineRef) domain.HealthTag {
	if tag, ok := domain.ParseHealthTag(string(item.HealthTag)); ok {
		return tag
	}
	return s.classifier.Classify(HealthSignals{Name: item.Name, Category: item.Category})
}

func (s *SavingsService) emitAnalysis(ctx context.Context, out *domain.BasketSavings) {
	if s.events == nil {
		return
	}
	s.events.Emit(ctx, domain.NewEvent(domain.EventSavingsAnalysisRun, out.SessionID, map[string]any{
		"sessionId":       out.SessionID,
		"suggestionCount": out.SuggestionCount,
	}))
}

func tieBreak(a, b domain.Product) bool {
	if a.Retailer != b.Retailer {
		return a.Retailer < b.Retailer
	}
	if a.Name != b.Name {
		return a.Name < b.Name
	}
	return a.ProductID < b.ProductID
}

func capSuggestions(in []domain.SavingsSuggestion, n int) []domain.SavingsSuggestion {
	if len(in) > n {
		return in[:n]
	}
	return in
}
