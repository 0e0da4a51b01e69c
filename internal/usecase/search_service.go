package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/boodschap/backend/internal/domain"
)

const (
	defaultCacheTTL     = 60 * time.Second
	defaultMaxFetch     = 200
	historyWriteTimeout = 5 * time.Second
)

// SearchMetrics receives pipeline counters. Implementations must be safe for concurrent use.
type SearchMetrics interface {
	CacheLookup(hit bool)
	NormalizationDropped(retailer domain.RetailerID, n int)
}

type noopSearchMetrics struct{}

func (noopSearchMetrics) CacheLookup(bool)                            {}
func (noopSearchMetrics) NormalizationDropped(domain.RetailerID, int) {}

// SearchServiceConfig holds configuration for the search service
type SearchServiceConfig struct {
	CacheTTL            time.Duration
	MaxFetchPerRetailer int
}

// SearchService is the aggregation pipeline: fan-out, normalize, classify,
// mark cheapest, filter, sort, paginate and cache.
type SearchService struct {
	registry   domain.ConnectorRegistry
	cache      domain.SearchCache
	normalizer *Normalizer
	events     domain.EventSink
	history    domain.PriceHistoryRepository
	metrics    SearchMetrics
	validate   *validator.Validate
	logger     zerolog.Logger
	cacheTTL   time.Duration
	maxFetch   int
	now        func() time.Time
}

// SearchOption customizes optional collaborators
type SearchOption func(*SearchService)

// WithEvents attaches an analytics sink
func WithEvents(sink domain.EventSink) SearchOption {
	return func(s *SearchService) { s.events = sink }
}

// WithPriceHistory records observed prices after live searches
func WithPriceHistory(repo domain.PriceHistoryRepository) SearchOption {
	return func(s *SearchService) { s.history = repo }
}

// WithSearchMetrics attaches pipeline counters
func WithSearchMetrics(m SearchMetrics) SearchOption {
	return func(s *SearchService) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithLogger sets the component logger
func WithLogger(logger zerolog.Logger) SearchOption {
	return func(s *SearchService) { s.logger = logger.With().Str("component", "search").Logger() }
}

// NewSearchService creates a new search service with dependencies
func NewSearchService(
	registry domain.ConnectorRegistry,
	cache domain.SearchCache,
	normalizer *Normalizer,
	config SearchServiceConfig,
	opts ...SearchOption,
) *SearchService {
	cacheTTL := config.CacheTTL
	if cacheTTL <= 0 {
		cacheTTL = defaultCacheTTL
	}
	maxFetch := config.MaxFetchPerRetailer
	if maxFetch <= 0 {
		maxFetch = defaultMaxFetch
	}
	if normalizer == nil {
		normalizer = NewNormalizer(nil)
	}

	s := &SearchService{
		registry:   registry,
		cache:      cache,
		normalizer: normalizer,
		metrics:    noopSearchMetrics{},
		validate:   validator.New(),
		logger:     zerolog.Nop(),
		cacheTTL:   cacheTTL,
		maxFetch:   maxFetch,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Retailers lists the configured retailers
func (s *SearchService) Retailers() []domain.RetailerID {
	return s.registry.Retailers()
}

// Search runs an aggregated search.
// Flow: validate -> cache -> fan out to connectors -> normalize -> mark/filter/sort/paginate -> cache
// It fails only on invalid input or when no retailers are configured.
func (s *SearchService) Search(ctx context.Context, params domain.SearchParams) (*domain.SearchResult, error) {
	params, err := s.validateParams(params)
	if err != nil {
		return nil, err
	}

	key := params.CacheKey()
	if cached, err := s.cache.Get(ctx, key); err == nil && cached != nil {
		s.metrics.CacheLookup(true)
		s.logger.Debug().Str("key", key).Msg("cache hit")
		s.emitSearch(ctx, params, cached, true)
		return cached, nil
	} else if err != nil && !errors.Is(err, domain.ErrCacheMiss) {
		s.logger.Warn().Err(err).Str("key", key).Msg("cache read failed, treating as miss")
	}
	s.metrics.CacheLookup(false)

	outcomes := s.fanOut(ctx, params)
	result, all := s.assemble(params, outcomes)

	if result.AllFailed {
		s.logger.Warn().Str("query", params.Query).Msg("every connector failed, result not cached")
	} else {
		if err := s.cache.Set(ctx, key, result, s.cacheTTL); err != nil {
			s.logger.Warn().Err(err).Str("key", key).Msg("cache write failed")
		}
		s.recordPrices(ctx, all)
	}

	s.emitSearch(ctx, params, result, false)
	return result, nil
}

// DeliverySlots fetches delivery windows for one retailer
func (s *SearchService) DeliverySlots(ctx context.Context, retailer domain.RetailerID) ([]domain.DeliverySlot, error) {
	if len(s.registry.Retailers()) == 0 {
		return nil, domain.ErrNoRetailers
	}
	if !s.registry.Has(retailer) {
		return nil, domain.NewValidationError("retailer", fmt.Sprintf("unknown retailer %q", retailer))
	}
	return s.registry.DeliverySlots(ctx, retailer)
}

type connectorOutcome struct {
	retailer domain.RetailerID
	raws     []domain.RawProduct
	err      error
}

// fanOut queries every requested retailer concurrently and waits for all of them.
// A failing connector never cancels its siblings.
func (s *SearchService) fanOut(ctx context.Context, params domain.SearchParams) []connectorOutcome {
	fetch := s.maxFetch
	if params.Size > 0 && params.Page < s.maxFetch/params.Size {
		fetch = params.Size * (params.Page + 1)
	}

	outcomes := make([]connectorOutcome, len(params.Retailers))
	var g errgroup.Group
	for i, retailer := range params.Retailers {
		g.Go(func() error {
			raws, err := s.registry.Search(ctx, retailer, params.Query, fetch)
			outcomes[i] = connectorOutcome{retailer: retailer, raws: raws, err: err}
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}

func (s *SearchService) assemble(params domain.SearchParams, outcomes []connectorOutcome) (*domain.SearchResult, []domain.Product) {
	statuses := make(map[domain.RetailerID]domain.ConnectorStatus, len(outcomes))
	var all []domain.Product
	failed := 0

	for _, o := range outcomes {
		if o.err != nil {
			failed++
			statuses[o.retailer] = domain.ConnectorStatus{
				Status:  "error",
				Kind:    domain.ConnectorErrorKindOf(o.err),
				Message: o.err.Error(),
			}
			s.logger.Warn().Err(o.err).Str("retailer", o.retailer.String()).Msg("connector failed")
			continue
		}
		products, dropped := s.normalizer.NormalizeAll(o.retailer, o.raws)
		if dropped > 0 {
			s.metrics.NormalizationDropped(o.retailer, dropped)
			s.logger.Debug().Str("retailer", o.retailer.String()).Int("dropped", dropped).Msg("dropped unparsable products")
		}
		statuses[o.retailer] = domain.ConnectorStatus{Status: "ok", Count: len(products), Dropped: dropped}
		all = append(all, products...)
	}

	MarkCheapest(all)
	filtered := FilterByHealth(all, params.HealthFilter)
	sorted := append([]domain.Product(nil), filtered...)
	SortProducts(sorted, params.SortBy)

	return &domain.SearchResult{
		Items:        Paginate(sorted, params.Page, params.Size),
		Total:        len(sorted),
		Query:        params.Query,
		Retailers:    params.Retailers,
		Size:         params.Size,
		Page:         params.Page,
		SortBy:       params.SortBy,
		HealthFilter: params.HealthFilter,
		Connectors:   statuses,
		AllFailed:    len(outcomes) > 0 && failed == len(outcomes),
		GeneratedAt:  s.now().UTC(),
	}, all
}

// validateParams normalizes the request and rejects it before any connector call
func (s *SearchService) validateParams(params domain.SearchParams) (domain.SearchParams, error) {
	configured := s.registry.Retailers()
	if len(configured) == 0 {
		return params, domain.ErrNoRetailers
	}

	params.Query = strings.TrimSpace(params.Query)
	params.Retailers = domain.SortedRetailers(params.Retailers)

	if params.SortBy == "" {
		params.SortBy = domain.SortByPrice
	}
	if !isCanonicalSort(params.SortBy) {
		return params, domain.NewValidationError("sortBy", fmt.Sprintf("unsupported value %q", params.SortBy))
	}

	if err := s.validate.Struct(params); err != nil {
		return params, toValidationError(err)
	}

	switch params.HealthFilter {
	case "", domain.HealthHealthy, domain.HealthUnhealthy:
	default:
		return params, domain.NewValidationError("healthFilter", fmt.Sprintf("unsupported value %q", params.HealthFilter))
	}

	for _, r := range params.Retailers {
		if !s.registry.Has(r) {
			return params, domain.NewValidationError("retailers", fmt.Sprintf("unknown retailer %q", r))
		}
	}
	return params, nil
}

func isCanonicalSort(by domain.SortBy) bool {
	switch by {
	case domain.SortByPrice, domain.SortByRetailer, domain.SortByHealth, domain.SortByPricePerUnit:
		return true
	}
	return false
}

// toValidationError reports the first failing field of a validator error
func toValidationError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		field := strings.ToLower(fe.Field()[:1]) + fe.Field()[1:]
		reason := fe.Tag()
		if fe.Param() != "" {
			reason += "=" + fe.Param()
		}
		return domain.NewValidationError(field, "failed "+reason)
	}
	return fmt.Errorf("%w: %v", domain.ErrInvalidRequest, err)
}

func (s *SearchService) emitSearch(ctx context.Context, params domain.SearchParams, result *domain.SearchResult, cached bool) {
	if s.events == nil {
		return
	}
	s.events.Emit(ctx, domain.NewEvent(domain.EventSearchPerformed, SessionIDFromContext(ctx), map[string]any{
		"query":       params.Query,
		"retailers":   params.Retailers,
		"resultCount": result.Total,
		"cached":      cached,
	}))
}

// recordPrices stores observed prices in the background, off the request path
func (s *SearchService) recordPrices(ctx context.Context, products []domain.Product) {
	if s.history == nil || len(products) == 0 {
		return
	}
	observedAt := s.now().UTC()
	points := make([]domain.PricePoint, len(products))
	for i, p := range products {
		points[i] = domain.PricePoint{Retailer: p.Retailer, ProductID: p.ProductID, PriceEUR: p.PriceEUR, ObservedAt: observedAt}
	}

	bg := context.WithoutCancel(ctx)
	go func() {
		ctx, cancel := context.WithTimeout(bg, historyWriteTimeout)
		defer cancel()
		if err := s.history.Record(ctx, points); err != nil {
			s.logger.Warn().Err(err).Int("points", len(points)).Msg("price history write failed")
		}
	}()
}
