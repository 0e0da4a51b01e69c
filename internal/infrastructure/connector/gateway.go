package connector

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"

	"github.com/boodschap/backend/internal/domain"
)

const outcomeOK = "ok"

var (
	errUnknownRetailer = errors.New("retailer not configured")
	errDuplicate       = errors.New("duplicate retailer connector")
)

// Observer receives per-call measurements
type Observer interface {
	ConnectorRequest(retailer, outcome string, elapsed time.Duration)
	BreakerState(retailer string, state float64)
}

type noopObserver struct{}

func (noopObserver) ConnectorRequest(string, string, time.Duration) {}
func (noopObserver) BreakerState(string, float64)                   {}

// BreakerConfig tunes the per-retailer circuit breaker
type BreakerConfig struct {
	// MaxRequests allowed through while half-open
	MaxRequests uint32
	// Interval clears closed-state counts; 0 never clears
	Interval time.Duration
	// OpenTimeout is how long the breaker stays open before probing
	OpenTimeout time.Duration
	// FailureRatio trips the breaker once MinRequests have been seen
	FailureRatio float64
	MinRequests  uint32
}

// DefaultBreakerConfig returns the defaults used when none are configured
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		MaxRequests:  1,
		Interval:     60 * time.Second,
		OpenTimeout:  30 * time.Second,
		FailureRatio: 0.5,
		MinRequests:  5,
	}
}

// Config holds gateway settings
type Config struct {
	Timeout time.Duration
	Breaker BreakerConfig
}

type entry struct {
	conn    domain.Connector
	breaker *gobreaker.CircuitBreaker[any]
}

// Gateway fronts all configured retailer connectors. Every call is bounded by
// its own timeout and protected by a breaker; failures come back as
// *domain.ConnectorError and never as panics.
type Gateway struct {
	entries   map[domain.RetailerID]*entry
	retailers []domain.RetailerID
	timeout   time.Duration
	observer  Observer
	logger    zerolog.Logger
}

// NewGateway registers connectors. Observer may be nil.
func NewGateway(connectors []domain.Connector, cfg Config, observer Observer, logger zerolog.Logger) (*Gateway, error) {
	if observer == nil {
		observer = noopObserver{}
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 8 * time.Second
	}
	if cfg.Breaker == (BreakerConfig{}) {
		cfg.Breaker = DefaultBreakerConfig()
	}

	g := &Gateway{
		entries:  make(map[domain.RetailerID]*entry, len(connectors)),
		timeout:  cfg.Timeout,
		observer: observer,
		logger:   logger.With().Str("component", "gateway").Logger(),
	}

	for _, conn := range connectors {
		id := conn.Retailer()
		if _, exists := g.entries[id]; exists {
			return nil, fmt.Errorf("%w: %s", errDuplicate, id)
		}
		g.entries[id] = &entry{conn: conn, breaker: g.newBreaker(id, cfg.Breaker)}
		g.retailers = append(g.retailers, id)
		observer.BreakerState(string(id), stateToFloat(gobreaker.StateClosed))
	}
	sort.Slice(g.retailers, func(i, j int) bool { return g.retailers[i] < g.retailers[j] })

	return g, nil
}

func (g *Gateway) newBreaker(id domain.RetailerID, cfg BreakerConfig) *gobreaker.CircuitBreaker[any] {
	settings := gobreaker.Settings{
		Name:        string(id),
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= cfg.FailureRatio
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			g.logger.Warn().
				Str("retailer", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("circuit breaker state change")
			g.observer.BreakerState(name, stateToFloat(to))
		},
		// caller cancellation says nothing about retailer health
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
	}
	return gobreaker.NewCircuitBreaker[any](settings)
}

// Retailers returns configured retailer ids in sorted order
func (g *Gateway) Retailers() []domain.RetailerID {
	out := make([]domain.RetailerID, len(g.retailers))
	copy(out, g.retailers)
	return out
}

// Has reports whether retailer is configured
func (g *Gateway) Has(retailer domain.RetailerID) bool {
	_, ok := g.entries[retailer]
	return ok
}

// BreakerStates reports the breaker state per retailer
func (g *Gateway) BreakerStates() map[domain.RetailerID]string {
	states := make(map[domain.RetailerID]string, len(g.entries))
	for id, e := range g.entries {
		states[id] = e.breaker.State().String()
	}
	return states
}

// Search calls the retailer's product search
func (g *Gateway) Search(ctx context.Context, retailer domain.RetailerID, query string, size int) ([]domain.RawProduct, error) {
	e, ok := g.entries[retailer]
	if !ok {
		return nil, domain.NewConnectorError(retailer, domain.ConnectorUnavailable, errUnknownRetailer)
	}

	result, err := g.call(ctx, retailer, e, func(ctx context.Context) (any, error) {
		return e.conn.Search(ctx, query, size)
	})
	if err != nil {
		return nil, err
	}
	products, _ := result.([]domain.RawProduct)
	return products, nil
}

// DeliverySlots calls the retailer's delivery slot endpoint when it has one
func (g *Gateway) DeliverySlots(ctx context.Context, retailer domain.RetailerID) ([]domain.DeliverySlot, error) {
	e, ok := g.entries[retailer]
	if !ok {
		return nil, domain.NewConnectorError(retailer, domain.ConnectorUnavailable, errUnknownRetailer)
	}
	provider, ok := e.conn.(domain.SlotProvider)
	if !ok {
		return nil, domain.NewConnectorError(retailer, domain.ConnectorNotSupported, domain.ErrNotSupported)
	}

	result, err := g.call(ctx, retailer, e, func(ctx context.Context) (any, error) {
		return provider.DeliverySlots(ctx)
	})
	if err != nil {
		return nil, err
	}
	slots, _ := result.([]domain.DeliverySlot)
	return slots, nil
}

func (g *Gateway) call(ctx context.Context, retailer domain.RetailerID, e *entry, fn func(context.Context) (any, error)) (any, error) {
	start := time.Now()
	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	result, err := e.breaker.Execute(func() (any, error) {
		return guard(callCtx, fn)
	})
	elapsed := time.Since(start)

	if err == nil {
		g.observer.ConnectorRequest(string(retailer), outcomeOK, elapsed)
		return result, nil
	}

	kind := classify(err)
	g.observer.ConnectorRequest(string(retailer), string(kind), elapsed)
	g.logger.Warn().
		Err(err).
		Str("retailer", string(retailer)).
		Str("kind", string(kind)).
		Dur("elapsed", elapsed).
		Msg("connector call failed")
	return nil, domain.NewConnectorError(retailer, kind, err)
}

// guard runs fn on its own goroutine so a connector that ignores its context
// still cannot hold the caller past the deadline. Panics become errors.
func guard(ctx context.Context, fn func(context.Context) (any, error)) (any, error) {
	type outcome struct {
		value any
		err   error
	}
	done := make(chan outcome, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("connector panic: %v", r)}
			}
		}()
		v, err := fn(ctx)
		done <- outcome{value: v, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case out := <-done:
		return out.value, out.err
	}
}

func classify(err error) domain.ConnectorErrorKind {
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return domain.ConnectorUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return domain.ConnectorTimeout
	case errors.Is(err, domain.ErrNotSupported):
		return domain.ConnectorNotSupported
	default:
		return domain.ConnectorUpstream
	}
}

// stateToFloat maps breaker states to gauge values
func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}
