package retailer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/boodschap/backend/internal/domain"
)

const (
	defaultSearchPath = "/search"
	defaultUserAgent  = "Boodschap/1.0"
	defaultAttempts   = 3
	defaultBackoff    = 500 * time.Millisecond
	maxErrorBody      = 512
)

// errStatus marks a non-200 upstream response
var errStatus = errors.New("unexpected upstream status")

// Config describes one retailer endpoint
type Config struct {
	ID             domain.RetailerID
	BaseURL        string
	Token          string
	SearchPath     string
	SlotsPath      string
	ImageBaseURL   string
	RatePerSecond  float64
	Burst          int
	RequestTimeout time.Duration
	MaxAttempts    int
	BaseBackoff    time.Duration
}

// Client talks to a retailer's product search endpoint. Responses are
// returned as loosely typed records; normalization happens in the usecase layer.
type Client struct {
	id           domain.RetailerID
	httpClient   *http.Client
	baseURL      string
	token        string
	searchPath   string
	slotsPath    string
	imageBaseURL string
	rateLimiter  *rate.Limiter
	maxAttempts  int
	baseBackoff  time.Duration
	logger       zerolog.Logger
}

// SlotClient is a Client whose retailer also publishes delivery slots
type SlotClient struct {
	*Client
}

// New creates a connector for cfg. Retailers with a slots path get a
// connector that also implements domain.SlotProvider.
func New(cfg Config, logger zerolog.Logger) domain.Connector {
	c := NewClient(cfg, logger)
	if cfg.SlotsPath != "" {
		return &SlotClient{Client: c}
	}
	return c
}

// NewClient creates a new retailer API client
func NewClient(cfg Config, logger zerolog.Logger) *Client {
	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	attempts := cfg.MaxAttempts
	if attempts <= 0 {
		attempts = defaultAttempts
	}
	backoff := cfg.BaseBackoff
	if backoff <= 0 {
		backoff = defaultBackoff
	}
	searchPath := cfg.SearchPath
	if searchPath == "" {
		searchPath = defaultSearchPath
	}

	return &Client{
		id: cfg.ID,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		token:        cfg.Token,
		searchPath:   searchPath,
		slotsPath:    cfg.SlotsPath,
		imageBaseURL: cfg.ImageBaseURL,
		rateLimiter:  rate.NewLimiter(limit, burst),
		maxAttempts:  attempts,
		baseBackoff:  backoff,
		logger:       logger.With().Str("component", "retailer").Str("retailer", string(cfg.ID)).Logger(),
	}
}

// Retailer returns the retailer id this client serves
func (c *Client) Retailer() domain.RetailerID {
	return c.id
}

// Search queries the retailer for up to size products
func (c *Client) Search(ctx context.Context, query string, size int) ([]domain.RawProduct, error) {
	params := url.Values{}
	params.Add("query", query)
	params.Add("size", strconv.Itoa(size))

	body, err := c.getWithRetry(ctx, c.searchPath+"?"+params.Encode())
	if err != nil {
		return nil, err
	}

	products, err := decodeProducts(body, c.imageBaseURL)
	if err != nil {
		return nil, fmt.Errorf("decode %s search response: %w", c.id, err)
	}
	if len(products) > size {
		products = products[:size]
	}

	c.logger.Debug().Str("query", query).Int("count", len(products)).Msg("search completed")
	return products, nil
}

// DeliverySlots fetches the retailer's current delivery windows
func (c *SlotClient) DeliverySlots(ctx context.Context) ([]domain.DeliverySlot, error) {
	body, err := c.getWithRetry(ctx, c.slotsPath)
	if err != nil {
		return nil, err
	}
	slots, err := decodeSlots(body)
	if err != nil {
		return nil, fmt.Errorf("decode %s delivery slots: %w", c.id, err)
	}
	return slots, nil
}

// getWithRetry retries transport errors, 429 and 5xx responses with
// exponential backoff. Other statuses fail immediately.
func (c *Client) getWithRetry(ctx context.Context, path string) ([]byte, error) {
	reqURL := c.baseURL + path

	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}

		body, status, err := c.doRequest(ctx, reqURL)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return nil, err
			}
			c.logger.Warn().Err(err).Int("attempt", attempt).Msg("request failed")
			lastErr = err
		case status == http.StatusOK:
			return body, nil
		case status == http.StatusTooManyRequests || status >= 500:
			c.logger.Warn().Int("status", status).Int("attempt", attempt).Msg("retryable upstream status")
			lastErr = fmt.Errorf("%w %d", errStatus, status)
		default:
			return nil, fmt.Errorf("%w %d: %s", errStatus, status, truncate(body, maxErrorBody))
		}

		if attempt == c.maxAttempts {
			break
		}
		if err := sleepContext(ctx, c.backoff(attempt)); err != nil {
			return nil, err
		}
	}

	c.logger.Error().Err(lastErr).Str("path", path).Msg("all retries failed")
	return nil, lastErr
}

// doRequest executes an HTTP GET request with the retailer headers set
func (c *Client) doRequest(ctx context.Context, reqURL string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return nil, 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", defaultUserAgent)
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("request %s: %w", c.id, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read %s response: %w", c.id, err)
	}
	return body, resp.StatusCode, nil
}

// backoff is the delay after a failed attempt, doubling each time
func (c *Client) backoff(attempt int) time.Duration {
	return c.baseBackoff * time.Duration(1<<(attempt-1))
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		return string(b[:n])
	}
	return string(b)
}
