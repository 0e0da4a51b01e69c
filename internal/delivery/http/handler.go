package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/boodschap/backend/internal/domain"
)

const (
	serviceName        = "boodschap-backend"
	serviceVersion     = "1.0.0"
	defaultSearchSize  = 10
	defaultSlotsVendor = "picnic"
	defaultHistorySize = 30
	maxHistorySize     = 100
)

// SearchUsecase is the aggregated product search
type SearchUsecase interface {
	Retailers() []domain.RetailerID
	Search(ctx context.Context, params domain.SearchParams) (*domain.SearchResult, error)
	DeliverySlots(ctx context.Context, retailer domain.RetailerID) ([]domain.DeliverySlot, error)
}

// BasketUsecase manages session baskets and templates
type BasketUsecase interface {
	Get(ctx context.Context, sessionID string) (*domain.Basket, error)
	AddItem(ctx context.Context, sessionID string, line domain.CartLineRef) (*domain.Basket, error)
	RemoveItem(ctx context.Context, sessionID string, retailer domain.RetailerID, productID string, qty int) (*domain.Basket, error)
	Clear(ctx context.Context, sessionID string) error
	ListTemplates(ctx context.Context, sessionID string) ([]domain.BasketTemplate, error)
	SaveTemplate(ctx context.Context, sessionID, name string) (*domain.BasketTemplate, error)
	ApplyTemplate(ctx context.Context, sessionID, templateID string) (*domain.Basket, error)
	DeleteTemplate(ctx context.Context, sessionID, templateID string) error
}

// SavingsUsecase suggests cheaper and healthier alternatives
type SavingsUsecase interface {
	AnalyzeBasket(ctx context.Context, sessionID string, retailers []domain.RetailerID) (*domain.BasketSavings, error)
	AlternativesForLine(ctx context.Context, sessionID string, retailer domain.RetailerID, productID string, retailers []domain.RetailerID) (domain.Alternatives, error)
}

// BreakerReporter exposes per-retailer breaker state for the health endpoint
type BreakerReporter interface {
	BreakerStates() map[domain.RetailerID]string
}

// Services are the usecases the handler serves. History and Breakers are optional.
type Services struct {
	Search   SearchUsecase
	Baskets  BasketUsecase
	Savings  SavingsUsecase
	History  domain.PriceHistoryRepository
	Breakers BreakerReporter
}

// Handler holds dependencies for HTTP handlers
type Handler struct {
	search   SearchUsecase
	baskets  BasketUsecase
	savings  SavingsUsecase
	history  domain.PriceHistoryRepository
	breakers BreakerReporter
	logger   zerolog.Logger
	started  time.Time
}

// NewHandler creates a new HTTP handler
func NewHandler(services Services, logger zerolog.Logger) *Handler {
	return &Handler{
		search:   services.Search,
		baskets:  services.Baskets,
		savings:  services.Savings,
		history:  services.History,
		breakers: services.Breakers,
		logger:   logger.With().Str("component", "http").Logger(),
		started:  time.Now(),
	}
}

// HealthCheck returns the health status of the API
func (h *Handler) HealthCheck(c *gin.Context) {
	resp := gin.H{
		"status":         "healthy",
		"service":        serviceName,
		"version":        serviceVersion,
		"uptime_seconds": int(time.Since(h.started).Seconds()),
		"db_enabled":     h.history != nil,
	}
	if h.breakers != nil {
		resp["connectors"] = h.breakers.BreakerStates()
	}
	c.JSON(http.StatusOK, resp)
}

// ListRetailers returns the configured retailer ids
func (h *Handler) ListRetailers(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"retailers": h.search.Retailers()})
}

// Search handles aggregated product search
func (h *Handler) Search(c *gin.Context) {
	params := domain.SearchParams{Query: c.Query("q")}

	var err error
	if params.Size, err = intQuery(c, "size", defaultSearchSize); err != nil {
		h.writeError(c, err)
		return
	}
	if params.Page, err = intQuery(c, "page", 0); err != nil {
		h.writeError(c, err)
		return
	}

	sortBy, ok := domain.ParseSortBy(c.Query("sort_by"))
	if !ok {
		h.writeError(c, domain.NewValidationError("sortBy", "unsupported value "+strconv.Quote(c.Query("sort_by"))))
		return
	}
	params.SortBy = sortBy

	if raw := c.Query("health_filter"); raw != "" {
		tag, ok := domain.ParseHealthTag(raw)
		if !ok {
			h.writeError(c, domain.NewValidationError("healthFilter", "unsupported value "+strconv.Quote(raw)))
			return
		}
		params.HealthFilter = tag
	}

	params.Retailers = retailersQuery(c)
	if len(params.Retailers) == 0 {
		params.Retailers = h.search.Retailers()
	}

	result, err := h.search.Search(c.Request.Context(), params)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// DeliverySlots returns delivery windows for one retailer
func (h *Handler) DeliverySlots(c *gin.Context) {
	retailer := domain.RetailerID(strings.ToLower(c.DefaultQuery("retailer", defaultSlotsVendor)))

	slots, err := h.search.DeliverySlots(c.Request.Context(), retailer)
	if err != nil {
		h.writeError(c, err)
		return
	}
	if slots == nil {
		slots = []domain.DeliverySlot{}
	}
	c.JSON(http.StatusOK, gin.H{"retailer": retailer, "slots": slots})
}

// GetBasket returns the session basket with totals
func (h *Handler) GetBasket(c *gin.Context) {
	b, err := h.baskets.Get(c.Request.Context(), sessionID(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, domain.Summarize(b))
}

// AddBasketItem adds a product line to the basket
func (h *Handler) AddBasketItem(c *gin.Context) {
	var line domain.CartLineRef
	if err := c.ShouldBindJSON(&line); err != nil {
		h.writeError(c, bindError(err))
		return
	}

	b, err := h.baskets.AddItem(c.Request.Context(), sessionID(c), line)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, domain.Summarize(b))
}

// RemoveBasketItem decreases a line's quantity (default 1)
func (h *Handler) RemoveBasketItem(c *gin.Context) {
	qty, err := intQuery(c, "qty", 1)
	if err != nil {
		h.writeError(c, err)
		return
	}
	if qty < 1 {
		h.writeError(c, domain.NewValidationError("qty", "must be at least 1"))
		return
	}

	b, err := h.baskets.RemoveItem(c.Request.Context(), sessionID(c), domain.RetailerID(c.Param("retailer")), c.Param("productId"), qty)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, domain.Summarize(b))
}

// ClearBasket empties the session basket
func (h *Handler) ClearBasket(c *gin.Context) {
	if err := h.baskets.Clear(c.Request.Context(), sessionID(c)); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// BasketSavings analyzes every basket line for cheaper and healthier alternatives
func (h *Handler) BasketSavings(c *gin.Context) {
	savings, err := h.savings.AnalyzeBasket(c.Request.Context(), sessionID(c), retailersQuery(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, savings)
}

// LineAlternatives returns alternatives for one basket line
func (h *Handler) LineAlternatives(c *gin.Context) {
	alts, err := h.savings.AlternativesForLine(
		c.Request.Context(),
		sessionID(c),
		domain.RetailerID(c.Param("retailer")),
		c.Param("productId"),
		retailersQuery(c),
	)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, alts)
}

// ListTemplates returns the session's basket templates, newest first
func (h *Handler) ListTemplates(c *gin.Context) {
	templates, err := h.baskets.ListTemplates(c.Request.Context(), sessionID(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"templates": templates})
}

type saveTemplateRequest struct {
	Name string `json:"name"`
}

// SaveTemplate snapshots the basket as a named template
func (h *Handler) SaveTemplate(c *gin.Context) {
	var req saveTemplateRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			h.writeError(c, bindError(err))
			return
		}
	}

	tpl, err := h.baskets.SaveTemplate(c.Request.Context(), sessionID(c), req.Name)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, tpl)
}

// ApplyTemplate replaces the basket with a template's lines
func (h *Handler) ApplyTemplate(c *gin.Context) {
	b, err := h.baskets.ApplyTemplate(c.Request.Context(), sessionID(c), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, domain.Summarize(b))
}

// DeleteTemplate removes a template
func (h *Handler) DeleteTemplate(c *gin.Context) {
	if err := h.baskets.DeleteTemplate(c.Request.Context(), sessionID(c), c.Param("id")); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// PriceHistory returns observed prices for a product, oldest first
func (h *Handler) PriceHistory(c *gin.Context) {
	if h.history == nil {
		c.JSON(http.StatusNotImplemented, gin.H{
			"error": "price history is not configured",
		})
		return
	}

	limit, err := intQuery(c, "limit", defaultHistorySize)
	if err != nil {
		h.writeError(c, err)
		return
	}
	if limit < 1 || limit > maxHistorySize {
		h.writeError(c, domain.NewValidationError("limit", "must be between 1 and 100"))
		return
	}

	retailer := domain.RetailerID(c.Param("retailer"))
	productID := c.Param("productId")
	points, err := h.history.History(c.Request.Context(), retailer, productID, limit)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"retailer": retailer, "productId": productID, "points": points})
}

// writeError maps domain errors onto HTTP status codes
func (h *Handler) writeError(c *gin.Context, err error) {
	var validationErr *domain.ValidationError
	var connectorErr *domain.ConnectorError

	switch {
	case errors.As(err, &validationErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": validationErr.Error(), "field": validationErr.Field})
	case errors.Is(err, domain.ErrInvalidRequest):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrBasketNotFound),
		errors.Is(err, domain.ErrItemNotFound),
		errors.Is(err, domain.ErrTemplateNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrNotSupported):
		c.JSON(http.StatusNotImplemented, gin.H{"error": err.Error()})
	case errors.As(err, &connectorErr):
		c.JSON(http.StatusBadGateway, gin.H{"error": connectorErr.Error(), "kind": connectorErr.Kind})
	case errors.Is(err, domain.ErrNoRetailers):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrRateLimited):
		c.JSON(http.StatusTooManyRequests, gin.H{"error": err.Error()})
	default:
		h.logger.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}

// intQuery reads an integer query parameter
func intQuery(c *gin.Context, name string, def int) (int, error) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, domain.NewValidationError(name, "must be an integer")
	}
	return n, nil
}

// retailersQuery reads a comma separated retailers parameter
func retailersQuery(c *gin.Context) []domain.RetailerID {
	raw := c.Query("retailers")
	if raw == "" {
		return nil
	}
	var out []domain.RetailerID
	for _, part := range strings.Split(raw, ",") {
		if id := strings.ToLower(strings.TrimSpace(part)); id != "" {
			out = append(out, domain.RetailerID(id))
		}
	}
	return out
}

// bindError turns a gin binding failure into a validation error
func bindError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		field := verrs[0].Field()
		field = strings.ToLower(field[:1]) + field[1:]
		return domain.NewValidationError(field, verrs[0].Tag())
	}
	return domain.NewValidationError("body", "malformed JSON")
}
