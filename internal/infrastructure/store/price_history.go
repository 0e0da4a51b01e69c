package store

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/boodschap/backend/internal/domain"
)

const (
	defaultHistoryLimit = 30
	maxHistoryLimit     = 100
	insertBatchSize     = 200
)

// priceObservation is the persisted form of domain.PricePoint
type priceObservation struct {
	ID         uint            `gorm:"primaryKey"`
	Retailer   string          `gorm:"size:32;not null;index:idx_price_product,priority:1"`
	ProductID  string          `gorm:"size:255;not null;index:idx_price_product,priority:2"`
	PriceEUR   decimal.Decimal `gorm:"type:numeric(10,2);not null"`
	ObservedAt time.Time       `gorm:"not null;index:idx_price_product,priority:3"`
}

func (priceObservation) TableName() string { return "price_observations" }

// PriceHistoryRepository stores observed prices through gorm
type PriceHistoryRepository struct {
	db *gorm.DB
}

// NewPriceHistoryRepository creates a repository on an open gorm connection
func NewPriceHistoryRepository(db *gorm.DB) *PriceHistoryRepository {
	return &PriceHistoryRepository{db: db}
}

// Migrate creates or updates the price table
func (r *PriceHistoryRepository) Migrate(ctx context.Context) error {
	if err := r.db.WithContext(ctx).AutoMigrate(&priceObservation{}); err != nil {
		return fmt.Errorf("migrate price history: %w", err)
	}
	return nil
}

// Record inserts a batch of observations
func (r *PriceHistoryRepository) Record(ctx context.Context, points []domain.PricePoint) error {
	if len(points) == 0 {
		return nil
	}
	rows := make([]priceObservation, 0, len(points))
	for _, p := range points {
		rows = append(rows, priceObservation{
			Retailer:   string(p.Retailer),
			ProductID:  p.ProductID,
			PriceEUR:   p.PriceEUR,
			ObservedAt: p.ObservedAt.UTC(),
		})
	}
	if err := r.db.WithContext(ctx).CreateInBatches(rows, insertBatchSize).Error; err != nil {
		return fmt.Errorf("insert price observations: %w", err)
	}
	return nil
}

// History returns the most recent observations of a product, oldest first.
// limit is clamped to 1..100; 0 means the default of 30.
func (r *PriceHistoryRepository) History(ctx context.Context, retailer domain.RetailerID, productID string, limit int) ([]domain.PricePoint, error) {
	switch {
	case limit <= 0:
		limit = defaultHistoryLimit
	case limit > maxHistoryLimit:
		limit = maxHistoryLimit
	}

	var rows []priceObservation
	err := r.db.WithContext(ctx).
		Where("retailer = ? AND product_id = ?", string(retailer), productID).
		Order("observed_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("query price history: %w", err)
	}

	points := make([]domain.PricePoint, len(rows))
	for i, row := range rows {
		points[len(rows)-1-i] = domain.PricePoint{
			Retailer:   domain.RetailerID(row.Retailer),
			ProductID:  row.ProductID,
			PriceEUR:   row.PriceEUR,
			ObservedAt: row.ObservedAt.UTC(),
		}
	}
	return points, nil
}
