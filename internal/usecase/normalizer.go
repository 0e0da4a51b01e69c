package usecase

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/boodschap/backend/internal/domain"
)

var (
	errMissingID   = errors.New("missing product id")
	errMissingName = errors.New("missing product name")
)

var (
	multiSpacePattern    = regexp.MustCompile(`\s+`)
	currencyNoisePattern = regexp.MustCompile(`(?i)€|eur|\s`)
)

// Normalizer turns untrusted retailer records into canonical products.
// It is the only place health tags are assigned.
type Normalizer struct {
	classifier *HealthClassifier
}

// NewNormalizer creates a normalizer using the given classifier
func NewNormalizer(classifier *HealthClassifier) *Normalizer {
	if classifier == nil {
		classifier = NewHealthClassifier(nil)
	}
	return &Normalizer{classifier: classifier}
}

// NormalizeAll converts a batch and reports how many records were dropped
func (n *Normalizer) NormalizeAll(retailer domain.RetailerID, raws []domain.RawProduct) ([]domain.Product, int) {
	products := make([]domain.Product, 0, len(raws))
	dropped := 0
	for _, raw := range raws {
		p, err := n.Normalize(retailer, raw)
		if err != nil {
			dropped++
			continue
		}
		products = append(products, p)
	}
	return products, dropped
}

// Normalize converts one raw record. Records without id, name or a readable
// non-negative price are rejected rather than defaulted.
func (n *Normalizer) Normalize(retailer domain.RetailerID, raw domain.RawProduct) (domain.Product, error) {
	id := raw.String("id", "product_id", "productId", "webshop_id", "sku", "url")
	if id == "" {
		return domain.Product{}, errMissingID
	}

	name := cleanName(raw.String("name", "title"))
	if name == "" {
		return domain.Product{}, errMissingName
	}

	price, err := parseRawPrice(raw)
	if err != nil {
		return domain.Product{}, fmt.Errorf("%s %s: %w", retailer, id, err)
	}

	p := domain.Product{
		Retailer:    retailer,
		ProductID:   id,
		Name:        name,
		Brand:       raw.String("brand"),
		Category:    raw.String("category", "main_category"),
		PriceEUR:    price,
		ImageURL:    raw.String("image_url", "imageUrl", "image"),
		URL:         raw.String("url", "link"),
		UnitSize:    raw.String("unit_size", "size", "unit_quantity", "unit"),
		IsPromotion: truthy(raw, "is_promotion", "promo", "discount", "discountInfo"),
	}

	if q, unit, ok := ParseQuantity(p.UnitSize); ok {
		p.Quantity = q
		p.QuantityUnit = unit
		p.PricePerUnit, p.PricePerUnitBase = PricePerUnit(price, q, unit)
	}

	p.HealthTag = n.classifier.Classify(HealthSignals{
		Name:      p.Name,
		Category:  p.Category,
		Nutrition: nutritionHints(raw),
	})
	return p, nil
}

func cleanName(s string) string {
	return strings.TrimSpace(multiSpacePattern.ReplaceAllString(s, " "))
}

// parseRawPrice reads minor-unit fields first (cents), then euro fields
func parseRawPrice(raw domain.RawProduct) (decimal.Decimal, error) {
	if v, ok := raw.Value("price_cents", "display_price"); ok {
		d, err := decimalFromAny(v)
		if err != nil {
			return decimal.Zero, err
		}
		return checkPrice(d.Shift(-2))
	}
	if v, ok := raw.Value("price_eur", "price"); ok {
		d, err := decimalFromAny(v)
		if err != nil {
			return decimal.Zero, err
		}
		return checkPrice(d)
	}
	return decimal.Zero, domain.ErrUnparsablePrice
}

func checkPrice(d decimal.Decimal) (decimal.Decimal, error) {
	if d.IsNegative() {
		return decimal.Zero, fmt.Errorf("%w: negative price %s", domain.ErrUnparsablePrice, d)
	}
	return d, nil
}

func decimalFromAny(v any) (decimal.Decimal, error) {
	switch t := v.(type) {
	case decimal.Decimal:
		return t, nil
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return decimal.Zero, domain.ErrUnparsablePrice
		}
		return decimal.NewFromFloat(t), nil
	case float32:
		return decimalFromAny(float64(t))
	case int:
		return decimal.NewFromInt(int64(t)), nil
	case int64:
		return decimal.NewFromInt(t), nil
	case json.Number:
		return parseDecimalString(t.String())
	case string:
		return parseDecimalString(t)
	}
	return decimal.Zero, fmt.Errorf("%w: unsupported type %T", domain.ErrUnparsablePrice, v)
}

// parseDecimalString accepts "1.09", "1,09", "€ 1,09" and "1.234,56"
func parseDecimalString(s string) (decimal.Decimal, error) {
	s = currencyNoisePattern.ReplaceAllString(s, "")
	if s == "" {
		return decimal.Zero, domain.ErrUnparsablePrice
	}
	if strings.Contains(s, ",") {
		s = strings.ReplaceAll(s, ".", "")
		s = strings.ReplaceAll(s, ",", ".")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", domain.ErrUnparsablePrice, s)
	}
	return d, nil
}

func truthy(raw domain.RawProduct, keys ...string) bool {
	for _, k := range keys {
		switch t := raw[k].(type) {
		case bool:
			if t {
				return true
			}
		case string:
			if s := strings.ToLower(strings.TrimSpace(t)); s != "" && s != "false" && s != "0" {
				return true
			}
		case map[string]any:
			if len(t) > 0 {
				return true
			}
		}
	}
	return false
}

func nutritionHints(raw domain.RawProduct) *NutritionHints {
	m, ok := raw["nutrition"].(map[string]any)
	if !ok {
		return nil
	}
	read := func(keys ...string) *float64 {
		for _, k := range keys {
			d, err := decimalFromAny(m[k])
			if err == nil {
				f := d.InexactFloat64()
				return &f
			}
		}
		return nil
	}
	return &NutritionHints{
		SugarPer100g:  read("sugar", "sugars"),
		FiberPer100g:  read("fiber", "fibre"),
		SaltPer100g:   read("salt"),
		SatFatPer100g: read("saturated_fat"),
	}
}
