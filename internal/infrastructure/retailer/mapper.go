package retailer

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/boodschap/backend/internal/domain"
)

// singleArticle is the only typed item kept from grouped search responses
const singleArticle = "SINGLE_ARTICLE"

var errUnexpectedShape = errors.New("unexpected response shape")

// listKeys are the envelope fields a product or slot list may be wrapped in
var listKeys = []string{"items", "products", "results", "delivery_slots", "slots"}

// decodeProducts accepts a bare array, an envelope object, or an array of
// groups each holding an items list. Numbers are kept as json.Number so
// prices survive without float rounding.
func decodeProducts(body []byte, imageBaseURL string) ([]domain.RawProduct, error) {
	records, err := decodeList(body)
	if err != nil {
		return nil, err
	}

	products := make([]domain.RawProduct, 0, len(records))
	for _, rec := range records {
		if nested, ok := rec["items"].([]any); ok && rec["name"] == nil {
			for _, n := range nested {
				if m, ok := n.(map[string]any); ok {
					if t, _ := m["type"].(string); t != "" && t != singleArticle {
						continue
					}
					products = appendProduct(products, m, imageBaseURL)
				}
			}
			continue
		}
		products = appendProduct(products, rec, imageBaseURL)
	}
	return products, nil
}

func appendProduct(dst []domain.RawProduct, rec map[string]any, imageBaseURL string) []domain.RawProduct {
	raw := domain.RawProduct(rec)
	if raw.String("image_url", "imageUrl", "image") == "" && imageBaseURL != "" {
		if id := raw.String("image_id"); id != "" {
			raw["image_url"] = strings.TrimRight(imageBaseURL, "/") + "/" + id
		}
	}
	return append(dst, raw)
}

// decodeSlots maps a slot list into delivery slots. Slots without a
// parseable window are skipped.
func decodeSlots(body []byte) ([]domain.DeliverySlot, error) {
	records, err := decodeList(body)
	if err != nil {
		return nil, err
	}

	slots := make([]domain.DeliverySlot, 0, len(records))
	for _, rec := range records {
		raw := domain.RawProduct(rec)
		start, err := time.Parse(time.RFC3339, raw.String("window_start", "windowStart", "start"))
		if err != nil {
			continue
		}
		end, err := time.Parse(time.RFC3339, raw.String("window_end", "windowEnd", "end"))
		if err != nil {
			continue
		}

		slot := domain.DeliverySlot{
			SlotID:      raw.String("slot_id", "slotId", "id"),
			WindowStart: start.UTC(),
			WindowEnd:   end.UTC(),
			Available:   slotAvailable(raw),
		}
		if cents := raw.String("minimum_order_value", "minimum_order_cents"); cents != "" {
			if d, err := decimal.NewFromString(cents); err == nil {
				slot.MinimumOrderEUR = decimal.NewNullDecimal(d.Shift(-2))
			}
		}
		slots = append(slots, slot)
	}
	return slots, nil
}

func slotAvailable(raw domain.RawProduct) bool {
	v, ok := raw.Value("is_available", "available")
	if !ok {
		return true
	}
	b, ok := v.(bool)
	return ok && b
}

func decodeList(body []byte) ([]map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var payload any
	if err := dec.Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode json: %w", err)
	}

	var list []any
	switch t := payload.(type) {
	case []any:
		list = t
	case map[string]any:
		for _, k := range listKeys {
			if l, ok := t[k].([]any); ok {
				list = l
				break
			}
		}
		if list == nil {
			return nil, errUnexpectedShape
		}
	default:
		return nil, errUnexpectedShape
	}

	records := make([]map[string]any, 0, len(list))
	for _, item := range list {
		if m, ok := item.(map[string]any); ok {
			records = append(records, m)
		}
	}
	return records, nil
}
