package usecase

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Canonical quantity units
const (
	UnitKilogram   = "kg"
	UnitGram       = "g"
	UnitLiter      = "L"
	UnitMilliliter = "mL"
	UnitPiece      = "piece"
)

var canonicalUnits = map[string]string{
	"l":          UnitLiter,
	"liter":      UnitLiter,
	"ltr":        UnitLiter,
	"litre":      UnitLiter,
	"cl":         "cL",
	"ml":         UnitMilliliter,
	"milliliter": UnitMilliliter,
	"millilitre": UnitMilliliter,
	"kg":         UnitKilogram,
	"kilo":       UnitKilogram,
	"kilogram":   UnitKilogram,
	"g":          UnitGram,
	"gr":         UnitGram,
	"gram":       UnitGram,
	"st":         UnitPiece,
	"stuk":       UnitPiece,
	"stuks":      UnitPiece,
	"piece":      UnitPiece,
	"pieces":     UnitPiece,
	"pcs":        UnitPiece,
	"pc":         UnitPiece,
	"x":          UnitPiece,
}

var (
	// "2 x 330 ml", "6-pack x 250ml", "3x 500g"
	multiPackPattern = regexp.MustCompile(`(?i)(\d+(?:[.,]\d+)?)\s*(?:-?pack\s*)?[x×]\s*(\d+(?:[.,]\d+)?)\s*([a-z]+)`)
	// "1 kg", "500 g", "1.5L", "6 stuks"
	simpleSizePattern = regexp.MustCompile(`(?i)(\d+(?:[.,]\d+)?)\s*([a-z]+)`)
)

// CanonicalUnit maps unit synonyms onto kg, g, L, mL or piece.
// Unknown units are returned unchanged.
func CanonicalUnit(unit string) string {
	u := strings.ToLower(strings.TrimSpace(unit))
	if c, ok := canonicalUnits[u]; ok {
		return c
	}
	return unit
}

// ParseQuantity extracts the total quantity and canonical unit from a size label
func ParseQuantity(size string) (float64, string, bool) {
	size = strings.TrimSpace(size)
	if size == "" {
		return 0, "", false
	}

	if m := multiPackPattern.FindStringSubmatch(size); m != nil {
		n, err1 := parseLocaleFloat(m[1])
		q, err2 := parseLocaleFloat(m[2])
		if err1 == nil && err2 == nil {
			return fromCentiliter(n*q, CanonicalUnit(m[3]))
		}
	}

	if m := simpleSizePattern.FindStringSubmatch(size); m != nil {
		q, err := parseLocaleFloat(m[1])
		if err == nil {
			return fromCentiliter(q, CanonicalUnit(m[2]))
		}
	}
	return 0, "", false
}

func fromCentiliter(q float64, unit string) (float64, string, bool) {
	if unit == "cL" {
		return q * 10, UnitMilliliter, true
	}
	return q, unit, true
}

func parseLocaleFloat(s string) (float64, error) {
	return strconv.ParseFloat(strings.ReplaceAll(s, ",", "."), 64)
}

// PricePerUnit converts a price into EUR per kg, per L or per piece.
// It returns an invalid NullDecimal when the unit is unknown or the quantity is not positive.
func PricePerUnit(price decimal.Decimal, quantity float64, unit string) (decimal.NullDecimal, string) {
	if !price.IsPositive() || quantity <= 0 {
		return decimal.NullDecimal{}, ""
	}

	q := decimal.NewFromFloat(quantity)
	var base string
	switch CanonicalUnit(unit) {
	case UnitGram:
		q, base = q.Div(decimal.NewFromInt(1000)), UnitKilogram
	case UnitKilogram:
		base = UnitKilogram
	case UnitMilliliter:
		q, base = q.Div(decimal.NewFromInt(1000)), UnitLiter
	case UnitLiter:
		base = UnitLiter
	case UnitPiece:
		base = UnitPiece
	default:
		return decimal.NullDecimal{}, ""
	}
	if !q.IsPositive() {
		return decimal.NullDecimal{}, ""
	}
	return decimal.NewNullDecimal(price.DivRound(q, 4)), base
}
