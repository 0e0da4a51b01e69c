package usecase

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestParseQuantity(t *testing.T) {
	tests := []struct {
		input    string
		wantQty  float64
		wantUnit string
		wantOK   bool
	}{
		{"1 kg", 1, UnitKilogram, true},
		{"500 g", 500, UnitGram, true},
		{"500 gram", 500, UnitGram, true},
		{"1.5L", 1.5, UnitLiter, true},
		{"1,5 liter", 1.5, UnitLiter, true},
		{"2 x 330 ml", 660, UnitMilliliter, true},
		{"6-pack x 250ml", 1500, UnitMilliliter, true},
		{"3x 500g", 1500, UnitGram, true},
		{"6 stuks", 6, UnitPiece, true},
		{"33 cl", 330, UnitMilliliter, true},
		{"", 0, "", false},
		{"per stuk", 0, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			qty, unit, ok := ParseQuantity(tt.input)
			assert.Equal(t, tt.wantOK, ok)
			assert.InDelta(t, tt.wantQty, qty, 0.0001)
			assert.Equal(t, tt.wantUnit, unit)
		})
	}
}

func TestCanonicalUnit(t *testing.T) {
	assert.Equal(t, UnitLiter, CanonicalUnit("ltr"))
	assert.Equal(t, UnitPiece, CanonicalUnit("STUKS"))
	assert.Equal(t, "bos", CanonicalUnit("bos"))
}

func TestPricePerUnit(t *testing.T) {
	tests := []struct {
		name     string
		price    string
		qty      float64
		unit     string
		want     string
		wantBase string
	}{
		{"grams to kg", "2.00", 500, UnitGram, "4", UnitKilogram},
		{"liters", "1.50", 1, UnitLiter, "1.5", UnitLiter},
		{"milliliters to liter", "1.98", 660, UnitMilliliter, "3", UnitLiter},
		{"pieces", "3.00", 6, UnitPiece, "0.5", UnitPiece},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, base := PricePerUnit(decimal.RequireFromString(tt.price), tt.qty, tt.unit)
			assert.True(t, got.Valid)
			assert.True(t, decimal.RequireFromString(tt.want).Equal(got.Decimal), "got %s", got.Decimal)
			assert.Equal(t, tt.wantBase, base)
		})
	}

	t.Run("not computable", func(t *testing.T) {
		got, base := PricePerUnit(decimal.RequireFromString("1.00"), 3, "bos")
		assert.False(t, got.Valid)
		assert.Empty(t, base)

		got, _ = PricePerUnit(decimal.Zero, 1, UnitKilogram)
		assert.False(t, got.Valid)

		got, _ = PricePerUnit(decimal.RequireFromString("1.00"), 0, UnitKilogram)
		assert.False(t, got.Valid)
	})
}
