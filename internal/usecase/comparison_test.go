package usecase

import (
	"math"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/boodschap/backend/internal/domain"
)

func product(retailer domain.RetailerID, id, name, price string, tag domain.HealthTag) domain.Product {
	return domain.Product{
		Retailer:  retailer,
		ProductID: id,
		Name:      name,
		PriceEUR:  decimal.RequireFromString(price),
		HealthTag: tag,
	}
}

func TestMarkCheapest(t *testing.T) {
	t.Run("groups case and whitespace insensitively", func(t *testing.T) {
		products := []domain.Product{
			product("jumbo", "j1", "Melk Halfvol", "1.19", domain.HealthNeutral),
			product("ah", "a1", "melk  halfvol", "1.09", domain.HealthNeutral),
			product("dirk", "d1", "Melk Vol", "1.29", domain.HealthNeutral),
		}
		MarkCheapest(products)

		assert.False(t, products[0].IsCheapest)
		assert.True(t, products[1].IsCheapest)
		// singleton group has no peer to be cheaper than
		assert.False(t, products[2].IsCheapest)
	})

	t.Run("marks every tied minimum", func(t *testing.T) {
		products := []domain.Product{
			product("ah", "a1", "Banaan", "0.25", domain.HealthHealthy),
			product("jumbo", "j1", "Banaan", "0.25", domain.HealthHealthy),
			product("dirk", "d1", "Banaan", "0.30", domain.HealthHealthy),
		}
		MarkCheapest(products)

		assert.True(t, products[0].IsCheapest)
		assert.True(t, products[1].IsCheapest)
		assert.False(t, products[2].IsCheapest)
	})

	t.Run("no fuzzy grouping", func(t *testing.T) {
		products := []domain.Product{
			product("ah", "a1", "AH Halfvolle melk", "1.09", domain.HealthNeutral),
			product("jumbo", "j1", "Jumbo Halfvolle melk", "0.99", domain.HealthNeutral),
		}
		MarkCheapest(products)
		assert.False(t, products[0].IsCheapest)
		assert.False(t, products[1].IsCheapest)
	})

	t.Run("resets stale flags", func(t *testing.T) {
		products := []domain.Product{product("ah", "a1", "Kaas", "3.00", domain.HealthNeutral)}
		products[0].IsCheapest = true
		products[0].IsCheapestPerUnit = true
		MarkCheapest(products)
		assert.False(t, products[0].IsCheapest)
		assert.False(t, products[0].IsCheapestPerUnit)
	})
}

func TestMarkCheapest_PerUnit(t *testing.T) {
	withUnitPrice := func(p domain.Product, ppu, base string) domain.Product {
		p.PricePerUnit = decimal.NewNullDecimal(decimal.RequireFromString(ppu))
		p.PricePerUnitBase = base
		return p
	}

	t.Run("cheapest per unit can differ from cheapest total", func(t *testing.T) {
		products := []domain.Product{
			withUnitPrice(product("ah", "a1", "Appelsap", "1.50", domain.HealthNeutral), "1.50", UnitLiter),
			withUnitPrice(product("jumbo", "j1", "Appelsap", "2.40", domain.HealthNeutral), "1.20", UnitLiter),
		}
		MarkCheapest(products)

		assert.True(t, products[0].IsCheapest)
		assert.False(t, products[0].IsCheapestPerUnit)
		assert.False(t, products[1].IsCheapest)
		assert.True(t, products[1].IsCheapestPerUnit)
	})

	t.Run("marks every tied minimum", func(t *testing.T) {
		products := []domain.Product{
			withUnitPrice(product("ah", "a1", "Rijst", "2.00", domain.HealthNeutral), "2.00", UnitKilogram),
			withUnitPrice(product("jumbo", "j1", "Rijst", "1.00", domain.HealthNeutral), "2.00", UnitKilogram),
			withUnitPrice(product("dirk", "d1", "Rijst", "3.00", domain.HealthNeutral), "3.00", UnitKilogram),
		}
		MarkCheapest(products)

		assert.True(t, products[0].IsCheapestPerUnit)
		assert.True(t, products[1].IsCheapestPerUnit)
		assert.False(t, products[2].IsCheapestPerUnit)
	})

	t.Run("ignores members without a unit price", func(t *testing.T) {
		products := []domain.Product{
			product("ah", "a1", "Eieren", "0.10", domain.HealthNeutral),
			withUnitPrice(product("jumbo", "j1", "Eieren", "3.00", domain.HealthNeutral), "0.30", UnitPiece),
			withUnitPrice(product("dirk", "d1", "Eieren", "2.50", domain.HealthNeutral), "0.25", UnitPiece),
		}
		MarkCheapest(products)

		assert.False(t, products[0].IsCheapestPerUnit)
		assert.False(t, products[1].IsCheapestPerUnit)
		assert.True(t, products[2].IsCheapestPerUnit)
	})

	t.Run("compares only within one base unit", func(t *testing.T) {
		products := []domain.Product{
			withUnitPrice(product("ah", "a1", "Kaas", "4.00", domain.HealthNeutral), "8.00", UnitKilogram),
			withUnitPrice(product("jumbo", "j1", "Kaas", "3.00", domain.HealthNeutral), "1.00", UnitPiece),
		}
		MarkCheapest(products)

		assert.False(t, products[0].IsCheapestPerUnit)
		assert.False(t, products[1].IsCheapestPerUnit)
	})

	t.Run("lone product stays unmarked", func(t *testing.T) {
		products := []domain.Product{
			withUnitPrice(product("ah", "a1", "Thee", "1.99", domain.HealthHealthy), "99.50", UnitKilogram),
		}
		MarkCheapest(products)

		assert.False(t, products[0].IsCheapest)
		assert.False(t, products[0].IsCheapestPerUnit)
	})
}

func TestFilterByHealth(t *testing.T) {
	products := []domain.Product{
		product("ah", "1", "Cola", "1.00", domain.HealthUnhealthy),
		product("ah", "2", "Water", "0.50", domain.HealthHealthy),
		product("ah", "3", "Melk", "1.00", domain.HealthNeutral),
	}

	assert.Len(t, FilterByHealth(products, ""), 3)

	healthy := FilterByHealth(products, domain.HealthHealthy)
	require.Len(t, healthy, 1)
	assert.Equal(t, "2", healthy[0].ProductID)

	unhealthy := FilterByHealth(products, domain.HealthUnhealthy)
	require.Len(t, unhealthy, 1)
	assert.Equal(t, "1", unhealthy[0].ProductID)
}

func keys(products []domain.Product) []string {
	out := make([]string, len(products))
	for i, p := range products {
		out[i] = p.Key()
	}
	return out
}

func TestSortProducts(t *testing.T) {
	base := func() []domain.Product {
		return []domain.Product{
			product("jumbo", "j2", "Appel", "1.00", domain.HealthHealthy),
			product("ah", "a2", "Chips", "1.00", domain.HealthUnhealthy),
			product("dirk", "d1", "Brood", "0.80", domain.HealthNeutral),
			product("ah", "a1", "Appel", "1.00", domain.HealthHealthy),
			product("jumbo", "j1", "Water", "0.40", domain.HealthHealthy),
		}
	}

	t.Run("price then retailer then name", func(t *testing.T) {
		p := base()
		SortProducts(p, domain.SortByPrice)
		assert.Equal(t, []string{"jumbo:j1", "dirk:d1", "ah:a1", "ah:a2", "jumbo:j2"}, keys(p))

		for i := 1; i < len(p); i++ {
			a, b := p[i-1], p[i]
			require.True(t, a.PriceEUR.LessThanOrEqual(b.PriceEUR))
			if a.PriceEUR.Equal(b.PriceEUR) {
				require.LessOrEqual(t, string(a.Retailer), string(b.Retailer))
			}
		}
	})

	t.Run("retailer then price", func(t *testing.T) {
		p := base()
		SortProducts(p, domain.SortByRetailer)
		assert.Equal(t, []string{"ah:a1", "ah:a2", "dirk:d1", "jumbo:j1", "jumbo:j2"}, keys(p))
	})

	t.Run("healthy first then price", func(t *testing.T) {
		p := base()
		SortProducts(p, domain.SortByHealth)
		assert.Equal(t, []string{"jumbo:j1", "ah:a1", "jumbo:j2", "dirk:d1", "ah:a2"}, keys(p))
	})

	t.Run("independent of input order", func(t *testing.T) {
		a, b := base(), base()
		for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
			b[i], b[j] = b[j], b[i]
		}
		SortProducts(a, domain.SortByPrice)
		SortProducts(b, domain.SortByPrice)
		assert.Equal(t, keys(a), keys(b))
	})

	t.Run("price per unit puts unknown last", func(t *testing.T) {
		withPPU := func(p domain.Product, ppu string) domain.Product {
			p.PricePerUnit = decimal.NewNullDecimal(decimal.RequireFromString(ppu))
			p.PricePerUnitBase = UnitLiter
			return p
		}
		p := []domain.Product{
			product("ah", "x", "Sap", "0.50", domain.HealthNeutral),
			withPPU(product("ah", "b", "Sap groot", "2.00", domain.HealthNeutral), "1.00"),
			withPPU(product("jumbo", "c", "Sap klein", "1.00", domain.HealthNeutral), "2.00"),
		}
		SortProducts(p, domain.SortByPricePerUnit)
		assert.Equal(t, []string{"ah:b", "jumbo:c", "ah:x"}, keys(p))
	})
}

func TestPaginate(t *testing.T) {
	products := make([]domain.Product, 7)
	for i := range products {
		products[i] = product("ah", string(rune('a'+i)), "P", "1.00", domain.HealthNeutral)
	}

	tests := []struct {
		page, size, want int
	}{
		{0, 3, 3},
		{1, 3, 3},
		{2, 3, 1},
		{3, 3, 0},
		{100, 3, 0},
		{0, 50, 7},
		{math.MaxInt/3 + 1, 3, 0},
		{math.MaxInt/4 + 1, 4, 0},
		{math.MaxInt, 1, 0},
		{1, math.MaxInt, 0},
		{0, math.MaxInt, 7},
	}
	for _, tt := range tests {
		got := Paginate(products, tt.page, tt.size)
		assert.Len(t, got, tt.want, "page=%d size=%d", tt.page, tt.size)
		assert.NotNil(t, got)
	}

	assert.Equal(t, "c", Paginate(products, 0, 3)[2].ProductID)
	assert.Equal(t, "d", Paginate(products, 1, 3)[0].ProductID)
	assert.Empty(t, Paginate(nil, 0, 3))
}
