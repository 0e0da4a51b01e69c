package usecase

import (
	"sort"
	"strings"

	"github.com/boodschap/backend/internal/domain"
)

// MarkCheapest sets IsCheapest on the minimum-price members of every name group
// that has at least two members. A lone product has no peer to undercut, so it
// stays unmarked. Tied minimums are all marked.
//
// IsCheapestPerUnit follows the same rules over the members that carry a price
// per unit, compared only against peers with the same base unit.
func MarkCheapest(products []domain.Product) {
	groups := make(map[string][]int)
	for i := range products {
		products[i].IsCheapest = false
		products[i].IsCheapestPerUnit = false
		key := products[i].GroupingKey()
		groups[key] = append(groups[key], i)
	}

	for _, idx := range groups {
		if len(idx) < 2 {
			continue
		}
		lowest := products[idx[0]].PriceEUR
		for _, i := range idx[1:] {
			if products[i].PriceEUR.LessThan(lowest) {
				lowest = products[i].PriceEUR
			}
		}
		for _, i := range idx {
			if products[i].PriceEUR.Equal(lowest) {
				products[i].IsCheapest = true
			}
		}
		markCheapestPerUnit(products, idx)
	}
}

func markCheapestPerUnit(products []domain.Product, idx []int) {
	byBase := make(map[string][]int)
	for _, i := range idx {
		if products[i].PricePerUnit.Valid && products[i].PricePerUnitBase != "" {
			base := products[i].PricePerUnitBase
			byBase[base] = append(byBase[base], i)
		}
	}

	for _, members := range byBase {
		if len(members) < 2 {
			continue
		}
		lowest := products[members[0]].PricePerUnit.Decimal
		for _, i := range members[1:] {
			if products[i].PricePerUnit.Decimal.LessThan(lowest) {
				lowest = products[i].PricePerUnit.Decimal
			}
		}
		for _, i := range members {
			if products[i].PricePerUnit.Decimal.Equal(lowest) {
				products[i].IsCheapestPerUnit = true
			}
		}
	}
}

// FilterByHealth keeps only products with the given tag; an empty tag keeps everything
func FilterByHealth(products []domain.Product, tag domain.HealthTag) []domain.Product {
	if tag == "" {
		return products
	}
	out := make([]domain.Product, 0, len(products))
	for _, p := range products {
		if p.HealthTag == tag {
			out = append(out, p)
		}
	}
	return out
}

// SortProducts orders products in place. Every mode ends in a full tie-break
// (retailer, name, productId) so the order never depends on arrival order.
func SortProducts(products []domain.Product, by domain.SortBy) {
	less := comparatorFor(by)
	sort.SliceStable(products, func(i, j int) bool {
		return less(products[i], products[j]) < 0
	})
}

type comparator func(a, b domain.Product) int

func comparatorFor(by domain.SortBy) comparator {
	switch by {
	case domain.SortByRetailer:
		return chain(byRetailer, byPrice, byName, byProductID)
	case domain.SortByHealth:
		return chain(byHealth, byPrice, byRetailer, byName, byProductID)
	case domain.SortByPricePerUnit:
		return chain(byPricePerUnit, byPrice, byRetailer, byName, byProductID)
	default:
		return chain(byPrice, byRetailer, byName, byProductID)
	}
}

func chain(cmps ...comparator) comparator {
	return func(a, b domain.Product) int {
		for _, c := range cmps {
			if r := c(a, b); r != 0 {
				return r
			}
		}
		return 0
	}
}

func byPrice(a, b domain.Product) int { return a.PriceEUR.Cmp(b.PriceEUR) }

func byRetailer(a, b domain.Product) int {
	return strings.Compare(string(a.Retailer), string(b.Retailer))
}

func byName(a, b domain.Product) int { return strings.Compare(a.Name, b.Name) }

func byProductID(a, b domain.Product) int { return strings.Compare(a.ProductID, b.ProductID) }

// healthy first
func byHealth(a, b domain.Product) int { return b.HealthTag.Rank() - a.HealthTag.Rank() }

// products without a per-unit price sort last
func byPricePerUnit(a, b domain.Product) int {
	switch {
	case a.PricePerUnit.Valid && b.PricePerUnit.Valid:
		if a.PricePerUnitBase != b.PricePerUnitBase {
			return strings.Compare(a.PricePerUnitBase, b.PricePerUnitBase)
		}
		return a.PricePerUnit.Decimal.Cmp(b.PricePerUnit.Decimal)
	case a.PricePerUnit.Valid:
		return -1
	case b.PricePerUnit.Valid:
		return 1
	}
	return 0
}

// Paginate returns the window [page*size, page*size+size); out of range pages are empty
func Paginate(products []domain.Product, page, size int) []domain.Product {
	if page < 0 || size <= 0 || len(products) == 0 || page > (len(products)-1)/size {
		return []domain.Product{}
	}
	start := page * size
	end := len(products)
	if size < end-start {
		end = start + size
	}
	out := make([]domain.Product, end-start)
	copy(out, products[start:end])
	return out
}
