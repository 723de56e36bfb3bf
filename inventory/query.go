package inventory

import (
	"sort"
	"strings"
)

// Query narrows a product list. Zero values match everything.
type Query struct {
	// Text matches name or SKU, case insensitive.
	Text     string
	Category string
	LowStock bool
}

// Filter returns the products matching q, preserving order.
func Filter(products []Product, q Query) []Product {
	text := strings.ToLower(strings.TrimSpace(q.Text))
	out := make([]Product, 0, len(products))
	for _, p := range products {
		if text != "" &&
			!strings.Contains(strings.ToLower(p.Name), text) &&
			!strings.Contains(strings.ToLower(p.SKU), text) {
			continue
		}
		if q.Category != "" && !strings.EqualFold(p.Category, q.Category) {
			continue
		}
		if q.LowStock && !p.LowStock() {
			continue
		}
		out = append(out, p)
	}
	return out
}

type SortField string

const (
	SortByName     SortField = "name"
	SortBySKU      SortField = "sku"
	SortByCategory SortField = "category"
	SortByPrice    SortField = "price"
	SortByQuantity SortField = "quantity"
)

// ParseSortField maps user input onto a field, defaulting to name.
func ParseSortField(s string) SortField {
	switch f := SortField(strings.ToLower(s)); f {
	case SortBySKU, SortByCategory, SortByPrice, SortByQuantity:
		return f
	default:
		return SortByName
	}
}

// Sort returns a sorted copy. Ties fall back to ID so output is stable.
func Sort(products []Product, field SortField, desc bool) []Product {
	out := make([]Product, len(products))
	copy(out, products)

	less := func(a, b Product) bool {
		switch field {
		case SortBySKU:
			if a.SKU != b.SKU {
				return a.SKU < b.SKU
			}
		case SortByCategory:
			if a.Category != b.Category {
				return a.Category < b.Category
			}
		case SortByPrice:
			if a.Price != b.Price {
				return a.Price < b.Price
			}
		case SortByQuantity:
			if a.Quantity != b.Quantity {
				return a.Quantity < b.Quantity
			}
		default:
			if na, nb := strings.ToLower(a.Name), strings.ToLower(b.Name); na != nb {
				return na < nb
			}
		}
		return a.ID < b.ID
	}

	sort.SliceStable(out, func(i, j int) bool {
		if desc {
			return less(out[j], out[i])
		}
		return less(out[i], out[j])
	})
	return out
}

// Dashboard is the stock overview.
type Dashboard struct {
	TotalProducts int            `json:"total_products"`
	TotalUnits    int            `json:"total_units"`
	StockValue    float64        `json:"stock_value"`
	LowStock      []Product      `json:"low_stock"`
	Categories    map[string]int `json:"categories"`
}

func (d Dashboard) LowStockCount() int {
	return len(d.LowStock)
}

func Summarize(products []Product) Dashboard {
	d := Dashboard{
		TotalProducts: len(products),
		LowStock:      []Product{},
		Categories:    map[string]int{},
	}
	for _, p := range products {
		d.TotalUnits += p.Quantity
		d.StockValue += p.StockValue()
		d.Categories[p.Category]++
		if p.LowStock() {
			d.LowStock = append(d.LowStock, p)
		}
	}
	d.LowStock = Sort(d.LowStock, SortByQuantity, false)
	return d
}
