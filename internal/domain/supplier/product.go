package supplier

import (
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"
)

// StockEntry is the inventory a supplier warehouse holds for a product or
// one of its variants.
type StockEntry struct {
	// VariantID is empty for product-level stock
	VariantID string
	// CountryCode is the warehouse country (e.g. "US", "CN")
	CountryCode string
	Quantity    int
}

// Variant is a purchasable supplier SKU. Color and Size are empty when the
// product does not vary along that dimension.
type Variant struct {
	VID      string
	SKU      string
	Color    string
	Size     string
	Image    string
	UnitCost decimal.Decimal
	// WeightGrams is nil when the supplier did not report a weight
	WeightGrams *int
}

// Product is the supplier's view of a catalog item. It is never mutated
// locally; a later fetch replaces it wholesale.
type Product struct {
	PID         string
	Name        string
	Description string
	CategoryID  string
	Images      []string
	UnitCost    decimal.Decimal
	WeightGrams *int
	Stock       []StockEntry
	Variants    []Variant
	// Raw is the untouched supplier payload kept for later backfills
	Raw json.RawMessage
}

// PrimaryImage returns the first image or an empty string
func (p *Product) PrimaryImage() string {
	if len(p.Images) == 0 {
		return ""
	}
	return p.Images[0]
}

// HasWeight reports whether a usable weight is known
func (p *Product) HasWeight() bool {
	return p.WeightGrams != nil && *p.WeightGrams > 0
}

// StockFor sums stock for a variant (or product-level stock when vid is
// empty) in the given warehouse. An empty warehouse sums every warehouse.
func StockFor(entries []StockEntry, vid, warehouse string) int {
	total := 0
	for _, e := range entries {
		if vid != "" && e.VariantID != vid {
			continue
		}
		if warehouse != "" && !strings.EqualFold(e.CountryCode, warehouse) {
			continue
		}
		total += e.Quantity
	}
	return total
}

// ListEntry is a summary row from the paginated product list.
type ListEntry struct {
	PID         string
	Name        string
	CategoryID  string
	Image       string
	UnitCost    decimal.Decimal
	WeightGrams *int
}

// ListQuery filters the paginated product list
type ListQuery struct {
	CategoryID  string
	Warehouse   string
	CountryCode string
	PageNum     int
	PageSize    int
}

// Normalize applies defaults to paging fields
func (q *ListQuery) Normalize() {
	if q.PageNum < 1 {
		q.PageNum = 1
	}
	if q.PageSize < 1 || q.PageSize > 200 {
		q.PageSize = 50
	}
}

// ListPage is one page of the product list
type ListPage struct {
	Entries  []ListEntry
	PageNum  int
	PageSize int
	Total    int
}

// HasMore reports whether further pages exist after this one
func (p *ListPage) HasMore() bool {
	if len(p.Entries) == 0 {
		return false
	}
	return p.PageNum*p.PageSize < p.Total
}
