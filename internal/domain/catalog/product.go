package catalog

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/dropship/backend/internal/domain/pricing"
	"github.com/dropship/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// ProductStatus is the storefront visibility lifecycle of a product
type ProductStatus string

const (
	ProductStatusPending ProductStatus = "pending"
	ProductStatusActive  ProductStatus = "active"
	ProductStatusHidden  ProductStatus = "hidden"
)

// IsValid reports whether s is a known status
func (s ProductStatus) IsValid() bool {
	switch s {
	case ProductStatusPending, ProductStatusActive, ProductStatusHidden:
		return true
	}
	return false
}

// Product is a locally listed product backed by a supplier product.
// It is the aggregate root for its variants. Status changes only through
// the lifecycle methods below; products are hidden, never deleted.
type Product struct {
	shared.BaseAggregateRoot
	Slug        string
	ExternalRef string
	Name        string
	Description string
	CategoryID  string
	Images      []string
	Status      ProductStatus

	RetailPrice    decimal.Decimal
	CompareAtPrice decimal.Decimal
	UnitCost       decimal.Decimal
	ShippingCost   decimal.Decimal
	PaymentFee     decimal.Decimal
	TotalCost      decimal.Decimal
	MarginDollars  decimal.Decimal
	MarginPercent  decimal.Decimal

	WeightGrams *int
	Warehouse   string
	StockCount  int

	// SupplierPayload is the last raw supplier detail payload
	SupplierPayload json.RawMessage
	LastSyncedAt    *time.Time
}

// NewProduct creates a pending product for a supplier product seen for the
// first time. The slug is fixed for the product's lifetime.
func NewProduct(externalRef, name, slug string) (*Product, error) {
	externalRef = strings.TrimSpace(externalRef)
	if externalRef == "" {
		return nil, shared.NewDomainError("INVALID_EXTERNAL_REF", "External reference cannot be empty")
	}
	if err := validateProductName(name); err != nil {
		return nil, err
	}
	if slug == "" {
		return nil, shared.NewDomainError("INVALID_SLUG", "Slug cannot be empty")
	}

	p := &Product{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Slug:              slug,
		ExternalRef:       externalRef,
		Name:              strings.TrimSpace(name),
		Status:            ProductStatusPending,
		RetailPrice:       decimal.Zero,
		CompareAtPrice:    decimal.Zero,
		UnitCost:          decimal.Zero,
		ShippingCost:      decimal.Zero,
		PaymentFee:        decimal.Zero,
		TotalCost:         decimal.Zero,
		MarginDollars:     decimal.Zero,
		MarginPercent:     decimal.Zero,
	}
	p.AddDomainEvent(NewProductCreatedEvent(p))
	return p, nil
}

// Details are the supplier-owned descriptive fields refreshed on every sync
type Details struct {
	Name        string
	Description string
	CategoryID  string
	Images      []string
	WeightGrams *int
	Payload     json.RawMessage
}

// ApplyDetails refreshes descriptive fields. It reports whether anything
// changed. The slug is never touched.
func (p *Product) ApplyDetails(d Details) (bool, error) {
	if err := validateProductName(d.Name); err != nil {
		return false, err
	}
	name := strings.TrimSpace(d.Name)
	changed := p.Name != name ||
		p.Description != d.Description ||
		p.CategoryID != d.CategoryID ||
		!equalStrings(p.Images, d.Images) ||
		!equalWeight(p.WeightGrams, d.WeightGrams)

	p.Name = name
	p.Description = d.Description
	p.CategoryID = d.CategoryID
	p.Images = append([]string(nil), d.Images...)
	p.WeightGrams = d.WeightGrams
	if len(d.Payload) > 0 {
		p.SupplierPayload = d.Payload
	}
	if changed {
		p.touch()
	}
	return changed, nil
}

// ApplyPricing stores a viable pricing result. Non-viable results are
// rejected so a product is never stored with a zero retail price.
func (p *Product) ApplyPricing(unitCost, shippingCost decimal.Decimal, res pricing.Result, compareAt decimal.Decimal) (bool, error) {
	if !res.IsViable {
		return false, shared.NewDomainError("NOT_VIABLE", "Pricing result is not viable")
	}
	oldRetail := p.RetailPrice
	changed := !p.RetailPrice.Equal(res.RetailPrice) ||
		!p.CompareAtPrice.Equal(compareAt) ||
		!p.UnitCost.Equal(unitCost) ||
		!p.ShippingCost.Equal(shippingCost) ||
		!p.PaymentFee.Equal(res.StripeFee) ||
		!p.TotalCost.Equal(res.TotalCost) ||
		!p.MarginDollars.Equal(res.MarginDollars) ||
		!p.MarginPercent.Equal(res.MarginPercent)

	p.RetailPrice = res.RetailPrice
	p.CompareAtPrice = compareAt
	p.UnitCost = unitCost
	p.ShippingCost = shippingCost
	p.PaymentFee = res.StripeFee
	p.TotalCost = res.TotalCost
	p.MarginDollars = res.MarginDollars
	p.MarginPercent = res.MarginPercent

	if changed {
		p.touch()
		if !oldRetail.Equal(res.RetailPrice) {
			p.AddDomainEvent(NewProductPriceChangedEvent(p, oldRetail))
		}
	}
	return changed, nil
}

// SetStock records the warehouse and stock count
func (p *Product) SetStock(warehouse string, count int) bool {
	if count < 0 {
		count = 0
	}
	if p.Warehouse == warehouse && p.StockCount == count {
		return false
	}
	p.Warehouse = warehouse
	p.StockCount = count
	p.touch()
	return true
}

// MarkSynced stamps the time of the last successful sync of this product
func (p *Product) MarkSynced(at time.Time) {
	p.LastSyncedAt = &at
}

// Activate makes a pending product sellable
func (p *Product) Activate() error {
	if p.Status != ProductStatusPending {
		return shared.NewDomainError("INVALID_STATUS_TRANSITION", "Only pending products can be activated")
	}
	if !p.RetailPrice.IsPositive() {
		return shared.NewDomainError("CANNOT_ACTIVATE", "Cannot activate a product without a retail price")
	}
	p.transition(ProductStatusActive)
	return nil
}

// MarkPending takes an active product off sale without hiding it
func (p *Product) MarkPending() error {
	if p.Status != ProductStatusActive {
		return shared.NewDomainError("INVALID_STATUS_TRANSITION", "Only active products can be marked pending")
	}
	p.transition(ProductStatusPending)
	return nil
}

// Hide removes a product that the supplier no longer lists
func (p *Product) Hide() error {
	if p.Status == ProductStatusHidden {
		return shared.NewDomainError("INVALID_STATUS_TRANSITION", "Product is already hidden")
	}
	p.transition(ProductStatusHidden)
	return nil
}

// Reappear restores a hidden product the supplier lists again. It returns to
// active when sellable is true, otherwise to pending. Identity and slug are
// preserved.
func (p *Product) Reappear(sellable bool) error {
	if p.Status != ProductStatusHidden {
		return shared.NewDomainError("INVALID_STATUS_TRANSITION", "Only hidden products can reappear")
	}
	if sellable && p.RetailPrice.IsPositive() {
		p.transition(ProductStatusActive)
	} else {
		p.transition(ProductStatusPending)
	}
	return nil
}

// IsActive returns true if the product is on sale
func (p *Product) IsActive() bool {
	return p.Status == ProductStatusActive
}

// IsHidden returns true if the product was reconciled away
func (p *Product) IsHidden() bool {
	return p.Status == ProductStatusHidden
}

// PrimaryImage returns the first image or empty string
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

func (p *Product) transition(to ProductStatus) {
	from := p.Status
	p.Status = to
	p.touch()
	p.AddDomainEvent(NewProductStatusChangedEvent(p, from, to))
}

func (p *Product) touch() {
	p.Touch(time.Now())
	p.IncrementVersion()
}

func validateProductName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return shared.NewDomainError("INVALID_NAME", "Product name cannot be empty")
	}
	if len(name) > 500 {
		return shared.NewDomainError("INVALID_NAME", "Product name cannot exceed 500 characters")
	}
	return nil
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func equalWeight(a, b *int) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
