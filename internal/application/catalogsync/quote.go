package catalogsync

import (
	"fmt"
	"time"

	"github.com/dropship/backend/internal/domain/catalog"
	"github.com/dropship/backend/internal/domain/pricing"
	"github.com/dropship/backend/internal/domain/shipping"
	"github.com/dropship/backend/internal/domain/supplier"
	"github.com/shopspring/decimal"
)

// unitShippingCost is the static cost of shipping one unit of weight
// grams. Free shipping is a storefront promotion and never lowers the cost
// basis used for pricing.
func unitShippingCost(weight *int, cfg shipping.Config) decimal.Decimal {
	cfg.FreeShippingEnabled = false
	return shipping.Calculate(shipping.Input{WeightGrams: weight}, cfg).Charge
}

// productWeight prefers the product weight and falls back to the heaviest
// variant, then to the listing
func productWeight(p *supplier.Product, listed *int) *int {
	if p.HasWeight() {
		return p.WeightGrams
	}
	var heaviest *int
	for _, v := range p.Variants {
		if v.WeightGrams != nil && *v.WeightGrams > 0 && (heaviest == nil || *v.WeightGrams > *heaviest) {
			heaviest = v.WeightGrams
		}
	}
	if heaviest != nil {
		return heaviest
	}
	if listed != nil && *listed > 0 {
		return listed
	}
	return nil
}

// productCost prefers the product cost and falls back to the cheapest
// priced variant
func productCost(p *supplier.Product) decimal.Decimal {
	if p.UnitCost.IsPositive() {
		return p.UnitCost
	}
	cost := decimal.Zero
	for _, v := range p.Variants {
		if v.UnitCost.IsPositive() && (cost.IsZero() || v.UnitCost.LessThan(cost)) {
			cost = v.UnitCost
		}
	}
	return cost
}

// quote prices a product. ok is false with a reason when a business rule
// rejects it.
type quote struct {
	unitCost     decimal.Decimal
	shippingCost decimal.Decimal
	result       pricing.Result
	compareAt    decimal.Decimal
}

func priceProduct(cost decimal.Decimal, weight *int, pc pricing.Config, sc shipping.Config) (quote, string) {
	if weight == nil || *weight <= 0 {
		return quote{}, "missing weight"
	}
	if !cost.IsPositive() {
		return quote{}, "missing unit cost"
	}
	ship := unitShippingCost(weight, sc)
	res := pricing.Calculate(cost, ship, pc)
	if !res.IsViable {
		return quote{}, fmt.Sprintf("not viable: margin %s below minimum %s", res.MarginDollars.StringFixed(2), pc.MinimumMargin.StringFixed(2))
	}
	return quote{
		unitCost:     cost,
		shippingCost: ship,
		result:       res,
		compareAt:    pricing.CompareAtPrice(res.RetailPrice, pc),
	}, ""
}

// variantPrice prices one variant from its own cost, falling back to the
// product price when the variant has no cost or would not be viable alone
func variantPrice(cost decimal.Decimal, q quote, pc pricing.Config) decimal.Decimal {
	if !cost.IsPositive() || cost.Equal(q.unitCost) {
		return q.result.RetailPrice
	}
	res := pricing.Calculate(cost, q.shippingCost, pc)
	if !res.IsViable {
		return q.result.RetailPrice
	}
	return res.RetailPrice
}

// variantInputs converts supplier variants in payload order. Stock comes
// from the warehouse entries for each vid; when the supplier only reports
// product-level stock every variant shares it.
func variantInputs(p *supplier.Product, stock []supplier.StockEntry, warehouse string, q quote, pc pricing.Config) []catalog.VariantInput {
	perVariant := false
	for _, e := range stock {
		if e.VariantID != "" {
			perVariant = true
			break
		}
	}

	inputs := make([]catalog.VariantInput, 0, len(p.Variants))
	for _, v := range p.Variants {
		count := supplier.StockFor(stock, "", warehouse)
		if perVariant {
			count = supplier.StockFor(stock, v.VID, warehouse)
		}
		cost := v.UnitCost
		if !cost.IsPositive() {
			cost = q.unitCost
		}
		image := v.Image
		if image == "" {
			image = p.PrimaryImage()
		}
		inputs = append(inputs, catalog.VariantInput{
			ExternalVariantID: v.VID,
			Color:             v.Color,
			Size:              v.Size,
			StockCount:        count,
			Image:             image,
			UnitCost:          cost,
			RetailPrice:       variantPrice(cost, q, pc),
		})
	}
	return inputs
}

// repriceVariant recomputes a stored variant's price from its stored cost
func repriceVariant(v catalog.Variant, q quote, pc pricing.Config) (catalog.Variant, bool) {
	price := variantPrice(v.UnitCost, q, pc)
	if v.RetailPrice.Equal(price) {
		return v, false
	}
	v.RetailPrice = price
	v.UpdatedAt = time.Now()
	return v, true
}
