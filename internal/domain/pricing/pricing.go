// Package pricing turns supplier cost data into a retail price. Everything
// here is pure: no I/O, no shared state, safe for concurrent callers.
package pricing

import (
	"github.com/dropship/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Config is the active pricing policy
type Config struct {
	// MarkupMultiplier is applied to the total landed cost
	MarkupMultiplier decimal.Decimal `json:"markup_multiplier" mapstructure:"markup_multiplier"`
	// FeePercent is the payment processor's percentage fee (2.9 = 2.9%)
	FeePercent decimal.Decimal `json:"fee_percent" mapstructure:"fee_percent"`
	// FeeFixed is the processor's per-transaction fixed fee
	FeeFixed decimal.Decimal `json:"fee_fixed" mapstructure:"fee_fixed"`
	// MinimumMargin is the margin in dollars a price must exceed to be viable
	MinimumMargin decimal.Decimal `json:"minimum_margin" mapstructure:"minimum_margin"`
	// CompareAtPercent sets the display-only pre-discount price
	CompareAtPercent decimal.Decimal `json:"compare_at_percent" mapstructure:"compare_at_percent"`
}

// DefaultConfig returns the hard-coded pricing policy used when no record
// has been saved.
func DefaultConfig() Config {
	return Config{
		MarkupMultiplier: decimal.NewFromFloat(2.5),
		FeePercent:       decimal.NewFromFloat(2.9),
		FeeFixed:         decimal.NewFromFloat(0.30),
		MinimumMargin:    decimal.NewFromInt(5),
		CompareAtPercent: decimal.NewFromInt(30),
	}
}

// Validate checks the config for values that would produce nonsense prices
func (c Config) Validate() error {
	if !c.MarkupMultiplier.IsPositive() {
		return shared.NewDomainError("INVALID_PRICING_CONFIG", "Markup multiplier must be positive")
	}
	if c.FeePercent.IsNegative() || c.FeePercent.GreaterThanOrEqual(hundred) {
		return shared.NewDomainError("INVALID_PRICING_CONFIG", "Fee percent must be in [0, 100)")
	}
	if c.FeeFixed.IsNegative() {
		return shared.NewDomainError("INVALID_PRICING_CONFIG", "Fixed fee cannot be negative")
	}
	if c.MinimumMargin.IsNegative() {
		return shared.NewDomainError("INVALID_PRICING_CONFIG", "Minimum margin cannot be negative")
	}
	if c.CompareAtPercent.IsNegative() {
		return shared.NewDomainError("INVALID_PRICING_CONFIG", "Compare-at percent cannot be negative")
	}
	return nil
}

// Result is the outcome of a price calculation
type Result struct {
	RetailPrice   decimal.Decimal `json:"retail_price"`
	StripeFee     decimal.Decimal `json:"stripe_fee"`
	TotalCost     decimal.Decimal `json:"total_cost"`
	MarginDollars decimal.Decimal `json:"margin_dollars"`
	MarginPercent decimal.Decimal `json:"margin_percent"`
	IsViable      bool            `json:"is_viable"`
}

// Fee returns the payment processing fee on cost+shipping, rounded to cents.
func Fee(cost, shipping decimal.Decimal, cfg Config) decimal.Decimal {
	base := cost.Add(shipping)
	return base.Mul(cfg.FeePercent).Div(hundred).Add(cfg.FeeFixed).Round(2)
}

// Calculate prices one item from its unit cost and shipping estimate.
//
//	totalCost     = cost + shipping + fee
//	retailPrice   = round2(totalCost * markup)
//	marginDollars = retailPrice - totalCost
//	isViable      = retailPrice > 0 && marginDollars > MinimumMargin
func Calculate(cost, shipping decimal.Decimal, cfg Config) Result {
	fee := Fee(cost, shipping, cfg)
	total := cost.Add(shipping).Add(fee)
	retail := total.Mul(cfg.MarkupMultiplier).Round(2)
	margin := retail.Sub(total)

	marginPercent := decimal.Zero
	if retail.IsPositive() {
		marginPercent = margin.Div(retail).Mul(hundred).Round(2)
	}

	return Result{
		RetailPrice:   retail,
		StripeFee:     fee,
		TotalCost:     total,
		MarginDollars: margin,
		MarginPercent: marginPercent,
		IsViable:      retail.IsPositive() && margin.GreaterThan(cfg.MinimumMargin),
	}
}

// CompareAtPrice returns the display-only "was" price, CompareAtPercent
// above retail.
func CompareAtPrice(retail decimal.Decimal, cfg Config) decimal.Decimal {
	factor := decimal.NewFromInt(1).Add(cfg.CompareAtPercent.Div(hundred))
	return retail.Mul(factor).Round(2)
}
