// Package shipping computes the shipping charge for a cart from its weight
// and subtotal. The static policy here never fails; the live quote path in
// the application layer falls back to it.
package shipping

import (
	"sort"
	"strings"

	"github.com/dropship/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// Method records which rule produced a charge
type Method string

const (
	MethodFree          Method = "free"
	MethodTier          Method = "tier"
	MethodUnknownWeight Method = "unknown_weight"
	MethodLive          Method = "live"
)

// WeightTier is a price bracket. MaxGrams nil means unbounded.
type WeightTier struct {
	MaxGrams *int            `json:"max_grams" mapstructure:"max_grams"`
	Price    decimal.Decimal `json:"price" mapstructure:"price"`
}

// Config is the shipping policy record
type Config struct {
	FreeShippingEnabled   bool            `json:"free_shipping_enabled" mapstructure:"free_shipping_enabled"`
	FreeShippingThreshold decimal.Decimal `json:"free_shipping_threshold" mapstructure:"free_shipping_threshold"`
	// FreeShippingMaxWeight caps free shipping by weight in grams; 0 disables the cap
	FreeShippingMaxWeight int             `json:"free_shipping_max_weight" mapstructure:"free_shipping_max_weight"`
	Tiers                 []WeightTier    `json:"tiers" mapstructure:"tiers"`
	UnknownWeightRate     decimal.Decimal `json:"unknown_weight_rate" mapstructure:"unknown_weight_rate"`
	MinimumCharge         decimal.Decimal `json:"minimum_charge" mapstructure:"minimum_charge"`

	LiveQuoteEnabled       bool            `json:"live_quote_enabled" mapstructure:"live_quote_enabled"`
	LiveQuoteMarkupPercent decimal.Decimal `json:"live_quote_markup_percent" mapstructure:"live_quote_markup_percent"`
	PreferredCarrier       string          `json:"preferred_carrier" mapstructure:"preferred_carrier"`
	OriginCountry          string          `json:"origin_country" mapstructure:"origin_country"`
}

func grams(n int) *int {
	return &n
}

// DefaultConfig returns the hard-coded shipping policy
func DefaultConfig() Config {
	return Config{
		FreeShippingEnabled:   true,
		FreeShippingThreshold: decimal.NewFromInt(50),
		FreeShippingMaxWeight: 2000,
		Tiers: []WeightTier{
			{MaxGrams: grams(500), Price: decimal.RequireFromString("4.99")},
			{MaxGrams: grams(2000), Price: decimal.RequireFromString("7.99")},
			{MaxGrams: grams(5000), Price: decimal.RequireFromString("12.99")},
			{MaxGrams: nil, Price: decimal.RequireFromString("19.99")},
		},
		UnknownWeightRate:      decimal.RequireFromString("9.99"),
		MinimumCharge:          decimal.RequireFromString("3.99"),
		LiveQuoteEnabled:       false,
		LiveQuoteMarkupPercent: decimal.NewFromInt(10),
		OriginCountry:          "CN",
	}
}

// Validate rejects configs that cannot be applied
func (c Config) Validate() error {
	if c.FreeShippingThreshold.IsNegative() || c.UnknownWeightRate.IsNegative() || c.MinimumCharge.IsNegative() {
		return shared.NewDomainError("INVALID_SHIPPING_CONFIG", "Shipping amounts cannot be negative")
	}
	if c.FreeShippingMaxWeight < 0 {
		return shared.NewDomainError("INVALID_SHIPPING_CONFIG", "Free shipping weight cap cannot be negative")
	}
	if c.LiveQuoteMarkupPercent.IsNegative() {
		return shared.NewDomainError("INVALID_SHIPPING_CONFIG", "Live quote markup cannot be negative")
	}
	unbounded := 0
	for _, t := range c.Tiers {
		if t.Price.IsNegative() {
			return shared.NewDomainError("INVALID_SHIPPING_CONFIG", "Tier price cannot be negative")
		}
		if t.MaxGrams == nil {
			unbounded++
		} else if *t.MaxGrams <= 0 {
			return shared.NewDomainError("INVALID_SHIPPING_CONFIG", "Tier bound must be positive")
		}
	}
	if unbounded > 1 {
		return shared.NewDomainError("INVALID_SHIPPING_CONFIG", "At most one unbounded tier is allowed")
	}
	return nil
}

// SortedTiers returns the tiers ascending by bound, unbounded last
func (c Config) SortedTiers() []WeightTier {
	tiers := make([]WeightTier, len(c.Tiers))
	copy(tiers, c.Tiers)
	sort.SliceStable(tiers, func(i, j int) bool {
		a, b := tiers[i].MaxGrams, tiers[j].MaxGrams
		if a == nil {
			return false
		}
		if b == nil {
			return true
		}
		return *a < *b
	})
	return tiers
}

// Input describes the cart being shipped
type Input struct {
	// WeightGrams is nil when any item's weight is unknown
	WeightGrams *int
	Subtotal    decimal.Decimal
}

// Quote is a shipping charge and how it was derived
type Quote struct {
	Charge        decimal.Decimal `json:"charge"`
	Method        Method          `json:"method"`
	Carrier       string          `json:"carrier,omitempty"`
	EstimatedDays string          `json:"estimated_days,omitempty"`
}

// Calculate applies the static policy. Decision order:
//  1. free shipping when enabled, subtotal >= threshold and weight within cap
//  2. first tier whose bound >= weight
//  3. unknown weight uses UnknownWeightRate
//  4. floor at MinimumCharge (a free charge is not floored)
func Calculate(in Input, cfg Config) Quote {
	if qualifiesForFree(in, cfg) {
		return Quote{Charge: decimal.Zero, Method: MethodFree}
	}

	if in.WeightGrams == nil {
		return Quote{Charge: floor(cfg.UnknownWeightRate, cfg), Method: MethodUnknownWeight}
	}

	price, ok := tierPrice(*in.WeightGrams, cfg)
	if !ok {
		return Quote{Charge: floor(cfg.UnknownWeightRate, cfg), Method: MethodUnknownWeight}
	}
	return Quote{Charge: floor(price, cfg), Method: MethodTier}
}

func qualifiesForFree(in Input, cfg Config) bool {
	if !cfg.FreeShippingEnabled || in.Subtotal.LessThan(cfg.FreeShippingThreshold) {
		return false
	}
	if cfg.FreeShippingMaxWeight == 0 {
		return true
	}
	return in.WeightGrams != nil && *in.WeightGrams <= cfg.FreeShippingMaxWeight
}

// tierPrice returns the first tier covering weight. A weight above every
// bounded tier, with no unbounded tier configured, takes the heaviest price.
func tierPrice(weight int, cfg Config) (decimal.Decimal, bool) {
	tiers := cfg.SortedTiers()
	if len(tiers) == 0 {
		return decimal.Zero, false
	}
	for _, t := range tiers {
		if t.MaxGrams == nil || *t.MaxGrams >= weight {
			return t.Price, true
		}
	}
	return tiers[len(tiers)-1].Price, true
}

func floor(charge decimal.Decimal, cfg Config) decimal.Decimal {
	if charge.LessThan(cfg.MinimumCharge) {
		return cfg.MinimumCharge
	}
	return charge
}

// Option is one carrier option from a live freight quote
type Option struct {
	Carrier       string
	Price         decimal.Decimal
	EstimatedDays string
}

// SelectOption picks the preferred carrier (case-insensitive) when offered,
// else the cheapest option. The first option wins ties.
func SelectOption(options []Option, preferred string) (Option, bool) {
	if len(options) == 0 {
		return Option{}, false
	}
	if preferred != "" {
		for _, o := range options {
			if strings.EqualFold(strings.TrimSpace(o.Carrier), strings.TrimSpace(preferred)) {
				return o, true
			}
		}
	}
	best := options[0]
	for _, o := range options[1:] {
		if o.Price.LessThan(best.Price) {
			best = o
		}
	}
	return best, true
}

// LiveQuote converts a chosen carrier option into a charge: markup applied,
// rounded to cents, floored at MinimumCharge.
func LiveQuote(opt Option, cfg Config) Quote {
	factor := decimal.NewFromInt(1).Add(cfg.LiveQuoteMarkupPercent.Div(decimal.NewFromInt(100)))
	charge := opt.Price.Mul(factor).Round(2)
	return Quote{
		Charge:        floor(charge, cfg),
		Method:        MethodLive,
		Carrier:       opt.Carrier,
		EstimatedDays: opt.EstimatedDays,
	}
}
