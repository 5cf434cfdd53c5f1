// Package shipping estimates shipping charges for carts, preferring a live
// supplier freight quote when enabled and falling back to the static
// weight-tier policy otherwise.
package shipping

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/dropship/backend/internal/domain/catalog"
	"github.com/dropship/backend/internal/domain/shared"
	domainshipping "github.com/dropship/backend/internal/domain/shipping"
	"github.com/dropship/backend/internal/domain/supplier"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const defaultQuoteTimeout = 10 * time.Second

// ConfigSource provides the active shipping policy
type ConfigSource interface {
	Shipping(ctx context.Context) domainshipping.Config
}

// Request is a priced cart ready for estimation
type Request struct {
	DestinationCountry string
	Subtotal           decimal.Decimal
	// WeightGrams is nil when any line's weight is unknown
	WeightGrams *int
	Items       []supplier.FreightItem
}

// CartLine is one storefront cart line
type CartLine struct {
	VariantID uuid.UUID `json:"variant_id" binding:"required"`
	Quantity  int       `json:"quantity" binding:"required,min=1,max=99"`
}

// Estimator computes shipping quotes. Estimation never fails: every
// supplier error degrades to the static policy.
type Estimator struct {
	client       supplier.Client
	config       ConfigSource
	products     catalog.ProductRepository
	variants     catalog.VariantRepository
	quoteTimeout time.Duration
	logger       *zap.Logger
}

// NewEstimator creates a new Estimator
func NewEstimator(
	client supplier.Client,
	config ConfigSource,
	products catalog.ProductRepository,
	variants catalog.VariantRepository,
	logger *zap.Logger,
) *Estimator {
	return &Estimator{
		client:       client,
		config:       config,
		products:     products,
		variants:     variants,
		quoteTimeout: defaultQuoteTimeout,
		logger:       logger.Named("shipping"),
	}
}

// Estimate quotes a request under the active policy
func (e *Estimator) Estimate(ctx context.Context, req Request) domainshipping.Quote {
	return e.EstimateWith(ctx, req, e.config.Shipping(ctx))
}

// EstimateWith quotes a request under an explicit policy
func (e *Estimator) EstimateWith(ctx context.Context, req Request, cfg domainshipping.Config) domainshipping.Quote {
	static := domainshipping.Calculate(domainshipping.Input{WeightGrams: req.WeightGrams, Subtotal: req.Subtotal}, cfg)
	if static.Method == domainshipping.MethodFree || !cfg.LiveQuoteEnabled {
		return static
	}
	if len(req.Items) == 0 || strings.TrimSpace(req.DestinationCountry) == "" {
		return static
	}

	quoteCtx, cancel := context.WithTimeout(ctx, e.quoteTimeout)
	defer cancel()

	options, err := e.client.FreightQuote(quoteCtx, supplier.FreightQuoteRequest{
		OriginCountry:      cfg.OriginCountry,
		DestinationCountry: strings.ToUpper(strings.TrimSpace(req.DestinationCountry)),
		Items:              req.Items,
	})
	if err != nil {
		e.logger.Warn("live freight quote failed, using static policy",
			zap.String("destination", req.DestinationCountry),
			zap.Error(err),
		)
		return static
	}

	candidates := make([]domainshipping.Option, 0, len(options))
	for _, o := range options {
		if o.Price.IsNegative() {
			continue
		}
		candidates = append(candidates, domainshipping.Option{
			Carrier:       o.Carrier,
			Price:         o.Price,
			EstimatedDays: o.EstimatedDays,
		})
	}
	opt, ok := domainshipping.SelectOption(candidates, cfg.PreferredCarrier)
	if !ok {
		e.logger.Warn("live freight quote returned no options, using static policy",
			zap.String("destination", req.DestinationCountry))
		return static
	}
	return domainshipping.LiveQuote(opt, cfg)
}

// EstimateCart resolves storefront cart lines to variants and their
// products, then quotes the cart. Unknown or inactive variants, and
// variants of products that are not on sale, are rejected.
func (e *Estimator) EstimateCart(ctx context.Context, country string, lines []CartLine) (domainshipping.Quote, error) {
	req, err := e.buildRequest(ctx, country, lines)
	if err != nil {
		return domainshipping.Quote{}, err
	}
	return e.Estimate(ctx, req), nil
}

func (e *Estimator) buildRequest(ctx context.Context, country string, lines []CartLine) (Request, error) {
	if len(lines) == 0 {
		return Request{}, shared.NewDomainError("EMPTY_CART", "Cart has no lines")
	}

	req := Request{DestinationCountry: country, Subtotal: decimal.Zero}
	totalWeight := 0
	weightKnown := true
	products := make(map[uuid.UUID]*catalog.Product)

	for _, line := range lines {
		v, err := e.variants.FindByID(ctx, line.VariantID)
		if err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				return Request{}, shared.NewDomainError("VARIANT_NOT_FOUND", "Variant "+line.VariantID.String()+" not found")
			}
			return Request{}, err
		}
		if !v.IsActive {
			return Request{}, shared.NewDomainError("VARIANT_UNAVAILABLE", "Variant "+line.VariantID.String()+" is not available")
		}

		p, ok := products[v.ProductID]
		if !ok {
			p, err = e.products.FindByID(ctx, v.ProductID)
			if err != nil {
				return Request{}, err
			}
			products[v.ProductID] = p
		}
		if !p.IsActive() {
			return Request{}, shared.NewDomainError("VARIANT_UNAVAILABLE", "Variant "+line.VariantID.String()+" is not available")
		}

		price := v.RetailPrice
		if !price.IsPositive() {
			price = p.RetailPrice
		}
		req.Subtotal = req.Subtotal.Add(price.Mul(decimal.NewFromInt(int64(line.Quantity))))

		if p.HasWeight() {
			totalWeight += *p.WeightGrams * line.Quantity
		} else {
			weightKnown = false
		}
		if v.ExternalVariantID != "" {
			req.Items = append(req.Items, supplier.FreightItem{VariantID: v.ExternalVariantID, Quantity: line.Quantity})
		}
	}

	if weightKnown {
		req.WeightGrams = &totalWeight
	}
	// a partially linked cart cannot be quoted live
	if len(req.Items) != len(lines) {
		req.Items = nil
	}
	return req, nil
}
