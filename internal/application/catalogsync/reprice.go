package catalogsync

import (
	"context"
	"fmt"

	"github.com/dropship/backend/internal/domain/catalog"
	"github.com/dropship/backend/internal/domain/pricing"
	"github.com/dropship/backend/internal/domain/shared"
	"github.com/dropship/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

const repricePageSize = 100

// Reprice recomputes prices of every active product from its stored cost
// and weight. No supplier calls are made. A nil override uses the active
// pricing policy.
func (e *Engine) Reprice(ctx context.Context, override *pricing.Config) (res *Result, err error) {
	ctx, span := telemetry.StartSpan(ctx, "catalogsync", "reprice", "sync.override", override != nil)
	defer func() { endPassSpan(span, res, err) }()

	if override != nil {
		if err := override.Validate(); err != nil {
			return nil, err
		}
	}

	unlock, err := e.acquire(ctx, LockKeyCatalog)
	if err != nil {
		return nil, err
	}
	defer e.release(unlock)

	p := e.newPass(ctx, KindReprice, string(catalog.ProductStatusActive), Options{})
	if override != nil {
		p.pricing = *override
	}
	p.run.Phase = catalog.SyncPhasePricing
	if err := e.Runs.Save(ctx, p.run); err != nil {
		return nil, fmt.Errorf("failed to record reprice run: %w", err)
	}
	p.log.Info("reprice started", zap.String("markup", p.pricing.MarkupMultiplier.String()))

	filter := catalog.ProductFilter{
		Filter: shared.Filter{Page: 1, PageSize: repricePageSize, OrderBy: "created_at", OrderDir: "asc"},
		Status: catalog.ProductStatusActive,
	}
	for {
		if err := ctx.Err(); err != nil {
			return p.result, e.abort(ctx, p, err)
		}
		products, err := e.Products.FindAll(ctx, filter)
		if err != nil {
			return p.result, e.abort(ctx, p, err)
		}
		for i := range products {
			e.repriceProduct(ctx, p, &products[i])
		}
		if len(products) < filter.PageSize {
			break
		}
		filter.Page++
	}

	e.finish(ctx, p, p.result.status(), "")
	return p.result, nil
}

func (e *Engine) repriceProduct(ctx context.Context, p *pass, product *catalog.Product) {
	q, reason := priceProduct(product.UnitCost, product.WeightGrams, p.pricing, p.shipping)
	if reason != "" {
		p.result.skip(product.ExternalRef, reason)
		return
	}

	changed, err := product.ApplyPricing(q.unitCost, q.shippingCost, q.result, q.compareAt)
	if err != nil {
		p.result.fail(product.ExternalRef, catalog.SyncPhasePricing, err)
		return
	}

	variants, err := e.Variants.FindActiveByProduct(ctx, product.ID)
	if err != nil {
		p.result.fail(product.ExternalRef, catalog.SyncPhasePricing, err)
		return
	}
	var updates []catalog.Variant
	for _, v := range variants {
		if nv, ok := repriceVariant(v, q, p.pricing); ok {
			updates = append(updates, nv)
		}
	}

	if !changed && len(updates) == 0 {
		p.result.Unchanged++
		return
	}
	if err := e.Products.SaveWithVariants(ctx, product, updates); err != nil {
		p.result.fail(product.ExternalRef, catalog.SyncPhaseUpserting, err)
		return
	}
	p.result.Updated++
	e.publish(ctx, product)
}
