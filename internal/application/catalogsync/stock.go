package catalogsync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dropship/backend/internal/domain/catalog"
	"github.com/dropship/backend/internal/domain/shared"
	"github.com/dropship/backend/internal/domain/supplier"
	"github.com/dropship/backend/internal/infrastructure/logger"
	"github.com/dropship/backend/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const stockPageSize = 100

// StockResult summarizes a stock check
type StockResult struct {
	Checked     int         `json:"checked"`
	Updated     int         `json:"updated"`
	Activated   int         `json:"activated"`
	Deactivated int         `json:"deactivated"`
	Errors      []ItemError `json:"errors"`
}

// StockChecker refreshes stock counts of supplier-linked products without
// a full sync. Hidden products are left to the sync engine.
type StockChecker struct {
	engine *Engine
}

// NewStockChecker creates a StockChecker sharing the engine's dependencies
func NewStockChecker(engine *Engine) *StockChecker {
	return &StockChecker{engine: engine}
}

// Check refreshes one product when productID is set, otherwise every
// pending and active product
func (s *StockChecker) Check(ctx context.Context, productID *uuid.UUID) (res *StockResult, err error) {
	ctx, span := telemetry.StartSpan(ctx, "catalogsync", "stock_check", "stock.single", productID != nil)
	defer func() {
		if res != nil {
			telemetry.SetAttributes(span,
				"stock.checked", res.Checked,
				"stock.updated", res.Updated,
				"stock.errors", len(res.Errors),
			)
		}
		telemetry.EndSpan(span, &err)
	}()

	e := s.engine
	unlock, err := e.acquire(ctx, LockKeyCatalog)
	if err != nil {
		return nil, err
	}
	defer e.release(unlock)

	if err := e.Client.Authenticate(ctx); err != nil {
		return nil, err
	}

	log := logger.FromContextOr(ctx, e.Logger).Named("stock")
	result := &StockResult{}

	if productID != nil {
		product, err := e.Products.FindByID(ctx, *productID)
		if err != nil {
			return nil, err
		}
		if product.IsHidden() {
			return nil, shared.NewDomainError("PRODUCT_HIDDEN", "Hidden products are refreshed by catalog sync")
		}
		if err := s.checkProduct(ctx, product, result); err != nil {
			return result, err
		}
		return result, nil
	}

	for _, status := range []catalog.ProductStatus{catalog.ProductStatusActive, catalog.ProductStatusPending} {
		if err := s.checkStatus(ctx, status, result); err != nil {
			log.Error("stock check aborted", zap.Error(err))
			return result, err
		}
	}
	log.Info("stock check finished",
		zap.Int("checked", result.Checked),
		zap.Int("updated", result.Updated),
		zap.Int("activated", result.Activated),
		zap.Int("deactivated", result.Deactivated),
		zap.Int("errors", len(result.Errors)),
	)
	return result, nil
}

// checkStatus walks products by id so status changes made along the way do
// not shift later pages
func (s *StockChecker) checkStatus(ctx context.Context, status catalog.ProductStatus, result *StockResult) error {
	e := s.engine
	refs, err := e.Products.FindRefsByStatus(ctx, status)
	if err != nil {
		return err
	}
	for i, ref := range refs {
		if i > 0 && i%stockPageSize == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		product, err := e.Products.FindByID(ctx, ref.ID)
		if err != nil {
			result.Errors = append(result.Errors, ItemError{ExternalRef: ref.ExternalRef, Phase: catalog.SyncPhaseDetailing, Error: err.Error()})
			continue
		}
		if err := s.checkProduct(ctx, product, result); err != nil {
			return err
		}
	}
	return nil
}

// checkProduct returns an error only when the whole check must stop
func (s *StockChecker) checkProduct(ctx context.Context, product *catalog.Product, result *StockResult) error {
	e := s.engine
	result.Checked++

	entries, err := e.Client.GetStock(ctx, product.ExternalRef)
	if err != nil {
		if supplier.IsFatal(err) {
			return err
		}
		result.Errors = append(result.Errors, ItemError{ExternalRef: product.ExternalRef, Phase: catalog.SyncPhaseDetailing, Error: err.Error()})
		return nil
	}

	warehouse := product.Warehouse
	if warehouse == "" {
		warehouse = e.cfg.Warehouse
	}
	version := product.GetVersion()
	wasActive := product.IsActive()
	product.SetStock(warehouse, supplier.StockFor(entries, "", warehouse))

	if e.cfg.AutoActivate {
		if err := applyAvailability(product); err != nil {
			result.Errors = append(result.Errors, ItemError{ExternalRef: product.ExternalRef, Phase: catalog.SyncPhaseUpserting, Error: err.Error()})
			return nil
		}
	}

	variants, err := e.Variants.FindByProduct(ctx, product.ID)
	if err != nil {
		result.Errors = append(result.Errors, ItemError{ExternalRef: product.ExternalRef, Phase: catalog.SyncPhaseUpserting, Error: err.Error()})
		return nil
	}
	updates := variantStock(variants, entries, warehouse)

	if product.GetVersion() == version && len(updates) == 0 {
		return nil
	}
	if err := e.Products.SaveWithVariants(ctx, product, updates); err != nil {
		result.Errors = append(result.Errors, ItemError{
			ExternalRef: product.ExternalRef,
			Phase:       catalog.SyncPhaseUpserting,
			Error:       fmt.Errorf("save: %w", err).Error(),
		})
		return nil
	}

	result.Updated++
	switch {
	case !wasActive && product.IsActive():
		result.Activated++
	case wasActive && !product.IsActive():
		result.Deactivated++
	}
	e.publish(ctx, product)
	return nil
}

// variantStock returns the active variants whose stock moved
func variantStock(variants []catalog.Variant, entries []supplier.StockEntry, warehouse string) []catalog.Variant {
	perVariant := false
	for _, e := range entries {
		if e.VariantID != "" {
			perVariant = true
			break
		}
	}

	now := time.Now()
	var updates []catalog.Variant
	for _, v := range variants {
		if !v.IsActive {
			continue
		}
		count := supplier.StockFor(entries, "", warehouse)
		if perVariant {
			count = supplier.StockFor(entries, v.ExternalVariantID, warehouse)
		}
		if v.StockCount == count {
			continue
		}
		v.StockCount = count
		v.UpdatedAt = now
		updates = append(updates, v)
	}
	return updates
}

// IsLockContention reports whether err means another pass holds the lock
func IsLockContention(err error) bool {
	return errors.Is(err, ErrSyncInProgress)
}
