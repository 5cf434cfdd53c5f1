// Package catalogsync reconciles the local catalog against the supplier
// catalog, reprices listed products and refreshes their stock.
package catalogsync

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dropship/backend/internal/domain/catalog"
	"github.com/dropship/backend/internal/domain/pricing"
	"github.com/dropship/backend/internal/domain/shared"
	"github.com/dropship/backend/internal/domain/shipping"
	"github.com/dropship/backend/internal/domain/supplier"
	"github.com/dropship/backend/internal/infrastructure/logger"
	"github.com/dropship/backend/internal/infrastructure/telemetry"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// LockKeyCatalog guards every pass that rewrites products: sync, reprice
// and stock check all hold it, so no two passes save the same row.
const LockKeyCatalog = "catalog"

// Run kinds recorded on SyncRun
const (
	KindSync    = "sync"
	KindReprice = "reprice"
	KindStock   = "stock"
)

// ConfigSource provides the active pricing and shipping policies
type ConfigSource interface {
	Pricing(ctx context.Context) pricing.Config
	Shipping(ctx context.Context) shipping.Config
}

// Config holds the engine's static settings
type Config struct {
	// AutoActivate moves sellable products to active without review
	AutoActivate bool
	// Warehouse is the default warehouse country stock is counted in
	Warehouse   string
	CountryCode string
	PageSize    int
	// MaxPages bounds a pass; a bounded pass never reconciles. 0 = no bound.
	MaxPages int
	LockTTL  time.Duration
}

// Options are per-pass overrides
type Options struct {
	CategoryID string `json:"category_id"`
	Warehouse  string `json:"warehouse"`
	PageSize   int    `json:"page_size"`
	MaxPages   int    `json:"max_pages"`
	// Resync fetches detail for every listed product, not only new or
	// changed ones
	Resync bool `json:"resync"`
}

// Deps are the engine's collaborators
type Deps struct {
	Client    supplier.Client
	Products  catalog.ProductRepository
	Variants  catalog.VariantRepository
	Runs      catalog.SyncRunRepository
	Settings  ConfigSource
	Locker    shared.Locker
	Publisher shared.EventPublisher
	Logger    *zap.Logger
}

// Engine runs catalog sync passes. Products are processed one at a time.
type Engine struct {
	Deps
	cfg Config
}

// NewEngine creates a sync engine
func NewEngine(deps Deps, cfg Config) *Engine {
	if deps.Publisher == nil {
		deps.Publisher = shared.NopPublisher{}
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if cfg.PageSize <= 0 || cfg.PageSize > 200 {
		cfg.PageSize = 50
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 30 * time.Minute
	}
	return &Engine{Deps: deps, cfg: cfg}
}

// pass carries the state of one running sync
type pass struct {
	opts      Options
	warehouse string
	pricing   pricing.Config
	shipping  shipping.Config
	run       *catalog.SyncRun
	result    *Result
	observed  map[string]struct{}
	truncated bool
	log       *zap.Logger
}

// Run executes one sync pass. Fatal supplier errors (credentials) and lock
// contention are returned before any product is touched; per-item failures
// are collected in the result.
func (e *Engine) Run(ctx context.Context, opts Options) (res *Result, err error) {
	scope := "all"
	if opts.CategoryID != "" {
		scope = "category:" + opts.CategoryID
	}
	ctx, span := telemetry.StartSpan(ctx, "catalogsync", "run",
		telemetry.SpanAttrScope, scope,
		"sync.resync", opts.Resync,
	)
	defer func() { endPassSpan(span, res, err) }()

	unlock, err := e.acquire(ctx, LockKeyCatalog)
	if err != nil {
		return nil, err
	}
	defer e.release(unlock)

	p := e.newPass(ctx, KindSync, scope, opts)
	if err := e.Runs.Save(ctx, p.run); err != nil {
		return nil, fmt.Errorf("failed to record sync run: %w", err)
	}
	p.log.Info("catalog sync started",
		zap.String("category", opts.CategoryID),
		zap.String("warehouse", p.warehouse),
		zap.Bool("resync", opts.Resync),
	)

	if err := e.Client.Authenticate(ctx); err != nil {
		return p.result, e.abort(ctx, p, err)
	}

	entries, err := e.list(ctx, p)
	if err != nil {
		return p.result, e.abort(ctx, p, err)
	}

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			// a cancelled pass never reconciles and is recorded as failed
			return p.result, e.abort(ctx, p, err)
		}
		if err := e.syncEntry(ctx, p, entry); err != nil {
			// only fatal errors escape syncEntry
			return p.result, e.abort(ctx, p, err)
		}
	}

	if e.shouldReconcile(p) {
		p.run.Phase = catalog.SyncPhaseReconciling
		e.reconcile(ctx, p)
		p.result.Reconciled = true
	} else {
		p.log.Info("skipping reconciliation", zap.Bool("truncated", p.truncated), zap.String("category", opts.CategoryID))
	}

	e.finish(ctx, p, p.result.status(), "")
	return p.result, nil
}

func (e *Engine) newPass(ctx context.Context, kind, scope string, opts Options) *pass {
	warehouse := strings.TrimSpace(opts.Warehouse)
	if warehouse == "" {
		warehouse = e.cfg.Warehouse
	}
	run := catalog.NewSyncRun(kind, scope)
	return &pass{
		opts:      opts,
		warehouse: warehouse,
		pricing:   e.Settings.Pricing(ctx),
		shipping:  e.Settings.Shipping(ctx),
		run:       run,
		result:    &Result{RunID: run.ID},
		observed:  make(map[string]struct{}),
		log:       logger.WithTraceContext(ctx, logger.FromContextOr(ctx, e.Logger)).With(zap.String("run_id", run.ID.String())).Named("catalogsync"),
	}
}

// list pages through the supplier catalog. A failure after the first page
// keeps what was listed but marks the pass truncated.
func (e *Engine) list(ctx context.Context, p *pass) ([]supplier.ListEntry, error) {
	pageSize := p.opts.PageSize
	if pageSize <= 0 {
		pageSize = e.cfg.PageSize
	}
	maxPages := p.opts.MaxPages
	if maxPages <= 0 {
		maxPages = e.cfg.MaxPages
	}

	var entries []supplier.ListEntry
	for page := 1; ; page++ {
		if maxPages > 0 && page > maxPages {
			p.truncated = true
			break
		}
		resp, err := e.Client.ListProducts(ctx, supplier.ListQuery{
			CategoryID:  p.opts.CategoryID,
			Warehouse:   p.warehouse,
			CountryCode: e.cfg.CountryCode,
			PageNum:     page,
			PageSize:    pageSize,
		})
		if err != nil {
			if supplier.IsFatal(err) || page == 1 {
				return nil, fmt.Errorf("%w: %w", ErrListingFailed, err)
			}
			p.truncated = true
			p.result.fail("", catalog.SyncPhaseListing, fmt.Errorf("page %d: %w", page, err))
			break
		}
		p.result.Pages++
		for _, entry := range resp.Entries {
			if _, dup := p.observed[entry.PID]; dup || entry.PID == "" {
				continue
			}
			p.observed[entry.PID] = struct{}{}
			entries = append(entries, entry)
		}
		if !resp.HasMore() {
			break
		}
	}
	p.log.Info("supplier catalog listed", zap.Int("products", len(entries)), zap.Int("pages", p.result.Pages))
	return entries, nil
}

// syncEntry processes one listed product. It returns an error only when
// the whole pass must stop.
func (e *Engine) syncEntry(ctx context.Context, p *pass, entry supplier.ListEntry) error {
	log := p.log.With(zap.String("pid", entry.PID))

	existing, err := e.Products.FindByExternalRef(ctx, entry.PID)
	if err != nil && !errors.Is(err, shared.ErrNotFound) {
		p.result.fail(entry.PID, catalog.SyncPhaseDetailing, err)
		log.Error("failed to load product", zap.Error(err))
		return nil
	}
	if errors.Is(err, shared.ErrNotFound) {
		existing = nil
	}

	if existing != nil && !e.needsDetail(p, existing, entry) {
		p.result.Unchanged++
		return nil
	}

	p.run.Phase = catalog.SyncPhaseDetailing
	detail, err := e.Client.GetProduct(ctx, entry.PID)
	if err != nil {
		return e.itemError(p, log, entry.PID, catalog.SyncPhaseDetailing, err)
	}
	stock, err := e.Client.GetStock(ctx, entry.PID)
	if err != nil {
		return e.itemError(p, log, entry.PID, catalog.SyncPhaseDetailing, err)
	}

	p.run.Phase = catalog.SyncPhasePricing
	q, reason := priceProduct(productCost(detail), productWeight(detail, entry.WeightGrams), p.pricing, p.shipping)
	if reason != "" {
		p.result.skip(entry.PID, reason)
		log.Info("product skipped", zap.String("reason", reason))
		return nil
	}

	p.run.Phase = catalog.SyncPhaseUpserting
	if existing == nil {
		err = e.insert(ctx, p, detail, stock, q)
	} else {
		err = e.update(ctx, p, existing, detail, stock, q)
	}
	if err != nil {
		p.result.fail(entry.PID, catalog.SyncPhaseUpserting, err)
		log.Error("failed to store product", zap.Error(err))
	}
	return nil
}

// needsDetail decides whether a known product must be refetched. New,
// hidden, never-synced and changed listings always are.
func (e *Engine) needsDetail(p *pass, existing *catalog.Product, entry supplier.ListEntry) bool {
	if p.opts.Resync || existing.IsHidden() || existing.LastSyncedAt == nil {
		return true
	}
	if strings.TrimSpace(entry.Name) != "" && strings.TrimSpace(entry.Name) != existing.Name {
		return true
	}
	return entry.UnitCost.IsPositive() && !entry.UnitCost.Equal(existing.UnitCost)
}

func (e *Engine) itemError(p *pass, log *zap.Logger, pid string, phase catalog.SyncPhase, err error) error {
	if supplier.IsFatal(err) {
		return err
	}
	p.result.fail(pid, phase, err)
	log.Warn("product failed", zap.String("phase", string(phase)), zap.Error(err))
	return nil
}

func (e *Engine) insert(ctx context.Context, p *pass, detail *supplier.Product, stock []supplier.StockEntry, q quote) error {
	slug, err := e.uniqueSlug(ctx, detail.Name, detail.PID)
	if err != nil {
		return err
	}
	product, err := catalog.NewProduct(detail.PID, detail.Name, slug)
	if err != nil {
		return err
	}
	if err := e.applySupplier(p, product, detail, stock, q); err != nil {
		return err
	}
	if e.cfg.AutoActivate && product.StockCount > 0 {
		if err := product.Activate(); err != nil {
			return err
		}
	}

	changes := catalog.MergeVariants(product.ID, nil, variantInputs(detail, stock, p.warehouse, q, p.pricing))
	if err := e.Products.SaveWithVariants(ctx, product, changes.Upserts); err != nil {
		return err
	}
	p.result.Synced++
	e.publish(ctx, product)
	return nil
}

func (e *Engine) update(ctx context.Context, p *pass, product *catalog.Product, detail *supplier.Product, stock []supplier.StockEntry, q quote) error {
	version := product.GetVersion()
	if err := e.applySupplier(p, product, detail, stock, q); err != nil {
		return err
	}

	sellable := e.cfg.AutoActivate && product.StockCount > 0
	switch {
	case product.IsHidden():
		if err := product.Reappear(sellable); err != nil {
			return err
		}
		p.result.Reappeared++
	case e.cfg.AutoActivate:
		if err := applyAvailability(product); err != nil {
			return err
		}
	}

	existing, err := e.Variants.FindByProduct(ctx, product.ID)
	if err != nil {
		return err
	}
	changes := catalog.MergeVariants(product.ID, existing, variantInputs(detail, stock, p.warehouse, q, p.pricing))
	if err := e.Products.SaveWithVariants(ctx, product, changes.Upserts); err != nil {
		return err
	}
	if product.GetVersion() != version || changes.Changed() {
		p.result.Updated++
	} else {
		p.result.Unchanged++
	}
	e.publish(ctx, product)
	return nil
}

// applySupplier copies supplier state onto the product
func (e *Engine) applySupplier(p *pass, product *catalog.Product, detail *supplier.Product, stock []supplier.StockEntry, q quote) error {
	if _, err := product.ApplyDetails(catalog.Details{
		Name:        detail.Name,
		Description: detail.Description,
		CategoryID:  detail.CategoryID,
		Images:      detail.Images,
		WeightGrams: productWeight(detail, nil),
		Payload:     detail.Raw,
	}); err != nil {
		return err
	}
	if _, err := product.ApplyPricing(q.unitCost, q.shippingCost, q.result, q.compareAt); err != nil {
		return err
	}
	product.SetStock(p.warehouse, supplier.StockFor(stock, "", p.warehouse))
	product.MarkSynced(time.Now())
	return nil
}

// applyAvailability keeps an auto-activated product's status in line with
// its stock
func applyAvailability(product *catalog.Product) error {
	switch {
	case product.Status == catalog.ProductStatusPending && product.StockCount > 0:
		return product.Activate()
	case product.IsActive() && product.StockCount == 0:
		return product.MarkPending()
	}
	return nil
}

// uniqueSlug derives a free slug from the name: base, base-2, base-3...
func (e *Engine) uniqueSlug(ctx context.Context, name, pid string) (string, error) {
	base := catalog.Slugify(name)
	if base == "product" {
		base = catalog.Slugify("product " + pid)
	}
	for n := 1; n < 1000; n++ {
		candidate := catalog.SlugCandidate(base, n)
		taken, err := e.Products.ExistsBySlug(ctx, candidate)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
	}
	return "", shared.NewDomainError("SLUG_EXHAUSTED", "No free slug for "+base)
}

// shouldReconcile is true only for a complete, unfiltered pass
func (e *Engine) shouldReconcile(p *pass) bool {
	if p.truncated || p.opts.CategoryID != "" {
		return false
	}
	if p.opts.Warehouse != "" && !strings.EqualFold(p.opts.Warehouse, e.cfg.Warehouse) {
		return false
	}
	return true
}

// reconcile hides every active product the supplier no longer lists
func (e *Engine) reconcile(ctx context.Context, p *pass) {
	refs, err := e.Products.FindRefsByStatus(ctx, catalog.ProductStatusActive)
	if err != nil {
		p.result.fail("", catalog.SyncPhaseReconciling, err)
		p.log.Error("failed to load active products for reconciliation", zap.Error(err))
		return
	}
	for _, ref := range refs {
		if _, seen := p.observed[ref.ExternalRef]; seen {
			continue
		}
		product, err := e.Products.FindByID(ctx, ref.ID)
		if err != nil {
			p.result.fail(ref.ExternalRef, catalog.SyncPhaseReconciling, err)
			continue
		}
		if err := product.Hide(); err != nil {
			p.result.fail(ref.ExternalRef, catalog.SyncPhaseReconciling, err)
			continue
		}
		if err := e.Products.Save(ctx, product); err != nil {
			p.result.fail(ref.ExternalRef, catalog.SyncPhaseReconciling, err)
			continue
		}
		p.result.Hidden++
		p.log.Info("product hidden", zap.String("pid", ref.ExternalRef))
		e.publish(ctx, product)
	}
}

// endPassSpan tags the pass span with the run outcome and ends it
func endPassSpan(span trace.Span, res *Result, err error) {
	if res != nil {
		telemetry.SetAttributes(span,
			telemetry.SpanAttrRunID, res.RunID,
			"sync.synced", res.Synced,
			"sync.updated", res.Updated,
			"sync.hidden", res.Hidden,
			"sync.errors", len(res.Errors),
		)
	}
	telemetry.EndSpan(span, &err)
}

func (e *Engine) abort(ctx context.Context, p *pass, err error) error {
	p.log.Error("catalog sync aborted", zap.String("phase", string(p.run.Phase)), zap.Error(err))
	e.finish(ctx, p, catalog.SyncRunFailed, err.Error())
	return err
}

func (e *Engine) finish(ctx context.Context, p *pass, status catalog.SyncRunStatus, errMsg string) {
	p.result.record(p.run)
	p.run.Finish(status, errMsg)

	// the pass context may already be cancelled
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := e.Runs.Save(saveCtx, p.run); err != nil {
		p.log.Error("failed to record sync run", zap.Error(err))
	}
	if err := e.Publisher.Publish(saveCtx, catalog.NewSyncRunFinishedEvent(p.run)); err != nil {
		p.log.Warn("failed to publish sync run event", zap.Error(err))
	}
	p.log.Info("pass finished",
		zap.String("kind", p.run.Kind),
		zap.String("status", string(status)),
		zap.Int("synced", p.result.Synced),
		zap.Int("updated", p.result.Updated),
		zap.Int("unchanged", p.result.Unchanged),
		zap.Int("hidden", p.result.Hidden),
		zap.Int("skipped", len(p.result.Skipped)),
		zap.Int("errors", len(p.result.Errors)),
		zap.Duration("duration", p.run.Duration()),
	)
}

func (e *Engine) acquire(ctx context.Context, key string) (func(context.Context) error, error) {
	if e.Locker == nil {
		return func(context.Context) error { return nil }, nil
	}
	unlock, ok, err := e.Locker.TryLock(ctx, key, e.cfg.LockTTL)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrSyncInProgress
	}
	return unlock, nil
}

func (e *Engine) release(unlock func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := unlock(ctx); err != nil {
		e.Logger.Warn("failed to release sync lock", zap.Error(err))
	}
}

func (e *Engine) publish(ctx context.Context, product *catalog.Product) {
	if err := shared.PublishPending(ctx, e.Publisher, product); err != nil {
		e.Logger.Warn("failed to publish product events", zap.String("product_id", product.ID.String()), zap.Error(err))
	}
}
