package catalogsync

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/dropship/backend/internal/domain/catalog"
	"github.com/dropship/backend/internal/domain/pricing"
	"github.com/dropship/backend/internal/domain/shared"
	"github.com/dropship/backend/internal/domain/shipping"
	"github.com/dropship/backend/internal/domain/supplier"
	"github.com/dropship/backend/internal/domain/supplier/suppliertest"
	"github.com/dropship/backend/internal/infrastructure/lock"
	"github.com/dropship/backend/internal/infrastructure/persistence"
	"github.com/dropship/backend/internal/infrastructure/persistence/persistencetest"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type staticSettings struct {
	pricing  pricing.Config
	shipping shipping.Config
}

func (s *staticSettings) Pricing(context.Context) pricing.Config   { return s.pricing }
func (s *staticSettings) Shipping(context.Context) shipping.Config { return s.shipping }

type recordingPublisher struct {
	mu     sync.Mutex
	events []shared.DomainEvent
}

func (p *recordingPublisher) Publish(_ context.Context, events ...shared.DomainEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, events...)
	return nil
}

func (p *recordingPublisher) count(eventType string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, e := range p.events {
		if e.EventType() == eventType {
			n++
		}
	}
	return n
}

type harness struct {
	engine    *Engine
	fake      *suppliertest.Fake
	products  *persistence.GormProductRepository
	variants  *persistence.GormVariantRepository
	runs      *persistence.GormSyncRunRepository
	settings  *staticSettings
	locker    *lock.MemoryLocker
	publisher *recordingPublisher
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db := persistencetest.OpenDB(t)
	h := &harness{
		fake:      suppliertest.New(),
		products:  persistence.NewGormProductRepository(db),
		variants:  persistence.NewGormVariantRepository(db),
		runs:      persistence.NewGormSyncRunRepository(db),
		settings:  &staticSettings{pricing: pricing.DefaultConfig(), shipping: shipping.DefaultConfig()},
		locker:    lock.NewMemoryLocker(),
		publisher: &recordingPublisher{},
	}
	h.engine = NewEngine(Deps{
		Client:    h.fake,
		Products:  h.products,
		Variants:  h.variants,
		Runs:      h.runs,
		Settings:  h.settings,
		Locker:    h.locker,
		Publisher: h.publisher,
		Logger:    zap.NewNop(),
	}, Config{AutoActivate: true, Warehouse: "US", PageSize: 2, LockTTL: time.Minute})
	return h
}

func grams(n int) *int { return &n }

func supplierProduct(pid, name string, cost string, stock int) supplier.Product {
	return supplier.Product{
		PID:         pid,
		Name:        name,
		Description: "A " + name,
		CategoryID:  "tops",
		Images:      []string{"https://img.example/" + pid + ".jpg"},
		UnitCost:    decimal.RequireFromString(cost),
		WeightGrams: grams(400),
		Stock: []supplier.StockEntry{
			{VariantID: pid + "-RS", CountryCode: "US", Quantity: stock},
			{VariantID: pid + "-BM", CountryCode: "US", Quantity: 1},
			{VariantID: pid + "-RS", CountryCode: "CN", Quantity: 100},
		},
		Variants: []supplier.Variant{
			{VID: pid + "-RS", Color: "Red", Size: "S"},
			{VID: pid + "-BM", Color: "Blue", Size: "M"},
		},
	}
}

func (h *harness) product(t *testing.T, pid string) *catalog.Product {
	t.Helper()
	p, err := h.products.FindByExternalRef(context.Background(), pid)
	require.NoError(t, err)
	return p
}

func TestEngine_Run_InsertsNewProducts(t *testing.T) {
	h := newHarness(t)
	h.fake.PutProduct(supplierProduct("P1", "Linen Shirt", "10.00", 5))
	h.fake.PutProduct(supplierProduct("P2", "Wool Scarf", "12.00", 0))
	h.fake.PutProduct(supplierProduct("P3", "Denim Jacket", "20.00", 3))

	res, err := h.engine.Run(context.Background(), Options{})
	require.NoError(t, err)

	assert.Equal(t, 3, res.Synced)
	assert.Equal(t, 2, res.Pages, "page size 2 over 3 products")
	assert.True(t, res.Reconciled)
	assert.Empty(t, res.Errors)

	p1 := h.product(t, "P1")
	assert.Equal(t, "linen-shirt", p1.Slug)
	assert.Equal(t, catalog.ProductStatusActive, p1.Status)
	assert.Equal(t, 6, p1.StockCount, "US warehouse only")
	assert.True(t, p1.RetailPrice.Equal(decimal.RequireFromString("39.30")), "got %s", p1.RetailPrice)
	assert.True(t, p1.CompareAtPrice.Equal(decimal.RequireFromString("51.09")), "got %s", p1.CompareAtPrice)
	assert.NotNil(t, p1.LastSyncedAt)

	variants, err := h.variants.FindActiveByProduct(context.Background(), p1.ID)
	require.NoError(t, err)
	require.Len(t, variants, 2)
	assert.Equal(t, "Red", variants[0].Color)
	assert.Equal(t, 5, variants[0].StockCount)

	p2 := h.product(t, "P2")
	assert.Equal(t, catalog.ProductStatusActive, p2.Status, "blue/M still has stock")

	assert.Equal(t, 3, h.publisher.count(catalog.EventTypeProductCreated))
	assert.Equal(t, 1, h.publisher.count(catalog.EventTypeSyncRunFinished))

	runs, total, err := h.runs.FindRecent(context.Background(), shared.DefaultFilter())
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, catalog.SyncRunSuccess, runs[0].Status)
	assert.Equal(t, catalog.SyncPhaseDone, runs[0].Phase)
	assert.Equal(t, 3, runs[0].Synced)
}

func TestEngine_Run_IsIdempotent(t *testing.T) {
	h := newHarness(t)
	h.fake.PutProduct(supplierProduct("P1", "Linen Shirt", "10.00", 5))
	h.fake.PutProduct(supplierProduct("P2", "Wool Scarf", "12.00", 2))
	ctx := context.Background()

	_, err := h.engine.Run(ctx, Options{})
	require.NoError(t, err)
	before := h.product(t, "P1")
	detailCalls := h.fake.Calls("GetProduct")

	res, err := h.engine.Run(ctx, Options{})
	require.NoError(t, err)
	assert.Zero(t, res.Synced)
	assert.Zero(t, res.Updated)
	assert.Equal(t, 2, res.Unchanged)
	assert.Equal(t, detailCalls, h.fake.Calls("GetProduct"), "unchanged listings are not refetched")

	after := h.product(t, "P1")
	assert.Equal(t, before.ID, after.ID)
	assert.Equal(t, before.Slug, after.Slug)
	assert.True(t, before.RetailPrice.Equal(after.RetailPrice))
	assert.Equal(t, before.Version, after.Version)
	assert.WithinDuration(t, before.UpdatedAt, after.UpdatedAt, time.Millisecond)

	// a forced resync refetches but still changes nothing
	res, err = h.engine.Run(ctx, Options{Resync: true})
	require.NoError(t, err)
	assert.Zero(t, res.Synced)
	assert.Zero(t, res.Updated)
	assert.Equal(t, 2, res.Unchanged)
	assert.Equal(t, before.Version, h.product(t, "P1").Version)
}

func TestEngine_Run_ReconcilesAndRestores(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.fake.PutProduct(supplierProduct("P1", "Linen Shirt", "10.00", 5))
	h.fake.PutProduct(supplierProduct("P2", "Wool Scarf", "12.00", 2))

	_, err := h.engine.Run(ctx, Options{})
	require.NoError(t, err)
	original := h.product(t, "P2")

	h.fake.RemoveProduct("P2")
	res, err := h.engine.Run(ctx, Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Hidden)
	assert.Equal(t, catalog.ProductStatusHidden, h.product(t, "P2").Status)
	assert.Equal(t, catalog.ProductStatusActive, h.product(t, "P1").Status)

	h.fake.PutProduct(supplierProduct("P2", "Wool Scarf", "12.00", 2))
	res, err = h.engine.Run(ctx, Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Reappeared)

	restored := h.product(t, "P2")
	assert.Equal(t, catalog.ProductStatusActive, restored.Status)
	assert.Equal(t, original.ID, restored.ID)
	assert.Equal(t, original.Slug, restored.Slug)
	assert.WithinDuration(t, original.CreatedAt, restored.CreatedAt, time.Millisecond)
}

func TestEngine_Run_ReappearsAsPendingWithoutAutoActivate(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.fake.PutProduct(supplierProduct("P1", "Linen Shirt", "10.00", 5))
	_, err := h.engine.Run(ctx, Options{})
	require.NoError(t, err)

	h.fake.RemoveProduct("P1")
	_, err = h.engine.Run(ctx, Options{})
	require.NoError(t, err)

	h.engine.cfg.AutoActivate = false
	h.fake.PutProduct(supplierProduct("P1", "Linen Shirt", "10.00", 5))
	_, err = h.engine.Run(ctx, Options{})
	require.NoError(t, err)
	assert.Equal(t, catalog.ProductStatusPending, h.product(t, "P1").Status)
}

func TestEngine_Run_NoReconciliationForPartialPasses(t *testing.T) {
	ctx := context.Background()

	t.Run("filtered by category", func(t *testing.T) {
		h := newHarness(t)
		h.fake.PutProduct(supplierProduct("P1", "Linen Shirt", "10.00", 5))
		_, err := h.engine.Run(ctx, Options{})
		require.NoError(t, err)

		res, err := h.engine.Run(ctx, Options{CategoryID: "shoes"})
		require.NoError(t, err)
		assert.False(t, res.Reconciled)
		assert.Equal(t, catalog.ProductStatusActive, h.product(t, "P1").Status)
	})

	t.Run("page bound reached", func(t *testing.T) {
		h := newHarness(t)
		for _, pid := range []string{"P1", "P2", "P3"} {
			h.fake.PutProduct(supplierProduct(pid, "Shirt "+pid, "10.00", 5))
		}
		_, err := h.engine.Run(ctx, Options{})
		require.NoError(t, err)

		res, err := h.engine.Run(ctx, Options{MaxPages: 1})
		require.NoError(t, err)
		assert.False(t, res.Reconciled)
		assert.Equal(t, catalog.ProductStatusActive, h.product(t, "P3").Status)
	})

	t.Run("listing fails after first page", func(t *testing.T) {
		h := newHarness(t)
		for _, pid := range []string{"P1", "P2", "P3", "P4"} {
			h.fake.PutProduct(supplierProduct(pid, "Shirt "+pid, "10.00", 5))
		}
		_, err := h.engine.Run(ctx, Options{})
		require.NoError(t, err)

		h.fake.RemoveProduct("P1")
		failing := &failingPageClient{Fake: h.fake, failPage: 2}
		h.engine.Client = failing
		res, err := h.engine.Run(ctx, Options{})
		require.NoError(t, err)
		assert.False(t, res.Reconciled)
		assert.Len(t, res.Errors, 1)
		assert.Equal(t, catalog.ProductStatusActive, h.product(t, "P1").Status)
	})
}

type failingPageClient struct {
	*suppliertest.Fake
	failPage int
}

func (c *failingPageClient) ListProducts(ctx context.Context, q supplier.ListQuery) (*supplier.ListPage, error) {
	if q.PageNum == c.failPage {
		return nil, supplier.ErrUnavailable
	}
	return c.Fake.ListProducts(ctx, q)
}

type cancellingClient struct {
	*suppliertest.Fake
	cancelOn string
	cancel   context.CancelFunc
}

func (c *cancellingClient) GetProduct(ctx context.Context, pid string) (*supplier.Product, error) {
	if pid == c.cancelOn {
		c.cancel()
	}
	return c.Fake.GetProduct(ctx, pid)
}

func TestEngine_Run_CancelledPassFails(t *testing.T) {
	h := newHarness(t)
	for _, pid := range []string{"P1", "P2", "P3"} {
		h.fake.PutProduct(supplierProduct(pid, "Shirt "+pid, "10.00", 5))
	}
	_, err := h.engine.Run(context.Background(), Options{})
	require.NoError(t, err)

	h.fake.RemoveProduct("P3")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.engine.Client = &cancellingClient{Fake: h.fake, cancelOn: "P1", cancel: cancel}

	res, err := h.engine.Run(ctx, Options{})
	require.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, res)
	assert.False(t, res.Reconciled)
	assert.Equal(t, catalog.ProductStatusActive, h.product(t, "P3").Status)

	runs, _, err := h.runs.FindRecent(context.Background(), shared.DefaultFilter())
	require.NoError(t, err)
	var cancelled *catalog.SyncRun
	for i := range runs {
		if runs[i].ID == res.RunID {
			cancelled = &runs[i]
		}
	}
	require.NotNil(t, cancelled)
	assert.Equal(t, catalog.SyncRunFailed, cancelled.Status)
	assert.Contains(t, cancelled.Error, context.Canceled.Error())
}

func TestEngine_Run_SkipsAndItemErrors(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.settings.pricing.MinimumMargin = decimal.NewFromInt(20)

	h.fake.PutProduct(supplierProduct("OK", "Linen Shirt", "10.00", 5))
	cheap := supplierProduct("CHEAP", "Sticker", "0.50", 5)
	cheap.WeightGrams = grams(10)
	h.fake.PutProduct(cheap)
	weightless := supplierProduct("NOWEIGHT", "Mystery Box", "10.00", 5)
	weightless.WeightGrams = nil
	h.fake.PutProduct(weightless)
	h.fake.PutProduct(supplierProduct("BROKEN", "Broken Lamp", "10.00", 5))
	h.fake.DetailErr["BROKEN"] = supplier.ErrUnavailable

	res, err := h.engine.Run(ctx, Options{})
	require.NoError(t, err)

	assert.Equal(t, 1, res.Synced)
	require.Len(t, res.Skipped, 2)
	reasons := map[string]string{}
	for _, s := range res.Skipped {
		reasons[s.ExternalRef] = s.Reason
	}
	assert.Contains(t, reasons["CHEAP"], "not viable")
	assert.Equal(t, "missing weight", reasons["NOWEIGHT"])

	require.Len(t, res.Errors, 1)
	assert.Equal(t, "BROKEN", res.Errors[0].ExternalRef)
	assert.Equal(t, catalog.SyncPhaseDetailing, res.Errors[0].Phase)

	runs, _, err := h.runs.FindRecent(ctx, shared.DefaultFilter())
	require.NoError(t, err)
	assert.Equal(t, catalog.SyncRunPartial, runs[0].Status)
	assert.Equal(t, 2, runs[0].Skipped)
	assert.Equal(t, 1, runs[0].Failed)
}

func TestEngine_Run_FatalErrorsAbortBeforeItems(t *testing.T) {
	ctx := context.Background()

	t.Run("authentication", func(t *testing.T) {
		h := newHarness(t)
		h.fake.PutProduct(supplierProduct("P1", "Linen Shirt", "10.00", 5))
		h.fake.AuthErr = supplier.ErrNotConfigured

		_, err := h.engine.Run(ctx, Options{})
		require.ErrorIs(t, err, supplier.ErrNotConfigured)
		assert.Zero(t, h.fake.Calls("ListProducts"))

		runs, _, err := h.runs.FindRecent(ctx, shared.DefaultFilter())
		require.NoError(t, err)
		require.Len(t, runs, 1)
		assert.Equal(t, catalog.SyncRunFailed, runs[0].Status)
		assert.NotEmpty(t, runs[0].Error)
	})

	t.Run("credentials rejected mid pass", func(t *testing.T) {
		h := newHarness(t)
		h.fake.PutProduct(supplierProduct("P1", "Linen Shirt", "10.00", 5))
		h.fake.PutProduct(supplierProduct("P2", "Wool Scarf", "10.00", 5))
		h.fake.DetailErr["P1"] = supplier.ErrAuthFailed

		_, err := h.engine.Run(ctx, Options{})
		require.ErrorIs(t, err, supplier.ErrAuthFailed)
		_, err = h.products.FindByExternalRef(ctx, "P2")
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("first page fails", func(t *testing.T) {
		h := newHarness(t)
		h.fake.ListErr = supplier.ErrUnavailable
		_, err := h.engine.Run(ctx, Options{})
		assert.ErrorIs(t, err, ErrListingFailed)
		assert.ErrorIs(t, err, supplier.ErrUnavailable)
	})
}

func TestEngine_Run_SingleFlight(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	unlock, ok, err := h.locker.TryLock(ctx, LockKeyCatalog, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, err = h.engine.Run(ctx, Options{})
	assert.ErrorIs(t, err, ErrSyncInProgress)
	assert.True(t, IsLockContention(err))
	assert.Zero(t, h.fake.Calls("Authenticate"))

	require.NoError(t, unlock(ctx))
	_, err = h.engine.Run(ctx, Options{})
	assert.NoError(t, err)
}

func TestEngine_Run_SlugCollisions(t *testing.T) {
	h := newHarness(t)
	h.fake.PutProduct(supplierProduct("P1", "Linen Shirt", "10.00", 5))
	h.fake.PutProduct(supplierProduct("P2", "Linen  Shirt!", "10.00", 5))
	h.fake.PutProduct(supplierProduct("P3", "Linen Shirt", "11.00", 5))

	_, err := h.engine.Run(context.Background(), Options{})
	require.NoError(t, err)

	assert.Equal(t, "linen-shirt", h.product(t, "P1").Slug)
	assert.Equal(t, "linen-shirt-2", h.product(t, "P2").Slug)
	assert.Equal(t, "linen-shirt-3", h.product(t, "P3").Slug)
}

func TestEngine_Run_UpdatesChangedProducts(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.fake.PutProduct(supplierProduct("P1", "Linen Shirt", "10.00", 5))
	_, err := h.engine.Run(ctx, Options{})
	require.NoError(t, err)
	before := h.product(t, "P1")

	h.publisher.events = nil

	changed := supplierProduct("P1", "Linen Shirt Deluxe", "14.00", 5)
	changed.Variants = changed.Variants[:1]
	h.fake.PutProduct(changed)

	res, err := h.engine.Run(ctx, Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Updated)

	after := h.product(t, "P1")
	assert.Equal(t, before.Slug, after.Slug, "slug is immutable")
	assert.Equal(t, "Linen Shirt Deluxe", after.Name)
	assert.True(t, after.RetailPrice.GreaterThan(before.RetailPrice))
	assert.Equal(t, 1, h.publisher.count(catalog.EventTypeProductPriceChanged))

	all, err := h.variants.FindByProduct(ctx, after.ID)
	require.NoError(t, err)
	require.Len(t, all, 2, "stale variants are kept")
	active, err := h.variants.FindActiveByProduct(ctx, after.ID)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "Red", active[0].Color)
}
