// Package suppliertest provides an in-memory supplier.Client for tests.
package suppliertest

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/dropship/backend/internal/domain/supplier"
)

// Fake is a programmable in-memory supplier platform. The zero value is not
// usable; call New.
type Fake struct {
	mu sync.Mutex

	products map[string]*supplier.Product
	order    []string
	reviews  map[string][]supplier.Review
	tracking map[string]*supplier.Tracking
	freight  []supplier.FreightOption

	// Error injection. AuthErr fails Authenticate; the maps fail per pid or
	// per supplier order id.
	AuthErr     error
	ListErr     error
	DetailErr   map[string]error
	StockErr    map[string]error
	FreightErr  error
	OrderErr    error
	TrackingErr map[string]error

	Orders []supplier.OrderRequest
	calls  map[string]int
	nextID int
}

// New creates an empty fake platform
func New() *Fake {
	return &Fake{
		products:    make(map[string]*supplier.Product),
		reviews:     make(map[string][]supplier.Review),
		tracking:    make(map[string]*supplier.Tracking),
		DetailErr:   make(map[string]error),
		StockErr:    make(map[string]error),
		TrackingErr: make(map[string]error),
		calls:       make(map[string]int),
	}
}

// PutProduct adds or replaces a listed product
func (f *Fake) PutProduct(p supplier.Product) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.products[p.PID]; !ok {
		f.order = append(f.order, p.PID)
	}
	cp := p
	f.products[p.PID] = &cp
}

// RemoveProduct delists a product
func (f *Fake) RemoveProduct(pid string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.products, pid)
	for i, id := range f.order {
		if id == pid {
			f.order = append(f.order[:i], f.order[i+1:]...)
			break
		}
	}
}

// SetReviews replaces the reviews of a product
func (f *Fake) SetReviews(pid string, reviews []supplier.Review) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reviews[pid] = reviews
}

// SetTracking sets what a tracking poll for an order returns
func (f *Fake) SetTracking(t supplier.Tracking) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := t
	f.tracking[t.SupplierOrderID] = &cp
}

// SetFreightOptions sets what freight quotes return
func (f *Fake) SetFreightOptions(opts []supplier.FreightOption) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.freight = opts
}

// Calls returns how many times a method was called
func (f *Fake) Calls(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method]
}

func (f *Fake) record(method string) {
	f.calls[method]++
}

// Authenticate implements supplier.Client
func (f *Fake) Authenticate(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("Authenticate")
	return f.AuthErr
}

// ListProducts implements supplier.Client
func (f *Fake) ListProducts(_ context.Context, q supplier.ListQuery) (*supplier.ListPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("ListProducts")
	if f.ListErr != nil {
		return nil, f.ListErr
	}
	q.Normalize()

	var matched []string
	for _, pid := range f.order {
		p := f.products[pid]
		if q.CategoryID != "" && p.CategoryID != q.CategoryID {
			continue
		}
		if q.Warehouse != "" && supplier.StockFor(p.Stock, "", q.Warehouse) == 0 {
			continue
		}
		matched = append(matched, pid)
	}

	page := &supplier.ListPage{PageNum: q.PageNum, PageSize: q.PageSize, Total: len(matched)}
	start := (q.PageNum - 1) * q.PageSize
	for i := start; i < len(matched) && i < start+q.PageSize; i++ {
		p := f.products[matched[i]]
		page.Entries = append(page.Entries, supplier.ListEntry{
			PID:         p.PID,
			Name:        p.Name,
			CategoryID:  p.CategoryID,
			Image:       p.PrimaryImage(),
			UnitCost:    p.UnitCost,
			WeightGrams: p.WeightGrams,
		})
	}
	return page, nil
}

// GetProduct implements supplier.Client
func (f *Fake) GetProduct(_ context.Context, pid string) (*supplier.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("GetProduct")
	if err := f.DetailErr[pid]; err != nil {
		return nil, err
	}
	p, ok := f.products[pid]
	if !ok {
		return nil, fmt.Errorf("%w: %s", supplier.ErrProductNotFound, pid)
	}
	cp := *p
	cp.Stock = nil
	return &cp, nil
}

// GetStock implements supplier.Client
func (f *Fake) GetStock(_ context.Context, pid string) ([]supplier.StockEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("GetStock")
	if err := f.StockErr[pid]; err != nil {
		return nil, err
	}
	p, ok := f.products[pid]
	if !ok {
		return nil, fmt.Errorf("%w: %s", supplier.ErrProductNotFound, pid)
	}
	return append([]supplier.StockEntry(nil), p.Stock...), nil
}

// FreightQuote implements supplier.Client
func (f *Fake) FreightQuote(context.Context, supplier.FreightQuoteRequest) ([]supplier.FreightOption, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("FreightQuote")
	if f.FreightErr != nil {
		return nil, f.FreightErr
	}
	return append([]supplier.FreightOption(nil), f.freight...), nil
}

// CreateOrder implements supplier.Client
func (f *Fake) CreateOrder(_ context.Context, req supplier.OrderRequest) (*supplier.OrderReceipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("CreateOrder")
	if f.OrderErr != nil {
		return nil, f.OrderErr
	}
	f.Orders = append(f.Orders, req)
	f.nextID++
	return &supplier.OrderReceipt{SupplierOrderID: fmt.Sprintf("SO-%04d", f.nextID), Status: "CREATED"}, nil
}

// GetTracking implements supplier.Client
func (f *Fake) GetTracking(_ context.Context, supplierOrderID string) (*supplier.Tracking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("GetTracking")
	if err := f.TrackingErr[supplierOrderID]; err != nil {
		return nil, err
	}
	t, ok := f.tracking[supplierOrderID]
	if !ok {
		return &supplier.Tracking{SupplierOrderID: supplierOrderID}, nil
	}
	cp := *t
	return &cp, nil
}

// ListReviews implements supplier.Client
func (f *Fake) ListReviews(_ context.Context, pid string, pageNum, pageSize int) (*supplier.ReviewPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("ListReviews")
	all := append([]supplier.Review(nil), f.reviews[pid]...)
	sort.SliceStable(all, func(i, j int) bool { return all[i].ExternalID < all[j].ExternalID })

	page := &supplier.ReviewPage{PageNum: pageNum, PageSize: pageSize, Total: len(all)}
	start := (pageNum - 1) * pageSize
	for i := start; i >= 0 && i < len(all) && i < start+pageSize; i++ {
		page.Reviews = append(page.Reviews, all[i])
	}
	return page, nil
}

var _ supplier.Client = (*Fake)(nil)
