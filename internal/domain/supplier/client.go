package supplier

import "context"

// Client is the port to the supplier platform. The concrete HTTP adapter
// lives in the infrastructure layer; application services depend only on
// this interface.
type Client interface {
	// Authenticate makes sure a valid access token is held. It surfaces
	// ErrNotConfigured / ErrAuthFailed before any item work begins.
	Authenticate(ctx context.Context) error

	ListProducts(ctx context.Context, query ListQuery) (*ListPage, error)
	GetProduct(ctx context.Context, pid string) (*Product, error)
	GetStock(ctx context.Context, pid string) ([]StockEntry, error)

	FreightQuote(ctx context.Context, req FreightQuoteRequest) ([]FreightOption, error)

	CreateOrder(ctx context.Context, req OrderRequest) (*OrderReceipt, error)
	GetTracking(ctx context.Context, supplierOrderID string) (*Tracking, error)

	ListReviews(ctx context.Context, pid string, pageNum, pageSize int) (*ReviewPage, error)
}
