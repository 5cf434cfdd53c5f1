package supplier

import (
	"time"

	"github.com/shopspring/decimal"
)

// FreightItem is a line item in a freight quote request
type FreightItem struct {
	VariantID string
	Quantity  int
}

// FreightQuoteRequest asks the supplier for shipping options
type FreightQuoteRequest struct {
	OriginCountry      string
	DestinationCountry string
	Items              []FreightItem
}

// FreightOption is one carrier option returned by a freight quote
type FreightOption struct {
	Carrier       string
	Price         decimal.Decimal
	EstimatedDays string
}

// Address is the delivery address sent with a supplier order
type Address struct {
	Name        string
	Phone       string
	Line1       string
	Line2       string
	City        string
	Province    string
	PostalCode  string
	CountryCode string
}

// OrderLine is one line of a supplier order
type OrderLine struct {
	VariantID string
	Quantity  int
}

// OrderRequest submits a local order to the supplier
type OrderRequest struct {
	// OrderNumber is the local order number; the supplier uses it for idempotency
	OrderNumber string
	Carrier     string
	Address     Address
	Lines       []OrderLine
}

// OrderReceipt is what the supplier returns for a created order
type OrderReceipt struct {
	SupplierOrderID string
	Status          string
}

// Tracking is the supplier's view of an order's shipment
type Tracking struct {
	SupplierOrderID string
	TrackingNumber  string
	Carrier         string
	Status          string
	UpdatedAt       *time.Time
}

// Review is a customer review published on the supplier platform
type Review struct {
	ExternalID string
	PID        string
	Rating     int
	Body       string
	Author     string
	Country    string
	Images     []string
	PostedAt   *time.Time
}

// ReviewPage is one page of supplier reviews
type ReviewPage struct {
	Reviews  []Review
	PageNum  int
	PageSize int
	Total    int
}

// HasMore reports whether further pages exist after this one
func (p *ReviewPage) HasMore() bool {
	if len(p.Reviews) == 0 {
		return false
	}
	return p.PageNum*p.PageSize < p.Total
}
