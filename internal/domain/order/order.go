package order

import (
	"fmt"
	"strings"
	"time"

	"github.com/dropship/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Item is an order line. Prices are a snapshot taken at purchase and never
// recomputed.
type Item struct {
	ID        uuid.UUID
	OrderID   uuid.UUID
	ProductID uuid.UUID
	// VariantID is nil for products without variants
	VariantID *uuid.UUID
	// ExternalVariantID is the supplier vid submitted with the order
	ExternalVariantID string
	ProductName       string
	Color             string
	Size              string
	Quantity          int
	UnitPrice         decimal.Decimal
	Amount            decimal.Decimal
	CreatedAt         time.Time
}

// Order is a customer order fulfilled by the supplier. It is the aggregate
// root for its items and owns the fulfillment state machine.
type Order struct {
	shared.BaseAggregateRoot
	Number            string
	Email             string
	PaymentStatus     PaymentStatus
	FulfillmentStatus FulfillmentStatus
	ShippingAddress   Address
	Items             []Item
	Subtotal          decimal.Decimal
	ShippingCharge    decimal.Decimal
	Total             decimal.Decimal

	SupplierOrderRef string
	TrackingNumber   string
	Carrier          string
	SupplierStatus   string
	CancelReason     string

	PaidAt       *time.Time
	SubmittedAt  *time.Time
	ShippedAt    *time.Time
	DeliveredAt  *time.Time
	CancelledAt  *time.Time
	LastPolledAt *time.Time
}

// NewOrder creates an unpaid, unfulfilled order
func NewOrder(number, email string, addr Address) (*Order, error) {
	number = strings.TrimSpace(number)
	if number == "" {
		return nil, shared.NewDomainError("INVALID_ORDER_NUMBER", "Order number cannot be empty")
	}
	addr = addr.Normalized()
	if err := addr.Validate(); err != nil {
		return nil, err
	}
	return &Order{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Number:            number,
		Email:             strings.TrimSpace(email),
		PaymentStatus:     PaymentStatusPending,
		FulfillmentStatus: FulfillmentUnfulfilled,
		ShippingAddress:   addr,
		Subtotal:          decimal.Zero,
		ShippingCharge:    decimal.Zero,
		Total:             decimal.Zero,
	}, nil
}

// AddItem appends a line with a price snapshot
func (o *Order) AddItem(productID uuid.UUID, variantID *uuid.UUID, externalVariantID, name, color, size string, quantity int, unitPrice decimal.Decimal) (*Item, error) {
	if o.PaymentStatus != PaymentStatusPending {
		return nil, shared.NewDomainError("INVALID_STATE", "Cannot modify a paid order")
	}
	if productID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_PRODUCT", "Product ID cannot be empty")
	}
	if quantity <= 0 {
		return nil, shared.NewDomainError("INVALID_QUANTITY", "Quantity must be positive")
	}
	if unitPrice.IsNegative() {
		return nil, shared.NewDomainError("INVALID_PRICE", "Unit price cannot be negative")
	}
	item := Item{
		ID:                uuid.New(),
		OrderID:           o.ID,
		ProductID:         productID,
		VariantID:         variantID,
		ExternalVariantID: externalVariantID,
		ProductName:       name,
		Color:             color,
		Size:              size,
		Quantity:          quantity,
		UnitPrice:         unitPrice,
		Amount:            unitPrice.Mul(decimal.NewFromInt(int64(quantity))),
		CreatedAt:         time.Now(),
	}
	o.Items = append(o.Items, item)
	o.recalculateTotals()
	return &o.Items[len(o.Items)-1], nil
}

// SetShippingCharge records the shipping charge quoted at checkout
func (o *Order) SetShippingCharge(charge decimal.Decimal) {
	o.ShippingCharge = charge
	o.recalculateTotals()
}

// MarkPaid records a captured payment
func (o *Order) MarkPaid() error {
	if o.PaymentStatus != PaymentStatusPending {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot mark order paid in %s payment status", o.PaymentStatus))
	}
	if len(o.Items) == 0 {
		return shared.NewDomainError("NO_ITEMS", "Cannot pay for an order without items")
	}
	now := time.Now()
	o.PaymentStatus = PaymentStatusPaid
	o.PaidAt = &now
	o.Touch(now)
	return nil
}

// CheckSubmittable returns the reason the order cannot be sent to the
// supplier, or nil.
func (o *Order) CheckSubmittable() error {
	if o.PaymentStatus != PaymentStatusPaid {
		return shared.NewDomainError("NOT_PAID", "Order must be paid before submission")
	}
	if o.FulfillmentStatus != FulfillmentUnfulfilled {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot submit order in %s status", o.FulfillmentStatus))
	}
	if len(o.Items) == 0 {
		return shared.NewDomainError("NO_ITEMS", "Cannot submit an order without items")
	}
	for _, it := range o.Items {
		if it.ExternalVariantID == "" {
			return shared.NewDomainError("UNLINKED_ITEM", fmt.Sprintf("Item %q has no supplier variant", it.ProductName))
		}
	}
	return nil
}

// MarkSubmitted moves the order to processing after the supplier accepted it
func (o *Order) MarkSubmitted(supplierRef string) error {
	if err := o.CheckSubmittable(); err != nil {
		return err
	}
	if strings.TrimSpace(supplierRef) == "" {
		return shared.NewDomainError("INVALID_SUPPLIER_REF", "Supplier order reference cannot be empty")
	}
	now := time.Now()
	from := o.FulfillmentStatus
	o.SupplierOrderRef = strings.TrimSpace(supplierRef)
	o.FulfillmentStatus = FulfillmentProcessing
	o.SubmittedAt = &now
	o.Touch(now)
	o.AddDomainEvent(NewFulfillmentChangedEvent(EventTypeOrderSubmitted, o, from))
	return nil
}

// TrackingUpdate is what a tracking poll observed at the supplier
type TrackingUpdate struct {
	TrackingNumber string
	Carrier        string
	SupplierStatus string
}

// TrackingOutcome describes what ApplyTracking did
type TrackingOutcome struct {
	From FulfillmentStatus
	To   FulfillmentStatus
	// Recorded is true when any tracking field changed
	Recorded bool
}

// Advanced reports whether fulfillment status moved forward
func (t TrackingOutcome) Advanced() bool {
	return t.From != t.To
}

// Changed reports whether anything needs persisting
func (t TrackingOutcome) Changed() bool {
	return t.Advanced() || t.Recorded
}

// ApplyTracking folds a tracking poll into the order. Status only moves
// forward; a poll that lags behind the local status still updates the
// audit fields but never regresses fulfillment status. Terminal orders are
// left untouched.
func (o *Order) ApplyTracking(u TrackingUpdate, deliveredIndicators []string) (TrackingOutcome, error) {
	out := TrackingOutcome{From: o.FulfillmentStatus, To: o.FulfillmentStatus}
	if o.FulfillmentStatus.IsTerminal() {
		return out, nil
	}
	if o.FulfillmentStatus == FulfillmentUnfulfilled || o.SupplierOrderRef == "" {
		return out, shared.NewDomainError("NOT_SUBMITTED", "Order has not been submitted to the supplier")
	}

	now := time.Now()
	o.LastPolledAt = &now

	if n := strings.TrimSpace(u.TrackingNumber); n != "" && n != o.TrackingNumber {
		o.TrackingNumber = n
		out.Recorded = true
	}
	if c := strings.TrimSpace(u.Carrier); c != "" && c != o.Carrier {
		o.Carrier = c
		out.Recorded = true
	}
	if s := strings.TrimSpace(u.SupplierStatus); s != "" && s != o.SupplierStatus {
		o.SupplierStatus = s
		out.Recorded = true
	}

	target := o.FulfillmentStatus
	switch {
	case IsDeliveredStatus(o.SupplierStatus, deliveredIndicators):
		target = FulfillmentDelivered
	case o.TrackingNumber != "":
		target = FulfillmentShipped
	}

	if target.rank() > o.FulfillmentStatus.rank() && o.FulfillmentStatus.CanTransitionTo(target) {
		if target == FulfillmentDelivered && o.ShippedAt == nil && o.TrackingNumber != "" {
			o.ShippedAt = &now
		}
		o.FulfillmentStatus = target
		switch target {
		case FulfillmentShipped:
			o.ShippedAt = &now
			o.AddDomainEvent(NewFulfillmentChangedEvent(EventTypeOrderShipped, o, out.From))
		case FulfillmentDelivered:
			o.DeliveredAt = &now
			o.AddDomainEvent(NewFulfillmentChangedEvent(EventTypeOrderDelivered, o, out.From))
		}
		out.To = target
	}

	if out.Changed() {
		o.Touch(now)
	}
	return out, nil
}

// Cancel stops fulfillment by administrative action
func (o *Order) Cancel(reason string) error {
	return o.closeOut(FulfillmentCancelled, EventTypeOrderCancelled, reason)
}

// Refund closes the order and marks the payment refunded
func (o *Order) Refund(reason string) error {
	if o.PaymentStatus != PaymentStatusPaid {
		return shared.NewDomainError("NOT_PAID", "Only paid orders can be refunded")
	}
	if err := o.closeOut(FulfillmentRefunded, EventTypeOrderRefunded, reason); err != nil {
		return err
	}
	o.PaymentStatus = PaymentStatusRefunded
	return nil
}

func (o *Order) closeOut(target FulfillmentStatus, eventType, reason string) error {
	if !o.FulfillmentStatus.CanTransitionTo(target) {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot move order from %s to %s", o.FulfillmentStatus, target))
	}
	if strings.TrimSpace(reason) == "" {
		return shared.NewDomainError("INVALID_REASON", "A reason is required")
	}
	now := time.Now()
	from := o.FulfillmentStatus
	o.FulfillmentStatus = target
	o.CancelReason = strings.TrimSpace(reason)
	o.CancelledAt = &now
	o.Touch(now)
	o.AddDomainEvent(NewFulfillmentChangedEvent(eventType, o, from))
	return nil
}

// ItemCount returns the total quantity across all lines
func (o *Order) ItemCount() int {
	n := 0
	for _, it := range o.Items {
		n += it.Quantity
	}
	return n
}

func (o *Order) recalculateTotals() {
	subtotal := decimal.Zero
	for _, it := range o.Items {
		subtotal = subtotal.Add(it.Amount)
	}
	o.Subtotal = subtotal
	o.Total = subtotal.Add(o.ShippingCharge)
	o.Touch(time.Now())
}
