package order

import (
	"github.com/dropship/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// Aggregate type constant
const AggregateTypeOrder = "Order"

// Event type constants
const (
	EventTypeOrderSubmitted = "OrderSubmitted"
	EventTypeOrderShipped   = "OrderShipped"
	EventTypeOrderDelivered = "OrderDelivered"
	EventTypeOrderCancelled = "OrderCancelled"
	EventTypeOrderRefunded  = "OrderRefunded"
)

// FulfillmentChangedEvent is published on every fulfillment transition.
// The event type names the transition.
type FulfillmentChangedEvent struct {
	shared.BaseDomainEvent
	OrderID          uuid.UUID         `json:"order_id"`
	OrderNumber      string            `json:"order_number"`
	OldStatus        FulfillmentStatus `json:"old_status"`
	NewStatus        FulfillmentStatus `json:"new_status"`
	SupplierOrderRef string            `json:"supplier_order_ref,omitempty"`
	TrackingNumber   string            `json:"tracking_number,omitempty"`
	Carrier          string            `json:"carrier,omitempty"`
}

// NewFulfillmentChangedEvent creates a new FulfillmentChangedEvent
func NewFulfillmentChangedEvent(eventType string, o *Order, from FulfillmentStatus) *FulfillmentChangedEvent {
	return &FulfillmentChangedEvent{
		BaseDomainEvent:  shared.NewBaseDomainEvent(eventType, AggregateTypeOrder, o.ID),
		OrderID:          o.ID,
		OrderNumber:      o.Number,
		OldStatus:        from,
		NewStatus:        o.FulfillmentStatus,
		SupplierOrderRef: o.SupplierOrderRef,
		TrackingNumber:   o.TrackingNumber,
		Carrier:          o.Carrier,
	}
}
