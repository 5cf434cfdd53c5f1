package fulfillment

import (
	"time"

	"github.com/dropship/backend/internal/domain/order"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderResponse is the admin view of an order's fulfillment state
type OrderResponse struct {
	ID                uuid.UUID       `json:"id"`
	Number            string          `json:"number"`
	PaymentStatus     string          `json:"payment_status"`
	FulfillmentStatus string          `json:"fulfillment_status"`
	SupplierOrderRef  string          `json:"supplier_order_ref,omitempty"`
	TrackingNumber    string          `json:"tracking_number,omitempty"`
	Carrier           string          `json:"carrier,omitempty"`
	SupplierStatus    string          `json:"supplier_status,omitempty"`
	CancelReason      string          `json:"cancel_reason,omitempty"`
	Total             decimal.Decimal `json:"total"`
	ItemCount         int             `json:"item_count"`
	SubmittedAt       *time.Time      `json:"submitted_at,omitempty"`
	ShippedAt         *time.Time      `json:"shipped_at,omitempty"`
	DeliveredAt       *time.Time      `json:"delivered_at,omitempty"`
	CancelledAt       *time.Time      `json:"cancelled_at,omitempty"`
	LastPolledAt      *time.Time      `json:"last_polled_at,omitempty"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// ToOrderResponse converts a domain order to its response
func ToOrderResponse(o *order.Order) OrderResponse {
	return OrderResponse{
		ID:                o.ID,
		Number:            o.Number,
		PaymentStatus:     string(o.PaymentStatus),
		FulfillmentStatus: string(o.FulfillmentStatus),
		SupplierOrderRef:  o.SupplierOrderRef,
		TrackingNumber:    o.TrackingNumber,
		Carrier:           o.Carrier,
		SupplierStatus:    o.SupplierStatus,
		CancelReason:      o.CancelReason,
		Total:             o.Total,
		ItemCount:         o.ItemCount(),
		SubmittedAt:       o.SubmittedAt,
		ShippedAt:         o.ShippedAt,
		DeliveredAt:       o.DeliveredAt,
		CancelledAt:       o.CancelledAt,
		LastPolledAt:      o.LastPolledAt,
		UpdatedAt:         o.UpdatedAt,
	}
}

// PollResponse reports a single tracking poll
type PollResponse struct {
	Order    OrderResponse `json:"order"`
	From     string        `json:"from"`
	To       string        `json:"to"`
	Advanced bool          `json:"advanced"`
	Recorded bool          `json:"recorded"`
}

// PollSummary reports a batch poll of open orders
type PollSummary struct {
	Polled    int           `json:"polled"`
	Advanced  int           `json:"advanced"`
	Delivered int           `json:"delivered"`
	Errors    []PollFailure `json:"errors"`
}

// PollFailure is one order whose poll failed
type PollFailure struct {
	OrderID uuid.UUID `json:"order_id"`
	Number  string    `json:"number"`
	Error   string    `json:"error"`
}

// ReasonRequest carries the operator's reason for a cancel or refund
type ReasonRequest struct {
	Reason string `json:"reason" binding:"required,min=3,max=500"`
}
