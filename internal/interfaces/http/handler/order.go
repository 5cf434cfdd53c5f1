package handler

import (
	"context"
	"time"

	"github.com/dropship/backend/internal/application/fulfillment"
	"github.com/dropship/backend/internal/domain/order"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Fulfiller drives orders through supplier fulfillment
type Fulfiller interface {
	Get(ctx context.Context, id uuid.UUID) (*fulfillment.OrderResponse, error)
	History(ctx context.Context, id uuid.UUID) ([]order.TrackingEvent, error)
	Submit(ctx context.Context, id uuid.UUID) (*fulfillment.OrderResponse, error)
	Poll(ctx context.Context, id uuid.UUID) (*fulfillment.PollResponse, error)
	PollOpen(ctx context.Context) (*fulfillment.PollSummary, error)
	Cancel(ctx context.Context, id uuid.UUID, reason string) (*fulfillment.OrderResponse, error)
	Refund(ctx context.Context, id uuid.UUID, reason string) (*fulfillment.OrderResponse, error)
}

// OrderHandler serves the fulfillment triggers
type OrderHandler struct {
	BaseHandler
	fulfiller Fulfiller
}

// NewOrderHandler creates a new OrderHandler
func NewOrderHandler(fulfiller Fulfiller) *OrderHandler {
	return &OrderHandler{fulfiller: fulfiller}
}

// TrackingEventResponse is one audited poll
type TrackingEventResponse struct {
	FromStatus     string    `json:"from_status"`
	ToStatus       string    `json:"to_status"`
	SupplierStatus string    `json:"supplier_status,omitempty"`
	TrackingNumber string    `json:"tracking_number,omitempty"`
	Carrier        string    `json:"carrier,omitempty"`
	RecordedAt     time.Time `json:"recorded_at"`
}

// Get returns one order's fulfillment state
//
//	GET /admin/orders/:id
func (h *OrderHandler) Get(c *gin.Context) {
	id, ok := h.ParamUUID(c, "id")
	if !ok {
		return
	}
	h.respond(c)(h.fulfiller.Get(c.Request.Context(), id))
}

// History lists the order's audited fulfillment transitions
//
//	GET /admin/orders/:id/history
func (h *OrderHandler) History(c *gin.Context) {
	id, ok := h.ParamUUID(c, "id")
	if !ok {
		return
	}
	events, err := h.fulfiller.History(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	out := make([]TrackingEventResponse, 0, len(events))
	for _, e := range events {
		out = append(out, TrackingEventResponse{
			FromStatus:     string(e.FromStatus),
			ToStatus:       string(e.ToStatus),
			SupplierStatus: e.SupplierStatus,
			TrackingNumber: e.TrackingNumber,
			Carrier:        e.Carrier,
			RecordedAt:     e.RecordedAt,
		})
	}
	h.Success(c, out)
}

// Fulfill submits a paid order to the supplier
//
//	POST /admin/orders/:id/fulfill
func (h *OrderHandler) Fulfill(c *gin.Context) {
	id, ok := h.ParamUUID(c, "id")
	if !ok {
		return
	}
	h.respond(c)(h.fulfiller.Submit(c.Request.Context(), id))
}

// Track polls the supplier for one order's tracking state
//
//	POST /admin/orders/:id/tracking
func (h *OrderHandler) Track(c *gin.Context) {
	id, ok := h.ParamUUID(c, "id")
	if !ok {
		return
	}
	resp, err := h.fulfiller.Poll(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// PollOpen polls every open order
//
//	POST /admin/orders/poll
func (h *OrderHandler) PollOpen(c *gin.Context) {
	summary, err := h.fulfiller.PollOpen(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, summary)
}

// Cancel cancels an order locally
//
//	POST /admin/orders/:id/cancel
func (h *OrderHandler) Cancel(c *gin.Context) {
	id, ok := h.ParamUUID(c, "id")
	if !ok {
		return
	}
	var req fulfillment.ReasonRequest
	if !h.BindJSON(c, &req, false) {
		return
	}
	h.respond(c)(h.fulfiller.Cancel(c.Request.Context(), id, req.Reason))
}

// Refund marks an order refunded
//
//	POST /admin/orders/:id/refund
func (h *OrderHandler) Refund(c *gin.Context) {
	id, ok := h.ParamUUID(c, "id")
	if !ok {
		return
	}
	var req fulfillment.ReasonRequest
	if !h.BindJSON(c, &req, false) {
		return
	}
	h.respond(c)(h.fulfiller.Refund(c.Request.Context(), id, req.Reason))
}

func (h *OrderHandler) respond(c *gin.Context) func(*fulfillment.OrderResponse, error) {
	return func(resp *fulfillment.OrderResponse, err error) {
		if err != nil {
			h.HandleError(c, err)
			return
		}
		h.Success(c, resp)
	}
}
