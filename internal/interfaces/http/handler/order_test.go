package handler

import (
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/dropship/backend/internal/application/fulfillment"
	"github.com/dropship/backend/internal/domain/order"
	"github.com/dropship/backend/internal/domain/shared"
	"github.com/dropship/backend/internal/domain/supplier"
	"github.com/dropship/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newOrderRouter() (*gin.Engine, *mockFulfiller) {
	f := new(mockFulfiller)
	h := NewOrderHandler(f)
	router := gin.New()
	router.GET("/orders/:id", h.Get)
	router.GET("/orders/:id/history", h.History)
	router.POST("/orders/poll", h.PollOpen)
	router.POST("/orders/:id/fulfill", h.Fulfill)
	router.POST("/orders/:id/tracking", h.Track)
	router.POST("/orders/:id/cancel", h.Cancel)
	router.POST("/orders/:id/refund", h.Refund)
	return router, f
}

func TestOrderHandler_Fulfill(t *testing.T) {
	id := uuid.New()

	t.Run("submits", func(t *testing.T) {
		router, f := newOrderRouter()
		f.On("Submit", mock.Anything, id).Return(&fulfillment.OrderResponse{
			ID: id, FulfillmentStatus: string(order.FulfillmentProcessing), SupplierOrderRef: "CJ-1",
		}, nil)

		w := perform(t, router, http.MethodPost, "/orders/"+id.String()+"/fulfill", nil)

		require.Equal(t, http.StatusOK, w.Code)
		var resp fulfillment.OrderResponse
		decodeData(t, w, &resp)
		assert.Equal(t, "processing", resp.FulfillmentStatus)
		assert.Equal(t, "CJ-1", resp.SupplierOrderRef)
	})

	t.Run("unpaid order", func(t *testing.T) {
		router, f := newOrderRouter()
		f.On("Submit", mock.Anything, id).Return(nil, shared.NewDomainError("NOT_PAID", "Order is not paid"))

		w := perform(t, router, http.MethodPost, "/orders/"+id.String()+"/fulfill", nil)

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		assert.Equal(t, dto.ErrCodeNotPaid, decode(t, w).Error.Code)
	})

	t.Run("supplier rejected", func(t *testing.T) {
		router, f := newOrderRouter()
		f.On("Submit", mock.Anything, id).
			Return(nil, fmt.Errorf("%w: %w", fulfillment.ErrSubmissionFailed, supplier.ErrRejected))

		w := perform(t, router, http.MethodPost, "/orders/"+id.String()+"/fulfill", nil)

		assert.Equal(t, http.StatusBadGateway, w.Code)
		assert.Equal(t, dto.ErrCodeSupplier, decode(t, w).Error.Code)
	})

	t.Run("bad id", func(t *testing.T) {
		router, f := newOrderRouter()
		w := perform(t, router, http.MethodPost, "/orders/42/fulfill", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		f.AssertNotCalled(t, "Submit", mock.Anything, mock.Anything)
	})
}

func TestOrderHandler_Track(t *testing.T) {
	router, f := newOrderRouter()
	id := uuid.New()
	f.On("Poll", mock.Anything, id).Return(&fulfillment.PollResponse{
		From: string(order.FulfillmentProcessing), To: string(order.FulfillmentShipped), Advanced: true, Recorded: true,
	}, nil)

	w := perform(t, router, http.MethodPost, "/orders/"+id.String()+"/tracking", nil)

	require.Equal(t, http.StatusOK, w.Code)
	var resp fulfillment.PollResponse
	decodeData(t, w, &resp)
	assert.True(t, resp.Advanced)
	assert.Equal(t, "shipped", resp.To)
}

func TestOrderHandler_PollOpen(t *testing.T) {
	router, f := newOrderRouter()
	f.On("PollOpen", mock.Anything).Return(&fulfillment.PollSummary{Polled: 3, Advanced: 1}, nil)

	w := perform(t, router, http.MethodPost, "/orders/poll", nil)

	require.Equal(t, http.StatusOK, w.Code)
	var resp fulfillment.PollSummary
	decodeData(t, w, &resp)
	assert.Equal(t, 3, resp.Polled)
}

func TestOrderHandler_CancelAndRefund(t *testing.T) {
	id := uuid.New()

	t.Run("reason required", func(t *testing.T) {
		router, f := newOrderRouter()
		w := perform(t, router, http.MethodPost, "/orders/"+id.String()+"/cancel", map[string]string{})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, dto.ErrCodeValidation, decode(t, w).Error.Code)
		f.AssertNotCalled(t, "Cancel", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("cancel", func(t *testing.T) {
		router, f := newOrderRouter()
		f.On("Cancel", mock.Anything, id, "customer changed mind").
			Return(&fulfillment.OrderResponse{ID: id, FulfillmentStatus: "cancelled"}, nil)

		w := perform(t, router, http.MethodPost, "/orders/"+id.String()+"/cancel", map[string]string{"reason": "customer changed mind"})

		assert.Equal(t, http.StatusOK, w.Code)
		f.AssertExpectations(t)
	})

	t.Run("refund of a delivered order is invalid", func(t *testing.T) {
		router, f := newOrderRouter()
		f.On("Refund", mock.Anything, id, "damaged").
			Return(nil, shared.NewDomainError("INVALID_STATUS_TRANSITION", "Cannot refund"))

		w := perform(t, router, http.MethodPost, "/orders/"+id.String()+"/refund", map[string]string{"reason": "damaged"})

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		assert.Equal(t, dto.ErrCodeInvalidState, decode(t, w).Error.Code)
	})
}

func TestOrderHandler_History(t *testing.T) {
	router, f := newOrderRouter()
	id := uuid.New()
	at := time.Date(2026, 4, 2, 8, 0, 0, 0, time.UTC)
	f.On("History", mock.Anything, id).Return([]order.TrackingEvent{{
		OrderID: id, FromStatus: order.FulfillmentProcessing, ToStatus: order.FulfillmentShipped,
		TrackingNumber: "1Z999", Carrier: "UPS", RecordedAt: at,
	}}, nil)
	f.On("Get", mock.Anything, mock.Anything).Return(nil, shared.ErrNotFound)

	w := perform(t, router, http.MethodGet, "/orders/"+id.String()+"/history", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var events []TrackingEventResponse
	decodeData(t, w, &events)
	require.Len(t, events, 1)
	assert.Equal(t, "shipped", events[0].ToStatus)
	assert.Equal(t, "1Z999", events[0].TrackingNumber)

	w = perform(t, router, http.MethodGet, "/orders/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
