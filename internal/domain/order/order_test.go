package order

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testAddress() Address {
	return Address{Name: "Ada Lovelace", Line1: "1 Main St", City: "Austin", Province: "TX", PostalCode: "78701", CountryCode: "us"}
}

func newPaidOrder(t *testing.T) *Order {
	t.Helper()
	o, err := NewOrder("DS-1001", "ada@example.com", testAddress())
	require.NoError(t, err)
	_, err = o.AddItem(uuid.New(), nil, "VID-1", "Linen Shirt", "Red", "S", 2, decimal.RequireFromString("39.30"))
	require.NoError(t, err)
	require.NoError(t, o.MarkPaid())
	return o
}

func newSubmittedOrder(t *testing.T) *Order {
	t.Helper()
	o := newPaidOrder(t)
	require.NoError(t, o.MarkSubmitted("CJ-555"))
	o.ClearDomainEvents()
	return o
}

func TestNewOrder(t *testing.T) {
	o, err := NewOrder("DS-1001", "ada@example.com", testAddress())
	require.NoError(t, err)
	assert.Equal(t, PaymentStatusPending, o.PaymentStatus)
	assert.Equal(t, FulfillmentUnfulfilled, o.FulfillmentStatus)
	assert.Equal(t, "US", o.ShippingAddress.CountryCode)

	_, err = NewOrder("", "", testAddress())
	assert.Error(t, err)

	bad := testAddress()
	bad.CountryCode = "USA"
	_, err = NewOrder("DS-1002", "", bad)
	assert.Error(t, err)
}

func TestOrder_AddItem(t *testing.T) {
	o, err := NewOrder("DS-1001", "", testAddress())
	require.NoError(t, err)

	_, err = o.AddItem(uuid.New(), nil, "VID-1", "Shirt", "", "", 3, decimal.RequireFromString("10.50"))
	require.NoError(t, err)
	o.SetShippingCharge(decimal.RequireFromString("4.99"))

	assert.True(t, o.Subtotal.Equal(decimal.RequireFromString("31.50")))
	assert.True(t, o.Total.Equal(decimal.RequireFromString("36.49")))
	assert.Equal(t, 3, o.ItemCount())

	_, err = o.AddItem(uuid.New(), nil, "VID-2", "Shirt", "", "", 0, decimal.Zero)
	assert.Error(t, err)

	require.NoError(t, o.MarkPaid())
	_, err = o.AddItem(uuid.New(), nil, "VID-2", "Shirt", "", "", 1, decimal.Zero)
	assert.Error(t, err, "paid orders are frozen")
}

func TestOrder_MarkSubmitted(t *testing.T) {
	t.Run("requires payment", func(t *testing.T) {
		o, err := NewOrder("DS-1001", "", testAddress())
		require.NoError(t, err)
		_, err = o.AddItem(uuid.New(), nil, "VID-1", "Shirt", "", "", 1, decimal.NewFromInt(10))
		require.NoError(t, err)

		err = o.MarkSubmitted("CJ-1")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "paid")
		assert.Equal(t, FulfillmentUnfulfilled, o.FulfillmentStatus)
	})

	t.Run("moves to processing", func(t *testing.T) {
		o := newPaidOrder(t)
		require.NoError(t, o.MarkSubmitted("CJ-555"))

		assert.Equal(t, FulfillmentProcessing, o.FulfillmentStatus)
		assert.Equal(t, "CJ-555", o.SupplierOrderRef)
		assert.NotNil(t, o.SubmittedAt)

		events := o.GetDomainEvents()
		require.Len(t, events, 1)
		assert.Equal(t, EventTypeOrderSubmitted, events[0].EventType())
	})

	t.Run("cannot submit twice", func(t *testing.T) {
		o := newSubmittedOrder(t)
		assert.Error(t, o.MarkSubmitted("CJ-556"))
		assert.Equal(t, "CJ-555", o.SupplierOrderRef)
	})

	t.Run("items must be linked to supplier variants", func(t *testing.T) {
		o, err := NewOrder("DS-1001", "", testAddress())
		require.NoError(t, err)
		_, err = o.AddItem(uuid.New(), nil, "", "Shirt", "", "", 1, decimal.NewFromInt(10))
		require.NoError(t, err)
		require.NoError(t, o.MarkPaid())
		assert.Error(t, o.CheckSubmittable())
	})
}

func TestOrder_ApplyTracking(t *testing.T) {
	t.Run("tracking number ships the order", func(t *testing.T) {
		o := newSubmittedOrder(t)
		out, err := o.ApplyTracking(TrackingUpdate{TrackingNumber: "YT123", Carrier: "YunExpress", SupplierStatus: "In transit"}, nil)
		require.NoError(t, err)

		assert.True(t, out.Advanced())
		assert.Equal(t, FulfillmentShipped, o.FulfillmentStatus)
		assert.Equal(t, "YT123", o.TrackingNumber)
		assert.Equal(t, "YunExpress", o.Carrier)
		assert.NotNil(t, o.ShippedAt)
	})

	t.Run("no tracking number stays processing", func(t *testing.T) {
		o := newSubmittedOrder(t)
		out, err := o.ApplyTracking(TrackingUpdate{SupplierStatus: "Awaiting shipment"}, nil)
		require.NoError(t, err)

		assert.False(t, out.Advanced())
		assert.True(t, out.Recorded)
		assert.Equal(t, FulfillmentProcessing, o.FulfillmentStatus)
	})

	t.Run("delivered indicator is case-insensitive substring", func(t *testing.T) {
		o := newSubmittedOrder(t)
		_, err := o.ApplyTracking(TrackingUpdate{TrackingNumber: "YT1", SupplierStatus: "Package DELIVERED to mailbox"}, nil)
		require.NoError(t, err)
		assert.Equal(t, FulfillmentDelivered, o.FulfillmentStatus)
		assert.NotNil(t, o.DeliveredAt)
	})

	t.Run("shipped never regresses", func(t *testing.T) {
		o := newSubmittedOrder(t)
		_, err := o.ApplyTracking(TrackingUpdate{TrackingNumber: "YT123", SupplierStatus: "Shipped"}, nil)
		require.NoError(t, err)

		out, err := o.ApplyTracking(TrackingUpdate{TrackingNumber: "", SupplierStatus: "Processing"}, nil)
		require.NoError(t, err)
		assert.Equal(t, FulfillmentShipped, o.FulfillmentStatus)
		assert.False(t, out.Advanced())
		assert.True(t, out.Recorded, "older status is still recorded")
		assert.Equal(t, "Processing", o.SupplierStatus)
		assert.Equal(t, "YT123", o.TrackingNumber)
	})

	t.Run("repeat poll is a no-op", func(t *testing.T) {
		o := newSubmittedOrder(t)
		u := TrackingUpdate{TrackingNumber: "YT123", Carrier: "USPS", SupplierStatus: "In transit"}
		_, err := o.ApplyTracking(u, nil)
		require.NoError(t, err)
		o.ClearDomainEvents()

		out, err := o.ApplyTracking(u, nil)
		require.NoError(t, err)
		assert.False(t, out.Changed())
		assert.Empty(t, o.GetDomainEvents())
	})

	t.Run("terminal orders are untouched", func(t *testing.T) {
		o := newSubmittedOrder(t)
		_, err := o.ApplyTracking(TrackingUpdate{TrackingNumber: "YT1", SupplierStatus: "Delivered"}, nil)
		require.NoError(t, err)

		out, err := o.ApplyTracking(TrackingUpdate{TrackingNumber: "YT2", SupplierStatus: "Returned"}, nil)
		require.NoError(t, err)
		assert.False(t, out.Changed())
		assert.Equal(t, "YT1", o.TrackingNumber)
	})

	t.Run("unsubmitted order is rejected", func(t *testing.T) {
		o := newPaidOrder(t)
		_, err := o.ApplyTracking(TrackingUpdate{TrackingNumber: "YT1"}, nil)
		assert.Error(t, err)
	})

	t.Run("custom indicators", func(t *testing.T) {
		o := newSubmittedOrder(t)
		_, err := o.ApplyTracking(TrackingUpdate{TrackingNumber: "YT1", SupplierStatus: "Signed by recipient"}, []string{"signed"})
		require.NoError(t, err)
		assert.Equal(t, FulfillmentDelivered, o.FulfillmentStatus)
	})
}

func TestOrder_CancelAndRefund(t *testing.T) {
	t.Run("cancel from processing", func(t *testing.T) {
		o := newSubmittedOrder(t)
		require.NoError(t, o.Cancel("customer request"))
		assert.Equal(t, FulfillmentCancelled, o.FulfillmentStatus)
		assert.Error(t, o.Cancel("again"))
	})

	t.Run("reason required", func(t *testing.T) {
		o := newPaidOrder(t)
		assert.Error(t, o.Cancel(" "))
	})

	t.Run("refund marks payment refunded", func(t *testing.T) {
		o := newPaidOrder(t)
		require.NoError(t, o.Refund("out of stock"))
		assert.Equal(t, FulfillmentRefunded, o.FulfillmentStatus)
		assert.Equal(t, PaymentStatusRefunded, o.PaymentStatus)
	})

	t.Run("delivered orders cannot be cancelled", func(t *testing.T) {
		o := newSubmittedOrder(t)
		_, err := o.ApplyTracking(TrackingUpdate{TrackingNumber: "YT1", SupplierStatus: "delivered"}, nil)
		require.NoError(t, err)
		assert.Error(t, o.Cancel("late"))
		assert.Error(t, o.Refund("late"))
	})
}

func TestFulfillmentStatus_CanTransitionTo(t *testing.T) {
	tests := []struct {
		from, to FulfillmentStatus
		ok       bool
	}{
		{FulfillmentUnfulfilled, FulfillmentProcessing, true},
		{FulfillmentUnfulfilled, FulfillmentShipped, false},
		{FulfillmentProcessing, FulfillmentShipped, true},
		{FulfillmentProcessing, FulfillmentDelivered, true},
		{FulfillmentShipped, FulfillmentProcessing, false},
		{FulfillmentShipped, FulfillmentRefunded, true},
		{FulfillmentDelivered, FulfillmentCancelled, false},
		{FulfillmentCancelled, FulfillmentProcessing, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.ok, tt.from.CanTransitionTo(tt.to), "%s -> %s", tt.from, tt.to)
	}
}
