package fulfillment

import (
	"context"
	"sync"
	"testing"

	"github.com/dropship/backend/internal/domain/order"
	"github.com/dropship/backend/internal/domain/shared"
	"github.com/dropship/backend/internal/domain/supplier"
	"github.com/dropship/backend/internal/domain/supplier/suppliertest"
	"github.com/dropship/backend/internal/infrastructure/lock"
	"github.com/dropship/backend/internal/infrastructure/persistence"
	"github.com/dropship/backend/internal/infrastructure/persistence/persistencetest"
	"github.com/dropship/backend/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
)

type eventRecorder struct {
	mu    sync.Mutex
	types []string
}

func (r *eventRecorder) Publish(_ context.Context, events ...shared.DomainEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range events {
		r.types = append(r.types, e.EventType())
	}
	return nil
}

type fixture struct {
	svc       *Service
	fake      *suppliertest.Fake
	orders    *persistence.GormOrderRepository
	tracking  *persistence.GormTrackingEventRepository
	published *eventRecorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := persistencetest.OpenDB(t)
	f := &fixture{
		fake:      suppliertest.New(),
		orders:    persistence.NewGormOrderRepository(db),
		tracking:  persistence.NewGormTrackingEventRepository(db),
		published: &eventRecorder{},
	}
	f.svc = NewService(f.orders, f.tracking, f.fake, Config{DeliveredIndicators: []string{"delivered", "signed"}}, zap.NewNop())
	f.svc.SetEventPublisher(f.published)
	return f
}

func (f *fixture) storeOrder(t *testing.T, number string, paid bool) *order.Order {
	t.Helper()
	o, err := order.NewOrder(number, "buyer@example.com", order.Address{
		Name:        "Ada Lovelace",
		Line1:       "1 Analytical Way",
		City:        "Austin",
		Province:    "TX",
		PostalCode:  "78701",
		CountryCode: "us",
	})
	require.NoError(t, err)
	_, err = o.AddItem(uuid.New(), nil, "VID-RS", "Linen Shirt", "Red", "S", 2, decimal.RequireFromString("39.30"))
	require.NoError(t, err)
	if paid {
		require.NoError(t, o.MarkPaid())
	}
	require.NoError(t, f.orders.Save(context.Background(), o))
	return o
}

func (f *fixture) status(t *testing.T, id uuid.UUID) order.FulfillmentStatus {
	t.Helper()
	o, err := f.orders.FindByID(context.Background(), id)
	require.NoError(t, err)
	return o.FulfillmentStatus
}

func TestService_EndToEnd(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.storeOrder(t, "DS-1001", true)

	resp, err := f.svc.Submit(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, "processing", resp.FulfillmentStatus)
	assert.Equal(t, "SO-0001", resp.SupplierOrderRef)
	require.Len(t, f.fake.Orders, 1)
	assert.Equal(t, "DS-1001", f.fake.Orders[0].OrderNumber)
	assert.Equal(t, []supplier.OrderLine{{VariantID: "VID-RS", Quantity: 2}}, f.fake.Orders[0].Lines)
	assert.Equal(t, "US", f.fake.Orders[0].Address.CountryCode)

	// nothing from the carrier yet
	poll, err := f.svc.Poll(ctx, o.ID)
	require.NoError(t, err)
	assert.False(t, poll.Advanced)
	assert.Equal(t, order.FulfillmentProcessing, f.status(t, o.ID))

	f.fake.SetTracking(supplier.Tracking{SupplierOrderID: "SO-0001", TrackingNumber: "YT123", Carrier: "YunExpress", Status: "In transit"})
	poll, err = f.svc.Poll(ctx, o.ID)
	require.NoError(t, err)
	assert.True(t, poll.Advanced)
	assert.Equal(t, "shipped", poll.To)
	assert.Equal(t, "YT123", poll.Order.TrackingNumber)

	f.fake.SetTracking(supplier.Tracking{SupplierOrderID: "SO-0001", TrackingNumber: "YT123", Carrier: "YunExpress", Status: "Package DELIVERED to mailbox"})
	poll, err = f.svc.Poll(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, "delivered", poll.To)

	stored, err := f.orders.FindByID(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, order.FulfillmentDelivered, stored.FulfillmentStatus)
	assert.NotNil(t, stored.ShippedAt)
	assert.NotNil(t, stored.DeliveredAt)

	history, err := f.tracking.FindByOrder(ctx, o.ID)
	require.NoError(t, err)
	auditRows := len(history)

	// re-polling a delivered order touches nothing
	calls := f.fake.Calls("GetTracking")
	poll, err = f.svc.Poll(ctx, o.ID)
	require.NoError(t, err)
	assert.False(t, poll.Advanced)
	assert.False(t, poll.Recorded)
	assert.Equal(t, calls, f.fake.Calls("GetTracking"))
	history, err = f.tracking.FindByOrder(ctx, o.ID)
	require.NoError(t, err)
	assert.Len(t, history, auditRows)

	assert.Equal(t, []string{
		order.EventTypeOrderSubmitted,
		order.EventTypeOrderShipped,
		order.EventTypeOrderDelivered,
	}, f.published.types)
}

func TestService_Submit_RequiresPaidUnfulfilled(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	unpaid := f.storeOrder(t, "DS-2001", false)
	_, err := f.svc.Submit(ctx, unpaid.ID)
	var derr *shared.DomainError
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, "NOT_PAID", derr.Code)
	assert.Zero(t, f.fake.Calls("CreateOrder"))

	paid := f.storeOrder(t, "DS-2002", true)
	_, err = f.svc.Submit(ctx, paid.ID)
	require.NoError(t, err)
	_, err = f.svc.Submit(ctx, paid.ID)
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, "INVALID_STATE", derr.Code)
	assert.Equal(t, 1, f.fake.Calls("CreateOrder"), "no second supplier order")

	_, err = f.svc.Submit(ctx, uuid.New())
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestService_Submit_SupplierFailureLeavesOrderUnfulfilled(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.storeOrder(t, "DS-3001", true)

	f.fake.OrderErr = &supplier.BusinessError{Code: 1603001, Message: "variant sold out"}
	_, err := f.svc.Submit(ctx, o.ID)
	require.ErrorIs(t, err, ErrSubmissionFailed)
	assert.ErrorIs(t, err, supplier.ErrRejected)

	stored, err := f.orders.FindByID(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, order.FulfillmentUnfulfilled, stored.FulfillmentStatus)
	assert.Empty(t, stored.SupplierOrderRef)
	assert.Empty(t, f.published.types)

	// retry succeeds once the supplier accepts
	f.fake.OrderErr = nil
	resp, err := f.svc.Submit(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, "processing", resp.FulfillmentStatus)
}

// stallingClient holds CreateOrder open until released
type stallingClient struct {
	*suppliertest.Fake
	entered chan struct{}
	release chan struct{}
}

func (c *stallingClient) CreateOrder(ctx context.Context, req supplier.OrderRequest) (*supplier.OrderReceipt, error) {
	c.entered <- struct{}{}
	<-c.release
	return c.Fake.CreateOrder(ctx, req)
}

func TestService_Submit_ConcurrentCallersPlaceOneSupplierOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.storeOrder(t, "DS-3101", true)

	client := &stallingClient{Fake: f.fake, entered: make(chan struct{}, 1), release: make(chan struct{})}
	locker := lock.NewMemoryLocker()
	first := NewService(f.orders, f.tracking, client, Config{}, zap.NewNop())
	first.SetLocker(locker)
	second := NewService(f.orders, f.tracking, client, Config{}, zap.NewNop())
	second.SetLocker(locker)

	done := make(chan error, 1)
	go func() {
		_, err := first.Submit(ctx, o.ID)
		done <- err
	}()
	<-client.entered

	_, err := second.Submit(ctx, o.ID)
	require.ErrorIs(t, err, ErrSubmissionInProgress)
	var derr *shared.DomainError
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, "SUBMISSION_IN_PROGRESS", derr.Code)

	close(client.release)
	require.NoError(t, <-done)

	// the lease is gone, and the order is no longer submittable
	_, err = second.Submit(ctx, o.ID)
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, "INVALID_STATE", derr.Code)
	assert.Equal(t, 1, f.fake.Calls("CreateOrder"))
	assert.Len(t, f.fake.Orders, 1)
	assert.Equal(t, order.FulfillmentProcessing, f.status(t, o.ID))
}

func TestService_Poll_NeverRegresses(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.storeOrder(t, "DS-4001", true)
	_, err := f.svc.Submit(ctx, o.ID)
	require.NoError(t, err)

	f.fake.SetTracking(supplier.Tracking{SupplierOrderID: "SO-0001", TrackingNumber: "YT9", Status: "In transit"})
	_, err = f.svc.Poll(ctx, o.ID)
	require.NoError(t, err)
	require.Equal(t, order.FulfillmentShipped, f.status(t, o.ID))

	// the supplier reports an older state
	f.fake.SetTracking(supplier.Tracking{SupplierOrderID: "SO-0001", Status: "Awaiting pickup"})
	poll, err := f.svc.Poll(ctx, o.ID)
	require.NoError(t, err)
	assert.False(t, poll.Advanced)
	assert.True(t, poll.Recorded, "status string change is audited")

	stored, err := f.orders.FindByID(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, order.FulfillmentShipped, stored.FulfillmentStatus)
	assert.Equal(t, "YT9", stored.TrackingNumber)
	assert.Equal(t, "Awaiting pickup", stored.SupplierStatus)

	// identical data again is a no-op for the audit trail
	history, err := f.tracking.FindByOrder(ctx, o.ID)
	require.NoError(t, err)
	before := len(history)
	poll, err = f.svc.Poll(ctx, o.ID)
	require.NoError(t, err)
	assert.False(t, poll.Recorded)
	history, err = f.tracking.FindByOrder(ctx, o.ID)
	require.NoError(t, err)
	assert.Len(t, history, before)
}

func TestService_Poll_Errors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	fresh := f.storeOrder(t, "DS-5001", true)
	_, err := f.svc.Poll(ctx, fresh.ID)
	var derr *shared.DomainError
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, "NOT_SUBMITTED", derr.Code)

	_, err = f.svc.Submit(ctx, fresh.ID)
	require.NoError(t, err)
	f.fake.TrackingErr["SO-0001"] = supplier.ErrUnavailable
	_, err = f.svc.Poll(ctx, fresh.ID)
	assert.ErrorIs(t, err, ErrTrackingFailed)
	assert.ErrorIs(t, err, supplier.ErrUnavailable)
	assert.Equal(t, order.FulfillmentProcessing, f.status(t, fresh.ID))
}

func TestService_PollOpen(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a := f.storeOrder(t, "DS-6001", true)
	b := f.storeOrder(t, "DS-6002", true)
	c := f.storeOrder(t, "DS-6003", true)
	f.storeOrder(t, "DS-6004", true) // never submitted
	for _, o := range []*order.Order{a, b, c} {
		_, err := f.svc.Submit(ctx, o.ID)
		require.NoError(t, err)
	}

	f.fake.SetTracking(supplier.Tracking{SupplierOrderID: "SO-0001", TrackingNumber: "T1", Status: "Delivered"})
	f.fake.SetTracking(supplier.Tracking{SupplierOrderID: "SO-0002", TrackingNumber: "T2", Status: "In transit"})
	f.fake.TrackingErr["SO-0003"] = supplier.ErrRateLimited

	summary, err := f.svc.PollOpen(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Polled)
	assert.Equal(t, 2, summary.Advanced)
	assert.Equal(t, 1, summary.Delivered)
	require.Len(t, summary.Errors, 1)
	assert.Equal(t, "DS-6003", summary.Errors[0].Number)

	assert.Equal(t, order.FulfillmentDelivered, f.status(t, a.ID))
	assert.Equal(t, order.FulfillmentShipped, f.status(t, b.ID))
	assert.Equal(t, order.FulfillmentProcessing, f.status(t, c.ID))

	// delivered orders drop out of the open set
	delete(f.fake.TrackingErr, "SO-0003")
	calls := f.fake.Calls("GetTracking")
	_, err = f.svc.PollOpen(ctx)
	require.NoError(t, err)
	assert.Equal(t, calls+2, f.fake.Calls("GetTracking"))

	f.fake.TrackingErr["SO-0002"] = supplier.ErrAuthFailed
	_, err = f.svc.PollOpen(ctx)
	assert.ErrorIs(t, err, supplier.ErrAuthFailed)
}

func TestService_CancelAndRefund(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	o := f.storeOrder(t, "DS-7001", true)
	_, err := f.svc.Cancel(ctx, o.ID, "")
	var derr *shared.DomainError
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, "INVALID_REASON", derr.Code)

	resp, err := f.svc.Cancel(ctx, o.ID, "customer changed mind")
	require.NoError(t, err)
	assert.Equal(t, "cancelled", resp.FulfillmentStatus)
	_, err = f.svc.Refund(ctx, o.ID, "late refund")
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, "INVALID_STATE", derr.Code)

	shipped := f.storeOrder(t, "DS-7002", true)
	_, err = f.svc.Submit(ctx, shipped.ID)
	require.NoError(t, err)
	f.fake.SetTracking(supplier.Tracking{SupplierOrderID: "SO-0001", TrackingNumber: "T1"})
	_, err = f.svc.Poll(ctx, shipped.ID)
	require.NoError(t, err)

	resp, err = f.svc.Refund(ctx, shipped.ID, "lost in transit")
	require.NoError(t, err)
	assert.Equal(t, "refunded", resp.FulfillmentStatus)
	assert.Equal(t, "refunded", resp.PaymentStatus)

	history, err := f.svc.History(ctx, shipped.ID)
	require.NoError(t, err)
	require.NotEmpty(t, history)
	last := history[len(history)-1]
	assert.Equal(t, order.FulfillmentShipped, last.FromStatus)
	assert.Equal(t, order.FulfillmentRefunded, last.ToStatus)
}

func TestService_Submit_RecordsSpan(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(prev)
		_ = tp.Shutdown(context.Background())
	})

	f := newFixture(t)
	ctx := context.Background()
	o := f.storeOrder(t, "DS-3201", true)

	f.fake.OrderErr = &supplier.BusinessError{Code: 1603001, Message: "variant sold out"}
	_, err := f.svc.Submit(ctx, o.ID)
	require.Error(t, err)
	f.fake.OrderErr = nil
	_, err = f.svc.Submit(ctx, o.ID)
	require.NoError(t, err)

	var spans []sdktrace.ReadOnlySpan
	for _, s := range sr.Ended() {
		if s.Name() == "fulfillment.submit" {
			spans = append(spans, s)
		}
	}
	require.Len(t, spans, 2)
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Contains(t, spans[0].Attributes(), attribute.String(telemetry.SpanAttrOrderNumber, "DS-3201"))
	assert.Equal(t, codes.Unset, spans[1].Status().Code)
	assert.Contains(t, spans[1].Attributes(), attribute.String(telemetry.SpanAttrOrderID, o.ID.String()))
	assert.Contains(t, spans[1].Attributes(), attribute.String(telemetry.SpanAttrFulfillment, "processing"))
}
