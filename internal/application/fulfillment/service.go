// Package fulfillment drives paid orders through supplier submission and
// tracking until delivery.
package fulfillment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dropship/backend/internal/domain/order"
	"github.com/dropship/backend/internal/domain/shared"
	"github.com/dropship/backend/internal/domain/supplier"
	"github.com/dropship/backend/internal/infrastructure/lock"
	"github.com/dropship/backend/internal/infrastructure/logger"
	"github.com/dropship/backend/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrSubmissionFailed wraps supplier errors returned while creating the
// supplier order. The local order is left unfulfilled.
var ErrSubmissionFailed = errors.New("fulfillment: supplier order submission failed")

// ErrTrackingFailed wraps supplier errors returned by a tracking poll
var ErrTrackingFailed = errors.New("fulfillment: tracking poll failed")

// ErrSubmissionInProgress is returned when another caller holds the submit
// lease of the same order
var ErrSubmissionInProgress = shared.NewDomainError("SUBMISSION_IN_PROGRESS", "Order submission is already in progress")

// submitLeaseTTL outlives the supplier client's retry budget
const submitLeaseTTL = 2 * time.Minute

// Config holds fulfillment policy
type Config struct {
	// DeliveredIndicators are matched case-insensitively as substrings of
	// the supplier status
	DeliveredIndicators []string
	// PollBatchSize bounds how many open orders one PollOpen call visits
	PollBatchSize int
	// Carrier is passed to the supplier when the order names none
	Carrier string
}

// Service handles order fulfillment
type Service struct {
	orders    order.OrderRepository
	events    order.TrackingEventRepository
	client    supplier.Client
	publisher shared.EventPublisher
	locker    shared.Locker
	logger    *zap.Logger
	cfg       Config
}

// NewService creates a new fulfillment Service
func NewService(orders order.OrderRepository, events order.TrackingEventRepository, client supplier.Client, cfg Config, log *zap.Logger) *Service {
	if cfg.PollBatchSize <= 0 {
		cfg.PollBatchSize = 100
	}
	if len(cfg.DeliveredIndicators) == 0 {
		cfg.DeliveredIndicators = order.DefaultDeliveredIndicators
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		orders:    orders,
		events:    events,
		client:    client,
		publisher: shared.NopPublisher{},
		locker:    lock.NewMemoryLocker(),
		logger:    log,
		cfg:       cfg,
	}
}

// SetEventPublisher sets the event publisher for fulfillment events
func (s *Service) SetEventPublisher(publisher shared.EventPublisher) {
	if publisher != nil {
		s.publisher = publisher
	}
}

// SetLocker replaces the in-process submit lease with a shared one so that
// replicas cannot submit the same order twice
func (s *Service) SetLocker(locker shared.Locker) {
	if locker != nil {
		s.locker = locker
	}
}

// Get returns an order's fulfillment view
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*OrderResponse, error) {
	o, err := s.orders.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := ToOrderResponse(o)
	return &resp, nil
}

// History returns the tracking audit rows of an order, oldest first
func (s *Service) History(ctx context.Context, id uuid.UUID) ([]order.TrackingEvent, error) {
	if _, err := s.orders.FindByID(ctx, id); err != nil {
		return nil, err
	}
	return s.events.FindByOrder(ctx, id)
}

// Submit places the supplier order for a paid, unfulfilled order and moves
// it to processing. On any supplier failure the order is not modified and
// a retry is safe.
func (s *Service) Submit(ctx context.Context, id uuid.UUID) (_ *OrderResponse, err error) {
	ctx, span := telemetry.StartSpan(ctx, "fulfillment", "submit", telemetry.SpanAttrOrderID, id)
	defer func() { telemetry.EndSpan(span, &err) }()
	log := s.log(ctx).With(zap.String("order_id", id.String()))

	// The order is loaded and checked under the lease, so a second caller
	// either waits out the lease or sees the order already submitted.
	unlock, ok, err := s.locker.TryLock(ctx, "order-submit:"+id.String(), submitLeaseTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire submit lease: %w", err)
	}
	if !ok {
		log.Info("order submission already in progress")
		return nil, ErrSubmissionInProgress
	}
	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := unlock(releaseCtx); err != nil {
			log.Warn("failed to release submit lease", zap.Error(err))
		}
	}()

	o, err := s.orders.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	telemetry.SetAttributes(span, telemetry.SpanAttrOrderNumber, o.Number)
	if err := o.CheckSubmittable(); err != nil {
		return nil, err
	}

	receipt, err := s.client.CreateOrder(ctx, s.orderRequest(o))
	if err != nil {
		log.Warn("supplier rejected order submission", zap.String("number", o.Number), zap.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrSubmissionFailed, err)
	}

	from := o.FulfillmentStatus
	if err := o.MarkSubmitted(receipt.SupplierOrderID); err != nil {
		return nil, err
	}
	if receipt.Status != "" {
		o.SupplierStatus = receipt.Status
	}
	if err := s.orders.SaveWithLock(ctx, o); err != nil {
		// The supplier now holds an order the local record does not point
		// to; operators must reconcile it by hand.
		log.Error("failed to record submitted order",
			zap.String("number", o.Number),
			zap.String("supplier_order_ref", receipt.SupplierOrderID),
			zap.Error(err),
		)
		return nil, err
	}

	s.audit(ctx, o, order.TrackingOutcome{From: from, To: o.FulfillmentStatus, Recorded: true})
	s.publish(ctx, o)
	log.Info("order submitted to supplier",
		zap.String("number", o.Number),
		zap.String("supplier_order_ref", o.SupplierOrderRef),
	)
	telemetry.SetAttributes(span,
		telemetry.SpanAttrSupplierRef, o.SupplierOrderRef,
		telemetry.SpanAttrFulfillment, string(o.FulfillmentStatus),
	)

	resp := ToOrderResponse(o)
	return &resp, nil
}

// Poll fetches supplier tracking for one order and applies it. Polling a
// delivered, cancelled or refunded order is a no-op.
func (s *Service) Poll(ctx context.Context, id uuid.UUID) (_ *PollResponse, err error) {
	ctx, span := telemetry.StartSpan(ctx, "fulfillment", "poll", telemetry.SpanAttrOrderID, id)
	defer func() { telemetry.EndSpan(span, &err) }()

	o, err := s.orders.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	out, err := s.poll(ctx, o)
	if err != nil {
		return nil, err
	}
	telemetry.SetAttributes(span, telemetry.SpanAttrFulfillment, string(o.FulfillmentStatus))
	return &PollResponse{
		Order:    ToOrderResponse(o),
		From:     string(out.From),
		To:       string(out.To),
		Advanced: out.Advanced(),
		Recorded: out.Recorded,
	}, nil
}

func (s *Service) poll(ctx context.Context, o *order.Order) (order.TrackingOutcome, error) {
	if o.FulfillmentStatus.IsTerminal() {
		return order.TrackingOutcome{From: o.FulfillmentStatus, To: o.FulfillmentStatus}, nil
	}
	if !o.FulfillmentStatus.IsOpen() || o.SupplierOrderRef == "" {
		return order.TrackingOutcome{}, shared.NewDomainError("NOT_SUBMITTED", "Order has not been submitted to the supplier")
	}

	tracking, err := s.client.GetTracking(ctx, o.SupplierOrderRef)
	if err != nil {
		return order.TrackingOutcome{}, fmt.Errorf("%w: %w", ErrTrackingFailed, err)
	}

	out, err := o.ApplyTracking(order.TrackingUpdate{
		TrackingNumber: tracking.TrackingNumber,
		Carrier:        tracking.Carrier,
		SupplierStatus: tracking.Status,
	}, s.cfg.DeliveredIndicators)
	if err != nil {
		return out, err
	}

	// LastPolledAt always moves so the batch poll rotates through orders
	if err := s.orders.SaveWithLock(ctx, o); err != nil {
		return out, err
	}
	if out.Changed() {
		s.audit(ctx, o, out)
	}
	s.publish(ctx, o)

	if out.Advanced() {
		s.log(ctx).Info("order fulfillment advanced",
			zap.String("number", o.Number),
			zap.String("from", string(out.From)),
			zap.String("to", string(out.To)),
			zap.String("tracking_number", o.TrackingNumber),
		)
	}
	return out, nil
}

// PollOpen polls processing and shipped orders, least recently polled
// first. Per-order failures are collected; credential failures stop the
// batch.
func (s *Service) PollOpen(ctx context.Context) (summary *PollSummary, err error) {
	ctx, span := telemetry.StartSpan(ctx, "fulfillment", "poll_open")
	defer func() {
		if summary != nil {
			telemetry.SetAttributes(span,
				"poll.polled", summary.Polled,
				"poll.advanced", summary.Advanced,
				"poll.errors", len(summary.Errors),
			)
		}
		telemetry.EndSpan(span, &err)
	}()

	open, err := s.orders.FindByFulfillmentStatus(ctx,
		[]order.FulfillmentStatus{order.FulfillmentProcessing, order.FulfillmentShipped},
		s.cfg.PollBatchSize,
	)
	if err != nil {
		return nil, err
	}

	summary = &PollSummary{}
	for i := range open {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		o := &open[i]
		out, err := s.poll(ctx, o)
		if err != nil {
			if supplier.IsFatal(err) {
				return summary, err
			}
			summary.Errors = append(summary.Errors, PollFailure{OrderID: o.ID, Number: o.Number, Error: err.Error()})
			s.log(ctx).Warn("tracking poll failed", zap.String("number", o.Number), zap.Error(err))
			continue
		}
		summary.Polled++
		if out.Advanced() {
			summary.Advanced++
		}
		if out.To == order.FulfillmentDelivered && out.Advanced() {
			summary.Delivered++
		}
	}

	s.log(ctx).Info("open orders polled",
		zap.Int("polled", summary.Polled),
		zap.Int("advanced", summary.Advanced),
		zap.Int("delivered", summary.Delivered),
		zap.Int("errors", len(summary.Errors)),
	)
	return summary, nil
}

// Cancel closes an order before delivery
func (s *Service) Cancel(ctx context.Context, id uuid.UUID, reason string) (*OrderResponse, error) {
	return s.closeOut(ctx, id, func(o *order.Order) error { return o.Cancel(reason) })
}

// Refund closes a paid order before delivery and marks the payment refunded.
// Returning money to the customer happens outside this service.
func (s *Service) Refund(ctx context.Context, id uuid.UUID, reason string) (*OrderResponse, error) {
	return s.closeOut(ctx, id, func(o *order.Order) error { return o.Refund(reason) })
}

func (s *Service) closeOut(ctx context.Context, id uuid.UUID, apply func(*order.Order) error) (*OrderResponse, error) {
	o, err := s.orders.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	from := o.FulfillmentStatus
	if err := apply(o); err != nil {
		return nil, err
	}
	if err := s.orders.SaveWithLock(ctx, o); err != nil {
		return nil, err
	}
	s.audit(ctx, o, order.TrackingOutcome{From: from, To: o.FulfillmentStatus})
	s.publish(ctx, o)
	s.log(ctx).Info("order closed",
		zap.String("number", o.Number),
		zap.String("status", string(o.FulfillmentStatus)),
		zap.String("reason", o.CancelReason),
	)
	resp := ToOrderResponse(o)
	return &resp, nil
}

func (s *Service) orderRequest(o *order.Order) supplier.OrderRequest {
	a := o.ShippingAddress
	req := supplier.OrderRequest{
		OrderNumber: o.Number,
		Carrier:     s.cfg.Carrier,
		Address: supplier.Address{
			Name:        a.Name,
			Phone:       a.Phone,
			Line1:       a.Line1,
			Line2:       a.Line2,
			City:        a.City,
			Province:    a.Province,
			PostalCode:  a.PostalCode,
			CountryCode: a.CountryCode,
		},
	}
	for _, it := range o.Items {
		req.Lines = append(req.Lines, supplier.OrderLine{VariantID: it.ExternalVariantID, Quantity: it.Quantity})
	}
	return req
}

// audit writes a tracking event row. The row is best effort: the order
// itself is already saved.
func (s *Service) audit(ctx context.Context, o *order.Order, out order.TrackingOutcome) {
	ev := order.NewTrackingEvent(o, out)
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := s.events.Create(saveCtx, &ev); err != nil {
		s.log(ctx).Warn("failed to write tracking event", zap.String("number", o.Number), zap.Error(err))
	}
}

func (s *Service) publish(ctx context.Context, o *order.Order) {
	if err := shared.PublishPending(ctx, s.publisher, o); err != nil {
		s.log(ctx).Warn("failed to publish order events", zap.String("number", o.Number), zap.Error(err))
	}
}

func (s *Service) log(ctx context.Context) *zap.Logger {
	return logger.FromContextOr(ctx, s.logger).Named("fulfillment")
}
