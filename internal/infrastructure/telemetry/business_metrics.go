package telemetry

import (
	"context"
	"errors"

	"github.com/dropship/backend/internal/domain/catalog"
	"github.com/dropship/backend/internal/domain/order"
	"github.com/dropship/backend/internal/domain/shared"
	"go.opentelemetry.io/otel/metric"
)

// ErrMeterNil is returned when a metrics type is built without a meter
var ErrMeterNil = errors.New("telemetry: meter cannot be nil")

// BusinessMetrics turns domain events into counters. It is subscribed to
// the event bus as a regular handler.
type BusinessMetrics struct {
	productsCreated *Counter
	statusChanges   *Counter
	priceChanges    *Counter
	fulfillment     *Counter
	syncRuns        *Counter
	syncRunProducts *Counter
	syncRunDuration *Histogram
}

// NewBusinessMetrics creates the business instruments on meter
func NewBusinessMetrics(meter metric.Meter) (*BusinessMetrics, error) {
	if meter == nil {
		return nil, ErrMeterNil
	}

	bm := &BusinessMetrics{}
	var err error
	if bm.productsCreated, err = NewCounter(meter,
		"dropship_products_created_total", "Products imported from the supplier", "{products}"); err != nil {
		return nil, err
	}
	if bm.statusChanges, err = NewCounter(meter,
		"dropship_product_status_changes_total", "Product lifecycle transitions by target status", "{transitions}"); err != nil {
		return nil, err
	}
	if bm.priceChanges, err = NewCounter(meter,
		"dropship_product_price_changes_total", "Retail price changes applied by sync or reprice", "{changes}"); err != nil {
		return nil, err
	}
	if bm.fulfillment, err = NewCounter(meter,
		"dropship_fulfillment_transitions_total", "Order fulfillment transitions by event type", "{transitions}"); err != nil {
		return nil, err
	}
	if bm.syncRuns, err = NewCounter(meter,
		"dropship_sync_runs_total", "Finished sync passes by kind and status", "{runs}"); err != nil {
		return nil, err
	}
	if bm.syncRunProducts, err = NewCounter(meter,
		"dropship_sync_run_products_total", "Products touched by sync passes by outcome", "{products}"); err != nil {
		return nil, err
	}
	if bm.syncRunDuration, err = NewHistogram(meter, HistogramOpts{
		Name:        "dropship_sync_run_duration_seconds",
		Description: "Duration of sync passes",
		Unit:        "s",
		Boundaries:  JobDurationBuckets,
	}); err != nil {
		return nil, err
	}
	return bm, nil
}

// EventTypes implements shared.EventHandler
func (bm *BusinessMetrics) EventTypes() []string {
	return []string{
		catalog.EventTypeProductCreated,
		catalog.EventTypeProductStatusChanged,
		catalog.EventTypeProductPriceChanged,
		catalog.EventTypeSyncRunFinished,
		order.EventTypeOrderSubmitted,
		order.EventTypeOrderShipped,
		order.EventTypeOrderDelivered,
		order.EventTypeOrderCancelled,
		order.EventTypeOrderRefunded,
	}
}

// Handle implements shared.EventHandler
func (bm *BusinessMetrics) Handle(ctx context.Context, event shared.DomainEvent) error {
	switch e := event.(type) {
	case *catalog.ProductCreatedEvent:
		bm.productsCreated.Inc(ctx)
	case *catalog.ProductStatusChangedEvent:
		bm.statusChanges.Inc(ctx, AttrStatus.String(string(e.NewStatus)))
	case *catalog.ProductPriceChangedEvent:
		bm.priceChanges.Inc(ctx)
	case *catalog.SyncRunFinishedEvent:
		kind := AttrKind.String(e.Kind)
		bm.syncRuns.Inc(ctx, kind, AttrStatus.String(string(e.Status)))
		bm.syncRunProducts.Add(ctx, int64(e.Synced), kind, AttrOperation.String("created"))
		bm.syncRunProducts.Add(ctx, int64(e.Updated), kind, AttrOperation.String("updated"))
		bm.syncRunProducts.Add(ctx, int64(e.Hidden), kind, AttrOperation.String("hidden"))
		bm.syncRunProducts.Add(ctx, int64(e.Failed), kind, AttrOperation.String("failed"))
		bm.syncRunDuration.RecordDuration(ctx, e.Duration, kind)
	case *order.FulfillmentChangedEvent:
		bm.fulfillment.Inc(ctx, AttrEventType.String(e.EventType()))
	}
	return nil
}

var _ shared.EventHandler = (*BusinessMetrics)(nil)
