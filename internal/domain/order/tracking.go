package order

import (
	"time"

	"github.com/google/uuid"
)

// TrackingEvent is an audit row written whenever a tracking poll observed
// something new, whether or not the fulfillment status moved.
type TrackingEvent struct {
	ID             uuid.UUID
	OrderID        uuid.UUID
	FromStatus     FulfillmentStatus
	ToStatus       FulfillmentStatus
	SupplierStatus string
	TrackingNumber string
	Carrier        string
	RecordedAt     time.Time
}

// NewTrackingEvent snapshots the order after a poll
func NewTrackingEvent(o *Order, out TrackingOutcome) TrackingEvent {
	return TrackingEvent{
		ID:             uuid.New(),
		OrderID:        o.ID,
		FromStatus:     out.From,
		ToStatus:       out.To,
		SupplierStatus: o.SupplierStatus,
		TrackingNumber: o.TrackingNumber,
		Carrier:        o.Carrier,
		RecordedAt:     time.Now(),
	}
}
