package order

import (
	"context"

	"github.com/google/uuid"
)

// OrderRepository defines the interface for order persistence
type OrderRepository interface {
	// FindByID finds an order with its items
	FindByID(ctx context.Context, id uuid.UUID) (*Order, error)

	// FindByNumber finds an order by its order number
	FindByNumber(ctx context.Context, number string) (*Order, error)

	// FindByFulfillmentStatus lists orders in any of the statuses, oldest first
	FindByFulfillmentStatus(ctx context.Context, statuses []FulfillmentStatus, limit int) ([]Order, error)

	// Save creates or updates an order and its items
	Save(ctx context.Context, order *Order) error

	// SaveWithLock updates an order only if its stored version matches the
	// version it was loaded at
	SaveWithLock(ctx context.Context, order *Order) error
}

// TrackingEventRepository persists tracking audit rows
type TrackingEventRepository interface {
	Create(ctx context.Context, event *TrackingEvent) error
	FindByOrder(ctx context.Context, orderID uuid.UUID) ([]TrackingEvent, error)
}
