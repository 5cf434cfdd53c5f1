package persistence

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/dropship/backend/internal/domain/order"
	"github.com/dropship/backend/internal/domain/shared"
	"github.com/dropship/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormOrderRepository implements order.OrderRepository using GORM
type GormOrderRepository struct {
	db *gorm.DB
}

// NewGormOrderRepository creates a new GormOrderRepository
func NewGormOrderRepository(db *gorm.DB) *GormOrderRepository {
	return &GormOrderRepository{db: db}
}

// FindByID finds an order by ID with its items
func (r *GormOrderRepository) FindByID(ctx context.Context, id uuid.UUID) (*order.Order, error) {
	return r.findOne(ctx, "id = ?", id)
}

// FindByNumber finds an order by order number
func (r *GormOrderRepository) FindByNumber(ctx context.Context, number string) (*order.Order, error) {
	return r.findOne(ctx, "number = ?", strings.TrimSpace(number))
}

func (r *GormOrderRepository) findOne(ctx context.Context, query string, args ...any) (*order.Order, error) {
	var model models.OrderModel
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC") }).
		Where(query, args...).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByFulfillmentStatus lists orders in any of the statuses, least recently polled first
func (r *GormOrderRepository) FindByFulfillmentStatus(ctx context.Context, statuses []order.FulfillmentStatus, limit int) ([]order.Order, error) {
	if len(statuses) == 0 {
		return []order.Order{}, nil
	}
	query := r.db.WithContext(ctx).
		Preload("Items").
		Where("fulfillment_status IN ?", statuses).
		Order("last_polled_at IS NOT NULL, last_polled_at ASC, created_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var rows []models.OrderModel
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	orders := make([]order.Order, 0, len(rows))
	for i := range rows {
		orders = append(orders, *rows[i].ToDomain())
	}
	return orders, nil
}

// Save creates or updates an order and upserts its items
func (r *GormOrderRepository) Save(ctx context.Context, o *order.Order) error {
	model := models.OrderModelFromDomain(o)
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Items").Save(model).Error; err != nil {
			return err
		}
		for i := range model.Items {
			if err := tx.Save(&model.Items[i]).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// SaveWithLock saves with optimistic locking (version check). Items are a
// purchase snapshot and are not rewritten here.
func (r *GormOrderRepository) SaveWithLock(ctx context.Context, o *order.Order) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current models.OrderModel
		if err := tx.Select("id", "version").Where("id = ?", o.ID).First(&current).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return shared.ErrNotFound
			}
			return err
		}

		if current.Version != o.Version {
			return shared.ErrConcurrencyConflict
		}

		nextVersion := o.Version + 1
		updatedAt := time.Now()

		result := tx.Model(&models.OrderModel{}).
			Where("id = ? AND version = ?", o.ID, current.Version).
			Updates(map[string]any{
				"email":              o.Email,
				"payment_status":     o.PaymentStatus,
				"fulfillment_status": o.FulfillmentStatus,
				"subtotal":           o.Subtotal,
				"shipping_charge":    o.ShippingCharge,
				"total":              o.Total,
				"supplier_order_ref": o.SupplierOrderRef,
				"tracking_number":    o.TrackingNumber,
				"carrier":            o.Carrier,
				"supplier_status":    o.SupplierStatus,
				"cancel_reason":      o.CancelReason,
				"paid_at":            o.PaidAt,
				"submitted_at":       o.SubmittedAt,
				"shipped_at":         o.ShippedAt,
				"delivered_at":       o.DeliveredAt,
				"cancelled_at":       o.CancelledAt,
				"last_polled_at":     o.LastPolledAt,
				"version":            nextVersion,
				"updated_at":         updatedAt,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return shared.ErrConcurrencyConflict
		}

		o.Version = nextVersion
		o.UpdatedAt = updatedAt
		return nil
	})
}

// GormTrackingEventRepository implements order.TrackingEventRepository using GORM
type GormTrackingEventRepository struct {
	db *gorm.DB
}

// NewGormTrackingEventRepository creates a new GormTrackingEventRepository
func NewGormTrackingEventRepository(db *gorm.DB) *GormTrackingEventRepository {
	return &GormTrackingEventRepository{db: db}
}

// Create appends a tracking audit row
func (r *GormTrackingEventRepository) Create(ctx context.Context, event *order.TrackingEvent) error {
	return r.db.WithContext(ctx).Create(models.TrackingEventModelFromDomain(event)).Error
}

// FindByOrder returns the audit trail of an order, oldest first
func (r *GormTrackingEventRepository) FindByOrder(ctx context.Context, orderID uuid.UUID) ([]order.TrackingEvent, error) {
	var rows []models.TrackingEventModel
	if err := r.db.WithContext(ctx).Where("order_id = ?", orderID).Order("recorded_at ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	events := make([]order.TrackingEvent, 0, len(rows))
	for i := range rows {
		events = append(events, rows[i].ToDomain())
	}
	return events, nil
}
