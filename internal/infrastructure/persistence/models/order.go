package models

import (
	"time"

	"github.com/dropship/backend/internal/domain/order"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderModel is the persistence model for the Order aggregate.
type OrderModel struct {
	AggregateModel
	Number            string                  `gorm:"type:varchar(50);not null;uniqueIndex"`
	Email             string                  `gorm:"type:varchar(200)"`
	PaymentStatus     order.PaymentStatus     `gorm:"type:varchar(20);not null;default:'pending'"`
	FulfillmentStatus order.FulfillmentStatus `gorm:"type:varchar(20);not null;default:'unfulfilled';index"`

	ShipName       string `gorm:"type:varchar(200)"`
	ShipPhone      string `gorm:"type:varchar(50)"`
	ShipLine1      string `gorm:"type:varchar(300)"`
	ShipLine2      string `gorm:"type:varchar(300)"`
	ShipCity       string `gorm:"type:varchar(100)"`
	ShipProvince   string `gorm:"type:varchar(100)"`
	ShipPostalCode string `gorm:"type:varchar(20)"`
	ShipCountry    string `gorm:"type:varchar(2)"`

	Subtotal       decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	ShippingCharge decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	Total          decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`

	SupplierOrderRef string `gorm:"type:varchar(64);index"`
	TrackingNumber   string `gorm:"type:varchar(100)"`
	Carrier          string `gorm:"type:varchar(100)"`
	SupplierStatus   string `gorm:"type:varchar(100)"`
	CancelReason     string `gorm:"type:varchar(500)"`

	PaidAt       *time.Time
	SubmittedAt  *time.Time
	ShippedAt    *time.Time
	DeliveredAt  *time.Time
	CancelledAt  *time.Time
	LastPolledAt *time.Time

	Items []OrderItemModel `gorm:"foreignKey:OrderID"`
}

// TableName returns the table name for GORM
func (OrderModel) TableName() string {
	return "orders"
}

// ToDomain converts the persistence model to a domain Order.
func (m *OrderModel) ToDomain() *order.Order {
	o := &order.Order{
		BaseAggregateRoot: m.ToDomainAggregateRoot(),
		Number:            m.Number,
		Email:             m.Email,
		PaymentStatus:     m.PaymentStatus,
		FulfillmentStatus: m.FulfillmentStatus,
		ShippingAddress: order.Address{
			Name:        m.ShipName,
			Phone:       m.ShipPhone,
			Line1:       m.ShipLine1,
			Line2:       m.ShipLine2,
			City:        m.ShipCity,
			Province:    m.ShipProvince,
			PostalCode:  m.ShipPostalCode,
			CountryCode: m.ShipCountry,
		},
		Subtotal:         m.Subtotal,
		ShippingCharge:   m.ShippingCharge,
		Total:            m.Total,
		SupplierOrderRef: m.SupplierOrderRef,
		TrackingNumber:   m.TrackingNumber,
		Carrier:          m.Carrier,
		SupplierStatus:   m.SupplierStatus,
		CancelReason:     m.CancelReason,
		PaidAt:           m.PaidAt,
		SubmittedAt:      m.SubmittedAt,
		ShippedAt:        m.ShippedAt,
		DeliveredAt:      m.DeliveredAt,
		CancelledAt:      m.CancelledAt,
		LastPolledAt:     m.LastPolledAt,
		Items:            make([]order.Item, 0, len(m.Items)),
	}
	for i := range m.Items {
		o.Items = append(o.Items, m.Items[i].ToDomain())
	}
	return o
}

// OrderModelFromDomain creates a new persistence model from a domain Order.
func OrderModelFromDomain(o *order.Order) *OrderModel {
	m := &OrderModel{
		Number:            o.Number,
		Email:             o.Email,
		PaymentStatus:     o.PaymentStatus,
		FulfillmentStatus: o.FulfillmentStatus,
		ShipName:          o.ShippingAddress.Name,
		ShipPhone:         o.ShippingAddress.Phone,
		ShipLine1:         o.ShippingAddress.Line1,
		ShipLine2:         o.ShippingAddress.Line2,
		ShipCity:          o.ShippingAddress.City,
		ShipProvince:      o.ShippingAddress.Province,
		ShipPostalCode:    o.ShippingAddress.PostalCode,
		ShipCountry:       o.ShippingAddress.CountryCode,
		Subtotal:          o.Subtotal,
		ShippingCharge:    o.ShippingCharge,
		Total:             o.Total,
		SupplierOrderRef:  o.SupplierOrderRef,
		TrackingNumber:    o.TrackingNumber,
		Carrier:           o.Carrier,
		SupplierStatus:    o.SupplierStatus,
		CancelReason:      o.CancelReason,
		PaidAt:            o.PaidAt,
		SubmittedAt:       o.SubmittedAt,
		ShippedAt:         o.ShippedAt,
		DeliveredAt:       o.DeliveredAt,
		CancelledAt:       o.CancelledAt,
		LastPolledAt:      o.LastPolledAt,
	}
	m.FromDomainAggregateRoot(o.BaseAggregateRoot)
	for i := range o.Items {
		m.Items = append(m.Items, *OrderItemModelFromDomain(&o.Items[i]))
	}
	return m
}

// OrderItemModel is the persistence model for order lines.
type OrderItemModel struct {
	ID                uuid.UUID       `gorm:"type:uuid;primary_key"`
	OrderID           uuid.UUID       `gorm:"type:uuid;not null;index"`
	ProductID         uuid.UUID       `gorm:"type:uuid;not null;index"`
	VariantID         *uuid.UUID      `gorm:"type:uuid"`
	ExternalVariantID string          `gorm:"type:varchar(64)"`
	ProductName       string          `gorm:"type:varchar(500);not null"`
	Color             string          `gorm:"type:varchar(100)"`
	Size              string          `gorm:"type:varchar(100)"`
	Quantity          int             `gorm:"not null"`
	UnitPrice         decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Amount            decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	CreatedAt         time.Time       `gorm:"not null"`
}

// TableName returns the table name for GORM
func (OrderItemModel) TableName() string {
	return "order_items"
}

// ToDomain converts the persistence model to a domain Item.
func (m *OrderItemModel) ToDomain() order.Item {
	return order.Item{
		ID:                m.ID,
		OrderID:           m.OrderID,
		ProductID:         m.ProductID,
		VariantID:         m.VariantID,
		ExternalVariantID: m.ExternalVariantID,
		ProductName:       m.ProductName,
		Color:             m.Color,
		Size:              m.Size,
		Quantity:          m.Quantity,
		UnitPrice:         m.UnitPrice,
		Amount:            m.Amount,
		CreatedAt:         m.CreatedAt,
	}
}

// OrderItemModelFromDomain creates a new persistence model from a domain Item.
func OrderItemModelFromDomain(it *order.Item) *OrderItemModel {
	return &OrderItemModel{
		ID:                it.ID,
		OrderID:           it.OrderID,
		ProductID:         it.ProductID,
		VariantID:         it.VariantID,
		ExternalVariantID: it.ExternalVariantID,
		ProductName:       it.ProductName,
		Color:             it.Color,
		Size:              it.Size,
		Quantity:          it.Quantity,
		UnitPrice:         it.UnitPrice,
		Amount:            it.Amount,
		CreatedAt:         it.CreatedAt,
	}
}

// TrackingEventModel is the persistence model for tracking audit rows.
type TrackingEventModel struct {
	ID             uuid.UUID               `gorm:"type:uuid;primary_key"`
	OrderID        uuid.UUID               `gorm:"type:uuid;not null;index"`
	FromStatus     order.FulfillmentStatus `gorm:"type:varchar(20);not null"`
	ToStatus       order.FulfillmentStatus `gorm:"type:varchar(20);not null"`
	SupplierStatus string                  `gorm:"type:varchar(100)"`
	TrackingNumber string                  `gorm:"type:varchar(100)"`
	Carrier        string                  `gorm:"type:varchar(100)"`
	RecordedAt     time.Time               `gorm:"not null;index"`
}

// TableName returns the table name for GORM
func (TrackingEventModel) TableName() string {
	return "order_tracking_events"
}

// ToDomain converts the persistence model to a domain TrackingEvent.
func (m *TrackingEventModel) ToDomain() order.TrackingEvent {
	return order.TrackingEvent{
		ID:             m.ID,
		OrderID:        m.OrderID,
		FromStatus:     m.FromStatus,
		ToStatus:       m.ToStatus,
		SupplierStatus: m.SupplierStatus,
		TrackingNumber: m.TrackingNumber,
		Carrier:        m.Carrier,
		RecordedAt:     m.RecordedAt,
	}
}

// TrackingEventModelFromDomain creates a new persistence model from a domain TrackingEvent.
func TrackingEventModelFromDomain(e *order.TrackingEvent) *TrackingEventModel {
	return &TrackingEventModel{
		ID:             e.ID,
		OrderID:        e.OrderID,
		FromStatus:     e.FromStatus,
		ToStatus:       e.ToStatus,
		SupplierStatus: e.SupplierStatus,
		TrackingNumber: e.TrackingNumber,
		Carrier:        e.Carrier,
		RecordedAt:     e.RecordedAt,
	}
}
