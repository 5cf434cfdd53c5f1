package models

import (
	"time"

	"github.com/dropship/backend/internal/domain/catalog"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ProductModel is the persistence model for the Product domain entity.
type ProductModel struct {
	AggregateModel
	Slug            string                `gorm:"type:varchar(120);not null;uniqueIndex"`
	ExternalRef     string                `gorm:"type:varchar(64);not null;uniqueIndex"`
	Name            string                `gorm:"type:varchar(500);not null"`
	Description     string                `gorm:"type:text"`
	CategoryID      string                `gorm:"type:varchar(64);index"`
	Images          []string              `gorm:"serializer:json;type:text"`
	Status          catalog.ProductStatus `gorm:"type:varchar(20);not null;default:'pending';index"`
	RetailPrice     decimal.Decimal       `gorm:"type:decimal(12,2);not null;default:0"`
	CompareAtPrice  decimal.Decimal       `gorm:"type:decimal(12,2);not null;default:0"`
	UnitCost        decimal.Decimal       `gorm:"type:decimal(12,2);not null;default:0"`
	ShippingCost    decimal.Decimal       `gorm:"type:decimal(12,2);not null;default:0"`
	PaymentFee      decimal.Decimal       `gorm:"type:decimal(12,2);not null;default:0"`
	TotalCost       decimal.Decimal       `gorm:"type:decimal(12,4);not null;default:0"`
	MarginDollars   decimal.Decimal       `gorm:"type:decimal(12,4);not null;default:0"`
	MarginPercent   decimal.Decimal       `gorm:"type:decimal(7,2);not null;default:0"`
	WeightGrams     *int
	Warehouse       string  `gorm:"type:varchar(8)"`
	StockCount      int     `gorm:"not null;default:0"`
	SupplierPayload *string `gorm:"type:jsonb"`
	LastSyncedAt    *time.Time
}

// TableName returns the table name for GORM
func (ProductModel) TableName() string {
	return "products"
}

// ToDomain converts the persistence model to a domain Product entity.
func (m *ProductModel) ToDomain() *catalog.Product {
	return &catalog.Product{
		BaseAggregateRoot: m.ToDomainAggregateRoot(),
		Slug:              m.Slug,
		ExternalRef:       m.ExternalRef,
		Name:              m.Name,
		Description:       m.Description,
		CategoryID:        m.CategoryID,
		Images:            m.Images,
		Status:            m.Status,
		RetailPrice:       m.RetailPrice,
		CompareAtPrice:    m.CompareAtPrice,
		UnitCost:          m.UnitCost,
		ShippingCost:      m.ShippingCost,
		PaymentFee:        m.PaymentFee,
		TotalCost:         m.TotalCost,
		MarginDollars:     m.MarginDollars,
		MarginPercent:     m.MarginPercent,
		WeightGrams:       m.WeightGrams,
		Warehouse:         m.Warehouse,
		StockCount:        m.StockCount,
		SupplierPayload:   jsonBytes(m.SupplierPayload),
		LastSyncedAt:      m.LastSyncedAt,
	}
}

// FromDomain populates the persistence model from a domain Product entity.
func (m *ProductModel) FromDomain(p *catalog.Product) {
	m.FromDomainAggregateRoot(p.BaseAggregateRoot)
	m.Slug = p.Slug
	m.ExternalRef = p.ExternalRef
	m.Name = p.Name
	m.Description = p.Description
	m.CategoryID = p.CategoryID
	m.Images = p.Images
	m.Status = p.Status
	m.RetailPrice = p.RetailPrice
	m.CompareAtPrice = p.CompareAtPrice
	m.UnitCost = p.UnitCost
	m.ShippingCost = p.ShippingCost
	m.PaymentFee = p.PaymentFee
	m.TotalCost = p.TotalCost
	m.MarginDollars = p.MarginDollars
	m.MarginPercent = p.MarginPercent
	m.WeightGrams = p.WeightGrams
	m.Warehouse = p.Warehouse
	m.StockCount = p.StockCount
	m.SupplierPayload = jsonText(p.SupplierPayload)
	m.LastSyncedAt = p.LastSyncedAt
}

// ProductModelFromDomain creates a new persistence model from a domain Product entity.
func ProductModelFromDomain(p *catalog.Product) *ProductModel {
	m := &ProductModel{}
	m.FromDomain(p)
	return m
}

// VariantModel is the persistence model for product variants.
// (product_id, color, size) is unique; "" stands for "no dimension".
type VariantModel struct {
	BaseModel
	ProductID         uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_variant_product_color_size,priority:1"`
	ExternalVariantID string          `gorm:"type:varchar(64);index"`
	Color             string          `gorm:"type:varchar(100);not null;default:'';uniqueIndex:idx_variant_product_color_size,priority:2"`
	Size              string          `gorm:"type:varchar(100);not null;default:'';uniqueIndex:idx_variant_product_color_size,priority:3"`
	StockCount        int             `gorm:"not null;default:0"`
	Image             string          `gorm:"type:text"`
	UnitCost          decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	RetailPrice       decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	IsActive          bool            `gorm:"not null"`
	Position          int             `gorm:"not null;default:0"`
}

// TableName returns the table name for GORM
func (VariantModel) TableName() string {
	return "product_variants"
}

// ToDomain converts the persistence model to a domain Variant.
func (m *VariantModel) ToDomain() catalog.Variant {
	return catalog.Variant{
		BaseEntity:        m.BaseModel.ToDomain(),
		ProductID:         m.ProductID,
		ExternalVariantID: m.ExternalVariantID,
		Color:             m.Color,
		Size:              m.Size,
		StockCount:        m.StockCount,
		Image:             m.Image,
		UnitCost:          m.UnitCost,
		RetailPrice:       m.RetailPrice,
		IsActive:          m.IsActive,
		Position:          m.Position,
	}
}

// VariantModelFromDomain creates a new persistence model from a domain Variant.
func VariantModelFromDomain(v *catalog.Variant) *VariantModel {
	m := &VariantModel{
		ProductID:         v.ProductID,
		ExternalVariantID: v.ExternalVariantID,
		Color:             v.Color,
		Size:              v.Size,
		StockCount:        v.StockCount,
		Image:             v.Image,
		UnitCost:          v.UnitCost,
		RetailPrice:       v.RetailPrice,
		IsActive:          v.IsActive,
		Position:          v.Position,
	}
	m.FromDomainBaseEntity(v.BaseEntity)
	return m
}

// SyncRunModel is the persistence model for catalog sync runs.
type SyncRunModel struct {
	ID         uuid.UUID             `gorm:"type:uuid;primary_key"`
	Kind       string                `gorm:"type:varchar(20);not null;index"`
	Phase      catalog.SyncPhase     `gorm:"type:varchar(20);not null"`
	Status     catalog.SyncRunStatus `gorm:"type:varchar(20);not null;index"`
	Scope      string                `gorm:"type:varchar(200)"`
	Synced     int                   `gorm:"not null;default:0"`
	Updated    int                   `gorm:"not null;default:0"`
	Unchanged  int                   `gorm:"not null;default:0"`
	Hidden     int                   `gorm:"not null;default:0"`
	Skipped    int                   `gorm:"not null;default:0"`
	Failed     int                   `gorm:"not null;default:0"`
	Error      string                `gorm:"type:text"`
	StartedAt  time.Time             `gorm:"not null;index"`
	FinishedAt *time.Time
}

// TableName returns the table name for GORM
func (SyncRunModel) TableName() string {
	return "sync_runs"
}

// ToDomain converts the persistence model to a domain SyncRun.
func (m *SyncRunModel) ToDomain() catalog.SyncRun {
	return catalog.SyncRun{
		ID:         m.ID,
		Kind:       m.Kind,
		Phase:      m.Phase,
		Status:     m.Status,
		Scope:      m.Scope,
		Synced:     m.Synced,
		Updated:    m.Updated,
		Unchanged:  m.Unchanged,
		Hidden:     m.Hidden,
		Skipped:    m.Skipped,
		Failed:     m.Failed,
		Error:      m.Error,
		StartedAt:  m.StartedAt,
		FinishedAt: m.FinishedAt,
	}
}

// SyncRunModelFromDomain creates a new persistence model from a domain SyncRun.
func SyncRunModelFromDomain(r *catalog.SyncRun) *SyncRunModel {
	return &SyncRunModel{
		ID:         r.ID,
		Kind:       r.Kind,
		Phase:      r.Phase,
		Status:     r.Status,
		Scope:      r.Scope,
		Synced:     r.Synced,
		Updated:    r.Updated,
		Unchanged:  r.Unchanged,
		Hidden:     r.Hidden,
		Skipped:    r.Skipped,
		Failed:     r.Failed,
		Error:      r.Error,
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
	}
}
