package catalog

import (
	"strings"
	"time"

	"github.com/dropship/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// VariantKey identifies a variant within its product. An empty Color or
// Size means the product does not vary along that dimension.
type VariantKey struct {
	Color string
	Size  string
}

// NewVariantKey normalizes whitespace around both dimensions
func NewVariantKey(color, size string) VariantKey {
	return VariantKey{Color: strings.TrimSpace(color), Size: strings.TrimSpace(size)}
}

// Variant is a purchasable color/size combination of a product
type Variant struct {
	shared.BaseEntity
	ProductID         uuid.UUID
	ExternalVariantID string
	Color             string
	Size              string
	StockCount        int
	Image             string
	UnitCost          decimal.Decimal
	RetailPrice       decimal.Decimal
	IsActive          bool
	// Position is the variant's index in the supplier payload
	Position int
}

// Key returns the (color, size) key of the variant
func (v *Variant) Key() VariantKey {
	return NewVariantKey(v.Color, v.Size)
}

// InStock reports whether the variant can be sold
func (v *Variant) InStock() bool {
	return v.IsActive && v.StockCount > 0
}

// VariantInput is the supplier-derived state of one variant
type VariantInput struct {
	ExternalVariantID string
	Color             string
	Size              string
	StockCount        int
	Image             string
	UnitCost          decimal.Decimal
	RetailPrice       decimal.Decimal
}

// VariantChanges is the outcome of merging supplier variants into the
// stored set
type VariantChanges struct {
	// Upserts holds every variant row that must be written
	Upserts     []Variant
	Created     int
	Updated     int
	Deactivated int
}

// Changed reports whether any row is written
func (c VariantChanges) Changed() bool {
	return len(c.Upserts) > 0
}

// MergeVariants upserts incoming variants onto existing rows by (color, size).
// Existing rows absent from incoming are deactivated, never deleted. When
// incoming repeats a key, the first occurrence wins.
func MergeVariants(productID uuid.UUID, existing []Variant, incoming []VariantInput) VariantChanges {
	byKey := make(map[VariantKey]*Variant, len(existing))
	for i := range existing {
		v := existing[i]
		byKey[v.Key()] = &v
	}

	var changes VariantChanges
	seen := make(map[VariantKey]struct{}, len(incoming))
	now := time.Now()

	for _, in := range incoming {
		key := NewVariantKey(in.Color, in.Size)
		if _, dup := seen[key]; dup {
			continue
		}
		position := len(seen)
		seen[key] = struct{}{}
		stock := in.StockCount
		if stock < 0 {
			stock = 0
		}

		cur, ok := byKey[key]
		if !ok {
			changes.Upserts = append(changes.Upserts, Variant{
				BaseEntity:        shared.NewBaseEntityAt(now),
				ProductID:         productID,
				ExternalVariantID: in.ExternalVariantID,
				Color:             key.Color,
				Size:              key.Size,
				StockCount:        stock,
				Image:             in.Image,
				UnitCost:          in.UnitCost,
				RetailPrice:       in.RetailPrice,
				IsActive:          true,
				Position:          position,
			})
			changes.Created++
			continue
		}

		if cur.IsActive &&
			cur.ExternalVariantID == in.ExternalVariantID &&
			cur.StockCount == stock &&
			cur.Image == in.Image &&
			cur.UnitCost.Equal(in.UnitCost) &&
			cur.RetailPrice.Equal(in.RetailPrice) &&
			cur.Position == position {
			continue
		}
		cur.ExternalVariantID = in.ExternalVariantID
		cur.StockCount = stock
		cur.Image = in.Image
		cur.UnitCost = in.UnitCost
		cur.RetailPrice = in.RetailPrice
		cur.IsActive = true
		cur.Position = position
		cur.Touch(now)
		changes.Upserts = append(changes.Upserts, *cur)
		changes.Updated++
	}

	for i := range existing {
		key := existing[i].Key()
		if _, ok := seen[key]; ok || !existing[i].IsActive {
			continue
		}
		stale := existing[i]
		stale.IsActive = false
		stale.Touch(now)
		changes.Upserts = append(changes.Upserts, stale)
		changes.Deactivated++
	}

	return changes
}
