package catalog

import (
	"context"

	"github.com/dropship/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// ProductRef is a lightweight projection used by reconciliation
type ProductRef struct {
	ID          uuid.UUID
	ExternalRef string
}

// ProductFilter narrows product listings
type ProductFilter struct {
	shared.Filter
	Status ProductStatus
	// Linked restricts to products with a supplier reference
	Linked bool
}

// ProductRepository defines the interface for product persistence
type ProductRepository interface {
	// FindByID finds a product by its ID
	FindByID(ctx context.Context, id uuid.UUID) (*Product, error)

	// FindByExternalRef finds a product by its supplier pid
	FindByExternalRef(ctx context.Context, externalRef string) (*Product, error)

	// FindBySlug finds a product by its slug
	FindBySlug(ctx context.Context, slug string) (*Product, error)

	// FindAll lists products matching the filter
	FindAll(ctx context.Context, filter ProductFilter) ([]Product, error)

	// FindRefsByStatus returns id/external ref pairs of every product in status
	FindRefsByStatus(ctx context.Context, status ProductStatus) ([]ProductRef, error)

	// ExistsBySlug checks if a slug is taken
	ExistsBySlug(ctx context.Context, slug string) (bool, error)

	// Count counts products matching the filter
	Count(ctx context.Context, filter ProductFilter) (int64, error)

	// Save creates or updates a product
	Save(ctx context.Context, product *Product) error

	// SaveWithVariants writes a product and its variant changes atomically
	SaveWithVariants(ctx context.Context, product *Product, variants []Variant) error
}

// VariantRepository defines the interface for variant persistence
type VariantRepository interface {
	// FindByProduct returns all variants of a product, active or not, ordered
	// by position
	FindByProduct(ctx context.Context, productID uuid.UUID) ([]Variant, error)

	// FindActiveByProduct returns the active variants of a product by position
	FindActiveByProduct(ctx context.Context, productID uuid.UUID) ([]Variant, error)

	// FindByID finds a variant by its ID
	FindByID(ctx context.Context, id uuid.UUID) (*Variant, error)

	// SaveBatch upserts variants
	SaveBatch(ctx context.Context, variants []Variant) error
}
