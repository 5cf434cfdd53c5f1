// Package review mirrors a curated subset of supplier reviews onto local
// products.
package review

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Review is a supplier review attached to a local product
type Review struct {
	ID         uuid.UUID
	ProductID  uuid.UUID
	ExternalID string
	Rating     int
	Body       string
	Author     string
	Country    string
	Images     []string
	PostedAt   *time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Policy decides which supplier reviews are worth mirroring
type Policy struct {
	MinRating     int
	MaxPerProduct int
	MinBodyLength int
}

// DefaultPolicy keeps four and five star reviews with some text
func DefaultPolicy() Policy {
	return Policy{MinRating: 4, MaxPerProduct: 20, MinBodyLength: 10}
}

// Accepts reports whether a single review passes the quality bar
func (p Policy) Accepts(rating int, body string) bool {
	if rating < p.MinRating || rating > 5 {
		return false
	}
	return len([]rune(strings.TrimSpace(body))) >= max(p.MinBodyLength, 1)
}

// Full reports whether a product already holds the maximum kept reviews
func (p Policy) Full(kept int) bool {
	return p.MaxPerProduct > 0 && kept >= p.MaxPerProduct
}

// Repository persists mirrored reviews
type Repository interface {
	// Upsert inserts or updates by external id and reports whether a row
	// was inserted
	Upsert(ctx context.Context, review *Review) (bool, error)
	CountByProduct(ctx context.Context, productID uuid.UUID) (int64, error)
	FindByProduct(ctx context.Context, productID uuid.UUID, limit int) ([]Review, error)
}
