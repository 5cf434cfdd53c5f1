package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/dropship/backend/internal/domain/review"
	"github.com/dropship/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormReviewRepository implements review.Repository using GORM
type GormReviewRepository struct {
	db *gorm.DB
}

// NewGormReviewRepository creates a new GormReviewRepository
func NewGormReviewRepository(db *gorm.DB) *GormReviewRepository {
	return &GormReviewRepository{db: db}
}

// Upsert inserts a review or refreshes the mutable fields of an existing
// one with the same external id
func (r *GormReviewRepository) Upsert(ctx context.Context, rv *review.Review) (bool, error) {
	inserted := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now()
		var existing models.ReviewModel
		err := tx.Where("external_id = ?", rv.ExternalID).First(&existing).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			if rv.ID == uuid.Nil {
				rv.ID = uuid.New()
			}
			rv.CreatedAt = now
			rv.UpdatedAt = now
			inserted = true
			return tx.Create(models.ReviewModelFromDomain(rv)).Error
		case err != nil:
			return err
		}

		rv.ID = existing.ID
		rv.CreatedAt = existing.CreatedAt
		rv.UpdatedAt = now
		model := models.ReviewModelFromDomain(rv)
		return tx.Model(model).
			Select("rating", "body", "author", "country", "images", "posted_at", "updated_at").
			Updates(model).Error
	})
	if err != nil {
		return false, err
	}
	return inserted, nil
}

// CountByProduct counts mirrored reviews of a product
func (r *GormReviewRepository) CountByProduct(ctx context.Context, productID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.ReviewModel{}).Where("product_id = ?", productID).Count(&count).Error
	return count, err
}

// FindByProduct returns the newest reviews of a product
func (r *GormReviewRepository) FindByProduct(ctx context.Context, productID uuid.UUID, limit int) ([]review.Review, error) {
	query := r.db.WithContext(ctx).Where("product_id = ?", productID).Order("posted_at DESC, created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	var rows []models.ReviewModel
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	reviews := make([]review.Review, 0, len(rows))
	for i := range rows {
		reviews = append(reviews, rows[i].ToDomain())
	}
	return reviews, nil
}
