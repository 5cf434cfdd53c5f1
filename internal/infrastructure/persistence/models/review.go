package models

import (
	"time"

	"github.com/dropship/backend/internal/domain/review"
	"github.com/google/uuid"
)

// ReviewModel is the persistence model for mirrored supplier reviews.
type ReviewModel struct {
	ID         uuid.UUID `gorm:"type:uuid;primary_key"`
	ProductID  uuid.UUID `gorm:"type:uuid;not null;index"`
	ExternalID string    `gorm:"type:varchar(64);not null;uniqueIndex"`
	Rating     int       `gorm:"not null"`
	Body       string    `gorm:"type:text;not null"`
	Author     string    `gorm:"type:varchar(100)"`
	Country    string    `gorm:"type:varchar(8)"`
	Images     []string  `gorm:"serializer:json;type:text"`
	PostedAt   *time.Time
	CreatedAt  time.Time `gorm:"not null"`
	UpdatedAt  time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (ReviewModel) TableName() string {
	return "product_reviews"
}

// ToDomain converts the persistence model to a domain Review.
func (m *ReviewModel) ToDomain() review.Review {
	return review.Review{
		ID:         m.ID,
		ProductID:  m.ProductID,
		ExternalID: m.ExternalID,
		Rating:     m.Rating,
		Body:       m.Body,
		Author:     m.Author,
		Country:    m.Country,
		Images:     m.Images,
		PostedAt:   m.PostedAt,
		CreatedAt:  m.CreatedAt,
		UpdatedAt:  m.UpdatedAt,
	}
}

// ReviewModelFromDomain creates a new persistence model from a domain Review.
func ReviewModelFromDomain(r *review.Review) *ReviewModel {
	return &ReviewModel{
		ID:         r.ID,
		ProductID:  r.ProductID,
		ExternalID: r.ExternalID,
		Rating:     r.Rating,
		Body:       r.Body,
		Author:     r.Author,
		Country:    r.Country,
		Images:     r.Images,
		PostedAt:   r.PostedAt,
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
	}
}
