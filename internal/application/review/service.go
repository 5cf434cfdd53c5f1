// Package review mirrors curated supplier reviews onto listed products.
package review

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dropship/backend/internal/domain/catalog"
	"github.com/dropship/backend/internal/domain/review"
	"github.com/dropship/backend/internal/domain/shared"
	"github.com/dropship/backend/internal/domain/supplier"
	"github.com/dropship/backend/internal/infrastructure/logger"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// maxPages bounds how deep one product's review listing is read
const maxPages = 20

// Config holds review sync tuning
type Config struct {
	Policy   review.Policy
	PageSize int
	// Delay is the pause between products in SyncAll
	Delay time.Duration
}

// ProductResult summarizes the review sync of one product
type ProductResult struct {
	ProductID uuid.UUID `json:"product_id"`
	Fetched   int       `json:"fetched"`
	Rejected  int       `json:"rejected"`
	Inserted  int       `json:"inserted"`
	Updated   int       `json:"updated"`
}

// Failure is one product whose review sync failed
type Failure struct {
	ProductID   uuid.UUID `json:"product_id"`
	ExternalRef string    `json:"external_ref"`
	Error       string    `json:"error"`
}

// Result summarizes a bulk review sync
type Result struct {
	Products int       `json:"products"`
	Inserted int       `json:"inserted"`
	Updated  int       `json:"updated"`
	Errors   []Failure `json:"errors"`
}

// Service syncs supplier reviews
type Service struct {
	client   supplier.Client
	products catalog.ProductRepository
	reviews  review.Repository
	cfg      Config
	logger   *zap.Logger
	sleep    func(ctx context.Context, d time.Duration) error
}

// NewService creates a new review Service
func NewService(client supplier.Client, products catalog.ProductRepository, reviews review.Repository, cfg Config, log *zap.Logger) *Service {
	if cfg.PageSize <= 0 {
		cfg.PageSize = 50
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		client:   client,
		products: products,
		reviews:  reviews,
		cfg:      cfg,
		logger:   log,
		sleep:    sleepCtx,
	}
}

// SyncProduct mirrors the accepted reviews of one product until the
// product holds Policy.MaxPerProduct reviews
func (s *Service) SyncProduct(ctx context.Context, productID uuid.UUID) (*ProductResult, error) {
	product, err := s.products.FindByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	if product.ExternalRef == "" {
		return nil, shared.NewDomainError("UNLINKED_PRODUCT", "Product has no supplier reference")
	}
	return s.syncProduct(ctx, product)
}

func (s *Service) syncProduct(ctx context.Context, product *catalog.Product) (*ProductResult, error) {
	result := &ProductResult{ProductID: product.ID}

	kept, err := s.reviews.CountByProduct(ctx, product.ID)
	if err != nil {
		return result, err
	}

	for page := 1; page <= maxPages; page++ {
		if s.cfg.Policy.Full(int(kept)) {
			break
		}
		resp, err := s.client.ListReviews(ctx, product.ExternalRef, page, s.cfg.PageSize)
		if err != nil {
			return result, fmt.Errorf("list reviews of %s: %w", product.ExternalRef, err)
		}
		result.Fetched += len(resp.Reviews)

		for _, sr := range resp.Reviews {
			if !s.cfg.Policy.Accepts(sr.Rating, sr.Body) || sr.ExternalID == "" {
				result.Rejected++
				continue
			}
			if s.cfg.Policy.Full(int(kept)) {
				break
			}
			rv := &review.Review{
				ProductID:  product.ID,
				ExternalID: sr.ExternalID,
				Rating:     sr.Rating,
				Body:       strings.TrimSpace(sr.Body),
				Author:     strings.TrimSpace(sr.Author),
				Country:    strings.ToUpper(strings.TrimSpace(sr.Country)),
				Images:     sr.Images,
				PostedAt:   sr.PostedAt,
			}
			inserted, err := s.reviews.Upsert(ctx, rv)
			if err != nil {
				return result, err
			}
			if inserted {
				result.Inserted++
				kept++
			} else {
				result.Updated++
			}
		}

		if !resp.HasMore() {
			break
		}
	}
	return result, nil
}

// SyncAll mirrors reviews for every active product, pausing Delay between
// products. Per-product failures are collected; credential failures and
// cancellation stop the run.
func (s *Service) SyncAll(ctx context.Context) (*Result, error) {
	log := logger.FromContextOr(ctx, s.logger).Named("reviews")

	if err := s.client.Authenticate(ctx); err != nil {
		return nil, err
	}
	refs, err := s.products.FindRefsByStatus(ctx, catalog.ProductStatusActive)
	if err != nil {
		return nil, err
	}

	result := &Result{}
	for i, ref := range refs {
		if i > 0 {
			if err := s.sleep(ctx, s.cfg.Delay); err != nil {
				return result, err
			}
		}
		product, err := s.products.FindByID(ctx, ref.ID)
		if err != nil {
			result.Errors = append(result.Errors, Failure{ProductID: ref.ID, ExternalRef: ref.ExternalRef, Error: err.Error()})
			continue
		}
		pr, err := s.syncProduct(ctx, product)
		if pr != nil {
			result.Inserted += pr.Inserted
			result.Updated += pr.Updated
		}
		if err != nil {
			if supplier.IsFatal(err) {
				return result, err
			}
			result.Errors = append(result.Errors, Failure{ProductID: ref.ID, ExternalRef: ref.ExternalRef, Error: err.Error()})
			log.Warn("review sync failed", zap.String("pid", ref.ExternalRef), zap.Error(err))
			continue
		}
		result.Products++
	}

	log.Info("review sync finished",
		zap.Int("products", result.Products),
		zap.Int("inserted", result.Inserted),
		zap.Int("updated", result.Updated),
		zap.Int("errors", len(result.Errors)),
	)
	return result, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
