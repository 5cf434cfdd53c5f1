package persistence

import (
	"context"
	"errors"
	"strings"

	"github.com/dropship/backend/internal/domain/catalog"
	"github.com/dropship/backend/internal/domain/shared"
	"github.com/dropship/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormProductRepository implements catalog.ProductRepository using GORM
type GormProductRepository struct {
	db *gorm.DB
}

// NewGormProductRepository creates a new GormProductRepository
func NewGormProductRepository(db *gorm.DB) *GormProductRepository {
	return &GormProductRepository{db: db}
}

// FindByID finds a product by its ID
func (r *GormProductRepository) FindByID(ctx context.Context, id uuid.UUID) (*catalog.Product, error) {
	return r.findOne(ctx, "id = ?", id)
}

// FindByExternalRef finds a product by its supplier pid
func (r *GormProductRepository) FindByExternalRef(ctx context.Context, externalRef string) (*catalog.Product, error) {
	return r.findOne(ctx, "external_ref = ?", strings.TrimSpace(externalRef))
}

// FindBySlug finds a product by its slug
func (r *GormProductRepository) FindBySlug(ctx context.Context, slug string) (*catalog.Product, error) {
	return r.findOne(ctx, "slug = ?", slug)
}

func (r *GormProductRepository) findOne(ctx context.Context, query string, args ...any) (*catalog.Product, error) {
	var model models.ProductModel
	if err := r.db.WithContext(ctx).Where(query, args...).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindAll lists products matching the filter
func (r *GormProductRepository) FindAll(ctx context.Context, filter catalog.ProductFilter) ([]catalog.Product, error) {
	var rows []models.ProductModel
	query := r.applyFilter(r.db.WithContext(ctx).Model(&models.ProductModel{}), filter)
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	products := make([]catalog.Product, 0, len(rows))
	for i := range rows {
		products = append(products, *rows[i].ToDomain())
	}
	return products, nil
}

// FindRefsByStatus returns id/external ref pairs of every product in status
func (r *GormProductRepository) FindRefsByStatus(ctx context.Context, status catalog.ProductStatus) ([]catalog.ProductRef, error) {
	var refs []catalog.ProductRef
	err := r.db.WithContext(ctx).
		Model(&models.ProductModel{}).
		Select("id, external_ref").
		Where("status = ?", status).
		Order("created_at ASC").
		Scan(&refs).Error
	if err != nil {
		return nil, err
	}
	return refs, nil
}

// ExistsBySlug checks if a slug is taken
func (r *GormProductRepository) ExistsBySlug(ctx context.Context, slug string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.ProductModel{}).Where("slug = ?", slug).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// Count counts products matching the filter
func (r *GormProductRepository) Count(ctx context.Context, filter catalog.ProductFilter) (int64, error) {
	var count int64
	query := r.applyFilterWithoutPagination(r.db.WithContext(ctx).Model(&models.ProductModel{}), filter)
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Save creates or updates a product
func (r *GormProductRepository) Save(ctx context.Context, product *catalog.Product) error {
	return r.db.WithContext(ctx).Save(models.ProductModelFromDomain(product)).Error
}

// SaveWithVariants writes a product and its variant changes in one transaction
func (r *GormProductRepository) SaveWithVariants(ctx context.Context, product *catalog.Product, variants []catalog.Variant) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(models.ProductModelFromDomain(product)).Error; err != nil {
			return err
		}
		for i := range variants {
			if err := tx.Save(models.VariantModelFromDomain(&variants[i])).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// applyFilter applies filter options with ordering and pagination
func (r *GormProductRepository) applyFilter(query *gorm.DB, filter catalog.ProductFilter) *gorm.DB {
	query = r.applyFilterWithoutPagination(query, filter)

	sortField := ValidateSortField(filter.OrderBy, ProductSortFields, "created_at")
	sortOrder := ValidateSortOrder(filter.OrderDir)
	query = query.Order(sortField + " " + sortOrder).Order("id ASC")

	if filter.PageSize > 0 {
		query = query.Offset(filter.Offset()).Limit(filter.PageSize)
	}
	return query
}

// applyFilterWithoutPagination applies filter options without pagination
func (r *GormProductRepository) applyFilterWithoutPagination(query *gorm.DB, filter catalog.ProductFilter) *gorm.DB {
	if filter.Search != "" {
		pattern := "%" + strings.ToLower(filter.Search) + "%"
		query = query.Where("LOWER(name) LIKE ? OR slug LIKE ? OR external_ref = ?", pattern, pattern, filter.Search)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Linked {
		query = query.Where("external_ref <> ''")
	}
	return query
}

// GormVariantRepository implements catalog.VariantRepository using GORM
type GormVariantRepository struct {
	db *gorm.DB
}

// NewGormVariantRepository creates a new GormVariantRepository
func NewGormVariantRepository(db *gorm.DB) *GormVariantRepository {
	return &GormVariantRepository{db: db}
}

// FindByProduct returns all variants of a product ordered by position
func (r *GormVariantRepository) FindByProduct(ctx context.Context, productID uuid.UUID) ([]catalog.Variant, error) {
	return r.find(ctx, r.db.WithContext(ctx).Where("product_id = ?", productID))
}

// FindActiveByProduct returns the active variants of a product ordered by position
func (r *GormVariantRepository) FindActiveByProduct(ctx context.Context, productID uuid.UUID) ([]catalog.Variant, error) {
	return r.find(ctx, r.db.WithContext(ctx).Where("product_id = ? AND is_active = ?", productID, true))
}

func (r *GormVariantRepository) find(_ context.Context, query *gorm.DB) ([]catalog.Variant, error) {
	var rows []models.VariantModel
	if err := query.Order("position ASC, created_at ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	variants := make([]catalog.Variant, 0, len(rows))
	for i := range rows {
		variants = append(variants, rows[i].ToDomain())
	}
	return variants, nil
}

// FindByID finds a variant by its ID
func (r *GormVariantRepository) FindByID(ctx context.Context, id uuid.UUID) (*catalog.Variant, error) {
	var model models.VariantModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	v := model.ToDomain()
	return &v, nil
}

// SaveBatch upserts variants
func (r *GormVariantRepository) SaveBatch(ctx context.Context, variants []catalog.Variant) error {
	if len(variants) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := range variants {
			if err := tx.Save(models.VariantModelFromDomain(&variants[i])).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// GormSyncRunRepository implements catalog.SyncRunRepository using GORM
type GormSyncRunRepository struct {
	db *gorm.DB
}

// NewGormSyncRunRepository creates a new GormSyncRunRepository
func NewGormSyncRunRepository(db *gorm.DB) *GormSyncRunRepository {
	return &GormSyncRunRepository{db: db}
}

// Save creates or updates a sync run
func (r *GormSyncRunRepository) Save(ctx context.Context, run *catalog.SyncRun) error {
	return r.db.WithContext(ctx).Save(models.SyncRunModelFromDomain(run)).Error
}

// FindRecent lists sync runs, newest first by default
func (r *GormSyncRunRepository) FindRecent(ctx context.Context, filter shared.Filter) ([]catalog.SyncRun, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&models.SyncRunModel{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	sortField := ValidateSortField(filter.OrderBy, SyncRunSortFields, "started_at")
	query := r.db.WithContext(ctx).Order(sortField + " " + ValidateSortOrder(filter.OrderDir))
	if filter.PageSize > 0 {
		query = query.Offset(filter.Offset()).Limit(filter.PageSize)
	}

	var rows []models.SyncRunModel
	if err := query.Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	runs := make([]catalog.SyncRun, 0, len(rows))
	for i := range rows {
		runs = append(runs, rows[i].ToDomain())
	}
	return runs, total, nil
}
