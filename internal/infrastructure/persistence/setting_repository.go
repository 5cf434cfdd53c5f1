package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/dropship/backend/internal/domain/setting"
	"github.com/dropship/backend/internal/domain/shared"
	"github.com/dropship/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormSettingRepository implements setting.Repository using GORM
type GormSettingRepository struct {
	db *gorm.DB
}

// NewGormSettingRepository creates a new GormSettingRepository
func NewGormSettingRepository(db *gorm.DB) *GormSettingRepository {
	return &GormSettingRepository{db: db}
}

// Get loads a record by key
func (r *GormSettingRepository) Get(ctx context.Context, key string) (*setting.Record, error) {
	var model models.SettingModel
	if err := r.db.WithContext(ctx).Where(map[string]any{"key": key}).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// Put inserts or replaces a record
func (r *GormSettingRepository) Put(ctx context.Context, record *setting.Record) error {
	if record.UpdatedAt.IsZero() {
		record.UpdatedAt = time.Now()
	}
	model := &models.SettingModel{Key: record.Key, Value: string(record.Value), UpdatedAt: record.UpdatedAt}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(model).Error
}
