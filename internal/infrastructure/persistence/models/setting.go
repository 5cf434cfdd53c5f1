package models

import (
	"time"

	"github.com/dropship/backend/internal/domain/setting"
)

// SettingModel is a named JSON configuration record.
type SettingModel struct {
	Key       string    `gorm:"type:varchar(100);primary_key"`
	Value     string    `gorm:"type:jsonb;not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (SettingModel) TableName() string {
	return "settings"
}

// ToDomain converts the persistence model to a domain Record.
func (m *SettingModel) ToDomain() *setting.Record {
	return &setting.Record{Key: m.Key, Value: []byte(m.Value), UpdatedAt: m.UpdatedAt}
}
