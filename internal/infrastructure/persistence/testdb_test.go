package persistence

import (
	"testing"

	"github.com/dropship/backend/internal/infrastructure/persistence/persistencetest"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	return persistencetest.OpenDB(t)
}
