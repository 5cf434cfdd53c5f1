package bootstrap

import (
	"database/sql"
	"fmt"

	"github.com/dropship/backend/internal/infrastructure/config"
	"github.com/dropship/backend/internal/infrastructure/migration"
	"github.com/dropship/backend/migrations"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

// OpenMigrator opens a dedicated connection for schema migrations over the
// embedded SQL files. Closing the migrator closes that connection.
func OpenMigrator(cfg *config.DatabaseConfig, log *zap.Logger) (*migration.Migrator, error) {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	m, err := migration.New(db, migrations.FS, log.Named("migrate"))
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return m, nil
}

// MigrateUp applies every pending migration
func MigrateUp(cfg *config.DatabaseConfig, log *zap.Logger) error {
	m, err := OpenMigrator(cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := m.Close(); err != nil {
			log.Warn("failed to close migrator", zap.Error(err))
		}
	}()
	return m.Up()
}
