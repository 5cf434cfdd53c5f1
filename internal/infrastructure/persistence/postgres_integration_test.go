//go:build integration

package persistence

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/dropship/backend/internal/domain/catalog"
	"github.com/dropship/backend/internal/domain/shared"
	"github.com/dropship/backend/internal/infrastructure/migration"
	"github.com/dropship/backend/migrations"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap/zaptest"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// openPostgres starts a throwaway PostgreSQL container and applies the
// embedded migrations to it
func openPostgres(t *testing.T) *gorm.DB {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("dropship_test"),
		tcpostgres.WithUsername("postgres"),
		tcpostgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err, "Failed to start PostgreSQL container")
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("Warning: Failed to terminate container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	migrateDB, err := sql.Open("postgres", dsn)
	require.NoError(t, err)
	m, err := migration.New(migrateDB, migrations.FS, zaptest.NewLogger(t))
	require.NoError(t, err)
	require.NoError(t, m.Up())
	require.NoError(t, m.Close())

	db, err := gorm.Open(gormpostgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

func TestPostgres_CatalogAndOrders(t *testing.T) {
	db := openPostgres(t)
	ctx := context.Background()
	products := NewGormProductRepository(db)
	variants := NewGormVariantRepository(db)
	orders := NewGormOrderRepository(db)

	t.Run("product with variants round trips", func(t *testing.T) {
		p := newTestProduct(t, "PG-1", "Wool Scarf")
		changes := catalog.MergeVariants(p.ID, nil, []catalog.VariantInput{
			{ExternalVariantID: "W1", Color: "Grey", Size: "One", StockCount: 4},
			{ExternalVariantID: "W2", Color: "Navy", Size: "One", StockCount: 0},
		})
		require.NoError(t, products.SaveWithVariants(ctx, p, changes.Upserts))

		found, err := products.FindBySlug(ctx, "wool-scarf")
		require.NoError(t, err)
		assert.Equal(t, p.ID, found.ID)

		all, err := variants.FindByProduct(ctx, p.ID)
		require.NoError(t, err)
		assert.Len(t, all, 2)
	})

	t.Run("slug and external ref are unique", func(t *testing.T) {
		dup := newTestProduct(t, "PG-1", "Another Scarf")
		assert.Error(t, products.Save(ctx, dup))
	})

	t.Run("order optimistic locking", func(t *testing.T) {
		o := newPaidOrder(t, "ORD-PG-1")
		require.NoError(t, orders.Save(ctx, o))

		stale, err := orders.FindByID(ctx, o.ID)
		require.NoError(t, err)

		require.NoError(t, o.MarkSubmitted("SUP-1"))
		require.NoError(t, orders.SaveWithLock(ctx, o))

		require.NoError(t, stale.Cancel("customer request"))
		assert.ErrorIs(t, orders.SaveWithLock(ctx, stale), shared.ErrConcurrencyConflict)
	})
}
