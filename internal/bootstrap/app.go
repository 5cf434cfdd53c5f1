// Package bootstrap wires configuration, storage, the supplier client and
// the application services into one App shared by the server and the CLI.
package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"github.com/dropship/backend/internal/application/catalogsync"
	"github.com/dropship/backend/internal/application/fulfillment"
	"github.com/dropship/backend/internal/application/review"
	"github.com/dropship/backend/internal/application/settings"
	"github.com/dropship/backend/internal/application/shipping"
	domainreview "github.com/dropship/backend/internal/domain/review"
	"github.com/dropship/backend/internal/domain/shared"
	"github.com/dropship/backend/internal/infrastructure/config"
	"github.com/dropship/backend/internal/infrastructure/event"
	"github.com/dropship/backend/internal/infrastructure/lock"
	"github.com/dropship/backend/internal/infrastructure/logger"
	"github.com/dropship/backend/internal/infrastructure/persistence"
	"github.com/dropship/backend/internal/infrastructure/supplierapi"
	"github.com/dropship/backend/internal/infrastructure/telemetry"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// Version is stamped at build time with -ldflags
var Version = "dev"

// Repositories are the gorm-backed stores
type Repositories struct {
	Products *persistence.GormProductRepository
	Variants *persistence.GormVariantRepository
	Runs     *persistence.GormSyncRunRepository
	Orders   *persistence.GormOrderRepository
	Tracking *persistence.GormTrackingEventRepository
	Reviews  *persistence.GormReviewRepository
	Settings *persistence.GormSettingRepository
}

// App holds every long-lived component
type App struct {
	Config   *config.Config
	Logger   *zap.Logger
	DB       *persistence.Database
	Repos    Repositories
	Bus      *event.InMemoryEventBus
	Locker   shared.Locker
	Supplier *supplierapi.Client
	Metrics  *telemetry.MeterProvider
	Tracing  *telemetry.TracerProvider
	Logs     *telemetry.LoggerProvider

	Settings    *settings.Service
	Engine      *catalogsync.Engine
	Stock       *catalogsync.StockChecker
	Fulfillment *fulfillment.Service
	Reviews     *review.Service
	Estimator   *shipping.Estimator

	closers []func(context.Context) error
}

// New connects to the database and builds every service. Redis and the
// OTLP collector are optional; their absence is logged, not fatal. When log
// export is on, app.Logger is the bridged logger and services log through it.
func New(ctx context.Context, cfg *config.Config, log *zap.Logger) (*App, error) {
	app := &App{Config: cfg, Logger: log}

	if err := app.initTracing(ctx); err != nil {
		_ = app.Close(ctx)
		return nil, err
	}
	log = app.Logger

	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level))
	db, err := persistence.NewDatabaseWithLogger(&cfg.Database, gormLog)
	if err != nil {
		_ = app.Close(ctx)
		return nil, err
	}
	app.DB = db
	app.onClose(func(context.Context) error { return db.Close() })

	if err := telemetry.RegisterDBTracing(db.DB, telemetry.DBTracingConfig{
		Enabled:         cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled,
		LogFullSQL:      cfg.Telemetry.DBLogFullSQL,
		SlowQueryThresh: cfg.Telemetry.DBSlowQueryThresh,
		DBSystem:        "postgresql",
	}, log); err != nil {
		_ = app.Close(ctx)
		return nil, fmt.Errorf("failed to register database tracing: %w", err)
	}

	app.Repos = Repositories{
		Products: persistence.NewGormProductRepository(db.DB),
		Variants: persistence.NewGormVariantRepository(db.DB),
		Runs:     persistence.NewGormSyncRunRepository(db.DB),
		Orders:   persistence.NewGormOrderRepository(db.DB),
		Tracking: persistence.NewGormTrackingEventRepository(db.DB),
		Reviews:  persistence.NewGormReviewRepository(db.DB),
		Settings: persistence.NewGormSettingRepository(db.DB),
	}

	locker, closeLocker := lock.New(cfg.Redis, log)
	app.Locker = locker
	app.onClose(func(context.Context) error { return closeLocker() })

	if err := app.initMetrics(ctx); err != nil {
		_ = app.Close(ctx)
		return nil, err
	}

	app.Supplier = supplierapi.NewClient(supplierapi.Config{
		BaseURL:          cfg.Supplier.BaseURL,
		Email:            cfg.Supplier.Email,
		APIKey:           cfg.Supplier.APIKey,
		Timeout:          cfg.Supplier.Timeout,
		MinInterval:      cfg.Supplier.MinInterval,
		RateLimitBackoff: cfg.Supplier.RateLimitBackoff,
		RefreshSkew:      cfg.Supplier.RefreshSkew,
		MaxResponseSize:  cfg.Supplier.MaxResponseSize,
	}, log)

	app.Settings = settings.NewService(app.Repos.Settings, log)

	app.Engine = catalogsync.NewEngine(catalogsync.Deps{
		Client:    app.Supplier,
		Products:  app.Repos.Products,
		Variants:  app.Repos.Variants,
		Runs:      app.Repos.Runs,
		Settings:  app.Settings,
		Locker:    app.Locker,
		Publisher: app.Bus,
		Logger:    log,
	}, catalogsync.Config{
		AutoActivate: cfg.Sync.AutoActivate,
		Warehouse:    cfg.Sync.Warehouse,
		CountryCode:  cfg.Sync.CountryCode,
		PageSize:     cfg.Sync.PageSize,
		MaxPages:     cfg.Sync.MaxPages,
		LockTTL:      cfg.Sync.LockTTL,
	})
	app.Stock = catalogsync.NewStockChecker(app.Engine)

	app.Fulfillment = fulfillment.NewService(app.Repos.Orders, app.Repos.Tracking, app.Supplier, fulfillment.Config{
		DeliveredIndicators: cfg.Sync.DeliveredIndicators,
		PollBatchSize:       cfg.Sync.PollBatchSize,
	}, log)
	app.Fulfillment.SetEventPublisher(app.Bus)
	app.Fulfillment.SetLocker(app.Locker)

	app.Reviews = review.NewService(app.Supplier, app.Repos.Products, app.Repos.Reviews, review.Config{
		Policy: domainreview.Policy{
			MinRating:     cfg.Reviews.MinRating,
			MaxPerProduct: cfg.Reviews.MaxPerProduct,
			MinBodyLength: cfg.Reviews.MinBodyLength,
		},
		PageSize: cfg.Reviews.PageSize,
		Delay:    cfg.Reviews.Delay,
	}, log)

	app.Estimator = shipping.NewEstimator(app.Supplier, app.Settings, app.Repos.Products, app.Repos.Variants, log)

	return app, nil
}

// initTracing starts span export and, when enabled, bridges the logger to
// the collector. Both providers flush on Close.
func (a *App) initTracing(ctx context.Context) error {
	tc := a.Config.Telemetry
	tp, err := telemetry.NewTracerProvider(ctx, telemetry.TracingConfig{
		Enabled:           tc.Enabled,
		CollectorEndpoint: tc.CollectorEndpoint,
		SamplingRatio:     tc.SamplingRatio,
		ServiceName:       tc.ServiceName,
		ServiceVersion:    Version,
		Insecure:          tc.Insecure,
	}, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to start tracing: %w", err)
	}
	a.Tracing = tp
	a.onClose(tp.Shutdown)

	lp, err := telemetry.NewLoggerProvider(ctx, telemetry.LogsConfig{
		Enabled:           tc.Enabled && tc.LogsEnabled,
		CollectorEndpoint: tc.CollectorEndpoint,
		ServiceName:       tc.ServiceName,
		ServiceVersion:    Version,
		Insecure:          tc.Insecure,
	}, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to start log export: %w", err)
	}
	a.Logs = lp
	a.onClose(lp.Shutdown)
	a.Logger = lp.Bridge(a.Logger, logger.ParseLevel(a.Config.Log.Level))
	return nil
}

// initMetrics starts the meter provider and subscribes the event handlers
func (a *App) initMetrics(ctx context.Context) error {
	a.Bus = event.NewInMemoryEventBus(a.Logger)
	a.Bus.Subscribe(event.NewLoggingHandler(a.Logger))

	mp, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           a.Config.Telemetry.Enabled,
		CollectorEndpoint: a.Config.Telemetry.CollectorEndpoint,
		ExportInterval:    a.Config.Telemetry.ExportInterval,
		ServiceName:       a.Config.Telemetry.ServiceName,
		ServiceVersion:    Version,
		Insecure:          a.Config.Telemetry.Insecure,
	}, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to start metrics: %w", err)
	}
	a.Metrics = mp
	a.onClose(mp.Shutdown)

	meter := mp.Meter("dropship")
	business, err := telemetry.NewBusinessMetrics(meter)
	if err != nil {
		return fmt.Errorf("failed to create business metrics: %w", err)
	}
	a.Bus.Subscribe(business, business.EventTypes()...)

	sqlDB, err := a.DB.SQL()
	if err != nil {
		return err
	}
	reg, err := telemetry.RegisterDBPoolMetrics(meter, sqlDB)
	if err != nil {
		return fmt.Errorf("failed to register pool metrics: %w", err)
	}
	a.onClose(func(context.Context) error { return reg.Unregister() })
	return nil
}

// Meter returns the application meter
func (a *App) Meter() metric.Meter {
	return a.Metrics.Meter("dropship")
}

func (a *App) onClose(fn func(context.Context) error) {
	a.closers = append(a.closers, fn)
}

// Close releases resources in reverse order of acquisition
func (a *App) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
