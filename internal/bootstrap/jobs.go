package bootstrap

import (
	"context"

	"github.com/dropship/backend/internal/application/catalogsync"
	"github.com/dropship/backend/internal/infrastructure/logger"
	"github.com/dropship/backend/internal/infrastructure/scheduler"
	"go.uber.org/zap"
)

// Job names, shared by the scheduler and the CLI
const (
	JobCatalogSync = "catalog-sync"
	JobStockCheck  = "stock-check"
	JobTracking    = "tracking-poll"
	JobReviews     = "review-sync"
)

// Jobs returns the background jobs with their configured schedules. A job
// with an empty schedule only runs on demand.
func (a *App) Jobs() []scheduler.Job {
	sc := a.Config.Scheduler
	return []scheduler.Job{
		{Name: JobCatalogSync, Schedule: sc.SyncCron, Run: a.runCatalogSync},
		{Name: JobStockCheck, Schedule: sc.StockCron, Run: a.runStockCheck},
		{Name: JobTracking, Schedule: sc.TrackingCron, Run: a.runTrackingPoll},
		{Name: JobReviews, Schedule: sc.ReviewsCron, Run: a.runReviewSync},
	}
}

// NewScheduler registers every job on a new scheduler
func (a *App) NewScheduler() (*scheduler.Scheduler, error) {
	s := scheduler.New(scheduler.Config{
		JobTimeout:    a.Config.Scheduler.JobTimeout,
		ShutdownGrace: a.Config.Scheduler.ShutdownGrace,
	}, a.Logger)
	for _, job := range a.Jobs() {
		if err := s.Register(job); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (a *App) runCatalogSync(ctx context.Context) error {
	result, err := a.Engine.Run(ctx, catalogsync.Options{})
	if err != nil {
		return skipContention(err)
	}
	logger.FromContextOr(ctx, a.Logger).Info("catalog sync finished",
		zap.Int("synced", result.Synced),
		zap.Int("updated", result.Updated),
		zap.Int("hidden", result.Hidden),
		zap.Int("errors", len(result.Errors)),
	)
	return nil
}

func (a *App) runStockCheck(ctx context.Context) error {
	result, err := a.Stock.Check(ctx, nil)
	if err != nil {
		return skipContention(err)
	}
	logger.FromContextOr(ctx, a.Logger).Info("stock check finished",
		zap.Int("checked", result.Checked),
		zap.Int("deactivated", result.Deactivated),
		zap.Int("activated", result.Activated),
	)
	return nil
}

func (a *App) runTrackingPoll(ctx context.Context) error {
	summary, err := a.Fulfillment.PollOpen(ctx)
	if err != nil {
		return err
	}
	logger.FromContextOr(ctx, a.Logger).Info("tracking poll finished",
		zap.Int("polled", summary.Polled),
		zap.Int("advanced", summary.Advanced),
		zap.Int("delivered", summary.Delivered),
		zap.Int("errors", len(summary.Errors)),
	)
	return nil
}

func (a *App) runReviewSync(ctx context.Context) error {
	result, err := a.Reviews.SyncAll(ctx)
	if err != nil {
		return err
	}
	logger.FromContextOr(ctx, a.Logger).Info("review sync finished",
		zap.Int("products", result.Products),
		zap.Int("inserted", result.Inserted),
		zap.Int("errors", len(result.Errors)),
	)
	return nil
}

// skipContention treats a pass held by another replica as a quiet no-op
func skipContention(err error) error {
	if catalogsync.IsLockContention(err) {
		return nil
	}
	return err
}
