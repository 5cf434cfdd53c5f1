package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dropship/backend/internal/infrastructure/logger"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// JobFunc is the body of a scheduled job
type JobFunc func(ctx context.Context) error

// Job is a named unit of background work on a cron schedule
type Job struct {
	Name     string
	Schedule string
	Run      JobFunc
}

// Config holds scheduler configuration
type Config struct {
	// JobTimeout bounds a single job run. Zero means no bound.
	JobTimeout time.Duration
	// ShutdownGrace is how long Stop waits for running jobs
	ShutdownGrace time.Duration
}

// Scheduler runs registered jobs on their cron schedules. Runs of the same
// job never overlap; a tick that fires while the previous run is still
// going is skipped.
type Scheduler struct {
	cfg    Config
	cron   *cron.Cron
	logger *zap.Logger

	mu      sync.Mutex
	jobs    map[string]Job
	running map[string]bool
	baseCtx context.Context
	cancel  context.CancelFunc
}

// New creates a scheduler. Schedules use the standard five-field syntax
// plus descriptors such as "@every 15m".
func New(cfg Config, log *zap.Logger) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cfg:     cfg,
		cron:    cron.New(cron.WithParser(cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor))),
		logger:  log.Named("scheduler"),
		jobs:    make(map[string]Job),
		running: make(map[string]bool),
		baseCtx: ctx,
		cancel:  cancel,
	}
}

// Register adds a job. An empty schedule registers the job for RunNow only.
func (s *Scheduler) Register(job Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.jobs[job.Name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateJob, job.Name)
	}
	if job.Schedule != "" {
		if _, err := s.cron.AddFunc(job.Schedule, func() { s.execute(job) }); err != nil {
			return fmt.Errorf("%w: %s %q: %v", ErrInvalidSchedule, job.Name, job.Schedule, err)
		}
	}
	s.jobs[job.Name] = job
	return nil
}

// Jobs returns the registered job names in sorted order
func (s *Scheduler) Jobs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.jobs))
	for name := range s.jobs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Start begins firing schedules in the background
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("scheduler started", zap.Strings("jobs", s.Jobs()))
}

// Stop halts new runs, cancels running ones and waits up to ShutdownGrace
// for them to return
func (s *Scheduler) Stop() {
	stopped := s.cron.Stop()
	s.cancel()

	grace := s.cfg.ShutdownGrace
	if grace <= 0 {
		grace = 30 * time.Second
	}
	select {
	case <-stopped.Done():
		s.logger.Info("scheduler stopped")
	case <-time.After(grace):
		s.logger.Warn("scheduler stop timed out with jobs still running", zap.Duration("grace", grace))
	}
}

// RunNow runs a job synchronously, outside its schedule. It shares the
// overlap guard with scheduled runs and reports whether the job ran.
func (s *Scheduler) RunNow(ctx context.Context, name string) (bool, error) {
	s.mu.Lock()
	job, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrJobNotFound, name)
	}
	return s.run(ctx, job)
}

func (s *Scheduler) execute(job Job) {
	_, _ = s.run(s.baseCtx, job)
}

func (s *Scheduler) run(ctx context.Context, job Job) (ran bool, err error) {
	if !s.acquire(job.Name) {
		s.logger.Info("job still running, skipping tick", zap.String("job", job.Name))
		return false, nil
	}
	defer s.release(job.Name)

	if s.cfg.JobTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.JobTimeout)
		defer cancel()
	}
	ctx = logger.WithJob(ctx, s.logger, job.Name)
	log := logger.FromContext(ctx)

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			ran = true
			err = fmt.Errorf("job panicked: %v", r)
			log.Error("job panicked", zap.Any("panic", r), zap.Stack("stack"))
		}
	}()

	log.Debug("job started")
	err = job.Run(ctx)
	elapsed := time.Since(start)
	switch {
	case err == nil:
		log.Info("job finished", zap.Duration("duration", elapsed))
	case errors.Is(err, context.DeadlineExceeded):
		log.Error("job timed out", zap.Duration("duration", elapsed), zap.Error(err))
	default:
		log.Error("job failed", zap.Duration("duration", elapsed), zap.Error(err))
	}
	return true, err
}

func (s *Scheduler) acquire(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running[name] {
		return false
	}
	s.running[name] = true
	return true
}

func (s *Scheduler) release(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.running, name)
}
