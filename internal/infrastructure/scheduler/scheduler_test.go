package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dropship/backend/internal/infrastructure/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestScheduler_Register(t *testing.T) {
	s := New(Config{}, zap.NewNop())
	noop := func(context.Context) error { return nil }

	require.NoError(t, s.Register(Job{Name: "catalog_sync", Schedule: "@every 1h", Run: noop}))
	require.NoError(t, s.Register(Job{Name: "manual", Run: noop}))

	err := s.Register(Job{Name: "catalog_sync", Schedule: "@daily", Run: noop})
	assert.ErrorIs(t, err, ErrDuplicateJob)

	err = s.Register(Job{Name: "broken", Schedule: "not a cron", Run: noop})
	assert.ErrorIs(t, err, ErrInvalidSchedule)

	assert.Equal(t, []string{"catalog_sync", "manual"}, s.Jobs())
}

func TestScheduler_RunNow(t *testing.T) {
	s := New(Config{JobTimeout: time.Second}, zap.NewNop())

	var gotJob string
	var hasDeadline bool
	require.NoError(t, s.Register(Job{Name: "stock_check", Run: func(ctx context.Context) error {
		gotJob = logger.GetJob(ctx)
		_, hasDeadline = ctx.Deadline()
		return nil
	}}))

	ran, err := s.RunNow(context.Background(), "stock_check")
	require.NoError(t, err)
	assert.True(t, ran)
	assert.Equal(t, "stock_check", gotJob)
	assert.True(t, hasDeadline)

	_, err = s.RunNow(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestScheduler_RunNowReturnsJobError(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	s := New(Config{}, zap.New(core))
	boom := errors.New("supplier down")
	require.NoError(t, s.Register(Job{Name: "tracking_poll", Run: func(context.Context) error { return boom }}))

	ran, err := s.RunNow(context.Background(), "tracking_poll")
	assert.True(t, ran)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, logs.FilterMessage("job failed").Len())
}

func TestScheduler_RecoversPanics(t *testing.T) {
	s := New(Config{}, zap.NewNop())
	require.NoError(t, s.Register(Job{Name: "reviews", Run: func(context.Context) error { panic("bad") }}))

	ran, err := s.RunNow(context.Background(), "reviews")
	assert.True(t, ran)
	assert.ErrorContains(t, err, "panicked")

	// the overlap guard was released
	ran, _ = s.RunNow(context.Background(), "reviews")
	assert.True(t, ran)
}

func TestScheduler_SkipsOverlappingRuns(t *testing.T) {
	s := New(Config{}, zap.NewNop())
	started := make(chan struct{})
	release := make(chan struct{})
	require.NoError(t, s.Register(Job{Name: "catalog_sync", Run: func(context.Context) error {
		close(started)
		<-release
		return nil
	}}))

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = s.RunNow(context.Background(), "catalog_sync")
	}()
	<-started

	ran, err := s.RunNow(context.Background(), "catalog_sync")
	require.NoError(t, err)
	assert.False(t, ran)

	close(release)
	<-done
}

func TestScheduler_FiresOnSchedule(t *testing.T) {
	s := New(Config{ShutdownGrace: time.Second}, zap.NewNop())
	var runs atomic.Int32
	require.NoError(t, s.Register(Job{Name: "tick", Schedule: "@every 1s", Run: func(context.Context) error {
		runs.Add(1)
		return nil
	}}))

	s.Start()
	assert.Eventually(t, func() bool { return runs.Load() > 0 }, 3*time.Second, 50*time.Millisecond)
	s.Stop()
}
