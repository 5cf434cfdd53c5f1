package lock

import (
	"context"
	"time"

	"github.com/dropship/backend/internal/domain/shared"
	"github.com/dropship/backend/internal/infrastructure/config"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// New returns a Redis-backed locker when Redis is configured and reachable,
// and an in-process locker otherwise. The returned close func is never nil.
func New(cfg config.RedisConfig, logger *zap.Logger) (shared.Locker, func() error) {
	nop := func() error { return nil }

	addr := cfg.Addr()
	if addr == "" {
		logger.Info("redis not configured, using in-process sync lock")
		return NewMemoryLocker(), nop
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		logger.Warn("redis unavailable, falling back to in-process sync lock. "+
			"Concurrent replicas may run overlapping syncs.",
			zap.String("addr", addr),
			zap.Error(err),
		)
		return NewMemoryLocker(), nop
	}

	logger.Info("using redis sync lock", zap.String("addr", addr))
	l := NewRedisLocker(client, "")
	return l, l.Close
}
