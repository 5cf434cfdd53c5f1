package shared

import (
	"context"
	"time"
)

// Locker guards work that must not run concurrently, across processes when
// the implementation is backed by a shared store
type Locker interface {
	// TryLock acquires key for at most ttl without waiting. ok is false when
	// another holder owns the key. unlock releases only this holder's lock.
	TryLock(ctx context.Context, key string, ttl time.Duration) (unlock func(context.Context) error, ok bool, err error)
}
