package supplier

import (
	"errors"
	"fmt"
)

// Transport and credential errors. Transient errors may be retried by the
// caller on a later pass; configuration errors are fatal for a whole pass.
var (
	ErrNotConfigured   = errors.New("supplier: client not configured")
	ErrAuthFailed      = errors.New("supplier: authentication failed")
	ErrUnavailable     = errors.New("supplier: platform temporarily unavailable")
	ErrRateLimited     = errors.New("supplier: rate limited")
	ErrInvalidResponse = errors.New("supplier: invalid platform response")
	ErrRejected        = errors.New("supplier: request rejected")
	ErrProductNotFound = errors.New("supplier: product not found")
	ErrOrderNotFound   = errors.New("supplier: order not found")
)

// BusinessError is a rejection reported by the supplier in its response
// envelope (as opposed to a transport failure).
type BusinessError struct {
	Code    int
	Message string
}

// Error implements the error interface
func (e *BusinessError) Error() string {
	return fmt.Sprintf("supplier: code %d: %s", e.Code, e.Message)
}

// Is reports BusinessError as ErrRejected so callers can match on the class.
func (e *BusinessError) Is(target error) bool {
	return target == ErrRejected
}

// IsTransient reports whether err is worth retrying on a later attempt.
func IsTransient(err error) bool {
	return errors.Is(err, ErrUnavailable) || errors.Is(err, ErrRateLimited)
}

// IsFatal reports whether err invalidates every further call in the same
// operation (missing or rejected credentials).
func IsFatal(err error) bool {
	return errors.Is(err, ErrNotConfigured) || errors.Is(err, ErrAuthFailed)
}
