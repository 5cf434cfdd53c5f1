package catalogsync

import "errors"

var (
	// ErrSyncInProgress is returned when another pass holds the lock for
	// the same scope
	ErrSyncInProgress = errors.New("catalogsync: a pass is already running for this scope")

	// ErrListingFailed is returned when not a single page could be listed
	ErrListingFailed = errors.New("catalogsync: supplier listing failed")
)
