package catalogsync

import (
	"github.com/dropship/backend/internal/domain/catalog"
	"github.com/google/uuid"
)

// Skip is an item left alone by a business rule. Skips are not errors.
type Skip struct {
	ExternalRef string `json:"external_ref"`
	Reason      string `json:"reason"`
}

// ItemError is a per-item failure that did not abort the pass
type ItemError struct {
	ExternalRef string            `json:"external_ref"`
	Phase       catalog.SyncPhase `json:"phase"`
	Error       string            `json:"error"`
}

// Result summarizes a sync or reprice pass
type Result struct {
	RunID      uuid.UUID   `json:"run_id"`
	Synced     int         `json:"synced"`
	Updated    int         `json:"updated"`
	Unchanged  int         `json:"unchanged"`
	Hidden     int         `json:"hidden"`
	Reappeared int         `json:"reappeared"`
	Pages      int         `json:"pages"`
	Reconciled bool        `json:"reconciled"`
	Skipped    []Skip      `json:"skipped"`
	Errors     []ItemError `json:"errors"`
}

func (r *Result) skip(ref, reason string) {
	r.Skipped = append(r.Skipped, Skip{ExternalRef: ref, Reason: reason})
}

func (r *Result) fail(ref string, phase catalog.SyncPhase, err error) {
	r.Errors = append(r.Errors, ItemError{ExternalRef: ref, Phase: phase, Error: err.Error()})
}

// status maps the outcome onto a run status
func (r *Result) status() catalog.SyncRunStatus {
	if len(r.Errors) > 0 {
		return catalog.SyncRunPartial
	}
	return catalog.SyncRunSuccess
}

// record copies the counters onto the persisted run
func (r *Result) record(run *catalog.SyncRun) {
	run.Synced = r.Synced
	run.Updated = r.Updated
	run.Unchanged = r.Unchanged
	run.Hidden = r.Hidden
	run.Skipped = len(r.Skipped)
	run.Failed = len(r.Errors)
}
