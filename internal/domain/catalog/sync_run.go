package catalog

import (
	"context"
	"time"

	"github.com/dropship/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// SyncPhase is the stage a sync pass has reached
type SyncPhase string

const (
	SyncPhaseListing     SyncPhase = "listing"
	SyncPhaseDetailing   SyncPhase = "detailing"
	SyncPhasePricing     SyncPhase = "pricing"
	SyncPhaseUpserting   SyncPhase = "upserting"
	SyncPhaseReconciling SyncPhase = "reconciling"
	SyncPhaseDone        SyncPhase = "done"
)

// SyncRunStatus is the outcome of a sync pass
type SyncRunStatus string

const (
	SyncRunRunning SyncRunStatus = "RUNNING"
	SyncRunSuccess SyncRunStatus = "SUCCESS"
	SyncRunPartial SyncRunStatus = "PARTIAL"
	SyncRunFailed  SyncRunStatus = "FAILED"
)

// SyncRun records one catalog sync or reprice pass
type SyncRun struct {
	ID         uuid.UUID
	Kind       string
	Phase      SyncPhase
	Status     SyncRunStatus
	Scope      string
	Synced     int
	Updated    int
	Unchanged  int
	Hidden     int
	Skipped    int
	Failed     int
	Error      string
	StartedAt  time.Time
	FinishedAt *time.Time
}

// NewSyncRun starts a run record
func NewSyncRun(kind, scope string) *SyncRun {
	return &SyncRun{
		ID:        uuid.New(),
		Kind:      kind,
		Phase:     SyncPhaseListing,
		Status:    SyncRunRunning,
		Scope:     scope,
		StartedAt: time.Now(),
	}
}

// Finish stamps the run with its final status
func (r *SyncRun) Finish(status SyncRunStatus, errMsg string) {
	now := time.Now()
	r.Status = status
	r.Error = errMsg
	r.FinishedAt = &now
	if status != SyncRunFailed {
		r.Phase = SyncPhaseDone
	}
}

// Duration returns how long the run took, or has taken so far
func (r *SyncRun) Duration() time.Duration {
	if r.FinishedAt == nil {
		return time.Since(r.StartedAt)
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// SyncRunRepository persists sync run records
type SyncRunRepository interface {
	Save(ctx context.Context, run *SyncRun) error
	FindRecent(ctx context.Context, filter shared.Filter) ([]SyncRun, int64, error)
}

// AggregateTypeSyncRun is the aggregate type of sync run events
const AggregateTypeSyncRun = "SyncRun"

// EventTypeSyncRunFinished is published when a sync or reprice pass ends
const EventTypeSyncRunFinished = "SyncRunFinished"

// SyncRunFinishedEvent carries the outcome of a finished pass
type SyncRunFinishedEvent struct {
	shared.BaseDomainEvent
	Kind     string        `json:"kind"`
	Status   SyncRunStatus `json:"status"`
	Synced   int           `json:"synced"`
	Updated  int           `json:"updated"`
	Hidden   int           `json:"hidden"`
	Failed   int           `json:"failed"`
	Duration time.Duration `json:"duration"`
}

// NewSyncRunFinishedEvent creates a SyncRunFinishedEvent
func NewSyncRunFinishedEvent(r *SyncRun) *SyncRunFinishedEvent {
	return &SyncRunFinishedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeSyncRunFinished, AggregateTypeSyncRun, r.ID),
		Kind:            r.Kind,
		Status:          r.Status,
		Synced:          r.Synced,
		Updated:         r.Updated,
		Hidden:          r.Hidden,
		Failed:          r.Failed,
		Duration:        r.Duration(),
	}
}
