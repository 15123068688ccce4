package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound signals that the requested record does not exist.
var ErrNotFound = errors.New("run record not found")

// RunStatus is the lifecycle state of a scrape run.
type RunStatus string

// Run statuses.
const (
	RunRunning RunStatus = "running"
	RunSuccess RunStatus = "success"
	RunError   RunStatus = "error"
)

// Run models one scrape run for API responses.
type Run struct {
	// ID is the run identifier shared with progress events.
	ID uuid.UUID
	// StartedAt captures when the run was first marked running.
	StartedAt time.Time
	// FinishedAt is nil until the run is marked success/error.
	FinishedAt *time.Time
	// Status is running/success/error.
	Status RunStatus
	// Listings counts entries extracted by the run.
	Listings int64
	// ErrorMessage optionally stores the final failure reason.
	ErrorMessage *string
}

// StepStats captures per-step aggregation for a run.
type StepStats struct {
	// RunID is the owning run.
	RunID uuid.UUID
	// Step is the pipeline or provisioning step label.
	Step string
	// StatusClass groups HTTP responses for probe/render steps; empty for
	// steps without an HTTP leg.
	StatusClass string
	// LastUpdate captures the timestamp of the most recent aggregate.
	LastUpdate time.Time
	// Completions counts finished step executions.
	Completions int64
	// BytesTotal accumulates document bytes handled by the step.
	BytesTotal int64
	// Listings accumulates entries the step extracted.
	Listings int64
}

// RunRepository persists incremental run progress.
type RunRepository interface {
	// UpsertRunStart inserts (or idempotently updates) the started_at timestamp.
	UpsertRunStart(ctx context.Context, runID uuid.UUID, startedAt time.Time) error
	// CompleteRun marks the run finished with the provided status and error.
	CompleteRun(ctx context.Context, runID uuid.UUID, finishedAt time.Time, status RunStatus, errMsg *string) error
	// UpsertStepStats applies completion/byte/listing deltas per (run, step, statusClass).
	UpsertStepStats(
		ctx context.Context,
		runID uuid.UUID,
		step string,
		statusClass string,
		deltaCompletions int64,
		deltaBytes int64,
		deltaListings int64,
		at time.Time,
	) error

	// GetRun loads a single run or returns ErrNotFound.
	GetRun(ctx context.Context, runID uuid.UUID) (Run, error)
	// ListRuns returns runs filtered by optional status plus limit/offset,
	// newest first.
	ListRuns(ctx context.Context, status *RunStatus, limit, offset int) ([]Run, error)
	// ListRunSteps returns aggregated step stats for one run.
	ListRunSteps(ctx context.Context, runID uuid.UUID, limit, offset int) ([]StepStats, error)
}
