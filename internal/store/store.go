// Package store defines the narrow, polymorphic persistence interface the
// queue engine is built against (§4.1, §9 "Polymorphic store"). Two
// implementations exist: sqlite (the durable, file-backed realization) and
// memstore (an in-memory fake used by the unit tests of the queue, worker,
// cli and dashboard packages and by its own concurrent-claim test, where a
// real file handle's locking would be slower to exercise and harder to
// assert on deterministically).
package store

import (
	"context"
	"time"

	"github.com/Shashank23k/FLAM-QueueCTL/internal/models"
)

// Store is the capability set the queue engine needs: atomic claim, the
// terminal transitions, config access, and the read paths the CLI/dashboard
// need. Every method that mutates state is expected to execute within a
// single write-exclusive transaction internally, per §4.1's contract.
type Store interface {
	// Enqueue inserts a new pending job. Returns after a durable commit.
	Enqueue(ctx context.Context, job *models.Job) error

	// ClaimNext atomically selects and transitions the highest-priority
	// eligible pending job to processing, or returns (nil, nil) if none is
	// eligible. Ties break on (priority ASC, created_at ASC).
	ClaimNext(ctx context.Context, workerID string, now time.Time) (*models.Job, error)

	// FinalizeSuccess transitions a processing job to completed.
	FinalizeSuccess(ctx context.Context, jobID string, output string, now time.Time) error

	// FinalizeFailure transitions a processing job to pending (rescheduled
	// with backoff) or dead, per the caller-supplied terminal state.
	FinalizeFailure(ctx context.Context, jobID string, errText string, now time.Time, dead bool, availableAt time.Time) error

	// DlqRetry transitions a dead job back to pending. Returns
	// queueerr.InvalidTransition if the job is not currently dead.
	DlqRetry(ctx context.Context, jobID string, now time.Time) error

	// GetJob returns one job by id, or queueerr.NotFound.
	GetJob(ctx context.Context, jobID string) (*models.Job, error)

	// ListJobs returns jobs ordered by created_at ASC, optionally filtered
	// by state.
	ListJobs(ctx context.Context, state models.State, filter bool) ([]*models.Job, error)

	// RecentJobs returns the n most recently updated jobs, newest first.
	RecentJobs(ctx context.Context, n int) ([]*models.Job, error)

	// Stats returns job counts per state.
	Stats(ctx context.Context) (models.Stats, error)

	// UpsertHeartbeat records worker liveness.
	UpsertHeartbeat(ctx context.Context, reg models.WorkerRegistration) error

	// ListWorkers returns all known worker registrations.
	ListWorkers(ctx context.Context) ([]models.WorkerRegistration, error)

	// GetConfig returns a config value, or ok=false if unset.
	GetConfig(ctx context.Context, key string) (value string, ok bool, err error)

	// SetConfig upserts a config value.
	SetConfig(ctx context.Context, key, value string) error

	// Close releases underlying resources.
	Close() error
}
