// Package queue is the orchestration layer between the CLI/worker surface
// and a store.Store: it owns id generation, default resolution, and the
// backoff/dead-letter decision that the store itself stays agnostic to.
package queue

import (
	"context"
	"fmt"
	"strconv"

	"github.com/google/uuid"

	"github.com/Shashank23k/FLAM-QueueCTL/internal/clock"
	"github.com/Shashank23k/FLAM-QueueCTL/internal/models"
	"github.com/Shashank23k/FLAM-QueueCTL/internal/queueerr"
	"github.com/Shashank23k/FLAM-QueueCTL/internal/store"
)

// Engine wires a store.Store to a clock, resolving config-driven defaults
// on every call rather than caching them, so `config set` takes effect on
// the next enqueue/failure without restarting anything.
type Engine struct {
	Store store.Store
	Clock clock.Clock
}

// New returns an Engine over the given store using the real wall clock.
func New(s store.Store) *Engine {
	return &Engine{Store: s, Clock: clock.Real{}}
}

// Enqueue validates and inserts a new job, returning its id.
func (e *Engine) Enqueue(ctx context.Context, spec models.Spec) (string, error) {
	if spec.Command == "" {
		return "", fmt.Errorf("queue: enqueue: %w: command must not be empty", queueerr.BadInput)
	}

	id := spec.ID
	if id == "" {
		id = uuid.NewString()
	}

	maxRetries := spec.MaxRetries
	if maxRetries == nil {
		n, err := e.intConfig(ctx, models.ConfigMaxRetriesDefault, 3)
		if err != nil {
			return "", err
		}
		maxRetries = &n
	}

	now := e.Clock.Now()
	availableAt := now
	if spec.AvailableAt != nil {
		availableAt = *spec.AvailableAt
	}

	job := &models.Job{
		ID:          id,
		Command:     spec.Command,
		State:       models.StatePending,
		MaxRetries:  *maxRetries,
		CreatedAt:   now,
		UpdatedAt:   now,
		AvailableAt: availableAt,
		Priority:    spec.Priority,
		RunTimeout:  spec.RunTimeout,
	}

	if err := e.Store.Enqueue(ctx, job); err != nil {
		return "", fmt.Errorf("queue: enqueue: %w", err)
	}
	return id, nil
}

// Claim atomically hands the next eligible job to workerID, or returns
// (nil, nil) when the queue is empty or everything is scheduled for later.
func (e *Engine) Claim(ctx context.Context, workerID string) (*models.Job, error) {
	job, err := e.Store.ClaimNext(ctx, workerID, e.Clock.Now())
	if err != nil {
		return nil, fmt.Errorf("queue: claim: %w", err)
	}
	return job, nil
}

// FinalizeSuccess records a job's successful completion.
func (e *Engine) FinalizeSuccess(ctx context.Context, jobID string, output string) error {
	if err := e.Store.FinalizeSuccess(ctx, jobID, output, e.Clock.Now()); err != nil {
		return fmt.Errorf("queue: finalize_success: %w", err)
	}
	return nil
}

// FinalizeFailure records a job's failure, deciding between a backoff
// reschedule and moving it to the dead-letter queue: dead once
// attempts+1 > max_retries, otherwise pending again after
// backoff_base^(attempts+1) seconds (§4.2, no jitter, no cap).
func (e *Engine) FinalizeFailure(ctx context.Context, job *models.Job, errText string) error {
	now := e.Clock.Now()
	attempts := job.Attempts + 1

	if attempts > job.MaxRetries {
		if err := e.Store.FinalizeFailure(ctx, job.ID, errText, now, true, now); err != nil {
			return fmt.Errorf("queue: finalize_failure: %w", err)
		}
		return nil
	}

	base := e.intConfigLenient(ctx, models.ConfigBackoffBase, 2)
	delay := clock.Backoff(base, attempts)
	availableAt := now.Add(delay)

	if err := e.Store.FinalizeFailure(ctx, job.ID, errText, now, false, availableAt); err != nil {
		return fmt.Errorf("queue: finalize_failure: %w", err)
	}
	return nil
}

// DlqRetry requeues a dead job for another attempt.
func (e *Engine) DlqRetry(ctx context.Context, jobID string) error {
	if err := e.Store.DlqRetry(ctx, jobID, e.Clock.Now()); err != nil {
		return fmt.Errorf("queue: dlq_retry: %w", err)
	}
	return nil
}

func (e *Engine) intConfig(ctx context.Context, key string, fallback int) (int, error) {
	v, ok, err := e.Store.GetConfig(ctx, key)
	if err != nil {
		return 0, fmt.Errorf("queue: config %s: %w", key, err)
	}
	if !ok {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("queue: config %s: %w: not an integer: %q", key, queueerr.BadInput, v)
	}
	return n, nil
}

// intConfigLenient reads an integer config value, falling back to fallback
// on a missing or malformed entry instead of erroring (§4.2: backoff_base
// falls back to 2 rather than wedging a job in processing).
func (e *Engine) intConfigLenient(ctx context.Context, key string, fallback int) int {
	v, ok, err := e.Store.GetConfig(ctx, key)
	if err != nil || !ok {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
