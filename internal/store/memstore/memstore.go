// Package memstore is an in-memory store.Store used by concurrency
// property tests, where asserting on interleavings through a real file
// handle would be slower and harder to pin down deterministically.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Shashank23k/FLAM-QueueCTL/internal/models"
	"github.com/Shashank23k/FLAM-QueueCTL/internal/queueerr"
)

// Store is a mutex-guarded map of jobs. The mutex stands in for SQLite's
// write-exclusive begin_immediate: every mutating method holds it for its
// entire body, so at most one such call proceeds at a time, matching §4.1's
// cross-process invariant within a single process.
type Store struct {
	mu      sync.Mutex
	jobs    map[string]*models.Job
	workers map[string]models.WorkerRegistration
	config  map[string]string
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		jobs:    make(map[string]*models.Job),
		workers: make(map[string]models.WorkerRegistration),
		config:  make(map[string]string),
	}
}

func clone(j *models.Job) *models.Job {
	cp := *j
	return &cp
}

func (s *Store) Enqueue(ctx context.Context, job *models.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[job.ID]; exists {
		return fmt.Errorf("memstore: enqueue %s: %w", job.ID, queueerr.BadInput)
	}
	s.jobs[job.ID] = clone(job)
	return nil
}

func (s *Store) ClaimNext(ctx context.Context, workerID string, now time.Time) (*models.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var best *models.Job
	for _, j := range s.jobs {
		if j.State != models.StatePending {
			continue
		}
		if j.AvailableAt.After(now) {
			continue
		}
		if best == nil ||
			j.Priority < best.Priority ||
			(j.Priority == best.Priority && j.CreatedAt.Before(best.CreatedAt)) {
			best = j
		}
	}
	if best == nil {
		return nil, nil
	}

	best.State = models.StateProcessing
	best.WorkerID = &workerID
	started := now
	best.StartedAt = &started
	best.UpdatedAt = now
	return clone(best), nil
}

func (s *Store) FinalizeSuccess(ctx context.Context, jobID string, output string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return fmt.Errorf("memstore: finalize_success %s: %w", jobID, queueerr.NotFound)
	}
	job.State = models.StateCompleted
	job.Output = &output
	job.FinishedAt = &now
	job.UpdatedAt = now
	job.WorkerID = nil
	return nil
}

func (s *Store) FinalizeFailure(ctx context.Context, jobID string, errText string, now time.Time, dead bool, availableAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return fmt.Errorf("memstore: finalize_failure %s: %w", jobID, queueerr.NotFound)
	}
	job.Attempts++
	job.LastError = &errText
	job.UpdatedAt = now
	job.WorkerID = nil
	job.StartedAt = nil
	if dead {
		job.State = models.StateDead
		job.FinishedAt = &now
	} else {
		job.State = models.StatePending
		job.AvailableAt = availableAt
	}
	return nil
}

func (s *Store) DlqRetry(ctx context.Context, jobID string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return fmt.Errorf("memstore: dlq_retry %s: %w", jobID, queueerr.NotFound)
	}
	if job.State != models.StateDead {
		return fmt.Errorf("memstore: dlq_retry %s: %w", jobID, queueerr.InvalidTransition)
	}
	job.State = models.StatePending
	job.Attempts = 0
	job.AvailableAt = now
	job.UpdatedAt = now
	job.LastError = nil
	job.FinishedAt = nil
	return nil
}

func (s *Store) GetJob(ctx context.Context, jobID string) (*models.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return nil, fmt.Errorf("memstore: get_job %s: %w", jobID, queueerr.NotFound)
	}
	return clone(job), nil
}

func (s *Store) ListJobs(ctx context.Context, state models.State, filter bool) ([]*models.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Job
	for _, j := range s.jobs {
		if filter && j.State != state {
			continue
		}
		out = append(out, clone(j))
	}
	sort.Slice(out, func(i, k int) bool { return out[i].CreatedAt.Before(out[k].CreatedAt) })
	return out, nil
}

func (s *Store) RecentJobs(ctx context.Context, n int) ([]*models.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Job
	for _, j := range s.jobs {
		out = append(out, clone(j))
	}
	sort.Slice(out, func(i, k int) bool { return out[i].UpdatedAt.After(out[k].UpdatedAt) })
	if len(out) > n {
		out = out[:n]
	}
	return out, nil
}

func (s *Store) Stats(ctx context.Context) (models.Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var stats models.Stats
	for _, j := range s.jobs {
		switch j.State {
		case models.StatePending:
			stats.Pending++
		case models.StateProcessing:
			stats.Processing++
		case models.StateCompleted:
			stats.Completed++
		case models.StateDead:
			stats.Dead++
		}
		stats.Total++
	}
	return stats, nil
}

func (s *Store) UpsertHeartbeat(ctx context.Context, reg models.WorkerRegistration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.workers[reg.ID] = reg
	return nil
}

func (s *Store) ListWorkers(ctx context.Context) ([]models.WorkerRegistration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.WorkerRegistration
	for _, w := range s.workers {
		out = append(out, w)
	}
	sort.Slice(out, func(i, k int) bool { return out[i].StartedAt.Before(out[k].StartedAt) })
	return out, nil
}

func (s *Store) GetConfig(ctx context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.config[key]
	return v, ok, nil
}

func (s *Store) SetConfig(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.config[key] = value
	return nil
}

func (s *Store) Close() error { return nil }
