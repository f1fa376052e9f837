package memstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Shashank23k/FLAM-QueueCTL/internal/models"
	"github.com/Shashank23k/FLAM-QueueCTL/internal/queueerr"
)

func newJob(id string, priority int, createdAt time.Time) *models.Job {
	return &models.Job{
		ID:          id,
		Command:     "true",
		State:       models.StatePending,
		MaxRetries:  3,
		CreatedAt:   createdAt,
		UpdatedAt:   createdAt,
		AvailableAt: createdAt,
		Priority:    priority,
	}
}

func TestClaimNextOrdersByPriorityThenCreatedAt(t *testing.T) {
	ctx := context.Background()
	s := New()
	base := time.Now().UTC()

	if err := s.Enqueue(ctx, newJob("low-prio-old", 5, base)); err != nil {
		t.Fatal(err)
	}
	if err := s.Enqueue(ctx, newJob("high-prio-new", 1, base.Add(time.Second))); err != nil {
		t.Fatal(err)
	}

	job, err := s.ClaimNext(ctx, "w1", base.Add(2*time.Second))
	if err != nil {
		t.Fatal(err)
	}
	if job == nil || job.ID != "high-prio-new" {
		t.Fatalf("expected high-prio-new claimed first, got %+v", job)
	}
}

func TestClaimNextSkipsNotYetAvailable(t *testing.T) {
	ctx := context.Background()
	s := New()
	now := time.Now().UTC()
	future := newJob("future", 0, now)
	future.AvailableAt = now.Add(time.Hour)
	if err := s.Enqueue(ctx, future); err != nil {
		t.Fatal(err)
	}

	job, err := s.ClaimNext(ctx, "w1", now)
	if err != nil {
		t.Fatal(err)
	}
	if job != nil {
		t.Fatalf("expected no job eligible yet, got %+v", job)
	}
}

func TestFinalizeSuccessClearsWorkerID(t *testing.T) {
	ctx := context.Background()
	s := New()
	now := time.Now().UTC()
	if err := s.Enqueue(ctx, newJob("j1", 0, now)); err != nil {
		t.Fatal(err)
	}
	if _, err := s.ClaimNext(ctx, "w1", now); err != nil {
		t.Fatal(err)
	}
	if err := s.FinalizeSuccess(ctx, "j1", "ok", now); err != nil {
		t.Fatal(err)
	}
	job, err := s.GetJob(ctx, "j1")
	if err != nil {
		t.Fatal(err)
	}
	if job.State != models.StateCompleted {
		t.Fatalf("expected completed, got %s", job.State)
	}
	if job.WorkerID != nil {
		t.Fatalf("expected worker_id cleared on success, got %v", *job.WorkerID)
	}
}

func TestDlqRetryRejectsNonDeadJob(t *testing.T) {
	ctx := context.Background()
	s := New()
	now := time.Now().UTC()
	if err := s.Enqueue(ctx, newJob("j1", 0, now)); err != nil {
		t.Fatal(err)
	}
	err := s.DlqRetry(ctx, "j1", now)
	if !errors.Is(err, queueerr.InvalidTransition) {
		t.Fatalf("expected InvalidTransition, got %v", err)
	}
}

func TestDlqRetryResetsAttempts(t *testing.T) {
	ctx := context.Background()
	s := New()
	now := time.Now().UTC()
	if err := s.Enqueue(ctx, newJob("j1", 0, now)); err != nil {
		t.Fatal(err)
	}
	if _, err := s.ClaimNext(ctx, "w1", now); err != nil {
		t.Fatal(err)
	}
	if err := s.FinalizeFailure(ctx, "j1", "boom", now, true, now); err != nil {
		t.Fatal(err)
	}
	if err := s.DlqRetry(ctx, "j1", now); err != nil {
		t.Fatal(err)
	}
	job, err := s.GetJob(ctx, "j1")
	if err != nil {
		t.Fatal(err)
	}
	if job.State != models.StatePending || job.Attempts != 0 {
		t.Fatalf("expected pending with 0 attempts, got state=%s attempts=%d", job.State, job.Attempts)
	}
}

func TestClaimNextConcurrentSingleWinner(t *testing.T) {
	ctx := context.Background()
	s := New()
	now := time.Now().UTC()
	if err := s.Enqueue(ctx, newJob("only", 0, now)); err != nil {
		t.Fatal(err)
	}

	const workers = 20
	results := make(chan *models.Job, workers)
	done := make(chan struct{})
	for i := 0; i < workers; i++ {
		go func(n int) {
			job, err := s.ClaimNext(ctx, "w", now)
			if err != nil {
				t.Error(err)
			}
			results <- job
			if n == workers-1 {
				close(done)
			}
		}(i)
	}
	<-done
	close(results)

	claims := 0
	for job := range results {
		if job != nil {
			claims++
		}
	}
	if claims != 1 {
		t.Fatalf("expected exactly one claim to win, got %d", claims)
	}
}
