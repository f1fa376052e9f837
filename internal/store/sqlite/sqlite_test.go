package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/Shashank23k/FLAM-QueueCTL/internal/models"
	"github.com/Shashank23k/FLAM-QueueCTL/internal/queueerr"
)

func TestEnqueueSQLShape(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	mock.ExpectExec(`INSERT INTO jobs\(id, command, state, attempts, max_retries, created_at, updated_at, available_at, priority, run_timeout\)`).
		WithArgs("j1", "echo hi", models.StatePending, 0, 3, sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), 0, nil).
		WillReturnResult(sqlmock.NewResult(1, 1))

	s := &Store{db: db}
	now := time.Now().UTC()
	err = s.Enqueue(context.Background(), &models.Job{
		ID: "j1", Command: "echo hi", MaxRetries: 3,
		CreatedAt: now, UpdatedAt: now, AvailableAt: now,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestGetConfigNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	mock.ExpectQuery(`SELECT value FROM config WHERE key = \?`).
		WithArgs("backoff_base").
		WillReturnRows(sqlmock.NewRows([]string{"value"}))

	s := &Store{db: db}
	_, ok, err := s.GetConfig(context.Background(), "backoff_base")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatal("expected ok=false for missing key")
	}
}

func TestSetConfigUpsert(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	mock.ExpectExec(`INSERT INTO config\(key, value\) VALUES \(\?, \?\)`).
		WithArgs("backoff_base", "3").
		WillReturnResult(sqlmock.NewResult(0, 1))

	s := &Store{db: db}
	if err := s.SetConfig(context.Background(), "backoff_base", "3"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

// TestLifecycleAgainstRealFile exercises the full enqueue -> claim ->
// finalize -> dlq_retry cycle against an actual SQLite file, since the
// begin_immediate claim path is load-bearing enough to want more than a
// mocked query shape.
func TestLifecycleAgainstRealFile(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "queue.db")
	s, err := Open(dbPath, 30*time.Second)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()

	ctx := context.Background()
	now := time.Now().UTC()

	if err := s.Enqueue(ctx, &models.Job{
		ID: "j1", Command: "true", MaxRetries: 3,
		CreatedAt: now, UpdatedAt: now, AvailableAt: now,
	}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	job, err := s.ClaimNext(ctx, "worker-1", now)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if job == nil || job.ID != "j1" {
		t.Fatalf("expected to claim j1, got %+v", job)
	}
	if job.State != models.StateProcessing {
		t.Fatalf("expected processing, got %s", job.State)
	}

	// No other job eligible now.
	again, err := s.ClaimNext(ctx, "worker-2", now)
	if err != nil {
		t.Fatalf("claim again: %v", err)
	}
	if again != nil {
		t.Fatalf("expected no second claim, got %+v", again)
	}

	if err := s.FinalizeFailure(ctx, "j1", "boom", now, false, now.Add(2*time.Second)); err != nil {
		t.Fatalf("finalize_failure: %v", err)
	}

	back, err := s.GetJob(ctx, "j1")
	if err != nil {
		t.Fatalf("get_job: %v", err)
	}
	if back.State != models.StatePending || back.Attempts != 1 {
		t.Fatalf("expected pending/attempts=1, got state=%s attempts=%d", back.State, back.Attempts)
	}

	claimed, err := s.ClaimNext(ctx, "worker-1", now.Add(3*time.Second))
	if err != nil {
		t.Fatalf("reclaim: %v", err)
	}
	if claimed == nil {
		t.Fatal("expected reclaim to succeed after availability window")
	}

	if err := s.FinalizeSuccess(ctx, "j1", "done", now.Add(4*time.Second)); err != nil {
		t.Fatalf("finalize_success: %v", err)
	}
	done, err := s.GetJob(ctx, "j1")
	if err != nil {
		t.Fatal(err)
	}
	if done.State != models.StateCompleted || done.WorkerID != nil {
		t.Fatalf("expected completed with worker_id cleared, got state=%s worker_id=%v", done.State, done.WorkerID)
	}

	if err := s.DlqRetry(ctx, "j1", now); !errors.Is(err, queueerr.InvalidTransition) {
		t.Fatalf("expected InvalidTransition retrying a completed job, got %v", err)
	}
}

