package worker

import (
	"context"
	"testing"
	"time"

	"github.com/Shashank23k/FLAM-QueueCTL/internal/models"
	"github.com/Shashank23k/FLAM-QueueCTL/internal/queue"
	"github.com/Shashank23k/FLAM-QueueCTL/internal/store/memstore"
)

func TestWorkerProcessesOneJobThenStopsOnCancel(t *testing.T) {
	ms := memstore.New()
	engine := queue.New(ms)

	zero := 0
	if _, err := engine.Enqueue(context.Background(), models.Spec{Command: "true", MaxRetries: &zero}); err != nil {
		t.Fatal(err)
	}

	w := New(engine, Config{ID: "test-worker", HeartbeatInterval: time.Hour, PollIdleInterval: 10 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	deadline := time.After(2 * time.Second)
	for {
		stats, err := ms.Stats(context.Background())
		if err != nil {
			t.Fatal(err)
		}
		if stats.Completed == 1 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("timed out waiting for job to complete")
		case <-time.After(10 * time.Millisecond):
		}
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("unexpected error from Run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop after context cancellation")
	}
}

func TestWorkerWritesStoppedHeartbeatOnShutdown(t *testing.T) {
	ms := memstore.New()
	engine := queue.New(ms)
	w := New(engine, Config{ID: "stop-worker", HeartbeatInterval: time.Hour, PollIdleInterval: 10 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop after context cancellation")
	}

	workers, err := ms.ListWorkers(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(workers) != 1 || workers[0].Status != "stopped" {
		t.Fatalf("expected status=stopped after shutdown, got %+v", workers)
	}
}

func TestWorkerHeartbeatsProcessingWithJobID(t *testing.T) {
	ms := memstore.New()
	engine := queue.New(ms)

	id, err := engine.Enqueue(context.Background(), models.Spec{Command: "sleep 1"})
	if err != nil {
		t.Fatal(err)
	}

	w := New(engine, Config{ID: "proc-worker", HeartbeatInterval: time.Microsecond, PollIdleInterval: 10 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	// Observe the row while the job is running: once Run returns, the
	// worker has overwritten it with status=stopped.
	want := "processing:" + id
	found := false
	var workers []models.WorkerRegistration
	deadline := time.Now().Add(2 * time.Second)
	for !found && time.Now().Before(deadline) {
		workers, err = ms.ListWorkers(context.Background())
		if err != nil {
			t.Fatal(err)
		}
		for _, rec := range workers {
			if rec.ID == "proc-worker" && rec.Status == want {
				found = true
			}
		}
		if !found {
			time.Sleep(5 * time.Millisecond)
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("worker did not stop after context cancellation")
	}
	if !found {
		t.Fatalf("expected a %q heartbeat, got %+v", want, workers)
	}
}

func TestWorkerUsesPollIdleSecsFromConfig(t *testing.T) {
	ms := memstore.New()
	engine := queue.New(ms)
	if err := ms.SetConfig(context.Background(), models.ConfigPollIdleSecs, "0.01"); err != nil {
		t.Fatal(err)
	}
	w := New(engine, Config{ID: "poll-worker", HeartbeatInterval: time.Hour, PollIdleInterval: time.Hour})

	got := w.pollIdleInterval(context.Background())
	if got != 10*time.Millisecond {
		t.Fatalf("expected 10ms from poll_idle_secs=0.01, got %v", got)
	}
}

func TestWorkerFallsBackOnMalformedPollIdleSecs(t *testing.T) {
	ms := memstore.New()
	engine := queue.New(ms)
	if err := ms.SetConfig(context.Background(), models.ConfigPollIdleSecs, "not-a-number"); err != nil {
		t.Fatal(err)
	}
	w := New(engine, Config{ID: "poll-worker", HeartbeatInterval: time.Hour, PollIdleInterval: 42 * time.Millisecond})

	got := w.pollIdleInterval(context.Background())
	if got != 42*time.Millisecond {
		t.Fatalf("expected fallback to cfg.PollIdleInterval=42ms, got %v", got)
	}
}

func TestWorkerRegistersHeartbeat(t *testing.T) {
	ms := memstore.New()
	engine := queue.New(ms)
	w := New(engine, Config{ID: "hb-worker", HeartbeatInterval: time.Microsecond, PollIdleInterval: 10 * time.Millisecond})

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_ = w.Run(ctx)

	workers, err := ms.ListWorkers(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(workers) != 1 || workers[0].ID != "hb-worker" {
		t.Fatalf("expected one registered worker hb-worker, got %+v", workers)
	}
}
