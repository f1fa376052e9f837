// Package worker is the single-process claim/execute/finalize loop (§4.3).
// One Worker value is one OS process's worth of work; the supervisor
// package is what re-execs the binary to get several of them running
// concurrently.
package worker

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/Shashank23k/FLAM-QueueCTL/internal/executor"
	"github.com/Shashank23k/FLAM-QueueCTL/internal/models"
	"github.com/Shashank23k/FLAM-QueueCTL/internal/queue"
)

// Config tunes polling and liveness behavior.
type Config struct {
	// ID identifies this worker in worker_id columns and the workers table.
	// Generated from the OS PID if empty.
	ID string

	// HeartbeatInterval is how often the worker upserts its liveness row.
	HeartbeatInterval time.Duration

	// PollIdleInterval is how long the worker sleeps after finding no
	// eligible job before polling again.
	PollIdleInterval time.Duration
}

// DefaultConfig returns a 2s heartbeat interval and a half-second idle
// poll interval.
func DefaultConfig() Config {
	return Config{
		HeartbeatInterval: 2 * time.Second,
		PollIdleInterval:  500 * time.Millisecond,
	}
}

// Worker runs the claim loop until its context is canceled.
type Worker struct {
	cfg    Config
	engine *queue.Engine
}

// New returns a Worker over engine. cfg.ID is defaulted from the PID when
// empty.
func New(engine *queue.Engine, cfg Config) *Worker {
	if cfg.ID == "" {
		cfg.ID = fmt.Sprintf("worker-%d", os.Getpid())
	}
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = DefaultConfig().HeartbeatInterval
	}
	if cfg.PollIdleInterval <= 0 {
		cfg.PollIdleInterval = DefaultConfig().PollIdleInterval
	}
	return &Worker{cfg: cfg, engine: engine}
}

// Run loops claim -> execute -> finalize until ctx is canceled, or until a
// finalize call fails, in which case it returns that error. Shutdown is
// cooperative: the loop only checks ctx between iterations, so an
// in-flight command is never interrupted mid-execution by a shutdown
// signal alone (§5's graceful shutdown semantics) — only its own
// run_timeout can cut it short.
func (w *Worker) Run(ctx context.Context) error {
	log.Printf("[worker %s] starting", w.cfg.ID)
	defer log.Printf("[worker %s] stopped", w.cfg.ID)

	lastHeartbeat := time.Time{}

	for {
		select {
		case <-ctx.Done():
			w.stop()
			return nil
		default:
		}

		now := time.Now().UTC()
		if now.Sub(lastHeartbeat) >= w.cfg.HeartbeatInterval {
			if err := w.heartbeat(ctx, "idle"); err != nil {
				log.Printf("[worker %s] heartbeat failed: %v", w.cfg.ID, err)
			}
			lastHeartbeat = now
		}

		job, err := w.engine.Claim(ctx, w.cfg.ID)
		if err != nil {
			log.Printf("[worker %s] claim failed: %v", w.cfg.ID, err)
			if !sleep(ctx, w.pollIdleInterval(ctx)) {
				w.stop()
				return nil
			}
			continue
		}
		if job == nil {
			if !sleep(ctx, w.pollIdleInterval(ctx)) {
				w.stop()
				return nil
			}
			continue
		}

		if err := w.process(ctx, job); err != nil {
			return err
		}
	}
}

// stop writes the terminal heartbeat §4.3 requires on a shutdown signal:
// status='stopped' so the dashboard stops counting this worker as live.
func (w *Worker) stop() {
	if err := w.heartbeat(context.Background(), "stopped"); err != nil {
		log.Printf("[worker %s] stopped heartbeat failed: %v", w.cfg.ID, err)
	}
}

// pollIdleInterval reads poll_idle_secs from config on every empty claim
// (§4.3 step 3), falling back to cfg.PollIdleInterval when the key is
// absent or not a valid float.
func (w *Worker) pollIdleInterval(ctx context.Context) time.Duration {
	v, ok, err := w.engine.Store.GetConfig(ctx, models.ConfigPollIdleSecs)
	if err != nil || !ok {
		return w.cfg.PollIdleInterval
	}
	secs, err := strconv.ParseFloat(v, 64)
	if err != nil || secs <= 0 {
		return w.cfg.PollIdleInterval
	}
	return time.Duration(secs * float64(time.Second))
}

// process runs one claimed job and finalizes it. The job runs and is
// finalized on a context that ignores ctx's cancellation, so a shutdown
// neither kills the command nor drops its outcome. A finalize error is
// returned rather than swallowed.
func (w *Worker) process(ctx context.Context, job *models.Job) error {
	jobCtx := context.WithoutCancel(ctx)
	if err := w.heartbeat(jobCtx, "processing:"+job.ID); err != nil {
		log.Printf("[worker %s] heartbeat failed: %v", w.cfg.ID, err)
	}

	log.Printf("[worker %s] running job %s (attempt %d)", w.cfg.ID, job.ID, job.Attempts+1)
	result, err := executor.Run(jobCtx, job.Command, job.RunTimeout)

	switch {
	case err != nil:
		log.Printf("[worker %s] job %s errored: %v", w.cfg.ID, job.ID, err)
		if ferr := w.engine.FinalizeFailure(jobCtx, job, err.Error()); ferr != nil {
			return fmt.Errorf("worker %s: finalize_failure %s: %w", w.cfg.ID, job.ID, ferr)
		}
	case result.ExitCode != 0:
		msg := fmt.Sprintf("exit code %d: %s", result.ExitCode, result.Stderr)
		log.Printf("[worker %s] job %s failed: %s", w.cfg.ID, job.ID, msg)
		if ferr := w.engine.FinalizeFailure(jobCtx, job, msg); ferr != nil {
			return fmt.Errorf("worker %s: finalize_failure %s: %w", w.cfg.ID, job.ID, ferr)
		}
	default:
		log.Printf("[worker %s] job %s completed", w.cfg.ID, job.ID)
		if ferr := w.engine.FinalizeSuccess(jobCtx, job.ID, result.Stdout); ferr != nil {
			return fmt.Errorf("worker %s: finalize_success %s: %w", w.cfg.ID, job.ID, ferr)
		}
	}
	return nil
}

func (w *Worker) heartbeat(ctx context.Context, status string) error {
	now := time.Now().UTC()
	return w.engine.Store.UpsertHeartbeat(ctx, models.WorkerRegistration{
		ID:          w.cfg.ID,
		PID:         os.Getpid(),
		StartedAt:   now,
		HeartbeatAt: now,
		Status:      status,
	})
}

// sleep waits for d or until ctx is canceled, reporting which happened
// first so callers can exit promptly on shutdown instead of finishing a
// full idle sleep.
func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
