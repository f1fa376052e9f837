// Package supervisor starts and monitors N real worker processes, matching
// §5's "multi-process parallelism" requirement: workers coordinate only
// through the Store, never through shared Go memory, so each one is spawned
// as a genuine child OS process rather than a goroutine.
package supervisor

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/exec"
	"os/signal"
	"sync"
	"syscall"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
)

// WorkerRunArg is the hidden subcommand the supervisor re-execs the binary
// with; cmd/queuectl's main() dispatches it to worker.New(...).Run(...).
const WorkerRunArg = "__worker-run"

// Config controls how many workers to run and which store file they share.
type Config struct {
	// Count is the number of worker processes to supervise.
	Count int

	// DBPath is forwarded to each child via QUEUECTL_DB so they share the
	// same store.
	DBPath string
}

// Run spawns cfg.Count worker child processes and blocks until ctx is
// canceled or any one child exits on its own; either way it then forwards
// SIGTERM to every still-running child and waits for all of them to exit
// before returning.
func Run(ctx context.Context, cfg Config) error {
	if cfg.Count < 1 {
		cfg.Count = 1
	}

	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("supervisor: resolve executable: %w", err)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmds := make([]*exec.Cmd, cfg.Count)
	workerIDs := make([]string, cfg.Count)
	var wg sync.WaitGroup
	errs := make(chan error, cfg.Count)
	exited := make(chan struct{}, cfg.Count)

	for i := 0; i < cfg.Count; i++ {
		workerID := uuid.NewString()
		workerIDs[i] = workerID
		cmd := exec.Command(exe, WorkerRunArg, "--id", workerID)
		cmd.Env = append(os.Environ(), "QUEUECTL_DB="+cfg.DBPath)
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
		cmds[i] = cmd

		if err := cmd.Start(); err != nil {
			return fmt.Errorf("supervisor: start %s: %w", workerID, err)
		}
		log.Printf("[supervisor] started %s (pid %d)", workerID, cmd.Process.Pid)

		wg.Add(1)
		go func(id string, c *exec.Cmd) {
			defer wg.Done()
			if err := c.Wait(); err != nil {
				errs <- fmt.Errorf("%s: %w", id, err)
			}
			log.Printf("[supervisor] %s exited", id)
			exited <- struct{}{}
		}(workerID, cmd)
	}

	// Unblock on whichever comes first: a shutdown signal, or any worker
	// exiting on its own (e.g. a StoreFatal it couldn't recover from).
	select {
	case <-ctx.Done():
		log.Printf("[supervisor] shutdown signal received, stopping workers")
	case <-exited:
		log.Printf("[supervisor] a worker exited unexpectedly, stopping the rest")
	}
	for i, cmd := range cmds {
		if cmd.ProcessState != nil {
			continue
		}
		if err := cmd.Process.Signal(syscall.SIGTERM); err != nil {
			log.Printf("[supervisor] signal %s: %v", workerIDs[i], err)
		}
	}

	wg.Wait()
	close(errs)

	var result *multierror.Error
	for err := range errs {
		result = multierror.Append(result, err)
	}
	return result.ErrorOrNil()
}
