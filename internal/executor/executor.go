// Package executor runs a job's shell command and captures its outcome.
// It is an external collaborator with a narrow contract (§4.4): it does not
// retry, and it inherits the worker's environment.
package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"

	"github.com/Shashank23k/FLAM-QueueCTL/internal/queueerr"
)

// Result is the outcome of one command invocation.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// Run executes command as `sh -c command`, capturing stdout/stderr as text.
// When timeoutSeconds is non-nil and the command is still running after that
// many seconds, Run kills it and returns an error wrapping
// queueerr.ExecutorTimeout. Any other failure to spawn or communicate with
// the process wraps queueerr.ExecutorError. The executor does not retry.
func Run(ctx context.Context, command string, timeoutSeconds *int) (Result, error) {
	runCtx := ctx
	if timeoutSeconds != nil {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, time.Duration(*timeoutSeconds)*time.Second)
		defer cancel()
	}

	cmd := exec.CommandContext(runCtx, "sh", "-c", command)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()

	if timeoutSeconds != nil && errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return Result{Stdout: stdout.String(), Stderr: stderr.String()},
			fmt.Errorf("%w: command exceeded %ds timeout", queueerr.ExecutorTimeout, *timeoutSeconds)
	}

	if err == nil {
		return Result{ExitCode: 0, Stdout: stdout.String(), Stderr: stderr.String()}, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return Result{
			ExitCode: exitErr.ExitCode(),
			Stdout:   stdout.String(),
			Stderr:   stderr.String(),
		}, nil
	}

	return Result{Stdout: stdout.String(), Stderr: stderr.String()},
		fmt.Errorf("%w: %v", queueerr.ExecutorError, err)
}
