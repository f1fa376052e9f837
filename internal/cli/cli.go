// Package cli implements queuectl's subcommands (§6): enqueue, list,
// status, worker start, dlq list/retry, and config get/set. Subcommands
// that take flags (list, worker start) parse them with their own
// flag.FlagSet rather than a CLI framework; the rest read positional args.
package cli

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/Shashank23k/FLAM-QueueCTL/internal/models"
	"github.com/Shashank23k/FLAM-QueueCTL/internal/queue"
	"github.com/Shashank23k/FLAM-QueueCTL/internal/queueerr"
	"github.com/Shashank23k/FLAM-QueueCTL/internal/supervisor"
)

// WorkerStarter spawns the supervised worker processes; cmd/queuectl wires
// this to supervisor.Run so the cli package stays decoupled from process
// re-exec details and easy to unit test.
type WorkerStarter func(ctx context.Context, cfg supervisor.Config) error

// CLI holds the dependencies every subcommand needs.
type CLI struct {
	Engine       *queue.Engine
	StartWorkers WorkerStarter
	DBPath       string
	Stdout       io.Writer
	Stderr       io.Writer
}

// Run dispatches args[0] to the matching subcommand. args excludes the
// program name (i.e. pass os.Args[1:]).
func (c *CLI) Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: queuectl <enqueue|list|status|worker|dlq|config> ...")
	}

	switch args[0] {
	case "enqueue":
		return c.enqueue(ctx, args[1:])
	case "list":
		return c.list(ctx, args[1:])
	case "status":
		return c.status(ctx, args[1:])
	case "worker":
		return c.worker(ctx, args[1:])
	case "dlq":
		return c.dlq(ctx, args[1:])
	case "config":
		return c.config(ctx, args[1:])
	default:
		return fmt.Errorf("unknown command %q", args[0])
	}
}

// jobSpecJSON is the wire shape of `enqueue <job_json>` (§6): a JSON object
// with at least command, and optional max_retries/priority/available_at/
// run_timeout/id.
type jobSpecJSON struct {
	ID          string `json:"id"`
	Command     string `json:"command"`
	MaxRetries  *int   `json:"max_retries"`
	Priority    int    `json:"priority"`
	AvailableAt string `json:"available_at"`
	RunTimeout  *int   `json:"run_timeout"`
}

func (c *CLI) enqueue(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: queuectl enqueue <job_json>")
	}

	var raw jobSpecJSON
	if err := json.Unmarshal([]byte(args[0]), &raw); err != nil {
		return fmt.Errorf("enqueue: %w: %v", queueerr.BadInput, err)
	}
	if raw.Command == "" {
		return fmt.Errorf("enqueue: %w: command is required", queueerr.BadInput)
	}

	spec := models.Spec{
		ID:         raw.ID,
		Command:    raw.Command,
		MaxRetries: raw.MaxRetries,
		Priority:   raw.Priority,
		RunTimeout: raw.RunTimeout,
	}
	if raw.AvailableAt != "" {
		t, err := time.Parse(time.RFC3339, raw.AvailableAt)
		if err != nil {
			return fmt.Errorf("enqueue: %w: available_at: %v", queueerr.BadInput, err)
		}
		spec.AvailableAt = &t
	}

	id, err := c.Engine.Enqueue(ctx, spec)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.Stdout, "enqueued %s\n", id)
	return nil
}

func (c *CLI) list(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	state := fs.String("state", "", "filter by state (pending|processing|completed|dead)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var (
		jobs []*models.Job
		err  error
	)
	if *state != "" {
		switch models.State(*state) {
		case models.StatePending, models.StateProcessing, models.StateCompleted, models.StateDead:
		default:
			return fmt.Errorf("list: %w: unknown state %q", queueerr.BadInput, *state)
		}
		jobs, err = c.Engine.Store.ListJobs(ctx, models.State(*state), true)
	} else {
		jobs, err = c.Engine.Store.ListJobs(ctx, "", false)
	}
	if err != nil {
		return err
	}
	printJobsTable(c.Stdout, jobs)
	return nil
}

func (c *CLI) status(ctx context.Context, args []string) error {
	stats, err := c.Engine.Store.Stats(ctx)
	if err != nil {
		return err
	}
	printStatsTable(c.Stdout, stats)

	workers, err := c.Engine.Store.ListWorkers(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintln(c.Stdout)
	printWorkersTable(c.Stdout, workers)
	return nil
}

func (c *CLI) worker(ctx context.Context, args []string) error {
	if len(args) == 0 || args[0] != "start" {
		return fmt.Errorf("usage: queuectl worker start [--count N]")
	}
	fs := flag.NewFlagSet("worker start", flag.ContinueOnError)
	count := fs.Int("count", 1, "number of worker processes to run")
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}
	return c.StartWorkers(ctx, supervisor.Config{Count: *count, DBPath: c.DBPath})
}

func (c *CLI) dlq(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: queuectl dlq <list|retry>")
	}
	switch args[0] {
	case "list":
		jobs, err := c.Engine.Store.ListJobs(ctx, models.StateDead, true)
		if err != nil {
			return err
		}
		printJobsTable(c.Stdout, jobs)
		return nil
	case "retry":
		if len(args) < 2 {
			return fmt.Errorf("usage: queuectl dlq retry <job-id>")
		}
		if err := c.Engine.DlqRetry(ctx, args[1]); err != nil {
			return err
		}
		fmt.Fprintf(c.Stdout, "requeued %s\n", args[1])
		return nil
	default:
		return fmt.Errorf("unknown dlq subcommand %q", args[0])
	}
}

func (c *CLI) config(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: queuectl config <get|set>")
	}
	switch args[0] {
	case "get":
		if len(args) < 2 {
			return fmt.Errorf("usage: queuectl config get <key>")
		}
		value, ok, err := c.Engine.Store.GetConfig(ctx, args[1])
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("config key %q is not set", args[1])
		}
		fmt.Fprintln(c.Stdout, value)
		return nil
	case "set":
		if len(args) < 3 {
			return fmt.Errorf("usage: queuectl config set <key> <value>")
		}
		if _, err := strconv.ParseFloat(args[2], 64); err != nil {
			return fmt.Errorf("config set %s: value must be numeric: %w", args[1], err)
		}
		if err := c.Engine.Store.SetConfig(ctx, args[1], args[2]); err != nil {
			return err
		}
		fmt.Fprintf(c.Stdout, "set %s=%s\n", args[1], args[2])
		return nil
	default:
		return fmt.Errorf("unknown config subcommand %q", args[0])
	}
}
