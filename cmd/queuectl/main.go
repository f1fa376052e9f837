// Command queuectl is the CLI control surface for the job queue: enqueue,
// list, status, worker start, dlq list/retry, config get/set. It also
// answers to a hidden __worker-run subcommand, which is how the supervisor
// re-execs this same binary to get independent worker OS processes.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/Shashank23k/FLAM-QueueCTL/internal/cli"
	"github.com/Shashank23k/FLAM-QueueCTL/internal/config"
	"github.com/Shashank23k/FLAM-QueueCTL/internal/queue"
	"github.com/Shashank23k/FLAM-QueueCTL/internal/store/sqlite"
	"github.com/Shashank23k/FLAM-QueueCTL/internal/supervisor"
	"github.com/Shashank23k/FLAM-QueueCTL/internal/worker"
)

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("[queuectl] .env not loaded: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[queuectl] config: %v", err)
	}

	args := os.Args[1:]
	if len(args) > 0 && args[0] == supervisor.WorkerRunArg {
		runWorker(cfg, args[1:])
		return
	}

	s, err := sqlite.Open(cfg.DBPath, cfg.BusyTimeout)
	if err != nil {
		log.Fatalf("[queuectl] open store: %v", err)
	}
	defer s.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c := &cli.CLI{
		Engine:       queue.New(s),
		StartWorkers: supervisor.Run,
		DBPath:       cfg.DBPath,
		Stdout:       os.Stdout,
		Stderr:       os.Stderr,
	}

	if err := c.Run(ctx, args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// runWorker is the hidden entrypoint a supervised worker process re-execs
// into; it never returns control to main's normal CLI dispatch.
func runWorker(cfg config.Config, args []string) {
	fs := flag.NewFlagSet("__worker-run", flag.ExitOnError)
	id := fs.String("id", "", "worker id")
	fs.Parse(args)

	s, err := sqlite.Open(cfg.DBPath, cfg.BusyTimeout)
	if err != nil {
		log.Fatalf("[worker] open store: %v", err)
	}
	defer s.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	w := worker.New(queue.New(s), worker.Config{ID: *id})
	if err := w.Run(ctx); err != nil {
		log.Fatalf("[worker] run: %v", err)
	}
}
