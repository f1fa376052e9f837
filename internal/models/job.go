// Package models holds the durable record shapes shared between the store,
// the queue engine, and the CLI/dashboard views.
package models

import "time"

// State is the lifecycle stage of a Job.
type State string

const (
	StatePending    State = "pending"
	StateProcessing State = "processing"
	StateCompleted  State = "completed"
	StateDead       State = "dead"
)

// Job is a durable record describing a shell command to run and its
// execution history.
type Job struct {
	ID          string
	Command     string
	State       State
	Attempts    int
	MaxRetries  int
	CreatedAt   time.Time
	UpdatedAt   time.Time
	AvailableAt time.Time
	Priority    int
	RunTimeout  *int // seconds; nil means no timeout

	WorkerID   *string
	StartedAt  *time.Time
	FinishedAt *time.Time
	LastError  *string
	Output     *string
}

// Spec is the input to Enqueue. Zero values mean "use the default".
type Spec struct {
	ID          string
	Command     string
	MaxRetries  *int
	Priority    int
	AvailableAt *time.Time
	RunTimeout  *int
}

// Stats is a snapshot of job counts per state.
type Stats struct {
	Pending    int
	Processing int
	Completed  int
	Dead       int
	Total      int
}
