package models

import "time"

// WorkerRegistration records the liveness of one worker process.
type WorkerRegistration struct {
	ID          string
	PID         int
	StartedAt   time.Time
	HeartbeatAt time.Time
	Status      string // "idle", "processing:<job_id>", or "stopped"
}
