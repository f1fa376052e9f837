// Package sqlite is the concrete, durable realization of store.Store:
// an embedded SQLite database opened in WAL mode with a generous busy
// timeout, claimed via BEGIN IMMEDIATE (§4.1).
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/Shashank23k/FLAM-QueueCTL/internal/models"
	"github.com/Shashank23k/FLAM-QueueCTL/internal/queueerr"
)

// timeLayout is a fixed-width nanosecond layout rather than
// time.RFC3339Nano: the latter trims trailing zero digits, which would
// make available_at <= ? lexicographic string comparisons unreliable
// between timestamps of differing precision.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Store is a SQLite-backed store.Store.
type Store struct {
	db *sql.DB
}

// Open opens (creating if absent) the SQLite database at path, applies
// schema migrations, and seeds default config. The returned Store pins the
// connection pool to a single connection: SQLite only ever serves one
// writer at a time regardless, and a single connection lets begin_immediate
// be expressed as raw "BEGIN IMMEDIATE"/"COMMIT" statements on one pinned
// *sql.Conn without database/sql silently handing the transaction's
// statements to a different physical connection.
func Open(path string, busyTimeout time.Duration) (*Store, error) {
	dsn := fmt.Sprintf(
		"file:%s?_journal_mode=WAL&_busy_timeout=%d&_foreign_keys=on",
		path, busyTimeout.Milliseconds(),
	)

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", queueerr.StoreFatal, path, err)
	}
	db.SetMaxOpenConns(1)

	if err := migrateUp(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %v", queueerr.StoreFatal, err)
	}
	if err := seedDefaultConfig(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %v", queueerr.StoreFatal, err)
	}

	log.Printf("[store] opened %s", path)
	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// querier is satisfied by both *sql.DB and a pinned *sql.Conn, so read
// helpers work identically inside or outside a begin_immediate bracket.
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

func classify(err error) error {
	if err == nil {
		return nil
	}
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		if sqliteErr.Code == sqlite3.ErrBusy {
			return fmt.Errorf("%w: %v", queueerr.StoreBusy, err)
		}
	}
	return fmt.Errorf("%w: %v", queueerr.StoreFatal, err)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}

// beginImmediate pins a connection and starts a write-exclusive
// transaction, the primitive §4.1 requires.
func (s *Store) beginImmediate(ctx context.Context) (*sql.Conn, error) {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return nil, classify(err)
	}
	if _, err := conn.ExecContext(ctx, "BEGIN IMMEDIATE"); err != nil {
		conn.Close()
		return nil, classify(err)
	}
	return conn, nil
}

func commit(ctx context.Context, conn *sql.Conn) error {
	defer conn.Close()
	if _, err := conn.ExecContext(ctx, "COMMIT"); err != nil {
		return classify(err)
	}
	return nil
}

func rollback(ctx context.Context, conn *sql.Conn) {
	defer conn.Close()
	_, _ = conn.ExecContext(ctx, "ROLLBACK")
}

// Enqueue inserts a new pending job.
func (s *Store) Enqueue(ctx context.Context, job *models.Job) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO jobs(id, command, state, attempts, max_retries, created_at, updated_at, available_at, priority, run_timeout)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		job.ID, job.Command, models.StatePending, 0, job.MaxRetries,
		formatTime(job.CreatedAt), formatTime(job.UpdatedAt), formatTime(job.AvailableAt),
		job.Priority, nullableInt(job.RunTimeout),
	)
	if err != nil {
		return fmt.Errorf("store: enqueue %s: %w", job.ID, classify(err))
	}
	return nil
}

// ClaimNext implements §4.2's claim algorithm inside one begin_immediate.
func (s *Store) ClaimNext(ctx context.Context, workerID string, now time.Time) (*models.Job, error) {
	conn, err := s.beginImmediate(ctx)
	if err != nil {
		return nil, fmt.Errorf("store: claim: %w", err)
	}

	var id string
	err = conn.QueryRowContext(ctx, `
		SELECT id FROM jobs
		WHERE state = ? AND available_at <= ?
		ORDER BY priority ASC, created_at ASC
		LIMIT 1
	`, models.StatePending, formatTime(now)).Scan(&id)

	if errors.Is(err, sql.ErrNoRows) {
		if cerr := commit(ctx, conn); cerr != nil {
			return nil, fmt.Errorf("store: claim: %w", cerr)
		}
		return nil, nil
	}
	if err != nil {
		rollback(ctx, conn)
		return nil, fmt.Errorf("store: claim: select candidate: %w", classify(err))
	}

	nowStr := formatTime(now)
	res, err := conn.ExecContext(ctx, `
		UPDATE jobs SET state = ?, worker_id = ?, started_at = ?, updated_at = ?
		WHERE id = ? AND state = ?
	`, models.StateProcessing, workerID, nowStr, nowStr, id, models.StatePending)
	if err != nil {
		rollback(ctx, conn)
		return nil, fmt.Errorf("store: claim: transition %s: %w", id, classify(err))
	}

	affected, err := res.RowsAffected()
	if err != nil {
		rollback(ctx, conn)
		return nil, fmt.Errorf("store: claim: rows affected: %w", classify(err))
	}
	if affected == 0 {
		// Raced with another write inside the same write-exclusive
		// transaction window should be impossible; treat defensively as
		// "no job available" rather than fatal.
		rollback(ctx, conn)
		return nil, nil
	}

	job, err := scanJobByID(ctx, conn, id)
	if err != nil {
		rollback(ctx, conn)
		return nil, fmt.Errorf("store: claim: read back %s: %w", id, err)
	}

	if err := commit(ctx, conn); err != nil {
		return nil, fmt.Errorf("store: claim: %w", err)
	}
	return job, nil
}

// FinalizeSuccess transitions processing -> completed, clearing worker_id
// to hold Invariant 2 strictly (§3, §4.2).
func (s *Store) FinalizeSuccess(ctx context.Context, jobID string, output string, now time.Time) error {
	nowStr := formatTime(now)
	_, err := s.db.ExecContext(ctx, `
		UPDATE jobs
		SET state = ?, output = ?, finished_at = ?, updated_at = ?, worker_id = NULL
		WHERE id = ?
	`, models.StateCompleted, output, nowStr, nowStr, jobID)
	if err != nil {
		return fmt.Errorf("store: finalize_success %s: %w", jobID, classify(err))
	}
	return nil
}

// FinalizeFailure transitions processing -> pending (rescheduled) or dead.
func (s *Store) FinalizeFailure(ctx context.Context, jobID string, errText string, now time.Time, dead bool, availableAt time.Time) error {
	nowStr := formatTime(now)

	var err error
	if dead {
		_, err = s.db.ExecContext(ctx, `
			UPDATE jobs
			SET state = ?, attempts = attempts + 1, finished_at = ?, updated_at = ?, last_error = ?,
			    worker_id = NULL, started_at = NULL
			WHERE id = ?
		`, models.StateDead, nowStr, nowStr, errText, jobID)
	} else {
		_, err = s.db.ExecContext(ctx, `
			UPDATE jobs
			SET state = ?, attempts = attempts + 1, available_at = ?, updated_at = ?, last_error = ?,
			    worker_id = NULL, started_at = NULL
			WHERE id = ?
		`, models.StatePending, formatTime(availableAt), nowStr, errText, jobID)
	}
	if err != nil {
		return fmt.Errorf("store: finalize_failure %s: %w", jobID, classify(err))
	}
	return nil
}

// DlqRetry transitions dead -> pending.
func (s *Store) DlqRetry(ctx context.Context, jobID string, now time.Time) error {
	nowStr := formatTime(now)
	res, err := s.db.ExecContext(ctx, `
		UPDATE jobs
		SET state = ?, attempts = 0, available_at = ?, updated_at = ?, last_error = NULL, finished_at = NULL
		WHERE id = ? AND state = ?
	`, models.StatePending, nowStr, nowStr, jobID, models.StateDead)
	if err != nil {
		return fmt.Errorf("store: dlq_retry %s: %w", jobID, classify(err))
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: dlq_retry %s: %w", jobID, classify(err))
	}
	if affected == 0 {
		return fmt.Errorf("store: dlq_retry %s: %w", jobID, queueerr.InvalidTransition)
	}
	return nil
}

// GetJob returns one job by id.
func (s *Store) GetJob(ctx context.Context, jobID string) (*models.Job, error) {
	job, err := scanJobByID(ctx, s.db, jobID)
	if err != nil {
		return nil, fmt.Errorf("store: get_job %s: %w", jobID, err)
	}
	return job, nil
}

// ListJobs returns jobs ordered by created_at ASC, optionally filtered.
func (s *Store) ListJobs(ctx context.Context, state models.State, filter bool) ([]*models.Job, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if filter {
		rows, err = s.db.QueryContext(ctx, jobColumns+` FROM jobs WHERE state = ? ORDER BY created_at ASC`, state)
	} else {
		rows, err = s.db.QueryContext(ctx, jobColumns+` FROM jobs ORDER BY created_at ASC`)
	}
	if err != nil {
		return nil, fmt.Errorf("store: list_jobs: %w", classify(err))
	}
	defer rows.Close()
	return scanJobRows(rows)
}

// RecentJobs returns the n most recently updated jobs, newest first.
func (s *Store) RecentJobs(ctx context.Context, n int) ([]*models.Job, error) {
	rows, err := s.db.QueryContext(ctx, jobColumns+` FROM jobs ORDER BY updated_at DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("store: recent_jobs: %w", classify(err))
	}
	defer rows.Close()
	return scanJobRows(rows)
}

// Stats returns job counts per state.
func (s *Store) Stats(ctx context.Context) (models.Stats, error) {
	var stats models.Stats
	err := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE state = 'pending'),
			COUNT(*) FILTER (WHERE state = 'processing'),
			COUNT(*) FILTER (WHERE state = 'completed'),
			COUNT(*) FILTER (WHERE state = 'dead'),
			COUNT(*)
		FROM jobs
	`).Scan(&stats.Pending, &stats.Processing, &stats.Completed, &stats.Dead, &stats.Total)
	if err != nil {
		return models.Stats{}, fmt.Errorf("store: stats: %w", classify(err))
	}
	return stats, nil
}

// UpsertHeartbeat records worker liveness (§4.3).
func (s *Store) UpsertHeartbeat(ctx context.Context, reg models.WorkerRegistration) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO workers(id, pid, started_at, heartbeat_at, status)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET heartbeat_at = excluded.heartbeat_at, status = excluded.status, pid = excluded.pid
	`, reg.ID, reg.PID, formatTime(reg.StartedAt), formatTime(reg.HeartbeatAt), reg.Status)
	if err != nil {
		return fmt.Errorf("store: heartbeat %s: %w", reg.ID, classify(err))
	}
	return nil
}

// ListWorkers returns all known worker registrations.
func (s *Store) ListWorkers(ctx context.Context) ([]models.WorkerRegistration, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, pid, started_at, heartbeat_at, status FROM workers ORDER BY started_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("store: list_workers: %w", classify(err))
	}
	defer rows.Close()

	var out []models.WorkerRegistration
	for rows.Next() {
		var (
			reg                  models.WorkerRegistration
			startedAt, heartbeat string
		)
		if err := rows.Scan(&reg.ID, &reg.PID, &startedAt, &heartbeat, &reg.Status); err != nil {
			return nil, fmt.Errorf("store: list_workers: scan: %w", classify(err))
		}
		if reg.StartedAt, err = parseTime(startedAt); err != nil {
			return nil, fmt.Errorf("store: list_workers: parse started_at: %w", err)
		}
		if reg.HeartbeatAt, err = parseTime(heartbeat); err != nil {
			return nil, fmt.Errorf("store: list_workers: parse heartbeat_at: %w", err)
		}
		out = append(out, reg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: list_workers: iterate: %w", classify(err))
	}
	return out, nil
}

// GetConfig returns a config value, or ok=false if unset.
func (s *Store) GetConfig(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM config WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("store: get_config %s: %w", key, classify(err))
	}
	return value, true, nil
}

// SetConfig upserts a config value.
func (s *Store) SetConfig(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO config(key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	if err != nil {
		return fmt.Errorf("store: set_config %s: %w", key, classify(err))
	}
	return nil
}

const jobColumns = `SELECT id, command, state, attempts, max_retries, created_at, updated_at, available_at, priority, run_timeout, worker_id, started_at, finished_at, last_error, output`

func scanJobByID(ctx context.Context, q querier, id string) (*models.Job, error) {
	row := q.QueryRowContext(ctx, jobColumns+` FROM jobs WHERE id = ?`, id)
	return scanJobRow(row.Scan)
}

func scanJobRows(rows *sql.Rows) ([]*models.Job, error) {
	var out []*models.Job
	for rows.Next() {
		job, err := scanJobRow(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("scan jobs: iterate: %w", classify(err))
	}
	return out, nil
}

func scanJobRow(scan func(dest ...interface{}) error) (*models.Job, error) {
	var (
		job                                        models.Job
		createdAt, updatedAt, availableAt           string
		runTimeout, workerID                        sql.NullString
		startedAt, finishedAt, lastError, output    sql.NullString
		state                                       string
	)

	if err := scan(
		&job.ID, &job.Command, &state, &job.Attempts, &job.MaxRetries,
		&createdAt, &updatedAt, &availableAt, &job.Priority, &runTimeout,
		&workerID, &startedAt, &finishedAt, &lastError, &output,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, queueerr.NotFound
		}
		return nil, fmt.Errorf("scan job: %w", classify(err))
	}

	job.State = models.State(state)

	var err error
	if job.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("scan job %s: parse created_at: %w", job.ID, err)
	}
	if job.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("scan job %s: parse updated_at: %w", job.ID, err)
	}
	if job.AvailableAt, err = parseTime(availableAt); err != nil {
		return nil, fmt.Errorf("scan job %s: parse available_at: %w", job.ID, err)
	}
	if runTimeout.Valid {
		n, convErr := parseNullableInt(runTimeout.String)
		if convErr != nil {
			return nil, fmt.Errorf("scan job %s: parse run_timeout: %w", job.ID, convErr)
		}
		job.RunTimeout = &n
	}
	if workerID.Valid {
		v := workerID.String
		job.WorkerID = &v
	}
	if startedAt.Valid {
		t, perr := parseTime(startedAt.String)
		if perr != nil {
			return nil, fmt.Errorf("scan job %s: parse started_at: %w", job.ID, perr)
		}
		job.StartedAt = &t
	}
	if finishedAt.Valid {
		t, perr := parseTime(finishedAt.String)
		if perr != nil {
			return nil, fmt.Errorf("scan job %s: parse finished_at: %w", job.ID, perr)
		}
		job.FinishedAt = &t
	}
	if lastError.Valid {
		v := lastError.String
		job.LastError = &v
	}
	if output.Valid {
		v := output.String
		job.Output = &v
	}

	return &job, nil
}

func nullableInt(v *int) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func parseNullableInt(s string) (int, error) {
	var n int
	_, err := fmt.Sscanf(s, "%d", &n)
	return n, err
}
