package schedule

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/mscrnt/spdtool/internal/history"
	"github.com/robfig/cron/v3"
)

var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Store persists Jobs into the same SQLite database the audit log uses.
type Store struct {
	conn *sql.DB
}

// NewStore wires a schedule Store to an already-open history.Store's
// connection, so jobs, events, and cached snapshots live in one file.
func NewStore(h *history.Store) (*Store, error) {
	s := &Store{conn: h.Conn()}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("schedule: migrate: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	_, err := s.conn.Exec(`
	CREATE TABLE IF NOT EXISTS jobs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL UNIQUE,
		cron_expr TEXT NOT NULL,
		programmer TEXT NOT NULL,
		address INTEGER NOT NULL,
		length INTEGER NOT NULL,
		enabled BOOLEAN NOT NULL DEFAULT 1,
		last_run_id INTEGER,
		last_run_time DATETIME,
		next_run_time DATETIME,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_jobs_enabled ON jobs(enabled);
	CREATE INDEX IF NOT EXISTS idx_jobs_next_run ON jobs(next_run_time);
	`)
	return err
}

// Create validates CronExpr, computes the first NextRunTime, and
// inserts the job.
func (s *Store) Create(job *Job) error {
	sched, err := cronParser.Parse(job.CronExpr)
	if err != nil {
		return fmt.Errorf("schedule: invalid cron expression %q: %w", job.CronExpr, err)
	}
	now := time.Now()
	next := sched.Next(now)
	job.NextRunTime = &next
	job.CreatedAt = now
	job.UpdatedAt = now

	result, err := s.conn.Exec(
		`INSERT INTO jobs (name, cron_expr, programmer, address, length, enabled, next_run_time, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		job.Name, job.CronExpr, job.Programmer, job.Address, job.Length,
		job.Enabled, job.NextRunTime, job.CreatedAt, job.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("schedule: create job: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("schedule: last insert id: %w", err)
	}
	job.ID = id
	return nil
}

func scanJob(row interface {
	Scan(dest ...interface{}) error
}) (*Job, error) {
	j := &Job{}
	var addr, length int
	err := row.Scan(&j.ID, &j.Name, &j.CronExpr, &j.Programmer, &addr, &length,
		&j.Enabled, &j.LastRunID, &j.LastRunTime, &j.NextRunTime, &j.CreatedAt, &j.UpdatedAt)
	if err != nil {
		return nil, err
	}
	j.Address = byte(addr)
	j.Length = length
	return j, nil
}

const jobColumns = `id, name, cron_expr, programmer, address, length, enabled, last_run_id, last_run_time, next_run_time, created_at, updated_at`

// Get retrieves a job by ID.
func (s *Store) Get(id int64) (*Job, error) {
	row := s.conn.QueryRow(`SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("schedule: job %d not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("schedule: get job: %w", err)
	}
	return job, nil
}

// List retrieves jobs matching filter.
func (s *Store) List(filter JobFilter) ([]*Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE 1=1`
	var args []interface{}
	if filter.Programmer != "" {
		query += " AND programmer = ?"
		args = append(args, filter.Programmer)
	}
	if filter.Enabled != nil {
		query += " AND enabled = ?"
		args = append(args, *filter.Enabled)
	}
	query += " ORDER BY name"

	rows, err := s.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("schedule: list jobs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("schedule: scan job: %w", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

// GetDue returns enabled jobs whose next run time has passed.
func (s *Store) GetDue() ([]*Job, error) {
	rows, err := s.conn.Query(
		`SELECT `+jobColumns+` FROM jobs
		 WHERE enabled = 1 AND (next_run_time IS NULL OR next_run_time <= ?)
		 ORDER BY next_run_time`,
		time.Now(),
	)
	if err != nil {
		return nil, fmt.Errorf("schedule: get due jobs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("schedule: scan job: %w", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

// UpdateLastRun records a completed run and advances NextRunTime.
func (s *Store) UpdateLastRun(jobID int64, runID int64) error {
	job, err := s.Get(jobID)
	if err != nil {
		return err
	}
	sched, err := cronParser.Parse(job.CronExpr)
	if err != nil {
		return fmt.Errorf("schedule: invalid cron expression: %w", err)
	}
	now := time.Now()
	next := sched.Next(now)
	_, err = s.conn.Exec(
		`UPDATE jobs SET last_run_id = ?, last_run_time = ?, next_run_time = ? WHERE id = ?`,
		runID, now, next, jobID,
	)
	if err != nil {
		return fmt.Errorf("schedule: update last run: %w", err)
	}
	return nil
}

// Enable re-activates a job and recomputes its next run time from now.
func (s *Store) Enable(id int64) error {
	job, err := s.Get(id)
	if err != nil {
		return err
	}
	sched, err := cronParser.Parse(job.CronExpr)
	if err != nil {
		return fmt.Errorf("schedule: invalid cron expression: %w", err)
	}
	next := sched.Next(time.Now())
	_, err = s.conn.Exec(`UPDATE jobs SET enabled = 1, next_run_time = ? WHERE id = ?`, next, id)
	if err != nil {
		return fmt.Errorf("schedule: enable job: %w", err)
	}
	return nil
}

// Disable deactivates a job without deleting its history.
func (s *Store) Disable(id int64) error {
	_, err := s.conn.Exec(`UPDATE jobs SET enabled = 0 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("schedule: disable job: %w", err)
	}
	return nil
}

// Delete removes a job.
func (s *Store) Delete(id int64) error {
	_, err := s.conn.Exec(`DELETE FROM jobs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("schedule: delete job: %w", err)
	}
	return nil
}
