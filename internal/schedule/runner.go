package schedule

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/mscrnt/spdtool/internal/eeprom"
	"github.com/mscrnt/spdtool/internal/history"
	"github.com/mscrnt/spdtool/internal/spd"
	"github.com/robfig/cron/v3"
)

// Rescanner re-reads a module's bytes off the wire. *eeprom.Orchestrator
// satisfies this directly.
type Rescanner interface {
	Read(offset uint16, length int, progress eeprom.ProgressFunc) ([]byte, error)
}

// Runner drives periodic compatibility re-verification: on each job's
// cron tick it rescans the module, re-decodes it, and compares the
// fresh CRC status against what was cached when the module was last
// seen valid. A regression is logged and recorded as an alert event.
type Runner struct {
	cron    *cron.Cron
	store   *Store
	history *history.Store
	jobs    map[int64]cron.EntryID

	mu         sync.RWMutex
	rescanners map[string]Rescanner

	logger *log.Logger
	ctx    context.Context
	cancel context.CancelFunc
}

// NewRunner creates a Runner backed by the given schedule Store and
// audit log.
func NewRunner(store *Store, h *history.Store, logger *log.Logger) *Runner {
	if logger == nil {
		logger = log.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Runner{
		cron:       cron.New(cron.WithParser(cronParser)),
		store:      store,
		history:    h,
		jobs:       make(map[int64]cron.EntryID),
		rescanners: make(map[string]Rescanner),
		logger:     logger,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// RegisterRescanner makes a live orchestrator available to jobs whose
// Programmer field names it. Jobs for programmers with no registered
// rescanner are skipped with a log line rather than failing the tick.
func (r *Runner) RegisterRescanner(programmer string, rs Rescanner) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rescanners[programmer] = rs
}

// Start loads every enabled job and registers it with the cron
// scheduler, then starts the scheduler.
func (r *Runner) Start() error {
	enabled := true
	jobs, err := r.store.List(JobFilter{Enabled: &enabled})
	if err != nil {
		return fmt.Errorf("schedule: load jobs: %w", err)
	}
	for _, job := range jobs {
		if err := r.registerJob(job); err != nil {
			r.logger.Printf("schedule: failed to register job %s: %v", job.Name, err)
		}
	}
	r.cron.Start()
	r.logger.Printf("schedule: started with %d active jobs", len(r.jobs))
	return nil
}

// Stop cancels the runner context and waits (up to 30s) for running
// cron callbacks to return. Each tick and each CheckDue job runs in its
// own goroutine, and Stop does not wait for those goroutines to finish.
func (r *Runner) Stop() {
	r.cancel()
	ctx := r.cron.Stop()
	select {
	case <-ctx.Done():
	case <-time.After(30 * time.Second):
		r.logger.Println("schedule: timeout waiting for jobs to finish")
	}
}

func (r *Runner) registerJob(job *Job) error {
	if !job.Enabled {
		return nil
	}
	entryID, err := r.cron.AddFunc(job.CronExpr, r.tickFunc(job))
	if err != nil {
		return fmt.Errorf("schedule: add cron entry: %w", err)
	}
	r.mu.Lock()
	r.jobs[job.ID] = entryID
	r.mu.Unlock()
	return nil
}

// UnregisterJob removes a job from the live cron scheduler without
// deleting its stored definition.
func (r *Runner) UnregisterJob(jobID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if entryID, ok := r.jobs[jobID]; ok {
		r.cron.Remove(entryID)
		delete(r.jobs, jobID)
	}
}

func (r *Runner) tickFunc(job *Job) func() {
	return func() {
		select {
		case <-r.ctx.Done():
			return
		default:
		}
		go func() {
			if err := r.runJob(job); err != nil {
				r.logger.Printf("schedule: job %s failed: %v", job.Name, err)
			}
		}()
	}
}

func (r *Runner) runJob(job *Job) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()

	r.mu.RLock()
	rs, ok := r.rescanners[job.Programmer]
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("no rescanner registered for programmer %q", job.Programmer)
	}

	raw, err := rs.Read(0, job.Length, nil)
	if err != nil {
		return fmt.Errorf("rescan: %w", err)
	}
	img, err := spd.Detect(raw)
	if err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	fresh := img.CrcStatus()

	prev, err := r.history.GetSnapshot(job.Programmer, job.Address)
	if err != nil {
		return fmt.Errorf("lookup snapshot: %w", err)
	}

	if prev != nil && prev.CrcValid && !fresh {
		r.logger.Printf("schedule: ALERT %s (%s @ 0x%02X) was CRC-valid, now fails validation",
			job.Name, job.Programmer, job.Address)
	}

	crcValid := fresh
	event := &history.Event{
		Programmer: job.Programmer,
		Address:    job.Address,
		Kind:       history.EventRevalidate,
		Module:     img.ToString(),
		CrcValid:   &crcValid,
	}
	if err := r.history.RecordEvent(event); err != nil {
		r.logger.Printf("schedule: failed to record revalidate event: %v", err)
	}

	if fresh {
		if err := r.history.PutSnapshot(history.SnapshotFrom(job.Programmer, job.Address, img)); err != nil {
			r.logger.Printf("schedule: failed to update snapshot: %v", err)
		}
	}

	if err := r.store.UpdateLastRun(job.ID, event.ID); err != nil {
		r.logger.Printf("schedule: failed to update last run: %v", err)
	}
	return nil
}

// RunNow executes a single job immediately, bypassing its cron
// schedule. Used by manual CLI invocation and by tests.
func (r *Runner) RunNow(jobID int64) error {
	job, err := r.store.Get(jobID)
	if err != nil {
		return err
	}
	return r.runJob(job)
}

// CheckDue runs any jobs whose next run time has already passed,
// bypassing the cron schedule (used after a process restart, or on
// demand from the CLI).
func (r *Runner) CheckDue() error {
	jobs, err := r.store.GetDue()
	if err != nil {
		return fmt.Errorf("schedule: get due jobs: %w", err)
	}
	for _, job := range jobs {
		go func(j *Job) {
			if err := r.runJob(j); err != nil {
				r.logger.Printf("schedule: overdue job %s failed: %v", j.Name, err)
			}
		}(job)
	}
	return nil
}

// ListEntries returns the live cron entries for introspection.
func (r *Runner) ListEntries() []cron.Entry {
	return r.cron.Entries()
}
