// Package scheduler realizes the task engine's durable, retriable task
// queue on top of River. A task's kind maps to a Go job-args type and a
// typed river.Worker registered with the client; rate-limit groups are
// process-local counters a handler consults at the top of its Work
// method; the current day's cycle is a guarded in-process cell
// invalidated on every restart.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
)

// SnoozeDelay is how far a task is pushed back when one of its
// rate-limit groups is at capacity.
const SnoozeDelay = 30

// Scheduler wraps a River client with the task engine's scheduling
// primitives: rate-limit groups and the current-day cell.
type Scheduler struct {
	client  *river.Client[pgx.Tx]
	pool    *pgxpool.Pool
	Groups  *Groups
	Day     *CurrentDay
	logger  *slog.Logger
	started bool
}

// Config configures queue worker counts. Every task kind runs in the
// single default queue; MaxWorkers bounds total concurrency, with the
// rate-limit groups providing finer-grained limits per kind.
type Config struct {
	MaxWorkers int
	Logger     *slog.Logger
	Workers    *river.Workers
	Periodic   []Periodic
}

// New builds a Scheduler backed by pool, registering workers and
// wiring the default queue.
func New(pool *pgxpool.Pool, cfg Config) (*Scheduler, error) {
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = 20
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Workers == nil {
		return nil, fmt.Errorf("scheduler: workers is required")
	}

	periodicJobs, err := buildPeriodicJobs(cfg.Periodic)
	if err != nil {
		return nil, err
	}

	client, err := river.NewClient(riverpgxv5.New(pool), &river.Config{
		Queues: map[string]river.QueueConfig{
			river.QueueDefault: {MaxWorkers: cfg.MaxWorkers},
		},
		Workers:      cfg.Workers,
		PeriodicJobs: periodicJobs,
		Logger:       cfg.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("scheduler: create client: %w", err)
	}

	return &Scheduler{
		client: client,
		pool:   pool,
		Groups: NewGroups(),
		Day:    NewCurrentDay(),
		logger: cfg.Logger,
	}, nil
}

// Start begins dispatching tasks. River's own rescue service resets
// jobs stuck in "running" from a prior crash; Start additionally logs
// each such job before calling the client's own Start, preserving the
// "log a warning for each" observable from a crash-recovery sweep.
func (s *Scheduler) Start(ctx context.Context) error {
	stuck, err := s.client.JobList(ctx, river.NewJobListParams().States(river.JobStateRunning))
	if err != nil {
		s.logger.WarnContext(ctx, "scheduler: could not list running jobs before start", "error", err)
	} else {
		for _, job := range stuck.Jobs {
			s.logger.WarnContext(ctx, "scheduler: resetting stuck running task", "job_id", job.ID, "kind", job.Kind)
		}
	}

	if err := s.client.Start(ctx); err != nil {
		return fmt.Errorf("scheduler: start: %w", err)
	}
	s.started = true
	return nil
}

// Stop gracefully drains in-flight tasks.
func (s *Scheduler) Stop(ctx context.Context) error {
	if !s.started {
		return nil
	}
	if err := s.client.Stop(ctx); err != nil {
		return fmt.Errorf("scheduler: stop: %w", err)
	}
	s.started = false
	return nil
}

// Insert enqueues a new task. run_at defaults to now when opts is nil.
func (s *Scheduler) Insert(ctx context.Context, args river.JobArgs, opts *river.InsertOpts) error {
	_, err := s.client.Insert(ctx, args, opts)
	if err != nil {
		return fmt.Errorf("scheduler: insert %s: %w", args.Kind(), err)
	}
	return nil
}

// InsertTx enqueues a new task within an existing transaction, visible
// only after the transaction commits.
func (s *Scheduler) InsertTx(ctx context.Context, tx pgx.Tx, args river.JobArgs, opts *river.InsertOpts) error {
	_, err := s.client.InsertTx(ctx, tx, args, opts)
	if err != nil {
		return fmt.Errorf("scheduler: insert tx %s: %w", args.Kind(), err)
	}
	return nil
}

// JobList exposes the underlying client's job listing, used by the
// debug endpoints.
func (s *Scheduler) JobList(ctx context.Context, params *river.JobListParams) (*river.JobListResult, error) {
	return s.client.JobList(ctx, params)
}

// PostponeScheduled pushes every not-yet-running job of kind whose
// scheduled_at falls within [from, to) forward by delay. This realizes
// check-day's "no school today" behavior: fill-form tasks due later
// today get pushed a day forward directly on River's own job table,
// since River has no first-class "reschedule an existing job" API.
func (s *Scheduler) PostponeScheduled(ctx context.Context, kind string, from, to time.Time, delay time.Duration) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE river_job SET scheduled_at = scheduled_at + $4
		WHERE kind = $1 AND state = 'scheduled' AND scheduled_at >= $2 AND scheduled_at < $3
	`, kind, from, to, delay)
	if err != nil {
		return 0, fmt.Errorf("scheduler: postpone scheduled %s: %w", kind, err)
	}
	return tag.RowsAffected(), nil
}
