package scheduler

import (
	"fmt"
	"time"

	"github.com/riverqueue/river"
	"github.com/robfig/cron/v3"
)

// Periodic describes a recurring task seed: a cron schedule and the job
// args to enqueue each time it fires. check-day reschedules its own next
// run on every successful pass, but that chain needs a first link - a
// fresh deploy or a broken chain (every login attempt failing for days)
// both leave no check-day task sitting in the queue. A periodic seed
// guarantees one keeps showing up regardless.
type Periodic struct {
	Schedule string
	Args     func() river.JobArgs
}

type cronScheduleAdapter struct {
	schedule cron.Schedule
}

func (a *cronScheduleAdapter) Next(current time.Time) time.Time {
	return a.schedule.Next(current)
}

func parseCronSchedule(expr string) (river.PeriodicSchedule, error) {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	schedule, err := parser.Parse(expr)
	if err != nil {
		return nil, err
	}
	return &cronScheduleAdapter{schedule: schedule}, nil
}

func buildPeriodicJobs(periodics []Periodic) ([]*river.PeriodicJob, error) {
	jobs := make([]*river.PeriodicJob, 0, len(periodics))
	for _, p := range periodics {
		sched, err := parseCronSchedule(p.Schedule)
		if err != nil {
			return nil, fmt.Errorf("scheduler: invalid cron schedule %q: %w", p.Schedule, err)
		}
		args := p.Args
		jobs = append(jobs, river.NewPeriodicJob(
			sched,
			func() (river.JobArgs, *river.InsertOpts) { return args(), nil },
			&river.PeriodicJobOpts{RunOnStart: false},
		))
	}
	return jobs, nil
}
