package handlers

import (
	"context"
	"fmt"
	"time"

	"github.com/riverqueue/river"

	"github.com/schoolbot/lockbox/internal/model"
	"github.com/schoolbot/lockbox/internal/portal"
	"github.com/schoolbot/lockbox/internal/scheduler"
)

// CheckDayWorker resolves today's day-cycle (or "no school") for the
// whole school, a singleton, ownerless task.
type CheckDayWorker struct {
	river.WorkerDefaults[CheckDayArgs]
	Deps *Deps
}

func (w *CheckDayWorker) NextRetry(job *river.Job[CheckDayArgs]) time.Time {
	return nextRetryFromJobErrors(job.Errors)
}

func (w *CheckDayWorker) Work(ctx context.Context, job *river.Job[CheckDayArgs]) error {
	warnIfLate(ctx, w.Deps, KindCheckDay, job.ScheduledAt)

	release, snooze := acquireGroups(w.Deps.Sched.Groups, KindCheckDay)
	if snooze != nil {
		return snooze
	}
	defer release()

	users, err := w.Deps.Store.Users.ListActiveWithCredentials(ctx)
	if err != nil {
		return fmt.Errorf("check-day: list users: %w", err)
	}

	for _, u := range users {
		session, dayName, ok := w.tryLogin(ctx, u)
		if !ok {
			continue
		}
		_ = session

		n, noSchool, parsed := portal.DayCycle(dayName)
		if !parsed {
			continue
		}

		if noSchool {
			w.Deps.Sched.Day.SetNoSchool()
			if err := w.pushFillFormTasksToday(ctx); err != nil {
				w.Deps.Logger.ErrorContext(ctx, "check-day: postpone fill-form failed", "error", err)
			}
		} else {
			w.Deps.Sched.Day.SetCycle(n)
		}

		return w.scheduleTomorrow(ctx)
	}

	if job.Attempt <= 1 {
		return scheduler.Retryable(fmt.Errorf("check-day: no credentials worked"), 3600*time.Second)
	}

	w.Deps.Sched.Day.SetUnknown()
	return w.scheduleTomorrow(ctx)
}

// tryLogin attempts a portal login for one user, returning the resolved
// day-cycle name on success.
func (w *CheckDayWorker) tryLogin(ctx context.Context, u *model.User) (portal.Session, string, bool) {
	if u.Login == nil || u.EncryptedPassword == nil {
		return nil, "", false
	}
	password, err := w.Deps.Vault.Decrypt(*u.EncryptedPassword)
	if err != nil {
		return nil, "", false
	}

	session, err := w.Deps.Portal.Login(ctx, *u.Login, password)
	if err != nil {
		return nil, "", false
	}

	schools, err := session.Schools(ctx, w.Deps.Config.School)
	if err != nil || len(schools) != 1 {
		return nil, "", false
	}

	dayName, err := session.DayCycleName(ctx, schools[0].ID)
	if err != nil {
		return nil, "", false
	}

	return session, dayName, true
}

func (w *CheckDayWorker) scheduleTomorrow(ctx context.Context) error {
	runAt, err := randomTimeInWindow(w.Deps.Config.CheckDayRunTime, 1)
	if err != nil {
		return fmt.Errorf("check-day: schedule tomorrow: %w", err)
	}
	return w.Deps.Sched.Insert(ctx, CheckDayArgs{}, &river.InsertOpts{ScheduledAt: runAt.UTC()})
}

func (w *CheckDayWorker) pushFillFormTasksToday(ctx context.Context) error {
	now := time.Now().Local()
	todayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	todayEnd := todayStart.AddDate(0, 0, 1)

	_, err := w.Deps.Sched.PostponeScheduled(ctx, KindFillForm, todayStart.UTC(), todayEnd.UTC(), 24*time.Hour)
	return err
}

// warnIfLate logs a warning when a task is picked up more than 100ms
// after its scheduled time, without delaying the run.
func warnIfLate(ctx context.Context, deps *Deps, kind string, scheduledAt time.Time) {
	if lateness := time.Since(scheduledAt); lateness > 100*time.Millisecond {
		deps.Logger.WarnContext(ctx, "task dispatched late", "kind", kind, "lateness", lateness)
	}
}
