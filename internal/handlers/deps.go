// Package handlers implements the seven task kinds as river.Worker
// types: check-day, populate-courses, fill-form, get-form-geometry,
// test-fill-form, and the two reaper tasks that clean up after
// get-form-geometry and test-fill-form.
package handlers

import (
	"context"
	"log/slog"
	"time"

	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"

	"github.com/schoolbot/lockbox/internal/blob"
	"github.com/schoolbot/lockbox/internal/browser"
	"github.com/schoolbot/lockbox/internal/config"
	"github.com/schoolbot/lockbox/internal/portal"
	"github.com/schoolbot/lockbox/internal/scheduler"
	"github.com/schoolbot/lockbox/internal/store"
	"github.com/schoolbot/lockbox/internal/vault"
)

// BrowserFactory opens a fresh browser.Driver for the duration of one
// task. Handlers always Close it on every return path.
type BrowserFactory func(ctx context.Context) (browser.Driver, error)

// Deps is the shared dependency bundle every task handler closes over.
type Deps struct {
	Store      *store.Store
	Portal     portal.Client
	NewDriver  BrowserFactory
	Vault      *vault.Vault
	Blob       *blob.Manager
	Sched      *scheduler.Scheduler
	Config     *config.Config
	Logger     *slog.Logger
}

// acquireGroups tries to reserve every rate-limit group the named task
// kind belongs to. On success it returns a release func the caller must
// defer. On failure it returns the river.JobSnooze error the handler
// should return directly from Work, pushing the task back 30s without
// counting it as a retry attempt.
func acquireGroups(groups *scheduler.Groups, kind string) (release func(), snoozeErr error) {
	release, ok := groups.TryAcquire(scheduler.TaskGroups[kind]...)
	if !ok {
		return nil, river.JobSnooze(scheduler.SnoozeDelay * time.Second)
	}
	return release, nil
}

// nextRetryFromJobErrors inspects a job's most recent attempt error for
// the encoded retry_in delay a handler's scheduler.RetryableError left
// behind, per internal/scheduler/errors.go's round-trip convention
// (River persists only the rendered error text between attempts, not
// the Go error value). Returning the zero Time tells River to fall back
// to its own default backoff, which happens for give-up errors and
// errors raised outside this package.
func nextRetryFromJobErrors(errs []rivertype.AttemptError) time.Time {
	if len(errs) == 0 {
		return time.Time{}
	}
	delay, ok := scheduler.ParseRetryIn(errs[len(errs)-1].Error)
	if !ok {
		return time.Time{}
	}
	return time.Now().UTC().Add(delay)
}
