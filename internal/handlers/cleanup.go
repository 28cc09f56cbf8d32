package handlers

import (
	"context"
	"fmt"

	"github.com/riverqueue/river"
)

// RemoveOldFormGeometryWorker deletes a CachedFormGeometry entry and
// releases its screenshot blob, 15 minutes after get-form-geometry
// scheduled it.
type RemoveOldFormGeometryWorker struct {
	river.WorkerDefaults[RemoveOldFormGeometryArgs]
	Deps *Deps
}

func (w *RemoveOldFormGeometryWorker) Work(ctx context.Context, job *river.Job[RemoveOldFormGeometryArgs]) error {
	release, snooze := acquireGroups(w.Deps.Sched.Groups, KindRemoveOldFormGeometry)
	if snooze != nil {
		return snooze
	}
	defer release()

	g, err := w.Deps.Store.Geometries.GetByID(ctx, job.Args.GeometryID)
	if err != nil {
		return nil
	}

	if err := w.Deps.Store.Geometries.Delete(ctx, job.Args.GeometryID); err != nil {
		return fmt.Errorf("remove-old-form-geometry: delete: %w", err)
	}

	if g.ScreenshotID != nil {
		noOtherGeometryUsesIt := func(ctx context.Context, key string) (bool, error) { return false, nil }
		if err := w.Deps.Blob.Release(ctx, *g.ScreenshotID, noOtherGeometryUsesIt); err != nil {
			w.Deps.Logger.ErrorContext(ctx, "remove-old-form-geometry: release screenshot failed", "error", err)
		}
	}
	return nil
}

// RemoveOldTestResultWorker deletes a FormFillingTest and its result
// screenshot, 6 hours after test-fill-form scheduled it.
type RemoveOldTestResultWorker struct {
	river.WorkerDefaults[RemoveOldTestResultArgs]
	Deps *Deps
}

func (w *RemoveOldTestResultWorker) Work(ctx context.Context, job *river.Job[RemoveOldTestResultArgs]) error {
	release, snooze := acquireGroups(w.Deps.Sched.Groups, KindRemoveOldTestResults)
	if snooze != nil {
		return snooze
	}
	defer release()

	test, err := w.Deps.Store.Tests.Get(ctx, job.Args.TestID)
	if err != nil {
		return nil
	}

	if err := w.Deps.Store.Tests.Delete(ctx, job.Args.TestID); err != nil {
		return fmt.Errorf("remove-old-test-results: delete: %w", err)
	}

	if test.Result != nil {
		noOtherTestUsesIt := func(ctx context.Context, key string) (bool, error) { return false, nil }
		if err := w.Deps.Blob.ReleaseResultScreenshots(ctx, test.Result.FormScreenshotID, test.Result.ConfirmScreenshotID, noOtherTestUsesIt); err != nil {
			w.Deps.Logger.ErrorContext(ctx, "remove-old-test-results: release screenshots failed", "error", err)
		}
	}
	return nil
}
