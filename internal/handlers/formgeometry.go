package handlers

import (
	"context"
	"fmt"
	"time"

	"github.com/riverqueue/river"

	"github.com/schoolbot/lockbox/internal/model"
)

// GetFormGeometryWorker probes one form URL's page layout on behalf of
// the user who requested it through the API.
type GetFormGeometryWorker struct {
	river.WorkerDefaults[GetFormGeometryArgs]
	Deps *Deps
}

func (w *GetFormGeometryWorker) Work(ctx context.Context, job *river.Job[GetFormGeometryArgs]) error {
	warnIfLate(ctx, w.Deps, KindGetFormGeometry, job.ScheduledAt)

	release, snooze := acquireGroups(w.Deps.Sched.Groups, KindGetFormGeometry)
	if snooze != nil {
		return snooze
	}
	defer release()

	g, err := w.Deps.Store.Geometries.GetByID(ctx, job.Args.GeometryID)
	if err != nil {
		return river.JobCancel(fmt.Errorf("get-form-geometry: get geometry: %w", err))
	}

	u, err := w.Deps.Store.Users.Get(ctx, g.RequestedByUser)
	if err != nil {
		return river.JobCancel(fmt.Errorf("get-form-geometry: get requesting user: %w", err))
	}
	if u.Login == nil || u.EncryptedPassword == nil {
		return river.JobCancel(fmt.Errorf("get-form-geometry: user %s missing credentials", u.Token))
	}
	password, err := w.Deps.Vault.Decrypt(*u.EncryptedPassword)
	if err != nil {
		return river.JobCancel(fmt.Errorf("get-form-geometry: decrypt password: %w", err))
	}

	questions, authRequired, screenshotID, probeErr := w.probe(ctx, g.URL, *u.Login, password, job.Args.GrabScreenshot)
	if probeErr != nil {
		if err := w.Deps.Store.Geometries.CompleteError(ctx, g.ID, nil, probeErr.Error()); err != nil {
			w.Deps.Logger.ErrorContext(ctx, "get-form-geometry: record error failed", "error", err)
		}
		return w.scheduleCleanup(ctx, g.ID)
	}

	if err := w.Deps.Store.Geometries.CompleteSuccess(ctx, g.ID, questions, authRequired, screenshotID); err != nil {
		return fmt.Errorf("get-form-geometry: complete success: %w", err)
	}
	return w.scheduleCleanup(ctx, g.ID)
}

func (w *GetFormGeometryWorker) probe(ctx context.Context, url, login, password string, grabScreenshot bool) ([]model.Question, bool, *string, error) {
	driver, err := w.Deps.NewDriver(ctx)
	if err != nil {
		return nil, false, nil, fmt.Errorf("get-form-geometry: open driver: %w", err)
	}
	defer driver.Close(ctx)

	authRequired, err := openForm(ctx, driver, url, login, password)
	if err != nil {
		return nil, authRequired, nil, err
	}

	questions, err := driver.Geometry(ctx)
	if err != nil {
		return nil, authRequired, nil, fmt.Errorf("get-form-geometry: classify: %w", err)
	}

	if err := driver.RedactEmail(ctx); err != nil {
		w.Deps.Logger.WarnContext(ctx, "get-form-geometry: redact email failed", "error", err)
	}

	if !grabScreenshot {
		return questions, authRequired, nil, nil
	}

	shot, err := driver.Screenshot(ctx)
	if err != nil {
		return questions, authRequired, nil, nil
	}
	shotID, err := w.Deps.Blob.PutScreenshot(ctx, shot)
	if err != nil {
		return questions, authRequired, nil, fmt.Errorf("get-form-geometry: store screenshot: %w", err)
	}
	return questions, authRequired, &shotID, nil
}

func (w *GetFormGeometryWorker) scheduleCleanup(ctx context.Context, geometryID string) error {
	return w.Deps.Sched.Insert(ctx, RemoveOldFormGeometryArgs{GeometryID: geometryID}, &river.InsertOpts{ScheduledAt: time.Now().UTC().Add(15 * time.Minute)})
}
