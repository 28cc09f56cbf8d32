package handlers

import (
	"context"
	"fmt"
	"time"

	"github.com/riverqueue/river"

	"github.com/schoolbot/lockbox/internal/model"
)

// TestFillFormWorker drives the same field-filling pipeline as fill-form
// against a single user-chosen course, always as a dry run, reporting
// into the shared FormFillingTest rather than the user's live result.
type TestFillFormWorker struct {
	river.WorkerDefaults[TestFillFormArgs]
	Deps *Deps
}

func (w *TestFillFormWorker) Work(ctx context.Context, job *river.Job[TestFillFormArgs]) error {
	warnIfLate(ctx, w.Deps, KindTestFillForm, job.ScheduledAt)

	release, snooze := acquireGroups(w.Deps.Sched.Groups, KindTestFillForm)
	if snooze != nil {
		return snooze
	}
	defer release()

	if err := w.Deps.Store.Tests.MarkInProgress(ctx, job.Args.TestID, true); err != nil {
		return river.JobCancel(fmt.Errorf("test-fill-form: get test: %w", err))
	}
	defer func() {
		_ = w.Deps.Store.Tests.MarkInProgress(ctx, job.Args.TestID, false)
	}()

	test, err := w.Deps.Store.Tests.Get(ctx, job.Args.TestID)
	if err != nil {
		return river.JobCancel(fmt.Errorf("test-fill-form: get test: %w", err))
	}

	u, err := w.Deps.Store.Users.Get(ctx, test.UserToken)
	if err != nil {
		return river.JobCancel(fmt.Errorf("test-fill-form: get user: %w", err))
	}
	if u.Login == nil || u.EncryptedPassword == nil {
		return river.JobCancel(fmt.Errorf("test-fill-form: user %s missing credentials", u.Token))
	}
	password, err := w.Deps.Vault.Decrypt(*u.EncryptedPassword)
	if err != nil {
		return river.JobCancel(fmt.Errorf("test-fill-form: decrypt password: %w", err))
	}

	course, err := w.Deps.Store.Courses.GetByID(ctx, test.CourseID)
	if err != nil {
		return river.JobCancel(fmt.Errorf("test-fill-form: get course: %w", err))
	}
	if course.FormID == nil || course.FormURL == "" {
		return w.finish(ctx, job.Args.TestID, model.FillFormResult{Result: model.ResultFailure, Timestamp: time.Now().UTC()}, fmt.Sprintf("course %s has no form configured", course.CourseCode))
	}

	form, err := w.Deps.Store.Forms.Get(ctx, *course.FormID)
	if err != nil {
		return fmt.Errorf("test-fill-form: get form: %w", err)
	}

	target := resolvedFillTarget{course: course, courseCode: course.CourseCode, teacherName: course.TeacherName}
	fieldCtx := buildFieldContext(u, target)

	plan, failure := planFields(form, fieldCtx)
	if failure != nil {
		return w.finish(ctx, job.Args.TestID, model.FillFormResult{Result: model.ResultFailure, Timestamp: time.Now().UTC()}, failure.Error())
	}

	result, failMsg, err := w.runDryRun(ctx, course.FormURL, *u.Login, password, plan)
	if err != nil {
		return fmt.Errorf("test-fill-form: browser: %w", err)
	}

	return w.finish(ctx, job.Args.TestID, result, failMsg)
}

func (w *TestFillFormWorker) runDryRun(ctx context.Context, formURL, login, password string, plan []filledField) (model.FillFormResult, string, error) {
	driver, err := w.Deps.NewDriver(ctx)
	if err != nil {
		return model.FillFormResult{}, "", fmt.Errorf("test-fill-form: open driver: %w", err)
	}
	defer driver.Close(ctx)

	if _, err := openForm(ctx, driver, formURL, login, password); err != nil {
		return model.FillFormResult{Result: model.ResultFailure, Timestamp: time.Now().UTC()}, err.Error(), nil
	}

	for _, ff := range plan {
		if err := fillOneField(ctx, driver, ff); err != nil {
			if !ff.field.Critical {
				w.Deps.Logger.WarnContext(ctx, "test-fill-form: non-critical field failed", "index", ff.field.IndexOnPage, "error", err)
				continue
			}
			return model.FillFormResult{Result: model.ResultFailure, Timestamp: time.Now().UTC()}, err.Error(), nil
		}
	}

	shot, err := driver.Screenshot(ctx)
	if err != nil {
		return model.FillFormResult{Result: model.ResultFailure, Timestamp: time.Now().UTC()}, err.Error(), nil
	}
	shotID, err := w.Deps.Blob.PutScreenshot(ctx, shot)
	if err != nil {
		return model.FillFormResult{}, "", fmt.Errorf("test-fill-form: store screenshot: %w", err)
	}

	return model.FillFormResult{
		Result:           model.ResultSubmitDisabled,
		Timestamp:        time.Now().UTC(),
		FormScreenshotID: &shotID,
	}, "", nil
}

func (w *TestFillFormWorker) finish(ctx context.Context, testID string, result model.FillFormResult, failureMsg string) error {
	if failureMsg != "" {
		if err := w.Deps.Store.Tests.PushFailure(ctx, testID, newFailureEvent(model.FailureFormFilling, failureMsg)); err != nil {
			w.Deps.Logger.ErrorContext(ctx, "test-fill-form: push failure failed", "error", err)
		}
	}
	if err := w.Deps.Store.Tests.Finish(ctx, testID, result); err != nil {
		return fmt.Errorf("test-fill-form: finish: %w", err)
	}
	return w.Deps.Sched.Insert(ctx, RemoveOldTestResultArgs{TestID: testID}, &river.InsertOpts{ScheduledAt: time.Now().UTC().Add(6 * time.Hour)})
}
