package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/riverqueue/river"

	"github.com/schoolbot/lockbox/internal/browser"
	"github.com/schoolbot/lockbox/internal/fieldexpr"
	"github.com/schoolbot/lockbox/internal/model"
	"github.com/schoolbot/lockbox/internal/portal"
	"github.com/schoolbot/lockbox/internal/scheduler"
)

// FillFormWorker drives one user's daily attendance-form submission.
type FillFormWorker struct {
	river.WorkerDefaults[FillFormArgs]
	Deps *Deps
}

func (w *FillFormWorker) NextRetry(job *river.Job[FillFormArgs]) time.Time {
	return nextRetryFromJobErrors(job.Errors)
}

func (w *FillFormWorker) Work(ctx context.Context, job *river.Job[FillFormArgs]) error {
	warnIfLate(ctx, w.Deps, KindFillForm, job.ScheduledAt)

	release, snooze := acquireGroups(w.Deps.Sched.Groups, KindFillForm)
	if snooze != nil {
		return snooze
	}
	defer release()

	u, err := w.Deps.Store.Users.Get(ctx, job.Args.UserToken)
	if err != nil {
		return river.JobCancel(fmt.Errorf("fill-form: get user: %w", err))
	}
	if !u.Active || u.Login == nil || u.EncryptedPassword == nil {
		return river.JobCancel(fmt.Errorf("fill-form: user %s missing active credentials", u.Token))
	}

	password, err := w.Deps.Vault.Decrypt(*u.EncryptedPassword)
	if err != nil {
		return river.JobCancel(fmt.Errorf("fill-form: decrypt password: %w", err))
	}

	resolved, noFormToday, err := w.resolveCourse(ctx, u, *u.Login, password)
	if err != nil {
		var re *scheduler.RetryableError
		if errors.As(err, &re) {
			if job.Attempt >= w.Deps.Config.FillFormRetryLimit {
				return w.rescheduleTomorrow(ctx, u.Token)
			}
			return re
		}
		return fmt.Errorf("fill-form: resolve course: %w", err)
	}
	if noFormToday {
		return w.rescheduleTomorrow(ctx, u.Token)
	}

	course := resolved.course
	if !course.HasAttendanceForm {
		return w.rescheduleTomorrow(ctx, u.Token)
	}
	if course.FormID == nil || course.FormURL == "" {
		w.recordFailure(ctx, u.Token, model.FailureConfig, fmt.Sprintf("course %s has no form configured", course.CourseCode))
		return w.rescheduleTomorrow(ctx, u.Token)
	}

	form, err := w.Deps.Store.Forms.Get(ctx, *course.FormID)
	if err != nil {
		return fmt.Errorf("fill-form: get form: %w", err)
	}

	fieldCtx := buildFieldContext(u, resolved)

	plan, failure := planFields(form, fieldCtx)
	if failure != nil {
		if job.Attempt >= w.Deps.Config.FillFormRetryLimit {
			w.recordFailure(ctx, u.Token, model.FailureInternal, failure.Error())
			return w.rescheduleTomorrow(ctx, u.Token)
		}
		return scheduler.Retryable(failure, time.Duration(w.Deps.Config.FillFormRetryIn)*time.Second)
	}

	result, err := w.runBrowser(ctx, u, course.ID, course.FormURL, *u.Login, password, plan)
	if err != nil {
		var re *scheduler.RetryableError
		if errors.As(err, &re) {
			if job.Attempt >= w.Deps.Config.FillFormRetryLimit {
				w.recordFailure(ctx, u.Token, classifyBrowserErr(err), err.Error())
				return w.rescheduleTomorrow(ctx, u.Token)
			}
			return re
		}
		if isAuthChallengeFailure(err) {
			w.recordFailure(ctx, u.Token, classifyBrowserErr(err), err.Error())
			return w.rescheduleTomorrow(ctx, u.Token)
		}
		return fmt.Errorf("fill-form: browser: %w", err)
	}

	if err := w.persistResult(ctx, u, result); err != nil {
		return fmt.Errorf("fill-form: persist result: %w", err)
	}

	return w.rescheduleTomorrow(ctx, u.Token)
}

type resolvedFillTarget struct {
	course       *model.Course
	identity     portal.Identity
	hasIdentity  bool
	courseCode   string
	teacherName  string
	teacherEmail string
	cycleDay     int
}

// resolveCourse resolves today's fill-form target: live portal data
// first, falling back to stored course data keyed off the process-local
// current-day cell when the portal is unreachable.
func (w *FillFormWorker) resolveCourse(ctx context.Context, u *model.User, login, password string) (resolvedFillTarget, bool, error) {
	session, err := w.Deps.Portal.Login(ctx, login, password)
	if err == nil {
		return w.resolveFromPortal(ctx, u, session)
	}
	// Both an unreachable portal and a non-transient portal error fall
	// through to the stored-data path, keyed off the current-day cell.

	cycle, noSchool, ok := w.Deps.Sched.Day.Cycle()
	if !ok {
		return resolvedFillTarget{}, false, scheduler.Retryable(fmt.Errorf("fill-form: current day unknown"), time.Duration(w.Deps.Config.FillFormRetryIn)*time.Second)
	}
	if noSchool {
		return resolvedFillTarget{}, true, nil
	}

	if u.CourseIDs == nil {
		return resolvedFillTarget{}, false, fmt.Errorf("fill-form: no stored courses for user %s", u.Token)
	}
	for _, courseID := range *u.CourseIDs {
		course, err := w.Deps.Store.Courses.GetByID(ctx, courseID)
		if err != nil {
			continue
		}
		if hasCycleSlot(course.KnownSlots, cycle) {
			return resolvedFillTarget{course: course, courseCode: course.CourseCode, teacherName: course.TeacherName, cycleDay: cycle}, false, nil
		}
	}
	return resolvedFillTarget{}, false, fmt.Errorf("fill-form: no stored course matches cycle day %d", cycle)
}

func hasCycleSlot(slots []string, cycle int) bool {
	prefix := fmt.Sprintf("%d-", cycle)
	for _, s := range slots {
		if strings.HasPrefix(s, prefix) && strings.HasSuffix(s, "a") {
			return true
		}
	}
	return false
}

func (w *FillFormWorker) resolveFromPortal(ctx context.Context, u *model.User, session portal.Session) (resolvedFillTarget, bool, error) {
	schools, err := session.Schools(ctx, w.Deps.Config.School)
	if err != nil {
		return resolvedFillTarget{}, false, fmt.Errorf("fill-form: schools: %w", err)
	}
	if len(schools) != 1 {
		return resolvedFillTarget{}, false, fmt.Errorf("%w: expected exactly one school, got %d", portal.ErrUnexpectedShape, len(schools))
	}

	timetable, err := session.Timetable(ctx, schools[0].ID)
	if err != nil {
		return resolvedFillTarget{}, false, fmt.Errorf("fill-form: timetable: %w", err)
	}

	var async []portal.TimetableItem
	for _, item := range timetable {
		if item.IsAsync() {
			async = append(async, item)
		}
	}
	if len(async) == 0 {
		return resolvedFillTarget{}, true, nil
	}
	if len(async) > 1 {
		w.Deps.Logger.WarnContext(ctx, "fill-form: multiple async courses today, using first", "user", u.Token, "count", len(async))
	}
	chosen := async[0]

	course, err := w.Deps.Store.Courses.GetByCode(ctx, chosen.CourseCode)
	if err != nil {
		return resolvedFillTarget{}, false, fmt.Errorf("fill-form: get course %s: %w", chosen.CourseCode, err)
	}

	identity, err := session.Identity(ctx)
	hasIdentity := err == nil

	return resolvedFillTarget{
		course:       course,
		identity:     identity,
		hasIdentity:  hasIdentity,
		courseCode:   chosen.CourseCode,
		teacherName:  chosen.TeacherName,
		teacherEmail: chosen.TeacherEmail,
		cycleDay:     chosen.CycleDay,
	}, false, nil
}

// buildFieldContext assembles the field-expression context, preferring
// fresh portal data over stored data, then letting the user's manual
// identity overrides win last.
func buildFieldContext(u *model.User, r resolvedFillTarget) fieldexpr.Context {
	email, firstName, lastName := "", "", ""
	grade := 0

	if r.hasIdentity {
		email, firstName, lastName, grade = r.identity.Email, r.identity.FirstName, r.identity.LastName, r.identity.Grade
	}
	if u.CachedIdentity.Email != "" {
		email = u.CachedIdentity.Email
	}
	if u.CachedIdentity.FirstName != "" {
		firstName = u.CachedIdentity.FirstName
	}
	if u.CachedIdentity.LastName != "" {
		lastName = u.CachedIdentity.LastName
	}
	if u.CachedIdentity.Grade != nil {
		grade = *u.CachedIdentity.Grade
	}

	return fieldexpr.Context{
		"name":          fieldexpr.StringValue(strings.TrimSpace(firstName + " " + lastName)),
		"first_name":    fieldexpr.StringValue(firstName),
		"last_name":     fieldexpr.StringValue(lastName),
		"email":         fieldexpr.StringValue(email),
		"grade":         fieldexpr.IntValue(grade),
		"today":         fieldexpr.DateValue(time.Now().UTC()),
		"course_code":   fieldexpr.StringValue(r.courseCode),
		"teacher_name":  fieldexpr.StringValue(r.teacherName),
		"teacher_email": fieldexpr.StringValue(r.teacherEmail),
		"day_cycle":     fieldexpr.IntValue(r.cycleDay),
	}
}

type filledField struct {
	field model.FormField
	value fieldexpr.Value
}

// planFields evaluates every field's target expression. A non-critical
// failure is dropped with a warning; a critical failure aborts the plan.
func planFields(form *model.Form, ctx fieldexpr.Context) ([]filledField, error) {
	plan := make([]filledField, 0, len(form.Fields))
	for _, field := range form.Fields {
		val, err := fieldexpr.Eval(field.TargetValue, ctx)
		if err != nil {
			if !field.Critical {
				slog.Warn("fill-form: dropping non-critical field", "error", err)
				continue
			}
			return nil, fmt.Errorf("fill-form: evaluate field %d: %w", field.IndexOnPage, err)
		}
		plan = append(plan, filledField{field: field, value: val})
	}
	return plan, nil
}

type fillOutcome struct {
	result              model.FillResultStatus
	formScreenshotID    *string
	confirmScreenshotID *string
}

func (w *FillFormWorker) runBrowser(ctx context.Context, u *model.User, courseID, formURL, login, password string, plan []filledField) (fillOutcome, error) {
	driver, err := w.Deps.NewDriver(ctx)
	if err != nil {
		return fillOutcome{}, fmt.Errorf("fill-form: open driver: %w", err)
	}
	defer driver.Close(ctx)

	if _, err := openForm(ctx, driver, formURL, login, password); err != nil {
		if isAuthChallengeFailure(err) {
			return fillOutcome{}, err
		}
		return fillOutcome{}, scheduler.Retryable(err, time.Duration(w.Deps.Config.FillFormRetryIn)*time.Second)
	}

	for _, ff := range plan {
		if err := fillOneField(ctx, driver, ff); err != nil {
			if !ff.field.Critical {
				w.Deps.Logger.WarnContext(ctx, "fill-form: non-critical field failed", "index", ff.field.IndexOnPage, "error", err)
				continue
			}
			return fillOutcome{}, scheduler.Retryable(err, time.Duration(w.Deps.Config.FillFormRetryIn)*time.Second)
		}
	}

	formShot, err := driver.Screenshot(ctx)
	if err != nil {
		return fillOutcome{}, scheduler.Retryable(err, time.Duration(w.Deps.Config.FillFormRetryIn)*time.Second)
	}
	formShotID, err := w.Deps.Blob.PutScreenshot(ctx, formShot)
	if err != nil {
		return fillOutcome{}, fmt.Errorf("fill-form: store form screenshot: %w", err)
	}

	if !w.Deps.Config.FillFormSubmitEnabled {
		return fillOutcome{
			result:              model.ResultSubmitDisabled,
			formScreenshotID:    &formShotID,
			confirmScreenshotID: &formShotID,
		}, nil
	}

	if err := driver.Submit(ctx); err != nil {
		return fillOutcome{}, scheduler.Retryable(err, time.Duration(w.Deps.Config.FillFormRetryIn)*time.Second)
	}

	waitErr := driver.WaitForResponseMarker(ctx, browser.ResponseMarkerTimeout)
	if waitErr != nil {
		return fillOutcome{
			result:           model.ResultPossibleFailure,
			formScreenshotID: &formShotID,
		}, nil
	}

	confirmShot, err := driver.Screenshot(ctx)
	if err != nil {
		return fillOutcome{result: model.ResultPossibleFailure, formScreenshotID: &formShotID}, nil
	}
	confirmShotID, err := w.Deps.Blob.PutScreenshot(ctx, confirmShot)
	if err != nil {
		return fillOutcome{}, fmt.Errorf("fill-form: store confirm screenshot: %w", err)
	}

	return fillOutcome{
		result:              model.ResultSuccess,
		formScreenshotID:    &formShotID,
		confirmScreenshotID: &confirmShotID,
	}, nil
}

func fillOneField(ctx context.Context, driver browser.Driver, ff filledField) error {
	index := ff.field.IndexOnPage
	switch ff.field.Kind {
	case model.QuestionText, model.QuestionLongText:
		if ff.value.Kind != fieldexpr.KindString {
			return fmt.Errorf("fill-form: field %d target is not a string", index)
		}
		return driver.FillText(ctx, index, ff.value.Str)
	case model.QuestionDate:
		if ff.value.Kind != fieldexpr.KindDate {
			return fmt.Errorf("fill-form: field %d target is not a date", index)
		}
		return driver.FillDate(ctx, index, ff.value.Date)
	case model.QuestionMultipleChoice, model.QuestionCheckbox:
		if ff.value.Kind != fieldexpr.KindInt {
			return fmt.Errorf("fill-form: field %d target is not an int", index)
		}
		return driver.SelectChoice(ctx, index, ff.value.Int)
	case model.QuestionDropdown:
		if ff.value.Kind != fieldexpr.KindInt {
			return fmt.Errorf("fill-form: field %d target is not an int", index)
		}
		return driver.SelectDropdown(ctx, index, ff.value.Int)
	default:
		return nil
	}
}

func (w *FillFormWorker) persistResult(ctx context.Context, u *model.User, outcome fillOutcome) error {
	if u.LastFillResult != nil {
		stillReferenced := func(ctx context.Context, key string) (bool, error) {
			return false, nil
		}
		_ = w.Deps.Blob.ReleaseResultScreenshots(ctx, u.LastFillResult.FormScreenshotID, u.LastFillResult.ConfirmScreenshotID, stillReferenced)
	}

	result := model.FillFormResult{
		Result:              outcome.result,
		Timestamp:           time.Now().UTC(),
		FormScreenshotID:    outcome.formScreenshotID,
		ConfirmScreenshotID: outcome.confirmScreenshotID,
	}

	if outcome.result != model.ResultSuccess && outcome.result != model.ResultSubmitDisabled {
		kind := model.FailureFormFilling
		if err := w.Deps.Store.Users.PushFailureEvent(ctx, u.Token, newFailureEvent(kind, string(outcome.result))); err != nil {
			return err
		}
	}

	return w.Deps.Store.Users.SetLastFillResult(ctx, u.Token, result)
}

func (w *FillFormWorker) recordFailure(ctx context.Context, userToken string, kind model.FailureKind, message string) {
	if err := w.Deps.Store.Users.PushFailureEvent(ctx, userToken, newFailureEvent(kind, message)); err != nil {
		w.Deps.Logger.ErrorContext(ctx, "fill-form: record failure event failed", "error", err)
	}
	_ = w.Deps.Store.Users.SetLastFillResult(ctx, userToken, model.FillFormResult{
		Result:    model.ResultFailure,
		Timestamp: time.Now().UTC(),
	})
}

func (w *FillFormWorker) rescheduleTomorrow(ctx context.Context, userToken string) error {
	runAt, err := randomTimeInWindow(w.Deps.Config.FillFormRunTime, 1)
	if err != nil {
		return fmt.Errorf("fill-form: schedule tomorrow: %w", err)
	}
	return w.Deps.Sched.Insert(ctx, FillFormArgs{UserToken: userToken}, &river.InsertOpts{ScheduledAt: runAt.UTC()})
}

