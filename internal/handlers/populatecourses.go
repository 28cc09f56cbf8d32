package handlers

import (
	"context"
	"fmt"
	"time"

	"github.com/riverqueue/river"

	"github.com/schoolbot/lockbox/internal/model"
	"github.com/schoolbot/lockbox/internal/scheduler"
)

const populateCoursesMaxAttempts = 12

// PopulateCoursesWorker resolves one user's async-course set from the
// portal's timetable.
type PopulateCoursesWorker struct {
	river.WorkerDefaults[PopulateCoursesArgs]
	Deps *Deps
}

func (w *PopulateCoursesWorker) NextRetry(job *river.Job[PopulateCoursesArgs]) time.Time {
	return nextRetryFromJobErrors(job.Errors)
}

func (w *PopulateCoursesWorker) Work(ctx context.Context, job *river.Job[PopulateCoursesArgs]) error {
	warnIfLate(ctx, w.Deps, KindPopulateCourses, job.ScheduledAt)

	release, snooze := acquireGroups(w.Deps.Sched.Groups, KindPopulateCourses)
	if snooze != nil {
		return snooze
	}
	defer release()

	u, err := w.Deps.Store.Users.Get(ctx, job.Args.UserToken)
	if err != nil {
		return river.JobCancel(fmt.Errorf("populate-courses: get user: %w", err))
	}
	if u.Login == nil || u.EncryptedPassword == nil {
		return river.JobCancel(fmt.Errorf("populate-courses: user %s has no credentials", u.Token))
	}

	password, err := w.Deps.Vault.Decrypt(*u.EncryptedPassword)
	if err != nil {
		return river.JobCancel(fmt.Errorf("populate-courses: decrypt password: %w", err))
	}

	if err := w.Deps.Store.Users.SetCourseIDs(ctx, u.Token, nil); err != nil {
		return fmt.Errorf("populate-courses: clear course ids: %w", err)
	}

	items, err := w.fetchAsyncTimetable(ctx, u.Token, *u.Login, password)
	if err != nil {
		if job.Attempt >= populateCoursesMaxAttempts {
			return river.JobCancel(err)
		}
		return scheduler.Retryable(err, 600*time.Second)
	}

	courseIDs := make([]string, 0, len(items))
	for _, item := range items {
		course, err := w.Deps.Store.Courses.UpsertByCode(ctx, item.CourseCode)
		if err != nil {
			return fmt.Errorf("populate-courses: upsert course %s: %w", item.CourseCode, err)
		}

		slot := model.KnownSlot(item.CycleDay, item.CoursePeriod)
		if err := w.Deps.Store.Courses.AddKnownSlot(ctx, course.ID, slot); err != nil {
			return fmt.Errorf("populate-courses: add known slot: %w", err)
		}
		if err := w.Deps.Store.Courses.SetTeacherNameIfUnset(ctx, course.ID, item.TeacherName); err != nil {
			return fmt.Errorf("populate-courses: set teacher name: %w", err)
		}

		courseIDs = append(courseIDs, course.ID)
	}
	courseIDs = dedupe(courseIDs)

	if err := w.Deps.Store.Users.SetCourseIDs(ctx, u.Token, &courseIDs); err != nil {
		return fmt.Errorf("populate-courses: set course ids: %w", err)
	}

	return nil
}

func (w *PopulateCoursesWorker) fetchAsyncTimetable(ctx context.Context, userToken, login, password string) ([]asyncItem, error) {
	session, err := w.Deps.Portal.Login(ctx, login, password)
	if err != nil {
		return nil, fmt.Errorf("populate-courses: login: %w", err)
	}

	schools, err := session.Schools(ctx, w.Deps.Config.School)
	if err != nil {
		return nil, fmt.Errorf("populate-courses: schools: %w", err)
	}
	if len(schools) != 1 {
		return nil, fmt.Errorf("populate-courses: expected exactly one school, got %d", len(schools))
	}

	timetable, err := session.Timetable(ctx, schools[0].ID)
	if err != nil {
		return nil, fmt.Errorf("populate-courses: timetable: %w", err)
	}

	var async []asyncItem
	for _, item := range timetable {
		if !item.IsAsync() {
			continue
		}
		async = append(async, asyncItem{
			CourseCode:   item.CourseCode,
			CoursePeriod: item.CoursePeriod,
			CycleDay:     item.CycleDay,
			TeacherName:  item.TeacherName,
		})
	}
	return async, nil
}

type asyncItem struct {
	CourseCode   string
	CoursePeriod string
	CycleDay     int
	TeacherName  string
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
