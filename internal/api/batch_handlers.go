package api

import (
	"net/http"
	"time"

	"github.com/riverqueue/river"

	"github.com/schoolbot/lockbox/internal/handlers"
)

// PostUpdateAllCourses handles POST /update_all_courses: enqueues a
// populate-courses task for every active user with credentials,
// staggered in batches so the portal does not see a thundering herd at
// the top of the hour.
func (d *Deps) PostUpdateAllCourses(w http.ResponseWriter, r *http.Request) {
	users, err := d.Store.Users.ListActiveWithCredentials(r.Context())
	if err != nil {
		writeError(w, errInternal("list active users"))
		return
	}

	batchSize := d.Config.UpdateCoursesBatchSize
	if batchSize <= 0 {
		batchSize = 1
	}
	interval := time.Duration(d.Config.UpdateCoursesInterval) * time.Second

	now := time.Now().UTC()
	for i, u := range users {
		batch := i / batchSize
		runAt := now.Add(time.Duration(batch) * interval)
		opts := &river.InsertOpts{ScheduledAt: runAt}
		if err := d.Sched.Insert(r.Context(), handlers.PopulateCoursesArgs{UserToken: u.Token}, opts); err != nil {
			d.Logger.ErrorContext(r.Context(), "update all courses: enqueue failed", "user_token", u.Token, "error", err)
		}
	}

	writeJSON(w, http.StatusOK, map[string]int{"enqueued": len(users)})
}
