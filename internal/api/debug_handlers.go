package api

import (
	"net/http"

	"github.com/riverqueue/river"

	"github.com/schoolbot/lockbox/internal/handlers"
)

type debugTasksResponse struct {
	Jobs   []*river.JobRow   `json:"jobs"`
	Groups map[string][2]int `json:"groups"`
}

// GetDebugTasks handles GET /debug/tasks: dumps the currently
// queued/running/retryable task rows alongside each rate-limit group's
// in-use/capacity snapshot.
func (d *Deps) GetDebugTasks(w http.ResponseWriter, r *http.Request) {
	result, err := d.Sched.JobList(r.Context(), river.NewJobListParams().States(
		river.JobStateAvailable, river.JobStateRunning, river.JobStateScheduled, river.JobStateRetryable,
	))
	if err != nil {
		writeError(w, errInternal("list tasks"))
		return
	}

	writeJSON(w, http.StatusOK, debugTasksResponse{
		Jobs:   result.Jobs,
		Groups: d.Sched.Groups.Snapshot(),
	})
}

// PostDebugTasksUpdate handles POST /debug/tasks/update: forces an
// immediate check-day run, used by operators to re-trigger the day's
// dispatch without waiting for its scheduled window.
func (d *Deps) PostDebugTasksUpdate(w http.ResponseWriter, r *http.Request) {
	if err := d.Sched.Insert(r.Context(), handlers.CheckDayArgs{}, nil); err != nil {
		writeError(w, errInternal("enqueue check-day"))
		return
	}
	writeNoContent(w)
}
