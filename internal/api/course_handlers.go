package api

import (
	"net/http"

	"github.com/schoolbot/lockbox/internal/handlers"
)

type userCoursesResponse struct {
	Courses []string `json:"courses"`
	Pending bool     `json:"pending"`
}

// GetUserCourses handles GET /user/courses.
func (d *Deps) GetUserCourses(w http.ResponseWriter, r *http.Request) {
	u := userFromContext(r.Context())

	if u.CourseIDs == nil {
		writeJSON(w, http.StatusOK, userCoursesResponse{Courses: nil, Pending: u.CredentialsSet()})
		return
	}
	writeJSON(w, http.StatusOK, userCoursesResponse{Courses: *u.CourseIDs, Pending: false})
}

// UpdateUserCourses handles POST /user/courses/update, enqueueing a fresh
// populate-courses run. Requires the user to already have credentials
// set, since populate-courses resolves the course set from the portal.
func (d *Deps) UpdateUserCourses(w http.ResponseWriter, r *http.Request) {
	u := userFromContext(r.Context())

	if !u.CredentialsSet() {
		writeError(w, errConflict("user has no login/password set"))
		return
	}

	if err := d.Sched.Insert(r.Context(), handlers.PopulateCoursesArgs{UserToken: u.Token}, nil); err != nil {
		writeError(w, errInternal("enqueue populate-courses"))
		return
	}
	writeNoContent(w)
}
