package api

import (
	"encoding/json"
	"net/http"

	"github.com/schoolbot/lockbox/internal/handlers"
	"github.com/schoolbot/lockbox/pkg/id"
)

type testFormRequest struct {
	TestSetupID string `json:"test_setup_id"`
	CourseID    string `json:"course_id"`
}

// PostTestForm handles POST /test_form: creates (if new) a
// FormFillingTest for the caller's chosen course and schedules a
// test-fill-form dry run against it.
func (d *Deps) PostTestForm(w http.ResponseWriter, r *http.Request) {
	u := userFromContext(r.Context())

	var req testFormRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errBadRequest("malformed json body"))
		return
	}

	testID := req.TestSetupID
	if testID == "" {
		testID = id.NewShortID()
	}

	if _, err := d.Store.Tests.Get(r.Context(), testID); err != nil {
		if !isNotFound(err) {
			writeError(w, classifyStoreErr(err))
			return
		}
		if req.CourseID == "" {
			writeError(w, errBadRequest("course_id is required"))
			return
		}
		if _, err := d.Store.Tests.Create(r.Context(), testID, u.Token, req.CourseID); err != nil {
			writeError(w, classifyStoreErr(err))
			return
		}
	}

	if err := d.Store.Tests.MarkScheduled(r.Context(), testID); err != nil {
		writeError(w, classifyStoreErr(err))
		return
	}

	if err := d.Sched.Insert(r.Context(), handlers.TestFillFormArgs{TestID: testID}, nil); err != nil {
		writeError(w, errInternal("enqueue test-fill-form"))
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"test_setup_id": testID})
}
