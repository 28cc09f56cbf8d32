package handlers

// Task kind strings, one per river.JobArgs.Kind().
const (
	KindCheckDay              = "check-day"
	KindPopulateCourses       = "populate-courses"
	KindFillForm              = "fill-form"
	KindGetFormGeometry       = "get-form-geometry"
	KindTestFillForm          = "test-fill-form"
	KindRemoveOldFormGeometry = "remove-old-form-geometry"
	KindRemoveOldTestResults  = "remove-old-test-results"
)

// CheckDayArgs carries no payload; check-day is a singleton, ownerless
// task.
type CheckDayArgs struct{}

func (CheckDayArgs) Kind() string { return KindCheckDay }

// PopulateCoursesArgs resolves one user's course set from the portal
// timetable.
type PopulateCoursesArgs struct {
	UserToken string `json:"user_token"`
}

func (PopulateCoursesArgs) Kind() string { return KindPopulateCourses }

// FillFormArgs drives one user's daily attendance-form submission.
type FillFormArgs struct {
	UserToken string `json:"user_token"`
}

func (FillFormArgs) Kind() string { return KindFillForm }

// GetFormGeometryArgs probes a form URL's field layout into a pending
// CachedFormGeometry document.
type GetFormGeometryArgs struct {
	GeometryID     string `json:"geometry_id"`
	GrabScreenshot bool   `json:"grab_screenshot"`
}

func (GetFormGeometryArgs) Kind() string { return KindGetFormGeometry }

// TestFillFormArgs runs a dry-run fill against a specific
// FormFillingTest configuration.
type TestFillFormArgs struct {
	TestID string `json:"test_id"`
}

func (TestFillFormArgs) Kind() string { return KindTestFillForm }

// RemoveOldFormGeometryArgs deletes a geometry cache entry 15 minutes
// after it was filled in.
type RemoveOldFormGeometryArgs struct {
	GeometryID string `json:"geometry_id"`
}

func (RemoveOldFormGeometryArgs) Kind() string { return KindRemoveOldFormGeometry }

// RemoveOldTestResultArgs deletes a FormFillingTest result 6 hours after
// it finished.
type RemoveOldTestResultArgs struct {
	TestID string `json:"test_id"`
}

func (RemoveOldTestResultArgs) Kind() string { return KindRemoveOldTestResults }
