// Package model defines the domain entities shared across the store,
// handlers, and API layers: users, courses, forms, cached form geometry,
// and the embedded result/failure records attached to them.
package model

import (
	"strconv"
	"time"
)

// FailureKind classifies why a task or fill attempt failed.
type FailureKind string

const (
	FailureUnknown      FailureKind = "unknown"
	FailureInternal     FailureKind = "internal"
	FailureBadUserInfo  FailureKind = "bad-user-info"
	FailureTDSBConnects FailureKind = "tdsb-connects"
	FailureConfig       FailureKind = "config"
	FailureFormFilling  FailureKind = "form-filling"
)

// FillResultStatus is the outcome of a fill-form or test-fill-form attempt.
type FillResultStatus string

const (
	ResultSuccess         FillResultStatus = "success"
	ResultFailure         FillResultStatus = "failure"
	ResultPossibleFailure FillResultStatus = "possible-failure"
	ResultSubmitDisabled  FillResultStatus = "submit-disabled"
)

// GeometryStatus is the lifecycle state of a CachedFormGeometry.
type GeometryStatus string

const (
	GeometryPending  GeometryStatus = "pending"
	GeometryComplete GeometryStatus = "complete"
	GeometryError    GeometryStatus = "error"
)

// QuestionKind is how the browser adapter classified a form field on a page.
type QuestionKind string

const (
	QuestionText           QuestionKind = "text"
	QuestionLongText       QuestionKind = "long-text"
	QuestionMultipleChoice QuestionKind = "multiple-choice"
	QuestionDate           QuestionKind = "date"
	QuestionCheckbox       QuestionKind = "checkbox"
	QuestionDropdown       QuestionKind = "dropdown"
	QuestionSkipped        QuestionKind = "skipped"
)

// FailureEvent records one failed operation against a user.
type FailureEvent struct {
	ID        string      `json:"id"`
	Timestamp time.Time   `json:"timestamp"`
	Kind      FailureKind `json:"kind"`
	Message   string      `json:"message"`
}

// FillFormResult is the outcome of the most recent fill-form (or
// test-fill-form) attempt for a user/course.
type FillFormResult struct {
	Result               FillResultStatus `json:"result"`
	Timestamp            time.Time        `json:"timestamp"`
	CourseID             *string          `json:"course_id,omitempty"`
	FormScreenshotID     *string          `json:"form_screenshot_id,omitempty"`
	ConfirmScreenshotID  *string          `json:"confirm_screenshot_id,omitempty"`
}

// Identity is the portal-derived or manually-overridden personal data used
// to fill in form fields.
type Identity struct {
	Email     string `json:"email,omitempty"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Grade     *int   `json:"grade,omitempty"`
}

// User is the private-database record for one enrolled person.
type User struct {
	Token              string          `json:"token"`
	Login              *string         `json:"login,omitempty"`
	EncryptedPassword  *string         `json:"-"`
	CachedIdentity     Identity        `json:"cached_identity"`
	Active             bool            `json:"active"`
	CourseIDs          *[]string       `json:"course_ids"` // nil = pending
	FailureEvents      []FailureEvent  `json:"failure_events"`
	LastFillResult     *FillFormResult `json:"last_fill_result,omitempty"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

// CredentialsSet reports whether both a login and an encrypted password
// are present on the user.
func (u *User) CredentialsSet() bool {
	return u.Login != nil && *u.Login != "" && u.EncryptedPassword != nil && *u.EncryptedPassword != ""
}

// FormField is one field in an ordered Form template.
type FormField struct {
	IndexOnPage          int          `json:"index_on_page"`
	ExpectedLabelSegment string       `json:"expected_label_segment"`
	Kind                 QuestionKind `json:"kind"`
	TargetValue          string       `json:"target_value"` // field-expression source
	Critical             bool         `json:"critical"`
}

// Form is a named, shared template of ordered fields.
type Form struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Fields      []FormField `json:"fields"`
	ThumbnailID *string     `json:"thumbnail_id,omitempty"`
	IsDefault   bool        `json:"is_default"`
}

// Course is a shared, school-wide class record.
type Course struct {
	ID                  string    `json:"id"`
	CourseCode          string    `json:"course_code"`
	ConfigurationLocked bool      `json:"configuration_locked"`
	HasAttendanceForm   bool      `json:"has_attendance_form"`
	FormURL             string    `json:"form_url,omitempty"`
	FormID              *string   `json:"form_id,omitempty"`
	KnownSlots          []string  `json:"known_slots"`
	TeacherName         string    `json:"teacher_name,omitempty"`
}

// Question is one field discovered on a live form page by the browser adapter.
type Question struct {
	Index int          `json:"index"`
	Title string       `json:"title"`
	Kind  QuestionKind `json:"kind"`
}

// CachedFormGeometry is a private-database record of a form's discovered
// layout, keyed by URL, with a short TTL.
type CachedFormGeometry struct {
	ID              string          `json:"id"`
	URL             string          `json:"url"`
	RequestedByUser string          `json:"requested_by_user"`
	Status          GeometryStatus  `json:"status"`
	Questions       []Question      `json:"questions,omitempty"`
	AuthRequired    bool            `json:"auth_required"`
	ScreenshotID    *string         `json:"screenshot_id,omitempty"`
	ResponseStatus  *int            `json:"response_status,omitempty"`
	Error           *string         `json:"error,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
}

// FormFillingTest is a shared, user-requested trial run of a specific
// course/form configuration, always a dry run.
type FormFillingTest struct {
	ID          string          `json:"id"`
	UserToken   string          `json:"user_token"`
	CourseID    string          `json:"course_id"`
	IsFinished  bool            `json:"is_finished"`
	InProgress  bool            `json:"in_progress"`
	IsScheduled bool            `json:"is_scheduled"`
	Failures    []FailureEvent  `json:"failures"`
	Result      *FillFormResult `json:"result,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// KnownSlot builds the "<cycle_day>-<period>" string recorded in
// Course.KnownSlots.
func KnownSlot(cycleDay int, period string) string {
	return strconv.Itoa(cycleDay) + "-" + period
}
