// Package portal defines the capability interface for the external
// school-information portal: a narrow interface with a deterministic
// fake for handler tests, and a production net/http adapter.
package portal

import (
	"context"
	"errors"
	"time"
)

// Client is everything the task engine needs from the portal: identity
// verification, school lookup, and the day's timetable.
type Client interface {
	// Login verifies a login/password pair against the portal.
	// Returns ErrInvalidCredentials on a portal-reported auth failure.
	Login(ctx context.Context, login, password string) (Session, error)
}

// Session is an authenticated portal session, scoped to the call that
// produced it.
type Session interface {
	// Schools lists the schools visible to this account, optionally
	// filtered by schoolCode (0 means no filter).
	Schools(ctx context.Context, schoolCode int) ([]School, error)

	// DayCycleName returns today's day-cycle name for the given school
	// (e.g. "D1".."D4", or a "no school" marker).
	DayCycleName(ctx context.Context, schoolID string) (string, error)

	// Timetable returns the timetable items from today through the end
	// of the current term for the given school.
	Timetable(ctx context.Context, schoolID string) ([]TimetableItem, error)

	// Identity returns the account's portal-derived identity fields.
	Identity(ctx context.Context) (Identity, error)
}

// School is one school visible to a portal account.
type School struct {
	ID   string
	Code int
	Name string
}

// TimetableItem is one scheduled class occurrence.
type TimetableItem struct {
	CourseCode   string
	CoursePeriod string // trailing "a" marks an async course
	CycleDay     int    // 1..4
	TeacherName  string
	TeacherEmail string
}

// IsAsync reports whether this timetable item is for an asynchronous
// course - one whose period identifier ends in "a".
func (t TimetableItem) IsAsync() bool {
	return len(t.CoursePeriod) > 0 && t.CoursePeriod[len(t.CoursePeriod)-1] == 'a'
}

// Identity is the portal's view of an account holder's personal data.
type Identity struct {
	Email     string
	FirstName string
	LastName  string
	Grade     int
}

// DayCycle parses a "D<N>" day-cycle name into N. A bare "D" with no
// trailing digit is the portal's own "no school today" marker.
func DayCycle(name string) (n int, noSchool bool, ok bool) {
	if name == "" || name[0] != 'D' {
		return 0, false, false
	}
	if name == "D" {
		return 0, true, true
	}
	n = 0
	for _, c := range name[1:] {
		if c < '0' || c > '9' {
			return 0, false, false
		}
		n = n*10 + int(c-'0')
	}
	return n, false, true
}

var (
	// ErrInvalidCredentials is returned by Login on a portal-reported
	// authentication failure.
	ErrInvalidCredentials = errors.New("portal: incorrect credentials")
	// ErrUnreachable wraps transport-level failures talking to the portal.
	ErrUnreachable = errors.New("portal: unreachable")
	// ErrUnexpectedShape is returned when the portal's response does not
	// match the expected number of schools or fields.
	ErrUnexpectedShape = errors.New("portal: unexpected response shape")
)

// DefaultTimeout bounds every portal HTTP call.
const DefaultTimeout = 15 * time.Second
