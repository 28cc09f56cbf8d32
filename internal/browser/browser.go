// Package browser defines the capability interface for deterministic
// interactions with the portal login flow and a form page, consumed by
// the fill-form, get-form-geometry, and test-fill-form task handlers.
// chromedp drives it in production; a deterministic fake stands in for
// tests.
package browser

import (
	"context"
	"errors"
	"time"

	"github.com/schoolbot/lockbox/internal/model"
)

// Driver drives one browser instance through one form-filling or
// geometry-probing session. Each task handler acquires its own Driver and
// releases it (Close) on every path.
type Driver interface {
	Open(ctx context.Context, url string) error

	// PerformPortalSSO runs the authentication sub-flow after Open
	// detects a portal login redirect.
	PerformPortalSSO(ctx context.Context, login, password string) error

	// WaitForSubmitButton waits for the form page to finish loading,
	// signalled by the submit button's appearance.
	WaitForSubmitButton(ctx context.Context) error

	// Geometry classifies every question on the current page.
	Geometry(ctx context.Context) ([]model.Question, error)

	// RedactEmail blanks the displayed email address in the DOM before a
	// geometry screenshot is taken.
	RedactEmail(ctx context.Context) error

	FillText(ctx context.Context, index int, value string) error
	FillDate(ctx context.Context, index int, value time.Time) error
	SelectChoice(ctx context.Context, index, optionIndex int) error
	SelectDropdown(ctx context.Context, index, optionIndex int) error

	Screenshot(ctx context.Context) ([]byte, error)

	Submit(ctx context.Context) error

	// WaitForResponseMarker waits up to timeout for navigation to a URL
	// containing the response marker.
	WaitForResponseMarker(ctx context.Context, timeout time.Duration) error

	Close(ctx context.Context) error
}

// Failure kinds reported by a Driver, mapped by handlers into
// model.FailureKind.
var (
	// ErrAuthChallengeInvalid: the portal login identity page never appeared.
	ErrAuthChallengeInvalid = errors.New("browser: auth challenge invalid")
	// ErrCredentialsInvalid: the post-login element never appeared.
	ErrCredentialsInvalid = errors.New("browser: credentials invalid")
	// ErrFormInvalid: an expected element/title mismatch on the form page.
	ErrFormInvalid = errors.New("browser: form invalid")
	// ErrResponseTimeout: submit succeeded but the response marker never
	// appeared within the timeout.
	ErrResponseTimeout = errors.New("browser: response marker timeout")
)

// ResponseMarkerTimeout is the default wait for the post-submit response
// marker.
const ResponseMarkerTimeout = 10 * time.Second
