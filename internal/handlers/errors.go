package handlers

import (
	"errors"
	"time"

	"github.com/schoolbot/lockbox/internal/model"
	"github.com/schoolbot/lockbox/internal/portal"
)

// classifyPortalErr maps a portal.Client error into the failure taxonomy.
func classifyPortalErr(err error) model.FailureKind {
	switch {
	case errors.Is(err, portal.ErrInvalidCredentials):
		return model.FailureBadUserInfo
	case errors.Is(err, portal.ErrUnexpectedShape):
		return model.FailureBadUserInfo
	case errors.Is(err, portal.ErrUnreachable):
		return model.FailureTDSBConnects
	default:
		return model.FailureTDSBConnects
	}
}

// classifyBrowserErr maps a browser.Driver error into the failure
// taxonomy. auth-challenge failures are not retryable; everything else
// reported by the driver is.
func classifyBrowserErr(err error) model.FailureKind {
	return model.FailureFormFilling
}

func newFailureEvent(kind model.FailureKind, message string) model.FailureEvent {
	return model.FailureEvent{
		Timestamp: time.Now().UTC(),
		Kind:      kind,
		Message:   message,
	}
}
