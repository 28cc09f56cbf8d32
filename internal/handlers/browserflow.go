package handlers

import (
	"context"
	"errors"

	"github.com/schoolbot/lockbox/internal/browser"
)

// openForm navigates to url and waits for the form to finish loading,
// performing the portal SSO sub-flow first if the page redirected to a
// login challenge instead of the form. Reports authRequired so callers
// that care (get-form-geometry) can record it.
func openForm(ctx context.Context, driver browser.Driver, url, login, password string) (authRequired bool, err error) {
	if err := driver.Open(ctx, url); err != nil {
		return false, err
	}

	if err := driver.WaitForSubmitButton(ctx); err == nil {
		return false, nil
	}

	if err := driver.PerformPortalSSO(ctx, login, password); err != nil {
		return true, err
	}
	if err := driver.WaitForSubmitButton(ctx); err != nil {
		return true, err
	}
	return true, nil
}

func isAuthChallengeFailure(err error) bool {
	return errors.Is(err, browser.ErrAuthChallengeInvalid) || errors.Is(err, browser.ErrCredentialsInvalid)
}
