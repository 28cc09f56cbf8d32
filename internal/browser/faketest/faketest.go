// Package faketest provides a deterministic browser.Driver double for
// handler tests, scripted per call instead of driving a real browser.
package faketest

import (
	"context"
	"strconv"
	"time"

	"github.com/schoolbot/lockbox/internal/browser"
	"github.com/schoolbot/lockbox/internal/model"
)

// Driver is a scripted, in-memory browser.Driver.
type Driver struct {
	OpenErr             error
	PerformPortalSSOErr error
	WaitForSubmitErr    error
	Questions           []model.Question
	GeometryErr         error
	RedactEmailErr      error
	FillErr             error
	ScreenshotBytes     []byte
	ScreenshotErr       error
	SubmitErr           error
	ResponseMarkerErr   error
	ClosedCalled        bool

	// Filled records every FillText/FillDate/SelectChoice/SelectDropdown
	// call in order, for assertions on what a handler attempted to fill.
	Filled []FillCall

	// OpenedURL records the last URL passed to Open.
	OpenedURL string
}

// FillCall records one field-fill invocation.
type FillCall struct {
	Method string // "text", "date", "choice", "dropdown"
	Index  int
	Value  string
}

func New() *Driver {
	return &Driver{}
}

func (d *Driver) Open(ctx context.Context, url string) error {
	d.OpenedURL = url
	return d.OpenErr
}

func (d *Driver) PerformPortalSSO(ctx context.Context, login, password string) error {
	return d.PerformPortalSSOErr
}

func (d *Driver) WaitForSubmitButton(ctx context.Context) error {
	return d.WaitForSubmitErr
}

func (d *Driver) Geometry(ctx context.Context) ([]model.Question, error) {
	if d.GeometryErr != nil {
		return nil, d.GeometryErr
	}
	return d.Questions, nil
}

func (d *Driver) RedactEmail(ctx context.Context) error {
	return d.RedactEmailErr
}

func (d *Driver) FillText(ctx context.Context, index int, value string) error {
	d.Filled = append(d.Filled, FillCall{Method: "text", Index: index, Value: value})
	return d.FillErr
}

func (d *Driver) FillDate(ctx context.Context, index int, value time.Time) error {
	d.Filled = append(d.Filled, FillCall{Method: "date", Index: index, Value: value.Format("2006-01-02")})
	return d.FillErr
}

func (d *Driver) SelectChoice(ctx context.Context, index, optionIndex int) error {
	d.Filled = append(d.Filled, FillCall{Method: "choice", Index: index, Value: strconv.Itoa(optionIndex)})
	return d.FillErr
}

func (d *Driver) SelectDropdown(ctx context.Context, index, optionIndex int) error {
	d.Filled = append(d.Filled, FillCall{Method: "dropdown", Index: index, Value: strconv.Itoa(optionIndex)})
	return d.FillErr
}

func (d *Driver) Screenshot(ctx context.Context) ([]byte, error) {
	if d.ScreenshotErr != nil {
		return nil, d.ScreenshotErr
	}
	return d.ScreenshotBytes, nil
}

func (d *Driver) Submit(ctx context.Context) error {
	return d.SubmitErr
}

func (d *Driver) WaitForResponseMarker(ctx context.Context, timeout time.Duration) error {
	return d.ResponseMarkerErr
}

func (d *Driver) Close(ctx context.Context) error {
	d.ClosedCalled = true
	return nil
}

var _ browser.Driver = (*Driver)(nil)
