package browser_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/schoolbot/lockbox/internal/browser"
	"github.com/schoolbot/lockbox/internal/browser/faketest"
	"github.com/schoolbot/lockbox/internal/model"
)

func TestFaketestDriverSatisfiesDriver(t *testing.T) {
	t.Parallel()

	var _ browser.Driver = faketest.New()
}

func TestFaketestDriverScriptedErrorsSurface(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	d := faketest.New()
	d.OpenErr = browser.ErrFormInvalid
	d.WaitForSubmitErr = browser.ErrAuthChallengeInvalid
	d.SubmitErr = browser.ErrResponseTimeout

	require.ErrorIs(t, d.Open(ctx, "https://forms.example.com"), browser.ErrFormInvalid)
	require.Equal(t, "https://forms.example.com", d.OpenedURL)
	require.ErrorIs(t, d.WaitForSubmitButton(ctx), browser.ErrAuthChallengeInvalid)
	require.ErrorIs(t, d.Submit(ctx), browser.ErrResponseTimeout)
}

func TestFaketestDriverRecordsFillCallsInOrder(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	d := faketest.New()

	require.NoError(t, d.FillText(ctx, 0, "Ada"))
	require.NoError(t, d.FillDate(ctx, 1, time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)))
	require.NoError(t, d.SelectChoice(ctx, 2, 1))
	require.NoError(t, d.SelectDropdown(ctx, 3, 0))

	require.Equal(t, []faketest.FillCall{
		{Method: "text", Index: 0, Value: "Ada"},
		{Method: "date", Index: 1, Value: "2024-01-15"},
		{Method: "choice", Index: 2, Value: "1"},
		{Method: "dropdown", Index: 3, Value: "0"},
	}, d.Filled)
}

func TestFaketestDriverGeometryAndScreenshot(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	d := faketest.New()
	d.Questions = []model.Question{{Index: 0, Title: "Name", Kind: model.QuestionText}}
	d.ScreenshotBytes = []byte("jpeg-bytes")

	questions, err := d.Geometry(ctx)
	require.NoError(t, err)
	require.Equal(t, d.Questions, questions)

	shot, err := d.Screenshot(ctx)
	require.NoError(t, err)
	require.Equal(t, []byte("jpeg-bytes"), shot)
}

func TestFaketestDriverCloseMarksClosed(t *testing.T) {
	t.Parallel()

	d := faketest.New()
	require.False(t, d.ClosedCalled)
	require.NoError(t, d.Close(context.Background()))
	require.True(t, d.ClosedCalled)
}
