package handlers

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseWindow(t *testing.T) {
	t.Parallel()

	start, end, err := parseWindow("07:00:00-09:30:15")
	require.NoError(t, err)
	require.Equal(t, 7*time.Hour, start)
	require.Equal(t, 9*time.Hour+30*time.Minute+15*time.Second, end)
}

func TestParseWindowRejectsMalformedInput(t *testing.T) {
	t.Parallel()

	_, _, err := parseWindow("not-a-window")
	require.Error(t, err)

	_, _, err = parseWindow("07:00:00")
	require.Error(t, err)

	_, _, err = parseWindow("07:aa:00-09:00:00")
	require.Error(t, err)
}

func TestRandomTimeInWindowStaysWithinBounds(t *testing.T) {
	t.Parallel()

	for range 50 {
		got, err := randomTimeInWindow("07:00:00-09:00:00", 0)
		require.NoError(t, err)

		midnight := time.Date(got.Year(), got.Month(), got.Day(), 0, 0, 0, 0, got.Location())
		offset := got.Sub(midnight)
		require.GreaterOrEqual(t, offset, 7*time.Hour)
		require.Less(t, offset, 9*time.Hour)
	}
}

func TestRandomTimeInWindowWrapsPastMidnight(t *testing.T) {
	t.Parallel()

	now := time.Now().Local()
	for range 50 {
		got, err := randomTimeInWindow("23:00:00-01:00:00", 0)
		require.NoError(t, err)

		midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
		offset := got.Sub(midnight)
		// The wrapped window spans [23h, 25h) relative to midnight.
		require.GreaterOrEqual(t, offset, 23*time.Hour)
		require.Less(t, offset, 25*time.Hour)
	}
}

func TestRandomTimeInWindowAppliesDayOffset(t *testing.T) {
	t.Parallel()

	today, err := randomTimeInWindow("07:00:00-07:00:01", 0)
	require.NoError(t, err)
	tomorrow, err := randomTimeInWindow("07:00:00-07:00:01", 1)
	require.NoError(t, err)

	require.Equal(t, today.YearDay()+1, tomorrow.YearDay())
}

func TestNextFillFormWindowPicksTomorrowWhenTodayHasPassed(t *testing.T) {
	t.Parallel()

	now := time.Now().Local()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	// A window that ended exactly one minute ago has unambiguously passed
	// today, regardless of what time this test happens to run.
	passedEnd := now.Sub(midnight) - time.Minute
	if passedEnd <= 0 {
		t.Skip("too close to local midnight to construct an unambiguous past window")
	}
	window := "00:00:00-" + fmtClock(passedEnd)

	got, err := NextFillFormWindow(window)
	require.NoError(t, err)
	require.Equal(t, now.YearDay()+1, got.YearDay())
}

func fmtClock(d time.Duration) string {
	h := int(d / time.Hour)
	m := int((d % time.Hour) / time.Minute)
	s := int((d % time.Minute) / time.Second)
	return time.Date(0, 1, 1, h, m, s, 0, time.UTC).Format("15:04:05")
}
