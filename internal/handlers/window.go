package handlers

import (
	"fmt"
	"math/rand"
	"strings"
	"time"
)

// parseWindow parses a "HH:MM:SS-HH:MM:SS" local-time window into the two
// bounds as offsets from local midnight.
func parseWindow(s string) (start, end time.Duration, err error) {
	parts := strings.SplitN(s, "-", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("handlers: malformed window %q", s)
	}
	start, err = parseClock(parts[0])
	if err != nil {
		return 0, 0, err
	}
	end, err = parseClock(parts[1])
	if err != nil {
		return 0, 0, err
	}
	return start, end, nil
}

func parseClock(s string) (time.Duration, error) {
	var h, m, sec int
	if _, err := fmt.Sscanf(s, "%d:%d:%d", &h, &m, &sec); err != nil {
		return 0, fmt.Errorf("handlers: malformed clock %q: %w", s, err)
	}
	return time.Duration(h)*time.Hour + time.Duration(m)*time.Minute + time.Duration(sec)*time.Second, nil
}

// randomTimeInWindow picks a uniformly random instant within the named
// local-time window on the given local calendar day (dayOffset days from
// today). A window whose end is before its start wraps past midnight.
func randomTimeInWindow(window string, dayOffset int) (time.Time, error) {
	start, end, err := parseWindow(window)
	if err != nil {
		return time.Time{}, err
	}

	now := time.Now().Local()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()).AddDate(0, 0, dayOffset)

	span := end - start
	if span < 0 {
		span += 24 * time.Hour
	}
	offset := time.Duration(0)
	if span > 0 {
		offset = time.Duration(rand.Int63n(int64(span)))
	}

	return midnight.Add(start + offset), nil
}

// NextFillFormWindow picks a random instant inside the fill-form window,
// today's occurrence if it hasn't passed yet, otherwise tomorrow's. Used
// by the API layer to ensure a user has a fill-form task scheduled
// without waiting for the next check-day run.
func NextFillFormWindow(window string) (time.Time, error) {
	start, end, err := parseWindow(window)
	if err != nil {
		return time.Time{}, err
	}

	now := time.Now().Local()
	span := end - start
	if span < 0 {
		span += 24 * time.Hour
	}
	endOfWindow := start + span

	dayOffset := 0
	sinceMidnight := time.Since(time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()))
	if sinceMidnight > endOfWindow {
		dayOffset = 1
	}

	return randomTimeInWindow(window, dayOffset)
}
