package scheduler

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// RetryableError signals that a task handler failed transiently. A zero
// RetryIn means "give up": the handler should return river.JobCancel
// instead of this error, since there is no delay to schedule a next
// attempt from.
type RetryableError struct {
	Err     error
	RetryIn time.Duration
}

// retryInPattern matches the suffix appended to the error text so a later NextRetry
// lookup (which only sees the job's recorded error strings, not the Go
// error value) can recover the intended delay.
var retryInPattern = regexp.MustCompile(`\(retry_in=(\d+)s\)$`)

func (e *RetryableError) Error() string {
	if e.RetryIn <= 0 {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s (retry_in=%ds)", e.Err.Error(), int(e.RetryIn.Seconds()))
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

// Retryable wraps err as a RetryableError with the given delay.
func Retryable(err error, retryIn time.Duration) *RetryableError {
	return &RetryableError{Err: err, RetryIn: retryIn}
}

// GiveUp wraps err as a RetryableError with no delay, signalling the
// caller should stop retrying.
func GiveUp(err error) *RetryableError {
	return &RetryableError{Err: err}
}

// ParseRetryIn recovers the delay encoded by RetryableError.Error from a
// job's recorded attempt-error text.
func ParseRetryIn(errText string) (time.Duration, bool) {
	m := retryInPattern.FindStringSubmatch(errText)
	if m == nil {
		return 0, false
	}
	seconds, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return time.Duration(seconds) * time.Second, true
}
