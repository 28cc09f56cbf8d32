package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/schoolbot/lockbox/internal/store"
)

// HTTPError carries the status code and the message the client sees,
// rendered as a `{"error": "<msg>"}` envelope.
type HTTPError struct {
	Status  int
	Message string
}

func (e *HTTPError) Error() string { return e.Message }

var errBadToken = &HTTPError{Status: http.StatusUnauthorized, Message: "invalid or missing bearer token"}

func errBadRequest(msg string) *HTTPError  { return &HTTPError{Status: http.StatusBadRequest, Message: msg} }
func errConflict(msg string) *HTTPError    { return &HTTPError{Status: http.StatusConflict, Message: msg} }
func errInternal(msg string) *HTTPError    { return &HTTPError{Status: http.StatusInternalServerError, Message: msg} }

// errRateLimited is part of the documented status taxonomy (429); no
// endpoint currently raises it synchronously, since exceeding a
// rate-limit group only ever delays a task (see internal/scheduler),
// never fails an HTTP request outright.
func errRateLimited(msg string) *HTTPError { return &HTTPError{Status: http.StatusTooManyRequests, Message: msg} }

// classifyStoreErr maps a store lookup failure onto the status taxonomy.
func classifyStoreErr(err error) *HTTPError {
	if isNotFound(err) {
		return errBadRequest("not found")
	}
	return errInternal(err.Error())
}

func isNotFound(err error) bool { return errors.Is(err, store.ErrNotFound) }

// writeError renders err as the JSON error envelope, mapping a plain
// error (not an *HTTPError) to 500.
func writeError(w http.ResponseWriter, err error) {
	var httpErr *HTTPError
	if !errors.As(err, &httpErr) {
		httpErr = errInternal(err.Error())
	}
	writeJSON(w, httpErr.Status, map[string]string{"error": httpErr.Message})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

func writeNoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}
