package store

import "errors"

// ErrNotFound is returned by any repository lookup that finds no matching row.
var ErrNotFound = errors.New("store: not found")
