package middlewares

import (
	"context"
	"log/slog"
	"net/http"
	"runtime"
)

// DefaultStackSize is the default maximum stack trace size in bytes.
const DefaultStackSize = 4096

// PanicError wraps a recovered panic value and its stack trace.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return "panic recovered"
}

// RecoverConfig configures the recover middleware.
type RecoverConfig struct {
	StackSize         int  // Max stack trace size (default: 4096)
	DisablePrintStack bool // Disable stack trace in logs
	Logger            *slog.Logger
}

// RecoverOption configures RecoverConfig.
type RecoverOption func(*RecoverConfig)

// WithRecoverStackSize sets the maximum stack trace size.
func WithRecoverStackSize(size int) RecoverOption {
	return func(cfg *RecoverConfig) {
		cfg.StackSize = size
	}
}

// WithRecoverDisablePrintStack disables including stack trace in logs.
func WithRecoverDisablePrintStack() RecoverOption {
	return func(cfg *RecoverConfig) {
		cfg.DisablePrintStack = true
	}
}

// WithRecoverLogger sets the logger used to report recovered panics.
func WithRecoverLogger(logger *slog.Logger) RecoverOption {
	return func(cfg *RecoverConfig) {
		cfg.Logger = logger
	}
}

// Recover returns middleware that recovers from panics, logs them, and
// responds with 500 Internal Server Error.
func Recover(opts ...RecoverOption) func(http.Handler) http.Handler {
	cfg := &RecoverConfig{
		StackSize: DefaultStackSize,
		Logger:    slog.Default(),
	}

	for _, opt := range opts {
		opt(cfg)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					var stack []byte
					if !cfg.DisablePrintStack {
						stack = make([]byte, cfg.StackSize)
						n := runtime.Stack(stack, false)
						stack = stack[:n]
					}

					pe := &PanicError{Value: rec, Stack: stack}
					logPanic(r.Context(), cfg.Logger, pe)

					w.WriteHeader(http.StatusInternalServerError)
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}

func logPanic(ctx context.Context, logger *slog.Logger, pe *PanicError) {
	if logger == nil {
		logger = slog.Default()
	}
	if pe.Stack == nil {
		logger.ErrorContext(ctx, "panic recovered", "panic", pe.Value)
		return
	}
	logger.ErrorContext(ctx, "panic recovered", "panic", pe.Value, "stack", string(pe.Stack))
}
