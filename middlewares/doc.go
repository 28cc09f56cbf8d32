// Package middlewares provides standard net/http middleware: request ID
// propagation, panic recovery, request timeouts, and CORS.
//
// # Request ID
//
// RequestID assigns a unique ID to each request for tracing, checking
// incoming headers for an existing ID before generating a new one.
//
//	r := chi.NewRouter()
//	r.Use(middlewares.RequestID())
//
// Pair RequestIDExtractor with a slog handler decorator to include
// request_id in every log line written during that request.
//
// # Recover
//
// Recover catches panics, logs them (with a stack trace by default),
// and responds with 500 Internal Server Error.
//
//	r.Use(middlewares.Recover())
//
// # Timeout
//
// Timeout bounds how long a handler may run before the client receives
// a 504 Gateway Timeout. The handler goroutine keeps running after the
// deadline; long-running handlers should watch ctx.Done().
//
//	r.Use(middlewares.Timeout(5 * time.Second))
//
// # CORS
//
// CORS processes preflight (OPTIONS) requests and adds the appropriate
// headers to every response.
//
//	r.Use(middlewares.CORS(
//	    middlewares.WithAllowOrigins("https://app.example.com"),
//	    middlewares.WithAllowCredentials(),
//	))
//
// # Recommended order
//
//	r.Use(middlewares.CORS())
//	r.Use(middlewares.RequestID())
//	r.Use(middlewares.Recover())
//	r.Use(middlewares.Timeout(5 * time.Second))
package middlewares
