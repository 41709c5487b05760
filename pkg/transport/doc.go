// Package transport holds the HTTP plumbing shared by the management API:
// the middleware chain, request IDs, access logging, panic recovery and
// JSON error responses.
//
// # Middleware
//
// Middleware wraps an http.Handler. Chain(a, b, c) produces a(b(c(h))), so
// the first middleware sees the request first. Built-in middleware provides
// panic recovery, request ID assignment (X-Request-ID) and structured
// access logging via log/slog.
//
// # Errors
//
// All error responses use the api.ErrorResponse envelope:
//
//	{"error": {"type": "unauthorized", "message": "authentication required"}}
package transport
