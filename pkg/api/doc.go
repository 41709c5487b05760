// Package api defines the wire types of the management REST surface.
//
// The package performs no I/O. It holds the JSON shapes returned by the
// management resources (users, endpoints, login), the structured error
// type shared by every handler, and random identifier generation.
//
// Core types:
//   - [APIError]: Structured error with type, code, param, and message
//   - [User]: A user as reported by the users resource
//   - [Endpoint]: A routing endpoint and its activation state
//   - [LoginResponse]: The bearer token handed out after a successful login
package api
