// Package auth decides whether a request to the management API may proceed.
//
// A Pipeline evaluates an ordered list of Handlers. Each handler inspects the
// Authorization header and returns a tri-state Result: Allowed with the
// resolved Principal, Denied with a Reason, or BackendError when a user store
// could not be consulted. The first Allowed result wins. A BackendError ends
// evaluation and the request fails closed.
//
// Middleware turns the pipeline decision into an HTTP outcome. Denials share
// one response body regardless of reason, and a WWW-Authenticate challenge is
// only sent when the request carried no credentials at all.
package auth
