// Package tokenstore issues and tracks bearer tokens for the management API.
//
// Tokens are HS256-signed JWTs whose jti is a fresh random identifier. The
// signature is not what grants access: a token is valid only while the store
// holds a live record for it. Each record carries its own lock, so validation,
// revocation and eviction of one token are serialized while different tokens
// proceed independently.
//
// Revocation is permanent. Records idle for longer than the configured
// timeout are rejected on validation and removed by Sweep, which Run calls
// periodically.
package tokenstore
