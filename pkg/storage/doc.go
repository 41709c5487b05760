// Package storage defines the runtime configuration store consumed by the
// management API: the user-management subsystem (UserStore) and the
// routing endpoint registry (EndpointStore).
//
// Adapters live in subpackages. memory keeps everything in process and is
// used for tests and single-node deployments. postgres persists users in
// PostgreSQL. Both hold passwords only as bcrypt hashes.
package storage
