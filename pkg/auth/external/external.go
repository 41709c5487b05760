// Package external provides an authentication backend that delegates to the
// runtime's user-management subsystem. Subsystem failures are reported as
// auth.ErrBackend so that an outage is never mistaken for bad credentials.
package external

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rhuss/mgmtapi/pkg/auth"
	"github.com/rhuss/mgmtapi/pkg/debug"
	"github.com/rhuss/mgmtapi/pkg/observability"
	"github.com/rhuss/mgmtapi/pkg/storage"
)

// UserStore adapts a storage.UserStore to auth.Backend.
type UserStore struct {
	name  string
	users storage.UserStore
}

var _ auth.Backend = (*UserStore)(nil)

// New creates a backend over users. name labels the store in metrics
// (e.g. "memory", "postgres").
func New(name string, users storage.UserStore) *UserStore {
	return &UserStore{name: name, users: users}
}

// Authenticate delegates to the subsystem. Calls are not retried.
func (s *UserStore) Authenticate(ctx context.Context, username, password string) (bool, error) {
	start := time.Now()
	ok, err := s.users.Authenticate(ctx, username, password)
	observability.ObserveUserStore(s.name, "authenticate", start, err)
	if err != nil {
		return false, fmt.Errorf("%w: %w", auth.ErrBackend, err)
	}
	debug.Log("storage", "user store authenticate", "backend", s.name, "username", username, "ok", ok)
	return ok, nil
}

// ListRoles returns the roles of username. A user deleted since it
// authenticated has no roles.
func (s *UserStore) ListRoles(ctx context.Context, username string) ([]string, error) {
	start := time.Now()
	roles, err := s.users.RolesOf(ctx, username)
	if errors.Is(err, storage.ErrNotFound) {
		observability.ObserveUserStore(s.name, "roles", start, nil)
		return nil, nil
	}
	observability.ObserveUserStore(s.name, "roles", start, err)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", auth.ErrBackend, err)
	}
	return roles, nil
}

// AdminRoleName returns the subsystem's administrator role.
func (s *UserStore) AdminRoleName() string {
	return s.users.AdminRoleName()
}
