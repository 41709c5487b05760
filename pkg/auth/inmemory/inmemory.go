// Package inmemory provides an authentication backend over a static,
// configured set of users. Passwords are hashed with SHA-256 on load and
// compared in constant time; plaintext passwords are not retained.
package inmemory

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"slices"

	"github.com/rhuss/mgmtapi/pkg/auth"
)

// User is the configuration format for a static user.
type User struct {
	Password string
	Roles    []string
}

// entry is a loaded user.
type entry struct {
	hash  [32]byte
	roles []string
}

// UserStore is an immutable username to password and roles mapping.
type UserStore struct {
	users     map[string]entry
	adminRole string
}

var _ auth.Backend = (*UserStore)(nil)

// New creates a user store. Users with an empty password can never
// authenticate and are skipped.
func New(adminRole string, users map[string]User) *UserStore {
	s := &UserStore{
		users:     make(map[string]entry, len(users)),
		adminRole: adminRole,
	}
	for name, u := range users {
		if name == "" || u.Password == "" {
			continue
		}
		s.users[name] = entry{
			hash:  sha256.Sum256([]byte(u.Password)),
			roles: slices.Clone(u.Roles),
		}
	}
	return s
}

// Authenticate reports whether password matches the configured password.
// It never returns an error.
func (s *UserStore) Authenticate(_ context.Context, username, password string) (bool, error) {
	if password == "" {
		return false, nil
	}

	offered := sha256.Sum256([]byte(password))
	e, ok := s.users[username]
	if !ok {
		// Compare anyway so unknown users cost the same as known ones.
		subtle.ConstantTimeCompare(offered[:], offered[:])
		return false, nil
	}
	return subtle.ConstantTimeCompare(offered[:], e.hash[:]) == 1, nil
}

// ListRoles returns the configured roles of username, or nil for unknown users.
func (s *UserStore) ListRoles(_ context.Context, username string) ([]string, error) {
	return slices.Clone(s.users[username].roles), nil
}

// AdminRoleName returns the administrator role.
func (s *UserStore) AdminRoleName() string {
	return s.adminRole
}
