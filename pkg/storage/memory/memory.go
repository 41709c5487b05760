// Package memory provides in-memory implementations of storage.UserStore
// and storage.EndpointStore for testing and single-node deployments. State
// is lost when the process restarts.
package memory

import (
	"context"
	"slices"
	"sort"
	"sync"

	"github.com/rhuss/mgmtapi/pkg/storage"
)

// userEntry holds a stored user.
type userEntry struct {
	hash  []byte
	roles []string
}

// Store is an in-memory user and endpoint store.
type Store struct {
	adminRole  string
	bcryptCost int

	mu        sync.RWMutex
	users     map[string]*userEntry
	endpoints map[string]storage.Endpoint
}

// Ensure Store implements both store interfaces at compile time.
var (
	_ storage.UserStore     = (*Store)(nil)
	_ storage.EndpointStore = (*Store)(nil)
)

// Option configures a Store.
type Option func(*Store)

// WithBcryptCost sets the bcrypt cost used when adding users.
func WithBcryptCost(cost int) Option {
	return func(s *Store) { s.bcryptCost = cost }
}

// New creates an empty store. adminRole names the administrator role.
func New(adminRole string, opts ...Option) *Store {
	s := &Store{
		adminRole: adminRole,
		users:     make(map[string]*userEntry),
		endpoints: make(map[string]storage.Endpoint),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Authenticate checks password against the stored hash.
func (s *Store) Authenticate(_ context.Context, username, password string) (bool, error) {
	s.mu.RLock()
	e, ok := s.users[username]
	s.mu.RUnlock()

	if !ok {
		return storage.CheckPassword(nil, password), nil
	}
	return storage.CheckPassword(e.hash, password), nil
}

// ListUsers returns all usernames in ascending order.
func (s *Store) ListUsers(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.users))
	for name := range s.users {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// RolesOf returns the roles of username.
func (s *Store) RolesOf(_ context.Context, username string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.users[username]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return slices.Clone(e.roles), nil
}

// AddUser creates or replaces a user. The password is hashed before the
// lock is taken.
func (s *Store) AddUser(_ context.Context, u storage.User) error {
	if err := u.Validate(); err != nil {
		return err
	}
	hash, err := storage.HashPassword(u.Password, s.bcryptCost)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.Username] = &userEntry{hash: hash, roles: slices.Clone(u.Roles)}
	return nil
}

// DeleteUser removes a user.
func (s *Store) DeleteUser(_ context.Context, username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[username]; !ok {
		return storage.ErrNotFound
	}
	delete(s.users, username)
	return nil
}

// AdminRoleName returns the administrator role.
func (s *Store) AdminRoleName() string {
	return s.adminRole
}

// AddEndpoint registers or replaces an endpoint.
func (s *Store) AddEndpoint(e storage.Endpoint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.endpoints[e.Name] = e
}

// ListEndpoints returns all endpoints ordered by name.
func (s *Store) ListEndpoints(_ context.Context) ([]storage.Endpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]storage.Endpoint, 0, len(s.endpoints))
	for _, e := range s.endpoints {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// GetEndpoint returns a single endpoint.
func (s *Store) GetEndpoint(_ context.Context, name string) (storage.Endpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.endpoints[name]
	if !ok {
		return storage.Endpoint{}, storage.ErrNotFound
	}
	return e, nil
}

// SetEndpointActive toggles an endpoint.
func (s *Store) SetEndpointActive(_ context.Context, name string, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.endpoints[name]
	if !ok {
		return storage.ErrNotFound
	}
	e.Active = active
	s.endpoints[name] = e
	return nil
}

// HealthCheck always succeeds.
func (s *Store) HealthCheck(_ context.Context) error {
	return nil
}

// Close is a no-op.
func (s *Store) Close() error {
	return nil
}
