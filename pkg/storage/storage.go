package storage

import (
	"context"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// User is a user definition of the runtime.
type User struct {
	Username string
	Password string // plaintext, only used when creating users
	Roles    []string
}

// Validate checks that u can be stored.
func (u User) Validate() error {
	if u.Username == "" {
		return fmt.Errorf("%w: username is required", ErrInvalidUser)
	}
	if u.Password == "" {
		return fmt.Errorf("%w: password is required for %q", ErrInvalidUser, u.Username)
	}
	return nil
}

// Endpoint is a named routing endpoint of the integration runtime.
type Endpoint struct {
	Name    string
	Type    string
	Address string
	Active  bool
}

// UserStore is the user-management subsystem.
type UserStore interface {
	// Authenticate reports whether password matches the stored hash.
	// Unknown users yield false and a nil error.
	Authenticate(ctx context.Context, username, password string) (bool, error)

	// ListUsers returns all usernames in ascending order.
	ListUsers(ctx context.Context) ([]string, error)

	// RolesOf returns the roles of username, or ErrNotFound.
	RolesOf(ctx context.Context, username string) ([]string, error)

	// AddUser creates or replaces a user.
	AddUser(ctx context.Context, u User) error

	// DeleteUser removes username, or returns ErrNotFound.
	DeleteUser(ctx context.Context, username string) error

	// AdminRoleName is the role that marks administrators.
	AdminRoleName() string

	// HealthCheck verifies the store is reachable.
	HealthCheck(ctx context.Context) error

	// Close releases resources held by the store.
	Close() error
}

// EndpointStore is the registry of routing endpoints.
type EndpointStore interface {
	// ListEndpoints returns all endpoints ordered by name.
	ListEndpoints(ctx context.Context) ([]Endpoint, error)

	// GetEndpoint returns the endpoint called name, or ErrNotFound.
	GetEndpoint(ctx context.Context, name string) (Endpoint, error)

	// SetEndpointActive activates or deactivates an endpoint, or returns
	// ErrNotFound.
	SetEndpointActive(ctx context.Context, name string, active bool) error
}

// HashPassword returns the bcrypt hash of password. cost <= 0 selects
// bcrypt.DefaultCost.
func HashPassword(password string, cost int) ([]byte, error) {
	if cost <= 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}
	return hash, nil
}

// CheckPassword reports whether password matches hash. A nil hash never
// matches but still costs one comparison.
func CheckPassword(hash []byte, password string) bool {
	if hash == nil {
		hash = dummyHash
		_ = bcrypt.CompareHashAndPassword(hash, []byte(password))
		return false
	}
	return bcrypt.CompareHashAndPassword(hash, []byte(password)) == nil
}

// dummyHash is compared against for unknown users so that lookups of
// missing and existing users take similar time.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("mgmtapi-dummy-password"), bcrypt.DefaultCost)
