package auth

import (
	"context"
	"errors"
	"net/http"
)

// stubHandler returns a fixed result and counts invocations.
type stubHandler struct {
	name   string
	result Result
	calls  int
}

func (s *stubHandler) Name() string { return s.name }

func (s *stubHandler) Handle(_ context.Context, _ *http.Request) Result {
	s.calls++
	return s.result
}

// stubBackend is an in-test user store.
type stubBackend struct {
	users     map[string]string
	roles     map[string][]string
	adminRole string
	err       error
	rolesErr  error
}

func newStubBackend() *stubBackend {
	return &stubBackend{
		users:     map[string]string{"admin": "admin123", "viewer": "viewer123"},
		roles:     map[string][]string{"admin": {"admin", "user"}, "viewer": {"user"}},
		adminRole: "admin",
	}
}

func (b *stubBackend) Authenticate(_ context.Context, username, password string) (bool, error) {
	if b.err != nil {
		return false, b.err
	}
	want, ok := b.users[username]
	return ok && want == password, nil
}

func (b *stubBackend) ListRoles(_ context.Context, username string) ([]string, error) {
	if b.rolesErr != nil {
		return nil, b.rolesErr
	}
	return b.roles[username], nil
}

func (b *stubBackend) AdminRoleName() string { return b.adminRole }

var errStoreDown = errors.New("connection refused")
