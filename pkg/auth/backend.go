package auth

import (
	"context"
	"fmt"
	"slices"
)

// Backend is a source of users, passwords and roles.
//
// Authenticate returns false with a nil error for unknown users and wrong
// passwords. A non-nil error means the store itself failed.
type Backend interface {
	Authenticate(ctx context.Context, username, password string) (bool, error)
	ListRoles(ctx context.Context, username string) ([]string, error)
	AdminRoleName() string
}

// ResolvePrincipal builds the principal of an authenticated user.
func ResolvePrincipal(ctx context.Context, b Backend, username string) (Principal, error) {
	roles, err := b.ListRoles(ctx, username)
	if err != nil {
		return Principal{}, fmt.Errorf("listing roles of %q: %w", username, err)
	}
	admin := b.AdminRoleName()
	return Principal{
		Username: username,
		Roles:    slices.Clone(roles),
		IsAdmin:  admin != "" && slices.Contains(roles, admin),
	}, nil
}

// VerifyBasic decodes a Basic token and checks it against b.
func VerifyBasic(ctx context.Context, b Backend, token string) Result {
	cred, err := DecodeBasic(token)
	if err != nil {
		res := Deny(ReasonInvalidCredentials, "")
		res.Err = err
		return res
	}

	ok, err := b.Authenticate(ctx, cred.Username, cred.Password)
	if err != nil {
		return Fail(fmt.Errorf("authenticating %q: %w", cred.Username, err))
	}
	if !ok {
		return Deny(ReasonInvalidCredentials, "")
	}

	p, err := ResolvePrincipal(ctx, b, cred.Username)
	if err != nil {
		return Fail(err)
	}
	return Allow(p)
}
