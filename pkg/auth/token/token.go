// Package token provides the hybrid handler that guards the management API:
// Basic credentials on the login path, bearer tokens everywhere else.
package token

import (
	"context"
	"net/http"

	"github.com/rhuss/mgmtapi/pkg/auth"
)

// DefaultName is the handler name used in logs and metrics.
const DefaultName = "token"

// Validator resolves a bearer token to its principal.
type Validator interface {
	Validate(token string) (auth.Principal, bool)
}

// Config configures a Handler.
type Config struct {
	// Name overrides DefaultName.
	Name string

	// LoginPath is the only path on which Basic credentials are accepted.
	LoginPath string

	// Backend verifies Basic credentials.
	Backend auth.Backend

	// Tokens validates bearer tokens.
	Tokens Validator
}

// Handler accepts Basic on the login path and Bearer on every other path.
type Handler struct {
	cfg Config
}

var _ auth.Handler = (*Handler)(nil)

// New creates a hybrid handler.
func New(cfg Config) *Handler {
	if cfg.Name == "" {
		cfg.Name = DefaultName
	}
	return &Handler{cfg: cfg}
}

// Name returns the handler name.
func (h *Handler) Name() string {
	return h.cfg.Name
}

// Handle evaluates the request. A scheme that does not belong to the path is
// treated like wrong credentials.
func (h *Handler) Handle(ctx context.Context, r *http.Request) auth.Result {
	login := r.URL.Path == h.cfg.LoginPath
	challenge := auth.SchemeBearer.String()
	if login {
		challenge = auth.SchemeBasic.String()
	}

	hdr, present := auth.ParseAuthorization(r.Header)
	if !present {
		return auth.Deny(auth.ReasonNoHeader, challenge)
	}

	switch {
	case hdr.Scheme == auth.SchemeUnsupported:
		return auth.Deny(auth.ReasonMalformedHeader, challenge)

	case login && hdr.Scheme == auth.SchemeBasic:
		return auth.VerifyBasic(ctx, h.cfg.Backend, hdr.Token).WithChallenge(challenge)

	case !login && hdr.Scheme == auth.SchemeBearer:
		p, ok := h.cfg.Tokens.Validate(hdr.Token)
		if !ok {
			return auth.Deny(auth.ReasonInvalidCredentials, challenge)
		}
		return auth.Allow(p)

	default:
		return auth.Deny(auth.ReasonInvalidCredentials, challenge)
	}
}
