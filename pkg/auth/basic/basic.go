// Package basic provides a handler that accepts Basic credentials on every
// path. Placed after the token handler it lets scripted clients call the
// management API without the login round trip.
package basic

import (
	"context"
	"net/http"

	"github.com/rhuss/mgmtapi/pkg/auth"
)

// DefaultName is the handler name used in logs and metrics.
const DefaultName = "basic"

// Handler verifies Basic credentials against a backend.
type Handler struct {
	name    string
	backend auth.Backend
}

var _ auth.Handler = (*Handler)(nil)

// New creates a Basic handler.
func New(backend auth.Backend) *Handler {
	return &Handler{name: DefaultName, backend: backend}
}

// Name returns the handler name.
func (h *Handler) Name() string {
	return h.name
}

// Handle evaluates the request.
func (h *Handler) Handle(ctx context.Context, r *http.Request) auth.Result {
	challenge := auth.SchemeBasic.String()

	hdr, present := auth.ParseAuthorization(r.Header)
	switch {
	case !present:
		return auth.Deny(auth.ReasonNoHeader, challenge)
	case hdr.Scheme == auth.SchemeUnsupported:
		return auth.Deny(auth.ReasonMalformedHeader, challenge)
	case hdr.Scheme != auth.SchemeBasic:
		return auth.Deny(auth.ReasonInvalidCredentials, challenge)
	}

	return auth.VerifyBasic(ctx, h.backend, hdr.Token).WithChallenge(challenge)
}
