package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"

	"github.com/rhuss/mgmtapi/pkg/debug"
	"github.com/rhuss/mgmtapi/pkg/observability"
)

// Outcome is the tri-state verdict of an authentication attempt.
type Outcome int

const (
	// Allowed means the credentials were accepted. Evaluation stops.
	Allowed Outcome = iota

	// Denied means the request carried no usable credentials. The pipeline
	// continues with the next handler.
	Denied

	// BackendError means the user store could not be consulted. Evaluation
	// stops and the request is rejected as a server error.
	BackendError
)

func (o Outcome) String() string {
	switch o {
	case Allowed:
		return "allowed"
	case Denied:
		return "denied"
	case BackendError:
		return "backend_error"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Reason explains a denial. It is logged and counted but never exposed
// to the client.
type Reason int

const (
	ReasonNone Reason = iota
	ReasonNoHeader
	ReasonMalformedHeader
	ReasonInvalidCredentials
)

func (r Reason) String() string {
	switch r {
	case ReasonNone:
		return "none"
	case ReasonNoHeader:
		return "no_header"
	case ReasonMalformedHeader:
		return "malformed_header"
	case ReasonInvalidCredentials:
		return "invalid_credentials"
	default:
		return fmt.Sprintf("reason(%d)", int(r))
	}
}

// Sentinel errors.
var (
	ErrBackend             = errors.New("authentication backend unavailable")
	ErrMalformedCredential = errors.New("malformed basic credential")
	ErrTooManyRequests     = errors.New("too many login attempts")
)

// Principal is an authenticated caller.
type Principal struct {
	// Username is the unique user name (required, non-empty).
	Username string

	// Roles lists the roles the backend reported for the user.
	Roles []string

	// IsAdmin is true when Roles contains the backend's admin role.
	IsAdmin bool
}

// HasRole reports whether the principal holds role.
func (p Principal) HasRole(role string) bool {
	return slices.Contains(p.Roles, role)
}

// Clone returns a copy that shares no memory with p.
func (p Principal) Clone() Principal {
	p.Roles = slices.Clone(p.Roles)
	return p
}

// Result carries the outcome of one handler or of a whole pipeline.
type Result struct {
	Outcome Outcome

	// Principal is populated only when Outcome == Allowed.
	Principal Principal

	// Reason is populated only when Outcome == Denied.
	Reason Reason

	// Challenge is the scheme the handler expects on this path. The
	// middleware uses it for WWW-Authenticate when Reason is ReasonNoHeader.
	Challenge string

	// Err carries the backend failure, or detail on a denial for logging.
	Err error

	// Handler names the handler that produced the result.
	Handler string
}

// Allow returns an Allowed result for p.
func Allow(p Principal) Result {
	return Result{Outcome: Allowed, Principal: p}
}

// Deny returns a Denied result.
func Deny(reason Reason, challenge string) Result {
	return Result{Outcome: Denied, Reason: reason, Challenge: challenge}
}

// Fail returns a BackendError result. err is wrapped with ErrBackend.
func Fail(err error) Result {
	if err == nil {
		err = ErrBackend
	} else if !errors.Is(err, ErrBackend) {
		err = fmt.Errorf("%w: %w", ErrBackend, err)
	}
	return Result{Outcome: BackendError, Err: err}
}

// WithChallenge returns a copy of r with the challenge scheme set.
func (r Result) WithChallenge(scheme string) Result {
	r.Challenge = scheme
	return r
}

// Handler examines a request and returns a tri-state Result.
type Handler interface {
	Name() string
	Handle(ctx context.Context, r *http.Request) Result
}

// Pipeline evaluates handlers in order.
type Pipeline struct {
	// Handlers are evaluated left to right.
	Handlers []Handler
}

// NewPipeline creates a pipeline from the given handlers.
func NewPipeline(handlers ...Handler) *Pipeline {
	return &Pipeline{Handlers: handlers}
}

// Evaluate runs the pipeline. It stops on the first Allowed or BackendError.
// When every handler denies, the last denial is returned. An empty pipeline
// denies every request.
func (p *Pipeline) Evaluate(ctx context.Context, r *http.Request) Result {
	var last Result
	evaluated := false

	for _, h := range p.Handlers {
		result := h.Handle(ctx, r)
		result.Handler = h.Name()
		observability.AuthDecisionsTotal.WithLabelValues(result.Handler, result.Outcome.String()).Inc()
		debug.Log("auth", "handler evaluated",
			"handler", result.Handler,
			"outcome", result.Outcome.String(),
			"reason", result.Reason.String(),
		)

		switch result.Outcome {
		case Allowed, BackendError:
			return result
		case Denied:
		default:
			result = Deny(ReasonInvalidCredentials, result.Challenge)
			result.Handler = h.Name()
		}
		last = result
		evaluated = true
	}

	if evaluated {
		return last
	}
	if _, present := ParseAuthorization(r.Header); !present {
		return Deny(ReasonNoHeader, "")
	}
	return Deny(ReasonInvalidCredentials, "")
}
