package auth

import (
	"fmt"
	"log/slog"
	"net"
	"net/http"

	"github.com/rhuss/mgmtapi/pkg/api"
	"github.com/rhuss/mgmtapi/pkg/observability"
	"github.com/rhuss/mgmtapi/pkg/transport"
)

// DefaultBypassEndpoints lists endpoints that skip authentication.
var DefaultBypassEndpoints = []string{"/health/ready", "/health/live", "/metrics"}

// DefaultRealm is the realm advertised in WWW-Authenticate challenges.
const DefaultRealm = "management"

// challengeHeaders are cleared before a denial is written so that nothing
// set by earlier handlers leaks through.
var challengeHeaders = []string{
	HeaderWWWAuthenticate,
	HeaderAuthorization,
	HeaderProxyAuthenticate,
	"Set-Cookie",
}

// MiddlewareOptions configures Middleware.
type MiddlewareOptions struct {
	// Realm is advertised in challenges (default: DefaultRealm).
	Realm string

	// DefaultChallenge is used when the denying handler named no scheme
	// (default: Bearer).
	DefaultChallenge string

	// Bypass lists exact paths that skip authentication
	// (default: DefaultBypassEndpoints).
	Bypass []string

	// LoginPath is the path on which Limiter applies.
	LoginPath string

	// Limiter throttles attempts on LoginPath. Nil disables throttling.
	Limiter LoginLimiter
}

func (o *MiddlewareOptions) defaults() {
	if o.Realm == "" {
		o.Realm = DefaultRealm
	}
	if o.DefaultChallenge == "" {
		o.DefaultChallenge = SchemeBearer.String()
	}
	if o.Bypass == nil {
		o.Bypass = DefaultBypassEndpoints
	}
}

// Middleware creates HTTP middleware from a Pipeline. It checks the bypass
// list, throttles login attempts, runs the pipeline and writes the decision.
// Allowed requests continue with the principal stored in their context.
func Middleware(p *Pipeline, opts MiddlewareOptions) func(http.Handler) http.Handler {
	opts.defaults()
	bypass := make(map[string]bool, len(opts.Bypass))
	for _, ep := range opts.Bypass {
		bypass[ep] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if bypass[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			if opts.Limiter != nil && r.URL.Path == opts.LoginPath {
				if err := opts.Limiter.Allow(r.Context(), clientHost(r)); err != nil {
					slog.Warn("login throttled", "remote_addr", r.RemoteAddr)
					observability.LoginThrottledTotal.Inc()
					transport.WriteErrorResponse(w, api.NewTooManyRequestsError("too many login attempts"), http.StatusTooManyRequests)
					return
				}
			}

			result := p.Evaluate(r.Context(), r)

			switch result.Outcome {
			case Allowed:
				if result.Principal.Username == "" {
					slog.Error("authentication handler returned principal with empty username",
						"handler", result.Handler,
					)
					transport.WriteErrorResponse(w, api.NewServerError("internal authentication error"), http.StatusInternalServerError)
					return
				}
				slog.Debug("authentication succeeded",
					"username", result.Principal.Username,
					"handler", result.Handler,
					"path", r.URL.Path,
					"remote_addr", r.RemoteAddr,
				)
				transport.RecordUser(r.Context(), result.Principal.Username)
				next.ServeHTTP(w, r.WithContext(SetPrincipal(r.Context(), result.Principal)))

			case BackendError:
				slog.Error("authentication backend failed",
					"handler", result.Handler,
					"path", r.URL.Path,
					"error", result.Err,
				)
				transport.WriteErrorResponse(w, api.NewServerError("internal authentication error"), http.StatusInternalServerError)

			default:
				slog.Warn("authentication failed",
					"handler", result.Handler,
					"reason", result.Reason.String(),
					"path", r.URL.Path,
					"remote_addr", r.RemoteAddr,
					"error", result.Err,
				)
				WriteDenial(w, result, opts.Realm, opts.DefaultChallenge)
			}
		})
	}
}

// WriteDenial writes a 401 response for a denied result. The body is the
// same for every reason. A challenge is added only for ReasonNoHeader.
func WriteDenial(w http.ResponseWriter, result Result, realm, defaultChallenge string) {
	h := w.Header()
	for _, name := range challengeHeaders {
		h.Del(name)
	}

	if result.Reason == ReasonNoHeader {
		scheme := result.Challenge
		if scheme == "" {
			scheme = defaultChallenge
		}
		h.Set(HeaderWWWAuthenticate, fmt.Sprintf("%s realm=%q", scheme, realm))
	}

	transport.WriteErrorResponse(w, api.NewUnauthorizedError(), http.StatusUnauthorized)
}

func clientHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
