package token

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rhuss/mgmtapi/pkg/auth"
	"github.com/rhuss/mgmtapi/pkg/auth/inmemory"
	"github.com/rhuss/mgmtapi/pkg/tokenstore"
)

const loginPath = "/management/login"

type fixture struct {
	handler *Handler
	tokens  *tokenstore.Store
	gate    http.Handler
	reached int
}

func newFixture(t *testing.T, backend auth.Backend) *fixture {
	t.Helper()

	tokens, err := tokenstore.New(tokenstore.Config{})
	require.NoError(t, err)

	if backend == nil {
		backend = inmemory.New("admin", map[string]inmemory.User{
			"admin": {Password: "admin123", Roles: []string{"admin"}},
		})
	}

	f := &fixture{tokens: tokens}
	f.handler = New(Config{LoginPath: loginPath, Backend: backend, Tokens: tokens})
	f.gate = auth.Middleware(auth.NewPipeline(f.handler), auth.MiddlewareOptions{})(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			f.reached++
			w.Header().Set("X-User", auth.UsernameFromContext(r.Context()))
			w.WriteHeader(http.StatusOK)
		}))
	return f
}

func (f *fixture) do(method, path, authorization string, set bool) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if set {
		req.Header.Set(auth.HeaderAuthorization, authorization)
	}
	rec := httptest.NewRecorder()
	f.gate.ServeHTTP(rec, req)
	return rec
}

func TestLogin_BasicAllowed(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.do("POST", loginPath, "Basic "+auth.EncodeBasic("admin", "admin123"), true)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "admin", rec.Header().Get("X-User"))
}

func TestLogin_WrongPassword(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.do("POST", loginPath, "Basic "+auth.EncodeBasic("admin", "nope"), true)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, rec.Header().Get(auth.HeaderWWWAuthenticate))
	assert.Equal(t, 0, f.reached)
}

func TestLogin_BareBasicScheme(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.do("POST", loginPath, "Basic", true)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, rec.Header().Get(auth.HeaderWWWAuthenticate))
}

func TestLogin_NoHeaderChallengesBasic(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.do("POST", loginPath, "", false)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, `Basic realm="management"`, rec.Header().Get(auth.HeaderWWWAuthenticate))
}

func TestLogin_BearerRejected(t *testing.T) {
	f := newFixture(t, nil)
	tok, err := f.tokens.Issue(auth.Principal{Username: "admin"})
	require.NoError(t, err)

	rec := f.do("POST", loginPath, "Bearer "+tok, true)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, rec.Header().Get(auth.HeaderWWWAuthenticate))
}

func TestResource_BearerAllowed(t *testing.T) {
	f := newFixture(t, nil)
	tok, err := f.tokens.Issue(auth.Principal{Username: "admin", IsAdmin: true})
	require.NoError(t, err)

	rec := f.do("GET", "/management/users", "Bearer "+tok, true)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "admin", rec.Header().Get("X-User"))
}

func TestResource_UnknownBearer(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.do("GET", "/management/users", "Bearer unknown-token-xyz", true)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, rec.Header().Get(auth.HeaderWWWAuthenticate))
	assert.Equal(t, 0, f.reached)
}

func TestResource_RevokedBearerLooksUnknown(t *testing.T) {
	f := newFixture(t, nil)
	tok, err := f.tokens.Issue(auth.Principal{Username: "admin"})
	require.NoError(t, err)
	f.tokens.Revoke(tok)

	revoked := f.do("GET", "/management/users", "Bearer "+tok, true)
	unknown := f.do("GET", "/management/users", "Bearer unknown-token-xyz", true)

	assert.Equal(t, unknown.Code, revoked.Code)
	assert.Equal(t, unknown.Body.String(), revoked.Body.String())
	assert.Equal(t, unknown.Header(), revoked.Header())
}

func TestResource_BasicRejected(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.do("GET", "/management/users", "Basic "+auth.EncodeBasic("admin", "admin123"), true)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, 0, f.reached)
}

func TestResource_NoHeaderChallengesBearer(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.do("GET", "/management/endpoints", "", false)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, `Bearer realm="management"`, rec.Header().Get(auth.HeaderWWWAuthenticate))
}

func TestResource_BareBearerScheme(t *testing.T) {
	f := newFixture(t, nil)

	res := f.handler.Handle(context.Background(), func() *http.Request {
		r := httptest.NewRequest("GET", "/management/users", nil)
		r.Header.Set(auth.HeaderAuthorization, "Bearer")
		return r
	}())

	assert.Equal(t, auth.Denied, res.Outcome)
	assert.Equal(t, auth.ReasonMalformedHeader, res.Reason)
}

// brokenBackend fails every call.
type brokenBackend struct{}

func (brokenBackend) Authenticate(context.Context, string, string) (bool, error) {
	return false, errors.New("user store unreachable")
}
func (brokenBackend) ListRoles(context.Context, string) ([]string, error) { return nil, nil }
func (brokenBackend) AdminRoleName() string { return "admin" }

func TestLogin_BackendErrorFailsClosed(t *testing.T) {
	f := newFixture(t, brokenBackend{})

	rec := f.do("POST", loginPath, "Basic "+auth.EncodeBasic("admin", "admin123"), true)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, 0, f.reached)
}

func TestName(t *testing.T) {
	assert.Equal(t, DefaultName, New(Config{}).Name())
	assert.Equal(t, "custom", New(Config{Name: "custom"}).Name())
}
