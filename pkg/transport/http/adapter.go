package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rhuss/mgmtapi/pkg/api"
	"github.com/rhuss/mgmtapi/pkg/auth"
	"github.com/rhuss/mgmtapi/pkg/storage"
	"github.com/rhuss/mgmtapi/pkg/transport"
)

// TokenService mints and revokes bearer tokens for the login and logout
// resources.
type TokenService interface {
	Issue(p auth.Principal) (string, error)
	Revoke(token string)
}

// Adapter serves the management resources over HTTP. Authentication is
// applied outside the adapter; handlers only read the principal from the
// request context.
type Adapter struct {
	tokens    TokenService
	users     storage.UserStore
	endpoints storage.EndpointStore
	mux       *http.ServeMux
	config    Config
	ready     []byte
}

// Config holds configuration for the HTTP adapter.
type Config struct {
	// Context is the path prefix of the management resources.
	Context string

	// MaxBodySize limits request bodies.
	MaxBodySize int64

	// MetricsPath serves Prometheus metrics. Empty disables the endpoint.
	MetricsPath string
}

// DefaultConfig returns the default adapter configuration.
func DefaultConfig() Config {
	return Config{
		Context:     "/management",
		MaxBodySize: 1 << 20, // 1 MB
		MetricsPath: "/metrics",
	}
}

// NewAdapter creates an HTTP adapter over the given token service and stores.
func NewAdapter(tokens TokenService, users storage.UserStore, endpoints storage.EndpointStore, cfg Config) *Adapter {
	if cfg.Context == "" {
		cfg.Context = DefaultConfig().Context
	}
	if cfg.MaxBodySize <= 0 {
		cfg.MaxBodySize = DefaultConfig().MaxBodySize
	}
	ctx := strings.TrimSuffix(cfg.Context, "/")

	ready, _ := json.Marshal(api.ReadinessResponse{Status: "ready"})

	a := &Adapter{
		tokens:    tokens,
		users:     users,
		endpoints: endpoints,
		mux:       http.NewServeMux(),
		config:    cfg,
		ready:     append(ready, '\n'),
	}

	a.mux.HandleFunc("GET "+ctx+"/login", a.handleLogin)
	a.mux.HandleFunc("POST "+ctx+"/login", a.handleLogin)
	a.mux.HandleFunc("GET "+ctx+"/logout", a.handleLogout)
	a.mux.HandleFunc("POST "+ctx+"/logout", a.handleLogout)
	a.mux.HandleFunc("GET "+ctx+"/users", a.handleListUsers)
	a.mux.HandleFunc("GET "+ctx+"/users/{id}", a.handleGetUser)
	a.mux.HandleFunc("DELETE "+ctx+"/users/{id}", a.handleDeleteUser)
	a.mux.HandleFunc("GET "+ctx+"/endpoints", a.handleListEndpoints)
	a.mux.HandleFunc("POST "+ctx+"/endpoints", a.handleSetEndpointStatus)
	a.mux.HandleFunc("GET /health/ready", a.handleReady)
	a.mux.HandleFunc("GET /health/live", a.handleLive)
	if cfg.MetricsPath != "" {
		a.mux.Handle("GET "+cfg.MetricsPath, promhttp.Handler())
	}

	return a
}

// Handler returns the http.Handler for this adapter.
func (a *Adapter) Handler() http.Handler {
	return a.mux
}

// handleLogin handles {ctx}/login. The request has already been
// authenticated with Basic credentials, so a token is minted for the
// principal in the context.
func (a *Adapter) handleLogin(w http.ResponseWriter, r *http.Request) {
	p, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		transport.WriteAPIError(w, api.NewUnauthorizedError())
		return
	}

	token, err := a.tokens.Issue(p)
	if err != nil {
		slog.Error("token issuance failed", "username", p.Username, "error", err)
		transport.WriteAPIError(w, api.NewServerError("could not issue token"))
		return
	}

	slog.Info("user logged in", "username", p.Username)
	transport.WriteJSON(w, http.StatusOK, api.LoginResponse{
		AccessToken: token,
		TokenType:   auth.SchemeBearer.String(),
		Username:    p.Username,
	})
}

// handleLogout handles {ctx}/logout by revoking the presented bearer token.
func (a *Adapter) handleLogout(w http.ResponseWriter, r *http.Request) {
	if h, ok := auth.ParseAuthorization(r.Header); ok && h.Scheme == auth.SchemeBearer {
		a.tokens.Revoke(h.Token)
	}
	slog.Info("user logged out", "username", auth.UsernameFromContext(r.Context()))
	transport.WriteJSON(w, http.StatusOK, api.Message{Message: "Logout successful"})
}

// handleListUsers handles GET {ctx}/users.
func (a *Adapter) handleListUsers(w http.ResponseWriter, r *http.Request) {
	names, err := a.users.ListUsers(r.Context())
	if err != nil {
		a.writeStoreError(w, err, "")
		return
	}

	items := make([]api.UserSummary, 0, len(names))
	for _, name := range names {
		items = append(items, api.UserSummary{UserID: name})
	}
	transport.WriteJSON(w, http.StatusOK, api.NewList(items))
}

// handleGetUser handles GET {ctx}/users/{id}.
func (a *Adapter) handleGetUser(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	roles, err := a.users.RolesOf(r.Context(), id)
	if err != nil {
		a.writeStoreError(w, err, "user "+id)
		return
	}
	if roles == nil {
		roles = []string{}
	}

	transport.WriteJSON(w, http.StatusOK, api.User{
		UserID:  id,
		IsAdmin: slices.Contains(roles, a.users.AdminRoleName()),
		Roles:   roles,
	})
}

// handleDeleteUser handles DELETE {ctx}/users/{id}. Unknown users are
// reported before the check that users cannot delete their own account.
func (a *Adapter) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := a.users.RolesOf(r.Context(), id); err != nil {
		a.writeStoreError(w, err, "user "+id)
		return
	}
	if id == auth.UsernameFromContext(r.Context()) {
		transport.WriteAPIError(w, api.NewInvalidRequestError("id", "cannot delete the logged in user"))
		return
	}

	if err := a.users.DeleteUser(r.Context(), id); err != nil {
		a.writeStoreError(w, err, "user "+id)
		return
	}

	slog.Info("user deleted", "user", id, "by", auth.UsernameFromContext(r.Context()))
	transport.WriteJSON(w, http.StatusOK, api.UserDeleted{UserID: id, Status: "Deleted"})
}

// handleListEndpoints handles GET {ctx}/endpoints. With the endpointName
// query parameter a single endpoint is returned.
func (a *Adapter) handleListEndpoints(w http.ResponseWriter, r *http.Request) {
	if name := r.URL.Query().Get("endpointName"); name != "" {
		ep, err := a.endpoints.GetEndpoint(r.Context(), name)
		if err != nil {
			a.writeStoreError(w, err, "endpoint "+name)
			return
		}
		transport.WriteJSON(w, http.StatusOK, toAPIEndpoint(ep))
		return
	}

	eps, err := a.endpoints.ListEndpoints(r.Context())
	if err != nil {
		a.writeStoreError(w, err, "")
		return
	}
	items := make([]api.Endpoint, 0, len(eps))
	for _, ep := range eps {
		items = append(items, toAPIEndpoint(ep))
	}
	transport.WriteJSON(w, http.StatusOK, api.NewList(items))
}

// handleSetEndpointStatus handles POST {ctx}/endpoints.
func (a *Adapter) handleSetEndpointStatus(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, a.config.MaxBodySize)

	var req api.EndpointStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			transport.WriteErrorResponse(w,
				api.NewInvalidRequestError("body", fmt.Sprintf("request body too large (max %d bytes)", a.config.MaxBodySize)),
				http.StatusRequestEntityTooLarge,
			)
			return
		}
		transport.WriteAPIError(w, api.NewInvalidRequestError("body", "invalid JSON: "+err.Error()))
		return
	}

	if req.Name == "" {
		transport.WriteAPIError(w, api.NewInvalidRequestError("name", "endpoint name is required"))
		return
	}

	var active bool
	switch req.Status {
	case api.EndpointStatusActive:
		active = true
	case api.EndpointStatusInactive:
	default:
		transport.WriteAPIError(w, api.NewInvalidRequestError("status", "status must be active or inactive"))
		return
	}

	if err := a.endpoints.SetEndpointActive(r.Context(), req.Name, active); err != nil {
		a.writeStoreError(w, err, "endpoint "+req.Name)
		return
	}

	slog.Info("endpoint state changed",
		"endpoint", req.Name,
		"status", req.Status,
		"by", auth.UsernameFromContext(r.Context()),
	)
	transport.WriteJSON(w, http.StatusOK, api.Message{
		Message: fmt.Sprintf("Changed the state of endpoint %s to %s", req.Name, req.Status),
	})
}

// handleReady serves the cached readiness body.
func (a *Adapter) handleReady(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(a.ready)
}

// handleLive reports whether the user store is reachable.
func (a *Adapter) handleLive(w http.ResponseWriter, r *http.Request) {
	if err := a.users.HealthCheck(r.Context()); err != nil {
		slog.Warn("liveness check failed", "error", err)
		transport.WriteJSON(w, http.StatusServiceUnavailable, api.ReadinessResponse{Status: "unavailable"})
		return
	}
	transport.WriteJSON(w, http.StatusOK, api.ReadinessResponse{Status: "alive"})
}

// writeStoreError maps storage errors to API errors. subject names the
// resource in not-found messages.
func (a *Adapter) writeStoreError(w http.ResponseWriter, err error, subject string) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		if subject == "" {
			subject = "resource"
		}
		transport.WriteAPIError(w, api.NewNotFoundError(subject+" not found"))
	case errors.Is(err, storage.ErrInvalidUser), errors.Is(err, storage.ErrConflict):
		transport.WriteAPIError(w, api.NewInvalidRequestError("", err.Error()))
	default:
		var apiErr *api.APIError
		if errors.As(err, &apiErr) {
			transport.WriteAPIError(w, apiErr)
			return
		}
		slog.Error("store operation failed", "error", err)
		transport.WriteAPIError(w, api.NewServerError("internal server error"))
	}
}

func toAPIEndpoint(ep storage.Endpoint) api.Endpoint {
	return api.Endpoint{
		Name:     ep.Name,
		Type:     ep.Type,
		Address:  ep.Address,
		IsActive: ep.Active,
	}
}
