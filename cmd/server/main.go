// Command server runs the management API of the integration runtime.
//
// Configuration is read from a YAML file (see pkg/config) with MGMTAPI_*
// environment overrides:
//
//	MGMTAPI_CONFIG          - Path to the config file
//	MGMTAPI_PORT            - Listen port (default: 8080)
//	MGMTAPI_AUTH_HANDLERS   - Comma separated handler chain (default: token)
//	MGMTAPI_USERS           - JSON array of static users
//	MGMTAPI_STORAGE         - "memory" or "postgres" (default: memory)
//	MGMTAPI_DEBUG           - Debug categories (auth, tokens, storage, ...)
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/rhuss/mgmtapi/pkg/auth"
	"github.com/rhuss/mgmtapi/pkg/auth/basic"
	"github.com/rhuss/mgmtapi/pkg/auth/external"
	"github.com/rhuss/mgmtapi/pkg/auth/inmemory"
	"github.com/rhuss/mgmtapi/pkg/auth/token"
	"github.com/rhuss/mgmtapi/pkg/config"
	"github.com/rhuss/mgmtapi/pkg/debug"
	"github.com/rhuss/mgmtapi/pkg/storage"
	"github.com/rhuss/mgmtapi/pkg/storage/memory"
	"github.com/rhuss/mgmtapi/pkg/storage/postgres"
	"github.com/rhuss/mgmtapi/pkg/tokenstore"
	transporthttp "github.com/rhuss/mgmtapi/pkg/transport/http"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to the config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := debug.Setup(debug.Options{
		Categories: cfg.Logging.Debug,
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Runtime configuration store.
	endpoints := memory.New(cfg.Auth.AdminRole, memory.WithBcryptCost(cfg.Storage.BcryptCost))
	for _, ep := range cfg.Endpoints {
		endpoints.AddEndpoint(storage.Endpoint{
			Name:    ep.Name,
			Type:    ep.Type,
			Address: ep.Address,
			Active:  ep.Active,
		})
	}

	users, err := newUserStore(ctx, cfg, endpoints)
	if err != nil {
		return err
	}
	defer users.Close()

	if err := seedUsers(ctx, users, cfg.Auth.Users); err != nil {
		return err
	}

	// Token store and its janitor.
	tokens, err := tokenstore.New(tokenstore.Config{
		IdleTimeout:      cfg.Auth.Tokens.IdleTimeout,
		SweepInterval:    cfg.Auth.Tokens.SweepInterval,
		RevokedRetention: cfg.Auth.Tokens.RevokedRetention,
		SigningKey:       []byte(cfg.Auth.Tokens.SigningKey),
		Issuer:           cfg.Auth.Tokens.Issuer,
	}, tokenstore.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("creating token store: %w", err)
	}
	go tokens.Run(ctx)

	// Authentication pipeline.
	backend := newBackend(cfg, users)
	pipeline, err := newPipeline(cfg, backend, tokens)
	if err != nil {
		return err
	}

	mwOpts := auth.MiddlewareOptions{
		Realm:     cfg.Auth.Realm,
		Bypass:    []string{"/health/ready", "/health/live"},
		LoginPath: cfg.Management.LoginPath(),
	}
	if cfg.Observability.Metrics.Enabled {
		mwOpts.Bypass = append(mwOpts.Bypass, cfg.Observability.Metrics.Path)
	}
	if cfg.Auth.LoginRateLimit > 0 {
		mwOpts.Limiter = auth.NewInProcessLimiter(cfg.Auth.LoginRateLimit)
	}

	adapterCfg := transporthttp.DefaultConfig()
	adapterCfg.Context = cfg.Management.Context
	adapterCfg.MetricsPath = ""
	if cfg.Observability.Metrics.Enabled {
		adapterCfg.MetricsPath = cfg.Observability.Metrics.Path
	}
	adapter := transporthttp.NewAdapter(tokens, users, endpoints, adapterCfg)

	srv := transporthttp.NewServer(adapter, auth.Middleware(pipeline, mwOpts),
		transporthttp.WithAddr(":"+strconv.Itoa(cfg.Server.Port)),
		transporthttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout),
		transporthttp.WithShutdownTimeout(cfg.Server.ShutdownTimeout),
		transporthttp.WithLogger(logger),
	)

	slog.Info("management api configured",
		"context", cfg.Management.Context,
		"handlers", strings.Join(cfg.Auth.Handlers, ","),
		"user_store", cfg.Auth.UserStore,
		"storage", cfg.Storage.Type,
		"endpoints", len(cfg.Endpoints),
	)

	return srv.ListenAndServeContext(ctx)
}

// newUserStore opens the user-management subsystem. The memory variant
// shares the store that also holds the endpoints.
func newUserStore(ctx context.Context, cfg *config.Config, mem *memory.Store) (storage.UserStore, error) {
	switch cfg.Storage.Type {
	case "postgres":
		st, err := postgres.New(ctx, postgres.Config{
			DSN:            cfg.Storage.Postgres.DSN,
			MaxConns:       cfg.Storage.Postgres.MaxConns,
			MigrateOnStart: cfg.Storage.Postgres.MigrateOnStart,
			AdminRole:      cfg.Auth.AdminRole,
			BcryptCost:     cfg.Storage.BcryptCost,
		})
		if err != nil {
			return nil, fmt.Errorf("connecting to postgres: %w", err)
		}
		slog.Info("storage enabled", "type", "postgres")
		return st, nil
	default:
		slog.Info("storage enabled", "type", "memory")
		return mem, nil
	}
}

// seedUsers writes the configured users into the user store so that the
// users resource and the external backend see them.
func seedUsers(ctx context.Context, users storage.UserStore, cfgUsers []config.UserConfig) error {
	var errs []error
	for _, u := range cfgUsers {
		err := users.AddUser(ctx, storage.User{
			Username: u.Username,
			Password: u.Password,
			Roles:    u.Roles,
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("seeding user %q: %w", u.Username, err))
		}
	}
	return errors.Join(errs...)
}

// newBackend selects the authentication backend once at startup.
func newBackend(cfg *config.Config, users storage.UserStore) auth.Backend {
	if cfg.Auth.UserStore == "external" {
		return external.New(cfg.Storage.Type, users)
	}

	static := make(map[string]inmemory.User, len(cfg.Auth.Users))
	for _, u := range cfg.Auth.Users {
		static[u.Username] = inmemory.User{Password: u.Password, Roles: u.Roles}
	}
	return inmemory.New(cfg.Auth.AdminRole, static)
}

// newPipeline builds the handler chain in configured order.
func newPipeline(cfg *config.Config, backend auth.Backend, tokens *tokenstore.Store) (*auth.Pipeline, error) {
	handlers := make([]auth.Handler, 0, len(cfg.Auth.Handlers))
	for _, name := range cfg.Auth.Handlers {
		switch name {
		case token.DefaultName:
			handlers = append(handlers, token.New(token.Config{
				LoginPath: cfg.Management.LoginPath(),
				Backend:   backend,
				Tokens:    tokens,
			}))
		case basic.DefaultName:
			handlers = append(handlers, basic.New(backend))
		default:
			return nil, fmt.Errorf("unknown auth handler %q", name)
		}
	}
	return auth.NewPipeline(handlers...), nil
}
