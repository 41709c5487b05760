package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// minSigningKeyLen is the shortest accepted HS256 signing key.
const minSigningKeyLen = 32

// Validate checks the configuration for required fields and valid values.
// Returns an error with a descriptive field path on failure.
func (c *Config) Validate() error {
	var errs []error

	// server.port must be positive.
	if c.Server.Port <= 0 {
		errs = append(errs, fmt.Errorf("server.port must be > 0, got %d", c.Server.Port))
	}

	// management.context must be an absolute path below the root.
	if !strings.HasPrefix(c.Management.Context, "/") || strings.TrimSuffix(c.Management.Context, "/") == "" {
		errs = append(errs, fmt.Errorf("management.context must start with \"/\" and name a path, got %q", c.Management.Context))
	}

	// auth.handlers must be a non-empty list of known handlers.
	if len(c.Auth.Handlers) == 0 {
		errs = append(errs, fmt.Errorf("auth.handlers must not be empty"))
	}
	for i, h := range c.Auth.Handlers {
		switch h {
		case "token", "basic":
			// valid
		default:
			errs = append(errs, fmt.Errorf("auth.handlers[%d] must be \"token\" or \"basic\", got %q", i, h))
		}
	}

	// auth.user_store must be a known value.
	switch c.Auth.UserStore {
	case "memory":
		if len(c.Auth.Users) == 0 {
			errs = append(errs, fmt.Errorf("auth.users must not be empty when auth.user_store is \"memory\""))
		}
	case "external":
		// valid
	default:
		errs = append(errs, fmt.Errorf("auth.user_store must be \"memory\" or \"external\", got %q", c.Auth.UserStore))
	}

	// Every user needs a name and a password, and names are unique.
	seen := make(map[string]bool, len(c.Auth.Users))
	for i, u := range c.Auth.Users {
		if u.Username == "" {
			errs = append(errs, fmt.Errorf("auth.users[%d].username is required", i))
			continue
		}
		if strings.Contains(u.Username, ":") {
			errs = append(errs, fmt.Errorf("auth.users[%d].username must not contain \":\"", i))
		}
		if u.Password == "" && u.PasswordFile == "" {
			errs = append(errs, fmt.Errorf("auth.users[%d].password or auth.users[%d].password_file is required", i, i))
		}
		if seen[u.Username] {
			errs = append(errs, fmt.Errorf("auth.users[%d].username %q is duplicated", i, u.Username))
		}
		seen[u.Username] = true
	}

	// auth.tokens intervals.
	if c.Auth.Tokens.SweepInterval <= 0 {
		errs = append(errs, fmt.Errorf("auth.tokens.sweep_interval must be > 0, got %v", c.Auth.Tokens.SweepInterval))
	}
	if c.Auth.Tokens.RevokedRetention < 0 {
		errs = append(errs, fmt.Errorf("auth.tokens.revoked_retention must be >= 0, got %v", c.Auth.Tokens.RevokedRetention))
	}
	if k := c.Auth.Tokens.SigningKey; k != "" && len(k) < minSigningKeyLen {
		errs = append(errs, fmt.Errorf("auth.tokens.signing_key must be at least %d bytes", minSigningKeyLen))
	}

	if c.Auth.LoginRateLimit < 0 {
		errs = append(errs, fmt.Errorf("auth.login_rate_limit must be >= 0, got %d", c.Auth.LoginRateLimit))
	}

	// storage.type must be a known value.
	switch c.Storage.Type {
	case "memory", "postgres":
		// valid
	default:
		errs = append(errs, fmt.Errorf("storage.type must be \"memory\" or \"postgres\", got %q", c.Storage.Type))
	}

	// If storage.type is "postgres", DSN or DSNFile must be set.
	if c.Storage.Type == "postgres" {
		if c.Storage.Postgres.DSN == "" && c.Storage.Postgres.DSNFile == "" {
			errs = append(errs, fmt.Errorf("storage.postgres.dsn or storage.postgres.dsn_file is required when storage.type is \"postgres\""))
		}
	}

	// Endpoint names are required and unique.
	var names []string
	for i, e := range c.Endpoints {
		if e.Name == "" {
			errs = append(errs, fmt.Errorf("endpoints[%d].name is required", i))
			continue
		}
		if slices.Contains(names, e.Name) {
			errs = append(errs, fmt.Errorf("endpoints[%d].name %q is duplicated", i, e.Name))
		}
		names = append(names, e.Name)
	}

	switch c.Logging.Level {
	case "trace", "debug", "info", "warn", "error":
		// valid
	default:
		errs = append(errs, fmt.Errorf("logging.level must be one of trace, debug, info, warn, error, got %q", c.Logging.Level))
	}
	switch c.Logging.Format {
	case "text", "json":
		// valid
	default:
		errs = append(errs, fmt.Errorf("logging.format must be \"text\" or \"json\", got %q", c.Logging.Format))
	}

	return errors.Join(errs...)
}
