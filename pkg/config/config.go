// Package config provides unified configuration for the management API server.
//
// Configuration is loaded with a layered approach:
//  1. Built-in defaults
//  2. YAML config file (discovered or explicitly specified)
//  3. Environment variable overrides (MGMTAPI_ prefix)
//  4. File reference resolution (_file suffix fields)
//  5. Validation
package config

import (
	"strings"
	"time"
)

// Config holds all configuration for the management API server.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Management    ManagementConfig    `yaml:"management"`
	Auth          AuthConfig          `yaml:"auth"`
	Storage       StorageConfig       `yaml:"storage"`
	Endpoints     []EndpointConfig    `yaml:"endpoints"`
	Logging       LoggingConfig       `yaml:"logging"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`             // default: 8080
	ReadTimeout     time.Duration `yaml:"read_timeout"`     // default: 30s
	WriteTimeout    time.Duration `yaml:"write_timeout"`    // default: 30s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"` // default: 15s
}

// ManagementConfig holds the layout of the management API.
type ManagementConfig struct {
	Context string `yaml:"context"` // default: "/management"
}

// LoginPath is the path that accepts Basic credentials and issues tokens.
func (m ManagementConfig) LoginPath() string {
	return m.path("login")
}

// LogoutPath is the path that revokes the presented token.
func (m ManagementConfig) LogoutPath() string {
	return m.path("logout")
}

// path joins the context with a resource name.
func (m ManagementConfig) path(resource string) string {
	return strings.TrimSuffix(m.Context, "/") + "/" + resource
}

// AuthConfig holds authentication settings.
type AuthConfig struct {
	Handlers       []string     `yaml:"handlers"`         // "token", "basic"; default: ["token"]
	Realm          string       `yaml:"realm"`            // default: "management"
	UserStore      string       `yaml:"user_store"`       // "memory" or "external", default: "memory"
	AdminRole      string       `yaml:"admin_role"`       // default: "admin"
	Users          []UserConfig `yaml:"users"`            // static users, also seeded into external stores
	Tokens         TokenConfig  `yaml:"tokens"`
	LoginRateLimit int          `yaml:"login_rate_limit"` // attempts per minute per client, 0 disables
}

// UserConfig describes a configured user.
type UserConfig struct {
	Username     string   `yaml:"username"`
	Password     string   `yaml:"password"`
	PasswordFile string   `yaml:"password_file"` // _file variant for password
	Roles        []string `yaml:"roles"`
}

// TokenConfig holds bearer token settings.
type TokenConfig struct {
	IdleTimeout      time.Duration `yaml:"idle_timeout"`      // default: 1h, negative disables
	SweepInterval    time.Duration `yaml:"sweep_interval"`    // default: 1m
	RevokedRetention time.Duration `yaml:"revoked_retention"` // default: 5m
	SigningKey       string        `yaml:"signing_key"`       // random per process when empty
	SigningKeyFile   string        `yaml:"signing_key_file"`  // _file variant for signing_key
	Issuer           string        `yaml:"issuer"`            // default: "mgmtapi"
}

// StorageConfig holds runtime configuration store settings.
type StorageConfig struct {
	Type       string         `yaml:"type"`        // "memory" or "postgres", default: "memory"
	BcryptCost int            `yaml:"bcrypt_cost"` // default: bcrypt.DefaultCost
	Postgres   PostgresConfig `yaml:"postgres"`
}

// PostgresConfig holds PostgreSQL-specific settings.
type PostgresConfig struct {
	DSN            string `yaml:"dsn"`
	DSNFile        string `yaml:"dsn_file"`         // _file variant for dsn
	MaxConns       int32  `yaml:"max_conns"`        // default: 10
	MigrateOnStart bool   `yaml:"migrate_on_start"` // default: false
}

// EndpointConfig describes a routing endpoint registered at startup.
type EndpointConfig struct {
	Name    string `yaml:"name"`
	Type    string `yaml:"type"`
	Address string `yaml:"address"`
	Active  bool   `yaml:"active"`
}

// LoggingConfig holds log output settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // "debug", "info", "warn", "error"; default: "info"
	Format string `yaml:"format"` // "text" or "json", default: "text"
	Debug  string `yaml:"debug"`  // comma separated debug categories
}

// ObservabilityConfig holds monitoring and instrumentation settings.
type ObservabilityConfig struct {
	Metrics MetricsConfig `yaml:"metrics"`
}

// MetricsConfig holds Prometheus metrics endpoint settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"` // default: true
	Path    string `yaml:"path"`    // default: "/metrics"
}

// Defaults returns a Config with all default values filled in.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Management: ManagementConfig{
			Context: "/management",
		},
		Auth: AuthConfig{
			Handlers:  []string{"token"},
			Realm:     "management",
			UserStore: "memory",
			AdminRole: "admin",
			Tokens: TokenConfig{
				IdleTimeout:      time.Hour,
				SweepInterval:    time.Minute,
				RevokedRetention: 5 * time.Minute,
				Issuer:           "mgmtapi",
			},
		},
		Storage: StorageConfig{
			Type: "memory",
			Postgres: PostgresConfig{
				MaxConns: 10,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Observability: ObservabilityConfig{
			Metrics: MetricsConfig{
				Enabled: true,
				Path:    "/metrics",
			},
		},
	}
}
