package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/rhuss/mgmtapi/pkg/debug"
)

// Load loads configuration from a layered set of sources.
//
// The loading order is:
//  1. Built-in defaults
//  2. YAML config file (explicit path, MGMTAPI_CONFIG env, ./config.yaml, /etc/mgmtapi/config.yaml)
//  3. Environment variable overrides
//  4. File reference resolution (_file suffix)
//  5. Validation
func Load(configPath string) (*Config, error) {
	cfg := Defaults()

	filePath := discoverConfigFile(configPath)
	if filePath != "" {
		if err := loadYAMLFile(filePath, &cfg); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", filePath, err)
		}
		debug.Log("config", "config file loaded", "path", filePath)
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, fmt.Errorf("applying environment: %w", err)
	}

	if err := resolveFileReferences(&cfg); err != nil {
		return nil, fmt.Errorf("resolving file references: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return &cfg, nil
}

// discoverConfigFile finds the config file path using the discovery order:
// 1. Explicit configPath argument
// 2. MGMTAPI_CONFIG environment variable
// 3. ./config.yaml in the current directory
// 4. /etc/mgmtapi/config.yaml
//
// Returns empty string if no config file is found.
func discoverConfigFile(configPath string) string {
	if configPath != "" {
		return configPath
	}

	if envPath := os.Getenv("MGMTAPI_CONFIG"); envPath != "" {
		return envPath
	}

	candidates := []string{
		"config.yaml",
		"/etc/mgmtapi/config.yaml",
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// loadYAMLFile reads and parses a YAML file into the Config struct.
// Fields not present in the YAML retain their current (default) values.
// Unknown keys are rejected so that typos do not silently fall back to
// defaults.
func loadYAMLFile(path string, cfg *Config) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// applyEnvOverrides maps MGMTAPI_* environment variables to config fields.
// Malformed numeric and duration values are reported rather than ignored.
func applyEnvOverrides(cfg *Config) error {
	strs := map[string]*string{
		"MGMTAPI_CONTEXT":      &cfg.Management.Context,
		"MGMTAPI_USER_STORE":   &cfg.Auth.UserStore,
		"MGMTAPI_ADMIN_ROLE":   &cfg.Auth.AdminRole,
		"MGMTAPI_REALM":        &cfg.Auth.Realm,
		"MGMTAPI_SIGNING_KEY":  &cfg.Auth.Tokens.SigningKey,
		"MGMTAPI_STORAGE":      &cfg.Storage.Type,
		"MGMTAPI_POSTGRES_DSN": &cfg.Storage.Postgres.DSN,
		"MGMTAPI_LOG_LEVEL":    &cfg.Logging.Level,
		"MGMTAPI_LOG_FORMAT":   &cfg.Logging.Format,
	}
	for name, field := range strs {
		if v := os.Getenv(name); v != "" {
			*field = v
		}
	}

	ints := map[string]*int{
		"MGMTAPI_PORT":             &cfg.Server.Port,
		"MGMTAPI_LOGIN_RATE_LIMIT": &cfg.Auth.LoginRateLimit,
	}
	for name, field := range ints {
		if v := os.Getenv(name); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			*field = n
		}
	}

	durations := map[string]*time.Duration{
		"MGMTAPI_TOKEN_IDLE_TIMEOUT":   &cfg.Auth.Tokens.IdleTimeout,
		"MGMTAPI_TOKEN_SWEEP_INTERVAL": &cfg.Auth.Tokens.SweepInterval,
	}
	for name, field := range durations {
		if v := os.Getenv(name); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			*field = d
		}
	}

	if v := os.Getenv("MGMTAPI_AUTH_HANDLERS"); v != "" {
		cfg.Auth.Handlers = splitList(v)
	}

	// MGMTAPI_USERS: JSON array of user configs.
	if v := os.Getenv("MGMTAPI_USERS"); v != "" {
		users, err := parseUsersJSON(v)
		if err != nil {
			return err
		}
		cfg.Auth.Users = users
	}

	return nil
}

// parseUsersJSON parses a JSON array of user configurations.
func parseUsersJSON(jsonStr string) ([]UserConfig, error) {
	var raw []struct {
		Username     string   `json:"username"`
		Password     string   `json:"password"`
		PasswordFile string   `json:"password_file"`
		Roles        []string `json:"roles"`
	}
	if err := json.Unmarshal([]byte(jsonStr), &raw); err != nil {
		return nil, fmt.Errorf("parsing MGMTAPI_USERS JSON: %w", err)
	}

	users := make([]UserConfig, 0, len(raw))
	for _, u := range raw {
		users = append(users, UserConfig(u))
	}
	return users, nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// resolveFileReferences reads _file fields and populates the corresponding value fields.
// For each field ending in _file, if the value field is empty and the file field is set,
// the file is read, whitespace is trimmed, and the value field is populated.
func resolveFileReferences(cfg *Config) error {
	// auth.tokens.signing_key_file -> auth.tokens.signing_key
	if cfg.Auth.Tokens.SigningKeyFile != "" && cfg.Auth.Tokens.SigningKey == "" {
		val, err := readSecretFile(cfg.Auth.Tokens.SigningKeyFile)
		if err != nil {
			return fmt.Errorf("auth.tokens.signing_key_file: %w", err)
		}
		cfg.Auth.Tokens.SigningKey = val
	}

	// storage.postgres.dsn_file -> storage.postgres.dsn
	if cfg.Storage.Postgres.DSNFile != "" && cfg.Storage.Postgres.DSN == "" {
		val, err := readSecretFile(cfg.Storage.Postgres.DSNFile)
		if err != nil {
			return fmt.Errorf("storage.postgres.dsn_file: %w", err)
		}
		cfg.Storage.Postgres.DSN = val
	}

	// auth.users[*].password_file -> auth.users[*].password
	for i := range cfg.Auth.Users {
		u := &cfg.Auth.Users[i]
		if u.PasswordFile != "" && u.Password == "" {
			val, err := readSecretFile(u.PasswordFile)
			if err != nil {
				return fmt.Errorf("auth.users[%d].password_file: %w", i, err)
			}
			u.Password = val
		}
	}

	return nil
}

// readSecretFile reads a file and returns its content with surrounding whitespace trimmed.
func readSecretFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}
