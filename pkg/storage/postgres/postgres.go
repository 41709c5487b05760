// Package postgres provides a PostgreSQL implementation of storage.UserStore.
// It uses pgx/v5 for connection pooling. Passwords are stored as bcrypt hashes
// and roles in a separate table.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rhuss/mgmtapi/pkg/storage"
)

// Store is a PostgreSQL-backed UserStore.
type Store struct {
	pool       *pgxpool.Pool
	adminRole  string
	bcryptCost int
}

// Ensure Store implements storage.UserStore at compile time.
var _ storage.UserStore = (*Store)(nil)

// New creates a new PostgreSQL store with the given configuration.
// If MigrateOnStart is true, schema migrations are applied automatically.
func New(ctx context.Context, cfg Config) (*Store, error) {
	cfg.defaults()

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parsing DSN: %w", err)
	}

	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	// Verify connectivity.
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	s := &Store{pool: pool, adminRole: cfg.AdminRole, bcryptCost: cfg.BcryptCost}

	if cfg.MigrateOnStart {
		if err := s.migrate(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("running migrations: %w", err)
		}
	}

	return s, nil
}

// Authenticate checks password against the stored hash. Unknown users
// return false without an error.
func (s *Store) Authenticate(ctx context.Context, username, password string) (bool, error) {
	var hash []byte
	err := s.pool.QueryRow(ctx,
		"SELECT password_hash FROM users WHERE username = $1", username,
	).Scan(&hash)
	if errors.Is(err, pgx.ErrNoRows) {
		return storage.CheckPassword(nil, password), nil
	}
	if err != nil {
		return false, fmt.Errorf("querying user: %w", err)
	}
	return storage.CheckPassword(hash, password), nil
}

// ListUsers returns all usernames in ascending order.
func (s *Store) ListUsers(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, "SELECT username FROM users ORDER BY username")
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	names, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("scanning users: %w", err)
	}
	return names, nil
}

// RolesOf returns the roles of username in ascending order.
func (s *Store) RolesOf(ctx context.Context, username string) ([]string, error) {
	var exists bool
	if err := s.pool.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM users WHERE username = $1)", username,
	).Scan(&exists); err != nil {
		return nil, fmt.Errorf("checking user: %w", err)
	}
	if !exists {
		return nil, storage.ErrNotFound
	}

	rows, err := s.pool.Query(ctx,
		"SELECT role FROM user_roles WHERE username = $1 ORDER BY role", username,
	)
	if err != nil {
		return nil, fmt.Errorf("listing roles: %w", err)
	}
	roles, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("scanning roles: %w", err)
	}
	return roles, nil
}

// AddUser creates or replaces a user and its roles in one transaction.
func (s *Store) AddUser(ctx context.Context, u storage.User) error {
	if err := u.Validate(); err != nil {
		return err
	}
	hash, err := storage.HashPassword(u.Password, s.bcryptCost)
	if err != nil {
		return err
	}

	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
			INSERT INTO users (username, password_hash) VALUES ($1, $2)
			ON CONFLICT (username) DO UPDATE
			SET password_hash = EXCLUDED.password_hash, updated_at = now()
		`, u.Username, hash); err != nil {
			return fmt.Errorf("upserting user: %w", err)
		}

		if _, err := tx.Exec(ctx, "DELETE FROM user_roles WHERE username = $1", u.Username); err != nil {
			return fmt.Errorf("clearing roles: %w", err)
		}

		for _, role := range u.Roles {
			if _, err := tx.Exec(ctx,
				"INSERT INTO user_roles (username, role) VALUES ($1, $2) ON CONFLICT DO NOTHING",
				u.Username, role,
			); err != nil {
				return fmt.Errorf("inserting role %q: %w", role, err)
			}
		}
		return nil
	})
}

// DeleteUser removes a user. Roles are removed by cascade.
func (s *Store) DeleteUser(ctx context.Context, username string) error {
	tag, err := s.pool.Exec(ctx, "DELETE FROM users WHERE username = $1", username)
	if err != nil {
		return fmt.Errorf("deleting user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// AdminRoleName returns the administrator role.
func (s *Store) AdminRoleName() string {
	return s.adminRole
}

// HealthCheck verifies database connectivity.
func (s *Store) HealthCheck(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the connection pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}
