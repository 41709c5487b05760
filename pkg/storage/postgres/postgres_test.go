package postgres

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	pgmodule "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"golang.org/x/crypto/bcrypt"

	"github.com/rhuss/mgmtapi/pkg/storage"
)

// setupTestDB starts a PostgreSQL container and returns a connected Store.
// Tests are skipped if no container runtime is available.
func setupTestDB(t *testing.T) *Store {
	t.Helper()

	if os.Getenv("SKIP_INTEGRATION") == "true" {
		t.Skip("SKIP_INTEGRATION=true, skipping PostgreSQL integration tests")
	}
	if testing.Short() {
		t.Skip("skipping PostgreSQL integration tests in short mode")
	}
	if !hasContainerRuntime() {
		t.Skip("neither docker nor podman found, skipping integration tests")
	}

	ctx := context.Background()

	container, err := withoutPanic(func() (*pgmodule.PostgresContainer, error) {
		return pgmodule.Run(ctx,
			"postgres:16-alpine",
			pgmodule.WithDatabase("mgmtapi_test"),
			pgmodule.WithUsername("test"),
			pgmodule.WithPassword("test"),
			testcontainers.WithWaitStrategy(
				wait.ForLog("database system is ready to accept connections").
					WithOccurrence(2).
					WithStartupTimeout(30*time.Second),
			),
		)
	})
	if err != nil {
		t.Skipf("skipping: could not start PostgreSQL container: %v", err)
	}

	t.Cleanup(func() {
		_ = container.Terminate(context.Background())
	})

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	store, err := New(ctx, Config{
		DSN:            connStr,
		MaxConns:       5,
		MinConns:       1,
		MigrateOnStart: true,
		AdminRole:      "admin",
		BcryptCost:     bcrypt.MinCost,
	})
	require.NoError(t, err)

	t.Cleanup(func() {
		store.Close()
	})

	return store
}

// hasContainerRuntime reports whether a docker or podman binary is on PATH.
func hasContainerRuntime() bool {
	for _, bin := range []string{"docker", "podman"} {
		if _, err := exec.LookPath(bin); err == nil {
			return true
		}
	}
	return false
}

// withoutPanic runs fn and returns a panic as an error. testcontainers
// panics when no docker host can be resolved.
func withoutPanic[T any](fn func() (T, error)) (v T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("container runtime unavailable: %v", r)
		}
	}()
	return fn()
}

func TestWithoutPanic(t *testing.T) {
	_, err := withoutPanic(func() (int, error) {
		panic("rootless Docker not found")
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rootless Docker not found")

	boom := errors.New("boom")
	_, err = withoutPanic(func() (int, error) { return 0, boom })
	assert.ErrorIs(t, err, boom)

	v, err := withoutPanic(func() (int, error) { return 7, nil })
	require.NoError(t, err)
	assert.Equal(t, 7, v)
}

func TestPostgres_AddAndAuthenticate(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, store.AddUser(ctx, storage.User{Username: "admin", Password: "admin123", Roles: []string{"admin", "user"}}))

	ok, err := store.Authenticate(ctx, "admin", "admin123")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.Authenticate(ctx, "admin", "nope")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = store.Authenticate(ctx, "ghost", "admin123")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPostgres_RolesAndReplace(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, store.AddUser(ctx, storage.User{Username: "ops", Password: "x", Roles: []string{"user", "admin"}}))
	roles, err := store.RolesOf(ctx, "ops")
	require.NoError(t, err)
	assert.Equal(t, []string{"admin", "user"}, roles)

	require.NoError(t, store.AddUser(ctx, storage.User{Username: "ops", Password: "y", Roles: []string{"user"}}))
	roles, err = store.RolesOf(ctx, "ops")
	require.NoError(t, err)
	assert.Equal(t, []string{"user"}, roles)

	ok, _ := store.Authenticate(ctx, "ops", "y")
	assert.True(t, ok)

	_, err = store.RolesOf(ctx, "ghost")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestPostgres_ListAndDelete(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	for _, name := range []string{"carol", "alice", "bob"} {
		require.NoError(t, store.AddUser(ctx, storage.User{Username: name, Password: "pw"}))
	}

	users, err := store.ListUsers(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob", "carol"}, users)

	require.NoError(t, store.DeleteUser(ctx, "bob"))
	assert.ErrorIs(t, store.DeleteUser(ctx, "bob"), storage.ErrNotFound)

	users, err = store.ListUsers(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "carol"}, users)
}

func TestPostgres_MigrateIsIdempotent(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, store.migrate(ctx))
	require.NoError(t, store.HealthCheck(ctx))
	assert.Equal(t, "admin", store.AdminRoleName())
}

func TestPendingMigrations_Ordered(t *testing.T) {
	migrations, err := pendingMigrations()
	require.NoError(t, err)
	require.NotEmpty(t, migrations)
	assert.Equal(t, 1, migrations[0].version)
	for i := 1; i < len(migrations); i++ {
		assert.Less(t, migrations[i-1].version, migrations[i].version)
	}
}
