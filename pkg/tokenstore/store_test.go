package tokenstore

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rhuss/mgmtapi/pkg/api"
	"github.com/rhuss/mgmtapi/pkg/auth"
)

// fakeClock is a manually advanced time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestStore(t *testing.T, cfg Config, clock *fakeClock) *Store {
	t.Helper()
	s, err := New(cfg, WithClock(clock.Now))
	require.NoError(t, err)
	return s
}

var admin = auth.Principal{Username: "admin", Roles: []string{"admin"}, IsAdmin: true}

// lastAccess reads a record's last access time for assertions.
func (s *Store) lastAccess(token string) time.Time {
	v, ok := s.records.Load(token)
	if !ok {
		return time.Time{}
	}
	rec := v.(*record)
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.lastAccess
}

func TestStore_IssueAndValidate(t *testing.T) {
	s := newTestStore(t, Config{}, newFakeClock())

	token, err := s.Issue(admin)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	p, ok := s.Validate(token)
	require.True(t, ok)
	assert.Equal(t, "admin", p.Username)
	assert.True(t, p.IsAdmin)
	assert.Equal(t, 1, s.Len())
}

func TestStore_IssueRejectsEmptyPrincipal(t *testing.T) {
	s := newTestStore(t, Config{}, newFakeClock())

	_, err := s.Issue(auth.Principal{})
	assert.ErrorIs(t, err, ErrEmptyPrincipal)
	assert.Equal(t, 0, s.Len())
}

func TestStore_TokensAreDistinct(t *testing.T) {
	s := newTestStore(t, Config{}, newFakeClock())

	seen := make(map[string]bool)
	for range 100 {
		token, err := s.Issue(admin)
		require.NoError(t, err)
		require.False(t, seen[token], "duplicate token")
		seen[token] = true
	}
	assert.Equal(t, 100, s.Len())
}

func TestStore_TokenIsSignedJWT(t *testing.T) {
	key := []byte("0123456789abcdef0123456789abcdef")
	s := newTestStore(t, Config{SigningKey: key, Issuer: "mgmtapi"}, newFakeClock())

	token, err := s.Issue(admin)
	require.NoError(t, err)

	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) { return key, nil },
		jwt.WithValidMethods([]string{"HS256"}))
	require.NoError(t, err)
	assert.True(t, parsed.Valid)
	assert.Equal(t, "admin", claims.Subject)
	assert.Equal(t, "mgmtapi", claims.Issuer)
	assert.True(t, api.ValidateTokenID(claims.ID))
}

func TestStore_UnknownToken(t *testing.T) {
	s := newTestStore(t, Config{}, newFakeClock())

	_, ok := s.Validate("unknown-token-xyz")
	assert.False(t, ok)
}

func TestStore_ValidateReturnsCopy(t *testing.T) {
	s := newTestStore(t, Config{}, newFakeClock())
	token, err := s.Issue(admin)
	require.NoError(t, err)

	p, _ := s.Validate(token)
	p.Roles[0] = "changed"

	p, _ = s.Validate(token)
	assert.Equal(t, "admin", p.Roles[0])
}

func TestStore_RevokeIsPermanent(t *testing.T) {
	clock := newFakeClock()
	s := newTestStore(t, Config{}, clock)

	token, err := s.Issue(admin)
	require.NoError(t, err)

	s.Revoke(token)
	_, ok := s.Validate(token)
	assert.False(t, ok)

	clock.Advance(time.Second)
	_, ok = s.Validate(token)
	assert.False(t, ok)
}

func TestStore_RevokeIdempotent(t *testing.T) {
	s := newTestStore(t, Config{}, newFakeClock())

	token, err := s.Issue(admin)
	require.NoError(t, err)
	other, err := s.Issue(admin)
	require.NoError(t, err)

	s.Revoke(token)
	s.Revoke(token)
	s.Revoke("never-issued")

	_, ok := s.Validate(token)
	assert.False(t, ok)
	_, ok = s.Validate(other)
	assert.True(t, ok)
}

func TestStore_IdleExpiry(t *testing.T) {
	clock := newFakeClock()
	s := newTestStore(t, Config{IdleTimeout: 10 * time.Minute}, clock)

	token, err := s.Issue(admin)
	require.NoError(t, err)

	clock.Advance(9 * time.Minute)
	_, ok := s.Validate(token)
	require.True(t, ok, "use within the timeout refreshes the token")

	clock.Advance(9 * time.Minute)
	_, ok = s.Validate(token)
	require.True(t, ok)

	clock.Advance(10*time.Minute + time.Second)
	_, ok = s.Validate(token)
	assert.False(t, ok)
	assert.Equal(t, 0, s.Len())
}

func TestStore_IdleExpiryDisabled(t *testing.T) {
	clock := newFakeClock()
	s := newTestStore(t, Config{IdleTimeout: -1}, clock)

	token, err := s.Issue(admin)
	require.NoError(t, err)

	clock.Advance(1000 * time.Hour)
	assert.Equal(t, 0, s.Sweep().Total())
	_, ok := s.Validate(token)
	assert.True(t, ok)
}

func TestStore_SweepEvictsIdle(t *testing.T) {
	clock := newFakeClock()
	s := newTestStore(t, Config{IdleTimeout: time.Minute}, clock)

	stale, err := s.Issue(admin)
	require.NoError(t, err)
	clock.Advance(50 * time.Second)
	fresh, err := s.Issue(admin)
	require.NoError(t, err)

	clock.Advance(20 * time.Second)
	stats := s.Sweep()

	assert.Equal(t, SweepStats{Idle: 1}, stats)
	assert.Equal(t, 1, s.Len())
	_, ok := s.Validate(stale)
	assert.False(t, ok)
	_, ok = s.Validate(fresh)
	assert.True(t, ok)
}

func TestStore_RevokedRetention(t *testing.T) {
	clock := newFakeClock()
	s := newTestStore(t, Config{IdleTimeout: time.Hour, RevokedRetention: 5 * time.Minute}, clock)

	token, err := s.Issue(admin)
	require.NoError(t, err)
	s.Revoke(token)

	clock.Advance(4 * time.Minute)
	assert.Equal(t, 0, s.Sweep().Total())
	assert.Equal(t, 1, s.Len())

	clock.Advance(time.Minute)
	assert.Equal(t, SweepStats{Revoked: 1}, s.Sweep())
	assert.Equal(t, 0, s.Len())

	_, ok := s.Validate(token)
	assert.False(t, ok)
}

func TestStore_ConcurrentValidateKeepsLatestAccess(t *testing.T) {
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	var ticks atomic.Int64
	clock := func() time.Time {
		return base.Add(time.Duration(ticks.Add(1)) * time.Millisecond)
	}

	s, err := New(Config{}, WithClock(clock))
	require.NoError(t, err)
	token, err := s.Issue(admin)
	require.NoError(t, err)

	const workers, calls = 16, 200
	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range calls {
				_, ok := s.Validate(token)
				assert.True(t, ok)
			}
		}()
	}
	wg.Wait()

	// Every call reads the clock once, so the largest timestamp observed is
	// the last tick handed out.
	latest := base.Add(time.Duration(ticks.Load()) * time.Millisecond)
	assert.Equal(t, latest, s.lastAccess(token))
}

func TestStore_ConcurrentRevokeAndValidate(t *testing.T) {
	s := newTestStore(t, Config{}, newFakeClock())
	token, err := s.Issue(admin)
	require.NoError(t, err)

	var revoked atomic.Bool
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 500 {
				wasRevoked := revoked.Load()
				_, ok := s.Validate(token)
				if wasRevoked {
					assert.False(t, ok, "validated after revoke returned")
				}
			}
		}()
	}

	s.Revoke(token)
	revoked.Store(true)
	wg.Wait()

	_, ok := s.Validate(token)
	assert.False(t, ok)
}

func TestStore_ConcurrentIssue(t *testing.T) {
	s := newTestStore(t, Config{}, newFakeClock())

	const n = 64
	tokens := make(chan string, n)
	var wg sync.WaitGroup
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			token, err := s.Issue(admin)
			assert.NoError(t, err)
			tokens <- token
		}()
	}
	wg.Wait()
	close(tokens)

	seen := make(map[string]bool)
	for token := range tokens {
		seen[token] = true
	}
	assert.Len(t, seen, n)
	assert.Equal(t, n, s.Len())
}

func TestStore_RunStopsOnCancel(t *testing.T) {
	clock := newFakeClock()
	s := newTestStore(t, Config{IdleTimeout: time.Minute, SweepInterval: 5 * time.Millisecond}, clock)

	_, err := s.Issue(admin)
	require.NoError(t, err)
	clock.Advance(2 * time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool { return s.Len() == 0 }, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
