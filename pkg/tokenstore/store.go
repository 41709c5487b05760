package tokenstore

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/rhuss/mgmtapi/pkg/api"
	"github.com/rhuss/mgmtapi/pkg/auth"
	"github.com/rhuss/mgmtapi/pkg/debug"
	"github.com/rhuss/mgmtapi/pkg/observability"
)

// Sentinel errors.
var (
	ErrEmptyPrincipal = errors.New("principal has no username")
	ErrTokenCollision = errors.New("could not allocate a unique token")
)

// maxIssueAttempts bounds retries when a freshly minted token collides
// with a record already in the store.
const maxIssueAttempts = 8

// Eviction reasons.
const (
	ReasonIdle    = "idle"
	ReasonRevoked = "revoked"
)

// Config holds token store settings.
type Config struct {
	// IdleTimeout rejects tokens unused for longer than this (default: 1 hour).
	// Negative disables idle expiry.
	IdleTimeout time.Duration

	// SweepInterval is how often Run evicts stale records (default: 1 minute).
	SweepInterval time.Duration

	// RevokedRetention keeps revoked records before eviction (default: 5 minutes).
	RevokedRetention time.Duration

	// SigningKey signs issued tokens. A random key is generated when empty.
	SigningKey []byte

	// Issuer is written to the iss claim.
	Issuer string
}

func (c *Config) defaults() {
	if c.IdleTimeout == 0 {
		c.IdleTimeout = time.Hour
	}
	if c.SweepInterval == 0 {
		c.SweepInterval = time.Minute
	}
	if c.RevokedRetention == 0 {
		c.RevokedRetention = 5 * time.Minute
	}
}

// record is the state of one issued token. All fields are guarded by mu.
type record struct {
	mu         sync.Mutex
	principal  auth.Principal
	issuedAt   time.Time
	lastAccess time.Time
	revoked    bool
	revokedAt  time.Time
	removed    bool
}

// Store is a concurrent token store.
type Store struct {
	cfg        Config
	signingKey []byte
	now        func() time.Time
	logger     *slog.Logger

	records sync.Map // token -> *record
	size    atomic.Int64
}

// Option configures a Store.
type Option func(*Store)

// WithClock replaces the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithLogger sets the logger used by Run and Sweep.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// New creates a Store.
func New(cfg Config, opts ...Option) (*Store, error) {
	cfg.defaults()

	key := cfg.SigningKey
	if len(key) == 0 {
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return nil, fmt.Errorf("generating signing key: %w", err)
		}
	}

	s := &Store{
		cfg:        cfg,
		signingKey: key,
		now:        time.Now,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Issue creates a token bound to p.
func (s *Store) Issue(p auth.Principal) (string, error) {
	if p.Username == "" {
		return "", ErrEmptyPrincipal
	}

	now := s.now()
	rec := &record{principal: p.Clone(), issuedAt: now, lastAccess: now}

	for range maxIssueAttempts {
		token, err := s.mint(p.Username, now)
		if err != nil {
			return "", fmt.Errorf("minting token: %w", err)
		}
		if _, loaded := s.records.LoadOrStore(token, rec); loaded {
			continue
		}

		observability.TokensIssuedTotal.Inc()
		observability.TokensActive.Set(float64(s.size.Add(1)))
		s.logger.Debug("token issued", "username", p.Username)
		return token, nil
	}

	return "", ErrTokenCollision
}

func (s *Store) mint(username string, now time.Time) (string, error) {
	claims := jwt.RegisteredClaims{
		ID:       api.NewTokenID(),
		Subject:  username,
		Issuer:   s.cfg.Issuer,
		IssuedAt: jwt.NewNumericDate(now),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.signingKey)
}

// Validate returns the principal bound to token when the token is live, and
// refreshes its last access time.
func (s *Store) Validate(token string) (auth.Principal, bool) {
	v, ok := s.records.Load(token)
	if !ok {
		observability.TokenValidationsTotal.WithLabelValues("unknown").Inc()
		return auth.Principal{}, false
	}
	rec := v.(*record)

	rec.mu.Lock()
	defer rec.mu.Unlock()

	now := s.now()
	switch {
	case rec.removed:
		observability.TokenValidationsTotal.WithLabelValues("unknown").Inc()
		return auth.Principal{}, false
	case rec.revoked:
		observability.TokenValidationsTotal.WithLabelValues("revoked").Inc()
		debug.Log("tokens", "revoked token presented", "username", rec.principal.Username)
		return auth.Principal{}, false
	case s.idleExpired(rec, now):
		s.remove(token, rec, ReasonIdle)
		observability.TokenValidationsTotal.WithLabelValues("expired").Inc()
		debug.Log("tokens", "idle token expired",
			"username", rec.principal.Username,
			"idle", now.Sub(rec.lastAccess),
		)
		return auth.Principal{}, false
	}

	if now.After(rec.lastAccess) {
		rec.lastAccess = now
	}
	observability.TokenValidationsTotal.WithLabelValues("valid").Inc()
	return rec.principal.Clone(), true
}

// Revoke permanently invalidates token. Unknown and already revoked tokens
// are ignored.
func (s *Store) Revoke(token string) {
	v, ok := s.records.Load(token)
	if !ok {
		return
	}
	rec := v.(*record)

	rec.mu.Lock()
	defer rec.mu.Unlock()

	if rec.revoked || rec.removed {
		return
	}
	rec.revoked = true
	rec.revokedAt = s.now()
	observability.TokensRevokedTotal.Inc()
	s.logger.Debug("token revoked", "username", rec.principal.Username)
}

// SweepStats reports the records removed by one Sweep.
type SweepStats struct {
	Idle    int
	Revoked int
}

// Total returns the number of removed records.
func (st SweepStats) Total() int { return st.Idle + st.Revoked }

// Sweep removes idle records and revoked records past their retention.
func (s *Store) Sweep() SweepStats {
	now := s.now()
	var stats SweepStats

	s.records.Range(func(k, v any) bool {
		token, rec := k.(string), v.(*record)

		rec.mu.Lock()
		defer rec.mu.Unlock()

		switch {
		case rec.removed:
		case rec.revoked:
			if !now.Before(rec.revokedAt.Add(s.cfg.RevokedRetention)) && s.remove(token, rec, ReasonRevoked) {
				stats.Revoked++
			}
		case s.idleExpired(rec, now):
			if s.remove(token, rec, ReasonIdle) {
				stats.Idle++
			}
		}
		return true
	})

	return stats
}

// Run sweeps the store every SweepInterval until ctx is cancelled.
func (s *Store) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if stats := s.Sweep(); stats.Total() > 0 {
				s.logger.Debug("token sweep",
					"idle", stats.Idle,
					"revoked", stats.Revoked,
					"remaining", s.Len(),
				)
			}
		}
	}
}

// Len returns the number of records currently held.
func (s *Store) Len() int {
	return int(s.size.Load())
}

func (s *Store) idleExpired(rec *record, now time.Time) bool {
	return s.cfg.IdleTimeout > 0 && now.Sub(rec.lastAccess) > s.cfg.IdleTimeout
}

// remove deletes rec from the map. The caller must hold rec.mu.
func (s *Store) remove(token string, rec *record, reason string) bool {
	rec.removed = true
	if !s.records.CompareAndDelete(token, rec) {
		return false
	}
	observability.TokensEvictedTotal.WithLabelValues(reason).Inc()
	observability.TokensActive.Set(float64(s.size.Add(-1)))
	return true
}
