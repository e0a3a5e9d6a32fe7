package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/kube-rca/auth/internal/config"
	"github.com/kube-rca/auth/internal/db"
	"github.com/kube-rca/auth/internal/hasher"
	"github.com/kube-rca/auth/internal/model"
	"github.com/kube-rca/auth/internal/token"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
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

type testEnv struct {
	svc    *AuthService
	store  *db.MemoryStore
	hasher hasher.Hasher
	codec  *token.Codec
	clock  *fakeClock
}

func testAuthConfig() config.AuthConfig {
	return config.AuthConfig{
		SecretKey:            "test-secret",
		Algorithm:            "HS256",
		AccessExpireMinutes:  15,
		RefreshExpireMinutes: 60,
	}
}

func newTestEnv(t *testing.T, cfg config.AuthConfig, opts ...Option) *testEnv {
	t.Helper()

	h, err := hasher.NewBcrypt(bcrypt.MinCost)
	require.NoError(t, err)

	clock := &fakeClock{now: time.Now()}
	codec, err := token.NewCodec([]byte(cfg.SecretKey), cfg.Algorithm, token.WithClock(clock.Now))
	require.NoError(t, err)

	store := db.NewMemoryStore()
	svc, err := NewAuthService(store, h, codec, cfg, opts...)
	require.NoError(t, err)

	return &testEnv{svc: svc, store: store, hasher: h, codec: codec, clock: clock}
}

// seedUser stores a user with a fixed id and hashed password.
func (e *testEnv) seedUser(t *testing.T, id int64, email, password string) *model.User {
	t.Helper()
	hash, err := e.hasher.Hash(password)
	require.NoError(t, err)
	u, err := e.store.Persist(context.Background(), &model.User{ID: id, Email: email, PasswordHash: hash})
	require.NoError(t, err)
	return u
}

var errStoreDown = errors.New("connection refused")

// brokenStore fails every call.
type brokenStore struct{}

func (brokenStore) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	return nil, errStoreDown
}

func (brokenStore) GetUserByID(ctx context.Context, userID int64) (*model.User, error) {
	return nil, errStoreDown
}

func (brokenStore) CreateUser(ctx context.Context, email, passwordHash string) (*model.User, error) {
	return nil, errStoreDown
}

func (brokenStore) SetRefreshTokenHash(ctx context.Context, userID int64, hash string) error {
	return errStoreDown
}

type fakeLimiter struct {
	mu       sync.Mutex
	max      int
	failures map[string]int
	err      error
}

func newFakeLimiter(max int) *fakeLimiter {
	return &fakeLimiter{max: max, failures: map[string]int{}}
}

func (f *fakeLimiter) Allow(ctx context.Context, email string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return true, f.err
	}
	return f.failures[email] < f.max, nil
}

func (f *fakeLimiter) RecordFailure(ctx context.Context, email string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.failures[email]++
	return nil
}

func (f *fakeLimiter) Reset(ctx context.Context, email string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	delete(f.failures, email)
	return nil
}
