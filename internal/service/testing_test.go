package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/publishing-service/internal/auth"
	"github.com/spec-kit/publishing-service/internal/domain"
	"github.com/spec-kit/publishing-service/internal/repository"
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

type fakeCaptcha struct {
	err    error
	calls  int
	tokens []string
}

func (f *fakeCaptcha) Verify(_ context.Context, token, _ string) error {
	f.calls++
	f.tokens = append(f.tokens, token)
	return f.err
}

type testEnv struct {
	clock       *fakeClock
	users       repository.UserRepository
	hasher      *auth.PasswordHasher
	codec       *auth.TokenCodec
	captcha     *fakeCaptcha
	credentials *CredentialStore
	auth        *AuthService
	profiles    *UserService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	clock := &fakeClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	hasher := auth.NewPasswordHasher(bcrypt.MinCost)
	codec, err := auth.NewTokenCodec(auth.TokenConfig{
		AccessSecret:  "access-secret",
		RefreshSecret: "refresh-secret",
		AccessTTL:     15 * time.Minute,
		RefreshTTL:    7 * 24 * time.Hour,
	}, clock.Now)
	require.NoError(t, err)

	users := repository.NewMemoryUserRepository()
	logger := zap.NewNop()
	credentials := NewCredentialStore(users, hasher, logger)
	captcha := &fakeCaptcha{}

	authSvc, err := NewAuthService(AuthDependencies{
		Credentials: credentials,
		Hasher:      hasher,
		Tokens:      codec,
		Captcha:     captcha,
		Logger:      logger,
	})
	require.NoError(t, err)

	return &testEnv{
		clock:       clock,
		users:       users,
		hasher:      hasher,
		codec:       codec,
		captcha:     captcha,
		credentials: credentials,
		auth:        authSvc,
		profiles:    NewUserService(credentials, hasher, logger),
	}
}

func (e *testEnv) register(t *testing.T, email, password string) *domain.User {
	t.Helper()
	user, err := e.auth.Register(context.Background(), RegisterInput{
		Email:     email,
		Password:  password,
		FirstName: "Alice",
		LastName:  "Liddell",
	})
	require.NoError(t, err)
	return user
}

func (e *testEnv) createAdmin(t *testing.T, email string) *domain.User {
	t.Helper()
	admin, err := e.credentials.Create(context.Background(), NewIdentity{
		Email:     email,
		Password:  "Admin1",
		FirstName: "Ada",
		LastName:  "Admin",
		Role:      domain.RoleAdmin,
		Active:    true,
	})
	require.NoError(t, err)
	return admin
}

type errRepo struct {
	err error
}

func (r errRepo) Create(context.Context, *domain.User) error { return r.err }
func (r errRepo) Update(context.Context, *domain.User) error { return r.err }
func (r errRepo) GetByID(context.Context, string) (*domain.User, error) {
	return nil, r.err
}
func (r errRepo) GetByEmail(context.Context, string) (*domain.User, error) {
	return nil, r.err
}
