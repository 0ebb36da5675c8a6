package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/publishing-service/internal/api/http/handlers"
	"github.com/spec-kit/publishing-service/internal/auth"
	"github.com/spec-kit/publishing-service/internal/domain"
	"github.com/spec-kit/publishing-service/internal/observability"
	"github.com/spec-kit/publishing-service/internal/repository"
	"github.com/spec-kit/publishing-service/internal/service"
)

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

type testServer struct {
	app         *fiber.App
	credentials *service.CredentialStore
	metrics     *observability.Metrics
}

func newTestServer(t *testing.T, deps map[string]handlers.Pinger) *testServer {
	t.Helper()
	logger := zap.NewNop()
	hasher := auth.NewPasswordHasher(bcrypt.MinCost)
	tokens, err := auth.NewTokenCodec(auth.TokenConfig{
		AccessSecret:  "access-secret",
		RefreshSecret: "refresh-secret",
		AccessTTL:     15 * time.Minute,
		RefreshTTL:    time.Hour,
	}, time.Now)
	require.NoError(t, err)

	credentials := service.NewCredentialStore(repository.NewMemoryUserRepository(), hasher, logger)
	authService, err := service.NewAuthService(service.AuthDependencies{
		Credentials: credentials,
		Hasher:      hasher,
		Tokens:      tokens,
		Logger:      logger,
	})
	require.NoError(t, err)

	metrics := observability.NewMetrics()
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	RegisterMiddlewares(app, logger, metrics, 5*time.Second)
	RegisterRoutes(app, RouteConfig{
		Health: handlers.NewHealthHandler("publishing-service", "test", deps, metrics),
		Auth:   handlers.NewAuthHandler(authService),
		Users:  handlers.NewUsersHandler(service.NewUserService(credentials, hasher, logger)),
		Guard:  auth.NewGuard(authService),
	})
	app.Get("/boom", func(*fiber.Ctx) error { panic("kaboom") })

	return &testServer{app: app, credentials: credentials, metrics: metrics}
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) (int, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	out := map[string]any{}
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp.StatusCode, out
}

func errorCode(body map[string]any) string {
	e, _ := body["error"].(map[string]any)
	code, _ := e["code"].(string)
	return code
}

func (s *testServer) registerAndLogin(t *testing.T, email string) (string, string, string) {
	t.Helper()
	status, body := s.do(t, "POST", "/auth/register", "", map[string]any{
		"email": email, "password": "Secret1", "firstName": "Alice", "lastName": "Liddell",
	})
	require.Equal(t, fiber.StatusCreated, status, body)
	user := body["user"].(map[string]any)

	status, body = s.do(t, "POST", "/auth/login", "", map[string]any{"email": email, "password": "Secret1"})
	require.Equal(t, fiber.StatusOK, status, body)
	return user["id"].(string), body["access_token"].(string), body["refresh_token"].(string)
}

func TestRegister_ResponseShape(t *testing.T) {
	s := newTestServer(t, nil)

	status, body := s.do(t, "POST", "/auth/register", "", map[string]any{
		"email": " Alice@Example.com", "password": "Secret1", "firstName": "Alice", "lastName": "Liddell",
	})
	require.Equal(t, fiber.StatusCreated, status)
	assert.Equal(t, true, body["success"])
	user := body["user"].(map[string]any)
	assert.Equal(t, "alice@example.com", user["email"])
	assert.Equal(t, "user", user["role"])
	assert.NotContains(t, user, "password")
	assert.NotContains(t, user, "passwordHash")

	status, body = s.do(t, "POST", "/auth/register", "", map[string]any{
		"email": "ALICE@example.com", "password": "Secret1", "firstName": "Alice", "lastName": "Liddell",
	})
	assert.Equal(t, fiber.StatusConflict, status)
	assert.Equal(t, "CONFLICT", errorCode(body))
}

func TestRegister_ValidationDetails(t *testing.T) {
	s := newTestServer(t, nil)

	status, body := s.do(t, "POST", "/auth/register", "", map[string]any{"email": "nope", "password": "weak"})
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_FAILED", errorCode(body))
	details := body["error"].(map[string]any)["details"].(map[string]any)
	assert.Contains(t, details, "email")
	assert.Contains(t, details, "password")
}

func TestLoginRefreshMeFlow(t *testing.T) {
	s := newTestServer(t, nil)
	id, access, refresh := s.registerAndLogin(t, "alice@example.com")

	status, body := s.do(t, "GET", "/auth/me", access, nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, id, body["id"])

	status, body = s.do(t, "POST", "/auth/refresh", "", map[string]any{"refreshToken": refresh})
	require.Equal(t, fiber.StatusOK, status)
	assert.NotEqual(t, access, body["access_token"])
	assert.NotEmpty(t, body["refresh_token"])

	status, _ = s.do(t, "GET", "/auth/me", access, nil)
	assert.Equal(t, fiber.StatusOK, status)

	status, body = s.do(t, "POST", "/auth/refresh", "", map[string]any{"refreshToken": access})
	assert.Equal(t, fiber.StatusUnauthorized, status)
	assert.Equal(t, "UNAUTHORIZED", errorCode(body))

	status, body = s.do(t, "GET", "/auth/me", refresh, nil)
	assert.Equal(t, fiber.StatusUnauthorized, status)
	assert.Equal(t, "UNAUTHENTICATED", errorCode(body))

	status, body = s.do(t, "POST", "/auth/logout", access, nil)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, true, body["success"])
}

func TestLogin_NormalizesEmail(t *testing.T) {
	s := newTestServer(t, nil)
	id, _, _ := s.registerAndLogin(t, "alice@example.com")

	status, body := s.do(t, "POST", "/auth/login", "", map[string]any{"email": "  Alice@Example.com ", "password": "Secret1"})
	require.Equal(t, fiber.StatusOK, status, body)
	assert.Equal(t, id, body["user"].(map[string]any)["id"])
	assert.NotEmpty(t, body["access_token"])
}

func TestLogin_SameErrorForUnknownEmailAndWrongPassword(t *testing.T) {
	s := newTestServer(t, nil)
	s.registerAndLogin(t, "alice@example.com")

	status1, body1 := s.do(t, "POST", "/auth/login", "", map[string]any{"email": "alice@example.com", "password": "Wrong1"})
	status2, body2 := s.do(t, "POST", "/auth/login", "", map[string]any{"email": "ghost@example.com", "password": "Secret1"})

	assert.Equal(t, fiber.StatusUnauthorized, status1)
	assert.Equal(t, status1, status2)
	assert.Equal(t, body1, body2)
}

func TestGuardedRoutes(t *testing.T) {
	s := newTestServer(t, nil)
	aliceID, aliceToken, _ := s.registerAndLogin(t, "alice@example.com")

	status, body := s.do(t, "GET", "/users/profile", "", nil)
	assert.Equal(t, fiber.StatusUnauthorized, status)
	assert.Equal(t, "UNAUTHENTICATED", errorCode(body))

	status, body = s.do(t, "GET", "/users/profile", "garbage", nil)
	assert.Equal(t, fiber.StatusUnauthorized, status)
	assert.Equal(t, "UNAUTHENTICATED", errorCode(body))

	status, body = s.do(t, "PATCH", "/users/"+aliceID+"/role", aliceToken, map[string]any{"role": "admin"})
	assert.Equal(t, fiber.StatusForbidden, status)
	assert.Equal(t, "FORBIDDEN", errorCode(body))

	status, body = s.do(t, "PATCH", "/users/profile", aliceToken, map[string]any{"firstName": "  Alicia "})
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "Alicia", body["firstName"])
	assert.Equal(t, true, body["isActive"])

	status, _ = s.do(t, "PATCH", "/users/password", aliceToken, map[string]any{"currentPassword": "Secret1", "newPassword": "Secret2"})
	assert.Equal(t, fiber.StatusOK, status)
	status, _ = s.do(t, "POST", "/auth/login", "", map[string]any{"email": "alice@example.com", "password": "Secret2"})
	assert.Equal(t, fiber.StatusOK, status)
}

func TestAdminRoutes(t *testing.T) {
	s := newTestServer(t, nil)
	_, err := s.credentials.Create(context.Background(), service.NewIdentity{
		Email: "admin@example.com", Password: "Secret1", FirstName: "Ada", LastName: "Admin", Role: domain.RoleAdmin, Active: true,
	})
	require.NoError(t, err)
	status, body := s.do(t, "POST", "/auth/login", "", map[string]any{"email": "admin@example.com", "password": "Secret1"})
	require.Equal(t, fiber.StatusOK, status)
	adminToken := body["access_token"].(string)

	aliceID, aliceToken, aliceRefresh := s.registerAndLogin(t, "alice@example.com")

	status, body = s.do(t, "PATCH", "/users/not-a-uuid/role", adminToken, map[string]any{"role": "admin"})
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_FAILED", errorCode(body))

	status, body = s.do(t, "PATCH", "/users/"+aliceID+"/role", adminToken, map[string]any{"role": "root"})
	assert.Equal(t, fiber.StatusBadRequest, status)

	status, body = s.do(t, "PATCH", "/users/"+aliceID+"/role", adminToken, map[string]any{"role": "admin"})
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "admin", body["role"])

	status, body = s.do(t, "PATCH", "/users/"+aliceID+"/toggle-status", adminToken, nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, false, body["isActive"])

	status, body = s.do(t, "GET", "/auth/me", aliceToken, nil)
	assert.Equal(t, fiber.StatusUnauthorized, status)
	assert.Equal(t, "UNAUTHENTICATED", errorCode(body))

	status, body = s.do(t, "POST", "/auth/refresh", "", map[string]any{"refreshToken": aliceRefresh})
	assert.Equal(t, fiber.StatusUnauthorized, status)
	assert.Equal(t, "UNAUTHORIZED", errorCode(body))
}

func TestHealthAndErrors(t *testing.T) {
	down := pingerFunc(func(context.Context) error { return errors.New("connection refused") })
	up := pingerFunc(func(context.Context) error { return nil })

	s := newTestServer(t, map[string]handlers.Pinger{"postgres": up, "redis": down})

	status, body := s.do(t, "GET", "/health/live", "", nil)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "alive", body["status"])

	status, body = s.do(t, "GET", "/health/ready", "", nil)
	assert.Equal(t, fiber.StatusServiceUnavailable, status)
	details := body["error"].(map[string]any)["details"].(map[string]any)
	assert.Equal(t, "ok", details["postgres"])
	assert.Equal(t, "connection refused", details["redis"])

	status, body = s.do(t, "GET", "/nowhere", "", nil)
	assert.Equal(t, fiber.StatusNotFound, status)
	assert.Equal(t, "NOT_FOUND", errorCode(body))

	status, body = s.do(t, "GET", "/boom", "", nil)
	assert.Equal(t, fiber.StatusInternalServerError, status)
	assert.Equal(t, "INTERNAL_ERROR", errorCode(body))

	status, body = s.do(t, "GET", "/health/metrics", "", nil)
	assert.Equal(t, fiber.StatusOK, status)
	assert.NotEmpty(t, body["requests"])
}

func TestReady_NoDependencies(t *testing.T) {
	s := newTestServer(t, nil)
	status, body := s.do(t, "GET", "/health/ready", "", nil)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "ready", body["status"])
}
