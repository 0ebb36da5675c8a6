package auth

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/publishing-service/internal/domain"
	apperrors "github.com/spec-kit/publishing-service/pkg/util"
)

type stubValidator struct {
	users map[string]*domain.User
}

func (s *stubValidator) ValidateAccessToken(_ context.Context, token string) (*domain.User, error) {
	user, ok := s.users[token]
	if !ok {
		return nil, apperrors.NewUnauthorized("invalid or expired token")
	}
	return user, nil
}

func newStubValidator() *stubValidator {
	return &stubValidator{users: map[string]*domain.User{
		"user-token":  {ID: "u-1", Email: "alice@example.com", Role: domain.RoleUser, FirstName: "Alice"},
		"admin-token": {ID: "u-2", Email: "root@example.com", Role: domain.RoleAdmin},
	}}
}

func TestGuard_Authorize(t *testing.T) {
	tests := []struct {
		name     string
		header   string
		roles    []domain.Role
		wantCode string
		wantID   string
	}{
		{name: "missing header", header: "", wantCode: apperrors.CodeUnauthenticated},
		{name: "wrong scheme", header: "Basic dXNlcjpwYXNz", wantCode: apperrors.CodeUnauthenticated},
		{name: "no token", header: "Bearer ", wantCode: apperrors.CodeUnauthenticated},
		{name: "scheme only", header: "Bearer", wantCode: apperrors.CodeUnauthenticated},
		{name: "garbage token", header: "Bearer garbage", wantCode: apperrors.CodeUnauthenticated},
		{name: "valid no roles", header: "Bearer user-token", wantID: "u-1"},
		{name: "scheme is case insensitive", header: "bearer user-token", wantID: "u-1"},
		{name: "role allowed", header: "Bearer admin-token", roles: []domain.Role{domain.RoleAdmin}, wantID: "u-2"},
		{name: "any of roles", header: "Bearer user-token", roles: []domain.Role{domain.RoleAdmin, domain.RoleUser}, wantID: "u-1"},
		{name: "role denied", header: "Bearer user-token", roles: []domain.Role{domain.RoleAdmin}, wantCode: apperrors.CodeForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			guard := NewGuard(newStubValidator())
			principal, err := guard.Authorize(context.Background(), tt.header, tt.roles...)
			if tt.wantCode != "" {
				require.Error(t, err)
				assert.True(t, apperrors.HasCode(err, tt.wantCode), "got %v", err)
				assert.Nil(t, principal)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantID, principal.ID)
		})
	}
}

type mockValidator struct {
	mock.Mock
}

func (m *mockValidator) ValidateAccessToken(ctx context.Context, token string) (*domain.User, error) {
	args := m.Called(ctx, token)
	user, _ := args.Get(0).(*domain.User)
	return user, args.Error(1)
}

func TestGuard_AuthorizeSkipsValidatorOnBadHeader(t *testing.T) {
	validator := &mockValidator{}
	guard := NewGuard(validator)

	_, err := guard.Authorize(context.Background(), "Token user-token")
	require.Error(t, err)
	validator.AssertNotCalled(t, "ValidateAccessToken", mock.Anything, mock.Anything)
}

func TestGuard_AuthorizePassesThroughInternalErrors(t *testing.T) {
	validator := &mockValidator{}
	validator.On("ValidateAccessToken", mock.Anything, "user-token").
		Return(nil, apperrors.NewInternalError(assert.AnError)).Once()
	guard := NewGuard(validator)

	_, err := guard.Authorize(context.Background(), "Bearer user-token")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInternal))
	validator.AssertExpectations(t)
}

func newGuardedApp(guard *Guard) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			de := apperrors.ToDomainError(err)
			return c.Status(de.HTTPStatus).JSON(fiber.Map{"code": de.Code})
		},
	})
	whoami := func(c *fiber.Ctx) error {
		p, ok := PrincipalFromContext(c)
		if !ok {
			return c.SendStatus(fiber.StatusTeapot)
		}
		return c.JSON(fiber.Map{"id": p.ID, "role": p.Role})
	}
	app.Get("/me", guard.Handle, whoami)
	app.Get("/admin", guard.Handle, RequireAdmin(), whoami)
	app.Get("/open", RequireRoles(), whoami)
	return app
}

func doGet(t *testing.T, app *fiber.App, path, header string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest("GET", path, nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	body := map[string]any{}
	_ = json.NewDecoder(resp.Body).Decode(&body)
	return resp.StatusCode, body
}

func TestGuard_HandleAndRequireRoles(t *testing.T) {
	app := newGuardedApp(NewGuard(newStubValidator()))

	status, body := doGet(t, app, "/me", "Bearer user-token")
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "u-1", body["id"])

	status, body = doGet(t, app, "/me", "")
	assert.Equal(t, fiber.StatusUnauthorized, status)
	assert.Equal(t, apperrors.CodeUnauthenticated, body["code"])

	status, body = doGet(t, app, "/admin", "Bearer user-token")
	assert.Equal(t, fiber.StatusForbidden, status)
	assert.Equal(t, apperrors.CodeForbidden, body["code"])

	status, body = doGet(t, app, "/admin", "Bearer admin-token")
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "admin", body["role"])

	// Without Guard.Handle there is no principal to check.
	status, body = doGet(t, app, "/open", "Bearer user-token")
	assert.Equal(t, fiber.StatusUnauthorized, status)
	assert.Equal(t, apperrors.CodeUnauthenticated, body["code"])
}

func TestPrincipal_HasRole(t *testing.T) {
	p := &Principal{Role: domain.RoleUser}
	assert.True(t, p.HasRole())
	assert.True(t, p.HasRole(domain.RoleUser))
	assert.False(t, p.HasRole(domain.RoleAdmin))
}
