package auth

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/publishing-service/internal/domain"
	apperrors "github.com/spec-kit/publishing-service/pkg/util"
)

const principalKey = "auth_principal"

// Principal represents the authenticated caller.
type Principal struct {
	ID        string
	Email     string
	Role      domain.Role
	FirstName string
	LastName  string
}

// HasRole reports whether the principal holds one of roles. An empty set
// admits any authenticated caller.
func (p *Principal) HasRole(roles ...domain.Role) bool {
	if len(roles) == 0 {
		return true
	}
	for _, role := range roles {
		if p.Role == role {
			return true
		}
	}
	return false
}

// AccessValidator resolves an access token to the identity it belongs to.
type AccessValidator interface {
	ValidateAccessToken(ctx context.Context, accessToken string) (*domain.User, error)
}

// Guard validates bearer tokens and enforces role requirements.
type Guard struct {
	validator AccessValidator
}

// NewGuard constructs the guard.
func NewGuard(validator AccessValidator) *Guard {
	return &Guard{validator: validator}
}

// Authorize checks the Authorization header value and, when required is
// non-empty, the caller's role. It returns an Unauthenticated error when
// the caller cannot be identified and a Forbidden error when the caller is
// identified but lacks the role.
func (g *Guard) Authorize(ctx context.Context, header string, required ...domain.Role) (*Principal, error) {
	token, err := bearerToken(header)
	if err != nil {
		return nil, err
	}

	user, err := g.validator.ValidateAccessToken(ctx, token)
	if err != nil {
		if apperrors.HasCode(err, apperrors.CodeUnauthorized) || apperrors.HasCode(err, apperrors.CodeUnauthenticated) {
			return nil, apperrors.NewUnauthenticated("invalid or expired token")
		}
		return nil, err
	}

	principal := &Principal{
		ID:        user.ID,
		Email:     user.Email,
		Role:      user.Role,
		FirstName: user.FirstName,
		LastName:  user.LastName,
	}
	if !principal.HasRole(required...) {
		return nil, apperrors.NewForbidden("insufficient role")
	}
	return principal, nil
}

// Handle enforces authentication for protected routes.
func (g *Guard) Handle(c *fiber.Ctx) error {
	principal, err := g.Authorize(c.UserContext(), c.Get(fiber.HeaderAuthorization))
	if err != nil {
		return err
	}
	c.Locals(principalKey, principal)
	return c.Next()
}

// PrincipalFromContext retrieves the authenticated caller.
func PrincipalFromContext(c *fiber.Ctx) (*Principal, bool) {
	val := c.Locals(principalKey)
	if val == nil {
		return nil, false
	}
	principal, ok := val.(*Principal)
	return principal, ok && principal != nil
}

func bearerToken(header string) (string, error) {
	if header == "" {
		return "", apperrors.NewUnauthenticated("missing authorization header")
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", apperrors.NewUnauthenticated("invalid authorization header")
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", apperrors.NewUnauthenticated("invalid authorization header")
	}
	return token, nil
}
