package auth

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/publishing-service/internal/domain"
	apperrors "github.com/spec-kit/publishing-service/pkg/util"
)

// RequireRoles ensures the principal set by Guard.Handle holds one of the
// allowed roles.
func RequireRoles(allowed ...domain.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok {
			return apperrors.NewUnauthenticated("authentication required")
		}
		if !principal.HasRole(allowed...) {
			return apperrors.NewForbidden("insufficient role")
		}
		return c.Next()
	}
}

// RequireAdmin is RequireRoles(domain.RoleAdmin).
func RequireAdmin() fiber.Handler {
	return RequireRoles(domain.RoleAdmin)
}
