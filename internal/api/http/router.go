package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/publishing-service/internal/api/http/handlers"
	"github.com/spec-kit/publishing-service/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health *handlers.HealthHandler
	Auth   *handlers.AuthHandler
	Users  *handlers.UsersHandler
	Guard  *auth.Guard
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/health/metrics", cfg.Health.Metrics)

	authGroup := app.Group("/auth")
	authGroup.Post("/register", cfg.Auth.Register)
	authGroup.Post("/login", cfg.Auth.Login)
	authGroup.Post("/refresh", cfg.Auth.Refresh)
	authGroup.Get("/me", cfg.Guard.Handle, cfg.Auth.Me)
	authGroup.Post("/logout", cfg.Guard.Handle, cfg.Auth.Logout)

	users := app.Group("/users", cfg.Guard.Handle)
	users.Get("/profile", cfg.Users.Profile)
	users.Patch("/profile", cfg.Users.UpdateProfile)
	users.Patch("/password", cfg.Users.ChangePassword)

	requireAdmin := auth.RequireAdmin()
	users.Patch("/:id/role", requireAdmin, cfg.Users.ChangeRole)
	users.Patch("/:id/toggle-status", requireAdmin, cfg.Users.ToggleStatus)
}
