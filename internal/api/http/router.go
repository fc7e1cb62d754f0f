package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/auth-service/internal/api/http/handlers"
	"github.com/spec-kit/auth-service/internal/auth"
	"github.com/spec-kit/auth-service/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health        *handlers.HealthHandler
	Users         *handlers.UsersHandler
	AccessBearer  *auth.TokenBearer
	RefreshBearer *auth.TokenBearer
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/metrics", cfg.AccessBearer.Handle, auth.RequireRole(domain.UserRoleAdmin), cfg.Health.Metrics)

	authGroup := app.Group("/api/v1/auth")
	authGroup.Post("/signup", cfg.Users.Signup)
	authGroup.Post("/login", cfg.Users.Login)
	authGroup.Get("/verify/:token", cfg.Users.Verify)
	authGroup.Get("/refresh_token", cfg.RefreshBearer.Handle, cfg.Users.RefreshToken)
	authGroup.Get("/me", cfg.AccessBearer.Handle, cfg.Users.Me)
	authGroup.Get("/logout", cfg.AccessBearer.Handle, cfg.Users.Logout)
}
