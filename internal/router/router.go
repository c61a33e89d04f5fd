package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/industria-elearning/assign-ai/internal/config"
	"github.com/industria-elearning/assign-ai/internal/handler"
	"github.com/industria-elearning/assign-ai/internal/middleware"
	"github.com/industria-elearning/assign-ai/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	ReviewHandler *handler.ReviewHandler
	ConfigHandler *handler.ConfigHandler
	JWTMiddleware fiber.Handler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg))

	app.Get("/metrics", observability.MetricsHandler())

	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}

	// Review decisions and configuration are teacher-only surfaces.
	teacherOnly := middleware.RequireRole("teacher", "admin")

	if deps.ReviewHandler != nil {
		reviews := app.Group("/api/v1", jwtMiddleware, teacherOnly)
		deps.ReviewHandler.Register(reviews)
	}

	if deps.ConfigHandler != nil {
		configs := app.Group("/api/v1", jwtMiddleware, teacherOnly)
		deps.ConfigHandler.Register(configs)
	}
}
