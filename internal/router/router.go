package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/healthfusion/nutriwaste/internal/config"
	"github.com/healthfusion/nutriwaste/internal/handlers"
	"github.com/healthfusion/nutriwaste/internal/logging"
	"github.com/healthfusion/nutriwaste/internal/middleware"
	"github.com/healthfusion/nutriwaste/internal/services"
)

// Setup configures all routes and middlewares
func Setup(app *fiber.App, logger *logging.Logger, dashboard *services.DashboardService, cfg config.Config) *handlers.Handler {
	h := handlers.New(logger, dashboard)

	// Global middlewares
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization,X-API-Key,X-Request-ID",
	}))
	app.Use(logging.FiberMiddleware(logger, logging.DefaultMiddlewareConfig()))

	// Health check (no auth required)
	app.Get("/health", h.Health)

	// Read-only dashboard routes
	v1 := app.Group("/v1")
	v1.Get("/overview", h.Overview)
	v1.Get("/predictions", h.Predictions)
	v1.Get("/forecast", h.Forecast)
	v1.Get("/compare", h.Compare)
	v1.Get("/best", h.BestModel)
	v1.Get("/scores", h.Scores)
	v1.Get("/scores/history", h.ScoreHistory)
	v1.Get("/charts/:name", h.Chart)

	// Uploads replace pipeline inputs and require an API key
	v1.Post("/upload", middleware.APIKeyAuth(logger, cfg.Auth), h.Upload)

	// 404 handler
	app.Use(h.NotFound)

	return h
}

// New creates a new Fiber app with configuration
func New(logger *logging.Logger, dashboard *services.DashboardService, cfg config.Config) *fiber.App {
	// Development mode prints the banner and route table on start
	dev := cfg.IsDevelopment()
	app := fiber.New(fiber.Config{
		AppName:               "Nutriwaste Dashboard",
		DisableStartupMessage: !dev,
		EnablePrintRoutes:     dev,
		BodyLimit:             cfg.Server.BodyLimit,
		ErrorHandler:          middleware.ErrorHandler(logger),
	})

	Setup(app, logger, dashboard, cfg)

	return app
}
