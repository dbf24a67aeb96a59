package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/gema-feedback-api/internal/config"
	"github.com/noah-isme/gema-feedback-api/internal/handler"
	"github.com/noah-isme/gema-feedback-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	FeedbackHandler   *handler.FeedbackHandler
	ItemHandler       *handler.ItemHandler
	AttachmentHandler *handler.AttachmentHandler
	CompletionHandler *handler.CompletionHandler
	AnalysisHandler   *handler.AnalysisHandler
	ResponsesHandler  *handler.ResponsesHandler
	TemplateHandler   *handler.TemplateHandler
	ExchangeHandler   *handler.ExchangeHandler
	Health            handler.HealthDependencies
	// AuthMiddleware resolves the caller. It should leave anonymous requests
	// through so guests can answer site feedbacks.
	AuthMiddleware fiber.Handler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	app.Get("/metrics", observability.MetricsHandler())

	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg, deps.Health))

	authMiddleware := deps.AuthMiddleware
	if authMiddleware == nil {
		authMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}
	secured := api.Group("", authMiddleware)

	registrars := []interface{ Register(fiber.Router) }{}
	if deps.FeedbackHandler != nil {
		registrars = append(registrars, deps.FeedbackHandler)
	}
	if deps.ItemHandler != nil {
		registrars = append(registrars, deps.ItemHandler)
	}
	if deps.AttachmentHandler != nil {
		registrars = append(registrars, deps.AttachmentHandler)
	}
	if deps.CompletionHandler != nil {
		registrars = append(registrars, deps.CompletionHandler)
	}
	if deps.AnalysisHandler != nil {
		registrars = append(registrars, deps.AnalysisHandler)
	}
	if deps.ResponsesHandler != nil {
		registrars = append(registrars, deps.ResponsesHandler)
	}
	if deps.TemplateHandler != nil {
		registrars = append(registrars, deps.TemplateHandler)
	}
	if deps.ExchangeHandler != nil {
		registrars = append(registrars, deps.ExchangeHandler)
	}
	for _, registrar := range registrars {
		registrar.Register(secured)
	}
}
