package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/rs/zerolog"
)

// Config customises the middleware pipeline shared by every route.
type Config struct {
	Logger *zerolog.Logger
	// AllowOrigins lists the browser origins allowed to call the API.
	// Empty allows any origin.
	AllowOrigins []string
}

// Register installs panic recovery, correlation ids, request metrics and CORS.
func Register(app *fiber.App, cfg Config) {
	requestLogger := zerolog.Nop()
	if cfg.Logger != nil {
		requestLogger = *cfg.Logger
	}

	origins := "*"
	if len(cfg.AllowOrigins) > 0 {
		origins = strings.Join(cfg.AllowOrigins, ",")
	}

	app.Use(recover.New())
	app.Use(CorrelationID())
	app.Use(Observability(requestLogger))
	app.Use(cors.New(cors.Config{
		AllowOrigins:  origins,
		AllowHeaders:  "Origin, Content-Type, Accept, Authorization, X-Correlation-ID, " + GuestHeader,
		ExposeHeaders: "X-Correlation-ID, Content-Disposition",
		AllowMethods:  "GET,POST,PUT,PATCH,DELETE,OPTIONS",
	}))
}
