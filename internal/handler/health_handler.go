package handler

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-feedback-api/internal/config"
	"github.com/noah-isme/gema-feedback-api/internal/utils"
)

// HealthResponse represents the payload returned by the health endpoint.
type HealthResponse struct {
	Status       string            `json:"status"`
	Timestamp    time.Time         `json:"timestamp"`
	Service      string            `json:"service"`
	Environment  string            `json:"environment"`
	Dependencies map[string]string `json:"dependencies"`
}

// HealthDependencies are probed on every health request. Nil entries are
// reported as disabled.
type HealthDependencies struct {
	DB    *gorm.DB
	Redis *redis.Client
	NATS  *nats.Conn
}

const healthProbeTimeout = 2 * time.Second

// HealthCheck reports the service status and the state of its backends. A
// failing database turns the response into a 503.
func HealthCheck(cfg config.Config, deps HealthDependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), healthProbeTimeout)
		defer cancel()

		payload := HealthResponse{
			Status:       "ok",
			Timestamp:    time.Now().UTC(),
			Service:      cfg.AppName,
			Environment:  cfg.AppEnv,
			Dependencies: map[string]string{},
		}

		payload.Dependencies["database"] = probeDatabase(ctx, deps.DB)
		if payload.Dependencies["database"] == "down" {
			payload.Status = "degraded"
		}

		switch {
		case deps.Redis == nil:
			payload.Dependencies["redis"] = "disabled"
		case deps.Redis.Ping(ctx).Err() != nil:
			payload.Dependencies["redis"] = "down"
		default:
			payload.Dependencies["redis"] = "up"
		}

		switch {
		case deps.NATS == nil:
			payload.Dependencies["nats"] = "disabled"
		case !deps.NATS.IsConnected():
			payload.Dependencies["nats"] = "down"
		default:
			payload.Dependencies["nats"] = "up"
		}

		if payload.Status != "ok" {
			return utils.SendSuccessWithStatus(c, fiber.StatusServiceUnavailable, "service degraded", payload)
		}
		return utils.SendSuccess(c, "service healthy", payload)
	}
}

func probeDatabase(ctx context.Context, db *gorm.DB) string {
	if db == nil {
		return "disabled"
	}
	sqlDB, err := db.DB()
	if err != nil {
		return "down"
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return "down"
	}
	return "up"
}
