package middleware

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/noah-isme/gema-feedback-api/internal/utils"
)

// RateLimit limits a route per user, per guest session, or per IP otherwise.
func RateLimit(identifier string, max int, window time.Duration) fiber.Handler {
	if max <= 0 {
		max = 10
	}
	if window <= 0 {
		window = time.Second
	}

	return limiter.New(limiter.Config{
		Max:        max,
		Expiration: window,
		KeyGenerator: func(c *fiber.Ctx) string {
			return fmt.Sprintf("%s:%s", identifier, rateLimitSubject(c))
		},
		LimitReached: func(c *fiber.Ctx) error {
			return utils.SendError(c, fiber.StatusTooManyRequests, "too many requests")
		},
	})
}

func rateLimitSubject(c *fiber.Ctx) string {
	if id, ok := c.Locals("user_id").(uint); ok && id > 0 {
		return fmt.Sprintf("user-%d", id)
	}
	if guest, ok := c.Locals("guest_id").(string); ok && guest != "" {
		return "guest-" + guest
	}
	return "ip-" + c.IP()
}
