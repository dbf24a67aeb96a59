package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/gema-feedback-api/internal/models"
	"github.com/noah-isme/gema-feedback-api/internal/utils"
)

// RequireFacilitator guards a route group so only admins and teachers reach it.
func RequireFacilitator() fiber.Handler {
	return RequireRole(models.RoleAdmin, models.RoleTeacher)
}

// RequireRole rejects guests and callers whose role is not listed.
func RequireRole(roles ...string) fiber.Handler {
	allowed := make(map[string]bool, len(roles))
	for _, role := range roles {
		if normalized := normalizeRole(role); normalized != "" {
			allowed[normalized] = true
		}
	}

	return func(c *fiber.Ctx) error {
		if _, ok := c.Locals("user_id").(uint); !ok {
			return utils.Fail(c, fiber.StatusUnauthorized, "authentication required", nil)
		}
		role, _ := c.Locals("user_role").(string)
		if !allowed[normalizeRole(role)] {
			return utils.Fail(c, fiber.StatusForbidden, "insufficient permissions", fiber.Map{"allowed": roles})
		}
		return c.Next()
	}
}

func normalizeRole(role string) string {
	return strings.ToLower(strings.TrimSpace(role))
}
