package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/gema-feedback-api/internal/models"
	"github.com/noah-isme/gema-feedback-api/internal/utils"
)

// Auth role constants used by WithAuth.
const (
	AuthRoleAny         = "any"
	AuthRoleFacilitator = "facilitator"
	AuthRoleStudent     = models.RoleStudent
)

// AuthOptions configures WithAuth.
type AuthOptions struct {
	Role       string
	AllowGuest bool
}

// WithAuth wraps a handler with authentication and role guards. Guests pass
// only with AllowGuest and a guest id, and only when Role is any.
func WithAuth(handler fiber.Handler, opts AuthOptions) fiber.Handler {
	role := strings.ToLower(strings.TrimSpace(opts.Role))
	if role == "" {
		role = AuthRoleAny
	}

	return func(c *fiber.Ctx) error {
		if c.Locals("user_id") == nil {
			if opts.AllowGuest && role == AuthRoleAny && c.Locals("guest_id") != nil {
				return handler(c)
			}
			return utils.Fail(c, fiber.StatusUnauthorized, "authentication required", nil)
		}

		current, _ := c.Locals("user_role").(string)
		current = strings.ToLower(strings.TrimSpace(current))
		switch role {
		case AuthRoleAny:
		case AuthRoleFacilitator:
			if current != models.RoleAdmin && current != models.RoleTeacher {
				return utils.Fail(c, fiber.StatusForbidden, "insufficient permissions", fiber.Map{"required": role})
			}
		default:
			if current != role {
				return utils.Fail(c, fiber.StatusForbidden, "insufficient permissions", fiber.Map{"required": role})
			}
		}

		return handler(c)
	}
}
