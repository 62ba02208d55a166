package middleware

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/paisa-play/paisa_play/internal/account"
	"github.com/paisa-play/paisa_play/internal/auth"
	"github.com/paisa-play/paisa_play/internal/config"
)

// JWTAuth returns a middleware that validates JWT access tokens and checks token version.
func JWTAuth(cfg config.Config, repo account.Repository) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authz := c.Get(fiber.HeaderAuthorization)
		if !strings.HasPrefix(strings.ToLower(authz), "bearer ") {
			return fiber.NewError(http.StatusUnauthorized, "missing bearer token")
		}
		tokenStr := strings.TrimSpace(authz[len("Bearer "):])
		claims, err := auth.ParseAndVerifyHS256(tokenStr, []byte(cfg.JWTSecret))
		if err != nil {
			return fiber.NewError(http.StatusUnauthorized, "invalid token")
		}
		sub, _ := claims["sub"].(string)
		role, _ := claims["role"].(string)
		verFloat, _ := claims["ver"].(float64)
		ver := int(verFloat)

		acc, err := repo.FindByID(c.UserContext(), sub)
		if err != nil || acc.TokenVersion != ver || acc.Status != account.StatusActive {
			return fiber.NewError(http.StatusUnauthorized, "token invalidated")
		}

		c.Locals("account_id", sub)
		c.Locals("account_role", role)
		c.Locals("token_version", ver)
		return c.Next()
	}
}

// RequireAdmin rejects requests whose token does not carry the admin role.
// Must be mounted after JWTAuth.
func RequireAdmin() fiber.Handler {
	return func(c *fiber.Ctx) error {
		role, _ := c.Locals("account_role").(string)
		if role != account.RoleAdmin {
			return fiber.NewError(http.StatusForbidden, "admin role required")
		}
		return c.Next()
	}
}
