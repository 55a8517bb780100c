package middleware

import (
	"crypto/subtle"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/JobMwaura/zintra-sub007/internal/pkg/usercontext"
)

// GatewayIdentity reads the caller identity the auth gateway injects. When
// secret is set, identity headers without the matching X-Gateway-Secret are
// rejected so clients cannot impersonate each other by setting X-User-Id.
func GatewayIdentity(secret string) fiber.Handler {
	secret = strings.TrimSpace(secret)
	return func(c *fiber.Ctx) error {
		userID := strings.TrimSpace(c.Get(usercontext.HeaderUserID))
		if userID == "" {
			usercontext.SetUserContext(c, usercontext.UserContext{})
			return c.Next()
		}

		if secret != "" {
			got := c.Get(usercontext.HeaderGatewaySecret)
			if subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
				log.Warnf("[Auth] Rejected identity header for %s from %s: bad gateway secret", userID, c.IP())
				return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized"})
			}
		}

		role := strings.ToLower(strings.TrimSpace(c.Get(usercontext.HeaderUserRole)))
		usercontext.SetUserContext(c, usercontext.UserContext{
			UserID:     userID,
			Role:       role,
			IsLoggedIn: true,
			IsAdmin:    role == usercontext.RoleAdmin,
		})
		return c.Next()
	}
}
