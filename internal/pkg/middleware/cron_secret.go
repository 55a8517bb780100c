package middleware

import (
	"crypto/subtle"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
)

const LocalsCronAuthorized = "cron_authorized"

// CronSecret marks requests carrying the scheduler's bearer token. The check
// is soft: a missing or wrong token is logged and the request continues, so
// the expiry endpoint keeps working for manual triggers.
func CronSecret(secret string) fiber.Handler {
	secret = strings.TrimSpace(secret)
	return func(c *fiber.Ctx) error {
		if secret == "" {
			return c.Next()
		}
		token := extractBearerToken(c)
		ok := token != "" && subtle.ConstantTimeCompare([]byte(token), []byte(secret)) == 1
		if !ok {
			log.Warnf("[Cron] %s %s without a valid cron secret from %s", c.Method(), c.Path(), c.IP())
		}
		c.Locals(LocalsCronAuthorized, ok)
		return c.Next()
	}
}

func extractBearerToken(c *fiber.Ctx) string {
	auth := strings.TrimSpace(c.Get(fiber.HeaderAuthorization))
	if strings.HasPrefix(strings.ToLower(auth), "bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	return strings.TrimSpace(c.Get("X-Cron-Secret"))
}
