package router

import (
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/storage/redis"

	"github.com/JobMwaura/zintra-sub007/internal/pkg/cache"
	"github.com/JobMwaura/zintra-sub007/internal/pkg/env"
	"github.com/JobMwaura/zintra-sub007/internal/pkg/usercontext"
)

// Payment providers call these; they are never rate limited.
var unlimitedPaths = []string{
	"/api/billing/mpesa/callback",
	"/api/webhooks/",
}

// LimiterStorage returns Redis-backed limiter storage when the cache is up,
// so all instances share one budget. nil means in-memory.
func LimiterStorage() fiber.Storage {
	if !cache.IsAvailable() {
		return nil
	}
	host, port := "localhost", 6379
	opts := cache.GetClient().Options()
	if h, p, err := net.SplitHostPort(opts.Addr); err == nil {
		host = h
		if v, err := strconv.Atoi(p); err == nil {
			port = v
		}
	}
	return redis.New(redis.Config{
		Host:     host,
		Port:     port,
		Password: opts.Password,
		Database: env.GetEnvInt("LIMITER_REDIS_DB", 2),
		Reset:    false,
	})
}

func newLimiter(storage fiber.Storage) fiber.Handler {
	cfg := limiter.Config{
		Max:        env.GetEnvInt("API_RATE_LIMIT", 120),
		Expiration: env.GetEnvDuration("API_RATE_WINDOW", time.Minute),
		KeyGenerator: func(c *fiber.Ctx) string {
			if id := usercontext.GetUserID(c); id != "" {
				return "user:" + id
			}
			return "ip:" + c.IP()
		},
		Next: func(c *fiber.Ctx) bool {
			for _, p := range unlimitedPaths {
				if strings.HasPrefix(c.Path(), p) {
					return true
				}
			}
			return false
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"error": "Too many requests"})
		},
	}
	if storage != nil {
		cfg.Storage = storage
	}
	return limiter.New(cfg)
}
