package middleware

import (
	"time"

	"chatsync/internal/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
)

// RateLimiter creates a rate limiting middleware
func RateLimiter(max int, expiration time.Duration) fiber.Handler {
	return limiter.New(limiter.Config{
		Max:        max,
		Expiration: expiration,
		KeyGenerator: func(c *fiber.Ctx) string {
			// Use user ID if authenticated, otherwise use IP
			if userID := GetUserID(c); userID != "" {
				return userID
			}
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return utils.Fail(c, fiber.StatusTooManyRequests, utils.CodeRateLimited, "Too many requests, please try again later")
		},
	})
}

// StrictRateLimiter for sensitive endpoints (e.g., auth)
func StrictRateLimiter() fiber.Handler {
	return RateLimiter(10, 15*time.Minute)
}

// ModerateRateLimiter for writes
func ModerateRateLimiter() fiber.Handler {
	return RateLimiter(60, 1*time.Minute)
}
