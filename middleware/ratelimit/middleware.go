package ratelimit

import (
	"fmt"
	"strconv"

	"github.com/go-monolith/mono/pkg/types"
	"github.com/gofiber/fiber/v2"
)

// ByIP returns a Fiber handler that limits requests per client IP. The
// limiter failing lets the request through; the failure is logged.
func ByIP(limiter Limiter, limit int, logger types.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ip := c.IP()
		if ip == "" {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error":   "forbidden",
				"message": "Unable to determine client IP address",
			})
		}

		result, err := limiter.Allow(c.UserContext(), ip)
		if err != nil {
			logger.Warn("Rate limiter unavailable, allowing request", "ip", ip, "error", err)
			return c.Next()
		}

		c.Set("X-RateLimit-Limit", strconv.Itoa(limit))
		c.Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
		c.Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))

		if !result.Allowed {
			retryAfter := int(result.RetryAfter.Seconds())
			if retryAfter < 1 {
				retryAfter = 1
			}
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(retryAfter))

			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error":   "too_many_requests",
				"message": fmt.Sprintf("Too many attempts. Please retry after %d seconds.", retryAfter),
			})
		}

		return c.Next()
	}
}
