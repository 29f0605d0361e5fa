package middleware

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/example/storefront/internal/cache"
)

// KeyFunc derives the cache key for a request.
type KeyFunc func(c *fiber.Ctx) string

// URLKey keys by prefix plus the full request URI, query included.
func URLKey(prefix string) KeyFunc {
	return func(c *fiber.Ctx) string {
		return prefix + c.OriginalURL()
	}
}

// Cache serves GET responses from store and records successful misses for
// ttl. Only 200 responses are stored.
func Cache(store *cache.Cache, key KeyFunc, ttl time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if c.Method() != fiber.MethodGet {
			return c.Next()
		}

		k := key(c)
		if raw, ok := store.GetRaw(c.UserContext(), k); ok {
			c.Set("X-Cache", "HIT")
			c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSONCharsetUTF8)
			return c.Send(raw)
		}

		c.Set("X-Cache", "MISS")
		if err := c.Next(); err != nil {
			return err
		}

		if c.Response().StatusCode() == fiber.StatusOK {
			body := append([]byte(nil), c.Response().Body()...)
			store.SetRaw(c.UserContext(), k, body, ttl)
		}
		return nil
	}
}
