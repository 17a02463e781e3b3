package middleware

import (
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

// RateLimit caps requests per actor per minute for the named bucket. It is a
// no-op without Redis and fails open on cache errors.
func RateLimit(cache *redis.Client, bucket string, maxPerMin int) fiber.Handler {
	if maxPerMin <= 0 {
		maxPerMin = 10
	}
	return func(c *fiber.Ctx) error {
		if cache == nil {
			return c.Next()
		}
		who := c.IP()
		if actor, ok := ActorFrom(c); ok {
			who = actor.ID
		}
		window := time.Now().UTC().Format("200601021504")
		key := "rl:" + bucket + ":" + who + ":" + window
		cnt, err := cache.Incr(c.UserContext(), key).Result()
		if err != nil {
			return c.Next()
		}
		if cnt == 1 {
			cache.Expire(c.UserContext(), key, time.Minute)
		}
		if cnt > int64(maxPerMin) {
			return fiber.NewError(http.StatusTooManyRequests, "too many requests, try again later")
		}
		return c.Next()
	}
}
