package middleware

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/pointvest/pointvest/internal/account"
)

const (
	actorIDHeader   = "X-Actor-ID"
	actorRoleHeader = "X-Actor-Role"
	actorLocalsKey  = "actor"
)

// Actor reads the caller identity the gateway asserted in headers. Requests
// without an actor id are rejected.
func Actor() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := strings.TrimSpace(c.Get(actorIDHeader))
		if id == "" {
			return fiber.NewError(http.StatusUnauthorized, "missing actor identity")
		}
		role := strings.ToLower(strings.TrimSpace(c.Get(actorRoleHeader)))
		if role == "" {
			role = account.RoleUser
		}
		c.Locals(actorLocalsKey, account.Actor{ID: id, Role: role})
		return c.Next()
	}
}

// RequireRole lets the request through only if the actor holds one of roles.
func RequireRole(roles ...string) fiber.Handler {
	allowed := make(map[string]bool, len(roles))
	for _, r := range roles {
		allowed[strings.ToLower(r)] = true
	}
	return func(c *fiber.Ctx) error {
		actor, ok := ActorFrom(c)
		if !ok {
			return fiber.NewError(http.StatusUnauthorized, "missing actor identity")
		}
		if !allowed[actor.Role] {
			return fiber.NewError(http.StatusForbidden, "role not permitted")
		}
		return c.Next()
	}
}

// ActorFrom returns the actor stored by Actor.
func ActorFrom(c *fiber.Ctx) (account.Actor, bool) {
	actor, ok := c.Locals(actorLocalsKey).(account.Actor)
	return actor, ok
}

// MustActor is ActorFrom for routes mounted behind Actor.
func MustActor(c *fiber.Ctx) account.Actor {
	actor, _ := ActorFrom(c)
	return actor
}
