package account

import (
	"github.com/gofiber/fiber/v2"

	"github.com/pointvest/pointvest/internal/apperr"
)

// ActorFunc extracts the caller's user id from the request.
type ActorFunc func(c *fiber.Ctx) string

// Handler exposes the caller's balances and subscriptions.
type Handler struct {
	service *Service
	actor   ActorFunc
}

// NewHandler constructs an account handler.
func NewHandler(service *Service, actor ActorFunc) *Handler {
	return &Handler{service: service, actor: actor}
}

// Me handles GET /me.
func (h *Handler) Me(c *fiber.Ctx) error {
	user, err := h.service.Get(c.UserContext(), h.actor(c))
	if err != nil {
		return fiber.NewError(apperr.HTTPStatus(err), err.Error())
	}
	return c.JSON(fiber.Map{
		"id":                user.ID,
		"role":              user.Role,
		"status":            user.Status,
		"referred_by":       user.ReferredBy,
		"balance_primary":   user.Primary.StringFixed(2),
		"balance_secondary": user.Secondary.StringFixed(2),
		"created_at":        user.CreatedAt,
	})
}

// Subscriptions handles GET /me/subscriptions.
func (h *Handler) Subscriptions(c *fiber.Ctx) error {
	subs, err := h.service.Subscriptions(c.UserContext(), h.actor(c))
	if err != nil {
		return fiber.NewError(apperr.HTTPStatus(err), err.Error())
	}
	out := make([]fiber.Map, 0, len(subs))
	for _, s := range subs {
		out = append(out, subscriptionJSON(s))
	}
	return c.JSON(fiber.Map{"subscriptions": out})
}

type autoRenewRequest struct {
	AutoRenew *bool `json:"auto_renew"`
}

// SetAutoRenew handles PATCH /me/subscriptions/:id/auto-renew.
func (h *Handler) SetAutoRenew(c *fiber.Ctx) error {
	var req autoRenewRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if req.AutoRenew == nil {
		return fiber.NewError(fiber.StatusBadRequest, "auto_renew is required")
	}
	sub, err := h.service.SetAutoRenew(c.UserContext(), h.actor(c), c.Params("id"), *req.AutoRenew)
	if err != nil {
		return fiber.NewError(apperr.HTTPStatus(err), err.Error())
	}
	return c.JSON(subscriptionJSON(sub))
}

func subscriptionJSON(s Subscription) fiber.Map {
	m := fiber.Map{
		"id":            s.ID,
		"product_id":    s.ProductID,
		"purchase_date": s.PurchaseDate,
		"expires_at":    s.ExpiresAt,
		"auto_renew":    s.AutoRenew,
		"is_active":     s.IsActive,
		"renewal_count": s.RenewalCount,
	}
	if !s.LastAccruedOn.IsZero() {
		m["last_accrued_on"] = s.LastAccruedOn.Format("2006-01-02")
	}
	return m
}
