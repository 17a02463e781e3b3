package subscription

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/pointvest/pointvest/internal/apperr"
	"github.com/pointvest/pointvest/internal/funding"
	"github.com/pointvest/pointvest/internal/middleware"
)

// Handler exposes purchases over HTTP.
type Handler struct {
	service *Service
}

// NewHandler constructs a purchase handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Purchase handles POST /products/:id/purchase for the calling actor.
func (h *Handler) Purchase(c *fiber.Ctx) error {
	receipt, err := h.service.Purchase(c.UserContext(), middleware.MustActor(c).ID, c.Params("id"))
	if err != nil {
		return fiber.NewError(apperr.HTTPStatus(err), err.Error())
	}
	sub := receipt.Subscription
	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"subscription": fiber.Map{
			"id":            sub.ID,
			"product_id":    sub.ProductID,
			"purchase_date": sub.PurchaseDate,
			"expires_at":    sub.ExpiresAt,
			"auto_renew":    sub.AutoRenew,
			"is_active":     sub.IsActive,
		},
		"transaction":     funding.ToResponse(receipt.Transaction),
		"balance_primary": receipt.Buyer.Primary.StringFixed(2),
	})
}
