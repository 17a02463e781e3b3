package catalog

import (
	"github.com/gofiber/fiber/v2"

	"github.com/pointvest/pointvest/internal/apperr"
)

// Handler exposes the catalog over HTTP.
type Handler struct {
	catalog Catalog
}

// NewHandler builds the catalog handler.
func NewHandler(c Catalog) *Handler {
	return &Handler{catalog: c}
}

// List handles GET /products.
func (h *Handler) List(c *fiber.Ctx) error {
	products, err := h.catalog.List(c.UserContext())
	if err != nil {
		return fiber.NewError(apperr.HTTPStatus(err), err.Error())
	}
	return c.JSON(fiber.Map{"products": products})
}

// Get handles GET /products/:id.
func (h *Handler) Get(c *fiber.Ctx) error {
	p, err := h.catalog.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return fiber.NewError(apperr.HTTPStatus(err), err.Error())
	}
	return c.JSON(p)
}
