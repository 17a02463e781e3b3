package approval

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/pointvest/pointvest/internal/apperr"
	"github.com/pointvest/pointvest/internal/funding"
	"github.com/pointvest/pointvest/internal/middleware"
	"github.com/pointvest/pointvest/internal/request"
	"github.com/pointvest/pointvest/internal/transaction"
)

type decisionRequest struct {
	Note   string `json:"note" validate:"max=500"`
	Reason string `json:"reason" validate:"max=500"`
}

type notesRequest struct {
	Notes string `json:"notes" validate:"max=1000"`
}

// Handler exposes the approval workflow and the transaction audit trail.
type Handler struct {
	service *Service
}

// NewHandler constructs an approval handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Approve handles POST /transactions/:id/approve.
func (h *Handler) Approve(c *fiber.Ctx) error {
	var req decisionRequest
	if err := bindOptional(c, &req); err != nil {
		return err
	}
	tx, err := h.service.Approve(c.UserContext(), middleware.MustActor(c), c.Params("id"), req.Note)
	if err != nil {
		return fiber.NewError(apperr.HTTPStatus(err), err.Error())
	}
	return c.JSON(funding.ToResponse(tx))
}

// Reject handles POST /transactions/:id/reject.
func (h *Handler) Reject(c *fiber.Ctx) error {
	var req decisionRequest
	if err := bindOptional(c, &req); err != nil {
		return err
	}
	tx, err := h.service.Reject(c.UserContext(), middleware.MustActor(c), c.Params("id"), req.Reason)
	if err != nil {
		return fiber.NewError(apperr.HTTPStatus(err), err.Error())
	}
	return c.JSON(funding.ToResponse(tx))
}

// EditNotes handles PATCH /transactions/:id/notes.
func (h *Handler) EditNotes(c *fiber.Ctx) error {
	var req notesRequest
	if err := request.Bind(c, &req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	tx, err := h.service.EditNotes(c.UserContext(), middleware.MustActor(c), c.Params("id"), req.Notes)
	if err != nil {
		return fiber.NewError(apperr.HTTPStatus(err), err.Error())
	}
	return c.JSON(funding.ToResponse(tx))
}

// Get handles GET /transactions/:id.
func (h *Handler) Get(c *fiber.Ctx) error {
	tx, err := h.service.Get(c.UserContext(), middleware.MustActor(c), c.Params("id"))
	if err != nil {
		return fiber.NewError(apperr.HTTPStatus(err), err.Error())
	}
	return c.JSON(funding.ToResponse(tx))
}

// List handles GET /transactions?user_id=&type=&status=&limit=&offset=.
func (h *Handler) List(c *fiber.Ctx) error {
	f := transaction.Filter{
		UserID: c.Query("user_id"),
		Type:   transaction.Type(c.Query("type")),
		Status: transaction.Status(c.Query("status")),
		Limit:  c.QueryInt("limit", 20),
		Offset: c.QueryInt("offset", 0),
	}
	if f.Offset < 0 {
		return fiber.NewError(http.StatusBadRequest, "offset must not be negative")
	}
	txs, err := h.service.List(c.UserContext(), middleware.MustActor(c), f)
	if err != nil {
		return fiber.NewError(apperr.HTTPStatus(err), err.Error())
	}
	out := make([]funding.TransactionResponse, 0, len(txs))
	for _, tx := range txs {
		out = append(out, funding.ToResponse(tx))
	}
	return c.JSON(fiber.Map{"transactions": out, "limit": f.PageSize(), "offset": f.Offset})
}

func bindOptional(c *fiber.Ctx, dst any) error {
	if len(c.Body()) == 0 {
		return nil
	}
	if err := request.Bind(c, dst); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	return nil
}
