package funding

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/pointvest/pointvest/internal/apperr"
	"github.com/pointvest/pointvest/internal/middleware"
	"github.com/pointvest/pointvest/internal/request"
)

// Handler exposes deposit and withdrawal submission over HTTP.
type Handler struct {
	service *Service
}

// NewHandler constructs a funding handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Deposit handles POST /deposits for the calling actor.
func (h *Handler) Deposit(c *fiber.Ctx) error {
	var req DepositRequest
	if err := request.Bind(c, &req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	amount, err := request.Amount("amount", req.Amount)
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	tx, err := h.service.SubmitDeposit(c.UserContext(), DepositInput{
		UserID:        middleware.MustActor(c).ID,
		Amount:        amount,
		PaymentMethod: req.PaymentMethod,
		Notes:         req.Notes,
	})
	if err != nil {
		return fiber.NewError(apperr.HTTPStatus(err), err.Error())
	}
	return c.Status(http.StatusCreated).JSON(ToResponse(tx))
}

// Withdrawal handles POST /withdrawals for the calling actor.
func (h *Handler) Withdrawal(c *fiber.Ctx) error {
	var req WithdrawalRequest
	if err := request.Bind(c, &req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	amount, err := request.Amount("amount", req.Amount)
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	tx, err := h.service.SubmitWithdrawal(c.UserContext(), WithdrawalInput{
		UserID:  middleware.MustActor(c).ID,
		Amount:  amount,
		Address: req.Address,
		Network: req.Network,
	})
	if err != nil {
		return fiber.NewError(apperr.HTTPStatus(err), err.Error())
	}
	return c.Status(http.StatusCreated).JSON(ToResponse(tx))
}
