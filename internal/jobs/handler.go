package jobs

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"
)

// Handler lets operators trigger batch jobs over HTTP.
type Handler struct {
	runner *Runner
}

// NewHandler constructs a jobs handler.
func NewHandler(runner *Runner) *Handler {
	return &Handler{runner: runner}
}

// DailyIncome handles POST /admin/jobs/daily-income.
func (h *Handler) DailyIncome(c *fiber.Ctx) error {
	return h.trigger(c, JobDailyIncome)
}

// AutoRenewal handles POST /admin/jobs/auto-renewal.
func (h *Handler) AutoRenewal(c *fiber.Ctx) error {
	return h.trigger(c, JobAutoRenewal)
}

func (h *Handler) trigger(c *fiber.Ctx, name string) error {
	report, err := h.runner.Trigger(c.UserContext(), name)
	if err != nil {
		if errors.Is(err, ErrLockHeld) {
			return fiber.NewError(http.StatusConflict, err.Error())
		}
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(fiber.Map{
		"job":         report.Job,
		"started_at":  report.StartedAt,
		"duration":    report.Duration.String(),
		"users":       report.Users,
		"processed":   report.Processed,
		"failed":      report.Failed,
		"records":     report.Records,
		"amount":      report.Amount.StringFixed(2),
		"deactivated": report.Deactivated,
		"lapsing":     report.Lapsing,
	})
}
