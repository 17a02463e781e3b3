package routes

import (
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/pointvest/pointvest/internal/account"
	"github.com/pointvest/pointvest/internal/approval"
	"github.com/pointvest/pointvest/internal/catalog"
	"github.com/pointvest/pointvest/internal/funding"
	"github.com/pointvest/pointvest/internal/jobs"
	"github.com/pointvest/pointvest/internal/middleware"
	"github.com/pointvest/pointvest/internal/subscription"
)

const submissionsPerMinute = 30

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps, comps *Components) {
	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(d.Metrics.Middleware())
	if d.Cfg.IsDev() {
		// Plain text access log: [HH:MM:SS] 200 -  145ms METHOD /path
		app.Use(logger.New(logger.Config{
			Format:     "[${time}] ${status} -  ${latency} ${method} ${path}\n",
			TimeFormat: "15:04:05",
			TimeZone:   "Local",
		}))
	}

	RegisterHealthRoutes(app, d)

	api := app.Group("/api/v1")
	api.Get("/ping", func(c *fiber.Ctx) error {
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": middleware.RequestIDFrom(c),
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	protected := api.Group("", middleware.Actor(), middleware.Audit(d.Logger))
	if d.Cache != nil {
		protected.Use(middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger))
	}
	limit := middleware.RateLimit(d.Cache, "submit", submissionsPerMinute)

	RegisterCatalogRoutes(protected, catalog.NewHandler(comps.Catalog), subscription.NewHandler(comps.Subscription), limit)
	RegisterFundingRoutes(protected, funding.NewHandler(comps.Funding), limit)
	RegisterTransactionRoutes(protected, approval.NewHandler(comps.Approvals), d.Cfg.Approvers)
	RegisterAccountRoutes(protected, account.NewHandler(comps.Accounts, func(c *fiber.Ctx) string {
		return middleware.MustActor(c).ID
	}))
	RegisterJobRoutes(protected, jobs.NewHandler(comps.Runner), d.Cfg.Approvers)
}

// RegisterCatalogRoutes wires the product catalog and purchases.
func RegisterCatalogRoutes(r fiber.Router, products *catalog.Handler, purchases *subscription.Handler, limit fiber.Handler) {
	r.Get("/products", products.List)
	r.Get("/products/:id", products.Get)
	r.Post("/products/:id/purchase", limit, purchases.Purchase)
}

// RegisterFundingRoutes wires deposit and withdrawal submission.
func RegisterFundingRoutes(r fiber.Router, h *funding.Handler, limit fiber.Handler) {
	r.Post("/deposits", limit, h.Deposit)
	r.Post("/withdrawals", limit, h.Withdrawal)
}

// RegisterTransactionRoutes wires the approval workflow and the audit listing.
func RegisterTransactionRoutes(r fiber.Router, h *approval.Handler, approvers []string) {
	r.Get("/transactions", h.List)
	r.Get("/transactions/:id", h.Get)

	decide := middleware.RequireRole(approvers...)
	r.Post("/transactions/:id/approve", decide, h.Approve)
	r.Post("/transactions/:id/reject", decide, h.Reject)
	r.Patch("/transactions/:id/notes", decide, h.EditNotes)
}

// RegisterAccountRoutes wires the caller's own balances and subscriptions.
func RegisterAccountRoutes(r fiber.Router, h *account.Handler) {
	r.Get("/me", h.Me)
	r.Get("/me/subscriptions", h.Subscriptions)
	r.Patch("/me/subscriptions/:id/auto-renew", h.SetAutoRenew)
}

// RegisterJobRoutes wires manual batch triggers for operators.
func RegisterJobRoutes(r fiber.Router, h *jobs.Handler, operators []string) {
	admin := r.Group("/admin/jobs", middleware.RequireRole(operators...))
	admin.Post("/daily-income", h.DailyIncome)
	admin.Post("/auto-renewal", h.AutoRenewal)
}
