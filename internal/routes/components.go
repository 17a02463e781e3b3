package routes

import (
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/pointvest/pointvest/internal/account"
	"github.com/pointvest/pointvest/internal/approval"
	"github.com/pointvest/pointvest/internal/catalog"
	"github.com/pointvest/pointvest/internal/config"
	"github.com/pointvest/pointvest/internal/fee"
	"github.com/pointvest/pointvest/internal/funding"
	"github.com/pointvest/pointvest/internal/jobs"
	"github.com/pointvest/pointvest/internal/metrics"
	"github.com/pointvest/pointvest/internal/notification"
	"github.com/pointvest/pointvest/internal/storage"
	"github.com/pointvest/pointvest/internal/subscription"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg      config.Config
	DB       *pgxpool.Pool
	Cache    *redis.Client
	Logger   *slog.Logger
	Metrics  *metrics.Metrics
	Notifier notification.Notifier
}

// Components are the services built from Deps, shared by the API and the scheduler.
type Components struct {
	Store        storage.Store
	Catalog      catalog.Catalog
	Dispatcher   *notification.Dispatcher
	Accounts     *account.Service
	Funding      *funding.Service
	Approvals    *approval.Service
	Subscription *subscription.Service
	Runner       *jobs.Runner
	Income       *jobs.DailyIncome
	Renewal      *jobs.Renewal
}

// Build wires storage, services and jobs. Without a database it falls back
// to in-memory backends, which is only allowed in development.
func Build(d Deps) (*Components, error) {
	if !d.Cfg.IsDev() {
		if d.DB == nil {
			return nil, fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
		if d.Cache == nil {
			return nil, fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
	}

	var (
		store    storage.Store
		products catalog.Catalog
	)
	if d.DB != nil {
		store = storage.NewPostgresStore(d.DB)
		products = catalog.NewPostgresCatalog(d.DB)
	} else {
		store = storage.NewMemoryStore()
		products = catalog.NewMemoryCatalog(devProducts()...)
		d.Logger.Warn("no database configured, using in-memory store")
	}
	if d.Cache != nil {
		products = catalog.NewCachedCatalog(products, d.Cache, d.Cfg.CatalogCacheTTL, d.Logger)
	}

	notifier := d.Notifier
	if notifier == nil {
		notifier = notification.NewLoggerNotifier(d.Logger)
	}
	dispatcher := notification.NewDispatcher(notifier, d.Cfg.NotifyTimeout, d.Logger, d.Metrics)

	fees := fee.NewPolicy(map[fee.Direction]decimal.Decimal{
		fee.DirectionDeposit:    d.Cfg.Fees.DepositPct,
		fee.DirectionWithdrawal: d.Cfg.Fees.WithdrawalPct,
	}, roleSet(d.Cfg.Fees.ExemptRoles))

	rules := funding.Rules{
		MinDeposit:     d.Cfg.Funding.MinDeposit,
		MinWithdrawal:  d.Cfg.Funding.MinWithdrawal,
		ConversionRate: d.Cfg.Funding.ConversionRate,
		PaymentMethods: d.Cfg.Funding.PaymentMethods,
		Networks:       d.Cfg.Funding.Networks,
	}

	var locker jobs.Locker
	if d.Cache != nil {
		locker = jobs.NewRedisLocker(d.Cache)
	}
	runner := jobs.NewRunner(d.Cfg.Jobs.Location, locker, d.Cfg.Jobs.LockTTL, d.Logger)
	income := jobs.NewDailyIncome(store, products, d.Metrics, d.Logger)
	renewal := jobs.NewRenewal(store, products, dispatcher, d.Metrics, d.Logger)
	runner.Register(income)
	runner.Register(renewal)

	return &Components{
		Store:        store,
		Catalog:      products,
		Dispatcher:   dispatcher,
		Accounts:     account.NewService(store, d.Logger),
		Funding:      funding.NewService(store, fees, rules, d.Metrics, d.Logger),
		Approvals:    approval.NewService(store, fees, d.Cfg.Approvers, dispatcher, d.Metrics, d.Logger),
		Subscription: subscription.NewService(store, products, subscription.NewReferralBonus(d.Cfg.Referral, d.Logger), dispatcher, d.Metrics, d.Logger),
		Runner:       runner,
		Income:       income,
		Renewal:      renewal,
	}, nil
}

// ScheduleJobs runs income then renewal on the configured schedule.
func (c *Components) ScheduleJobs(cfg config.Jobs) error {
	return c.Runner.ScheduleChain(cfg.Schedule, c.Income, c.Renewal)
}

func roleSet(roles []string) map[string]bool {
	out := make(map[string]bool, len(roles))
	for _, r := range roles {
		out[r] = true
	}
	return out
}

func devProducts() []catalog.Product {
	return []catalog.Product{
		{ID: "starter", Name: "Starter", Price: decimal.NewFromInt(100), DailyIncome: decimal.NewFromInt(2), ValidityDays: 30, Active: true},
		{ID: "growth", Name: "Growth", Price: decimal.NewFromInt(500), DailyIncome: decimal.NewFromInt(12), ValidityDays: 60, Active: true},
		{ID: "premium", Name: "Premium", Price: decimal.NewFromInt(2000), DailyIncome: decimal.NewFromInt(55), ValidityDays: 90, Active: true},
	}
}

