package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/pointvest/pointvest/internal/account"
	"github.com/pointvest/pointvest/internal/catalog"
	"github.com/pointvest/pointvest/internal/metrics"
	"github.com/pointvest/pointvest/internal/storage"
	"github.com/pointvest/pointvest/internal/transaction"
)

// DailyIncome credits each earning subscription's daily income, one income
// record per subscription, at most once per calendar day.
type DailyIncome struct {
	store   storage.Store
	catalog catalog.Catalog
	metrics *metrics.Metrics
	logger  *slog.Logger
	now     func() time.Time
}

// NewDailyIncome builds the income job.
func NewDailyIncome(store storage.Store, products catalog.Catalog, m *metrics.Metrics, logger *slog.Logger) *DailyIncome {
	return &DailyIncome{store: store, catalog: products, metrics: m, logger: logger, now: time.Now}
}

// Name identifies the job in locks, logs and metrics.
func (j *DailyIncome) Name() string { return JobDailyIncome }

// Run processes every active user in its own unit. A failing user is logged
// and counted; the batch carries on.
func (j *DailyIncome) Run(ctx context.Context) (Report, error) {
	now := j.now().UTC()
	report := Report{Job: JobDailyIncome, StartedAt: now, Amount: decimal.Zero}

	ids, err := j.store.ActiveUserIDs(ctx)
	if err != nil {
		return report, fmt.Errorf("list active users: %w", err)
	}
	report.Users = len(ids)

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return j.finish(report), err
		}
		records, credited, err := j.accrue(ctx, id, now)
		if err != nil {
			report.Failed++
			j.logger.Error("daily income failed for user", slog.String("user_id", id), slog.Any("error", err))
			continue
		}
		report.Processed++
		report.Records += records
		report.Amount = report.Amount.Add(credited)
	}
	return j.finish(report), nil
}

func (j *DailyIncome) accrue(ctx context.Context, userID string, now time.Time) (int, decimal.Decimal, error) {
	records := 0
	credited := decimal.Zero
	err := j.store.WithinTx(ctx, func(tx storage.Tx) error {
		records, credited = 0, decimal.Zero
		user, err := tx.User(ctx, userID)
		if err != nil {
			return err
		}
		if !user.Active() {
			return nil
		}
		subs, err := tx.Subscriptions(ctx, userID)
		if err != nil {
			return err
		}
		for _, sub := range subs {
			if !sub.Earning(now) || sub.AccruedOn(now) {
				continue
			}
			product, err := j.catalog.Get(ctx, sub.ProductID)
			if err != nil {
				return fmt.Errorf("subscription %s: %w", sub.ID, err)
			}
			if !product.DailyIncome.IsPositive() {
				continue
			}
			if user.Balances, err = user.CreditPrimary(product.DailyIncome); err != nil {
				return err
			}
			rec, err := transaction.NewSettled(userID, transaction.TypeIncome, product.DailyIncome, product.ID,
				fmt.Sprintf("daily income for subscription %s", sub.ID), now)
			if err != nil {
				return err
			}
			if err := tx.InsertTransaction(ctx, rec); err != nil {
				return err
			}
			sub.LastAccruedOn = account.Day(now)
			if err := tx.UpdateSubscription(ctx, sub); err != nil {
				return err
			}
			records++
			credited = credited.Add(product.DailyIncome)
		}
		if records == 0 {
			return nil
		}
		return tx.UpdateBalances(ctx, userID, user.Balances)
	})
	if err != nil {
		return 0, decimal.Zero, err
	}
	return records, credited, nil
}

func (j *DailyIncome) finish(r Report) Report {
	r.Duration = j.now().UTC().Sub(r.StartedAt)
	j.metrics.JobUsers(JobDailyIncome, "ok", r.Processed)
	j.metrics.JobUsers(JobDailyIncome, "failed", r.Failed)
	j.metrics.JobDuration(JobDailyIncome, r.Duration)
	j.logger.Info("daily income run finished",
		slog.Int("users", r.Users),
		slog.Int("processed", r.Processed),
		slog.Int("failed", r.Failed),
		slog.Int("records", r.Records),
		slog.String("credited", r.Amount.StringFixed(2)),
		slog.Duration("duration", r.Duration),
	)
	return r
}
