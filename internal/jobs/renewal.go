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
	"github.com/pointvest/pointvest/internal/notification"
	"github.com/pointvest/pointvest/internal/storage"
	"github.com/pointvest/pointvest/internal/transaction"
)

// Renewal charges subscriptions expiring within the next 24h and extends
// them. A subscription the user cannot pay for is switched off for good.
type Renewal struct {
	store    storage.Store
	catalog  catalog.Catalog
	notifier *notification.Dispatcher
	metrics  *metrics.Metrics
	logger   *slog.Logger
	now      func() time.Time
}

// NewRenewal builds the renewal job.
func NewRenewal(store storage.Store, products catalog.Catalog, notifier *notification.Dispatcher, m *metrics.Metrics, logger *slog.Logger) *Renewal {
	return &Renewal{store: store, catalog: products, notifier: notifier, metrics: m, logger: logger, now: time.Now}
}

// Name identifies the job in locks, logs and metrics.
func (j *Renewal) Name() string { return JobAutoRenewal }

type renewalOutcome struct {
	renewed     int
	charged     decimal.Decimal
	deactivated []account.Subscription
	lapsing     int
}

// Run processes every active user in its own unit.
func (j *Renewal) Run(ctx context.Context) (Report, error) {
	now := j.now().UTC()
	report := Report{Job: JobAutoRenewal, StartedAt: now, Amount: decimal.Zero}

	ids, err := j.store.ActiveUserIDs(ctx)
	if err != nil {
		return report, fmt.Errorf("list active users: %w", err)
	}
	report.Users = len(ids)

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return j.finish(report), err
		}
		out, err := j.renew(ctx, id, now)
		if err != nil {
			report.Failed++
			j.logger.Error("auto renewal failed for user", slog.String("user_id", id), slog.Any("error", err))
			continue
		}
		report.Processed++
		report.Records += out.renewed
		report.Amount = report.Amount.Add(out.charged)
		report.Deactivated += len(out.deactivated)
		report.Lapsing += out.lapsing

		for _, sub := range out.deactivated {
			j.logger.Warn("subscription deactivated, insufficient balance for renewal",
				slog.String("user_id", id),
				slog.String("subscription_id", sub.ID),
				slog.String("product_id", sub.ProductID),
			)
			j.notifier.Notify(id, notification.KindSubscriptionDeactivated, map[string]any{
				"subscription_id": sub.ID,
				"product_id":      sub.ProductID,
				"expires_at":      sub.ExpiresAt,
			})
		}
	}
	return j.finish(report), nil
}

func (j *Renewal) renew(ctx context.Context, userID string, now time.Time) (renewalOutcome, error) {
	var out renewalOutcome
	err := j.store.WithinTx(ctx, func(tx storage.Tx) error {
		out = renewalOutcome{charged: decimal.Zero}
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
		charged := false
		for _, sub := range subs {
			if !sub.DueForRenewal(now) {
				continue
			}
			product, err := j.catalog.Get(ctx, sub.ProductID)
			if err != nil {
				return fmt.Errorf("subscription %s: %w", sub.ID, err)
			}
			switch {
			case !product.Active:
				sub.AutoRenew = false
				out.lapsing++
			case user.Covers(product.Price):
				if product.Price.IsPositive() {
					if user.Balances, err = user.DebitPrimary(product.Price); err != nil {
						return err
					}
					charged = true
				}
				sub.Renew(product.ValidityDays)
				rec, err := transaction.NewSettled(userID, transaction.TypeRenewal, product.Price, product.ID,
					fmt.Sprintf("renewal %d of subscription %s", sub.RenewalCount, sub.ID), now)
				if err != nil {
					return err
				}
				if err := tx.InsertTransaction(ctx, rec); err != nil {
					return err
				}
				out.renewed++
				out.charged = out.charged.Add(product.Price)
			default:
				sub.Deactivate()
				out.deactivated = append(out.deactivated, sub)
			}
			if err := tx.UpdateSubscription(ctx, sub); err != nil {
				return err
			}
		}
		if !charged {
			return nil
		}
		return tx.UpdateBalances(ctx, userID, user.Balances)
	})
	if err != nil {
		return renewalOutcome{}, err
	}
	return out, nil
}

func (j *Renewal) finish(r Report) Report {
	r.Duration = j.now().UTC().Sub(r.StartedAt)
	j.metrics.JobUsers(JobAutoRenewal, "ok", r.Processed)
	j.metrics.JobUsers(JobAutoRenewal, "failed", r.Failed)
	j.metrics.JobDuration(JobAutoRenewal, r.Duration)
	j.logger.Info("auto renewal run finished",
		slog.Int("users", r.Users),
		slog.Int("processed", r.Processed),
		slog.Int("failed", r.Failed),
		slog.Int("renewed", r.Records),
		slog.Int("deactivated", r.Deactivated),
		slog.Int("lapsing", r.Lapsing),
		slog.String("charged", r.Amount.StringFixed(2)),
		slog.Duration("duration", r.Duration),
	)
	return r
}
