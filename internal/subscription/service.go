// Package subscription sells catalog products against the primary balance.
package subscription

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/pointvest/pointvest/internal/account"
	"github.com/pointvest/pointvest/internal/apperr"
	"github.com/pointvest/pointvest/internal/catalog"
	"github.com/pointvest/pointvest/internal/metrics"
	"github.com/pointvest/pointvest/internal/notification"
	"github.com/pointvest/pointvest/internal/storage"
	"github.com/pointvest/pointvest/internal/transaction"
)

// Service handles product purchases.
type Service struct {
	store    storage.Store
	catalog  catalog.Catalog
	referral *ReferralBonus
	notifier *notification.Dispatcher
	metrics  *metrics.Metrics
	logger   *slog.Logger
	now      func() time.Time
}

// NewService builds a purchase service.
func NewService(store storage.Store, products catalog.Catalog, referral *ReferralBonus, notifier *notification.Dispatcher, m *metrics.Metrics, logger *slog.Logger) *Service {
	return &Service{
		store:    store,
		catalog:  products,
		referral: referral,
		notifier: notifier,
		metrics:  m,
		logger:   logger,
		now:      time.Now,
	}
}

// Receipt is the outcome of a purchase.
type Receipt struct {
	Subscription account.Subscription
	Transaction  transaction.Transaction
	Buyer        account.User
	Bonus        Bonus
}

// Purchase debits the product price and opens an auto-renewing subscription.
// A buyer's first purchase also pays the referral bonus, in the same unit.
func (s *Service) Purchase(ctx context.Context, userID, productID string) (Receipt, error) {
	product, err := s.catalog.Get(ctx, productID)
	if err != nil {
		return Receipt{}, err
	}
	if !product.Active {
		return Receipt{}, apperr.Validation("product %s is not available", productID)
	}
	if product.Price.IsNegative() {
		return Receipt{}, apperr.Validation("product %s has a negative price", productID)
	}
	if product.ValidityDays <= 0 {
		return Receipt{}, apperr.Validation("product %s has no validity period", productID)
	}

	var receipt Receipt
	err = s.store.WithinTx(ctx, func(tx storage.Tx) error {
		now := s.now().UTC()
		user, err := tx.User(ctx, userID)
		if err != nil {
			return err
		}
		if !user.Active() {
			return apperr.Validation("user %s is not active", userID)
		}
		if product.Price.IsPositive() {
			if user.Balances, err = user.DebitPrimary(product.Price); err != nil {
				return err
			}
			if err := tx.UpdateBalances(ctx, user.ID, user.Balances); err != nil {
				return err
			}
		}

		sub := account.Subscription{
			ID:           uuid.NewString(),
			UserID:       user.ID,
			ProductID:    product.ID,
			PurchaseDate: now,
			ExpiresAt:    now.AddDate(0, 0, product.ValidityDays),
			AutoRenew:    true,
			IsActive:     true,
		}
		if err := tx.InsertSubscription(ctx, sub); err != nil {
			return err
		}

		previous, err := tx.CountTransactions(ctx, user.ID, transaction.TypePurchase)
		if err != nil {
			return err
		}
		rec, err := transaction.NewSettled(user.ID, transaction.TypePurchase, product.Price, product.ID,
			fmt.Sprintf("purchase of %s", product.Name), now)
		if err != nil {
			return err
		}
		if err := tx.InsertTransaction(ctx, rec); err != nil {
			return err
		}

		var bonus Bonus
		if previous == 0 {
			if bonus, err = s.referral.Award(ctx, tx, user, product.ID, product.Price, now); err != nil {
				return err
			}
		}
		receipt = Receipt{Subscription: sub, Transaction: rec, Buyer: user, Bonus: bonus}
		return nil
	})
	if err != nil {
		return Receipt{}, fmt.Errorf("purchase %s: %w", productID, err)
	}

	s.metrics.Purchased()
	s.logger.Info("product purchased",
		slog.String("user_id", userID),
		slog.String("product_id", productID),
		slog.String("subscription_id", receipt.Subscription.ID),
		slog.String("price", product.Price.StringFixed(2)),
	)
	if receipt.Bonus.ReferrerID != "" {
		s.logger.Info("referral bonus credited",
			slog.String("referrer_id", receipt.Bonus.ReferrerID),
			slog.String("buyer_id", userID),
			slog.String("amount", receipt.Bonus.Amount.StringFixed(2)),
		)
		s.notifier.Notify(receipt.Bonus.ReferrerID, notification.KindReferralBonus, map[string]any{
			"transaction_id": receipt.Bonus.TransactionID,
			"amount":         receipt.Bonus.Amount.StringFixed(2),
			"buyer_id":       userID,
		})
	}
	return receipt, nil
}
