package subscription

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/pointvest/pointvest/internal/account"
	"github.com/pointvest/pointvest/internal/apperr"
	"github.com/pointvest/pointvest/internal/storage"
	"github.com/pointvest/pointvest/internal/transaction"
)

// ReferralBonus credits the referrer of a first-time buyer.
type ReferralBonus struct {
	pct    decimal.Decimal
	logger *slog.Logger
}

// NewReferralBonus builds the engine. A zero pct disables bonuses.
func NewReferralBonus(pct decimal.Decimal, logger *slog.Logger) *ReferralBonus {
	return &ReferralBonus{pct: pct, logger: logger}
}

// Bonus is what Award credited. Zero when nothing was awarded.
type Bonus struct {
	ReferrerID    string
	Amount        decimal.Decimal
	TransactionID string
}

// Award credits round2(price * pct / 100) to buyer.ReferredBy within tx. A
// missing or inactive referrer is skipped so the purchase still commits.
func (r *ReferralBonus) Award(ctx context.Context, tx storage.Tx, buyer account.User, productID string, price decimal.Decimal, now time.Time) (Bonus, error) {
	if r == nil || !r.pct.IsPositive() || buyer.ReferredBy == "" || buyer.ReferredBy == buyer.ID {
		return Bonus{}, nil
	}
	amount := price.Mul(r.pct).Div(decimal.NewFromInt(100)).Round(2)
	if !amount.IsPositive() {
		return Bonus{}, nil
	}

	referrer, err := tx.User(ctx, buyer.ReferredBy)
	if errors.Is(err, apperr.ErrNotFound) {
		r.logger.Warn("referral bonus skipped, referrer not found",
			slog.String("buyer_id", buyer.ID),
			slog.String("referrer_id", buyer.ReferredBy),
		)
		return Bonus{}, nil
	}
	if err != nil {
		return Bonus{}, err
	}
	if !referrer.Active() {
		r.logger.Warn("referral bonus skipped, referrer inactive",
			slog.String("buyer_id", buyer.ID),
			slog.String("referrer_id", referrer.ID),
		)
		return Bonus{}, nil
	}

	if referrer.Balances, err = referrer.CreditPrimary(amount); err != nil {
		return Bonus{}, err
	}
	if err := tx.UpdateBalances(ctx, referrer.ID, referrer.Balances); err != nil {
		return Bonus{}, err
	}
	note := fmt.Sprintf("referral bonus for first purchase by %s", buyer.ID)
	rec, err := transaction.NewSettled(referrer.ID, transaction.TypeReferralBonus, amount, productID, note, now)
	if err != nil {
		return Bonus{}, err
	}
	if err := tx.InsertTransaction(ctx, rec); err != nil {
		return Bonus{}, err
	}
	return Bonus{ReferrerID: referrer.ID, Amount: amount, TransactionID: rec.ID}, nil
}
