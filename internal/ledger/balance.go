package ledger

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/pointvest/pointvest/internal/apperr"
)

// Balances are the two numeric fields a user holds. Primary is the store of
// value. Secondary is a display figure that no core operation mutates.
type Balances struct {
	Primary   decimal.Decimal `json:"balance_primary"`
	Secondary decimal.Decimal `json:"balance_secondary"`
}

// Validate checks that neither balance is negative.
func (b Balances) Validate() error {
	if b.Primary.IsNegative() {
		return fmt.Errorf("balance_primary %s: %w", b.Primary.StringFixed(2), apperr.ErrInsufficientBalance)
	}
	if b.Secondary.IsNegative() {
		return fmt.Errorf("balance_secondary %s: %w", b.Secondary.StringFixed(2), apperr.ErrInsufficientBalance)
	}
	return nil
}

// Covers reports whether the primary balance can absorb a debit of amount.
func (b Balances) Covers(amount decimal.Decimal) bool {
	return b.Primary.GreaterThanOrEqual(amount)
}

// CreditPrimary returns the balances with amount added to Primary.
func (b Balances) CreditPrimary(amount decimal.Decimal) (Balances, error) {
	if !amount.IsPositive() {
		return b, apperr.Validation("credit amount must be positive, got %s", amount.String())
	}
	b.Primary = b.Primary.Add(amount)
	return b, nil
}

// DebitPrimary returns the balances with amount taken from Primary. The
// receiver is returned unchanged when the debit would go negative.
func (b Balances) DebitPrimary(amount decimal.Decimal) (Balances, error) {
	if !amount.IsPositive() {
		return b, apperr.Validation("debit amount must be positive, got %s", amount.String())
	}
	if !b.Covers(amount) {
		return b, fmt.Errorf("debit %s against %s: %w", amount.StringFixed(2), b.Primary.StringFixed(2), apperr.ErrInsufficientBalance)
	}
	b.Primary = b.Primary.Sub(amount)
	return b, nil
}
