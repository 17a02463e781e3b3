// Package funding accepts deposit and withdrawal requests and records them as
// pending transactions for finance review. Submitting never moves balance.
package funding

import (
	"context"
	"log/slog"
	"strings"
	"time"
	"unicode"

	"github.com/shopspring/decimal"

	"github.com/pointvest/pointvest/internal/account"
	"github.com/pointvest/pointvest/internal/apperr"
	"github.com/pointvest/pointvest/internal/fee"
	"github.com/pointvest/pointvest/internal/metrics"
	"github.com/pointvest/pointvest/internal/storage"
	"github.com/pointvest/pointvest/internal/transaction"
)

const (
	minAddressLen = 10
	maxAddressLen = 128
)

// Rules are the submission limits configured for the deployment.
type Rules struct {
	MinDeposit     decimal.Decimal
	MinWithdrawal  decimal.Decimal
	ConversionRate decimal.Decimal
	PaymentMethods []string
	Networks       []string
}

// DefaultRules returns the limits used when nothing is configured.
func DefaultRules() Rules {
	return Rules{
		MinDeposit:     decimal.NewFromInt(10),
		MinWithdrawal:  decimal.NewFromInt(20),
		ConversionRate: decimal.NewFromInt(1),
		PaymentMethods: []string{"bank_transfer", "usdt", "card"},
		Networks:       []string{"TRC20", "ERC20", "BEP20"},
	}
}

// Service coordinates deposit and withdrawal submissions.
type Service struct {
	store   storage.Store
	fees    fee.Policy
	rules   Rules
	metrics *metrics.Metrics
	logger  *slog.Logger
	now     func() time.Time
}

// NewService builds a funding service.
func NewService(store storage.Store, fees fee.Policy, rules Rules, m *metrics.Metrics, logger *slog.Logger) *Service {
	if rules.ConversionRate.IsZero() {
		rules.ConversionRate = decimal.NewFromInt(1)
	}
	return &Service{store: store, fees: fees, rules: rules, metrics: m, logger: logger, now: time.Now}
}

// DepositInput captures a deposit request.
type DepositInput struct {
	UserID        string
	Amount        decimal.Decimal
	PaymentMethod string
	Notes         string
}

// WithdrawalInput captures a withdrawal request.
type WithdrawalInput struct {
	UserID  string
	Amount  decimal.Decimal
	Address string
	Network string
}

// SubmitDeposit records a pending deposit. The fee is charged at approval.
func (s *Service) SubmitDeposit(ctx context.Context, in DepositInput) (transaction.Transaction, error) {
	if in.Amount.LessThan(s.rules.MinDeposit) || !in.Amount.IsPositive() {
		return transaction.Transaction{}, apperr.Validation("deposit must be at least %s", s.rules.MinDeposit.StringFixed(2))
	}
	method, ok := pick(s.rules.PaymentMethods, in.PaymentMethod)
	if !ok {
		return transaction.Transaction{}, apperr.Validation("unsupported payment method %q", in.PaymentMethod)
	}
	if _, err := s.activeUser(ctx, in.UserID); err != nil {
		return transaction.Transaction{}, err
	}

	secondary := in.Amount.Mul(s.rules.ConversionRate).Round(2)
	tx, err := transaction.NewPending(in.UserID, transaction.TypeDeposit, in.Amount.Round(2), secondary, s.now())
	if err != nil {
		return transaction.Transaction{}, err
	}
	tx.PaymentMethod = method
	tx.AppendNote(in.Notes)

	if err := s.store.InsertTransaction(ctx, tx); err != nil {
		return transaction.Transaction{}, err
	}
	s.metrics.Submitted(string(transaction.TypeDeposit))
	s.logger.Info("deposit submitted",
		slog.String("transaction_id", tx.ID),
		slog.String("user_id", in.UserID),
		slog.String("amount", tx.AmountPrimary.StringFixed(2)),
		slog.String("payment_method", method),
	)
	return tx, nil
}

// SubmitWithdrawal records a pending withdrawal. The fee is taken now and the
// stored amount is the net the user will be debited on approval.
func (s *Service) SubmitWithdrawal(ctx context.Context, in WithdrawalInput) (transaction.Transaction, error) {
	in.Amount = in.Amount.Round(2)
	if in.Amount.LessThan(s.rules.MinWithdrawal) || !in.Amount.IsPositive() {
		return transaction.Transaction{}, apperr.Validation("withdrawal must be at least %s", s.rules.MinWithdrawal.StringFixed(2))
	}
	address, err := validateAddress(in.Address)
	if err != nil {
		return transaction.Transaction{}, err
	}
	network, ok := pick(s.rules.Networks, in.Network)
	if !ok {
		return transaction.Transaction{}, apperr.Validation("unsupported network %q", in.Network)
	}
	user, err := s.activeUser(ctx, in.UserID)
	if err != nil {
		return transaction.Transaction{}, err
	}

	quote, err := s.fees.Quote(in.Amount, user.Role, fee.DirectionWithdrawal)
	if err != nil {
		return transaction.Transaction{}, err
	}
	if !user.Covers(in.Amount) {
		return transaction.Transaction{}, apperr.ErrInsufficientBalance
	}
	if !quote.Net.IsPositive() {
		return transaction.Transaction{}, apperr.Validation("fee %s exceeds the amount", quote.Fee.StringFixed(2))
	}

	tx, err := transaction.NewPending(in.UserID, transaction.TypeWithdrawal, quote.Net, decimal.Zero, s.now())
	if err != nil {
		return transaction.Transaction{}, err
	}
	tx.FeeAmount = quote.Fee
	tx.Address = address
	tx.Network = network
	tx.AppendNote(quote.Describe())

	if err := s.store.InsertTransaction(ctx, tx); err != nil {
		return transaction.Transaction{}, err
	}
	s.metrics.Submitted(string(transaction.TypeWithdrawal))
	s.logger.Info("withdrawal submitted",
		slog.String("transaction_id", tx.ID),
		slog.String("user_id", in.UserID),
		slog.String("gross", in.Amount.StringFixed(2)),
		slog.String("net", quote.Net.StringFixed(2)),
		slog.String("network", network),
	)
	return tx, nil
}

func (s *Service) activeUser(ctx context.Context, userID string) (account.User, error) {
	user, err := s.store.User(ctx, userID)
	if err != nil {
		return account.User{}, err
	}
	if !user.Active() {
		return account.User{}, apperr.Validation("user %s is not active", userID)
	}
	return user, nil
}

func validateAddress(address string) (string, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return "", apperr.Validation("address is required")
	}
	if len(address) < minAddressLen || len(address) > maxAddressLen {
		return "", apperr.Validation("address must be %d to %d characters", minAddressLen, maxAddressLen)
	}
	if strings.IndexFunc(address, unicode.IsSpace) >= 0 {
		return "", apperr.Validation("address must not contain whitespace")
	}
	return address, nil
}

// pick matches value case-insensitively against allowed and returns the
// configured spelling.
func pick(allowed []string, value string) (string, bool) {
	value = strings.TrimSpace(value)
	for _, a := range allowed {
		if strings.EqualFold(a, value) {
			return a, true
		}
	}
	return "", false
}
