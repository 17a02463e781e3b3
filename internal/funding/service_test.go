package funding

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/pointvest/pointvest/internal/account"
	"github.com/pointvest/pointvest/internal/apperr"
	"github.com/pointvest/pointvest/internal/fee"
	"github.com/pointvest/pointvest/internal/ledger"
	"github.com/pointvest/pointvest/internal/logging"
	"github.com/pointvest/pointvest/internal/storage"
	"github.com/pointvest/pointvest/internal/transaction"
)

func newTestService(t *testing.T, users ...account.User) (*Service, *storage.MemoryStore) {
	t.Helper()
	store := storage.NewMemoryStore()
	for _, u := range users {
		if err := store.CreateUser(context.Background(), u); err != nil {
			t.Fatalf("create user: %v", err)
		}
	}
	return NewService(store, fee.DefaultPolicy(), DefaultRules(), nil, logging.Discard()), store
}

func user(id, role string, primary string) account.User {
	return account.User{
		ID:       id,
		Role:     role,
		Status:   account.StatusActive,
		Balances: ledger.Balances{Primary: decimal.RequireFromString(primary), Secondary: decimal.RequireFromString("7.00")},
	}
}

func TestSubmitDeposit(t *testing.T) {
	ctx := context.Background()
	service, store := newTestService(t, user("u-1", account.RoleUser, "0"))

	tx, err := service.SubmitDeposit(ctx, DepositInput{
		UserID:        "u-1",
		Amount:        decimal.NewFromInt(1000),
		PaymentMethod: "USDT",
		Notes:         "receipt #77",
	})
	if err != nil {
		t.Fatalf("submit deposit: %v", err)
	}
	if tx.Status != transaction.StatusPending {
		t.Fatalf("expected pending, got %s", tx.Status)
	}
	if !tx.AmountPrimary.Equal(decimal.NewFromInt(1000)) {
		t.Fatalf("expected gross 1000 stored, got %s", tx.AmountPrimary)
	}
	if !tx.AmountSecondary.Equal(decimal.NewFromInt(1000)) {
		t.Fatalf("expected secondary display amount 1000, got %s", tx.AmountSecondary)
	}
	if tx.PaymentMethod != "usdt" {
		t.Fatalf("expected configured spelling usdt, got %s", tx.PaymentMethod)
	}

	u, err := store.User(ctx, "u-1")
	if err != nil {
		t.Fatalf("load user: %v", err)
	}
	if !u.Primary.IsZero() {
		t.Fatalf("submit must not move balance, got %s", u.Primary)
	}
	stored, err := store.Transaction(ctx, tx.ID)
	if err != nil {
		t.Fatalf("load transaction: %v", err)
	}
	if stored.Notes != "receipt #77" {
		t.Fatalf("unexpected notes %q", stored.Notes)
	}
}

func TestSubmitDepositValidation(t *testing.T) {
	ctx := context.Background()
	suspended := user("u-2", account.RoleUser, "0")
	suspended.Status = account.StatusSuspended
	service, _ := newTestService(t, user("u-1", account.RoleUser, "0"), suspended)

	cases := []struct {
		name string
		in   DepositInput
		want error
	}{
		{"below minimum", DepositInput{UserID: "u-1", Amount: decimal.RequireFromString("9.99"), PaymentMethod: "usdt"}, apperr.ErrValidation},
		{"negative", DepositInput{UserID: "u-1", Amount: decimal.NewFromInt(-50), PaymentMethod: "usdt"}, apperr.ErrValidation},
		{"missing method", DepositInput{UserID: "u-1", Amount: decimal.NewFromInt(50)}, apperr.ErrValidation},
		{"unknown method", DepositInput{UserID: "u-1", Amount: decimal.NewFromInt(50), PaymentMethod: "cash"}, apperr.ErrValidation},
		{"unknown user", DepositInput{UserID: "ghost", Amount: decimal.NewFromInt(50), PaymentMethod: "usdt"}, apperr.ErrNotFound},
		{"suspended user", DepositInput{UserID: "u-2", Amount: decimal.NewFromInt(50), PaymentMethod: "usdt"}, apperr.ErrValidation},
	}
	for _, tc := range cases {
		if _, err := service.SubmitDeposit(ctx, tc.in); !errors.Is(err, tc.want) {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, err)
		}
	}
}

func TestSubmitWithdrawalStoresNet(t *testing.T) {
	ctx := context.Background()
	service, store := newTestService(t, user("u-1", account.RoleUser, "200"))

	tx, err := service.SubmitWithdrawal(ctx, WithdrawalInput{
		UserID:  "u-1",
		Amount:  decimal.NewFromInt(100),
		Address: "TQn9Y2khEsLJW1ChVWFMSMeRDow5KcbLSE",
		Network: "trc20",
	})
	if err != nil {
		t.Fatalf("submit withdrawal: %v", err)
	}
	if tx.AmountPrimary.StringFixed(2) != "85.00" {
		t.Fatalf("expected net 85.00, got %s", tx.AmountPrimary.StringFixed(2))
	}
	if tx.FeeAmount.StringFixed(2) != "15.00" {
		t.Fatalf("expected fee 15.00, got %s", tx.FeeAmount.StringFixed(2))
	}
	if tx.Network != "TRC20" {
		t.Fatalf("expected network TRC20, got %s", tx.Network)
	}

	u, err := store.User(ctx, "u-1")
	if err != nil {
		t.Fatalf("load user: %v", err)
	}
	if u.Primary.StringFixed(2) != "200.00" {
		t.Fatalf("submit must not move balance, got %s", u.Primary)
	}
}

func TestSubmitWithdrawalRoundsGrossToCents(t *testing.T) {
	service, _ := newTestService(t, user("u-1", account.RoleUser, "200"))

	tx, err := service.SubmitWithdrawal(context.Background(), WithdrawalInput{
		UserID:  "u-1",
		Amount:  decimal.RequireFromString("100.005"),
		Address: "TQn9Y2khEsLJW1ChVWFMSMeRDow5KcbLSE",
		Network: "TRC20",
	})
	if err != nil {
		t.Fatalf("submit withdrawal: %v", err)
	}
	if tx.AmountPrimary.String() != "85.01" {
		t.Fatalf("expected net 85.01, got %s", tx.AmountPrimary.String())
	}
	if tx.FeeAmount.StringFixed(2) != "15.00" {
		t.Fatalf("expected fee 15.00, got %s", tx.FeeAmount.StringFixed(2))
	}
	if !tx.AmountPrimary.Equal(tx.AmountPrimary.Round(2)) {
		t.Fatalf("net carries more than two decimals: %s", tx.AmountPrimary)
	}
}

func TestSubmitWithdrawalExemptRole(t *testing.T) {
	service, _ := newTestService(t, user("adm-1", account.RoleAdmin, "500"))
	tx, err := service.SubmitWithdrawal(context.Background(), WithdrawalInput{
		UserID:  "adm-1",
		Amount:  decimal.NewFromInt(100),
		Address: "0x52908400098527886E0F7030069857D2E4169EE7",
		Network: "ERC20",
	})
	if err != nil {
		t.Fatalf("submit withdrawal: %v", err)
	}
	if !tx.AmountPrimary.Equal(decimal.NewFromInt(100)) || !tx.FeeAmount.IsZero() {
		t.Fatalf("exempt role should pay no fee, got net %s fee %s", tx.AmountPrimary, tx.FeeAmount)
	}
}

func TestSubmitWithdrawalValidation(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService(t, user("u-1", account.RoleUser, "50"))
	addr := "TQn9Y2khEsLJW1ChVWFMSMeRDow5KcbLSE"

	cases := []struct {
		name string
		in   WithdrawalInput
		want error
	}{
		{"below minimum", WithdrawalInput{UserID: "u-1", Amount: decimal.NewFromInt(19), Address: addr, Network: "TRC20"}, apperr.ErrValidation},
		{"empty address", WithdrawalInput{UserID: "u-1", Amount: decimal.NewFromInt(20), Network: "TRC20"}, apperr.ErrValidation},
		{"short address", WithdrawalInput{UserID: "u-1", Amount: decimal.NewFromInt(20), Address: "T123", Network: "TRC20"}, apperr.ErrValidation},
		{"long address", WithdrawalInput{UserID: "u-1", Amount: decimal.NewFromInt(20), Address: strings.Repeat("a", 129), Network: "TRC20"}, apperr.ErrValidation},
		{"address with space", WithdrawalInput{UserID: "u-1", Amount: decimal.NewFromInt(20), Address: "TQn9Y2kh EsLJW1Ch", Network: "TRC20"}, apperr.ErrValidation},
		{"unknown network", WithdrawalInput{UserID: "u-1", Amount: decimal.NewFromInt(20), Address: addr, Network: "SOL"}, apperr.ErrValidation},
		{"over balance", WithdrawalInput{UserID: "u-1", Amount: decimal.RequireFromString("50.01"), Address: addr, Network: "TRC20"}, apperr.ErrInsufficientBalance},
		{"unknown user", WithdrawalInput{UserID: "ghost", Amount: decimal.NewFromInt(20), Address: addr, Network: "TRC20"}, apperr.ErrNotFound},
	}
	for _, tc := range cases {
		if _, err := service.SubmitWithdrawal(ctx, tc.in); !errors.Is(err, tc.want) {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, err)
		}
	}
}

func TestSubmitWithdrawalRejectsNonPositiveNet(t *testing.T) {
	store := storage.NewMemoryStore()
	if err := store.CreateUser(context.Background(), user("u-1", account.RoleUser, "100")); err != nil {
		t.Fatalf("create user: %v", err)
	}
	policy := fee.NewPolicy(map[fee.Direction]decimal.Decimal{fee.DirectionWithdrawal: decimal.NewFromInt(100)}, nil)
	service := NewService(store, policy, DefaultRules(), nil, logging.Discard())

	_, err := service.SubmitWithdrawal(context.Background(), WithdrawalInput{
		UserID:  "u-1",
		Amount:  decimal.NewFromInt(50),
		Address: "TQn9Y2khEsLJW1ChVWFMSMeRDow5KcbLSE",
		Network: "TRC20",
	})
	if !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected validation error when fee consumes the amount, got %v", err)
	}
}
