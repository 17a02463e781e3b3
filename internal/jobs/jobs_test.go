package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pointvest/pointvest/internal/account"
	"github.com/pointvest/pointvest/internal/catalog"
	"github.com/pointvest/pointvest/internal/ledger"
	"github.com/pointvest/pointvest/internal/logging"
	"github.com/pointvest/pointvest/internal/notification"
	"github.com/pointvest/pointvest/internal/storage"
	"github.com/pointvest/pointvest/internal/transaction"
)

var now = time.Date(2026, 8, 10, 0, 0, 5, 0, time.UTC)

func products() *catalog.MemoryCatalog {
	return catalog.NewMemoryCatalog(
		catalog.Product{ID: "gold", Name: "Gold", Price: decimal.NewFromInt(100), DailyIncome: decimal.NewFromInt(10), ValidityDays: 30, Active: true},
		catalog.Product{ID: "silver", Name: "Silver", Price: decimal.NewFromInt(40), DailyIncome: decimal.RequireFromString("2.50"), ValidityDays: 7, Active: true},
		catalog.Product{ID: "promo", Name: "Promo", Price: decimal.NewFromInt(5), DailyIncome: decimal.Zero, ValidityDays: 7, Active: true},
		catalog.Product{ID: "free", Name: "Free", Price: decimal.Zero, DailyIncome: decimal.RequireFromString("0.10"), ValidityDays: 7, Active: true},
		catalog.Product{ID: "retired", Name: "Retired", Price: decimal.NewFromInt(50), DailyIncome: decimal.NewFromInt(3), ValidityDays: 10, Active: false},
	)
}

func seed(t *testing.T, store *storage.MemoryStore, id, primary string, subs ...account.Subscription) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, store.CreateUser(ctx, account.User{
		ID:       id,
		Role:     account.RoleUser,
		Status:   account.StatusActive,
		Balances: ledger.Balances{Primary: decimal.RequireFromString(primary)},
	}))
	require.NoError(t, store.WithinTx(ctx, func(tx storage.Tx) error {
		for _, s := range subs {
			s.UserID = id
			if err := tx.InsertSubscription(ctx, s); err != nil {
				return err
			}
		}
		return nil
	}))
}

func sub(id, product string, expiresIn time.Duration) account.Subscription {
	return account.Subscription{
		ID:           id,
		ProductID:    product,
		PurchaseDate: now.AddDate(0, 0, -20),
		ExpiresAt:    now.Add(expiresIn),
		AutoRenew:    true,
		IsActive:     true,
	}
}

func balance(t *testing.T, store storage.Store, id string) string {
	t.Helper()
	u, err := store.User(context.Background(), id)
	require.NoError(t, err)
	return u.Primary.StringFixed(2)
}

func newIncome(store storage.Store) *DailyIncome {
	j := NewDailyIncome(store, products(), nil, logging.Discard())
	j.now = func() time.Time { return now }
	return j
}

func TestDailyIncomeCreditsOncePerSubscription(t *testing.T) {
	store := storage.NewMemoryStore()
	seed(t, store, "u-1", "0",
		sub("s-gold", "gold", 72*time.Hour),
		sub("s-silver", "silver", 72*time.Hour),
		sub("s-promo", "promo", 72*time.Hour),
	)
	ctx := context.Background()

	report, err := newIncome(store).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Users)
	assert.Equal(t, 1, report.Processed)
	assert.Equal(t, 2, report.Records)
	assert.Equal(t, "12.50", report.Amount.StringFixed(2))
	assert.Equal(t, "12.50", balance(t, store, "u-1"))

	income, err := store.ListTransactions(ctx, transaction.Filter{Type: transaction.TypeIncome})
	require.NoError(t, err)
	require.Len(t, income, 2)
	for _, rec := range income {
		assert.Equal(t, transaction.StatusApproved, rec.Status)
		assert.Equal(t, transaction.SystemActor, rec.ApprovedBy)
		assert.NotEmpty(t, rec.ProductID)
	}
}

func TestDailyIncomeSingleSubscription(t *testing.T) {
	store := storage.NewMemoryStore()
	seed(t, store, "u-1", "5", sub("s-1", "gold", 48*time.Hour))

	_, err := newIncome(store).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "15.00", balance(t, store, "u-1"))
	income, err := store.ListTransactions(context.Background(), transaction.Filter{Type: transaction.TypeIncome})
	require.NoError(t, err)
	assert.Len(t, income, 1)
}

func TestDailyIncomeSecondRunSameDayCreditsNothing(t *testing.T) {
	store := storage.NewMemoryStore()
	seed(t, store, "u-1", "0", sub("s-1", "gold", 48*time.Hour))
	job := newIncome(store)
	ctx := context.Background()

	_, err := job.Run(ctx)
	require.NoError(t, err)
	job.now = func() time.Time { return now.Add(20 * time.Hour) }
	report, err := job.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Records)
	assert.Equal(t, "10.00", balance(t, store, "u-1"))

	job.now = func() time.Time { return now.Add(24 * time.Hour) }
	report, err = job.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Records)
	assert.Equal(t, "20.00", balance(t, store, "u-1"))
}

func TestDailyIncomeSkipsExpiredAndInactive(t *testing.T) {
	store := storage.NewMemoryStore()
	inactive := sub("s-off", "gold", 48*time.Hour)
	inactive.IsActive = false
	seed(t, store, "u-1", "0", sub("s-expired", "gold", -time.Second), sub("s-now", "gold", 0), inactive)

	report, err := newIncome(store).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, report.Records)
	assert.Equal(t, "0.00", balance(t, store, "u-1"))
}

// failingStore fails every unit touching one user.
type failingStore struct {
	storage.Store
	userID string
}

func (s failingStore) WithinTx(ctx context.Context, fn func(storage.Tx) error) error {
	return s.Store.WithinTx(ctx, func(tx storage.Tx) error {
		return fn(failingTx{Tx: tx, userID: s.userID})
	})
}

type failingTx struct {
	storage.Tx
	userID string
}

func (t failingTx) User(ctx context.Context, id string) (account.User, error) {
	if id == t.userID {
		return account.User{}, errors.New("row lock timeout")
	}
	return t.Tx.User(ctx, id)
}

func TestDailyIncomeContinuesAfterUserFailure(t *testing.T) {
	store := storage.NewMemoryStore()
	seed(t, store, "a", "0", sub("s-a", "gold", 48*time.Hour))
	seed(t, store, "b", "0", sub("s-b", "gold", 48*time.Hour))
	seed(t, store, "c", "0", sub("s-c", "gold", 48*time.Hour))

	report, err := newIncome(failingStore{Store: store, userID: "b"}).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, report.Users)
	assert.Equal(t, 2, report.Processed)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, "10.00", balance(t, store, "a"))
	assert.Equal(t, "0.00", balance(t, store, "b"))
	assert.Equal(t, "10.00", balance(t, store, "c"))
}

func TestDailyIncomeUnknownProductFailsOnlyThatUser(t *testing.T) {
	store := storage.NewMemoryStore()
	seed(t, store, "a", "0", sub("s-a", "gold", 48*time.Hour), sub("s-x", "vanished", 48*time.Hour))
	seed(t, store, "b", "0", sub("s-b", "gold", 48*time.Hour))

	report, err := newIncome(store).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, "0.00", balance(t, store, "a"))
	assert.Equal(t, "10.00", balance(t, store, "b"))
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []notification.Message
}

func (r *recordingNotifier) Send(_ context.Context, m notification.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, m)
	return nil
}

func newRenewal(store storage.Store) (*Renewal, *recordingNotifier, *notification.Dispatcher) {
	rec := &recordingNotifier{}
	d := notification.NewDispatcher(rec, time.Second, logging.Discard(), nil)
	j := NewRenewal(store, products(), d, nil, logging.Discard())
	j.now = func() time.Time { return now }
	return j, rec, d
}

func TestRenewalChargesAndExtends(t *testing.T) {
	store := storage.NewMemoryStore()
	s := sub("s-1", "gold", 12*time.Hour)
	seed(t, store, "u-1", "150", s)
	ctx := context.Background()

	job, _, _ := newRenewal(store)
	report, err := job.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Records)
	assert.Equal(t, "100.00", report.Amount.StringFixed(2))

	assert.Equal(t, "50.00", balance(t, store, "u-1"))
	subs, err := store.Subscriptions(ctx, "u-1")
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, s.ExpiresAt.AddDate(0, 0, 30), subs[0].ExpiresAt)
	assert.True(t, subs[0].IsActive)
	assert.Equal(t, 1, subs[0].RenewalCount)

	renewals, err := store.ListTransactions(ctx, transaction.Filter{Type: transaction.TypeRenewal})
	require.NoError(t, err)
	require.Len(t, renewals, 1)
	assert.Equal(t, "gold", renewals[0].ProductID)
	assert.Equal(t, transaction.StatusApproved, renewals[0].Status)
}

func TestRenewalInsufficientBalanceDeactivates(t *testing.T) {
	store := storage.NewMemoryStore()
	seed(t, store, "u-1", "99.99", sub("s-1", "gold", 12*time.Hour))
	ctx := context.Background()

	job, rec, d := newRenewal(store)
	report, err := job.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Deactivated)
	assert.Equal(t, 0, report.Records)

	assert.Equal(t, "99.99", balance(t, store, "u-1"))
	subs, err := store.Subscriptions(ctx, "u-1")
	require.NoError(t, err)
	assert.False(t, subs[0].IsActive)

	txs, err := store.ListTransactions(ctx, transaction.Filter{UserID: "u-1"})
	require.NoError(t, err)
	assert.Empty(t, txs)

	d.Wait()
	require.Len(t, rec.sent, 1)
	assert.Equal(t, notification.KindSubscriptionDeactivated, rec.sent[0].Kind)

	report, err = job.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Deactivated)
}

func TestRenewalFreeSubscriptionBesideUnderfunded(t *testing.T) {
	store := storage.NewMemoryStore()
	free := sub("s-free", "free", 12*time.Hour)
	gold := sub("s-gold", "gold", 12*time.Hour)
	gold.PurchaseDate = free.PurchaseDate.Add(time.Minute)
	seed(t, store, "u-1", "10", free, gold)
	ctx := context.Background()

	job, _, _ := newRenewal(store)
	report, err := job.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Failed)
	assert.Equal(t, 1, report.Processed)
	assert.Equal(t, 1, report.Records)
	assert.Equal(t, 1, report.Deactivated)
	assert.Equal(t, "10.00", balance(t, store, "u-1"))

	subs, err := store.Subscriptions(ctx, "u-1")
	require.NoError(t, err)
	require.Len(t, subs, 2)
	byID := map[string]account.Subscription{subs[0].ID: subs[0], subs[1].ID: subs[1]}
	assert.True(t, byID["s-free"].IsActive)
	assert.Equal(t, free.ExpiresAt.AddDate(0, 0, 7), byID["s-free"].ExpiresAt)
	assert.False(t, byID["s-gold"].IsActive)

	renewals, err := store.ListTransactions(ctx, transaction.Filter{Type: transaction.TypeRenewal})
	require.NoError(t, err)
	require.Len(t, renewals, 1)
	assert.Equal(t, "free", renewals[0].ProductID)
}

func TestRenewalSkipsNotDue(t *testing.T) {
	store := storage.NewMemoryStore()
	optedOut := sub("s-off", "gold", 12*time.Hour)
	optedOut.AutoRenew = false
	seed(t, store, "u-1", "500", sub("s-later", "gold", 25*time.Hour), sub("s-gone", "gold", -time.Minute), optedOut)

	job, _, _ := newRenewal(store)
	report, err := job.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, report.Records)
	assert.Equal(t, 0, report.Deactivated)
	assert.Equal(t, "500.00", balance(t, store, "u-1"))
}

func TestRenewalRetiredProductLapses(t *testing.T) {
	store := storage.NewMemoryStore()
	seed(t, store, "u-1", "500", sub("s-1", "retired", 6*time.Hour))
	ctx := context.Background()

	job, _, _ := newRenewal(store)
	report, err := job.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Lapsing)
	assert.Equal(t, "500.00", balance(t, store, "u-1"))

	subs, err := store.Subscriptions(ctx, "u-1")
	require.NoError(t, err)
	assert.False(t, subs[0].AutoRenew)
	assert.True(t, subs[0].IsActive)
}

func TestIncomeCanFundSameDayRenewal(t *testing.T) {
	store := storage.NewMemoryStore()
	seed(t, store, "u-1", "90", sub("s-1", "gold", 12*time.Hour))
	ctx := context.Background()

	_, err := newIncome(store).Run(ctx)
	require.NoError(t, err)
	job, _, _ := newRenewal(store)
	report, err := job.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Records)
	assert.Equal(t, "0.00", balance(t, store, "u-1"))
}
