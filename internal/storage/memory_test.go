package storage

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
	"github.com/pointvest/pointvest/internal/apperr"
	"github.com/pointvest/pointvest/internal/ledger"
	"github.com/pointvest/pointvest/internal/transaction"
)

var now = time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)

func seedUser(t *testing.T, s *MemoryStore, id string, primary int64) {
	t.Helper()
	require.NoError(t, s.CreateUser(context.Background(), account.User{
		ID:       id,
		Role:     account.RoleUser,
		Status:   account.StatusActive,
		Balances: ledger.Balances{Primary: decimal.NewFromInt(primary)},
	}))
}

func TestWithinTxDiscardsWritesOnError(t *testing.T) {
	s := NewMemoryStore()
	seedUser(t, s, "u-1", 100)
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.WithinTx(ctx, func(tx Tx) error {
		require.NoError(t, tx.UpdateBalances(ctx, "u-1", ledger.Balances{Primary: decimal.NewFromInt(5)}))
		rec, err := transaction.NewSettled("u-1", transaction.TypeIncome, decimal.NewFromInt(5), "", "", now)
		require.NoError(t, err)
		require.NoError(t, tx.InsertTransaction(ctx, rec))

		staged, err := tx.User(ctx, "u-1")
		require.NoError(t, err)
		assert.True(t, staged.Primary.Equal(decimal.NewFromInt(5)))
		return boom
	})
	require.ErrorIs(t, err, boom)

	u, err := s.User(ctx, "u-1")
	require.NoError(t, err)
	assert.True(t, u.Primary.Equal(decimal.NewFromInt(100)))
	list, err := s.ListTransactions(ctx, transaction.Filter{})
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestUpdateBalancesRejectsNegative(t *testing.T) {
	s := NewMemoryStore()
	seedUser(t, s, "u-1", 100)
	ctx := context.Background()
	err := s.WithinTx(ctx, func(tx Tx) error {
		return tx.UpdateBalances(ctx, "u-1", ledger.Balances{Primary: decimal.NewFromInt(-1)})
	})
	assert.Error(t, err)
}

func TestFinalizeTransactionIsCompareAndSet(t *testing.T) {
	s := NewMemoryStore()
	seedUser(t, s, "u-1", 0)
	ctx := context.Background()

	rec, err := transaction.NewPending("u-1", transaction.TypeDeposit, decimal.NewFromInt(10), decimal.Zero, now)
	require.NoError(t, err)
	require.NoError(t, s.InsertTransaction(ctx, rec))

	decided := rec
	require.NoError(t, decided.Approve("fin-1", "", now))

	var wg sync.WaitGroup
	results := make([]error, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = s.WithinTx(ctx, func(tx Tx) error {
				return tx.FinalizeTransaction(ctx, decided)
			})
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range results {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, apperr.ErrAlreadyProcessed)
	}
	assert.Equal(t, 1, succeeded)
}

func TestListTransactionsFilterAndPaging(t *testing.T) {
	s := NewMemoryStore()
	seedUser(t, s, "u-1", 0)
	seedUser(t, s, "u-2", 0)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		rec, err := transaction.NewPending("u-1", transaction.TypeDeposit, decimal.NewFromInt(int64(i+1)), decimal.Zero, now.Add(time.Duration(i)*time.Minute))
		require.NoError(t, err)
		require.NoError(t, s.InsertTransaction(ctx, rec))
	}
	other, err := transaction.NewPending("u-2", transaction.TypeWithdrawal, decimal.NewFromInt(9), decimal.Zero, now)
	require.NoError(t, err)
	require.NoError(t, s.InsertTransaction(ctx, other))

	page, err := s.ListTransactions(ctx, transaction.Filter{UserID: "u-1", Limit: 2, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.True(t, page[0].AmountPrimary.Equal(decimal.NewFromInt(4)))
	assert.True(t, page[1].AmountPrimary.Equal(decimal.NewFromInt(3)))

	withdrawals, err := s.ListTransactions(ctx, transaction.Filter{Type: transaction.TypeWithdrawal})
	require.NoError(t, err)
	require.Len(t, withdrawals, 1)
	assert.Equal(t, "u-2", withdrawals[0].UserID)
}

func TestInsertTransactionUnknownUser(t *testing.T) {
	s := NewMemoryStore()
	rec, err := transaction.NewPending("ghost", transaction.TypeDeposit, decimal.NewFromInt(10), decimal.Zero, now)
	require.NoError(t, err)
	assert.ErrorIs(t, s.InsertTransaction(context.Background(), rec), apperr.ErrNotFound)
}

func TestSubscriptionsStagedAndCommitted(t *testing.T) {
	s := NewMemoryStore()
	seedUser(t, s, "u-1", 0)
	ctx := context.Background()

	first := account.Subscription{ID: "s-1", UserID: "u-1", ProductID: "gold", PurchaseDate: now, ExpiresAt: now.AddDate(0, 0, 30), AutoRenew: true, IsActive: true}
	second := account.Subscription{ID: "s-2", UserID: "u-1", ProductID: "gold", PurchaseDate: now.Add(time.Hour), ExpiresAt: now.AddDate(0, 0, 30), AutoRenew: true, IsActive: true}

	require.NoError(t, s.WithinTx(ctx, func(tx Tx) error {
		if err := tx.InsertSubscription(ctx, first); err != nil {
			return err
		}
		subs, err := tx.Subscriptions(ctx, "u-1")
		require.NoError(t, err)
		assert.Len(t, subs, 1)
		return nil
	}))

	require.NoError(t, s.WithinTx(ctx, func(tx Tx) error {
		if err := tx.InsertSubscription(ctx, second); err != nil {
			return err
		}
		first.AutoRenew = false
		return tx.UpdateSubscription(ctx, first)
	}))

	subs, err := s.Subscriptions(ctx, "u-1")
	require.NoError(t, err)
	require.Len(t, subs, 2)
	assert.Equal(t, "s-1", subs[0].ID)
	assert.False(t, subs[0].AutoRenew)
	assert.Equal(t, "s-2", subs[1].ID)

	updated, err := s.UpdateAutoRenew(ctx, "u-1", "s-1", true)
	require.NoError(t, err)
	assert.True(t, updated.AutoRenew)

	_, err = s.UpdateAutoRenew(ctx, "u-2", "s-1", true)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestCountTransactionsIncludesStaged(t *testing.T) {
	s := NewMemoryStore()
	seedUser(t, s, "u-1", 0)
	ctx := context.Background()

	require.NoError(t, s.WithinTx(ctx, func(tx Tx) error {
		rec, err := transaction.NewSettled("u-1", transaction.TypePurchase, decimal.NewFromInt(10), "gold", "", now)
		require.NoError(t, err)
		if err := tx.InsertTransaction(ctx, rec); err != nil {
			return err
		}
		n, err := tx.CountTransactions(ctx, "u-1", transaction.TypePurchase)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
		return nil
	}))
}

func TestActiveUserIDsSkipsSuspended(t *testing.T) {
	s := NewMemoryStore()
	seedUser(t, s, "b", 0)
	seedUser(t, s, "a", 0)
	require.NoError(t, s.CreateUser(context.Background(), account.User{ID: "c", Status: account.StatusSuspended}))

	ids, err := s.ActiveUserIDs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, ids)
}
